package models

// IntentSource records which tier resolved an intent.
type IntentSource string

const (
	SourcePattern  IntentSource = "pattern"
	SourceAI       IntentSource = "ai"
	SourceOverride IntentSource = "override"
	SourceKeyword  IntentSource = "keyword"
)

// ActionResult is the outcome of one dispatched action. Success and a
// non-empty Error are mutually exclusive.
type ActionResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Intent  string                 `json:"intent,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func Succeeded(message string, data map[string]interface{}) *ActionResult {
	return &ActionResult{Success: true, Message: message, Data: data}
}

func Failed(message, detail string) *ActionResult {
	return &ActionResult{Success: false, Message: message, Error: detail}
}
