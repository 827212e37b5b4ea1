package neutralizemessage

import "family-assistant/internal/assistant/neutralvoice"

type Input struct {
	Text   string `json:"text"`
	Person string `json:"person"`
	Task   string `json:"task"`
	Role   string `json:"role"`
}

type Output struct {
	NeutralText string              `json:"neutralText"`
	Changed     bool                `json:"changed"`
	Before      neutralvoice.Report `json:"neutralityBefore"`
	After       neutralvoice.Report `json:"neutralityAfter"`
}

// InputSchema is used when the activity registry has no entry.
func InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"text"},
		"properties": map[string]interface{}{
			"text":   map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 8000},
			"person": map[string]interface{}{"type": "string"},
			"task":   map[string]interface{}{"type": "string"},
			"role":   map[string]interface{}{"type": "string"},
		},
	}
}
