package processfamilymessage

import "family-assistant/internal/models"

type Input struct {
	Message       string                `json:"message"`
	FamilyID      string                `json:"familyId"`
	UserID        string                `json:"userId"`
	FamilyContext *models.FamilyContext `json:"familyContext"`
}

type Output struct {
	Reply          string                 `json:"assistantReply"`
	Success        bool                   `json:"assistantSuccess"`
	Route          string                 `json:"assistantRoute"`
	Intent         string                 `json:"assistantIntent,omitempty"`
	ActionType     string                 `json:"assistantActionType,omitempty"`
	Data           map[string]interface{} `json:"assistantData,omitempty"`
	ErrorCode      string                 `json:"assistantErrorCode,omitempty"`
	RecentMessages []models.RecentMessage `json:"recentMessages"`
}

// InputSchema is used when the activity registry has no entry.
func InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"message"},
		"properties": map[string]interface{}{
			"message":       map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 4000},
			"familyId":      map[string]interface{}{"type": "string"},
			"userId":        map[string]interface{}{"type": "string"},
			"familyContext": map[string]interface{}{"type": "object"},
		},
	}
}
