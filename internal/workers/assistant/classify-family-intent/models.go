package classifyfamilyintent

import "family-assistant/internal/models"

type Input struct {
	Message         string                `json:"message"`
	FamilyContext   *models.FamilyContext `json:"familyContext"`
	ExtractEntities bool                  `json:"extractEntities"`
}

type Output struct {
	Intent     string               `json:"intent"`
	Confidence float64              `json:"confidence"`
	Source     string               `json:"intentSource"`
	Dampened   bool                 `json:"dampened"`
	Actionable bool                 `json:"actionable"`
	ActionType string               `json:"actionType"`
	Entities   *models.EntityBundle `json:"entities,omitempty"`
}

// InputSchema is used when the activity registry has no entry.
func InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"message"},
		"properties": map[string]interface{}{
			"message":         map[string]interface{}{"type": "string", "minLength": 1, "maxLength": 4000},
			"familyContext":   map[string]interface{}{"type": "object"},
			"extractEntities": map[string]interface{}{"type": "boolean"},
		},
	}
}
