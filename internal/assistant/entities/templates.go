package entities

import (
	"fmt"
	"strings"
	"time"

	"family-assistant/internal/models"
)

// template describes the extraction request for one entity type.
type template struct {
	fields []string
	rules  []string
}

var templates = map[string]template{
	models.EntityProvider: {
		fields: []string{"name", "type", "specialty", "phone", "email", "address", "childName", "notes"},
		rules: []string{
			"name is the provider's full name as written.",
			`type is "childcare" for any babysitter, nanny, sitter, au pair or daycare; otherwise medical, dental, education, activity or other.`,
			"childName is the child the provider is for, if mentioned.",
		},
	},
	models.EntityEvent: {
		fields: []string{"title", "date", "time", "location", "eventType", "childName", "attendees", "eventId"},
		rules: []string{
			"date is YYYY-MM-DD resolved against today; \"next <weekday>\" is the first such day after today. Never use a past year.",
			"time is 24-hour HH:MM.",
			"eventType is doctor for dentist, doctor, pediatrician or checkup visits; activity for practice, game or lesson; school for school or conference; social for birthday or party.",
			"attendees is a list of names and may be empty.",
		},
	},
	models.EntityTask: {
		fields: []string{"title", "assignee", "dueDate", "priority", "taskId"},
		rules: []string{
			"title is a short imperative description of the task.",
			"dueDate is YYYY-MM-DD resolved against today.",
			"priority is low, medium or high.",
		},
	},
	models.EntityGrowth: {
		fields: []string{"childName", "measurement", "value", "unit", "date"},
		rules: []string{
			"measurement is height, weight or head_circumference.",
			"value is the number only and unit is cm, in, kg or lb.",
			"date is YYYY-MM-DD and defaults to today.",
		},
	},
}

func (t template) system(entityType string, today time.Time, fc *models.FamilyContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract %s details from a message sent to a family organization assistant.\n", entityType)
	fmt.Fprintf(&b, "Today is %s (%s).\n", today.Format("Monday"), today.Format(dateLayout))
	if fc != nil && len(fc.FamilyMembers) > 0 {
		names := make([]string, 0, len(fc.FamilyMembers))
		for _, m := range fc.FamilyMembers {
			names = append(names, fmt.Sprintf("%s (%s)", m.Name, m.Role))
		}
		fmt.Fprintf(&b, "Family members: %s.\n", strings.Join(names, ", "))
	}
	for _, r := range t.rules {
		b.WriteString("- ")
		b.WriteString(r)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Respond with only a JSON object with the keys %s. Use an empty string for anything not mentioned.",
		strings.Join(t.fields, ", "))
	return b.String()
}

// schema returns the JSON schema the completion reply must satisfy.
func (t template) schema() map[string]interface{} {
	props := make(map[string]interface{}, len(t.fields))
	for _, f := range t.fields {
		if f == "attendees" {
			props[f] = map[string]interface{}{
				"type":  []interface{}{"array", "null"},
				"items": map[string]interface{}{"type": "string"},
			}
			continue
		}
		props[f] = map[string]interface{}{"type": []interface{}{"string", "null"}}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
}
