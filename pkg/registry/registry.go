// Package registry loads the activity registry that documents every job
// worker's task type and input/output schemas.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

var errorCodePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// Find returns the activity registered for taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// Validate reports structural problems: missing ids or task types,
// duplicate task types, non-object schemas, malformed error codes, and
// unparsable timeouts or negative retries.
func (r *ActivityRegistry) Validate() []string {
	var problems []string
	seen := make(map[string]bool)

	for i, a := range r.Activities {
		if a.ID == "" {
			problems = append(problems, fmt.Sprintf("activity[%d]: missing id", i))
		}
		if a.TaskType == "" {
			problems = append(problems, fmt.Sprintf("activity[%d]: missing taskType", i))
			continue
		}
		if seen[a.TaskType] {
			problems = append(problems, fmt.Sprintf("activity %s: duplicate taskType %s", a.ID, a.TaskType))
		}
		seen[a.TaskType] = true

		for name, schema := range map[string]map[string]interface{}{"inputSchema": a.InputSchema, "outputSchema": a.OutputSchema} {
			if len(schema) == 0 {
				continue
			}
			if t, _ := schema["type"].(string); t != "object" {
				problems = append(problems, fmt.Sprintf("activity %s: %s must have type object", a.ID, name))
			}
		}
		for _, code := range a.ErrorCodes {
			if !errorCodePattern.MatchString(code) {
				problems = append(problems, fmt.Sprintf("activity %s: error code %q must be upper snake case", a.ID, code))
			}
		}
		if a.Timeout != "" {
			if d, err := time.ParseDuration(a.Timeout); err != nil || d <= 0 {
				problems = append(problems, fmt.Sprintf("activity %s: invalid timeout %q", a.ID, a.Timeout))
			}
		}
		if a.Retries < 0 {
			problems = append(problems, fmt.Sprintf("activity %s: retries must not be negative", a.ID))
		}
	}
	return problems
}
