// Package entities turns a classified message into a typed entity bundle.
// The completion service does the first pass; deterministic patterns fill
// whatever it leaves empty.
package entities

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"family-assistant/internal/assistant/intent"
	"family-assistant/internal/common/llm"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/common/metrics"
	"family-assistant/internal/common/validation"
	"family-assistant/internal/models"
)

type Extractor struct {
	llm    llm.Client
	now    func() time.Time
	logger logger.Logger
}

func NewExtractor(client llm.Client, log logger.Logger) *Extractor {
	return &Extractor{
		llm:    client,
		now:    time.Now,
		logger: log.With(map[string]interface{}{"component": "entities"}),
	}
}

// Extract never fails. Query and conversational intents get an empty
// bundle without a completion call.
func (e *Extractor) Extract(ctx context.Context, message string, t intent.Type, fc *models.FamilyContext) *models.EntityBundle {
	entityType := t.EntityType()
	bundle := models.NewBundle(entityType)

	tmpl, ok := templates[entityType]
	if !ok {
		return bundle
	}
	today := e.today(fc)

	if fields, ok := e.complete(ctx, message, entityType, tmpl, today, fc); ok {
		if err := decodeFields(bundle, fields); err != nil {
			e.logger.Warn("Discarding extraction reply", map[string]interface{}{"intent": string(t), "error": err.Error()})
		}
	}

	if filled := applyFallback(bundle, message, today, fc); len(filled) > 0 {
		bundle.FallbackUsed = true
		metrics.ExtractionFallbacks.WithLabelValues(entityType).Inc()
		e.logger.Debug("Fallback extraction filled fields", map[string]interface{}{
			"intent": string(t),
			"fields": filled,
		})
	}

	normalizeBundle(bundle, today)
	return bundle
}

func (e *Extractor) complete(ctx context.Context, message, entityType string, tmpl template, today time.Time, fc *models.FamilyContext) (map[string]interface{}, bool) {
	raw, err := e.llm.GenerateResponse(ctx, llm.UserTurn(message), tmpl.system(entityType, today, fc), llm.SamplingOptions{Temperature: 0, MaxTokens: 400})
	if err != nil {
		e.logger.Warn("Entity extraction completion failed", map[string]interface{}{"entityType": entityType, "error": err.Error()})
		return nil, false
	}

	var fields map[string]interface{}
	if !llm.DecodeJSONObject(raw, &fields) {
		e.logger.Warn("Entity extraction reply had no JSON object", map[string]interface{}{"entityType": entityType})
		return nil, false
	}
	coerceScalars(fields)

	result, err := validation.ValidateInput(fields, tmpl.schema())
	if err != nil || !result.Valid {
		details := map[string]interface{}{"entityType": entityType}
		if err != nil {
			details["error"] = err.Error()
		} else {
			details["errors"] = result.GetErrorMessages()
		}
		e.logger.Warn("Entity extraction reply failed schema validation", details)
		return nil, false
	}
	return fields, true
}

func (e *Extractor) today(fc *models.FamilyContext) time.Time {
	if fc != nil && !fc.Today.IsZero() {
		return truncateDay(fc.Today)
	}
	return truncateDay(e.now())
}

// coerceScalars turns numbers and booleans into strings so replies like
// {"value": 42} decode into string fields.
func coerceScalars(fields map[string]interface{}) {
	for k, v := range fields {
		switch val := v.(type) {
		case float64:
			fields[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			fields[k] = strconv.FormatBool(val)
		}
	}
}

func decodeFields(b *models.EntityBundle, fields map[string]interface{}) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	switch b.EntityType {
	case models.EntityProvider:
		return json.Unmarshal(raw, b.Provider)
	case models.EntityEvent:
		return json.Unmarshal(raw, b.Event)
	case models.EntityTask:
		return json.Unmarshal(raw, b.Task)
	case models.EntityGrowth:
		return json.Unmarshal(raw, b.Growth)
	}
	return nil
}

// normalizeBundle resolves dates, times and type vocabularies in place.
func normalizeBundle(b *models.EntityBundle, today time.Time) {
	switch b.EntityType {
	case models.EntityProvider:
		p := b.Provider
		trimAll(&p.Name, &p.Type, &p.Specialty, &p.Phone, &p.Email, &p.Address, &p.ChildName, &p.Notes)
		p.Type = NormalizeProviderType(p.Type)
		p.Email = strings.ToLower(p.Email)
	case models.EntityEvent:
		e := b.Event
		trimAll(&e.Title, &e.Date, &e.Time, &e.Location, &e.EventType, &e.ChildName, &e.EventID)
		e.Date = normalizeDate(e.Date, today)
		e.Time = normalizeTime(e.Time)
		if e.EventType == "" && e.Title != "" {
			e.EventType = matchRule(eventTypeRules, e.Title)
		}
		e.EventType = NormalizeEventType(e.EventType)
		if e.Attendees == nil {
			e.Attendees = []string{}
		}
	case models.EntityTask:
		t := b.Task
		trimAll(&t.Title, &t.Assignee, &t.DueDate, &t.Priority, &t.TaskID)
		t.DueDate = normalizeDate(t.DueDate, today)
		t.Priority = normalizePriority(t.Priority)
	case models.EntityGrowth:
		g := b.Growth
		trimAll(&g.ChildName, &g.Measurement, &g.Value, &g.Unit, &g.Date)
		if u, ok := units[strings.ToLower(g.Unit)]; ok {
			g.Unit = u
		}
		g.Measurement = strings.ReplaceAll(strings.ToLower(g.Measurement), " ", "_")
		g.Date = recordDate(g.Date, today)
	}
}

// normalizeDate accepts an ISO date or any phrase ResolveDate understands.
// Unresolvable values become empty.
func normalizeDate(value string, today time.Time) string {
	if value == "" {
		return ""
	}
	if d, ok := ResolveDate(value, today); ok {
		return d
	}
	if d, ok := FindDate(value, today); ok {
		return d
	}
	return ""
}

// recordDate keeps explicit past dates since measurements describe the past.
func recordDate(value string, today time.Time) string {
	if _, err := time.Parse(dateLayout, value); err == nil {
		return value
	}
	if d := normalizeDate(value, today); d != "" {
		return d
	}
	return today.Format(dateLayout)
}

func normalizeTime(value string) string {
	if value == "" {
		return ""
	}
	if t, ok := ParseTime(value); ok {
		return t
	}
	if t, ok := FindTime(value); ok {
		return t
	}
	return ""
}

func normalizePriority(p string) string {
	switch strings.ToLower(p) {
	case "high", "urgent":
		return "high"
	case "low":
		return "low"
	case "medium", "normal":
		return "medium"
	}
	return ""
}

func trimAll(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}
