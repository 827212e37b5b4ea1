package dispatcher

import (
	"context"
	"regexp"
	"strings"

	"family-assistant/internal/assistant/intent"
	"family-assistant/internal/models"
)

// override force-routes a phrasing the classifier is known to confuse.
type override struct {
	name   string
	match  func(message string) bool
	intent intent.Type
}

var (
	taskListing     = regexp.MustCompile(`(?i)\b(?:what|which|show|list|any)\b.*\b(?:tasks?|to-?dos?|chores|errands)\b`)
	providerAdd     = regexp.MustCompile(`(?i)\b(?:add|save|register|new)\b.*\b(?:babysitter|nanny|sitter|au pair|pediatrician|doctor|dentist|tutor|coach|provider)\b`)
	appointmentWord = regexp.MustCompile(`(?i)\b(?:appointment|visit|checkup|check-up|schedule|practice|lesson)\b`)
	eventCancel     = regexp.MustCompile(`(?i)\b(?:cancel|call off)\b.*\b(?:appointment|event|practice|meeting|lesson|game|party|visit)\b`)
)

// overrides run before the classifier, first match wins.
var overrides = []override{
	{
		name:   "task-listing",
		match:  taskListing.MatchString,
		intent: intent.QueryTasks,
	},
	{
		name: "provider-creation",
		match: func(m string) bool {
			return providerAdd.MatchString(m) && !appointmentWord.MatchString(m)
		},
		intent: intent.AddProvider,
	},
	{
		name:   "event-cancellation",
		match:  eventCancel.MatchString,
		intent: intent.CancelEvent,
	},
}

func matchOverride(message string) (string, intent.Type, bool) {
	for _, o := range overrides {
		if o.match(message) {
			return o.name, o.intent, true
		}
	}
	return "", intent.Unknown, false
}

// keywordTable drives the co-occurrence tier. Order breaks ties.
var keywordTable = []struct {
	intent   intent.Type
	keywords []string
}{
	{intent.AddEvent, []string{"schedule", "appointment", "event", "calendar", "meeting", "book", "practice", "party"}},
	{intent.CancelEvent, []string{"cancel", "appointment", "event", "meeting", "reschedule", "off"}},
	{intent.AddProvider, []string{"add", "babysitter", "nanny", "doctor", "dentist", "provider", "tutor", "coach", "contact", "sitter"}},
	{intent.AddTask, []string{"add", "task", "todo", "chore", "remind", "errand", "need"}},
	{intent.CompleteTask, []string{"done", "complete", "completed", "finished", "task", "mark", "chore"}},
	{intent.TrackGrowth, []string{"height", "weight", "tall", "weighs", "inches", "cm", "lbs", "grew", "measured", "pounds"}},
	{intent.QueryCalendar, []string{"what", "calendar", "schedule", "week", "upcoming", "events", "today", "tomorrow"}},
	{intent.QueryTasks, []string{"what", "tasks", "todos", "list", "chores", "pending", "open"}},
	{intent.QueryProviders, []string{"who", "providers", "babysitter", "doctor", "dentist", "contact", "number", "phone"}},
	{intent.QueryGrowth, []string{"how", "tall", "growth", "height", "weight", "chart", "big"}},
}

var tokenPattern = regexp.MustCompile(`[a-z0-9-]+`)

// keywordMatch returns the intent with the most keyword hits when it has
// at least two.
func keywordMatch(message string) (intent.Type, int) {
	tokens := make(map[string]bool)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(message), -1) {
		tokens[tok] = true
	}

	best, bestHits := intent.Unknown, 0
	for _, row := range keywordTable {
		hits := 0
		for _, k := range row.keywords {
			if tokens[k] {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = row.intent, hits
		}
	}
	if bestHits < 2 {
		return intent.Unknown, bestHits
	}
	return best, bestHits
}

// resolveIntent applies overrides, then the classifier, then keyword
// co-occurrence. ok is false when nothing resolved.
func (d *Dispatcher) resolveIntent(ctx context.Context, message string) (intent.Resolution, bool) {
	if name, t, ok := matchOverride(message); ok {
		d.logger.Debug("Intent override matched", map[string]interface{}{"override": name, "intent": string(t)})
		return intent.Resolution{Type: t, Confidence: 1, Source: models.SourceOverride}, true
	}

	if d.classifier != nil {
		res := d.classifier.Classify(ctx, message)
		if res.Type != intent.Unknown && res.Confidence >= d.opts.MinConfidence {
			return res, true
		}
		d.logger.Debug("Classifier result not accepted", map[string]interface{}{
			"intent":     string(res.Type),
			"confidence": res.Confidence,
		})
	}

	if t, hits := keywordMatch(message); t != intent.Unknown {
		return intent.Resolution{Type: t, Confidence: keywordConfidence(hits), Source: models.SourceKeyword}, true
	}
	return intent.Resolution{Type: intent.Unknown}, false
}

func keywordConfidence(hits int) float64 {
	c := 0.3 + 0.1*float64(hits)
	if c > 0.9 {
		c = 0.9
	}
	return c
}
