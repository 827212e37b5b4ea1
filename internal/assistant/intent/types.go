// Package intent resolves free text to a closed set of intents.
package intent

import (
	"regexp"
	"strings"

	"family-assistant/internal/models"
)

// Type is a canonical intent. Values outside the constants below never
// leave this package; Normalize maps them to Unknown.
type Type string

const (
	AddEvent     Type = "add_event"
	CancelEvent  Type = "cancel_event"
	AddProvider  Type = "add_provider"
	AddTask      Type = "add_task"
	CompleteTask Type = "complete_task"
	TrackGrowth  Type = "track_growth"

	QueryCalendar  Type = "query_calendar"
	QueryTasks     Type = "query_tasks"
	QueryProviders Type = "query_providers"
	QueryGrowth    Type = "query_growth"

	GeneralChat Type = "general_chat"
	Unknown     Type = "unknown"
)

// All lists every resolvable intent in prompt order.
var All = []Type{
	AddEvent, CancelEvent, AddProvider, AddTask, CompleteTask, TrackGrowth,
	QueryCalendar, QueryTasks, QueryProviders, QueryGrowth,
	GeneralChat,
}

var canonical = func() map[Type]bool {
	m := make(map[Type]bool, len(All)+1)
	for _, t := range All {
		m[t] = true
	}
	m[Unknown] = true
	return m
}()

func (t Type) String() string { return string(t) }

// Valid reports whether t is a canonical intent.
func (t Type) Valid() bool { return canonical[t] }

func (t Type) IsQuery() bool {
	switch t {
	case QueryCalendar, QueryTasks, QueryProviders, QueryGrowth:
		return true
	}
	return false
}

// IsAction reports whether t performs a durable write.
func (t Type) IsAction() bool {
	switch t {
	case AddEvent, CancelEvent, AddProvider, AddTask, CompleteTask, TrackGrowth:
		return true
	}
	return false
}

// EntityType returns the entity bundle type extracted for t.
func (t Type) EntityType() string {
	switch t {
	case AddProvider:
		return models.EntityProvider
	case AddEvent, CancelEvent:
		return models.EntityEvent
	case AddTask, CompleteTask:
		return models.EntityTask
	case TrackGrowth:
		return models.EntityGrowth
	}
	if t.IsQuery() {
		return models.EntityQuery
	}
	return models.EntityNone
}

var aliases = map[string]Type{
	"schedule":         AddEvent,
	"schedule_event":   AddEvent,
	"create_event":     AddEvent,
	"new_event":        AddEvent,
	"delete_event":     CancelEvent,
	"remove_event":     CancelEvent,
	"cancel":           CancelEvent,
	"create_provider":  AddProvider,
	"new_provider":     AddProvider,
	"create_task":      AddTask,
	"new_task":         AddTask,
	"remind":           AddTask,
	"finish_task":      CompleteTask,
	"mark_task_done":   CompleteTask,
	"task_done":        CompleteTask,
	"record_growth":    TrackGrowth,
	"log_growth":       TrackGrowth,
	"show_calendar":    QueryCalendar,
	"get_events":       QueryCalendar,
	"list_events":      QueryCalendar,
	"query_events":     QueryCalendar,
	"list_tasks":       QueryTasks,
	"get_tasks":        QueryTasks,
	"list_providers":   QueryProviders,
	"find_provider":    QueryProviders,
	"get_growth":       QueryGrowth,
	"growth_history":   QueryGrowth,
	"chat":             GeneralChat,
	"conversation":     GeneralChat,
	"greeting":         GeneralChat,
	"general":          GeneralChat,
	"question":         GeneralChat,
	"smalltalk":        GeneralChat,
	"general_question": GeneralChat,
}

// addSuffixes rewrites add_<x> labels the classifier invents. Entries are
// checked in order against the suffix.
var addSuffixes = []struct {
	words []string
	to    Type
}{
	{[]string{"appointment", "meeting", "event", "visit", "calendar", "reservation"}, AddEvent},
	{[]string{"babysitter", "sitter", "nanny", "doctor", "dentist", "pediatrician", "tutor", "coach", "provider", "caregiver", "therapist", "contact"}, AddProvider},
	{[]string{"todo", "to_do", "chore", "reminder", "errand", "task"}, AddTask},
	{[]string{"height", "weight", "measurement", "growth"}, TrackGrowth},
}

var nonLabel = regexp.MustCompile(`[^a-z_]`)

// Normalize maps a raw classifier label to a canonical intent or Unknown.
func Normalize(raw string) Type {
	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.NewReplacer(" ", "_", "-", "_").Replace(label)
	label = strings.Trim(nonLabel.ReplaceAllString(label, ""), "_")
	if label == "" {
		return Unknown
	}

	if t := Type(label); canonical[t] {
		return t
	}
	if t, ok := aliases[label]; ok {
		return t
	}

	if suffix, ok := strings.CutPrefix(label, "add_"); ok {
		for _, rule := range addSuffixes {
			for _, w := range rule.words {
				if strings.Contains(suffix, w) {
					return rule.to
				}
			}
		}
	}
	return Unknown
}

// ActionType is the orthogonal axis deciding whether a durable side effect
// is wanted.
type ActionType string

const (
	ActionTypeAction       ActionType = "action"
	ActionTypeInformation  ActionType = "information"
	ActionTypeConversation ActionType = "conversation"
)

func normalizeActionType(raw string) (ActionType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "action":
		return ActionTypeAction, true
	case "information", "info", "query":
		return ActionTypeInformation, true
	case "conversation", "chat":
		return ActionTypeConversation, true
	}
	return "", false
}
