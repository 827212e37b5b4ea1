package entities

import (
	"context"
	"errors"
	"testing"

	"family-assistant/internal/assistant/intent"
	"family-assistant/internal/common/llm/llmtest"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func familyContext() *models.FamilyContext {
	return &models.FamilyContext{
		FamilyID:    "fam-1",
		CurrentUser: &models.FamilyMember{ID: "u-1", Name: "Jordan Rivera", Role: "parent"},
		FamilyMembers: []models.FamilyMember{
			{ID: "u-1", Name: "Jordan Rivera", Role: "parent"},
			{ID: "u-2", Name: "Sam Rivera", Role: "parent"},
			{ID: "c-1", Name: "Lily Rivera", Role: "child", Age: 6},
		},
		Today: monday,
	}
}

func extract(t *testing.T, client *llmtest.Scripted, message string, it intent.Type) *models.EntityBundle {
	t.Helper()
	e := NewExtractor(client, logger.NewTestLogger(t))
	b := e.Extract(context.Background(), message, it, familyContext())
	require.NotNil(t, b)
	return b
}

const babysitterMessage = "Can you add a new babysitter for Lily named Martha Diaz?"

func TestExtract_ProviderFromCompletion(t *testing.T) {
	client := llmtest.New(`{"name":"Martha Diaz","type":"babysitter","childName":"Lily"}`)

	b := extract(t, client, babysitterMessage, intent.AddProvider)

	assert.Equal(t, models.EntityProvider, b.EntityType)
	assert.Equal(t, "Martha Diaz", b.Provider.Name)
	assert.Equal(t, "childcare", b.Provider.Type)
	assert.Equal(t, "Lily", b.Provider.ChildName)
	assert.False(t, b.FallbackUsed)

	system := client.Calls()[0].System
	assert.Contains(t, system, "childcare")
	assert.Contains(t, system, "Lily Rivera (child)")
}

func TestExtract_ProviderFallbackWhenCompletionFails(t *testing.T) {
	b := extract(t, &llmtest.Scripted{Err: errors.New("gateway down")}, babysitterMessage, intent.AddProvider)

	assert.Equal(t, "Martha Diaz", b.Provider.Name)
	assert.Equal(t, "childcare", b.Provider.Type)
	assert.Equal(t, "Lily", b.Provider.ChildName)
	assert.True(t, b.FallbackUsed)
}

func TestExtract_FallbackMergesContactDetails(t *testing.T) {
	client := llmtest.New(`{"name":"Dr. Patel","type":"pediatrician","email":null}`)
	msg := "Add Dr. Patel, our pediatrician, email dr.patel@clinic.com and phone 555-123-4567"

	b := extract(t, client, msg, intent.AddProvider)

	assert.Equal(t, "Dr. Patel", b.Provider.Name)
	assert.Equal(t, "medical", b.Provider.Type)
	assert.Equal(t, "dr.patel@clinic.com", b.Provider.Email)
	assert.Equal(t, "555-123-4567", b.Provider.Phone)
	assert.True(t, b.FallbackUsed)
}

const dentistMessage = "Schedule a dentist appointment for Lily next Thursday at 3pm"

func TestExtract_EventFromCompletion(t *testing.T) {
	client := llmtest.New("```json\n" + `{"title":"Dentist appointment","date":"next Thursday","time":"3pm","eventType":"dentist","childName":"Lily","attendees":null}` + "\n```")

	b := extract(t, client, dentistMessage, intent.AddEvent)

	e := b.Event
	assert.Equal(t, "Dentist appointment", e.Title)
	assert.Equal(t, "2026-10-15", e.Date)
	assert.Equal(t, "15:00", e.Time)
	assert.Equal(t, "doctor", e.EventType)
	assert.Equal(t, "Lily", e.ChildName)
	assert.NotNil(t, e.Attendees)
	assert.Contains(t, client.Calls()[0].System, "Today is Monday (2026-10-12)")
}

func TestExtract_EventFallbackWithoutJSON(t *testing.T) {
	b := extract(t, llmtest.New("Sorry, I can't help with that."), dentistMessage, intent.AddEvent)

	e := b.Event
	assert.Equal(t, "Dentist appointment", e.Title)
	assert.Equal(t, "2026-10-15", e.Date)
	assert.Equal(t, "15:00", e.Time)
	assert.Equal(t, "doctor", e.EventType)
	assert.Equal(t, "Lily", e.ChildName)
	assert.Empty(t, e.Location)
	assert.True(t, b.FallbackUsed)
}

func TestExtract_EventPastYearRollsForward(t *testing.T) {
	client := llmtest.New(`{"title":"Winter recital","date":"2025-12-05","time":"18:30","eventType":"recital"}`)

	b := extract(t, client, "Add Lily's winter recital on December 5 at 6:30pm", intent.AddEvent)

	assert.Equal(t, "2026-12-05", b.Event.Date)
	assert.Equal(t, "18:30", b.Event.Time)
	assert.Equal(t, "activity", b.Event.EventType)
}

func TestExtract_SchemaViolationFallsBack(t *testing.T) {
	client := llmtest.New(`{"title":["Soccer","practice"],"date":"tomorrow"}`)

	b := extract(t, client, "Add soccer practice for Lily on Saturday at 4pm", intent.AddEvent)

	assert.Equal(t, "Soccer practice", b.Event.Title)
	assert.Equal(t, "2026-10-17", b.Event.Date)
	assert.Equal(t, "16:00", b.Event.Time)
	assert.Equal(t, "activity", b.Event.EventType)
	assert.True(t, b.FallbackUsed)
}

func TestExtract_TaskFallback(t *testing.T) {
	b := extract(t, &llmtest.Scripted{Err: errors.New("timeout")}, "Remind me to pick up Lily's prescription by Friday, it's urgent", intent.AddTask)

	assert.Equal(t, models.EntityTask, b.EntityType)
	assert.Equal(t, "Pick up Lily's prescription", b.Task.Title)
	assert.Equal(t, "2026-10-16", b.Task.DueDate)
	assert.Equal(t, "high", b.Task.Priority)
}

func TestExtract_GrowthCoercesNumbers(t *testing.T) {
	client := llmtest.New(`{"childName":"Lily","measurement":"Height","value":42.5,"unit":"inches"}`)

	b := extract(t, client, "Lily is 42.5 inches tall now", intent.TrackGrowth)

	g := b.Growth
	assert.Equal(t, "Lily", g.ChildName)
	assert.Equal(t, "height", g.Measurement)
	assert.Equal(t, "42.5", g.Value)
	assert.Equal(t, "in", g.Unit)
	assert.Equal(t, "2026-10-12", g.Date)
	assert.False(t, b.FallbackUsed)
}

func TestExtract_NoCompletionForQueriesAndChat(t *testing.T) {
	tests := []struct {
		it   intent.Type
		want string
	}{
		{intent.QueryCalendar, models.EntityQuery},
		{intent.QueryProviders, models.EntityQuery},
		{intent.GeneralChat, models.EntityNone},
		{intent.Unknown, models.EntityNone},
	}
	for _, tt := range tests {
		t.Run(string(tt.it), func(t *testing.T) {
			client := llmtest.New(`{"title":"x"}`)
			b := extract(t, client, "what's on this week?", tt.it)
			assert.Equal(t, tt.want, b.EntityType)
			assert.Zero(t, client.CallCount())
		})
	}
}
