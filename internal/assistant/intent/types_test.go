package intent

import (
	"testing"

	"family-assistant/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want Type
	}{
		{"add_event", AddEvent},
		{"  ADD_PROVIDER ", AddProvider},
		{"query-tasks", QueryTasks},
		{"Query Calendar", QueryCalendar},
		{"add_event.", AddEvent},
		{"\"add_task\"", AddTask},
		{"schedule_event", AddEvent},
		{"list_tasks", QueryTasks},
		{"chat", GeneralChat},
		{"add_dentist_appointment", AddEvent},
		{"add_babysitter", AddProvider},
		{"add_nanny", AddProvider},
		{"add_chore", AddTask},
		{"add_todo_item", AddTask},
		{"add_height", TrackGrowth},
		{"add_spaceship", Unknown},
		{"launch_rocket", Unknown},
		{"", Unknown},
		{"123", Unknown},
		{"unknown", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := Normalize(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestNormalize_CanonicalRoundTrip(t *testing.T) {
	for _, typ := range All {
		assert.Equal(t, typ, Normalize(string(typ)))
	}
}

func TestType_Predicates(t *testing.T) {
	for _, typ := range All {
		assert.False(t, typ.IsQuery() && typ.IsAction(), typ)
	}
	assert.True(t, QueryGrowth.IsQuery())
	assert.True(t, TrackGrowth.IsAction())
	assert.False(t, GeneralChat.IsAction())
	assert.False(t, Type("add_rocket").Valid())

	assert.Equal(t, models.EntityProvider, AddProvider.EntityType())
	assert.Equal(t, models.EntityEvent, CancelEvent.EntityType())
	assert.Equal(t, models.EntityQuery, QueryTasks.EntityType())
	assert.Equal(t, models.EntityNone, GeneralChat.EntityType())
}
