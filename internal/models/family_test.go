package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamilyContext_Helpers(t *testing.T) {
	ctx := &FamilyContext{
		FamilyID:    "fam-1",
		CurrentUser: &FamilyMember{ID: "u1", Name: "Sam Rivera", Role: "parent"},
		FamilyMembers: []FamilyMember{
			{ID: "u1", Name: "Sam Rivera", Role: "parent"},
			{ID: "c1", Name: "Lily Rivera", Role: "child", Age: 6},
			{ID: "c2", Name: "Max", Role: "child", Age: 3},
		},
	}

	assert.Equal(t, "u1", ctx.UserID())
	assert.Len(t, ctx.Children(), 2)

	m, ok := ctx.MemberByName("lily")
	require.True(t, ok)
	assert.Equal(t, "c1", m.ID)

	_, ok = ctx.MemberByName("Martha")
	assert.False(t, ok)

	var nilCtx *FamilyContext
	assert.Equal(t, "", nilCtx.UserID())
	assert.Nil(t, nilCtx.Children())
}

func TestFamilyContext_AppendRecentIsBounded(t *testing.T) {
	ctx := &FamilyContext{}
	for i := 0; i < 5; i++ {
		ctx.AppendRecent(RecentMessage{Role: "user", Text: string(rune('a' + i)), Timestamp: time.Now()}, 3)
	}
	require.Len(t, ctx.RecentMessages, 3)
	assert.Equal(t, "c", ctx.RecentMessages[0].Text)
	assert.Equal(t, "e", ctx.RecentMessages[2].Text)
}

func TestNewBundle_FieldsPresentAndEmpty(t *testing.T) {
	raw, err := json.Marshal(NewBundle(EntityEvent))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "event", decoded["entityType"])

	event := decoded["event"].(map[string]interface{})
	for _, field := range []string{"title", "date", "time", "location", "eventType", "childName"} {
		assert.Equal(t, "", event[field], field)
	}
	assert.Equal(t, []interface{}{}, event["attendees"])

	query := NewBundle(EntityQuery)
	assert.Equal(t, EntityQuery, query.EntityType)
	assert.Nil(t, query.Provider)
	assert.Nil(t, query.Event)
}
