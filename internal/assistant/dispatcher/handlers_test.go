package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"family-assistant/internal/assistant/identity"
	"family-assistant/internal/common/calendar"
	apperrors "family-assistant/internal/common/errors"
	"family-assistant/internal/common/eventbus"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/common/store/storetest"
	"family-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearch struct {
	mu      sync.Mutex
	indexed []models.Provider
	err     error
}

func (f *fakeSearch) Index(_ context.Context, p models.Provider) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, p)
	return nil
}

func (f *fakeSearch) Search(context.Context, string, string, string, int) ([]models.Provider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

type fakeInviter struct {
	invites []eventbus.Invite
}

func (f *fakeInviter) SendInvite(_ context.Context, inv eventbus.Invite) error {
	f.invites = append(f.invites, inv)
	return nil
}

// monday is 2026-10-12.
var monday = time.Date(2026, 10, 12, 8, 0, 0, 0, time.UTC)

type actionsFixture struct {
	docs    *storetest.Memory
	bus     *fakeBus
	inviter *fakeInviter
	actions *Actions
	family  *models.FamilyContext
}

func newActionsFixture(t *testing.T, opts ...ActionsOption) *actionsFixture {
	t.Helper()
	f := &actionsFixture{
		docs:    storetest.NewMemory(),
		bus:     &fakeBus{},
		inviter: &fakeInviter{},
		family: &models.FamilyContext{
			FamilyID: "fam-1",
			FamilyMembers: []models.FamilyMember{
				{ID: "u-1", Name: "Jordan Rivera", Role: "parent", Email: "jordan@example.com"},
				{ID: "u-2", Name: "Sam Rivera", Role: "parent"},
				{ID: "c-1", Name: "Lily Rivera", Role: "child"},
			},
			Today: monday,
		},
	}
	opts = append([]ActionsOption{WithPublisher(f.bus), WithInviter(f.inviter)}, opts...)
	f.actions = NewActions(f.docs, calendar.NewStoreCalendar(f.docs), logger.NewTestLogger(t), opts...)
	f.actions.now = func() time.Time { return monday }
	return f
}

func (f *actionsFixture) request(message string, bundle *models.EntityBundle) Request {
	return Request{
		Message:  message,
		Identity: identity.Identity{FamilyID: "fam-1", UserID: "u-1", Tier: identity.TierExplicit},
		Entities: bundle,
		Family:   f.family,
	}
}

func eventBundle(e models.EventFields) *models.EntityBundle {
	b := models.NewBundle(models.EntityEvent)
	*b.Event = e
	return b
}

func TestActions_AddEventThenQueryAndCancel(t *testing.T) {
	f := newActionsFixture(t)
	ctx := context.Background()

	res, err := f.actions.AddEvent(ctx, f.request("Schedule a dentist appointment for Lily next Thursday at 3pm", eventBundle(models.EventFields{
		Title:     "Dentist appointment",
		Date:      "2026-10-15",
		Time:      "15:00",
		EventType: "doctor",
		ChildName: "Lily",
		Attendees: []string{"Jordan", "Sam"},
	})))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "Added Dentist appointment for Lily on Thursday, October 15 at 3:00 PM.", res.Message)
	require.Len(t, f.inviter.invites, 1)
	assert.Equal(t, []string{"jordan@example.com"}, f.inviter.invites[0].To)

	listed, err := f.actions.QueryCalendar(ctx, f.request("what's on this week?", models.NewBundle(models.EntityQuery)))
	require.NoError(t, err)
	assert.Contains(t, listed.Message, "Thursday, October 15 at 3:00 PM: Dentist appointment")

	cancelled, err := f.actions.CancelEvent(ctx, f.request("cancel the dentist appointment", eventBundle(models.EventFields{Title: "dentist"})))
	require.NoError(t, err)
	assert.Contains(t, cancelled.Message, "Cancelled Dentist appointment")
	assert.Zero(t, f.docs.Count(models.CollectionEvents))
	assert.Equal(t, []string{eventbus.EventCreated, eventbus.EventCancelled}, f.bus.Types())
}

func TestActions_AllDayEvent(t *testing.T) {
	f := newActionsFixture(t)

	res, err := f.actions.AddEvent(context.Background(), f.request("Lily's birthday party on Saturday", eventBundle(models.EventFields{
		Title: "Birthday party",
		Date:  "2026-10-17",
	})))
	require.NoError(t, err)
	assert.Equal(t, "Added Birthday party on Saturday, October 17.", res.Message)
	assert.Empty(t, f.inviter.invites)
}

func TestActions_TaskLifecycle(t *testing.T) {
	f := newActionsFixture(t)
	ctx := context.Background()

	add := func(title, due string) {
		b := models.NewBundle(models.EntityTask)
		b.Task.Title, b.Task.DueDate = title, due
		res, err := f.actions.AddTask(ctx, f.request("add "+title, b))
		require.NoError(t, err)
		require.True(t, res.Success)
	}
	add("Buy milk", "")
	add("Pick up prescription", "2026-10-16")

	listed, err := f.actions.QueryTasks(ctx, f.request("what tasks do I have?", models.NewBundle(models.EntityQuery)))
	require.NoError(t, err)
	assert.Contains(t, listed.Message, "There are 2 open tasks:\n- Pick up prescription, due 2026-10-16\n- Buy milk")

	done := models.NewBundle(models.EntityTask)
	done.Task.Title = "milk"
	res, err := f.actions.CompleteTask(ctx, f.request("finished the milk", done))
	require.NoError(t, err)
	assert.Equal(t, `Marked "Buy milk" as done.`, res.Message)

	listed, err = f.actions.QueryTasks(ctx, f.request("what tasks do I have?", models.NewBundle(models.EntityQuery)))
	require.NoError(t, err)
	assert.Contains(t, listed.Message, "There is 1 open task:\n- Pick up prescription")
}

func TestActions_GrowthLatestPerChild(t *testing.T) {
	f := newActionsFixture(t)
	ctx := context.Background()

	record := func(value, date string) {
		b := models.NewBundle(models.EntityGrowth)
		*b.Growth = models.GrowthFields{ChildName: "Lily", Measurement: "height", Value: value, Unit: "in", Date: date}
		res, err := f.actions.TrackGrowth(ctx, f.request("Lily is "+value+" inches", b))
		require.NoError(t, err)
		require.True(t, res.Success)
	}
	record("41", "2026-06-01")
	record("42.5", "2026-10-12")

	res, err := f.actions.QueryGrowth(ctx, f.request("how tall is Lily?", models.NewBundle(models.EntityQuery)))
	require.NoError(t, err)
	assert.Contains(t, res.Message, "Lily height: 42.5 in (2026-10-12)")
	assert.NotContains(t, res.Message, "41 in")
}

func TestActions_QueryProvidersFallsBackToStore(t *testing.T) {
	f := newActionsFixture(t, WithSearch(&fakeSearch{err: errors.New("es unavailable")}))
	ctx := context.Background()

	b := models.NewBundle(models.EntityProvider)
	*b.Provider = models.ProviderFields{Name: "Martha Diaz", Type: "childcare", Phone: "555-123-4567"}
	_, err := f.actions.AddProvider(ctx, f.request("add babysitter Martha Diaz", b))
	require.NoError(t, err)

	res, err := f.actions.QueryProviders(ctx, f.request("who is our babysitter?", models.NewBundle(models.EntityQuery)))
	require.NoError(t, err)
	assert.Contains(t, res.Message, "Martha Diaz (childcare), 555-123-4567")
}

func TestActions_MissingFieldsNeedClarification(t *testing.T) {
	f := newActionsFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() (*models.ActionResult, error)
	}{
		{"provider without name", func() (*models.ActionResult, error) {
			return f.actions.AddProvider(ctx, f.request("add a sitter", models.NewBundle(models.EntityProvider)))
		}},
		{"event without date", func() (*models.ActionResult, error) {
			return f.actions.AddEvent(ctx, f.request("add practice", eventBundle(models.EventFields{Title: "Practice"})))
		}},
		{"task without title", func() (*models.ActionResult, error) {
			return f.actions.AddTask(ctx, f.request("add a task", models.NewBundle(models.EntityTask)))
		}},
		{"growth without value", func() (*models.ActionResult, error) {
			b := models.NewBundle(models.EntityGrowth)
			b.Growth.ChildName = "Lily"
			return f.actions.TrackGrowth(ctx, f.request("Lily grew", b))
		}},
		{"cancel with no match", func() (*models.ActionResult, error) {
			return f.actions.CancelEvent(ctx, f.request("cancel recital", eventBundle(models.EventFields{Title: "recital"})))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.run()
			assert.Nil(t, res)
			assert.Equal(t, apperrors.ErrCodeClarificationNeeded, apperrors.CodeOf(err))
		})
	}
}

func TestActions_StoreFailurePropagates(t *testing.T) {
	f := newActionsFixture(t)
	f.docs.FailWith = errors.New("connection reset")

	b := models.NewBundle(models.EntityTask)
	b.Task.Title = "Buy milk"
	_, err := f.actions.AddTask(context.Background(), f.request("add buy milk", b))
	assert.EqualError(t, err, "connection reset")
	assert.Empty(t, f.bus.Types())
}

func TestActions_AddHandlersAreRetrySafe(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		message    string
		bundle     func() *models.EntityBundle
		run        func(a *Actions) Handler
	}{
		{
			name:       "provider",
			collection: models.CollectionProviders,
			message:    "add babysitter Martha Diaz",
			bundle: func() *models.EntityBundle {
				b := models.NewBundle(models.EntityProvider)
				*b.Provider = models.ProviderFields{Name: "Martha Diaz", Type: "childcare"}
				return b
			},
			run: func(a *Actions) Handler { return a.AddProvider },
		},
		{
			name:       "event",
			collection: models.CollectionEvents,
			message:    "Schedule a dentist appointment for Lily on Thursday at 3pm",
			bundle: func() *models.EntityBundle {
				return eventBundle(models.EventFields{Title: "Dentist appointment", Date: "2026-10-15", Time: "15:00", ChildName: "Lily", Attendees: []string{"Jordan"}})
			},
			run: func(a *Actions) Handler { return a.AddEvent },
		},
		{
			name:       "task",
			collection: models.CollectionTasks,
			message:    "add buy milk",
			bundle: func() *models.EntityBundle {
				b := models.NewBundle(models.EntityTask)
				b.Task.Title = "Buy milk"
				return b
			},
			run: func(a *Actions) Handler { return a.AddTask },
		},
		{
			name:       "growth",
			collection: models.CollectionGrowth,
			message:    "Lily is 42 inches tall",
			bundle: func() *models.EntityBundle {
				b := models.NewBundle(models.EntityGrowth)
				*b.Growth = models.GrowthFields{ChildName: "Lily", Measurement: "height", Value: "42", Unit: "in"}
				return b
			},
			run: func(a *Actions) Handler { return a.TrackGrowth },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newActionsFixture(t)
			ctx := context.Background()
			h := tt.run(f.actions)

			first, err := h(ctx, f.request(tt.message, tt.bundle()))
			require.NoError(t, err)
			require.True(t, first.Success)

			retried, err := h(ctx, f.request(tt.message, tt.bundle()))
			require.NoError(t, err)
			assert.True(t, retried.Success)
			assert.Equal(t, first.Message, retried.Message)

			assert.Equal(t, 1, f.docs.Count(tt.collection))
			assert.Len(t, f.bus.Types(), 1)
			assert.LessOrEqual(t, len(f.inviter.invites), 1)
		})
	}
}

func TestActions_DistinctRequestsCreateDistinctDocuments(t *testing.T) {
	f := newActionsFixture(t)
	ctx := context.Background()

	for _, title := range []string{"Buy milk", "Buy bread"} {
		b := models.NewBundle(models.EntityTask)
		b.Task.Title = title
		_, err := f.actions.AddTask(ctx, f.request("add "+title, b))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.docs.Count(models.CollectionTasks))
}
