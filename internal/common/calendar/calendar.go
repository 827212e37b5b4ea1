// Package calendar implements the calendar collaborator on top of the
// family document store.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"family-assistant/internal/common/store"
	"family-assistant/internal/models"
)

var ErrCalendarFailed = errors.New("CALENDAR_FAILED")

// EventSpec describes an event to create. ID is optional; without it the
// event ID is derived from the family, title, start and child.
type EventSpec struct {
	ID        string
	FamilyID  string
	Title     string
	Start     time.Time
	Duration  time.Duration
	AllDay    bool
	Location  string
	EventType string
	ChildName string
	Attendees []string
	CreatedBy string
}

// CreateResult reports the stored event. Existing is set when the event was
// already stored under the same ID, as on a retried request.
type CreateResult struct {
	Success  bool   `json:"success"`
	EventID  string `json:"eventId"`
	Existing bool   `json:"existing,omitempty"`
}

// Calendar is the collaborator contract used by event handlers.
type Calendar interface {
	CreateEvent(ctx context.Context, spec EventSpec) (*CreateResult, error)
	DeleteEvent(ctx context.Context, id string) error
	GetEventsForRange(ctx context.Context, start, end time.Time, familyID string) ([]models.Event, error)
}

const defaultDuration = time.Hour

// StoreCalendar keeps events in the events collection.
type StoreCalendar struct {
	store store.Store
	now   func() time.Time
}

func NewStoreCalendar(s store.Store) *StoreCalendar {
	return &StoreCalendar{store: s, now: time.Now}
}

func (c *StoreCalendar) CreateEvent(ctx context.Context, spec EventSpec) (*CreateResult, error) {
	if spec.FamilyID == "" || spec.Title == "" || spec.Start.IsZero() {
		return nil, fmt.Errorf("%w: family, title and start are required", ErrCalendarFailed)
	}
	duration := spec.Duration
	if duration <= 0 {
		duration = defaultDuration
	}
	if spec.AllDay {
		duration = 24 * time.Hour
	}

	id := spec.ID
	if id == "" {
		id = store.DocumentID(spec.FamilyID, models.CollectionEvents, strings.ToLower(strings.TrimSpace(spec.Title)), spec.Start.UTC().Format(time.RFC3339), strings.ToLower(spec.ChildName))
	}
	event := models.Event{
		ID:        id,
		FamilyID:  spec.FamilyID,
		Title:     spec.Title,
		Start:     spec.Start,
		End:       spec.Start.Add(duration),
		AllDay:    spec.AllDay,
		Location:  spec.Location,
		EventType: spec.EventType,
		ChildName: spec.ChildName,
		Attendees: spec.Attendees,
		CreatedBy: spec.CreatedBy,
		CreatedAt: c.now().UTC(),
	}
	if err := c.store.Create(ctx, models.CollectionEvents, event.ID, event.FamilyID, event); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return &CreateResult{Success: true, EventID: event.ID, Existing: true}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCalendarFailed, err)
	}
	return &CreateResult{Success: true, EventID: event.ID}, nil
}

func (c *StoreCalendar) DeleteEvent(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, models.CollectionEvents, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrCalendarFailed, err)
	}
	return nil
}

// GetEventsForRange returns the family's events starting in [start, end),
// earliest first.
func (c *StoreCalendar) GetEventsForRange(ctx context.Context, start, end time.Time, familyID string) ([]models.Event, error) {
	docs, err := c.store.Query(ctx, models.CollectionEvents, familyID, nil, store.QueryOptions{Limit: 500, Ascending: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalendarFailed, err)
	}
	events, err := store.Decode[models.Event](docs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalendarFailed, err)
	}

	var out []models.Event
	for _, e := range events {
		if !e.Start.Before(start) && e.Start.Before(end) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}
