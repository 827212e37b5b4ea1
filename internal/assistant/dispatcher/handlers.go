package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"family-assistant/internal/assistant/entities"
	"family-assistant/internal/assistant/intent"
	"family-assistant/internal/assistant/state"
	"family-assistant/internal/common/calendar"
	apperrors "family-assistant/internal/common/errors"
	"family-assistant/internal/common/eventbus"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/common/store"
	"family-assistant/internal/models"
)

// ProviderSearch is the provider full-text index.
type ProviderSearch interface {
	Index(ctx context.Context, provider models.Provider) error
	Search(ctx context.Context, familyID, text, providerType string, size int) ([]models.Provider, error)
}

const (
	calendarWindow = 7 * 24 * time.Hour
	cancelWindow   = 60 * 24 * time.Hour
	listLimit      = 50
)

// Actions implements the handler for every action and query intent.
type Actions struct {
	store    store.Store
	calendar calendar.Calendar
	search   ProviderSearch
	bus      eventbus.Publisher
	inviter  eventbus.Inviter
	now      func() time.Time
	logger   logger.Logger
}

type ActionsOption func(*Actions)

func WithSearch(s ProviderSearch) ActionsOption {
	return func(a *Actions) { a.search = s }
}

func WithPublisher(p eventbus.Publisher) ActionsOption {
	return func(a *Actions) { a.bus = p }
}

func WithInviter(i eventbus.Inviter) ActionsOption {
	return func(a *Actions) { a.inviter = i }
}

func NewActions(s store.Store, cal calendar.Calendar, log logger.Logger, opts ...ActionsOption) *Actions {
	a := &Actions{
		store:    s,
		calendar: cal,
		bus:      eventbus.NopPublisher{},
		now:      time.Now,
		logger:   log.With(map[string]interface{}{"component": "actions"}),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RegisterAll binds every handler to d.
func (a *Actions) RegisterAll(d *Dispatcher) {
	d.Register(intent.AddProvider, a.AddProvider)
	d.Register(intent.AddEvent, a.AddEvent)
	d.Register(intent.CancelEvent, a.CancelEvent)
	d.Register(intent.AddTask, a.AddTask)
	d.Register(intent.CompleteTask, a.CompleteTask)
	d.Register(intent.TrackGrowth, a.TrackGrowth)
	d.Register(intent.QueryCalendar, a.QueryCalendar)
	d.Register(intent.QueryTasks, a.QueryTasks)
	d.Register(intent.QueryProviders, a.QueryProviders)
	d.Register(intent.QueryGrowth, a.QueryGrowth)
}

func (a *Actions) today(fc *models.FamilyContext) time.Time {
	t := a.now()
	if fc != nil && !fc.Today.IsZero() {
		t = fc.Today
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// documentID derives the ID of the document a request creates from the family,
// the day, the normalized message and the identifying fields. A retried
// request maps to the same document.
func (a *Actions) documentID(req Request, collection string, fields ...string) string {
	parts := []string{req.Identity.FamilyID, collection, a.today(req.Family).Format("2006-01-02"), state.NormalizeText(req.Message)}
	for _, f := range fields {
		parts = append(parts, strings.ToLower(strings.TrimSpace(f)))
	}
	return store.DocumentID(parts...)
}

// create stores doc and reports whether it is new. A document already stored
// under id was written by an earlier attempt of the same request.
func (a *Actions) create(ctx context.Context, collection, id, familyID string, doc interface{}) (bool, error) {
	err := a.store.Create(ctx, collection, id, familyID, doc)
	if errors.Is(err, store.ErrAlreadyExists) {
		a.logger.Info("Document already stored, skipping side effects", map[string]interface{}{
			"collection": collection,
			"id":         id,
		})
		return false, nil
	}
	return err == nil, err
}

func (a *Actions) notify(ctx context.Context, kind, familyID, entityID string, payload map[string]interface{}) {
	a.bus.Notify(ctx, eventbus.Notification{
		Type:       kind,
		FamilyID:   familyID,
		EntityID:   entityID,
		Payload:    payload,
		OccurredAt: a.now().UTC(),
	})
}

func (a *Actions) AddProvider(ctx context.Context, req Request) (*models.ActionResult, error) {
	p := req.Entities.Provider
	if p == nil || p.Name == "" {
		return nil, apperrors.NewClarificationNeededError("provider's name")
	}

	provider := models.Provider{
		FamilyID:  req.Identity.FamilyID,
		Name:      p.Name,
		Type:      p.Type,
		Specialty: p.Specialty,
		Phone:     p.Phone,
		Email:     p.Email,
		Address:   p.Address,
		ChildName: p.ChildName,
		Notes:     p.Notes,
		CreatedBy: req.Identity.UserID,
		CreatedAt: a.now().UTC(),
	}
	if provider.Type == "" {
		provider.Type = "other"
	}
	provider.ID = a.documentID(req, models.CollectionProviders, provider.Name, provider.Type, provider.ChildName)
	created, err := a.create(ctx, models.CollectionProviders, provider.ID, provider.FamilyID, provider)
	if err != nil {
		return nil, err
	}
	if created {
		if a.search != nil {
			if err := a.search.Index(ctx, provider); err != nil {
				a.logger.Warn("Failed to index provider", map[string]interface{}{"providerId": provider.ID, "error": err.Error()})
			}
		}
		a.notify(ctx, eventbus.ProviderAdded, provider.FamilyID, provider.ID, map[string]interface{}{"name": provider.Name, "type": provider.Type})
	}

	message := fmt.Sprintf("Added %s to the family's %s providers.", provider.Name, provider.Type)
	if provider.ChildName != "" {
		message = fmt.Sprintf("Added %s as %s's %s provider.", provider.Name, provider.ChildName, provider.Type)
	}
	return models.Succeeded(message, map[string]interface{}{"provider": provider}), nil
}

func (a *Actions) AddEvent(ctx context.Context, req Request) (*models.ActionResult, error) {
	e := req.Entities.Event
	if e == nil || e.Title == "" {
		return nil, apperrors.NewClarificationNeededError("event's name")
	}
	if e.Date == "" {
		return nil, apperrors.NewClarificationNeededError("date for the event")
	}

	loc := a.today(req.Family).Location()
	start, allDay, err := eventStart(e.Date, e.Time, loc)
	if err != nil {
		return nil, apperrors.NewClarificationNeededError("date and time for the event")
	}

	created, err := a.calendar.CreateEvent(ctx, calendar.EventSpec{
		ID:        a.documentID(req, models.CollectionEvents, e.Title, start.UTC().Format(time.RFC3339), e.ChildName),
		FamilyID:  req.Identity.FamilyID,
		Title:     e.Title,
		Start:     start,
		AllDay:    allDay,
		Location:  e.Location,
		EventType: e.EventType,
		ChildName: e.ChildName,
		Attendees: e.Attendees,
		CreatedBy: req.Identity.UserID,
	})
	if err != nil {
		return nil, err
	}
	if created == nil || !created.Success {
		return models.Failed("I wasn't able to add that to the calendar. Could we try again?", "calendar rejected event"), nil
	}

	if !created.Existing {
		a.sendInvites(ctx, req.Family, e, start)
		a.notify(ctx, eventbus.EventCreated, req.Identity.FamilyID, created.EventID, map[string]interface{}{"title": e.Title, "date": e.Date})
	}

	subject := e.Title
	if e.ChildName != "" {
		subject = fmt.Sprintf("%s for %s", e.Title, e.ChildName)
	}
	return models.Succeeded(
		fmt.Sprintf("Added %s on %s.", subject, describeStart(start, allDay)),
		map[string]interface{}{"eventId": created.EventID, "date": e.Date, "time": e.Time},
	), nil
}

// sendInvites emails attendees who are family members with an address.
func (a *Actions) sendInvites(ctx context.Context, fc *models.FamilyContext, e *models.EventFields, start time.Time) {
	if a.inviter == nil {
		return
	}
	var to []string
	for _, name := range e.Attendees {
		if m, ok := fc.MemberByName(name); ok && m.Email != "" {
			to = append(to, m.Email)
		}
	}
	if len(to) == 0 {
		return
	}
	if err := a.inviter.SendInvite(ctx, eventbus.Invite{To: to, Title: e.Title, Start: start, Location: e.Location}); err != nil {
		a.logger.Warn("Failed to send invites", map[string]interface{}{"recipients": len(to), "error": err.Error()})
	}
}

func (a *Actions) CancelEvent(ctx context.Context, req Request) (*models.ActionResult, error) {
	e := req.Entities.Event
	if e == nil {
		e = &models.EventFields{}
	}

	var target *models.Event
	today := a.today(req.Family)
	if e.EventID == "" {
		events, err := a.calendar.GetEventsForRange(ctx, today, today.Add(cancelWindow), req.Identity.FamilyID)
		if err != nil {
			return nil, err
		}
		target = matchEvent(events, e)
		if target == nil {
			return nil, apperrors.NewClarificationNeededError("name or date of the event to cancel")
		}
	}

	id := e.EventID
	if target != nil {
		id = target.ID
	}
	if err := a.calendar.DeleteEvent(ctx, id); err != nil {
		return nil, err
	}
	a.notify(ctx, eventbus.EventCancelled, req.Identity.FamilyID, id, nil)

	message := "Cancelled the event."
	if target != nil {
		message = fmt.Sprintf("Cancelled %s on %s.", target.Title, describeStart(target.Start, target.AllDay))
	}
	return models.Succeeded(message, map[string]interface{}{"eventId": id}), nil
}

// matchEvent picks the earliest event matching the title words or date.
func matchEvent(events []models.Event, e *models.EventFields) *models.Event {
	title := strings.ToLower(e.Title)
	for i := range events {
		ev := &events[i]
		switch {
		case title != "" && (strings.Contains(strings.ToLower(ev.Title), title) || strings.Contains(title, strings.ToLower(ev.Title))):
			return ev
		case title == "" && e.Date != "" && ev.Start.Format("2006-01-02") == e.Date:
			return ev
		}
	}
	return nil
}

func (a *Actions) AddTask(ctx context.Context, req Request) (*models.ActionResult, error) {
	t := req.Entities.Task
	if t == nil || t.Title == "" {
		return nil, apperrors.NewClarificationNeededError("task you'd like to add")
	}
	task := models.Task{
		FamilyID:  req.Identity.FamilyID,
		Title:     t.Title,
		Assignee:  t.Assignee,
		DueDate:   t.DueDate,
		Priority:  t.Priority,
		Status:    "open",
		CreatedBy: req.Identity.UserID,
		CreatedAt: a.now().UTC(),
	}
	if task.Priority == "" {
		task.Priority = "medium"
	}
	task.ID = a.documentID(req, models.CollectionTasks, task.Title, task.Assignee, task.DueDate)
	created, err := a.create(ctx, models.CollectionTasks, task.ID, task.FamilyID, task)
	if err != nil {
		return nil, err
	}
	if created {
		a.notify(ctx, eventbus.TaskAdded, task.FamilyID, task.ID, map[string]interface{}{"title": task.Title})
	}

	message := fmt.Sprintf("Added the task %q.", task.Title)
	if due, err := time.Parse("2006-01-02", task.DueDate); err == nil {
		message = fmt.Sprintf("Added the task %q, due %s.", task.Title, due.Format("Monday, January 2"))
	}
	return models.Succeeded(message, map[string]interface{}{"task": task}), nil
}

func (a *Actions) CompleteTask(ctx context.Context, req Request) (*models.ActionResult, error) {
	t := req.Entities.Task
	if t == nil || (t.TaskID == "" && t.Title == "") {
		return nil, apperrors.NewClarificationNeededError("task that was finished")
	}

	open, err := a.openTasks(ctx, req.Identity.FamilyID)
	if err != nil {
		return nil, err
	}
	var target *models.Task
	for i := range open {
		if matchTask(open[i], t) {
			target = &open[i]
			break
		}
	}
	if target == nil {
		return nil, apperrors.NewClarificationNeededError("name of an open task")
	}

	now := a.now().UTC()
	if err := a.store.Update(ctx, models.CollectionTasks, target.ID, map[string]interface{}{"status": "done", "completedAt": now}); err != nil {
		return nil, err
	}
	a.notify(ctx, eventbus.TaskCompleted, req.Identity.FamilyID, target.ID, map[string]interface{}{"title": target.Title})
	return models.Succeeded(fmt.Sprintf("Marked %q as done.", target.Title), map[string]interface{}{"taskId": target.ID}), nil
}

func matchTask(task models.Task, t *models.TaskFields) bool {
	if t.TaskID != "" {
		return task.ID == t.TaskID
	}
	have, want := strings.ToLower(task.Title), strings.ToLower(t.Title)
	return strings.Contains(have, want) || strings.Contains(want, have)
}

func (a *Actions) openTasks(ctx context.Context, familyID string) ([]models.Task, error) {
	docs, err := a.store.Query(ctx, models.CollectionTasks, familyID, store.Filter{"status": "open"}, store.QueryOptions{Limit: listLimit})
	if err != nil {
		return nil, err
	}
	return store.Decode[models.Task](docs)
}

func (a *Actions) TrackGrowth(ctx context.Context, req Request) (*models.ActionResult, error) {
	g := req.Entities.Growth
	if g == nil || g.ChildName == "" {
		return nil, apperrors.NewClarificationNeededError("child's name")
	}
	value, err := strconv.ParseFloat(g.Value, 64)
	if err != nil || value <= 0 {
		return nil, apperrors.NewClarificationNeededError("measurement value")
	}

	record := models.GrowthRecord{
		FamilyID:    req.Identity.FamilyID,
		ChildName:   g.ChildName,
		Measurement: g.Measurement,
		Value:       value,
		Unit:        g.Unit,
		Date:        g.Date,
		RecordedBy:  req.Identity.UserID,
		CreatedAt:   a.now().UTC(),
	}
	if record.Measurement == "" {
		record.Measurement = "height"
	}
	record.ID = a.documentID(req, models.CollectionGrowth, record.ChildName, record.Measurement, g.Value, record.Unit, record.Date)
	created, err := a.create(ctx, models.CollectionGrowth, record.ID, record.FamilyID, record)
	if err != nil {
		return nil, err
	}
	if created {
		a.notify(ctx, eventbus.GrowthRecorded, record.FamilyID, record.ID, map[string]interface{}{"childName": record.ChildName})
	}

	return models.Succeeded(
		fmt.Sprintf("Recorded %s's %s: %s %s.", record.ChildName, strings.ReplaceAll(record.Measurement, "_", " "), g.Value, record.Unit),
		map[string]interface{}{"record": record},
	), nil
}

func (a *Actions) QueryCalendar(ctx context.Context, req Request) (*models.ActionResult, error) {
	today := a.today(req.Family)
	events, err := a.calendar.GetEventsForRange(ctx, today, today.Add(calendarWindow), req.Identity.FamilyID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return models.Succeeded("Nothing is on the calendar for the next 7 days.", map[string]interface{}{"events": []models.Event{}}), nil
	}

	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, fmt.Sprintf("%s: %s", describeStart(e.Start, e.AllDay), e.Title))
	}
	return models.Succeeded(
		fmt.Sprintf("Here's what's coming up this week:\n%s", bulletList(lines)),
		map[string]interface{}{"events": events},
	), nil
}

func (a *Actions) QueryTasks(ctx context.Context, req Request) (*models.ActionResult, error) {
	tasks, err := a.openTasks(ctx, req.Identity.FamilyID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return models.Succeeded("There are no open tasks right now.", map[string]interface{}{"tasks": []models.Task{}}), nil
	}

	sort.SliceStable(tasks, func(i, j int) bool { return dueBefore(tasks[i], tasks[j]) })
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		line := t.Title
		if t.Assignee != "" {
			line += " (" + t.Assignee + ")"
		}
		if t.DueDate != "" {
			line += ", due " + t.DueDate
		}
		lines = append(lines, line)
	}
	header := fmt.Sprintf("There are %d open tasks:", len(tasks))
	if len(tasks) == 1 {
		header = "There is 1 open task:"
	}
	return models.Succeeded(
		header+"\n"+bulletList(lines),
		map[string]interface{}{"tasks": tasks},
	), nil
}

// dueBefore orders dated tasks first, earliest due date first.
func dueBefore(a, b models.Task) bool {
	switch {
	case a.DueDate == "":
		return false
	case b.DueDate == "":
		return true
	}
	return a.DueDate < b.DueDate
}

func (a *Actions) QueryProviders(ctx context.Context, req Request) (*models.ActionResult, error) {
	familyID := req.Identity.FamilyID
	providerType := entities.DetectProviderType(req.Message)

	var providers []models.Provider
	if a.search != nil {
		found, err := a.search.Search(ctx, familyID, req.Message, providerType, 20)
		if err != nil {
			a.logger.Warn("Provider search failed, reading from store", map[string]interface{}{"error": err.Error()})
		}
		providers = found
	}
	if len(providers) == 0 {
		docs, err := a.store.Query(ctx, models.CollectionProviders, familyID, typeFilter(providerType), store.QueryOptions{Limit: listLimit})
		if err != nil {
			return nil, err
		}
		if providers, err = store.Decode[models.Provider](docs); err != nil {
			return nil, err
		}
	}

	if len(providers) == 0 {
		return models.Succeeded("There are no providers saved yet.", map[string]interface{}{"providers": []models.Provider{}}), nil
	}
	lines := make([]string, 0, len(providers))
	for _, p := range providers {
		line := fmt.Sprintf("%s (%s)", p.Name, p.Type)
		if p.Phone != "" {
			line += ", " + p.Phone
		}
		lines = append(lines, line)
	}
	return models.Succeeded(
		fmt.Sprintf("Here are the saved providers:\n%s", bulletList(lines)),
		map[string]interface{}{"providers": providers},
	), nil
}

func typeFilter(providerType string) store.Filter {
	if providerType == "" {
		return nil
	}
	return store.Filter{"type": providerType}
}

func (a *Actions) QueryGrowth(ctx context.Context, req Request) (*models.ActionResult, error) {
	docs, err := a.store.Query(ctx, models.CollectionGrowth, req.Identity.FamilyID, nil, store.QueryOptions{Limit: 200})
	if err != nil {
		return nil, err
	}
	records, err := store.Decode[models.GrowthRecord](docs)
	if err != nil {
		return nil, err
	}
	latest := latestGrowth(records)
	if len(latest) == 0 {
		return models.Succeeded("No growth measurements have been recorded yet.", map[string]interface{}{"records": []models.GrowthRecord{}}), nil
	}

	lines := make([]string, 0, len(latest))
	for _, r := range latest {
		lines = append(lines, fmt.Sprintf("%s %s: %s %s (%s)",
			r.ChildName, strings.ReplaceAll(r.Measurement, "_", " "), strconv.FormatFloat(r.Value, 'f', -1, 64), r.Unit, r.Date))
	}
	return models.Succeeded(
		fmt.Sprintf("Latest measurements:\n%s", bulletList(lines)),
		map[string]interface{}{"records": latest},
	), nil
}

// latestGrowth keeps the newest record per child and measurement, sorted by
// child then measurement.
func latestGrowth(records []models.GrowthRecord) []models.GrowthRecord {
	newest := make(map[string]models.GrowthRecord)
	for _, r := range records {
		key := r.ChildName + "\x00" + r.Measurement
		cur, ok := newest[key]
		if !ok || r.Date > cur.Date || (r.Date == cur.Date && r.CreatedAt.After(cur.CreatedAt)) {
			newest[key] = r
		}
	}
	out := make([]models.GrowthRecord, 0, len(newest))
	for _, r := range newest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChildName != out[j].ChildName {
			return out[i].ChildName < out[j].ChildName
		}
		return out[i].Measurement < out[j].Measurement
	})
	return out
}

// eventStart combines a YYYY-MM-DD date and optional HH:MM time.
func eventStart(date, clock string, loc *time.Location) (time.Time, bool, error) {
	if clock == "" {
		t, err := time.ParseInLocation("2006-01-02", date, loc)
		return t, true, err
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	return t, false, err
}

func describeStart(start time.Time, allDay bool) string {
	if allDay {
		return start.Format("Monday, January 2")
	}
	return start.Format("Monday, January 2 at 3:04 PM")
}

func bulletList(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(l)
	}
	return b.String()
}
