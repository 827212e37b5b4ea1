package models

// Entity types carried in EntityBundle.EntityType.
const (
	EntityProvider = "provider"
	EntityEvent    = "event"
	EntityTask     = "task"
	EntityGrowth   = "growth"
	EntityQuery    = "query"
	EntityNone     = "none"
)

// EntityBundle holds the structured fields extracted for an intent.
// EntityType is always set and unresolved fields are empty strings, so the
// JSON form never omits a field for the bundle's type.
type EntityBundle struct {
	EntityType string `json:"entityType"`

	Provider *ProviderFields `json:"provider,omitempty"`
	Event    *EventFields    `json:"event,omitempty"`
	Task     *TaskFields     `json:"task,omitempty"`
	Growth   *GrowthFields   `json:"growth,omitempty"`

	// FallbackUsed marks fields filled by the deterministic tier.
	FallbackUsed bool `json:"fallbackUsed,omitempty"`
}

type ProviderFields struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Specialty string `json:"specialty"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	ChildName string `json:"childName"`
	Notes     string `json:"notes"`
}

type EventFields struct {
	Title     string   `json:"title"`
	Date      string   `json:"date"` // YYYY-MM-DD
	Time      string   `json:"time"` // HH:MM
	Location  string   `json:"location"`
	EventType string   `json:"eventType"`
	ChildName string   `json:"childName"`
	Attendees []string `json:"attendees"`
	EventID   string   `json:"eventId"`
}

type TaskFields struct {
	Title    string `json:"title"`
	Assignee string `json:"assignee"`
	DueDate  string `json:"dueDate"`
	Priority string `json:"priority"`
	TaskID   string `json:"taskId"`
}

type GrowthFields struct {
	ChildName   string `json:"childName"`
	Measurement string `json:"measurement"` // height, weight, head_circumference
	Value       string `json:"value"`
	Unit        string `json:"unit"`
	Date        string `json:"date"`
}

// NewBundle returns a bundle of entityType with every field present and empty.
func NewBundle(entityType string) *EntityBundle {
	b := &EntityBundle{EntityType: entityType}
	switch entityType {
	case EntityProvider:
		b.Provider = &ProviderFields{}
	case EntityEvent:
		b.Event = &EventFields{Attendees: []string{}}
	case EntityTask:
		b.Task = &TaskFields{}
	case EntityGrowth:
		b.Growth = &GrowthFields{}
	}
	return b
}
