package models

import "time"

// Document collections in the family store.
const (
	CollectionProviders = "providers"
	CollectionEvents    = "events"
	CollectionTasks     = "tasks"
	CollectionGrowth    = "growth_records"
	CollectionMembers   = "family_members"
)

type Provider struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"familyId"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Specialty string    `json:"specialty,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	ChildName string    `json:"childName,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type Event struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"familyId"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	AllDay    bool      `json:"allDay,omitempty"`
	Location  string    `json:"location,omitempty"`
	EventType string    `json:"eventType,omitempty"`
	ChildName string    `json:"childName,omitempty"`
	Attendees []string  `json:"attendees,omitempty"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type Task struct {
	ID          string     `json:"id"`
	FamilyID    string     `json:"familyId"`
	Title       string     `json:"title"`
	Assignee    string     `json:"assignee,omitempty"`
	DueDate     string     `json:"dueDate,omitempty"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"` // open, done
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type GrowthRecord struct {
	ID          string    `json:"id"`
	FamilyID    string    `json:"familyId"`
	ChildName   string    `json:"childName"`
	Measurement string    `json:"measurement"`
	Value       float64   `json:"value"`
	Unit        string    `json:"unit"`
	Date        string    `json:"date"`
	RecordedBy  string    `json:"recordedBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Membership links an authenticated user to a family.
type Membership struct {
	UserID   string `json:"userId"`
	FamilyID string `json:"familyId"`
	Role     string `json:"role"`
}
