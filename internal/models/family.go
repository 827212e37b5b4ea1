package models

import "time"

// FamilyMember is one person in the household.
type FamilyMember struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"` // parent, child, caregiver
	Age   int    `json:"age,omitempty"`
	Email string `json:"email,omitempty"`
}

// RecentMessage is one entry of the bounded conversation window.
type RecentMessage struct {
	Role      string    `json:"role"` // user or assistant
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// InsightSnapshots holds optional, precomputed domain analytics.
type InsightSnapshots struct {
	LaborBalance map[string]interface{} `json:"laborBalance,omitempty"`
	Predictions  map[string]interface{} `json:"predictions,omitempty"`
}

// FamilyContext is everything the pipeline knows about the caller's family
// for one turn.
type FamilyContext struct {
	FamilyID       string            `json:"familyId"`
	CurrentUser    *FamilyMember     `json:"currentUser,omitempty"`
	FamilyMembers  []FamilyMember    `json:"familyMembers"`
	RecentMessages []RecentMessage   `json:"recentMessages,omitempty"`
	Insights       *InsightSnapshots `json:"insights,omitempty"`
	ChildObserver  bool              `json:"childObserver,omitempty"`
	Today          time.Time         `json:"today,omitempty"`
}

// UserID returns the current user's id, or "".
func (c *FamilyContext) UserID() string {
	if c == nil || c.CurrentUser == nil {
		return ""
	}
	return c.CurrentUser.ID
}

// Children returns the members whose role is child.
func (c *FamilyContext) Children() []FamilyMember {
	if c == nil {
		return nil
	}
	var out []FamilyMember
	for _, m := range c.FamilyMembers {
		if m.Role == "child" {
			out = append(out, m)
		}
	}
	return out
}

// MemberByName finds a member by case-insensitive first name or full name.
func (c *FamilyContext) MemberByName(name string) (FamilyMember, bool) {
	if c == nil || name == "" {
		return FamilyMember{}, false
	}
	for _, m := range c.FamilyMembers {
		if equalFold(m.Name, name) || equalFold(firstWord(m.Name), name) {
			return m, true
		}
	}
	return FamilyMember{}, false
}

// AppendRecent adds msg and keeps at most limit entries, dropping the oldest.
func (c *FamilyContext) AppendRecent(msg RecentMessage, limit int) {
	c.RecentMessages = append(c.RecentMessages, msg)
	if limit > 0 && len(c.RecentMessages) > limit {
		c.RecentMessages = append([]RecentMessage(nil), c.RecentMessages[len(c.RecentMessages)-limit:]...)
	}
}
