package domain

import (
	"bytes"
	"encoding/json"
)

// HabitStatus is the closed set of habit lifecycle states
type HabitStatus string

const (
	HabitActive    HabitStatus = "active"
	HabitPaused    HabitStatus = "paused"
	HabitCompleted HabitStatus = "completed"
	HabitArchived  HabitStatus = "archived"
)

// HabitStatuses lists every accepted status
var HabitStatuses = []HabitStatus{HabitActive, HabitPaused, HabitCompleted, HabitArchived}

func (s HabitStatus) Valid() bool {
	switch s {
	case HabitActive, HabitPaused, HabitCompleted, HabitArchived:
		return true
	}
	return false
}

// DefaultSchedule is the recurrence attached by CreateForEpic: every day at 9am
const DefaultSchedule = "0 9 * * *"

// MinEffort and MaxEffort bound a commit's effort rating
const (
	MinEffort = 1
	MaxEffort = 5
)

// Habit is a recurring task, optionally attached to an epic
type Habit struct {
	ID               int64       `json:"id"`
	EpicID           *int64      `json:"epic_id"`
	Title            string      `json:"title"`
	Description      *string     `json:"description"`
	Schedule         *string     `json:"schedule"`
	TargetCount      int         `json:"target_count"`
	Status           HabitStatus `json:"status"`
	CurrentCombo     int         `json:"current_combo"`
	BestCombo        int         `json:"best_combo"`
	TotalCompletions int         `json:"total_completions"`
	CreatedAt        string      `json:"created_at"`
	UpdatedAt        *string     `json:"updated_at"`
}

// HabitCreate is the request body for creating a habit
type HabitCreate struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Schedule    *string `json:"schedule,omitempty"`
	TargetCount *int    `json:"target_count,omitempty"`
	EpicID      *int64  `json:"epic_id,omitempty"`
}

// HabitUpdate is a partial update. Nullable columns use Optional so an
// explicit null can clear them.
type HabitUpdate struct {
	Title       *string
	Description Optional[string]
	Schedule    Optional[string]
	TargetCount *int
	Status      *HabitStatus
	EpicID      Optional[int64]
}

func (u HabitUpdate) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)
	if u.Title != nil {
		m["title"] = *u.Title
	}
	if u.Description.Set {
		m["description"] = u.Description.Value
	}
	if u.Schedule.Set {
		m["schedule"] = u.Schedule.Value
	}
	if u.TargetCount != nil {
		m["target_count"] = *u.TargetCount
	}
	if u.Status != nil {
		m["status"] = *u.Status
	}
	if u.EpicID.Set {
		m["epic_id"] = u.EpicID.Value
	}
	return json.Marshal(m)
}

func (u *HabitUpdate) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title       *string          `json:"title"`
		Description Optional[string] `json:"description"`
		Schedule    Optional[string] `json:"schedule"`
		TargetCount *int             `json:"target_count"`
		Status      *HabitStatus     `json:"status"`
		EpicID      Optional[int64]  `json:"epic_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = HabitUpdate(raw)
	return nil
}

// HabitCommit is an immutable record of one instance of habit effort
type HabitCommit struct {
	ID          int64   `json:"id"`
	HabitID     int64   `json:"habit_id"`
	Description *string `json:"description"`
	Effort      int     `json:"effort"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   *string `json:"updated_at"`
}

// CommitCreate is the caller-side commit payload; the habit id comes from the path
type CommitCreate struct {
	Description *string `json:"description,omitempty"`
	Effort      int     `json:"effort"`
}

// HabitCommitCreate is the wire body of a commit, carrying the owning habit
type HabitCommitCreate struct {
	HabitID     int64   `json:"habit_id"`
	Description *string `json:"description,omitempty"`
	Effort      int     `json:"effort"`
}

// Optional marks whether a nullable field was present in a partial update
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns a set Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns a set Optional holding an explicit null
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}
