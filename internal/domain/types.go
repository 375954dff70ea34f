package domain

import "encoding/json"

// Epic is a node in the goal hierarchy rendered into the mandalart grid
type Epic struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Depth       int       `json:"depth"`
	Position    *Position `json:"position,omitempty"`
	CoreEpicID  *int64    `json:"core_epic_id"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   *string   `json:"updated_at"`
	Subs        []Epic    `json:"subs"`
}

// EpicCreate is the request body for creating an epic
type EpicCreate struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Position    *Position `json:"position,omitempty"`
	CoreEpicID  *int64    `json:"core_epic_id,omitempty"`
}

// EpicUpdate is a partial update: only fields that are set are sent.
// CoreEpicID distinguishes "absent" from an explicit null (detach from parent).
type EpicUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Depth       *int
	Position    *Position
	CoreEpicID  Optional[int64]
}

func (u EpicUpdate) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)
	if u.Title != nil {
		m["title"] = *u.Title
	}
	if u.Description != nil {
		m["description"] = *u.Description
	}
	if u.Status != nil {
		m["status"] = *u.Status
	}
	if u.Depth != nil {
		m["depth"] = *u.Depth
	}
	if u.Position != nil {
		m["position"] = u.Position
	}
	if u.CoreEpicID.Set {
		m["core_epic_id"] = u.CoreEpicID.Value
	}
	return json.Marshal(m)
}

func (u *EpicUpdate) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title       *string         `json:"title"`
		Description *string         `json:"description"`
		Status      *string         `json:"status"`
		Depth       *int            `json:"depth"`
		Position    *Position       `json:"position"`
		CoreEpicID  Optional[int64] `json:"core_epic_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = EpicUpdate(raw)
	return nil
}

// Message is the confirmation body returned by bulk and habit deletes
type Message struct {
	Message string `json:"message"`
}

// Ptr returns a pointer to v, for building optional request fields
func Ptr[T any](v T) *T {
	return &v
}
