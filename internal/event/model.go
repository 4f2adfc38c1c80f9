package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a calendar entry owned by a single user
type Event struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Members   string    `json:"members"`
	Messages  string    `json:"messages"`
	Datetime  time.Time `json:"datetime"`
	UserID    uuid.UUID `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewEvent holds the fields of an event to create
type NewEvent struct {
	Title    string
	Members  string
	Messages string
	Datetime time.Time
}

// Patch is a partial update; nil fields are left unchanged
type Patch struct {
	Title    *string
	Members  *string
	Messages *string
	Datetime *time.Time
}

// Empty reports whether the patch changes nothing
func (p Patch) Empty() bool {
	return p.Title == nil && p.Members == nil && p.Messages == nil && p.Datetime == nil
}

// ListFilter bounds the datetime of listed events; nil bounds are open
type ListFilter struct {
	From *time.Time
	To   *time.Time
}
