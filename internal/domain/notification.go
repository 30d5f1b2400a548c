package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

const (
	MaxTitleLength = 255
	MaxTagLength   = 64
)

// Notification is one message owed to one user. It is never deleted here and
// its read flag only ever moves from false to true.
type Notification struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	Title     string         `json:"title" db:"title"`
	Body      string         `json:"body" db:"body"`
	URL       *string        `json:"url,omitempty" db:"url"`
	Tag       *string        `json:"tag,omitempty" db:"tag"`
	Metadata  types.JSONText `json:"metadata,omitempty" db:"metadata"`
	Read      bool           `json:"read" db:"is_read"`
	ReadAt    *time.Time     `json:"read_at,omitempty" db:"read_at"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// NotificationPayload is what a caller hands to the dispatcher.
type NotificationPayload struct {
	Title    string         `json:"title" validate:"required,max=255"`
	Body     string         `json:"body" validate:"max=4096"`
	URL      string         `json:"url,omitempty" validate:"omitempty,max=2048"`
	Tag      string         `json:"tag,omitempty" validate:"omitempty,max=64"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
