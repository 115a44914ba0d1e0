package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a processed feed item as persisted in the store.
// ID is derived deterministically from the owning user and the source
// time field, which is what makes the merge step idempotent.
type Notification struct {
	ID        string     `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	DeviceID  uuid.UUID  `json:"device_id"`
	Title     string     `json:"title"`
	Body      string     `json:"body,omitempty"`
	DateLabel string     `json:"date_label"` // "Today", "Yesterday", or a calendar date
	Timestamp int64      `json:"timestamp"`  // canonical epoch-ms
	IsRead    bool       `json:"is_read"`
	RawText   string     `json:"raw_text"`
	RawTime   string     `json:"raw_time"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
