package models

import (
	"time"

	"github.com/google/uuid"
)

type EventSeverity string

const (
	SeverityLow    EventSeverity = "low"
	SeverityMedium EventSeverity = "medium"
	SeverityHigh   EventSeverity = "high"
)

// Event is a single wet-detection incident reported by a device.
// ID is unique within the owning device's stream, not globally; the
// (DeviceID, ID) pair identifies an event across the merged view.
type Event struct {
	ID         string        `json:"id"`
	DeviceID   uuid.UUID     `json:"device_id"`
	Timestamp  int64         `json:"timestamp"` // canonical epoch-ms
	Severity   EventSeverity `json:"severity"`
	Notes      string        `json:"notes,omitempty"`
	IsResolved bool          `json:"is_resolved"`
	AlertSent  bool          `json:"alert_sent"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  *time.Time    `json:"updated_at,omitempty"`
}

type EventKey struct {
	DeviceID uuid.UUID
	ID       string
}

func (e Event) Key() EventKey {
	return EventKey{DeviceID: e.DeviceID, ID: e.ID}
}
