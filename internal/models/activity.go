package models

import (
	"time"

	"github.com/google/uuid"
)

type ActivityState string

const (
	ActivityInitializing ActivityState = "initializing"
	ActivityActive       ActivityState = "active"
	ActivityInactive     ActivityState = "inactive"
	ActivityNotFound     ActivityState = "not_found"
	ActivityErrored      ActivityState = "errored"
)

// DeviceActivity is the derived liveness snapshot for one device.
// It is recomputed on every status emission, never persisted.
type DeviceActivity struct {
	DeviceID uuid.UUID     `json:"device_id"`
	State    ActivityState `json:"state"`
	Active   bool          `json:"active"`
	LastSync *time.Time    `json:"last_sync,omitempty"`
	Err      string        `json:"error,omitempty"`
}
