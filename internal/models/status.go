package models

import "github.com/google/uuid"

// DeviceStatus is the raw status document a device writes on every sync.
// LastSync is whatever shape the firmware happened to send (epoch seconds,
// epoch millis, an ISO string); consumers normalize it before use.
type DeviceStatus struct {
	DeviceID     uuid.UUID `json:"device_id"`
	LastSync     any       `json:"last_sync,omitempty"`
	BatteryLevel *int      `json:"battery_level,omitempty"`
	Firmware     string    `json:"firmware,omitempty"`
}
