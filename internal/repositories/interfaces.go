package repositories

import (
	"context"

	"github.com/Guychuk210/lullaby-sub000/internal/models"
	"github.com/google/uuid"
)

type DeviceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Device, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Device, error)
}

type EventRepository interface {
	FetchByDevice(ctx context.Context, deviceID uuid.UUID) ([]models.Event, error)
	FetchRecent(ctx context.Context, deviceID uuid.UUID, limit int) ([]models.Event, error)
	Resolve(ctx context.Context, deviceID uuid.UUID, eventID string) error
	Delete(ctx context.Context, deviceID uuid.UUID, eventID string) error
}

// EventFeed is the per-device push channel for event streams. Every
// emission carries the complete current window for that device, never
// a delta. Announce nudges subscribers after a store mutation.
type EventFeed interface {
	Subscribe(ctx context.Context, deviceID uuid.UUID, cb func([]models.Event, error)) (func(), error)
	Announce(ctx context.Context, deviceID uuid.UUID) error
}

// StatusFeed is the push channel for device status documents. A
// missing document is emitted as ErrNotFound; a broken channel as a
// transport error. The subscription itself does not retry.
type StatusFeed interface {
	Subscribe(ctx context.Context, deviceID uuid.UUID, cb func(*models.DeviceStatus, error)) (func(), error)
}

type NotificationRepository interface {
	Exists(ctx context.Context, id string) (bool, error)
	Insert(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Notification, error)
	SetRead(ctx context.Context, userID uuid.UUID, id string, read bool) error
	SetAllRead(ctx context.Context, userID uuid.UUID) error
}
