package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Guychuk210/lullaby-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	statusKeyPrefix     = "device:"
	statusKeySuffix     = ":status"
	statusChannelSuffix = ":status:updates"
)

// RedisStatusRepository holds the per-device status document and its
// update channel. Devices (via the ingest path) call SetStatus on
// every sync; monitors subscribe and re-read the document on each
// published update.
type RedisStatusRepository struct {
	client *redis.Client
}

func NewRedisStatusRepository(client *redis.Client) *RedisStatusRepository {
	return &RedisStatusRepository{client: client}
}

// SetStatus stores the status document and notifies subscribers.
func (r *RedisStatusRepository) SetStatus(ctx context.Context, status *models.DeviceStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := r.client.Set(ctx, statusKey(status.DeviceID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}

	if err := r.client.Publish(ctx, statusChannel(status.DeviceID), "changed").Err(); err != nil {
		return fmt.Errorf("failed to publish status update: %w", err)
	}
	return nil
}

// GetStatus reads the current status document. A device that has
// never synced has no document and yields ErrNotFound.
func (r *RedisStatusRepository) GetStatus(ctx context.Context, deviceID uuid.UUID) (*models.DeviceStatus, error) {
	data, err := r.client.Get(ctx, statusKey(deviceID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	var status models.DeviceStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &status, nil
}

// Subscribe opens the status push channel for one device. The current
// document is delivered immediately, then again on every update; a
// missing document is delivered as ErrNotFound. Channel failures are
// delivered as ErrTransport and end the subscription.
func (r *RedisStatusRepository) Subscribe(ctx context.Context, deviceID uuid.UUID, cb func(*models.DeviceStatus, error)) (func(), error) {
	pubsub := r.client.Subscribe(ctx, statusChannel(deviceID))

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("%w: failed to subscribe to status: %v", ErrTransport, err)
	}

	subCtx, cancel := context.WithCancel(ctx)

	emit := func() {
		status, err := r.GetStatus(subCtx, deviceID)
		if err != nil {
			if subCtx.Err() != nil {
				return
			}
			cb(nil, err)
			return
		}
		cb(status, nil)
	}

	go func() {
		emit() // initial snapshot

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					if subCtx.Err() == nil {
						cb(nil, fmt.Errorf("%w: status channel closed", ErrTransport))
					}
					return
				}
				emit()
			}
		}
	}()

	unsubscribe := func() {
		cancel()
		pubsub.Close()
	}
	return unsubscribe, nil
}

func statusKey(deviceID uuid.UUID) string {
	return statusKeyPrefix + deviceID.String() + statusKeySuffix
}

func statusChannel(deviceID uuid.UUID) string {
	return statusKeyPrefix + deviceID.String() + statusChannelSuffix
}
