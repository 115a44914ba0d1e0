package repositories

import (
	"context"
	"fmt"

	"github.com/Guychuk210/lullaby-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const eventChannelPrefix = "events:"

// RedisEventFeed turns Redis pub/sub pings into snapshot emissions.
// The store stays authoritative: on subscribe and on every ping the
// feed re-fetches the device's current window and hands the complete
// set to the callback.
type RedisEventFeed struct {
	client *redis.Client
	events EventRepository
	window int
}

func NewRedisEventFeed(client *redis.Client, events EventRepository, window int) *RedisEventFeed {
	return &RedisEventFeed{client: client, events: events, window: window}
}

// Subscribe opens the push channel for one device. The returned
// function tears the subscription down; calling it is the only way to
// stop emissions short of a transport failure.
func (f *RedisEventFeed) Subscribe(ctx context.Context, deviceID uuid.UUID, cb func([]models.Event, error)) (func(), error) {
	pubsub := f.client.Subscribe(ctx, eventChannel(deviceID))

	// Force the SUBSCRIBE round trip so a dead broker fails here, not
	// in the background goroutine.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("%w: failed to subscribe to events: %v", ErrTransport, err)
	}

	subCtx, cancel := context.WithCancel(ctx)

	emit := func() {
		events, err := f.events.FetchRecent(subCtx, deviceID, f.window)
		if err != nil {
			if subCtx.Err() != nil {
				return
			}
			cb(nil, err)
			return
		}
		cb(events, nil)
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
						cb(nil, fmt.Errorf("%w: event channel closed", ErrTransport))
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

// Announce pings every subscriber of the device's event channel,
// typically after a store mutation.
func (f *RedisEventFeed) Announce(ctx context.Context, deviceID uuid.UUID) error {
	err := f.client.Publish(ctx, eventChannel(deviceID), "changed").Err()
	if err != nil {
		return fmt.Errorf("failed to announce event change: %w", err)
	}
	return nil
}

// Helper: build Redis channel name for a device's event stream
func eventChannel(deviceID uuid.UUID) string {
	return eventChannelPrefix + deviceID.String()
}
