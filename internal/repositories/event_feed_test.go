package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Guychuk210/lullaby-sub000/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEventStore stands in for the Postgres event store behind the
// feed's snapshot re-fetch.
type stubEventStore struct {
	mu       sync.Mutex
	byDevice map[uuid.UUID][]models.Event
}

func newStubEventStore() *stubEventStore {
	return &stubEventStore{byDevice: make(map[uuid.UUID][]models.Event)}
}

func (s *stubEventStore) set(deviceID uuid.UUID, events []models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDevice[deviceID] = events
}

func (s *stubEventStore) FetchByDevice(ctx context.Context, deviceID uuid.UUID) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byDevice[deviceID], nil
}

func (s *stubEventStore) FetchRecent(ctx context.Context, deviceID uuid.UUID, limit int) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.byDevice[deviceID]
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (s *stubEventStore) Resolve(ctx context.Context, deviceID uuid.UUID, eventID string) error {
	return nil
}

func (s *stubEventStore) Delete(ctx context.Context, deviceID uuid.UUID, eventID string) error {
	return nil
}

type eventEmission struct {
	events []models.Event
	err    error
}

func setupEventFeed(t *testing.T, store EventRepository) *RedisEventFeed {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisEventFeed(client, store, 50)
}

func collectEvents(t *testing.T, ch <-chan eventEmission) eventEmission {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event emission")
		return eventEmission{}
	}
}

func TestEventFeed_InitialSnapshotOnSubscribe(t *testing.T) {
	deviceID := uuid.New()
	store := newStubEventStore()
	store.set(deviceID, []models.Event{{ID: "e1", DeviceID: deviceID, Timestamp: 2000}})
	feed := setupEventFeed(t, store)

	emissions := make(chan eventEmission, 8)
	unsub, err := feed.Subscribe(context.Background(), deviceID, func(events []models.Event, err error) {
		emissions <- eventEmission{events: events, err: err}
	})
	require.NoError(t, err)
	defer unsub()

	first := collectEvents(t, emissions)
	require.NoError(t, first.err)
	require.Len(t, first.events, 1)
	assert.Equal(t, "e1", first.events[0].ID)
}

func TestEventFeed_AnnounceRedeliversCompleteSet(t *testing.T) {
	deviceID := uuid.New()
	store := newStubEventStore()
	store.set(deviceID, []models.Event{{ID: "e1", DeviceID: deviceID, Timestamp: 2000}})
	feed := setupEventFeed(t, store)
	ctx := context.Background()

	emissions := make(chan eventEmission, 8)
	unsub, err := feed.Subscribe(ctx, deviceID, func(events []models.Event, err error) {
		emissions <- eventEmission{events: events, err: err}
	})
	require.NoError(t, err)
	defer unsub()
	collectEvents(t, emissions) // initial snapshot

	// The store changed; an announce must re-deliver the whole set.
	store.set(deviceID, []models.Event{
		{ID: "e2", DeviceID: deviceID, Timestamp: 3000},
		{ID: "e1", DeviceID: deviceID, Timestamp: 2000},
	})
	require.NoError(t, feed.Announce(ctx, deviceID))

	second := collectEvents(t, emissions)
	require.NoError(t, second.err)
	require.Len(t, second.events, 2)
	assert.Equal(t, "e2", second.events[0].ID)
}

func TestEventFeed_AnnounceIsScopedToDevice(t *testing.T) {
	deviceA := uuid.New()
	deviceB := uuid.New()
	store := newStubEventStore()
	feed := setupEventFeed(t, store)
	ctx := context.Background()

	emissions := make(chan eventEmission, 8)
	unsub, err := feed.Subscribe(ctx, deviceA, func(events []models.Event, err error) {
		emissions <- eventEmission{events: events, err: err}
	})
	require.NoError(t, err)
	defer unsub()
	collectEvents(t, emissions) // initial snapshot

	require.NoError(t, feed.Announce(ctx, deviceB))

	select {
	case e := <-emissions:
		t.Fatalf("device A received device B's announce: %+v", e)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestEventFeed_UnsubscribeStopsEmissions(t *testing.T) {
	deviceID := uuid.New()
	store := newStubEventStore()
	feed := setupEventFeed(t, store)
	ctx := context.Background()

	emissions := make(chan eventEmission, 8)
	unsub, err := feed.Subscribe(ctx, deviceID, func(events []models.Event, err error) {
		emissions <- eventEmission{events: events, err: err}
	})
	require.NoError(t, err)
	collectEvents(t, emissions) // initial snapshot

	unsub()

	require.NoError(t, feed.Announce(ctx, deviceID))
	select {
	case e := <-emissions:
		t.Fatalf("unexpected emission after unsubscribe: %+v", e)
	case <-time.After(200 * time.Millisecond):
	}
}
