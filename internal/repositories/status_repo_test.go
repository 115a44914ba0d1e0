package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/Guychuk210/lullaby-sub000/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStatusRepo(t *testing.T) *RedisStatusRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStatusRepository(client)
}

type statusEmission struct {
	status *models.DeviceStatus
	err    error
}

func collectStatus(t *testing.T, ch <-chan statusEmission) statusEmission {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status emission")
		return statusEmission{}
	}
}

func TestStatusRepo_SetAndGet(t *testing.T) {
	repo := setupStatusRepo(t)
	ctx := context.Background()
	deviceID := uuid.New()

	err := repo.SetStatus(ctx, &models.DeviceStatus{
		DeviceID: deviceID,
		LastSync: float64(1700000000000),
	})
	require.NoError(t, err)

	status, err := repo.GetStatus(ctx, deviceID)
	require.NoError(t, err)
	assert.Equal(t, deviceID, status.DeviceID)
	assert.Equal(t, float64(1700000000000), status.LastSync)
}

func TestStatusRepo_GetMissingIsNotFound(t *testing.T) {
	repo := setupStatusRepo(t)

	_, err := repo.GetStatus(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusRepo_SubscribeDeliversInitialAndUpdates(t *testing.T) {
	repo := setupStatusRepo(t)
	ctx := context.Background()
	deviceID := uuid.New()

	require.NoError(t, repo.SetStatus(ctx, &models.DeviceStatus{
		DeviceID: deviceID,
		LastSync: "1700000000",
	}))

	emissions := make(chan statusEmission, 8)
	unsub, err := repo.Subscribe(ctx, deviceID, func(status *models.DeviceStatus, err error) {
		emissions <- statusEmission{status: status, err: err}
	})
	require.NoError(t, err)
	defer unsub()

	// Initial snapshot from the stored document.
	first := collectStatus(t, emissions)
	require.NoError(t, first.err)
	assert.Equal(t, "1700000000", first.status.LastSync)

	// A new sync re-delivers the document.
	require.NoError(t, repo.SetStatus(ctx, &models.DeviceStatus{
		DeviceID: deviceID,
		LastSync: "1700000060",
	}))

	second := collectStatus(t, emissions)
	require.NoError(t, second.err)
	assert.Equal(t, "1700000060", second.status.LastSync)
}

func TestStatusRepo_SubscribeMissingDocumentEmitsNotFound(t *testing.T) {
	repo := setupStatusRepo(t)

	emissions := make(chan statusEmission, 8)
	unsub, err := repo.Subscribe(context.Background(), uuid.New(), func(status *models.DeviceStatus, err error) {
		emissions <- statusEmission{status: status, err: err}
	})
	require.NoError(t, err)
	defer unsub()

	first := collectStatus(t, emissions)
	assert.ErrorIs(t, first.err, ErrNotFound)
	assert.Nil(t, first.status)
}

func TestStatusRepo_UnsubscribeStopsEmissions(t *testing.T) {
	repo := setupStatusRepo(t)
	ctx := context.Background()
	deviceID := uuid.New()
	require.NoError(t, repo.SetStatus(ctx, &models.DeviceStatus{DeviceID: deviceID, LastSync: "1"}))

	emissions := make(chan statusEmission, 8)
	unsub, err := repo.Subscribe(ctx, deviceID, func(status *models.DeviceStatus, err error) {
		emissions <- statusEmission{status: status, err: err}
	})
	require.NoError(t, err)
	collectStatus(t, emissions) // initial snapshot

	unsub()

	require.NoError(t, repo.SetStatus(ctx, &models.DeviceStatus{DeviceID: deviceID, LastSync: "2"}))
	select {
	case e := <-emissions:
		t.Fatalf("unexpected emission after unsubscribe: %+v", e)
	case <-time.After(200 * time.Millisecond):
	}
}
