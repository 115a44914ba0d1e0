package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Guychuk210/lullaby-sub000/internal/models"
	"github.com/Guychuk210/lullaby-sub000/internal/repositories"
	"github.com/Guychuk210/lullaby-sub000/internal/timeutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ActivityMonitor derives a device's liveness from its status push
// channel: a device is active when its last sync is within the
// staleness window, evaluated at the moment the update is observed.
// Exactly one status subscription is open per (device, user) pair;
// changing either tears the previous one down first.
type ActivityMonitor struct {
	status repositories.StatusFeed
	window time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	gen      int
	deviceID uuid.UUID
	userID   uuid.UUID
	snapshot models.DeviceActivity
	unsub    func()
}

func NewActivityMonitor(status repositories.StatusFeed, window time.Duration, logger *zap.Logger) *ActivityMonitor {
	return &ActivityMonitor{
		status: status,
		window: window,
		logger: logger,
		now:    time.Now,
		snapshot: models.DeviceActivity{
			State: models.ActivityInitializing,
		},
	}
}

// Watch (re)targets the monitor at a (device, user) pair. Any previous
// subscription is torn down first. If either identifier is absent the
// monitor stays in Initializing with no subscription open; that is a
// no-op, not an error.
func (m *ActivityMonitor) Watch(ctx context.Context, deviceID, userID uuid.UUID) error {
	m.mu.Lock()
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
	m.gen++
	gen := m.gen
	m.deviceID = deviceID
	m.userID = userID
	m.snapshot = models.DeviceActivity{
		DeviceID: deviceID,
		State:    models.ActivityInitializing,
	}
	m.mu.Unlock()

	if deviceID == uuid.Nil || userID == uuid.Nil {
		return nil
	}

	unsub, err := m.status.Subscribe(ctx, deviceID, func(status *models.DeviceStatus, err error) {
		m.observe(gen, deviceID, status, err)
	})
	if err != nil {
		m.mu.Lock()
		if m.gen == gen {
			m.snapshot.State = models.ActivityErrored
			m.snapshot.Err = err.Error()
		}
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	if m.gen != gen {
		// Watch was called again while we were subscribing.
		m.mu.Unlock()
		unsub()
		return nil
	}
	m.unsub = unsub
	m.mu.Unlock()
	return nil
}

// observe applies one status emission. A generation check keeps stale
// callbacks from a torn-down subscription from touching the state.
func (m *ActivityMonitor) observe(gen int, deviceID uuid.UUID, status *models.DeviceStatus, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return
	}

	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			m.snapshot = models.DeviceActivity{
				DeviceID: deviceID,
				State:    models.ActivityNotFound,
				Err:      "device status not found",
			}
			return
		}
		m.logger.Error("status subscription error",
			zap.String("device_id", deviceID.String()),
			zap.Error(err),
		)
		m.snapshot = models.DeviceActivity{
			DeviceID: deviceID,
			State:    models.ActivityErrored,
			Err:      err.Error(),
		}
		return
	}

	if status.LastSync == nil {
		m.snapshot = models.DeviceActivity{
			DeviceID: deviceID,
			State:    models.ActivityInactive,
		}
		return
	}

	lastSync := timeutil.NormalizeTime(status.LastSync)
	elapsed := m.now().Sub(lastSync)
	state := models.ActivityInactive
	if elapsed <= m.window {
		state = models.ActivityActive
	}
	m.snapshot = models.DeviceActivity{
		DeviceID: deviceID,
		State:    state,
		Active:   state == models.ActivityActive,
		LastSync: &lastSync,
	}
}

// Snapshot returns the current derived activity state.
func (m *ActivityMonitor) Snapshot() models.DeviceActivity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Stop tears down the subscription, if any.
func (m *ActivityMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
}

// ActivitySupervisor owns one monitor per device in the user's current
// device set.
type ActivitySupervisor struct {
	status repositories.StatusFeed
	window time.Duration
	logger *zap.Logger

	// reconcileMu serializes SetDevices end-to-end; Watch cannot be
	// called under mu.
	reconcileMu sync.Mutex

	mu       sync.Mutex
	userID   uuid.UUID
	monitors map[uuid.UUID]*ActivityMonitor
	wanted   map[uuid.UUID]bool
}

func NewActivitySupervisor(status repositories.StatusFeed, window time.Duration, logger *zap.Logger) *ActivitySupervisor {
	return &ActivitySupervisor{
		status:   status,
		window:   window,
		logger:   logger,
		monitors: make(map[uuid.UUID]*ActivityMonitor),
		wanted:   make(map[uuid.UUID]bool),
	}
}

// SetDevices reconciles the monitored set: stopped for removed
// devices, started for added ones, untouched for the rest.
func (s *ActivitySupervisor) SetDevices(ctx context.Context, userID uuid.UUID, deviceIDs []uuid.UUID) error {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	wanted := make(map[uuid.UUID]bool, len(deviceIDs))
	for _, id := range deviceIDs {
		wanted[id] = true
	}

	s.mu.Lock()
	s.wanted = wanted
	userChanged := s.userID != userID
	s.userID = userID
	for id, monitor := range s.monitors {
		if wanted[id] && !userChanged {
			continue
		}
		monitor.Stop()
		delete(s.monitors, id)
	}
	missing := make([]uuid.UUID, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		if _, ok := s.monitors[id]; !ok {
			missing = append(missing, id)
		}
	}
	s.mu.Unlock()

	for _, id := range missing {
		monitor := NewActivityMonitor(s.status, s.window, s.logger)
		if err := monitor.Watch(ctx, id, userID); err != nil {
			return err
		}
		s.mu.Lock()
		if !s.wanted[id] {
			// Close ran while we were subscribing.
			s.mu.Unlock()
			monitor.Stop()
			continue
		}
		s.monitors[id] = monitor
		s.mu.Unlock()
	}
	return nil
}

// Snapshot returns the derived activity for one monitored device.
func (s *ActivitySupervisor) Snapshot(deviceID uuid.UUID) (models.DeviceActivity, error) {
	s.mu.Lock()
	monitor, ok := s.monitors[deviceID]
	s.mu.Unlock()
	if !ok {
		return models.DeviceActivity{}, repositories.ErrNotFound
	}
	return monitor.Snapshot(), nil
}

// Snapshots returns the derived activity for every monitored device.
func (s *ActivitySupervisor) Snapshots() []models.DeviceActivity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DeviceActivity, 0, len(s.monitors))
	for _, monitor := range s.monitors {
		out = append(out, monitor.Snapshot())
	}
	return out
}

// Close stops every monitor. Clearing wanted makes any watch still in
// flight stop its monitor instead of storing it.
func (s *ActivitySupervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wanted = make(map[uuid.UUID]bool)
	for id, monitor := range s.monitors {
		monitor.Stop()
		delete(s.monitors, id)
	}
}
