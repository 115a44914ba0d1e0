package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Guychuk210/lullaby-sub000/internal/models"
	"github.com/Guychuk210/lullaby-sub000/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EventService maintains the authoritative merged event view for one
// user: every device's events, globally sorted newest first, with no
// duplicate (device, id) pairs. The view is seeded by LoadAll and kept
// live by one push subscription per device. Mutations go to the store
// and come back through the push channel; the service never fabricates
// local state it cannot reconcile against the store.
type EventService struct {
	deviceRepo repositories.DeviceRepository
	eventRepo  repositories.EventRepository
	feed       repositories.EventFeed
	logger     *zap.Logger

	// reconcileMu serializes SetDevices end-to-end; feed.Subscribe
	// cannot be called under mu, so mu alone cannot keep two
	// concurrent reconciles from double-subscribing a device.
	reconcileMu sync.Mutex

	mu       sync.Mutex
	byDevice map[uuid.UUID][]models.Event
	sorted   []models.Event
	subs     map[uuid.UUID]func()
	wanted   map[uuid.UUID]bool
	lastErr  error
	onChange func([]models.Event)
}

func NewEventService(
	deviceRepo repositories.DeviceRepository,
	eventRepo repositories.EventRepository,
	feed repositories.EventFeed,
	logger *zap.Logger,
) *EventService {
	return &EventService{
		deviceRepo: deviceRepo,
		eventRepo:  eventRepo,
		feed:       feed,
		logger:     logger,
		byDevice:   make(map[uuid.UUID][]models.Event),
		subs:       make(map[uuid.UUID]func()),
		wanted:     make(map[uuid.UUID]bool),
	}
}

// SetOnChange registers a callback invoked with a copy of the merged
// view after every change. Must be called before Start.
func (s *EventService) SetOnChange(fn func([]models.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Start seeds the view with a bulk load and opens one live
// subscription per device. A single device listing backs both steps,
// so the seeded slices and the subscriptions always describe the same
// device set.
func (s *EventService) Start(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return ErrUnauthenticated
	}

	devices, err := s.deviceRepo.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	if _, err := s.loadDevices(ctx, userID, devices); err != nil {
		return err
	}

	ids := make([]uuid.UUID, len(devices))
	for i, d := range devices {
		ids[i] = d.ID
	}
	return s.SetDevices(ctx, ids)
}

// LoadAll fetches every device's full event history, merges it into
// the view, and returns the globally sorted result. One failing device
// aborts the whole load; the caller retries.
func (s *EventService) LoadAll(ctx context.Context, userID uuid.UUID) ([]models.Event, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	devices, err := s.deviceRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return s.loadDevices(ctx, userID, devices)
}

func (s *EventService) loadDevices(ctx context.Context, userID uuid.UUID, devices []models.Device) ([]models.Event, error) {
	fetched := make(map[uuid.UUID][]models.Event, len(devices))
	var fetchedMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, device := range devices {
		device := device
		g.Go(func() error {
			events, err := s.eventRepo.FetchByDevice(gctx, device.ID)
			if err != nil {
				return fmt.Errorf("failed to fetch events for device %s: %w", device.ID, err)
			}
			fetchedMu.Lock()
			fetched[device.ID] = events
			fetchedMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.byDevice = fetched
	s.resort()
	view := s.viewLocked()
	s.mu.Unlock()

	s.logger.Info("bulk event load complete",
		zap.String("user_id", userID.String()),
		zap.Int("device_count", len(devices)),
		zap.Int("event_count", len(view)),
	)
	return view, nil
}

// SetDevices reconciles the live subscriptions against the given
// device set: removed devices are torn down (and their slice dropped),
// added devices get a fresh subscription, unchanged devices keep the
// one they have. Afterwards the number of live subscriptions always
// equals the device count.
func (s *EventService) SetDevices(ctx context.Context, deviceIDs []uuid.UUID) error {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	wanted := make(map[uuid.UUID]bool, len(deviceIDs))
	for _, id := range deviceIDs {
		wanted[id] = true
	}

	// Tear down removed devices before opening replacements, so a
	// stale callback can never write into the new generation.
	s.mu.Lock()
	s.wanted = wanted
	changed := false
	for id, unsub := range s.subs {
		if wanted[id] {
			continue
		}
		unsub()
		delete(s.subs, id)
		delete(s.byDevice, id)
		changed = true
	}
	if changed {
		s.resort()
	}
	existing := make(map[uuid.UUID]bool, len(s.subs))
	for id := range s.subs {
		existing[id] = true
	}
	var onChange func([]models.Event)
	var view []models.Event
	if changed {
		onChange = s.onChange
		view = s.viewLocked()
	}
	s.mu.Unlock()

	if onChange != nil {
		onChange(view)
	}

	for _, id := range deviceIDs {
		if existing[id] {
			continue
		}
		deviceID := id
		unsub, err := s.feed.Subscribe(ctx, deviceID, func(events []models.Event, err error) {
			if err != nil {
				s.noteError(deviceID, err)
				return
			}
			s.applyUpdate(deviceID, events)
		})
		if err != nil {
			return fmt.Errorf("failed to subscribe to device %s: %w", deviceID, err)
		}
		s.mu.Lock()
		if !s.wanted[deviceID] {
			// Close ran while we were subscribing.
			s.mu.Unlock()
			unsub()
			continue
		}
		s.subs[deviceID] = unsub
		s.mu.Unlock()
	}
	return nil
}

// applyUpdate replaces exactly one device's slice of the merged view.
// Replacement is scoped to the emitting device: other devices' events
// are untouched, and re-delivery of an identical set is a no-op on the
// sorted result.
func (s *EventService) applyUpdate(deviceID uuid.UUID, events []models.Event) {
	s.mu.Lock()
	if !s.wanted[deviceID] {
		// Update raced a teardown; the device is gone.
		s.mu.Unlock()
		return
	}
	s.byDevice[deviceID] = events
	s.lastErr = nil
	s.resort()
	onChange := s.onChange
	view := s.viewLocked()
	s.mu.Unlock()

	if onChange != nil {
		onChange(view)
	}
}

func (s *EventService) noteError(deviceID uuid.UUID, err error) {
	s.logger.Error("event subscription error",
		zap.String("device_id", deviceID.String()),
		zap.Error(err),
	)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Events returns a copy of the merged view.
func (s *EventService) Events() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Err returns the most recent subscription error, cleared by the next
// successful emission.
func (s *EventService) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Resolve marks an event resolved in the store. The view updates when
// the owning device's subscription re-emits, not before.
func (s *EventService) Resolve(ctx context.Context, eventID string) error {
	deviceID, err := s.ownerOf(eventID)
	if err != nil {
		return err
	}
	if err := s.eventRepo.Resolve(ctx, deviceID, eventID); err != nil {
		return err
	}
	return s.feed.Announce(ctx, deviceID)
}

// Delete removes an event from the store. Same reconciliation rule as
// Resolve.
func (s *EventService) Delete(ctx context.Context, eventID string) error {
	deviceID, err := s.ownerOf(eventID)
	if err != nil {
		return err
	}
	if err := s.eventRepo.Delete(ctx, deviceID, eventID); err != nil {
		return err
	}
	return s.feed.Announce(ctx, deviceID)
}

// Close tears down every live subscription. Clearing wanted makes any
// subscribe still in flight discard its handle instead of storing it.
func (s *EventService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wanted = make(map[uuid.UUID]bool)
	for id, unsub := range s.subs {
		unsub()
		delete(s.subs, id)
	}
}

// ownerOf locates the owning device of an event in the current view.
func (s *EventService) ownerOf(eventID string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.sorted {
		if e.ID == eventID {
			return e.DeviceID, nil
		}
	}
	return uuid.Nil, repositories.ErrNotFound
}

// resort rebuilds the sorted view from the per-device slices. Callers
// hold s.mu.
func (s *EventService) resort() {
	total := 0
	for _, events := range s.byDevice {
		total += len(events)
	}

	merged := make([]models.Event, 0, total)
	seen := make(map[models.EventKey]bool, total)
	for _, events := range s.byDevice {
		for _, e := range events {
			if seen[e.Key()] {
				continue
			}
			seen[e.Key()] = true
			merged = append(merged, e)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Timestamp != merged[j].Timestamp {
			return merged[i].Timestamp > merged[j].Timestamp
		}
		// Deterministic order for equal timestamps.
		if merged[i].DeviceID != merged[j].DeviceID {
			return merged[i].DeviceID.String() < merged[j].DeviceID.String()
		}
		return merged[i].ID < merged[j].ID
	})
	s.sorted = merged
}

func (s *EventService) viewLocked() []models.Event {
	view := make([]models.Event, len(s.sorted))
	copy(view, s.sorted)
	return view
}
