package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Guychuk210/lullaby-sub000/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session bundles the three per-user engines. One Session exists per
// signed-in user; its subscriptions follow the user's device set.
type Session struct {
	UserID        uuid.UUID
	Events        *EventService
	Notifications *NotificationService
	Activity      *ActivitySupervisor

	// ctx is the session's own lifetime. Subscriptions opened after
	// startup must derive from it, never from a request context.
	ctx    context.Context
	cancel context.CancelFunc
}

// Hub lazily builds and owns per-user sessions.
type Hub struct {
	deviceRepo repositories.DeviceRepository
	eventRepo  repositories.EventRepository
	eventFeed  repositories.EventFeed
	statusFeed repositories.StatusFeed
	feedClient FeedClient
	store      repositories.NotificationRepository
	logger     *zap.Logger

	stalenessWindow time.Duration
	pollInterval    time.Duration
	lookbackDays    int

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewHub(
	deviceRepo repositories.DeviceRepository,
	eventRepo repositories.EventRepository,
	eventFeed repositories.EventFeed,
	statusFeed repositories.StatusFeed,
	feedClient FeedClient,
	store repositories.NotificationRepository,
	stalenessWindow time.Duration,
	pollInterval time.Duration,
	lookbackDays int,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		deviceRepo:      deviceRepo,
		eventRepo:       eventRepo,
		eventFeed:       eventFeed,
		statusFeed:      statusFeed,
		feedClient:      feedClient,
		store:           store,
		logger:          logger,
		stalenessWindow: stalenessWindow,
		pollInterval:    pollInterval,
		lookbackDays:    lookbackDays,
		sessions:        make(map[uuid.UUID]*Session),
	}
}

// ForUser returns the user's session, starting one on first use.
func (h *Hub) ForUser(ctx context.Context, userID uuid.UUID) (*Session, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	h.mu.Lock()
	if session, ok := h.sessions[userID]; ok {
		h.mu.Unlock()
		return session, nil
	}
	h.mu.Unlock()

	session, err := h.start(ctx, userID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.sessions[userID]; ok {
		// Lost the race to another request; keep the first session.
		session.close()
		return existing, nil
	}
	h.sessions[userID] = session
	return session, nil
}

func (h *Hub) start(ctx context.Context, userID uuid.UUID) (*Session, error) {
	// The session outlives the request that created it.
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	events := NewEventService(h.deviceRepo, h.eventRepo, h.eventFeed, h.logger)
	if err := events.Start(sessionCtx, userID); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start event sync: %w", err)
	}

	activity := NewActivitySupervisor(h.statusFeed, h.stalenessWindow, h.logger)
	devices, err := h.deviceRepo.ListByUser(sessionCtx, userID)
	if err != nil {
		events.Close()
		cancel()
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	ids := make([]uuid.UUID, len(devices))
	for i, d := range devices {
		ids[i] = d.ID
	}
	if err := activity.SetDevices(sessionCtx, userID, ids); err != nil {
		events.Close()
		activity.Close()
		cancel()
		return nil, fmt.Errorf("failed to start activity monitors: %w", err)
	}

	notifications := NewNotificationService(h.feedClient, h.store, h.deviceRepo, h.lookbackDays, h.pollInterval, h.logger)
	notifications.SetUser(userID)
	go notifications.Run(sessionCtx)

	h.logger.Info("started user session",
		zap.String("user_id", userID.String()),
		zap.Int("device_count", len(ids)),
	)

	return &Session{
		UserID:        userID,
		Events:        events,
		Notifications: notifications,
		Activity:      activity,
		ctx:           sessionCtx,
		cancel:        cancel,
	}, nil
}

// RefreshDevices re-reads the user's device set and reconciles every
// engine's subscriptions against it. New subscriptions are opened on
// the session context so they survive the request that triggered the
// refresh.
func (h *Hub) RefreshDevices(ctx context.Context, userID uuid.UUID) error {
	h.mu.Lock()
	session, ok := h.sessions[userID]
	h.mu.Unlock()
	if !ok {
		return repositories.ErrNotFound
	}

	devices, err := h.deviceRepo.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	ids := make([]uuid.UUID, len(devices))
	for i, d := range devices {
		ids[i] = d.ID
	}

	if err := session.Events.SetDevices(session.ctx, ids); err != nil {
		return err
	}
	return session.Activity.SetDevices(session.ctx, userID, ids)
}

// Close tears down every session.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, session := range h.sessions {
		session.close()
		delete(h.sessions, id)
	}
}

func (s *Session) close() {
	s.Events.Close()
	s.Activity.Close()
	s.cancel()
}
