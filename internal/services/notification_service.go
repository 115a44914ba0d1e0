package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Guychuk210/lullaby-sub000/internal/feed"
	"github.com/Guychuk210/lullaby-sub000/internal/models"
	"github.com/Guychuk210/lullaby-sub000/internal/repositories"
	"github.com/Guychuk210/lullaby-sub000/internal/timeutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FeedClient is the external notification feed contract.
type FeedClient interface {
	Fetch(ctx context.Context, userID, deviceID uuid.UUID, daysBack int) ([]feed.RawNotification, error)
}

// NotificationService keeps the user's notification view in sync with
// the external feed through a pull → merge → read-back pipeline. The
// persisted store is the source of truth; the feed only populates it.
// Read flags move false→true only, and a merge never touches a record
// that already exists.
type NotificationService struct {
	feed       FeedClient
	store      repositories.NotificationRepository
	deviceRepo repositories.DeviceRepository
	logger     *zap.Logger

	lookbackDays int
	pollInterval time.Duration
	now          func() time.Time

	mu     sync.Mutex
	userID uuid.UUID
	items  []models.Notification
}

func NewNotificationService(
	feedClient FeedClient,
	store repositories.NotificationRepository,
	deviceRepo repositories.DeviceRepository,
	lookbackDays int,
	pollInterval time.Duration,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		feed:         feedClient,
		store:        store,
		deviceRepo:   deviceRepo,
		logger:       logger,
		lookbackDays: lookbackDays,
		pollInterval: pollInterval,
		now:          time.Now,
	}
}

// SetUser targets the pipeline at a user. The view resets.
func (s *NotificationService) SetUser(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.items = nil
}

// Run refreshes immediately and then on every poll tick until the
// context is cancelled. Refresh failures are logged and retried on the
// next tick.
func (s *NotificationService) Run(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Error("initial notification refresh failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Error("notification refresh failed", zap.Error(err))
			}
		}
	}
}

// Refresh runs one pull → merge → read-back cycle.
func (s *NotificationService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()
	if userID == uuid.Nil {
		return ErrUnauthenticated
	}

	devices, err := s.deviceRepo.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	for _, device := range devices {
		raws, err := s.feed.Fetch(ctx, userID, device.ID, s.lookbackDays)
		if err != nil {
			return fmt.Errorf("failed to pull feed for device %s: %w", device.ID, err)
		}
		for _, raw := range raws {
			// A bad item must not block the rest of the batch.
			if err := s.merge(ctx, userID, raw); err != nil {
				s.logger.Warn("skipping notification item",
					zap.String("device_id", device.ID.String()),
					zap.String("raw_time", raw.Time),
					zap.Error(err),
				)
			}
		}
	}

	// The store, not the pull, is what consumers see.
	stored, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to read notifications: %w", err)
	}

	s.mu.Lock()
	if s.userID == userID {
		s.items = stored
	}
	s.mu.Unlock()
	return nil
}

// merge inserts one pulled item unless a record with its derived id
// already exists. A re-pull never overwrites an existing record or its
// read state.
func (s *NotificationService) merge(ctx context.Context, userID uuid.UUID, raw feed.RawNotification) error {
	id := NotificationID(userID, raw)

	exists, err := s.store.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("existence check failed: %w", err)
	}
	if exists {
		return nil
	}

	ts := timeutil.Normalize(raw.TimeValue())
	title, body := SplitTitle(raw.Text)

	record := &models.Notification{
		ID:        id,
		UserID:    userID,
		DeviceID:  raw.DeviceID,
		Title:     title,
		Body:      body,
		DateLabel: DateLabel(ts, s.now()),
		Timestamp: ts,
		IsRead:    false, // pulled items always start unread
		RawText:   raw.Text,
		RawTime:   raw.Time,
	}

	if err := s.store.Insert(ctx, record); err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}
	return nil
}

// MarkRead flips one notification to read: store first, then the
// in-memory mirror. There is no un-reading.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()
	if userID == uuid.Nil {
		return ErrUnauthenticated
	}

	if err := s.store.SetRead(ctx, userID, id, true); err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].IsRead = true
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// MarkAllRead flips every notification to read.
func (s *NotificationService) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	userID := s.userID
	s.mu.Unlock()
	if userID == uuid.Nil {
		return ErrUnauthenticated
	}

	if err := s.store.SetAllRead(ctx, userID); err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.items {
		s.items[i].IsRead = true
	}
	s.mu.Unlock()
	return nil
}

// Notifications returns a copy of the current view, newest first.
func (s *NotificationService) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// UnreadCount is always derived from the view, never stored.
func (s *NotificationService) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// NotificationID derives the deterministic record id from the owning
// user and the source time field. Determinism is what makes the merge
// step idempotent across re-pulls.
func NotificationID(userID uuid.UUID, raw feed.RawNotification) string {
	timeField := raw.Time
	if timeField == "" && raw.Ts != nil {
		timeField = fmt.Sprintf("%d.%09d", raw.Ts.Seconds, raw.Ts.Nanos)
	}
	sum := sha256.Sum256([]byte(userID.String() + "|" + timeField))
	return hex.EncodeToString(sum[:8])
}

// SplitTitle splits source text at the first sentence boundary: the
// first sentence becomes the title, the remainder the body.
func SplitTitle(text string) (title, body string) {
	text = strings.TrimSpace(text)
	for i := 0; i+1 < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				return text[:i+1], strings.TrimSpace(text[i+2:])
			}
		}
	}
	return text, ""
}

// DateLabel buckets a timestamp for display: "Today", "Yesterday", or
// the calendar date.
func DateLabel(epochMs int64, now time.Time) string {
	t := time.UnixMilli(epochMs).In(now.Location())

	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	if ty == ny && tm == nm && td == nd {
		return "Today"
	}

	yy, ym, yd := now.AddDate(0, 0, -1).Date()
	if ty == yy && tm == ym && td == yd {
		return "Yesterday"
	}

	return t.Format("Jan 2, 2006")
}
