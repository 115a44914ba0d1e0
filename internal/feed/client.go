// Package feed wraps the external notification feed API. The feed is
// a side-channel populator only: items it returns are merged into the
// persisted store and never served to consumers directly.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Timestamp is the feed's structured time shape. It satisfies
// timeutil.Epocher.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int64 `json:"nanos"`
}

func (t Timestamp) EpochMillis() int64 {
	return t.Seconds*1000 + t.Nanos/1e6
}

// RawNotification is one unprocessed feed item. Time is whatever
// string the feed produced; newer feed versions also send the
// structured Ts field.
type RawNotification struct {
	UserID   uuid.UUID  `json:"user_id"`
	DeviceID uuid.UUID  `json:"device_id"`
	Text     string     `json:"text"`
	Time     string     `json:"time"`
	Ts       *Timestamp `json:"ts,omitempty"`
	IsViewed bool       `json:"is_viewed"`
}

// TimeValue returns the best available time field for normalization:
// the structured shape when present, the raw string otherwise.
func (n RawNotification) TimeValue() any {
	if n.Ts != nil {
		return *n.Ts
	}
	return n.Time
}

type queryRequest struct {
	UserID   string `json:"userId"`
	DeviceID string `json:"deviceId"`
	DaysBack int    `json:"daysBack"`
}

type queryResponse struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if apiKey != "" {
		client.SetHeader("X-Api-Key", apiKey)
	}

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// Fetch pulls the user's notifications for one device over the
// lookback window.
func (c *Client) Fetch(ctx context.Context, userID, deviceID uuid.UUID, daysBack int) ([]RawNotification, error) {
	request := queryRequest{
		UserID:   userID.String(),
		DeviceID: deviceID.String(),
		DaysBack: daysBack,
	}

	var response queryResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post("/v1/notifications/query")

	if err != nil {
		c.logger.Error("notification feed call failed",
			zap.Error(err),
			zap.String("device_id", deviceID.String()),
		)
		return nil, fmt.Errorf("failed to call notification feed: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("notification feed returned HTTP %d", resp.StatusCode())
	}

	if response.Status != 0 {
		c.logger.Error("notification feed returned error",
			zap.Int("status", response.Status),
			zap.String("msg", response.Msg),
		)
		return nil, fmt.Errorf("notification feed error: %s (status: %d)", response.Msg, response.Status)
	}

	var items []RawNotification
	if len(response.Data) > 0 {
		if err := json.Unmarshal(response.Data, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal feed items: %w", err)
		}
	}

	c.logger.Debug("pulled notification feed",
		zap.String("device_id", deviceID.String()),
		zap.Int("item_count", len(items)),
	)

	return items, nil
}
