// Package notify relays planner notifications to a push provider.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rezkam/dayplan/internal/domain"
)

// DefaultEndpoint is the OneSignal notifications API.
const DefaultEndpoint = "https://onesignal.com/api/v1/notifications"

// DefaultSegment targets every subscribed device.
const DefaultSegment = "All"

// PushConfig configures the push provider client.
type PushConfig struct {
	Endpoint string
	AppID    string
	APIKey   string
	Segments []string
	Timeout  time.Duration
}

func (c *PushConfig) applyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if len(c.Segments) == 0 {
		c.Segments = []string{DefaultSegment}
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// PushClient posts notifications to a OneSignal-compatible endpoint.
type PushClient struct {
	config PushConfig
	client *http.Client
}

// NewPushClient creates a client with an instrumented transport.
func NewPushClient(config PushConfig) *PushClient {
	config.applyDefaults()
	return &PushClient{
		config: config,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type localized struct {
	En string `json:"en"`
}

type pushRequest struct {
	AppID            string    `json:"app_id"`
	IncludedSegments []string  `json:"included_segments"`
	Headings         localized `json:"headings"`
	Contents         localized `json:"contents"`
}

// Send delivers one notification. Any non-2xx answer is an error.
func (c *PushClient) Send(ctx context.Context, n domain.Notification) error {
	body, err := json.Marshal(pushRequest{
		AppID:            c.config.AppID,
		IncludedSegments: c.config.Segments,
		Headings:         localized{En: n.Title},
		Contents:         localized{En: n.Message},
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Basic "+c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
