// Package client talks to a running migraine-sense server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"migraine-sense/internal/catalog"
	"migraine-sense/internal/storage"
	"migraine-sense/internal/web"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

const (
	watchMinBackoff = time.Second
	watchMaxBackoff = 30 * time.Second
)

type Client struct {
	base string
	rest *resty.Client

	// Watch reconnect delays.
	minBackoff time.Duration
	maxBackoff time.Duration
}

func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetHeader("Accept", "application/json")
	return &Client{
		base:       strings.TrimRight(base, "/"),
		rest:       r,
		minBackoff: watchMinBackoff,
		maxBackoff: watchMaxBackoff,
	}
}

// Predict classifies a feature vector or a named default profile.
func (c *Client) Predict(ctx context.Context, req web.PredictionRequest) (*web.PredictionResponse, error) {
	var out web.PredictionResponse
	if err := c.do(ctx, c.rest.R().SetBody(req).SetResult(&out), "POST", "/api/predict"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Profiles(ctx context.Context) ([]catalog.Profile, error) {
	var out []catalog.Profile
	if err := c.do(ctx, c.rest.R().SetResult(&out), "GET", "/api/profiles"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Labels(ctx context.Context) ([]web.LabelCoverage, error) {
	var out []web.LabelCoverage
	if err := c.do(ctx, c.rest.R().SetResult(&out), "GET", "/api/labels"); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns the newest n records; n <= 0 uses the server default.
func (c *Client) History(ctx context.Context, n int) ([]storage.PredictionRecord, error) {
	req := c.rest.R()
	if n > 0 {
		req.SetQueryParam("limit", strconv.Itoa(n))
	}
	var out []storage.PredictionRecord
	if err := c.do(ctx, req.SetResult(&out), "GET", "/api/history"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ModelInfo(ctx context.Context) (*web.ModelInfo, error) {
	var out web.ModelInfo
	if err := c.do(ctx, c.rest.R().SetResult(&out), "GET", "/model/info"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns the health report. An unhealthy server still yields a
// report alongside the error.
func (c *Client) Health(ctx context.Context) (*web.HealthStatus, error) {
	var out web.HealthStatus
	resp, err := c.rest.R().SetContext(ctx).Get(c.base + "/health")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	if resp.IsError() {
		return &out, &APIError{Status: resp.StatusCode(), Message: "server is unhealthy"}
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, req *resty.Request, method, path string) error {
	var apiErr web.ErrorResponse
	resp, err := req.SetContext(ctx).SetError(&apiErr).Execute(method, c.base+path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return &APIError{Status: resp.StatusCode(), Message: msg}
	}
	return nil
}

// Watch streams prediction events from the server's websocket feed into
// events, reconnecting with exponential backoff until ctx is done. The backoff
// starts over after every successful connection.
func (c *Client) Watch(ctx context.Context, events chan<- web.PredictionEvent) error {
	u, err := url.Parse(c.base)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	backoff := c.minBackoff
	for {
		connected, err := c.watchOnce(ctx, u.String(), events)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = c.minBackoff
		}
		log.Warn().Err(err).Dur("backoff", backoff).Msg("prediction feed disconnected, reconnecting")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// watchOnce reads one feed connection until it fails. connected reports
// whether the dial succeeded.
func (c *Client) watchOnce(ctx context.Context, wsURL string, events chan<- web.PredictionEvent) (connected bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()
	conn.SetReadLimit(64 * 1024)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	log.Debug().Str("url", wsURL).Msg("subscribed to prediction feed")
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read failed: %w", err)
		}
		var event web.PredictionEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			log.Warn().Err(err).Msg("skipping malformed prediction event")
			continue
		}
		select {
		case events <- event:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}
