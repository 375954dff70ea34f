// Package client is the typed HTTP client for the mandalart REST API.
//
// Every service method performs exactly one request. Failures come back as
// *OpError carrying the operation name, the identifier involved and the
// request id, after being logged. There is no retry, cache or local
// validation; the server is authoritative.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is where the backend listens in local development
	DefaultBaseURL = "http://localhost:8000"
	// DefaultTimeout bounds a single request when Config.Timeout is zero
	DefaultTimeout = 10 * time.Second
	// RequestIDHeader correlates client log entries with server logs
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 5 * 1024 * 1024
)

// Config is the transport configuration injected at construction
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithLogger sets where failed calls are reported
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// Client holds the shared transport for the Epic and Habit services
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	logger    *log.Logger

	Epics  *EpicService
	Habits *HabitService
}

// New creates a Client from cfg
func New(cfg Config, opts ...Option) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "mandalart/1.0"
	}

	c := &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Epics = &EpicService{client: c}
	c.Habits = &HabitService{client: c}
	return c
}

// BaseURL returns the normalized base URL requests are sent to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// call performs one request and turns any failure into a logged *OpError
func (c *Client) call(ctx context.Context, op, id, method, path string, query url.Values, body, out any) error {
	requestID := uuid.NewString()
	err := c.do(ctx, requestID, method, path, query, body, out)
	if err == nil {
		return nil
	}

	opErr := &OpError{Op: op, ID: id, RequestID: requestID, Err: err}
	keyvals := []any{"op", op}
	if id != "" {
		keyvals = append(keyvals, "id", id)
	}
	keyvals = append(keyvals, "request_id", requestID, "err", err)
	c.logger.Error("Error "+op, keyvals...)
	return opErr
}

func (c *Client) do(ctx context.Context, requestID, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(data, resp.StatusCode),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// errorDetail extracts the server's {"detail": ...} message, falling back
// to the raw body or the status text
func errorDetail(body []byte, status int) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.Detail) > 0 {
			var s string
			if err := json.Unmarshal(payload.Detail, &s); err == nil {
				return s
			}
			return string(payload.Detail)
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(status)
}
