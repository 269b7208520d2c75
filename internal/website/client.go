// Package website talks to the SavosBot website API.
package website

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Proton-105/savos-bot/internal/domain"
	apperrors "github.com/Proton-105/savos-bot/internal/errors"
	"github.com/Proton-105/savos-bot/pkg/config"
	"github.com/Proton-105/savos-bot/pkg/metrics"
)

const maxResponseBytes = 1 << 20

const (
	endpointPushUser     = "push_user"
	endpointUpdateUser   = "update_user"
	endpointGetUser      = "get_user"
	endpointPushStats    = "push_stats"
	endpointGetSettings  = "get_settings"
	endpointPushSettings = "push_settings"
	endpointNotify       = "notify"
	endpointHealth       = "health"
)

// Result is the decoded JSON body of a successful response.
type Result map[string]any

// HealthStatus is the answer of GET /api/health, or a synthesized error status.
type HealthStatus struct {
	Status string
	Detail string
	Body   Result
}

// OK reports whether the website answered the health probe.
func (h HealthStatus) OK() bool {
	return h.Status != "error"
}

// Client issues authenticated JSON requests to the website. It never retries;
// callers decide what to do with the returned *errors.AppError.
type Client struct {
	baseURL   string
	apiKey    string
	source    string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	limiter   *rate.Limiter
	connected atomic.Bool
	log       *slog.Logger
	now       func() time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(cfg BreakerConfig) Option {
	return func(c *Client) {
		c.breaker = newBreaker("website", cfg, c.log)
	}
}

// WithoutBreaker lets every call reach the website however many fail.
// Bulk tools use it so one outage does not skip the rest of the run.
func WithoutBreaker() Option {
	return WithBreaker(BreakerConfig{NeverTrip: true})
}

// WithClock overrides the time source used for payload timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds a website client from configuration.
func NewClient(cfg config.WebsiteConfig, log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		source:  cfg.Source,
		http:    &http.Client{Timeout: timeout},
		log:     log.With(slog.String("component", "website")),
		now:     time.Now,
	}

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	c.breaker = newBreaker("website", BreakerConfig{}, c.log)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connected reports whether the latest call reached a healthy website.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// PushUser sends a user record: POST /api/users.
func (c *Client) PushUser(ctx context.Context, u *domain.User) (Result, error) {
	if u == nil {
		return nil, apperrors.NewValidationError("user is nil")
	}

	payload, err := c.payload(u, nil)
	if err != nil {
		return nil, err
	}

	return c.do(ctx, endpointPushUser, http.MethodPost, "/api/users", payload, true)
}

// UpdateUser replaces a user record: PUT /api/users/{id}.
func (c *Client) UpdateUser(ctx context.Context, u *domain.User) (Result, error) {
	if u == nil {
		return nil, apperrors.NewValidationError("user is nil")
	}

	payload, err := c.payload(u, nil)
	if err != nil {
		return nil, err
	}

	return c.do(ctx, endpointUpdateUser, http.MethodPut, "/api/users/"+strconv.FormatInt(u.ID, 10), payload, true)
}

// GetUser fetches the website's view of a user: GET /api/users/{id}.
func (c *Client) GetUser(ctx context.Context, id int64) (Result, error) {
	return c.do(ctx, endpointGetUser, http.MethodGet, "/api/users/"+strconv.FormatInt(id, 10), nil, true)
}

// PushStats sends a statistics snapshot: POST /api/statistics.
func (c *Client) PushStats(ctx context.Context, stats *domain.Statistics) (Result, error) {
	if stats == nil {
		return nil, apperrors.NewValidationError("statistics are nil")
	}

	payload, err := c.payload(stats, map[string]any{"timestamp": c.now().Format(time.RFC3339)})
	if err != nil {
		return nil, err
	}

	return c.do(ctx, endpointPushStats, http.MethodPost, "/api/statistics", payload, true)
}

// GetSettings fetches settings stored on the website: GET /api/settings.
func (c *Client) GetSettings(ctx context.Context) (Result, error) {
	return c.do(ctx, endpointGetSettings, http.MethodGet, "/api/settings", nil, true)
}

// PushSettings sends the bot settings: PUT /api/settings.
func (c *Client) PushSettings(ctx context.Context, settings *domain.Settings) (Result, error) {
	if settings == nil {
		return nil, apperrors.NewValidationError("settings are nil")
	}

	payload, err := c.payload(settings, map[string]any{"updated_at": c.now().Format(time.RFC3339)})
	if err != nil {
		return nil, err
	}

	return c.do(ctx, endpointPushSettings, http.MethodPut, "/api/settings", payload, true)
}

// Notify sends an event notification: POST /api/notifications.
func (c *Client) Notify(ctx context.Context, n *domain.Notification) (Result, error) {
	if n == nil {
		return nil, apperrors.NewValidationError("notification is nil")
	}

	payload, err := c.payload(n, map[string]any{"timestamp": c.now().Format(time.RFC3339)})
	if err != nil {
		return nil, err
	}

	return c.do(ctx, endpointNotify, http.MethodPost, "/api/notifications", payload, true)
}

// Health probes GET /api/health without credentials. Failures are folded into the returned status.
func (c *Client) Health(ctx context.Context) HealthStatus {
	body, err := c.do(ctx, endpointHealth, http.MethodGet, "/api/health", nil, false)
	if err != nil {
		detail := err.Error()
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.StatusCode != 0 {
			detail = fmt.Sprintf("HTTP %d", appErr.StatusCode)
		}
		return HealthStatus{Status: "error", Detail: detail}
	}

	status, _ := body["status"].(string)
	if status == "" {
		status = "ok"
	}
	detail, _ := body["message"].(string)

	return HealthStatus{Status: status, Detail: detail, Body: body}
}

// CheckConnection probes the website once and logs the outcome. It primes Connected
// so /stats reports the real state before the first push.
func (c *Client) CheckConnection(ctx context.Context) HealthStatus {
	status := c.Health(ctx)
	if status.OK() {
		c.log.Info("website connection established", slog.String("base_url", c.baseURL), slog.String("status", status.Status))
	} else {
		c.log.Warn("website unavailable, changes will be kept locally",
			slog.String("base_url", c.baseURL),
			slog.String("status", status.Status),
			slog.String("detail", status.Detail),
		)
	}
	return status
}

// HealthCheck adapts Health for the health checker.
func (c *Client) HealthCheck(ctx context.Context) error {
	status := c.Health(ctx)
	if !status.OK() {
		return fmt.Errorf("website unavailable: %s", status.Detail)
	}
	return nil
}

// payload encodes v as a JSON object and adds source plus extra fields.
func (c *Client) payload(v any, extra map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("encode payload: %v", err))
	}

	body := make(map[string]any)
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("encode payload: %v", err))
	}

	for k, val := range extra {
		body[k] = val
	}
	if c.source != "" {
		body["source"] = c.source
	}

	return body, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body any, auth bool) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.fail(endpoint, "error", start, apperrors.NewExternalAPIError(endpoint, 0, err))
		}
	}

	status := "error"
	out, err := c.breaker.Execute(func() (interface{}, error) {
		result, code, reqErr := c.roundTrip(ctx, endpoint, method, path, body, auth)
		if code != 0 {
			status = strconv.Itoa(code)
		}
		return result, reqErr
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			status = "open"
			err = apperrors.NewExternalAPIError(endpoint, 0, err)
		}
		return nil, c.fail(endpoint, status, start, err)
	}

	c.connected.Store(true)
	metrics.RecordRemoteRequest(endpoint, status, time.Since(start))

	result, _ := out.(Result)
	return result, nil
}

func (c *Client) roundTrip(ctx context.Context, endpoint, method, path string, body any, auth bool) (Result, int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, apperrors.NewValidationError(fmt.Sprintf("encode request: %v", err))
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, apperrors.NewExternalAPIError(endpoint, 0, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, apperrors.NewExternalAPIError(endpoint, 0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, apperrors.NewExternalAPIError(endpoint, 0, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, resp.StatusCode, apperrors.NewExternalAPIError(endpoint, resp.StatusCode, fmt.Errorf("response: %s", snippet(data)))
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return Result{}, resp.StatusCode, nil
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, resp.StatusCode, apperrors.NewExternalAPIError(endpoint, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}

	return result, resp.StatusCode, nil
}

func (c *Client) fail(endpoint, status string, start time.Time, err error) error {
	metrics.RecordRemoteRequest(endpoint, status, time.Since(start))

	// a 4xx answer still proves the website is reachable
	c.connected.Store(!apperrors.IsRetryable(err))

	c.log.Warn("website request failed",
		slog.String("endpoint", endpoint),
		slog.String("status", status),
		slog.Any("error", err),
	)

	return err
}

func snippet(data []byte) string {
	const max = 200
	text := strings.TrimSpace(string(data))
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}
