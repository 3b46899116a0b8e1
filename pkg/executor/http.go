package executor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"cronx/pkg/models"
	"cronx/pkg/resilience"
)

// HTTPConfig configures the gateway executor.
type HTTPConfig struct {
	// URL is the gateway base URL. HTTPS is required except for localhost.
	URL string
	// SessionKey authenticates against the gateway; minimum 8 characters.
	SessionKey string
}

// Validate enforces the transport rules before any call is made.
func (c HTTPConfig) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid gateway URL %q: %w", c.URL, err)
	}
	switch u.Scheme {
	case "https":
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return fmt.Errorf("gateway URL %q must use https", c.URL)
		}
	default:
		return fmt.Errorf("gateway URL %q has unsupported scheme %q", c.URL, u.Scheme)
	}
	if len(c.SessionKey) < 8 {
		return fmt.Errorf("session key must be at least 8 characters")
	}
	return nil
}

// HTTPExecutor POSTs triggers and notifications to an agent gateway. A
// circuit breaker in front of the transport fails fast while the gateway is
// down; breaker rejections surface as ordinary retryable errors.
type HTTPExecutor struct {
	client  *resty.Client
	breaker *resilience.CircuitBreaker
	logger  *zap.Logger
}

// NewHTTP validates the config and builds the gateway executor.
func NewHTTP(cfg HTTPConfig, logger *zap.Logger) (*HTTPExecutor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetAuthToken(cfg.SessionKey).
		SetHeader("Content-Type", "application/json")

	return &HTTPExecutor{
		client:  client,
		breaker: resilience.New("gateway", resilience.DefaultConfig()),
		logger:  logger,
	}, nil
}

// Trigger POSTs the action to /trigger and decodes the gateway's verdict.
func (e *HTTPExecutor) Trigger(ctx context.Context, action Action) (*Response, error) {
	var out Response
	err := e.breaker.Execute(func() error {
		resp, err := e.client.R().
			SetContext(ctx).
			SetBody(action).
			SetResult(&out).
			Post("/trigger")
		if err != nil {
			return err
		}
		return classifyStatus(resp.StatusCode())
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Notify POSTs an informational message to /notify. Best-effort: callers are
// expected to log and swallow the error.
func (e *HTTPExecutor) Notify(ctx context.Context, message string, priority models.Priority) error {
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"message":  message,
			"priority": string(priority),
		}).
		Post("/notify")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("notify returned status %d", resp.StatusCode())
	}
	return nil
}

// classifyStatus maps gateway status codes onto the error taxonomy: auth and
// storage refusals cannot succeed on retry, everything else can.
func classifyStatus(code int) error {
	switch {
	case code < 400:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return &FatalError{Reason: fmt.Sprintf("gateway refused credentials (status %d)", code)}
	case code == http.StatusInsufficientStorage:
		return &FatalError{Reason: "gateway out of storage"}
	default:
		return fmt.Errorf("gateway returned status %d", code)
	}
}
