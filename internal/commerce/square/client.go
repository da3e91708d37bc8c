package square

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/railbook/internal/commerce"
	"github.com/smallbiznis/railbook/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/railbook/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	productionBaseURL = "https://connect.squareup.com"
	sandboxBaseURL    = "https://connect.squareupsandbox.com"

	maxResponseBytes = 4 << 20
)

type Config struct {
	Environment  string
	AccessToken  string
	APIVersion   string
	LocationID   string
	BaseURL      string
	Timeout      time.Duration
	ReadAttempts int
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func WithMetrics(m *obsmetrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBackOff replaces the retry schedule for idempotent reads.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = factory }
}

// Client talks to the Square v2 REST API. Reads are retried with exponential
// backoff on throttling and server errors; writes are sent exactly once.
type Client struct {
	baseURL      string
	accessToken  string
	apiVersion   string
	locationID   string
	timeout      time.Duration
	readAttempts uint
	http         *http.Client
	newBackOff   func() backoff.BackOff
	log          *zap.Logger
	metrics      *obsmetrics.Metrics
}

var _ commerce.Gateway = (*Client)(nil)

func NewClient(cfg Config, opts ...Option) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = sandboxBaseURL
		if strings.EqualFold(strings.TrimSpace(cfg.Environment), "production") {
			baseURL = productionBaseURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.ReadAttempts
	if attempts <= 0 {
		attempts = 1
	}

	c := &Client{
		baseURL:      baseURL,
		accessToken:  strings.TrimSpace(cfg.AccessToken),
		apiVersion:   strings.TrimSpace(cfg.APIVersion),
		locationID:   strings.TrimSpace(cfg.LocationID),
		timeout:      timeout,
		readAttempts: uint(attempts),
		http:         &http.Client{},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("commerce.square")
	return c
}

func (c *Client) LocationID() string {
	return c.locationID
}

type errorResponse struct {
	Errors []commerce.ErrorDetail `json:"errors"`
}

// read performs an idempotent request, retrying transient failures.
func (c *Client) read(ctx context.Context, operation, method, path string, body, out any) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := c.do(ctx, operation, method, path, body, out)
		if err == nil {
			return struct{}{}, nil
		}
		if gwErr, ok := commerce.AsGatewayError(err); ok && gwErr.Retryable() {
			logger.WithContext(ctx, c.log).Warn("gateway read failed, retrying",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.readAttempts),
	)
	return err
}

// write performs a non-idempotent request once.
func (c *Client) write(ctx context.Context, operation, method, path string, body, out any) error {
	return c.do(ctx, operation, method, path, body, out)
}

func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) (err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			if gwErr, ok := commerce.AsGatewayError(err); ok {
				outcome = string(gwErr.Kind())
			}
		}
		c.metrics.RecordGatewayCall(ctx, operation, outcome)
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if c.apiVersion != "" {
		req.Header.Set("Square-Version", c.apiVersion)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &commerce.GatewayError{Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &commerce.GatewayError{Operation: operation, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var payload errorResponse
		if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Errors) == 0 {
			payload.Errors = []commerce.ErrorDetail{{
				Category: "API_ERROR",
				Code:     http.StatusText(resp.StatusCode),
			}}
		}
		return &commerce.GatewayError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Errors:     payload.Errors,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &commerce.GatewayError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

var errEmptyObject = errors.New("response did not include the expected object")

// decodeObject unmarshals raw into dst and hands back a private copy of raw.
func decodeObject(operation string, raw json.RawMessage, dst any) (json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, &commerce.GatewayError{Operation: operation, StatusCode: http.StatusOK, Err: errEmptyObject}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, &commerce.GatewayError{Operation: operation, StatusCode: http.StatusOK, Err: err}
	}
	return append(json.RawMessage(nil), raw...), nil
}
