// Package apiclient talks to the relay backend from the storefront. Every
// request has a fixed timeout; the retrying variant backs off exponentially.
package apiclient

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

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL        = "http://localhost:5555/api"
	DefaultTimeout        = 10 * time.Second
	DefaultRetryAttempts  = 3
	DefaultInitialBackoff = 2 * time.Second

	maxErrorBody = 4 << 10
)

// ErrTimeout is returned when a request does not complete within the timeout
var ErrTimeout = errors.New("Request timeout - please check your connection")

// HTTPError is returned for non-2xx responses
type HTTPError struct {
	Status int
	// Message is the server's envelope message, when it sent one
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.Status)
}

// NetworkError wraps transport failures
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Config configures a Client
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RetryAttempts  int
	InitialBackoff time.Duration
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Client calls the relay API
type Client struct {
	baseURL    string
	timeout    time.Duration
	attempts   int
	backoff    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a Client, filling unset fields with defaults
func New(cfg Config) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		attempts:   cfg.RetryAttempts,
		backoff:    cfg.InitialBackoff,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.attempts < 1 {
		c.attempts = DefaultRetryAttempts
	}
	if c.backoff <= 0 {
		c.backoff = DefaultInitialBackoff
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// RequestOptions describes one call
type RequestOptions struct {
	Method  string
	Body    any
	Headers map[string]string
}

type envelope struct {
	Message string `json:"message"`
}

// Request performs a single call to endpoint and decodes a JSON response
// into out when out is non-nil.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions, out any) error {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classify(ctx, reqCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{Status: resp.StatusCode}
		var env envelope
		if raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); readErr == nil && json.Unmarshal(raw, &env) == nil {
			httpErr.Message = env.Message
		}
		return httpErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.classify(ctx, reqCtx, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// classify maps a transport error to ErrTimeout, the caller's own
// cancellation, or a NetworkError.
func (c *Client) classify(parent, reqCtx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return &NetworkError{Err: err}
}

// newBackOff returns the retry schedule: before attempt k+1 wait
// initial*2^(k-1), i.e. 2s then 4s with the defaults, without jitter.
func (c *Client) newBackOff(ctx context.Context, attempts int) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.backoff << uint(attempts)
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// RequestWithRetry repeats Request up to attempts times (the client default
// when attempts < 1) and returns the last failure.
func (c *Client) RequestWithRetry(ctx context.Context, endpoint string, opts RequestOptions, out any, attempts int) error {
	if attempts < 1 {
		attempts = c.attempts
	}
	attempt := 0
	op := func() error {
		attempt++
		err := c.Request(ctx, endpoint, opts, out)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("request failed, retrying",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}
	return backoff.RetryNotify(op, c.newBackOff(ctx, attempts), notify)
}
