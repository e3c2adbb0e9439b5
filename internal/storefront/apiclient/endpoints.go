package apiclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Result is the normalized outcome of a high-level call. Failures never
// surface as Go errors; Err keeps the typed cause for callers that care.
type Result[T any] struct {
	Success bool
	Data    T
	Error   string
	Err     error
}

func failure[T any](err error) Result[T] {
	msg := err.Error()
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		msg = httpErr.Message
	}
	return Result[T]{Error: msg, Err: err}
}

// Health is the body of GET /health
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	WhatsApp  bool   `json:"whatsapp"`
}

// WhatsAppStatus is the body of GET /whatsapp/status
type WhatsAppStatus struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

// FormData is the body of POST /submit-form
type FormData struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Product  string `json:"product,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
	Message  string `json:"message,omitempty"`
}

// SubmitResponse is the success envelope of POST /submit-form
type SubmitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CheckHealth calls GET /health once
func (c *Client) CheckHealth(ctx context.Context) Result[Health] {
	var h Health
	if err := c.Request(ctx, "/health", RequestOptions{}, &h); err != nil {
		return failure[Health](err)
	}
	return Result[Health]{Success: true, Data: h}
}

// CheckWhatsAppStatus calls GET /whatsapp/status once
func (c *Client) CheckWhatsAppStatus(ctx context.Context) Result[WhatsAppStatus] {
	var s WhatsAppStatus
	if err := c.Request(ctx, "/whatsapp/status", RequestOptions{}, &s); err != nil {
		return failure[WhatsAppStatus](err)
	}
	return Result[WhatsAppStatus]{Success: true, Data: s}
}

// SubmitForm posts form with retries. One idempotency key covers all
// attempts, so a retry after a lost response is not relayed twice.
func (c *Client) SubmitForm(ctx context.Context, form FormData) Result[SubmitResponse] {
	var resp SubmitResponse
	opts := RequestOptions{
		Method:  http.MethodPost,
		Body:    form,
		Headers: map[string]string{"Idempotency-Key": uuid.NewString()},
	}
	if err := c.RequestWithRetry(ctx, "/submit-form", opts, &resp, 0); err != nil {
		return failure[SubmitResponse](err)
	}
	return Result[SubmitResponse]{Success: true, Data: resp}
}

// ConnectionErrors holds the failure reason of each check
type ConnectionErrors struct {
	Backend  string
	WhatsApp string
}

// ConnectionStatus summarizes backend and gateway reachability
type ConnectionStatus struct {
	Backend  bool
	WhatsApp bool
	Errors   ConnectionErrors
}

// GetConnectionStatus runs both checks concurrently and waits for both
func (c *Client) GetConnectionStatus(ctx context.Context) ConnectionStatus {
	var (
		health Result[Health]
		status Result[WhatsAppStatus]
	)
	var g errgroup.Group
	g.Go(func() error {
		health = c.CheckHealth(ctx)
		return nil
	})
	g.Go(func() error {
		status = c.CheckWhatsAppStatus(ctx)
		return nil
	})
	_ = g.Wait()

	return ConnectionStatus{
		Backend:  health.Success,
		WhatsApp: status.Success && status.Data.Ready,
		Errors: ConnectionErrors{
			Backend:  health.Error,
			WhatsApp: status.Error,
		},
	}
}

// IsBackendAvailable reports whether the health check succeeds
func (c *Client) IsBackendAvailable(ctx context.Context) bool {
	return c.CheckHealth(ctx).Success
}

// IsWhatsAppReady reports whether the gateway is paired
func (c *Client) IsWhatsAppReady(ctx context.Context) bool {
	s := c.CheckWhatsAppStatus(ctx)
	return s.Success && s.Data.Ready
}
