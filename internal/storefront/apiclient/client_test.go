package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(url string) *Client {
	return New(Config{BaseURL: url, Timeout: time.Second, InitialBackoff: time.Millisecond})
}

func TestRequest_DecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		writeJSON(w, http.StatusOK, Health{Status: "OK", WhatsApp: true})
	}))
	defer srv.Close()

	var h Health
	err := newClient(srv.URL+"/api/").Request(context.Background(), "/health", RequestOptions{}, &h)
	require.NoError(t, err)
	assert.Equal(t, "OK", h.Status)
	assert.True(t, h.WhatsApp)
}

func TestRequest_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	err := c.Request(context.Background(), "/health", RequestOptions{}, nil)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "Request timeout - please check your connection", err.Error())
}

func TestRequest_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "message": "not ready"})
	}))
	defer srv.Close()

	err := newClient(srv.URL).Request(context.Background(), "/submit-form", RequestOptions{Method: http.MethodPost}, nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.Status)
	assert.Equal(t, "not ready", httpErr.Message)
	assert.Equal(t, "HTTP error! status: 503", err.Error())
}

func TestRequest_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newClient(url).Request(context.Background(), "/health", RequestOptions{}, nil)
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestRequest_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newClient("http://127.0.0.1:1").Request(ctx, "/health", RequestOptions{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestWithRetry_ExhaustsAttemptsWithGrowingDelay(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	const base = 30 * time.Millisecond
	c := New(Config{BaseURL: srv.URL, Timeout: time.Second, InitialBackoff: base})
	err := c.RequestWithRetry(context.Background(), "/health", RequestOptions{}, nil, 3)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 3)
	assert.GreaterOrEqual(t, calls[1].Sub(calls[0]), base)
	assert.GreaterOrEqual(t, calls[2].Sub(calls[1]), 2*base)
}

func TestRequestWithRetry_TimeoutOnEveryAttempt(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, time.Now())
		mu.Unlock()
		<-r.Context().Done()
	}))
	defer srv.Close()

	const base = 40 * time.Millisecond
	c := New(Config{BaseURL: srv.URL, Timeout: 100 * time.Millisecond, InitialBackoff: base})
	err := c.RequestWithRetry(context.Background(), "/health", RequestOptions{}, nil, 3)

	assert.ErrorIs(t, err, ErrTimeout)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 3)
	assert.GreaterOrEqual(t, calls[1].Sub(calls[0]), base)
	assert.GreaterOrEqual(t, calls[2].Sub(calls[1]), 2*base)
}

func TestRequestWithRetry_SucceedsAfterFailure(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, Health{Status: "OK"})
	}))
	defer srv.Close()

	var h Health
	err := newClient(srv.URL).RequestWithRetry(context.Background(), "/health", RequestOptions{}, &h, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(2), n.Load())
	assert.Equal(t, "OK", h.Status)
}

func TestRetrySchedule_Defaults(t *testing.T) {
	c := New(Config{})
	b := c.newBackOff(context.Background(), DefaultRetryAttempts)
	b.Reset()

	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, 4*time.Second, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestRetrySchedule_SingleAttemptNeverWaits(t *testing.T) {
	c := New(Config{})
	b := c.newBackOff(context.Background(), 1)
	b.Reset()
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestSubmitForm_ReusesIdempotencyKey(t *testing.T) {
	var (
		mu   sync.Mutex
		keys []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		first := len(keys) == 1
		mu.Unlock()

		var form FormData
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&form))
		assert.Equal(t, "Jane", form.Name)

		if first {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, SubmitResponse{Success: true, Message: "Form submitted successfully and sent to WhatsApp"})
	}))
	defer srv.Close()

	res := newClient(srv.URL).SubmitForm(context.Background(), FormData{Name: "Jane", Email: "jane@example.com", Phone: "0712345678"})
	require.True(t, res.Success, res.Error)
	assert.True(t, res.Data.Success)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1])
}

func TestSubmitForm_SurfacesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"message": "WhatsApp service is not ready. Please try again later.",
		})
	}))
	defer srv.Close()

	res := newClient(srv.URL).SubmitForm(context.Background(), FormData{Name: "Jane"})
	assert.False(t, res.Success)
	assert.Equal(t, "WhatsApp service is not ready. Please try again later.", res.Error)
	var httpErr *HTTPError
	require.True(t, errors.As(res.Err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.Status)
}

func TestGetConnectionStatus(t *testing.T) {
	tests := []struct {
		name         string
		ready        bool
		statusCode   int
		wantWhatsApp bool
		wantErr      string
	}{
		{name: "both up", ready: true, statusCode: http.StatusOK, wantWhatsApp: true},
		{name: "gateway pairing", ready: false, statusCode: http.StatusOK},
		{name: "status endpoint failing", statusCode: http.StatusInternalServerError, wantErr: "HTTP error! status: 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, Health{Status: "OK", WhatsApp: tt.ready})
			})
			mux.HandleFunc("/whatsapp/status", func(w http.ResponseWriter, r *http.Request) {
				if tt.statusCode != http.StatusOK {
					w.WriteHeader(tt.statusCode)
					return
				}
				writeJSON(w, http.StatusOK, WhatsAppStatus{Ready: tt.ready})
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			c := newClient(srv.URL)
			st := c.GetConnectionStatus(context.Background())
			assert.True(t, st.Backend)
			assert.Empty(t, st.Errors.Backend)
			assert.Equal(t, tt.wantWhatsApp, st.WhatsApp)
			assert.Equal(t, tt.wantErr, st.Errors.WhatsApp)
			assert.True(t, c.IsBackendAvailable(context.Background()))
			assert.Equal(t, tt.wantWhatsApp, c.IsWhatsAppReady(context.Background()))
		})
	}
}

func TestGetConnectionStatus_BackendDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	st := newClient(url).GetConnectionStatus(context.Background())
	assert.False(t, st.Backend)
	assert.False(t, st.WhatsApp)
	assert.NotEmpty(t, st.Errors.Backend)
	assert.NotEmpty(t, st.Errors.WhatsApp)
}
