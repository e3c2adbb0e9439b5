package messaging

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ltec/orderrelay/internal/infrastructure/config"
)

type fakeSession struct {
	mu       sync.Mutex
	probe    Probe
	startErr error
	sendErr  error
	sendWait time.Duration
	sent     []string
	closed   int

	// startGate holds Start until closed; ignoreCancel keeps it waiting
	// after ctx ends, like a browser launch that cannot be interrupted
	startGate    chan struct{}
	ignoreCancel bool
	starts       atomic.Int32
}

func (f *fakeSession) Start(ctx context.Context) error {
	f.starts.Add(1)
	if f.startGate != nil {
		select {
		case <-f.startGate:
		case <-ctx.Done():
			if !f.ignoreCancel {
				return ctx.Err()
			}
			<-f.startGate
		}
	}
	return f.startErr
}

func (f *fakeSession) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSession) Probe(context.Context) (Probe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probe, nil
}

func (f *fakeSession) setProbe(p Probe) {
	f.mu.Lock()
	f.probe = p
	f.mu.Unlock()
}

func (f *fakeSession) Send(ctx context.Context, number, text string) (string, error) {
	if f.sendWait > 0 {
		select {
		case <-time.After(f.sendWait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, number)
	return "true_" + number + "@c.us_3EB0", nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) handle(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestGateway(s *fakeSession, events *eventLog) *WebGateway {
	return NewWebGateway(s, WebGatewayConfig{
		CountryCode:  "94",
		SendTimeout:  200 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		OnEvent:      events.handle,
	})
}

func TestWebGateway_PairingThenReady(t *testing.T) {
	s := &fakeSession{probe: Probe{State: SessionPairing, PairingCode: "2@abc"}}
	events := &eventLog{}
	g := newTestGateway(s, events)
	defer g.Destroy(context.Background())

	require.NoError(t, g.Initialize(context.Background()))
	assert.Eventually(t, func() bool {
		return len(events.types()) > 0
	}, time.Second, 5*time.Millisecond)
	assert.False(t, g.IsReady())
	assert.Equal(t, EventPairingCode, events.types()[0])

	s.setProbe(Probe{State: SessionLoggedIn})
	assert.Eventually(t, func() bool { return len(events.types()) == 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, g.IsReady())
	assert.Equal(t, []EventType{EventPairingCode, EventAuthenticated, EventReady}, events.types())

	s.setProbe(Probe{State: SessionLoggedOut})
	assert.Eventually(t, func() bool { return len(events.types()) == 4 }, time.Second, 5*time.Millisecond)
	assert.False(t, g.IsReady())
	assert.Equal(t, EventDisconnected, events.types()[3])
}

func TestWebGateway_InitializeFailure(t *testing.T) {
	s := &fakeSession{startErr: errors.New("chrome not found")}
	events := &eventLog{}
	g := newTestGateway(s, events)

	err := g.Initialize(context.Background())
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.False(t, g.IsReady())
	assert.Equal(t, []EventType{EventAuthFailure}, events.types())
	assert.NoError(t, g.Destroy(context.Background()))
	assert.Equal(t, 0, s.closedCount())
}

func TestWebGateway_SendRequiresReady(t *testing.T) {
	s := &fakeSession{probe: Probe{State: SessionLoading}}
	g := newTestGateway(s, &eventLog{})
	defer g.Destroy(context.Background())
	require.NoError(t, g.Initialize(context.Background()))

	res, err := g.SendMessage(context.Background(), "+94771461925", "hi")
	assert.ErrorIs(t, err, ErrNotReady)
	assert.False(t, res.Success)
	assert.Empty(t, s.sent)
}

func readyGateway(t *testing.T, s *fakeSession) *WebGateway {
	t.Helper()
	s.probe = Probe{State: SessionLoggedIn}
	g := newTestGateway(s, &eventLog{})
	require.NoError(t, g.Initialize(context.Background()))
	require.Eventually(t, g.IsReady, time.Second, 5*time.Millisecond)
	t.Cleanup(func() { g.Destroy(context.Background()) })
	return g
}

func TestWebGateway_SendNormalizesRecipient(t *testing.T) {
	s := &fakeSession{}
	g := readyGateway(t, s)

	res, err := g.SendMessage(context.Background(), "077 146 1925", "New order")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.ProviderMessageID)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, []string{"94771461925"}, s.sent)
}

func TestWebGateway_SendNotRegistered(t *testing.T) {
	s := &fakeSession{sendErr: ErrNotRegistered}
	g := readyGateway(t, s)

	res, err := g.SendMessage(context.Background(), "+94700000000", "x")
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Contains(t, res.ErrorReason, "94700000000")
}

func TestWebGateway_SendTimeout(t *testing.T) {
	s := &fakeSession{sendWait: time.Second}
	g := readyGateway(t, s)

	_, err := g.SendMessage(context.Background(), "+94771461925", "x")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestWebGateway_DestroyIsIdempotent(t *testing.T) {
	s := &fakeSession{}
	g := readyGateway(t, s)

	require.NoError(t, g.Destroy(context.Background()))
	require.NoError(t, g.Destroy(context.Background()))
	assert.False(t, g.IsReady())
	assert.Equal(t, 1, s.closedCount())
}

func startInBackground(t *testing.T, g *WebGateway, s *fakeSession) <-chan error {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- g.Initialize(context.Background()) }()
	require.Eventually(t, func() bool { return s.starts.Load() == 1 }, time.Second, time.Millisecond)
	return result
}

func TestWebGateway_DestroyCancelsPendingStart(t *testing.T) {
	s := &fakeSession{startGate: make(chan struct{})}
	g := newTestGateway(s, &eventLog{})
	result := startInBackground(t, g, s)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, g.Destroy(ctx))

	var initErr *InitError
	require.ErrorAs(t, <-result, &initErr)
	assert.ErrorIs(t, initErr, errDestroyed)
	assert.Equal(t, 0, s.closedCount())
	assert.False(t, g.IsReady())
}

func TestWebGateway_DestroyGivesUpAtDeadline(t *testing.T) {
	s := &fakeSession{startGate: make(chan struct{}), ignoreCancel: true}
	g := newTestGateway(s, &eventLog{})
	result := startInBackground(t, g, s)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	began := time.Now()
	err := g.Destroy(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(began), time.Second)

	// the start that outlived shutdown closes its own session
	close(s.startGate)
	assert.Error(t, <-result)
	assert.Equal(t, 1, s.closedCount())
}

func TestWebGateway_InitializeAfterDestroy(t *testing.T) {
	s := &fakeSession{}
	g := newTestGateway(s, &eventLog{})
	require.NoError(t, g.Destroy(context.Background()))

	var initErr *InitError
	require.ErrorAs(t, g.Initialize(context.Background()), &initErr)
	assert.Equal(t, int32(0), s.starts.Load())
}

func TestLogGateway(t *testing.T) {
	g := NewLogGateway("94", zap.NewNop())
	_, err := g.SendMessage(context.Background(), "0771461925", "x")
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, g.Initialize(context.Background()))
	res, err := g.SendMessage(context.Background(), "0771461925", "hello")
	require.NoError(t, err)
	assert.True(t, res.Success)

	sent := g.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "94771461925@c.us", sent[0].ChatID)
	assert.Equal(t, res.ProviderMessageID, sent[0].ID)

	require.NoError(t, g.Destroy(context.Background()))
	assert.False(t, g.IsReady())
}

func TestTerminalEvents_DrawsPairingCode(t *testing.T) {
	var buf bytes.Buffer
	handle := TerminalEvents(&buf, zap.NewNop())
	handle(Event{Type: EventPairingCode, PairingCode: "2@Zm9vYmFy,abc"})
	assert.Contains(t, buf.String(), "Scan this QR code")
	assert.Greater(t, buf.Len(), 200)

	handle(Event{Type: EventReady})
}

func TestNewGateway(t *testing.T) {
	assert.IsType(t, &LogGateway{}, NewGateway(config.GatewayConfig{Driver: "log"}, zap.NewNop(), nil))
	assert.IsType(t, &WebGateway{}, NewGateway(config.GatewayConfig{Driver: "whatsapp-web"}, zap.NewNop(), nil))
}
