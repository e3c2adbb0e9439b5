package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var errDestroyed = errors.New("gateway already destroyed")

// SessionState is what a probe of the browser session observed
type SessionState int

const (
	SessionLoading SessionState = iota
	SessionPairing
	SessionLoggedIn
	SessionLoggedOut
)

// Probe is one observation of the session
type Probe struct {
	State       SessionState
	PairingCode string
}

// Session drives the messaging web client. Implementations need not be
// safe for concurrent use; WebGateway serializes access.
type Session interface {
	Start(ctx context.Context) error
	Probe(ctx context.Context) (Probe, error)
	// Send delivers text to the number given as international digits and
	// returns the provider message id. ErrNotRegistered if there is no account.
	Send(ctx context.Context, number, text string) (string, error)
	Close() error
}

// WebGatewayConfig tunes a WebGateway
type WebGatewayConfig struct {
	CountryCode  string
	SendTimeout  time.Duration
	PollInterval time.Duration
	Logger       *zap.Logger
	OnEvent      EventHandler
}

// WebGateway implements Gateway on top of a browser Session. A watcher
// goroutine bound to the session lifetime owns the readiness flag.
type WebGateway struct {
	session Session
	cfg     WebGatewayConfig
	logger  *zap.Logger

	ready atomic.Bool
	slot  chan struct{} // held while the session is in use

	mu          sync.Mutex // guards the lifecycle fields below
	destroyed   bool
	running     bool
	startCancel context.CancelFunc
	startDone   chan struct{}
	watchCancel context.CancelFunc
	watchDone   chan struct{}

	destroyOnce sync.Once
	destroyErr  error

	lastCode      string
	authenticated bool
}

// NewWebGateway wraps session
func NewWebGateway(session Session, cfg WebGatewayConfig) *WebGateway {
	if cfg.CountryCode == "" {
		cfg.CountryCode = "94"
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 45 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebGateway{
		session: session,
		cfg:     cfg,
		logger:  logger.Named("gateway"),
		slot:    make(chan struct{}, 1),
	}
}

func (g *WebGateway) acquire(ctx context.Context) error {
	select {
	case g.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *WebGateway) tryAcquire() bool {
	select {
	case g.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (g *WebGateway) release() { <-g.slot }

// Initialize starts the session and the readiness watcher. Destroy cancels
// a start in progress.
func (g *WebGateway) Initialize(ctx context.Context) error {
	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		return &InitError{Err: errDestroyed}
	}
	if g.startDone != nil {
		g.mu.Unlock()
		return nil
	}
	startCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	g.startCancel, g.startDone = cancel, done
	g.mu.Unlock()
	defer close(done)
	defer cancel()

	err := g.session.Start(startCtx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.destroyed {
		if err == nil {
			if cerr := g.session.Close(); cerr != nil {
				g.logger.Warn("closing session after destroy", zap.Error(cerr))
			}
		}
		return &InitError{Err: errDestroyed}
	}
	if err != nil {
		g.startCancel, g.startDone = nil, nil
		g.emit(Event{Type: EventAuthFailure, Reason: err.Error()})
		return &InitError{Err: err}
	}

	watchCtx, stop := context.WithCancel(context.Background())
	g.watchCancel, g.watchDone = stop, make(chan struct{})
	g.running = true
	go g.watch(watchCtx, g.watchDone)

	g.logger.Info("WhatsApp client initializing")
	return nil
}

func (g *WebGateway) watch(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	g.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.poll(ctx)
		}
	}
}

// poll observes the session once. It skips the round while a send holds
// the session so navigation during a send is never read as a logout.
func (g *WebGateway) poll(ctx context.Context) {
	if !g.tryAcquire() {
		return
	}
	probeCtx, cancel := context.WithTimeout(ctx, g.cfg.PollInterval*5)
	p, err := g.session.Probe(probeCtx)
	cancel()
	g.release()

	if err != nil {
		if ctx.Err() == nil {
			g.logger.Warn("session probe failed", zap.Error(err))
		}
		return
	}
	g.apply(p)
}

func (g *WebGateway) apply(p Probe) {
	switch p.State {
	case SessionLoggedIn:
		if !g.authenticated {
			g.authenticated = true
			g.emit(Event{Type: EventAuthenticated})
		}
		if !g.ready.Swap(true) {
			g.lastCode = ""
			g.logger.Info("WhatsApp client is ready")
			g.emit(Event{Type: EventReady})
		}
	case SessionPairing:
		if g.ready.Swap(false) {
			g.logger.Warn("WhatsApp client disconnected", zap.String("reason", "pairing required"))
			g.emit(Event{Type: EventDisconnected, Reason: "pairing required"})
		}
		g.authenticated = false
		if p.PairingCode != "" && p.PairingCode != g.lastCode {
			g.lastCode = p.PairingCode
			g.logger.Info("pairing code received, scan it with the WhatsApp mobile app")
			g.emit(Event{Type: EventPairingCode, PairingCode: p.PairingCode})
		}
	case SessionLoggedOut:
		g.authenticated = false
		if g.ready.Swap(false) {
			g.logger.Warn("WhatsApp client disconnected", zap.String("reason", "logged out"))
			g.emit(Event{Type: EventDisconnected, Reason: "logged out"})
		}
	}
}

func (g *WebGateway) emit(e Event) {
	if g.cfg.OnEvent != nil {
		g.cfg.OnEvent(e)
	}
}

// IsReady reports whether the session is paired and usable
func (g *WebGateway) IsReady() bool {
	return g.ready.Load()
}

// SendMessage delivers text to recipient
func (g *WebGateway) SendMessage(ctx context.Context, recipient, text string) (DeliveryResult, error) {
	if !g.IsReady() {
		return DeliveryResult{ErrorReason: ErrNotReady.Error()}, ErrNotReady
	}
	number, err := NormalizeNumber(recipient, g.cfg.CountryCode)
	if err != nil {
		return DeliveryResult{ErrorReason: err.Error()}, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, g.cfg.SendTimeout)
	defer cancel()

	var id string
	err = g.acquire(sendCtx)
	if err == nil {
		id, err = g.session.Send(sendCtx, number, text)
		g.release()
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ErrTimeout, err)
		} else if errors.Is(err, ErrNotRegistered) {
			err = fmt.Errorf("phone number %s is not registered on WhatsApp: %w", number, ErrNotRegistered)
		}
		g.logger.Error("failed to send message", zap.String("to", number+chatSuffix), zap.Error(err))
		return DeliveryResult{ErrorReason: err.Error()}, err
	}

	g.logger.Info("message sent", zap.String("to", number+chatSuffix), zap.String("message_id", id))
	return DeliveryResult{Success: true, ProviderMessageID: id}, nil
}

// Destroy cancels a pending start, stops the watcher and closes the
// session. It gives up when ctx ends; a start finishing after that closes
// the session itself.
func (g *WebGateway) Destroy(ctx context.Context) error {
	g.destroyOnce.Do(func() {
		g.destroyErr = g.destroy(ctx)
	})
	return g.destroyErr
}

func (g *WebGateway) destroy(ctx context.Context) error {
	g.ready.Store(false)

	g.mu.Lock()
	g.destroyed = true
	startCancel, startDone := g.startCancel, g.startDone
	watchCancel, watchDone := g.watchCancel, g.watchDone
	g.mu.Unlock()

	if startCancel != nil {
		startCancel()
		select {
		case <-startDone:
		case <-ctx.Done():
			g.logger.Warn("WhatsApp client still starting at shutdown")
			return fmt.Errorf("waiting for session start: %w", ctx.Err())
		}
	}
	if watchCancel != nil {
		watchCancel()
		select {
		case <-watchDone:
		case <-ctx.Done():
			return fmt.Errorf("waiting for session watcher: %w", ctx.Err())
		}
	}

	if err := g.acquire(ctx); err != nil {
		g.logger.Warn("WhatsApp session busy at shutdown")
		return fmt.Errorf("waiting for session: %w", err)
	}
	defer g.release()

	g.mu.Lock()
	running := g.running
	g.running = false
	g.mu.Unlock()

	var err error
	if running {
		err = g.session.Close()
	}
	g.logger.Info("WhatsApp client destroyed")
	return err
}

var _ Gateway = (*WebGateway)(nil)
