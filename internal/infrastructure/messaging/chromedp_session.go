package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultWebURL       = "https://web.whatsapp.com"
	defaultStartTimeout = 60 * time.Second
	sendPollInterval    = 500 * time.Millisecond

	// WhatsApp Web refuses the headless Chrome user agent
	desktopUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
)

// page scripts. Selectors follow the WhatsApp Web DOM.
const (
	probeScript = `(() => {
	if (document.querySelector('#pane-side')) return {state: 'ready', code: ''};
	const qr = document.querySelector('div[data-ref]');
	if (qr) return {state: 'pairing', code: qr.getAttribute('data-ref') || ''};
	if (document.querySelector('[data-testid="intro-md-beta-logo-dark"], [data-icon="intro-md-beta-logo-light"]')) return {state: 'logged_out', code: ''};
	return {state: 'loading', code: ''};
})()`

	chatScript = `(() => {
	const popup = document.querySelector('div[data-animate-modal-popup="true"]');
	if (popup && /invalid/i.test(popup.innerText)) return 'invalid';
	if (document.querySelector('footer span[data-icon="send"]')) return 'chat';
	return 'loading';
})()`

	lastOutgoingScript = `(() => {
	const all = document.querySelectorAll('div.message-out');
	if (!all.length) return '';
	const el = all[all.length - 1].closest('[data-id]');
	return el ? el.getAttribute('data-id') : '';
})()`
)

// ChromedpConfig configures the headless browser session
type ChromedpConfig struct {
	URL          string
	UserDataDir  string // persisted profile, keeps the pairing across restarts
	RemoteURL    string // connect to a running Chrome instead of launching one
	Headless     bool
	NoSandbox    bool
	StartTimeout time.Duration
	Logger       *zap.Logger
}

// ChromedpSession drives WhatsApp Web in Chrome through the DevTools protocol
type ChromedpSession struct {
	cfg    ChromedpConfig
	logger *zap.Logger

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromedpSession creates a session; the browser starts on Start
func NewChromedpSession(cfg ChromedpConfig) *ChromedpSession {
	if cfg.URL == "" {
		cfg.URL = defaultWebURL
	}
	if cfg.StartTimeout == 0 {
		cfg.StartTimeout = defaultStartTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromedpSession{cfg: cfg, logger: logger.Named("chromedp")}
}

func (s *ChromedpSession) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
		chromedp.UserAgent(desktopUserAgent),
		chromedp.WindowSize(1280, 900),
	)
	if s.cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(s.cfg.UserDataDir))
	}
	if s.cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

// Start launches (or attaches to) Chrome and opens WhatsApp Web
func (s *ChromedpSession) Start(ctx context.Context) error {
	if s.cfg.RemoteURL != "" {
		s.allocCtx, s.allocCancel = chromedp.NewRemoteAllocator(context.Background(), s.cfg.RemoteURL)
	} else {
		s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), s.allocatorOptions()...)
	}
	s.browserCtx, s.browserCancel = chromedp.NewContext(s.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			s.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// The first Run allocates the browser and binds it to browserCtx, so it
	// must not carry the start deadline.
	if err := chromedp.Run(s.browserCtx); err != nil {
		s.Close()
		return fmt.Errorf("launch browser: %w", err)
	}

	runCtx, cancel := s.bounded(ctx, s.cfg.StartTimeout)
	defer cancel()
	err := chromedp.Run(runCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetUserAgentOverride(desktopUserAgent).Do(ctx)
		}),
		chromedp.Navigate(s.cfg.URL),
	)
	if err != nil {
		s.Close()
		return fmt.Errorf("open %s: %w", s.cfg.URL, err)
	}
	return nil
}

// bounded derives a context from the browser context that also ends when
// parent ends or after timeout.
func (s *ChromedpSession) bounded(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(s.browserCtx, timeout)
	stop := context.AfterFunc(parent, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Probe reports whether the page shows the chat list, a pairing QR, or neither
func (s *ChromedpSession) Probe(ctx context.Context) (Probe, error) {
	if s.browserCtx == nil {
		return Probe{}, errors.New("session not started")
	}
	runCtx, cancel := s.bounded(ctx, s.cfg.StartTimeout)
	defer cancel()

	var res struct {
		State string `json:"state"`
		Code  string `json:"code"`
	}
	if err := chromedp.Run(runCtx, chromedp.Evaluate(probeScript, &res)); err != nil {
		return Probe{}, err
	}
	switch res.State {
	case "ready":
		return Probe{State: SessionLoggedIn}, nil
	case "pairing":
		return Probe{State: SessionPairing, PairingCode: res.Code}, nil
	case "logged_out":
		return Probe{State: SessionLoggedOut}, nil
	default:
		return Probe{State: SessionLoading}, nil
	}
}

// Send opens the chat through the click-to-chat URL, which WhatsApp Web
// answers with an "invalid number" popup for unregistered numbers.
func (s *ChromedpSession) Send(ctx context.Context, number, text string) (string, error) {
	if s.browserCtx == nil {
		return "", errors.New("session not started")
	}
	deadline, ok := ctx.Deadline()
	timeout := s.cfg.StartTimeout
	if ok {
		timeout = time.Until(deadline)
	}
	runCtx, cancel := s.bounded(ctx, timeout)
	defer cancel()

	var before string
	_ = chromedp.Run(runCtx, chromedp.Evaluate(lastOutgoingScript, &before))

	target := fmt.Sprintf("%s/send?phone=%s&text=%s", s.cfg.URL, url.QueryEscape(number), url.QueryEscape(text))
	if err := chromedp.Run(runCtx, chromedp.Navigate(target)); err != nil {
		return "", fmt.Errorf("open chat: %w", err)
	}

	state, err := s.waitFor(runCtx, chatScript, func(v string) bool { return v == "chat" || v == "invalid" })
	if err != nil {
		return "", err
	}
	if state == "invalid" {
		return "", ErrNotRegistered
	}

	if err := chromedp.Run(runCtx, chromedp.Click(`footer span[data-icon="send"]`, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("click send: %w", err)
	}

	id, err := s.waitFor(runCtx, lastOutgoingScript, func(v string) bool { return v != "" && v != before })
	if err != nil {
		return "", fmt.Errorf("await delivery: %w", err)
	}
	return id, nil
}

// waitFor evaluates script until done accepts its result
func (s *ChromedpSession) waitFor(ctx context.Context, script string, done func(string) bool) (string, error) {
	ticker := time.NewTicker(sendPollInterval)
	defer ticker.Stop()
	for {
		var v string
		if err := chromedp.Run(ctx, chromedp.Evaluate(script, &v)); err != nil {
			return "", err
		}
		if done(v) {
			return v, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close shuts the browser down. The profile directory is kept.
func (s *ChromedpSession) Close() error {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.browserCtx = nil
	return nil
}

var _ Session = (*ChromedpSession)(nil)
