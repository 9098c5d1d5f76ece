package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"herald/internal/logging"
)

var (
	// ErrNotReady is returned when an operation needs a launched browser.
	ErrNotReady = errors.New("browser session not ready")
	// ErrClosed is returned for operations on a closed session.
	ErrClosed = errors.New("browser session closed")
)

// State is the lifecycle position of a Manager.
type State int

const (
	StateUninitialized State = iota
	StateLaunching
	StateAuthenticating
	StateReady
	StateNavigating
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLaunching:
		return "launching"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateNavigating:
		return "navigating"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StepError names the UI step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return "browser step " + e.Step + ": " + e.Err.Error() }
func (e *StepError) Unwrap() error { return e.Err }

func stepErr(step string, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step, Err: err}
}

// Options configure a Manager.
type Options struct {
	BaseURL           string
	SessionKey        string
	Launch            LaunchOptions
	NavigationTimeout time.Duration
	StepTimeout       time.Duration
	// ScrollPause is how long to let the timeline load after each scroll.
	ScrollPause time.Duration
}

// Credentials log the browser into the account.
type Credentials struct {
	Username string
	Password string
	// Email answers the identity challenge; Username is used when empty.
	Email string
}

// Manager owns at most one browser process at a time.
type Manager struct {
	engine  Engine
	cookies CookieStore
	opts    Options

	mu     sync.Mutex
	state  State
	driver Driver
}

func NewManager(engine Engine, cookies CookieStore, opts Options) *Manager {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://x.com"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.SessionKey == "" {
		opts.SessionKey = "x-session"
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 10 * time.Second
	}
	if opts.ScrollPause < 0 {
		opts.ScrollPause = 0
	}
	return &Manager{engine: engine, cookies: cookies, opts: opts}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Init makes sure a live browser exists. A healthy browser is reused; a dead
// one is discarded and relaunched. Saved cookies are restored into a new browser.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.driver != nil {
		pctx, cancel := context.WithTimeout(ctx, m.opts.StepTimeout)
		alive := m.driver.Alive(pctx)
		cancel()
		if alive {
			return nil
		}
		logging.Warn("browser_stale", map[string]any{"state": m.state.String()})
		if err := m.driver.Close(); err != nil {
			logging.Warn("browser_close_failed", map[string]any{"error": err})
		}
		m.driver = nil
	}

	m.state = StateLaunching
	d, err := m.engine.Launch(ctx, m.opts.Launch)
	if err != nil {
		m.state = StateClosed
		return fmt.Errorf("launch browser: %w", err)
	}
	m.driver = d

	m.state = StateAuthenticating
	if err := m.restoreCookies(ctx, d); err != nil {
		if cerr := d.Close(); cerr != nil {
			logging.Warn("browser_close_failed", map[string]any{"error": cerr})
		}
		m.driver = nil
		m.state = StateClosed
		return err
	}
	m.state = StateReady
	logging.Info("browser_ready", map[string]any{"headless": m.opts.Launch.Headless})
	return nil
}

func (m *Manager) restoreCookies(ctx context.Context, d Driver) error {
	if m.cookies == nil {
		return nil
	}
	raw, ok, err := m.cookies.GetCookies(ctx, m.opts.SessionKey)
	if err != nil {
		return fmt.Errorf("load cookies: %w", err)
	}
	if !ok || raw == "" {
		return nil
	}
	cs, err := decodeCookies(raw)
	if err != nil {
		// a bad blob only costs a fresh login
		logging.Warn("browser_cookies_invalid", map[string]any{"error": err})
		return nil
	}
	sctx, cancel := context.WithTimeout(ctx, m.opts.StepTimeout)
	defer cancel()
	if err := d.SetCookies(sctx, cs); err != nil {
		return fmt.Errorf("restore cookies: %w", err)
	}
	return nil
}

// ready returns the driver when the session can take commands.
func (m *Manager) ready() (Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.state == StateClosed:
		return nil, ErrClosed
	case m.driver == nil || m.state != StateReady:
		return nil, ErrNotReady
	}
	return m.driver, nil
}

func (m *Manager) navigate(ctx context.Context, d Driver, url string) error {
	m.setState(StateNavigating)
	defer m.setState(StateReady)
	nctx, cancel := context.WithTimeout(ctx, m.opts.NavigationTimeout)
	defer cancel()
	return d.Navigate(nctx, url)
}

func (m *Manager) step(ctx context.Context, name string, fn func(context.Context) error) error {
	sctx, cancel := context.WithTimeout(ctx, m.opts.StepTimeout)
	defer cancel()
	return stepErr(name, fn(sctx))
}

// Close shuts the browser down. It never fails; problems are logged.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.driver != nil {
		if err := m.driver.Close(); err != nil {
			logging.Warn("browser_close_failed", map[string]any{"error": err})
		}
		m.driver = nil
		logging.Info("browser_closed", nil)
	}
	m.state = StateClosed
}
