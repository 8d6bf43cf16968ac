// Package debugger drives the DevTools debugging domain of a single page:
// execution control, breakpoints, scope inspection and a script registry
// with source search. It holds the local state the protocol does not keep
// for us, such as breakpoint bookkeeping and the last pause snapshot.
package debugger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/chrdbg/idgen"
)

// Exception pause modes accepted by SetPauseOnExceptions.
const (
	PauseOnNone     = "none"
	PauseOnUncaught = "uncaught"
	PauseOnAll      = "all"
)

// Config controls manager behavior. Zero values get sensible defaults.
type Config struct {
	// PauseOnExceptions is applied right after Enable. Empty leaves the
	// target's current mode untouched.
	PauseOnExceptions string

	// AsyncCallStackDepth is sent at Enable so pauses inside promise
	// chains keep their async parents. Default 32.
	AsyncCallStackDepth int

	// DefaultWaitTimeout bounds WaitForPaused when the caller passes no
	// timeout. Default 30s.
	DefaultWaitTimeout time.Duration

	// MaxScripts caps script listings when the request has no explicit
	// limit. Default 50.
	MaxScripts int

	// SearchMaxMatches caps search results when the request has no
	// explicit limit. Default 20.
	SearchMaxMatches int

	// SearchContextLines is the default number of lines around a search
	// hit. Default 2.
	SearchContextLines int
}

func (c *Config) applyDefaults() {
	if c.AsyncCallStackDepth == 0 {
		c.AsyncCallStackDepth = 32
	}
	if c.DefaultWaitTimeout == 0 {
		c.DefaultWaitTimeout = 30 * time.Second
	}
	if c.MaxScripts == 0 {
		c.MaxScripts = 50
	}
	if c.SearchMaxMatches == 0 {
		c.SearchMaxMatches = 20
	}
	if c.SearchContextLines == 0 {
		c.SearchContextLines = 2
	}
}

func validPauseMode(state string) bool {
	switch state {
	case PauseOnNone, PauseOnUncaught, PauseOnAll:
		return true
	}
	return false
}

// Manager owns the debugger state for one target.
type Manager struct {
	cfg     Config
	log     *slog.Logger
	sess    *session
	scripts *ScriptRegistry

	mu      sync.Mutex
	paused  *PausedState
	epoch   int64
	waiters []*pauseWaiter

	bps     map[string]*Breakpoint
	bpOrder []string

	events     map[string]*EventBreakpoint
	eventOrder []string
	eventSeq   int

	xhrs     map[string]*XHRBreakpoint
	xhrOrder []string
	xhrSeq   int
}

// Option configures a Manager beyond what Config covers.
type Option func(*Manager)

// WithRecorder captures every protocol command and event into the given
// recorder, keyed by the manager's session id.
func WithRecorder(rec Recorder) Option {
	return func(m *Manager) { m.sess.rec = rec }
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(m *Manager) { m.sess.id = id }
}

// New builds a manager for the given protocol client. In production the
// client is a *rod.Page; tests substitute a fake.
func New(client proto.Client, cfg *Config, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("debugger: nil client")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.applyDefaults()
	if cfg.PauseOnExceptions != "" && !validPauseMode(cfg.PauseOnExceptions) {
		return nil, fmt.Errorf("%w: pause on exceptions mode %q", ErrInvalidInput, cfg.PauseOnExceptions)
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:    *cfg,
		log:    logger,
		sess:   newSession(client, idgen.Prefixed("sess_", idgen.Default)(), cfg.AsyncCallStackDepth, logger),
		bps:    make(map[string]*Breakpoint),
		events: make(map[string]*EventBreakpoint),
		xhrs:   make(map[string]*XHRBreakpoint),
	}
	for _, o := range opts {
		o(m)
	}
	m.scripts = newScriptRegistry(m.sess, &m.cfg, logger)
	return m, nil
}

// SessionID returns the id under which protocol traffic is recorded.
func (m *Manager) SessionID() string { return m.sess.id }

// Scripts exposes the script registry attached to this manager.
func (m *Manager) Scripts() *ScriptRegistry { return m.scripts }

// Enable attaches the debugging domain and applies the configured
// exception pause mode.
func (m *Manager) Enable(ctx context.Context) error {
	if err := m.sess.enable(ctx); err != nil {
		return err
	}
	if m.cfg.PauseOnExceptions != "" {
		if err := m.SetPauseOnExceptions(ctx, m.cfg.PauseOnExceptions); err != nil {
			return err
		}
	}
	m.log.Info("debugger: enabled", "session", m.sess.id)
	return nil
}

// Disable detaches the debugging domain. Local breakpoint bookkeeping is
// kept so a later Enable can reason about what was registered.
func (m *Manager) Disable(ctx context.Context) error {
	m.clearPaused()
	if err := m.sess.disable(ctx); err != nil {
		return err
	}
	m.log.Info("debugger: disabled", "session", m.sess.id)
	return nil
}

// Detach performs best-effort teardown before releasing the target:
// breakpoints of all kinds are cleared, the domain disabled and cached
// scripts dropped. Errors are aggregated, not short-circuited.
func (m *Manager) Detach(ctx context.Context) error {
	var errs []error
	if _, err := m.ClearAllBreakpoints(ctx); err != nil {
		errs = append(errs, err)
	}
	m.ClearAllEventBreakpoints(ctx)
	m.ClearAllXHRBreakpoints(ctx)
	if m.sess.enabled.Load() {
		if err := m.Disable(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	m.scripts.Clear()
	if len(errs) > 0 {
		return fmt.Errorf("debugger: detach left residue: %v", errs)
	}
	return nil
}
