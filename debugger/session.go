package debugger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Recorder receives protocol traffic notifications for audit purposes.
// *capture.Journal satisfies it.
type Recorder interface {
	RecordCommand(ctx context.Context, sessionID, method string, ok bool, d time.Duration)
	RecordEvent(ctx context.Context, sessionID, method string)
}

// session tracks the state of one debugger attachment to a target. All
// protocol commands flow through it so that enablement checks and capture
// recording happen in a single place.
type session struct {
	id         string
	client     proto.Client
	log        *slog.Logger
	rec        Recorder
	asyncDepth int

	enabled atomic.Bool
}

func newSession(client proto.Client, id string, asyncDepth int, logger *slog.Logger) *session {
	return &session{
		id:         id,
		client:     client,
		log:        logger,
		asyncDepth: asyncDepth,
	}
}

// target returns the protocol client bound to ctx. Pages carry their own
// context, so per-call deadlines require a rebind.
func (s *session) target(ctx context.Context) proto.Client {
	if p, ok := s.client.(*rod.Page); ok {
		return p.Context(ctx)
	}
	return s.client
}

func (s *session) record(ctx context.Context, method string, started time.Time, err error) {
	if s.rec == nil {
		return
	}
	s.rec.RecordCommand(ctx, s.id, method, err == nil, time.Since(started))
}

func (s *session) recordEvent(method string) {
	if s.rec == nil {
		return
	}
	s.rec.RecordEvent(context.Background(), s.id, method)
}

func (s *session) enable(ctx context.Context) error {
	started := time.Now()
	_, err := proto.DebuggerEnable{}.Call(s.target(ctx))
	s.record(ctx, "Debugger.enable", started, err)
	if err != nil {
		return fmt.Errorf("debugger: enable: %w", err)
	}
	s.enabled.Store(true)

	if s.asyncDepth > 0 {
		started = time.Now()
		err = proto.DebuggerSetAsyncCallStackDepth{MaxDepth: s.asyncDepth}.Call(s.target(ctx))
		s.record(ctx, "Debugger.setAsyncCallStackDepth", started, err)
		if err != nil {
			s.log.Warn("debugger: async call stack depth not applied", "depth", s.asyncDepth, "error", err)
		}
	}
	return nil
}

func (s *session) disable(ctx context.Context) error {
	started := time.Now()
	err := proto.DebuggerDisable{}.Call(s.target(ctx))
	s.record(ctx, "Debugger.disable", started, err)
	s.enabled.Store(false)
	if err != nil {
		return fmt.Errorf("debugger: disable: %w", err)
	}
	return nil
}

// requireEnabled fails fast when the session is not enabled. Operations
// that must not have reattach side effects use this instead of
// ensureEnabled.
func (s *session) requireEnabled() error {
	if !s.enabled.Load() {
		return fmt.Errorf("%w: enable the debugger first", ErrNotEnabled)
	}
	return nil
}

// ensureEnabled attempts a single re-enable when the session dropped, so
// that breakpoint calls survive a target reload. A failed reattach is
// reported distinctly from the plain precondition failure.
func (s *session) ensureEnabled(ctx context.Context) error {
	if s.enabled.Load() {
		return nil
	}
	s.log.Info("debugger: session not enabled, attempting reattach", "session", s.id)
	if err := s.enable(ctx); err != nil {
		return fmt.Errorf("%w: reattach failed: %v", ErrNotEnabled, err)
	}
	return nil
}

// staleHandleMarkers are protocol error texts the runtime returns for
// object ids that did not survive a resume or navigation.
var staleHandleMarkers = []string{
	"could not find object with given id",
	"cannot find context with specified id",
	"object id doesn't reference",
	"inspected target navigated or closed",
}

func isStaleHandle(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range staleHandleMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
