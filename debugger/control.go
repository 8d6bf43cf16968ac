package debugger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// SetPauseOnExceptions selects which thrown exceptions pause the target.
func (m *Manager) SetPauseOnExceptions(ctx context.Context, state string) error {
	if !validPauseMode(state) {
		return fmt.Errorf("%w: pause on exceptions mode %q, want none, uncaught or all", ErrInvalidInput, state)
	}
	if err := m.sess.requireEnabled(); err != nil {
		return err
	}
	started := time.Now()
	err := proto.DebuggerSetPauseOnExceptions{
		State: proto.DebuggerSetPauseOnExceptionsState(state),
	}.Call(m.sess.target(ctx))
	m.sess.record(ctx, "Debugger.setPauseOnExceptions", started, err)
	if err != nil {
		return fmt.Errorf("debugger: set pause on exceptions: %w", err)
	}
	return nil
}

// Pause asks the target to stop at the next statement. The pause itself
// arrives asynchronously as an event; use WaitForPaused to observe it.
func (m *Manager) Pause(ctx context.Context) error {
	if err := m.sess.requireEnabled(); err != nil {
		return err
	}
	started := time.Now()
	err := proto.DebuggerPause{}.Call(m.sess.target(ctx))
	m.sess.record(ctx, "Debugger.pause", started, err)
	if err != nil {
		return fmt.Errorf("debugger: pause: %w", err)
	}
	return nil
}

// Resume continues execution. The pause snapshot is dropped the moment the
// command goes out, so stale frame ids cannot be read back afterwards.
func (m *Manager) Resume(ctx context.Context) error {
	return m.issueResuming(ctx, "Debugger.resume", func(c proto.Client) error {
		return proto.DebuggerResume{}.Call(c)
	})
}

// StepInto advances into the next function call.
func (m *Manager) StepInto(ctx context.Context) error {
	return m.issueResuming(ctx, "Debugger.stepInto", func(c proto.Client) error {
		return proto.DebuggerStepInto{}.Call(c)
	})
}

// StepOver advances to the next statement in the current frame.
func (m *Manager) StepOver(ctx context.Context) error {
	return m.issueResuming(ctx, "Debugger.stepOver", func(c proto.Client) error {
		return proto.DebuggerStepOver{}.Call(c)
	})
}

// StepOut runs until the current frame returns.
func (m *Manager) StepOut(ctx context.Context) error {
	return m.issueResuming(ctx, "Debugger.stepOut", func(c proto.Client) error {
		return proto.DebuggerStepOut{}.Call(c)
	})
}

// issueResuming sends a command that lets the target run again. The local
// snapshot is cleared before the send so no caller can observe a paused
// state that the target already left.
func (m *Manager) issueResuming(ctx context.Context, method string, call func(proto.Client) error) error {
	if err := m.sess.requireEnabled(); err != nil {
		return err
	}
	m.clearPaused()
	started := time.Now()
	err := call(m.sess.target(ctx))
	m.sess.record(ctx, method, started, err)
	if err != nil {
		return fmt.Errorf("debugger: %s: %w", method, err)
	}
	return nil
}

// IsPaused reports whether the target is currently stopped.
func (m *Manager) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused != nil
}

// PausedSnapshot returns the current pause, or nil when the target is
// running. The snapshot is immutable; a later pause produces a new one
// with a higher epoch.
func (m *Manager) PausedSnapshot() *PausedState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

type pauseWaiter struct {
	ch       chan *PausedState
	resolved bool // guarded by Manager.mu
}

// WaitForPaused blocks until the target pauses, returning the snapshot
// that every concurrent waiter receives in registration order. A zero
// timeout uses the configured default. When the deadline passes first the
// waiter is withdrawn, so a later pause never resolves it.
func (m *Manager) WaitForPaused(ctx context.Context, timeout time.Duration) (*PausedState, error) {
	if timeout <= 0 {
		timeout = m.cfg.DefaultWaitTimeout
	}

	m.mu.Lock()
	if m.paused != nil {
		st := m.paused
		m.mu.Unlock()
		return st, nil
	}
	w := &pauseWaiter{ch: make(chan *PausedState, 1)}
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case st := <-w.ch:
		return st, nil
	case <-timer.C:
		if st := m.cancelWaiter(w); st != nil {
			return st, nil
		}
		return nil, fmt.Errorf("%w after %s", ErrWaitTimeout, timeout)
	case <-ctx.Done():
		if st := m.cancelWaiter(w); st != nil {
			return st, nil
		}
		return nil, ctx.Err()
	}
}

// cancelWaiter withdraws w from the queue. When a pause resolved w in the
// same instant the deadline fired, the delivered snapshot wins and is
// returned instead.
func (m *Manager) cancelWaiter(w *pauseWaiter) *PausedState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.resolved {
		return <-w.ch
	}
	for i, queued := range m.waiters {
		if queued == w {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			break
		}
	}
	return nil
}

// EvaluateOnCallFrame runs an expression in the context of a call frame of
// the current pause. An empty callFrameID targets the top frame.
func (m *Manager) EvaluateOnCallFrame(ctx context.Context, callFrameID, expression string, returnByValue bool) (*EvalResult, error) {
	if expression == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidInput)
	}
	st := m.PausedSnapshot()
	if st == nil {
		return nil, fmt.Errorf("%w: evaluation needs a paused target", ErrNotPaused)
	}
	if callFrameID == "" {
		if len(st.CallFrames) == 0 {
			return nil, fmt.Errorf("%w: pause carries no call frames", ErrNotFound)
		}
		callFrameID = st.CallFrames[0].ID
	} else if st.frameByID(callFrameID) == nil {
		return nil, fmt.Errorf("%w: call frame %s is not part of the current pause, fetch a fresh snapshot", ErrNotFound, callFrameID)
	}

	started := time.Now()
	res, err := proto.DebuggerEvaluateOnCallFrame{
		CallFrameID:   proto.DebuggerCallFrameID(callFrameID),
		Expression:    expression,
		ReturnByValue: returnByValue,
	}.Call(m.sess.target(ctx))
	m.sess.record(ctx, "Debugger.evaluateOnCallFrame", started, err)
	if err != nil {
		if isStaleHandle(err) {
			return nil, fmt.Errorf("%w: call frame %s expired, pause again and retry", ErrStaleHandle, callFrameID)
		}
		return nil, fmt.Errorf("debugger: evaluate on call frame: %w", err)
	}

	out := &EvalResult{}
	out.Type, out.Value = describeRemoteObject(res.Result)
	if res.Result != nil {
		out.ObjectID = string(res.Result.ObjectID)
	}
	if res.ExceptionDetails != nil {
		out.Thrown = true
		out.Exception = exceptionText(res.ExceptionDetails)
	}
	return out, nil
}

func exceptionText(d *proto.RuntimeExceptionDetails) string {
	if d == nil {
		return ""
	}
	if d.Exception != nil {
		if _, v := describeRemoteObject(d.Exception); v != "" {
			return v
		}
	}
	return d.Text
}

// HandlePaused ingests a pause event: waiters resolve first, in the order
// they registered, then the snapshot becomes readable.
func (m *Manager) HandlePaused(e *proto.DebuggerPaused) {
	m.mu.Lock()
	m.epoch++
	st := pausedFromEvent(e, m.epoch)
	m.notePauseHitsLocked(e)
	waiters := m.waiters
	m.waiters = nil
	for _, w := range waiters {
		w.resolved = true
		w.ch <- st
	}
	m.paused = st
	m.mu.Unlock()

	m.sess.recordEvent("Debugger.paused")
	m.log.Debug("debugger: paused",
		"session", m.sess.id,
		"reason", st.Reason,
		"frames", len(st.CallFrames),
		"waiters", len(waiters))
}

// HandleResumed ingests a resume event from the target. Resumes we issue
// ourselves already cleared the snapshot; this covers resumes triggered
// elsewhere, like another DevTools client.
func (m *Manager) HandleResumed(_ *proto.DebuggerResumed) {
	m.clearPaused()
	m.sess.recordEvent("Debugger.resumed")
	m.log.Debug("debugger: resumed", "session", m.sess.id)
}

func (m *Manager) clearPaused() {
	m.mu.Lock()
	m.paused = nil
	m.mu.Unlock()
}

// notePauseHitsLocked bumps hit counters for whatever caused the pause.
// Instrumentation pauses carry the listener or URL pattern in their data
// payload.
func (m *Manager) notePauseHitsLocked(e *proto.DebuggerPaused) {
	for _, id := range e.HitBreakpoints {
		if bp, ok := m.bps[id]; ok {
			bp.HitCount++
		}
	}
	switch string(e.Reason) {
	case "EventListener":
		name := strings.TrimPrefix(dataString(e.Data, "eventName"), "listener:")
		target := dataString(e.Data, "targetName")
		for _, id := range m.eventOrder {
			eb := m.events[id]
			if eb.EventName == name && (eb.TargetName == "" || eb.TargetName == target) {
				eb.HitCount++
				break
			}
		}
	case "XHR":
		pattern := dataString(e.Data, "breakpointURL")
		for _, id := range m.xhrOrder {
			xb := m.xhrs[id]
			if xb.URLPattern == pattern {
				xb.HitCount++
				break
			}
		}
	}
}

func dataString(data map[string]gson.JSON, key string) string {
	v, ok := data[key]
	if !ok {
		return ""
	}
	return v.Str()
}
