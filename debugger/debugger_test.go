package debugger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, nil, testLogger()); err == nil {
		t.Fatal("nil client accepted")
	}

	fc := newFakeClient()
	_, err := New(fc, &Config{PauseOnExceptions: "sometimes"}, testLogger())
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad pause mode: err = %v, want ErrInvalidInput", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	m, _ := newTestManager(t, nil)
	if m.cfg.AsyncCallStackDepth != 32 {
		t.Fatalf("async depth = %d, want 32", m.cfg.AsyncCallStackDepth)
	}
	if m.cfg.DefaultWaitTimeout != 30*time.Second {
		t.Fatalf("wait timeout = %s, want 30s", m.cfg.DefaultWaitTimeout)
	}
	if m.cfg.MaxScripts != 50 || m.cfg.SearchMaxMatches != 20 || m.cfg.SearchContextLines != 2 {
		t.Fatalf("script defaults = {%d, %d, %d}", m.cfg.MaxScripts, m.cfg.SearchMaxMatches, m.cfg.SearchContextLines)
	}
}

func TestSessionIDs(t *testing.T) {
	m, _ := newTestManager(t, nil)
	if !strings.HasPrefix(m.SessionID(), "sess_") {
		t.Fatalf("session id = %q, want sess_ prefix", m.SessionID())
	}

	fc := newFakeClient()
	m2, err := New(fc, nil, testLogger(), WithSessionID("sess_fixed"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m2.SessionID() != "sess_fixed" {
		t.Fatalf("session id = %q, want sess_fixed", m2.SessionID())
	}
}

func TestDisableKeepsBreakpointBookkeeping(t *testing.T) {
	m, fc := newEnabledManager(t, nil)
	ctx := context.Background()

	fc.results["Debugger.setBreakpointByUrl"] = map[string]any{"breakpointId": "bp-1"}
	if _, err := m.SetBreakpointByURL(ctx, BreakpointByURLRequest{URL: "https://shop.test/app.js", Line: 5}); err != nil {
		t.Fatalf("SetBreakpointByURL: %v", err)
	}

	if err := m.Disable(ctx); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if got := len(m.ListBreakpoints()); got != 1 {
		t.Fatalf("breakpoints after disable = %d, want 1", got)
	}
}

func TestDetachTearsDownEverything(t *testing.T) {
	m, fc := newEnabledManager(t, nil)
	ctx := context.Background()

	fc.results["Debugger.setBreakpointByUrl"] = map[string]any{"breakpointId": "bp-1"}
	if _, err := m.SetBreakpointByURL(ctx, BreakpointByURLRequest{URL: "https://shop.test/app.js", Line: 5}); err != nil {
		t.Fatalf("SetBreakpointByURL: %v", err)
	}
	if _, err := m.SetEventBreakpoint(ctx, "click", ""); err != nil {
		t.Fatalf("SetEventBreakpoint: %v", err)
	}
	if _, err := m.SetXHRBreakpoint(ctx, "/api/"); err != nil {
		t.Fatalf("SetXHRBreakpoint: %v", err)
	}
	announceScript(m.Scripts(), "s1", "https://shop.test/app.js")

	if err := m.Detach(ctx); err != nil {
		t.Fatalf("Detach: %v", err)
	}

	if got := fc.callCount("Debugger.removeBreakpoint"); got != 1 {
		t.Fatalf("removeBreakpoint calls = %d, want 1", got)
	}
	if got := fc.callCount("DOMDebugger.removeEventListenerBreakpoint"); got != 1 {
		t.Fatalf("removeEventListenerBreakpoint calls = %d, want 1", got)
	}
	if got := fc.callCount("DOMDebugger.removeXHRBreakpoint"); got != 1 {
		t.Fatalf("removeXHRBreakpoint calls = %d, want 1", got)
	}
	if got := fc.callCount("Debugger.disable"); got != 1 {
		t.Fatalf("disable calls = %d, want 1", got)
	}
	if m.sess.enabled.Load() {
		t.Fatal("session still enabled after detach")
	}
	if got := m.Scripts().Count(); got != 0 {
		t.Fatalf("scripts after detach = %d, want 0", got)
	}
	if got := len(m.ListBreakpoints()) + len(m.ListEventBreakpoints()) + len(m.ListXHRBreakpoints()); got != 0 {
		t.Fatalf("registrations after detach = %d, want 0", got)
	}
}

func TestDetachIdleSession(t *testing.T) {
	m, fc := newTestManager(t, nil)

	if err := m.Detach(context.Background()); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if got := fc.callCount("Debugger.disable"); got != 0 {
		t.Fatalf("disable calls = %d, want none for an idle session", got)
	}
	if got := fc.callCount("Debugger.enable"); got != 0 {
		t.Fatalf("enable calls = %d, detach must not reattach", got)
	}
}
