package debugger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

// fakeClient scripts protocol responses per method and records every
// outgoing call for assertions.
type fakeClient struct {
	mu       sync.Mutex
	calls    []fakeCall
	results  map[string]any
	errs     map[string]error
	handlers map[string]func(params json.RawMessage) (any, error)
}

type fakeCall struct {
	method string
	params json.RawMessage
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		results:  make(map[string]any),
		errs:     make(map[string]error),
		handlers: make(map[string]func(json.RawMessage) (any, error)),
	}
}

func (f *fakeClient) Call(_ context.Context, _ string, method string, params interface{}) ([]byte, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{method: method, params: raw})
	handler := f.handlers[method]
	res, hasResult := f.results[method]
	callErr := f.errs[method]
	f.mu.Unlock()

	if handler != nil {
		out, err := handler(raw)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	}
	if callErr != nil {
		return nil, callErr
	}
	if hasResult {
		return json.Marshal(res)
	}
	return []byte("{}"), nil
}

func (f *fakeClient) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

func (f *fakeClient) lastParams(t *testing.T, method string, into any) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].method == method {
			if err := json.Unmarshal(f.calls[i].params, into); err != nil {
				t.Fatalf("unmarshal %s params: %v", method, err)
			}
			return
		}
	}
	t.Fatalf("no recorded call for %s", method)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, cfg *Config) (*Manager, *fakeClient) {
	t.Helper()
	fc := newFakeClient()
	m, err := New(fc, cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, fc
}

func newEnabledManager(t *testing.T, cfg *Config) (*Manager, *fakeClient) {
	t.Helper()
	m, fc := newTestManager(t, cfg)
	if err := m.Enable(context.Background()); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	return m, fc
}

func (m *Manager) waiterCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}

func pausedEvent(reason string, frames ...*proto.DebuggerCallFrame) *proto.DebuggerPaused {
	return &proto.DebuggerPaused{
		Reason:     proto.DebuggerPausedReason(reason),
		CallFrames: frames,
	}
}

func testFrame(id, fn string, scopes ...*proto.DebuggerScope) *proto.DebuggerCallFrame {
	return &proto.DebuggerCallFrame{
		CallFrameID:  proto.DebuggerCallFrameID(id),
		FunctionName: fn,
		URL:          "https://shop.test/checkout.js",
		Location:     &proto.DebuggerLocation{ScriptID: "s1", LineNumber: 10},
		ScopeChain:   scopes,
	}
}

func testScope(typ, objectID string) *proto.DebuggerScope {
	s := &proto.DebuggerScope{Type: proto.DebuggerScopeType(typ)}
	if objectID != "" {
		s.Object = &proto.RuntimeRemoteObject{
			Type:     proto.RuntimeRemoteObjectType("object"),
			ObjectID: proto.RuntimeRemoteObjectID(objectID),
		}
	}
	return s
}

func announceScript(r *ScriptRegistry, id, url string) {
	r.HandleScriptParsed(&proto.DebuggerScriptParsed{
		ScriptID: proto.RuntimeScriptID(id),
		URL:      url,
	})
}
