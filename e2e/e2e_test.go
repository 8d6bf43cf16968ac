// Package e2e tests cross-package integration chains from an MCP client
// down to the capture store.
//
// These tests verify that chrdbg packages compose correctly when wired
// together the way cmd/chrdbg wires them: MCP tools driving a debugger
// manager whose protocol traffic lands in a capture journal.
package e2e

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/chrdbg/capture"
	"github.com/hazyhaar/chrdbg/dbopen"
	"github.com/hazyhaar/chrdbg/debugger"

	_ "modernc.org/sqlite"
)

// --- test helpers ---

// scriptedTarget answers DevTools commands from a canned table, standing
// in for the Chrome page a production session drives.
type scriptedTarget struct {
	mu      sync.Mutex
	results map[string]any
	seen    []string
}

func newScriptedTarget() *scriptedTarget {
	return &scriptedTarget{results: make(map[string]any)}
}

func (s *scriptedTarget) Call(_ context.Context, _ string, method string, _ interface{}) ([]byte, error) {
	s.mu.Lock()
	s.seen = append(s.seen, method)
	res, ok := s.results[method]
	s.mu.Unlock()
	if !ok {
		return []byte("{}"), nil
	}
	return json.Marshal(res)
}

func (s *scriptedTarget) sawMethod(method string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.seen {
		if m == method {
			return true
		}
	}
	return false
}

type stack struct {
	db      *sql.DB
	journal *capture.Journal
	target  *scriptedTarget
	manager *debugger.Manager
	session *mcp.ClientSession
}

// newStack wires the full chain: in-memory SQLite, capture journal,
// debugger manager over a scripted target, MCP server and a connected
// MCP client session.
func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()

	db := dbopen.OpenMemory(t)
	journal := capture.NewJournal(db)
	if err := journal.Init(); err != nil {
		t.Fatalf("journal init: %v", err)
	}

	target := newScriptedTarget()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := debugger.New(target, nil, logger,
		debugger.WithRecorder(journal),
		debugger.WithSessionID("sess_e2e"))
	if err != nil {
		t.Fatalf("debugger.New: %v", err)
	}
	if err := m.Enable(ctx); err != nil {
		t.Fatalf("enable: %v", err)
	}
	journal.StartSession(ctx, m.SessionID(), "https://shop.test/checkout")

	impl := &mcp.Implementation{Name: "chrdbg-e2e", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	m.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(impl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	return &stack{db: db, journal: journal, target: target, manager: m, session: session}
}

func (s *stack) call(t *testing.T, name string, args any) string {
	t.Helper()
	result, err := s.session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	return result.Content[0].(*mcp.TextContent).Text
}

func (s *stack) journalRows(t *testing.T) []capture.Row {
	t.Helper()
	rows, err := s.journal.Recent(context.Background(), "sess_e2e", 100)
	if err != nil {
		t.Fatalf("journal recent: %v", err)
	}
	return rows
}

func hasJournalEntry(rows []capture.Row, direction, method string) bool {
	for _, r := range rows {
		if r.Direction == direction && r.Method == method {
			return true
		}
	}
	return false
}

// --- scenarios ---

func TestBreakpointRoundTripLandsInJournal(t *testing.T) {
	s := newStack(t)
	s.target.results["Debugger.setBreakpointByUrl"] = map[string]any{"breakpointId": "bp-e2e"}

	text := s.call(t, "debugger_set_breakpoint_by_url", map[string]any{
		"url":         "https://shop.test/static/checkout.js",
		"line_number": 12,
	})
	var bp debugger.Breakpoint
	if err := json.Unmarshal([]byte(text), &bp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if bp.ID != "bp-e2e" {
		t.Fatalf("breakpoint id = %q", bp.ID)
	}

	s.call(t, "debugger_remove_breakpoint", map[string]any{"breakpoint_id": "bp-e2e"})

	if !s.target.sawMethod("Debugger.removeBreakpoint") {
		t.Error("removal never reached the target")
	}
	rows := s.journalRows(t)
	if !hasJournalEntry(rows, capture.DirCommand, "Debugger.enable") {
		t.Error("journal missed Debugger.enable")
	}
	if !hasJournalEntry(rows, capture.DirCommand, "Debugger.setBreakpointByUrl") {
		t.Error("journal missed Debugger.setBreakpointByUrl")
	}
	if !hasJournalEntry(rows, capture.DirCommand, "Debugger.removeBreakpoint") {
		t.Error("journal missed Debugger.removeBreakpoint")
	}
}

func TestPauseInspectResumeOverMCP(t *testing.T) {
	s := newStack(t)

	// The target pauses before the client asks, the way a breakpoint hit
	// arrives between two tool calls.
	s.manager.HandlePaused(&proto.DebuggerPaused{
		Reason: proto.DebuggerPausedReason("other"),
		CallFrames: []*proto.DebuggerCallFrame{{
			CallFrameID:  proto.DebuggerCallFrameID("frame-1"),
			FunctionName: "submitOrder",
			URL:          "https://shop.test/static/checkout.js",
			Location:     &proto.DebuggerLocation{ScriptID: "s1", LineNumber: 12},
		}},
	})

	text := s.call(t, "debugger_wait_for_paused", map[string]any{"timeout_ms": 1000})
	var st debugger.PausedState
	if err := json.Unmarshal([]byte(text), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(st.CallFrames) != 1 || st.CallFrames[0].FunctionName != "submitOrder" {
		t.Fatalf("pause state = %+v", st)
	}

	s.target.results["Debugger.evaluateOnCallFrame"] = map[string]any{
		"result": map[string]any{"type": "number", "value": 42, "description": "42"},
	}
	text = s.call(t, "debugger_evaluate_on_call_frame", map[string]any{
		"expression": "cart.total",
	})
	var eval debugger.EvalResult
	if err := json.Unmarshal([]byte(text), &eval); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if eval.Type != "number" || eval.Value != "42" {
		t.Errorf("eval = %+v", eval)
	}

	s.call(t, "debugger_resume", map[string]any{})

	text = s.call(t, "debugger_get_paused_state", map[string]any{})
	if !strings.Contains(text, `"paused":false`) {
		t.Errorf("still paused after resume: %s", text)
	}

	rows := s.journalRows(t)
	if !hasJournalEntry(rows, capture.DirEvent, "Debugger.paused") {
		t.Error("journal missed the pause event")
	}
	if !hasJournalEntry(rows, capture.DirCommand, "Debugger.evaluateOnCallFrame") {
		t.Error("journal missed the evaluation")
	}
	if !hasJournalEntry(rows, capture.DirCommand, "Debugger.resume") {
		t.Error("journal missed the resume")
	}
}

func TestScriptSourceChainOverMCP(t *testing.T) {
	s := newStack(t)
	s.manager.Scripts().HandleScriptParsed(&proto.DebuggerScriptParsed{
		ScriptID: proto.RuntimeScriptID("s1"),
		URL:      "https://shop.test/static/app.js",
	})
	s.target.results["Debugger.getScriptSource"] = map[string]any{
		"scriptSource": "function totalOf(cart) { return cart.total; }",
	}

	text := s.call(t, "scripts_get_source", map[string]any{"script": "*app.js"})
	var src debugger.ScriptSource
	if err := json.Unmarshal([]byte(text), &src); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if src.ScriptID != "s1" || !strings.Contains(src.Source, "totalOf") {
		t.Fatalf("source = %+v", src)
	}

	if !hasJournalEntry(s.journalRows(t), capture.DirCommand, "Debugger.getScriptSource") {
		t.Error("journal missed the source fetch")
	}
}

func TestSessionLifecycleRowsInStore(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	var started int64
	var ended sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at, ended_at FROM debug_sessions WHERE session_id = ?`,
		"sess_e2e").Scan(&started, &ended)
	if err != nil {
		t.Fatalf("session row: %v", err)
	}
	if started == 0 {
		t.Error("started_at not set")
	}
	if ended.Valid {
		t.Error("ended_at set before EndSession")
	}

	s.journal.EndSession(ctx, "sess_e2e")

	err = s.db.QueryRowContext(ctx,
		`SELECT ended_at FROM debug_sessions WHERE session_id = ?`,
		"sess_e2e").Scan(&ended)
	if err != nil {
		t.Fatalf("session row after end: %v", err)
	}
	if !ended.Valid || ended.Int64 == 0 {
		t.Error("ended_at not set after EndSession")
	}
}
