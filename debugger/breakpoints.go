package debugger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// BreakpointByURLRequest places a breakpoint by script URL, which survives
// reloads because it rebinds when a matching script parses.
type BreakpointByURLRequest struct {
	URL       string `json:"url"`
	Line      int    `json:"line_number"`
	Column    *int   `json:"column_number,omitempty"`
	Condition string `json:"condition,omitempty"`
}

// BreakpointByScriptRequest places a breakpoint on a concrete parsed
// script. The script id comes from the script registry and does not
// survive navigation.
type BreakpointByScriptRequest struct {
	ScriptID  string `json:"script_id"`
	Line      int    `json:"line_number"`
	Column    *int   `json:"column_number,omitempty"`
	Condition string `json:"condition,omitempty"`
}

// BulkClearResult sums up a best-effort sweep over registered entries.
type BulkClearResult struct {
	Requested int `json:"requested"`
	Removed   int `json:"removed"`
	Failed    int `json:"failed"`
}

func validateBreakpointPosition(line int, column *int) error {
	if line < 0 {
		return fmt.Errorf("%w: negative line number %d", ErrInvalidInput, line)
	}
	if column != nil && *column < 0 {
		return fmt.Errorf("%w: negative column number %d", ErrInvalidInput, *column)
	}
	return nil
}

// SetBreakpointByURL registers a breakpoint for every current and future
// script whose URL matches. A dropped session is reattached once before
// giving up.
func (m *Manager) SetBreakpointByURL(ctx context.Context, req BreakpointByURLRequest) (*Breakpoint, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if err := validateBreakpointPosition(req.Line, req.Column); err != nil {
		return nil, err
	}
	if err := m.sess.ensureEnabled(ctx); err != nil {
		return nil, err
	}

	started := time.Now()
	res, err := proto.DebuggerSetBreakpointByURL{
		LineNumber:   req.Line,
		URL:          req.URL,
		ColumnNumber: req.Column,
		Condition:    req.Condition,
	}.Call(m.sess.target(ctx))
	m.sess.record(ctx, "Debugger.setBreakpointByUrl", started, err)
	if err != nil {
		return nil, fmt.Errorf("debugger: set breakpoint at %s:%d: %w", req.URL, req.Line, err)
	}

	loc := Location{URL: req.URL, Line: req.Line}
	if req.Column != nil {
		loc.Column = *req.Column
	}
	if len(res.Locations) > 0 {
		resolved := locationFromProto(res.Locations[0], req.URL)
		loc.ScriptID = resolved.ScriptID
		loc.Line = resolved.Line
		loc.Column = resolved.Column
	}
	return m.storeBreakpoint(string(res.BreakpointID), loc, req.Condition), nil
}

// SetBreakpointByScript registers a breakpoint on a parsed script id.
func (m *Manager) SetBreakpointByScript(ctx context.Context, req BreakpointByScriptRequest) (*Breakpoint, error) {
	if req.ScriptID == "" {
		return nil, fmt.Errorf("%w: script_id is required", ErrInvalidInput)
	}
	if err := validateBreakpointPosition(req.Line, req.Column); err != nil {
		return nil, err
	}
	if err := m.sess.ensureEnabled(ctx); err != nil {
		return nil, err
	}

	started := time.Now()
	res, err := proto.DebuggerSetBreakpoint{
		Location: &proto.DebuggerLocation{
			ScriptID:     proto.RuntimeScriptID(req.ScriptID),
			LineNumber:   req.Line,
			ColumnNumber: req.Column,
		},
		Condition: req.Condition,
	}.Call(m.sess.target(ctx))
	m.sess.record(ctx, "Debugger.setBreakpoint", started, err)
	if err != nil {
		return nil, fmt.Errorf("debugger: set breakpoint in script %s:%d: %w", req.ScriptID, req.Line, err)
	}

	loc := Location{ScriptID: req.ScriptID, Line: req.Line}
	if req.Column != nil {
		loc.Column = *req.Column
	}
	if res.ActualLocation != nil {
		loc = locationFromProto(res.ActualLocation, m.scripts.urlOf(req.ScriptID))
	}
	return m.storeBreakpoint(string(res.BreakpointID), loc, req.Condition), nil
}

// storeBreakpoint records the handle locally. Setting the same location
// twice yields the same id from the target; bookkeeping for a known id is
// refreshed in place so hit counts survive.
func (m *Manager) storeBreakpoint(id string, loc Location, condition string) *Breakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	bp, ok := m.bps[id]
	if !ok {
		bp = &Breakpoint{ID: id, CreatedAt: time.Now().UTC()}
		m.bps[id] = bp
		m.bpOrder = append(m.bpOrder, id)
	}
	bp.Location = loc
	bp.Condition = condition
	cp := *bp
	return &cp
}

// RemoveBreakpoint deletes one breakpoint by id. The protocol removal has
// to succeed before local bookkeeping is dropped.
func (m *Manager) RemoveBreakpoint(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: breakpoint id is required", ErrInvalidInput)
	}
	m.mu.Lock()
	_, ok := m.bps[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: breakpoint %s, list breakpoints to see registered ids", ErrNotFound, id)
	}
	if err := m.sess.ensureEnabled(ctx); err != nil {
		return err
	}

	started := time.Now()
	err := proto.DebuggerRemoveBreakpoint{
		BreakpointID: proto.DebuggerBreakpointID(id),
	}.Call(m.sess.target(ctx))
	m.sess.record(ctx, "Debugger.removeBreakpoint", started, err)
	if err != nil {
		return fmt.Errorf("debugger: remove breakpoint %s: %w", id, err)
	}

	m.deleteBreakpoint(id)
	return nil
}

func (m *Manager) deleteBreakpoint(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bps, id)
	for i, known := range m.bpOrder {
		if known == id {
			m.bpOrder = append(m.bpOrder[:i], m.bpOrder[i+1:]...)
			break
		}
	}
}

// ListBreakpoints returns all registered breakpoints in creation order.
func (m *Manager) ListBreakpoints() []*Breakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Breakpoint, 0, len(m.bpOrder))
	for _, id := range m.bpOrder {
		cp := *m.bps[id]
		out = append(out, &cp)
	}
	return out
}

// GetBreakpoint returns one breakpoint by id.
func (m *Manager) GetBreakpoint(id string) (*Breakpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bp, ok := m.bps[id]
	if !ok {
		return nil, fmt.Errorf("%w: breakpoint %s, list breakpoints to see registered ids", ErrNotFound, id)
	}
	cp := *bp
	return &cp, nil
}

// ClearAllBreakpoints sweeps every registered breakpoint. Entries that
// fail to remove remotely, for example because the target already dropped
// them, are still cleared locally so the sweep always converges.
func (m *Manager) ClearAllBreakpoints(ctx context.Context) (*BulkClearResult, error) {
	m.mu.Lock()
	ids := make([]string, len(m.bpOrder))
	copy(ids, m.bpOrder)
	m.mu.Unlock()

	res := &BulkClearResult{Requested: len(ids)}
	if len(ids) == 0 {
		return res, nil
	}
	if err := m.sess.ensureEnabled(ctx); err != nil {
		return res, err
	}

	for _, id := range ids {
		started := time.Now()
		err := proto.DebuggerRemoveBreakpoint{
			BreakpointID: proto.DebuggerBreakpointID(id),
		}.Call(m.sess.target(ctx))
		m.sess.record(ctx, "Debugger.removeBreakpoint", started, err)
		if err != nil {
			res.Failed++
			m.log.Warn("debugger: breakpoint removal failed during sweep", "breakpoint", id, "error", err)
		} else {
			res.Removed++
		}
		m.deleteBreakpoint(id)
	}
	m.log.Info("debugger: breakpoints cleared", "session", m.sess.id, "removed", res.Removed, "failed", res.Failed)
	return res, nil
}
