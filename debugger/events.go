package debugger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// Event families for bulk registration.
const (
	FamilyMouse     = "mouse"
	FamilyKeyboard  = "keyboard"
	FamilyTimer     = "timer"
	FamilyWebsocket = "websocket"
)

type familyMember struct {
	event  string
	target string
}

var eventFamilies = map[string][]familyMember{
	FamilyMouse: {
		{event: "click"}, {event: "dblclick"},
		{event: "mousedown"}, {event: "mouseup"}, {event: "mousemove"},
		{event: "mouseover"}, {event: "mouseout"},
	},
	FamilyKeyboard: {
		{event: "keydown"}, {event: "keyup"}, {event: "keypress"}, {event: "input"},
	},
	FamilyTimer: {
		{event: "setTimeout"}, {event: "setInterval"},
		{event: "setTimeout.callback"}, {event: "setInterval.callback"},
	},
	FamilyWebsocket: {
		{event: "open", target: "websocket"}, {event: "message", target: "websocket"},
		{event: "close", target: "websocket"}, {event: "error", target: "websocket"},
	},
}

// SetEventBreakpoint pauses execution whenever a listener for eventName
// fires. targetName narrows to a DOM interface and may be empty.
// Registering the same pair twice returns the existing entry.
func (m *Manager) SetEventBreakpoint(ctx context.Context, eventName, targetName string) (*EventBreakpoint, error) {
	if eventName == "" {
		return nil, fmt.Errorf("%w: event name is required", ErrInvalidInput)
	}
	m.mu.Lock()
	for _, id := range m.eventOrder {
		eb := m.events[id]
		if eb.EventName == eventName && eb.TargetName == targetName {
			cp := *eb
			m.mu.Unlock()
			return &cp, nil
		}
	}
	m.mu.Unlock()

	started := time.Now()
	err := proto.DOMDebuggerSetEventListenerBreakpoint{
		EventName:  eventName,
		TargetName: targetName,
	}.Call(m.sess.target(ctx))
	m.sess.record(ctx, "DOMDebugger.setEventListenerBreakpoint", started, err)
	if err != nil {
		return nil, fmt.Errorf("debugger: set event breakpoint %q: %w", eventName, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventSeq++
	eb := &EventBreakpoint{
		ID:         fmt.Sprintf("event_%d", m.eventSeq),
		EventName:  eventName,
		TargetName: targetName,
		CreatedAt:  time.Now().UTC(),
	}
	m.events[eb.ID] = eb
	m.eventOrder = append(m.eventOrder, eb.ID)
	cp := *eb
	return &cp, nil
}

// SetEventFamilyBreakpoints registers a named group of related listener
// breakpoints and returns the entries in registration order. The first
// protocol failure stops the batch; entries registered before it stand.
func (m *Manager) SetEventFamilyBreakpoints(ctx context.Context, family string) ([]*EventBreakpoint, error) {
	members, ok := eventFamilies[family]
	if !ok {
		return nil, fmt.Errorf("%w: unknown event family %q, want mouse, keyboard, timer or websocket", ErrInvalidInput, family)
	}
	out := make([]*EventBreakpoint, 0, len(members))
	for _, mem := range members {
		eb, err := m.SetEventBreakpoint(ctx, mem.event, mem.target)
		if err != nil {
			return out, fmt.Errorf("debugger: family %s stopped at %q: %w", family, mem.event, err)
		}
		out = append(out, eb)
	}
	return out, nil
}

// RemoveEventBreakpoint deletes one listener breakpoint by id, replaying
// the stored event and target names to the protocol.
func (m *Manager) RemoveEventBreakpoint(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: event breakpoint id is required", ErrInvalidInput)
	}
	m.mu.Lock()
	eb, ok := m.events[id]
	var eventName, targetName string
	if ok {
		eventName, targetName = eb.EventName, eb.TargetName
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: event breakpoint %s, list event breakpoints to see registered ids", ErrNotFound, id)
	}

	started := time.Now()
	err := proto.DOMDebuggerRemoveEventListenerBreakpoint{
		EventName:  eventName,
		TargetName: targetName,
	}.Call(m.sess.target(ctx))
	m.sess.record(ctx, "DOMDebugger.removeEventListenerBreakpoint", started, err)
	if err != nil {
		return fmt.Errorf("debugger: remove event breakpoint %q: %w", eventName, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, id)
	m.eventOrder = removeID(m.eventOrder, id)
	return nil
}

// ListEventBreakpoints returns all listener breakpoints in creation order.
func (m *Manager) ListEventBreakpoints() []*EventBreakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*EventBreakpoint, 0, len(m.eventOrder))
	for _, id := range m.eventOrder {
		cp := *m.events[id]
		out = append(out, &cp)
	}
	return out
}

// ClearAllEventBreakpoints sweeps every listener breakpoint. Local state
// is dropped even for entries the protocol refuses to remove.
func (m *Manager) ClearAllEventBreakpoints(ctx context.Context) *BulkClearResult {
	m.mu.Lock()
	ids := make([]string, len(m.eventOrder))
	copy(ids, m.eventOrder)
	m.mu.Unlock()

	res := &BulkClearResult{Requested: len(ids)}
	for _, id := range ids {
		m.mu.Lock()
		eb, ok := m.events[id]
		var eventName, targetName string
		if ok {
			eventName, targetName = eb.EventName, eb.TargetName
			delete(m.events, id)
			m.eventOrder = removeID(m.eventOrder, id)
		}
		m.mu.Unlock()
		if !ok {
			continue
		}

		started := time.Now()
		err := proto.DOMDebuggerRemoveEventListenerBreakpoint{
			EventName:  eventName,
			TargetName: targetName,
		}.Call(m.sess.target(ctx))
		m.sess.record(ctx, "DOMDebugger.removeEventListenerBreakpoint", started, err)
		if err != nil {
			res.Failed++
			m.log.Warn("debugger: event breakpoint removal failed during sweep", "event", eventName, "error", err)
		} else {
			res.Removed++
		}
	}
	return res
}

// SetXHRBreakpoint pauses execution when a fetch or XHR URL contains the
// pattern. An empty pattern matches every request. Registering the same
// pattern twice returns the existing entry.
func (m *Manager) SetXHRBreakpoint(ctx context.Context, urlPattern string) (*XHRBreakpoint, error) {
	m.mu.Lock()
	for _, id := range m.xhrOrder {
		xb := m.xhrs[id]
		if xb.URLPattern == urlPattern {
			cp := *xb
			m.mu.Unlock()
			return &cp, nil
		}
	}
	m.mu.Unlock()

	started := time.Now()
	err := proto.DOMDebuggerSetXHRBreakpoint{URL: urlPattern}.Call(m.sess.target(ctx))
	m.sess.record(ctx, "DOMDebugger.setXHRBreakpoint", started, err)
	if err != nil {
		return nil, fmt.Errorf("debugger: set xhr breakpoint %q: %w", urlPattern, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.xhrSeq++
	xb := &XHRBreakpoint{
		ID:         fmt.Sprintf("xhr_%d", m.xhrSeq),
		URLPattern: urlPattern,
		CreatedAt:  time.Now().UTC(),
	}
	m.xhrs[xb.ID] = xb
	m.xhrOrder = append(m.xhrOrder, xb.ID)
	cp := *xb
	return &cp, nil
}

// RemoveXHRBreakpoint deletes one XHR breakpoint by id, replaying the
// stored pattern to the protocol.
func (m *Manager) RemoveXHRBreakpoint(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: xhr breakpoint id is required", ErrInvalidInput)
	}
	m.mu.Lock()
	xb, ok := m.xhrs[id]
	var pattern string
	if ok {
		pattern = xb.URLPattern
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: xhr breakpoint %s, list xhr breakpoints to see registered ids", ErrNotFound, id)
	}

	started := time.Now()
	err := proto.DOMDebuggerRemoveXHRBreakpoint{URL: pattern}.Call(m.sess.target(ctx))
	m.sess.record(ctx, "DOMDebugger.removeXHRBreakpoint", started, err)
	if err != nil {
		return fmt.Errorf("debugger: remove xhr breakpoint %q: %w", pattern, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.xhrs, id)
	m.xhrOrder = removeID(m.xhrOrder, id)
	return nil
}

// ListXHRBreakpoints returns all XHR breakpoints in creation order.
func (m *Manager) ListXHRBreakpoints() []*XHRBreakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*XHRBreakpoint, 0, len(m.xhrOrder))
	for _, id := range m.xhrOrder {
		cp := *m.xhrs[id]
		out = append(out, &cp)
	}
	return out
}

// ClearAllXHRBreakpoints sweeps every XHR breakpoint, dropping local state
// regardless of protocol outcome.
func (m *Manager) ClearAllXHRBreakpoints(ctx context.Context) *BulkClearResult {
	m.mu.Lock()
	ids := make([]string, len(m.xhrOrder))
	copy(ids, m.xhrOrder)
	m.mu.Unlock()

	res := &BulkClearResult{Requested: len(ids)}
	for _, id := range ids {
		m.mu.Lock()
		xb, ok := m.xhrs[id]
		var pattern string
		if ok {
			pattern = xb.URLPattern
			delete(m.xhrs, id)
			m.xhrOrder = removeID(m.xhrOrder, id)
		}
		m.mu.Unlock()
		if !ok {
			continue
		}

		started := time.Now()
		err := proto.DOMDebuggerRemoveXHRBreakpoint{URL: pattern}.Call(m.sess.target(ctx))
		m.sess.record(ctx, "DOMDebugger.removeXHRBreakpoint", started, err)
		if err != nil {
			res.Failed++
			m.log.Warn("debugger: xhr breakpoint removal failed during sweep", "pattern", pattern, "error", err)
		} else {
			res.Removed++
		}
	}
	return res
}

func removeID(ids []string, id string) []string {
	for i, known := range ids {
		if known == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
