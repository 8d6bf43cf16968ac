package debugger

import (
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// Location identifies a position in a script. Line and column numbers are
// zero-based, matching the DevTools protocol.
type Location struct {
	ScriptID string `json:"script_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Line     int    `json:"line_number"`
	Column   int    `json:"column_number,omitempty"`
}

// Breakpoint is a registered breakpoint together with local bookkeeping
// that survives protocol round-trips.
type Breakpoint struct {
	ID        string    `json:"breakpoint_id"`
	Location  Location  `json:"location"`
	Condition string    `json:"condition,omitempty"`
	HitCount  int       `json:"hit_count"`
	CreatedAt time.Time `json:"created_at"`
}

// EventBreakpoint pauses execution when a DOM event of the given name
// fires. TargetName narrows the breakpoint to a specific interface such
// as "websocket".
type EventBreakpoint struct {
	ID         string    `json:"id"`
	EventName  string    `json:"event_name"`
	TargetName string    `json:"target_name,omitempty"`
	HitCount   int       `json:"hit_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// XHRBreakpoint pauses execution when a fetch or XHR request URL contains
// the pattern. An empty pattern matches every request.
type XHRBreakpoint struct {
	ID         string    `json:"id"`
	URLPattern string    `json:"url_pattern"`
	HitCount   int       `json:"hit_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Scope is one entry of a call frame's scope chain. ObjectID is empty when
// the runtime did not materialize a remote handle for the scope object.
type Scope struct {
	Type     string `json:"type"`
	Name     string `json:"name,omitempty"`
	ObjectID string `json:"object_id,omitempty"`
}

// CallFrame is a stack frame of a paused target.
type CallFrame struct {
	ID           string   `json:"call_frame_id"`
	FunctionName string   `json:"function_name,omitempty"`
	Location     Location `json:"location"`
	ScopeChain   []Scope  `json:"scope_chain"`
}

// PausedState is an immutable snapshot of a pause event. Epoch increases
// with every pause, so holders of a snapshot can detect that their call
// frame and object ids belong to an earlier pause.
type PausedState struct {
	CallFrames     []CallFrame `json:"call_frames"`
	Reason         string      `json:"reason"`
	HitBreakpoints []string    `json:"hit_breakpoints,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
	Epoch          int64       `json:"epoch"`
}

func (st *PausedState) frameByID(id string) *CallFrame {
	for i := range st.CallFrames {
		if st.CallFrames[i].ID == id {
			return &st.CallFrames[i]
		}
	}
	return nil
}

// Variable is a named value extracted from a scope or remote object.
// Nested properties carry dotted names such as "user.address.city".
type Variable struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Value    string `json:"value"`
	Scope    string `json:"scope,omitempty"`
	ObjectID string `json:"object_id,omitempty"`
}

// EvalResult is the outcome of evaluating an expression on a call frame.
// Thrown reports that the expression completed with an exception, in which
// case Exception carries its description.
type EvalResult struct {
	Type      string `json:"type,omitempty"`
	Value     string `json:"value"`
	ObjectID  string `json:"object_id,omitempty"`
	Thrown    bool   `json:"thrown,omitempty"`
	Exception string `json:"exception,omitempty"`
}

func pausedFromEvent(e *proto.DebuggerPaused, epoch int64) *PausedState {
	st := &PausedState{
		Reason:         string(e.Reason),
		HitBreakpoints: e.HitBreakpoints,
		Timestamp:      time.Now().UTC(),
		Epoch:          epoch,
	}
	st.CallFrames = make([]CallFrame, 0, len(e.CallFrames))
	for _, f := range e.CallFrames {
		st.CallFrames = append(st.CallFrames, frameFromProto(f))
	}
	return st
}

func frameFromProto(f *proto.DebuggerCallFrame) CallFrame {
	cf := CallFrame{
		ID:           string(f.CallFrameID),
		FunctionName: f.FunctionName,
		Location:     locationFromProto(f.Location, f.URL),
	}
	cf.ScopeChain = make([]Scope, 0, len(f.ScopeChain))
	for _, s := range f.ScopeChain {
		sc := Scope{Type: string(s.Type), Name: s.Name}
		if s.Object != nil {
			sc.ObjectID = string(s.Object.ObjectID)
		}
		cf.ScopeChain = append(cf.ScopeChain, sc)
	}
	return cf
}

func locationFromProto(l *proto.DebuggerLocation, url string) Location {
	loc := Location{URL: url}
	if l == nil {
		return loc
	}
	loc.ScriptID = string(l.ScriptID)
	loc.Line = l.LineNumber
	if l.ColumnNumber != nil {
		loc.Column = *l.ColumnNumber
	}
	return loc
}

// describeRemoteObject renders a remote object as a type label and a short
// printable value. Objects without a serialized value fall back to their
// runtime description.
func describeRemoteObject(o *proto.RuntimeRemoteObject) (valueType, value string) {
	if o == nil {
		return "undefined", "undefined"
	}
	valueType = string(o.Type)
	if o.Subtype != "" {
		valueType = string(o.Subtype)
	}
	switch {
	case string(o.Type) == "undefined":
		value = "undefined"
	case o.UnserializableValue != "":
		value = string(o.UnserializableValue)
	case !o.Value.Nil():
		value = o.Value.String()
	case o.Description != "":
		value = o.Description
	default:
		value = valueType
	}
	return valueType, value
}

func variableFromProperty(p *proto.RuntimePropertyDescriptor) Variable {
	v := Variable{Name: p.Name}
	v.Type, v.Value = describeRemoteObject(p.Value)
	if p.Value != nil {
		v.ObjectID = string(p.Value.ObjectID)
	}
	return v
}
