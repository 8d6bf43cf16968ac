package debugger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// ScopeVariablesRequest selects which frame to inspect and how deep to
// follow object-valued variables. MaxDepth 1 reads scope members only;
// 2 adds their direct properties, and so on. SkipErrors defaults to true.
type ScopeVariablesRequest struct {
	CallFrameID             string `json:"call_frame_id,omitempty"`
	IncludeObjectProperties bool   `json:"include_object_properties,omitempty"`
	MaxDepth                int    `json:"max_depth,omitempty"`
	SkipErrors              *bool  `json:"skip_errors,omitempty"`
}

// ScopeVariablesResult is the flattened view of one call frame. Nested
// properties use dotted names under their parent variable. FrameLocation
// is "url:line:column".
type ScopeVariablesResult struct {
	FunctionName     string     `json:"function_name,omitempty"`
	FrameLocation    string     `json:"frame_location"`
	Variables        []Variable `json:"variables"`
	SuccessfulScopes int        `json:"successful_scopes"`
	TotalScopes      int        `json:"total_scopes"`
	Errors           []string   `json:"errors,omitempty"`
}

// GetScopeVariables reads every scope of a call frame of the current
// pause. An empty CallFrameID targets the top frame. Scope fetches that
// fail are collected rather than fatal unless SkipErrors is false; nested
// property fetches are always best-effort.
func (m *Manager) GetScopeVariables(ctx context.Context, req ScopeVariablesRequest) (*ScopeVariablesResult, error) {
	st := m.PausedSnapshot()
	if st == nil {
		return nil, fmt.Errorf("%w: scope inspection needs a paused target", ErrNotPaused)
	}

	var frame *CallFrame
	if req.CallFrameID == "" {
		if len(st.CallFrames) == 0 {
			return nil, fmt.Errorf("%w: pause carries no call frames", ErrNotFound)
		}
		frame = &st.CallFrames[0]
	} else if frame = st.frameByID(req.CallFrameID); frame == nil {
		return nil, fmt.Errorf("%w: call frame %s is not part of the current pause, fetch a fresh snapshot", ErrNotFound, req.CallFrameID)
	}

	maxDepth := req.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 1
	}
	skipErrors := true
	if req.SkipErrors != nil {
		skipErrors = *req.SkipErrors
	}

	res := &ScopeVariablesResult{
		FunctionName:  frame.FunctionName,
		FrameLocation: fmt.Sprintf("%s:%d:%d", frame.Location.URL, frame.Location.Line, frame.Location.Column),
		Variables:     make([]Variable, 0, 16),
		TotalScopes:   len(frame.ScopeChain),
	}

	for i, scope := range frame.ScopeChain {
		if scope.ObjectID == "" {
			res.SuccessfulScopes++
			continue
		}
		props, err := m.ownProperties(ctx, scope.ObjectID)
		if err != nil {
			if !skipErrors {
				return nil, fmt.Errorf("debugger: scope %d (%s): %w", i, scope.Type, err)
			}
			res.Errors = append(res.Errors, fmt.Sprintf("scope %d (%s): %v", i, scope.Type, err))
			m.log.Warn("debugger: scope fetch failed", "session", m.sess.id, "scope", scope.Type, "error", err)
			continue
		}
		res.SuccessfulScopes++
		for _, v := range props {
			v.Scope = scope.Type
			res.Variables = append(res.Variables, v)
			if req.IncludeObjectProperties && v.ObjectID != "" && maxDepth > 1 {
				m.expandNested(ctx, &res.Variables, scope.Type, v.Name, v.ObjectID, 2, maxDepth)
			}
		}
	}
	return res, nil
}

// expandNested appends the properties of one object-valued variable under
// dotted names. Failures here never fail the request; a variable that
// cannot be expanded stays a leaf.
func (m *Manager) expandNested(ctx context.Context, out *[]Variable, scopeType, prefix, objectID string, depth, maxDepth int) {
	props, err := m.ownProperties(ctx, objectID)
	if err != nil {
		m.log.Debug("debugger: nested property fetch failed", "variable", prefix, "error", err)
		return
	}
	for _, v := range props {
		v.Name = prefix + "." + v.Name
		v.Scope = scopeType
		*out = append(*out, v)
		if v.ObjectID != "" && depth < maxDepth {
			m.expandNested(ctx, out, scopeType, v.Name, v.ObjectID, depth+1, maxDepth)
		}
	}
}

// GetObjectProperties fetches the own properties of a remote object by
// handle, typically taken from a Variable's ObjectID.
func (m *Manager) GetObjectProperties(ctx context.Context, objectID string) ([]Variable, error) {
	if objectID == "" {
		return nil, fmt.Errorf("%w: object id is required", ErrInvalidInput)
	}
	return m.ownProperties(ctx, objectID)
}

func (m *Manager) ownProperties(ctx context.Context, objectID string) ([]Variable, error) {
	started := time.Now()
	res, err := proto.RuntimeGetProperties{
		ObjectID:      proto.RuntimeRemoteObjectID(objectID),
		OwnProperties: true,
	}.Call(m.sess.target(ctx))
	m.sess.record(ctx, "Runtime.getProperties", started, err)
	if err != nil {
		if isStaleHandle(err) {
			return nil, fmt.Errorf("%w: object %s expired, pause again and fetch fresh scope variables", ErrStaleHandle, objectID)
		}
		return nil, fmt.Errorf("debugger: get properties: %w", err)
	}
	if res.ExceptionDetails != nil {
		return nil, fmt.Errorf("debugger: get properties threw: %s", exceptionText(res.ExceptionDetails))
	}

	vars := make([]Variable, 0, len(res.Result))
	for _, p := range res.Result {
		vars = append(vars, variableFromProperty(p))
	}
	return vars, nil
}
