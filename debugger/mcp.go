package debugger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/chrdbg/kit"
)

// RegisterMCP registers all debugger tools on an MCP server.
func (m *Manager) RegisterMCP(srv *mcp.Server) {
	m.registerEnable(srv)
	m.registerDisable(srv)
	m.registerSetPauseOnExceptions(srv)
	m.registerPause(srv)
	m.registerResume(srv)
	m.registerStepInto(srv)
	m.registerStepOver(srv)
	m.registerStepOut(srv)
	m.registerGetPausedState(srv)
	m.registerWaitForPaused(srv)
	m.registerEvaluateOnCallFrame(srv)
	m.registerSetBreakpointByURL(srv)
	m.registerSetBreakpoint(srv)
	m.registerRemoveBreakpoint(srv)
	m.registerListBreakpoints(srv)
	m.registerGetBreakpoint(srv)
	m.registerClearAllBreakpoints(srv)
	m.registerGetScopeVariables(srv)
	m.registerGetObjectProperties(srv)
	m.registerSetEventBreakpoint(srv)
	m.registerSetEventFamilyBreakpoints(srv)
	m.registerRemoveEventBreakpoint(srv)
	m.registerListEventBreakpoints(srv)
	m.registerClearAllEventBreakpoints(srv)
	m.registerSetXHRBreakpoint(srv)
	m.registerRemoveXHRBreakpoint(srv)
	m.registerListXHRBreakpoints(srv)
	m.registerClearAllXHRBreakpoints(srv)
	m.registerScriptTools(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// registerAction wires a tool that takes no arguments.
func registerAction(srv *mcp.Server, name, description string, run func(ctx context.Context) (any, error)) {
	tool := &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		return run(ctx)
	}
	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: &struct{}{}}, nil
	}
	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

type statusResult struct {
	Status string `json:"status"`
}

// --- Execution control ---

func (m *Manager) registerEnable(srv *mcp.Server) {
	registerAction(srv, "debugger_enable",
		"Attach the debugger to the page so breakpoints and pauses work",
		func(ctx context.Context) (any, error) {
			if err := m.Enable(ctx); err != nil {
				return nil, err
			}
			return &statusResult{Status: "enabled"}, nil
		})
}

func (m *Manager) registerDisable(srv *mcp.Server) {
	registerAction(srv, "debugger_disable",
		"Detach the debugger from the page",
		func(ctx context.Context) (any, error) {
			if err := m.Disable(ctx); err != nil {
				return nil, err
			}
			return &statusResult{Status: "disabled"}, nil
		})
}

func (m *Manager) registerSetPauseOnExceptions(srv *mcp.Server) {
	type req struct {
		State string `json:"state"`
	}

	tool := &mcp.Tool{
		Name:        "debugger_set_pause_on_exceptions",
		Description: "Choose which thrown exceptions pause the page: none, uncaught or all",
		InputSchema: inputSchema(map[string]any{
			"state": map[string]any{"type": "string", "description": "Pause mode: none, uncaught or all"},
		}, []string{"state"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		if err := m.SetPauseOnExceptions(ctx, p.State); err != nil {
			return nil, err
		}
		return &statusResult{Status: "pause on exceptions: " + p.State}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (m *Manager) registerPause(srv *mcp.Server) {
	registerAction(srv, "debugger_pause",
		"Pause execution at the next statement",
		func(ctx context.Context) (any, error) {
			if err := m.Pause(ctx); err != nil {
				return nil, err
			}
			return &statusResult{Status: "pause requested"}, nil
		})
}

func (m *Manager) registerResume(srv *mcp.Server) {
	registerAction(srv, "debugger_resume",
		"Resume a paused page",
		func(ctx context.Context) (any, error) {
			if err := m.Resume(ctx); err != nil {
				return nil, err
			}
			return &statusResult{Status: "resumed"}, nil
		})
}

func (m *Manager) registerStepInto(srv *mcp.Server) {
	registerAction(srv, "debugger_step_into",
		"Step into the next function call",
		func(ctx context.Context) (any, error) {
			if err := m.StepInto(ctx); err != nil {
				return nil, err
			}
			return &statusResult{Status: "stepped into"}, nil
		})
}

func (m *Manager) registerStepOver(srv *mcp.Server) {
	registerAction(srv, "debugger_step_over",
		"Step over the next statement",
		func(ctx context.Context) (any, error) {
			if err := m.StepOver(ctx); err != nil {
				return nil, err
			}
			return &statusResult{Status: "stepped over"}, nil
		})
}

func (m *Manager) registerStepOut(srv *mcp.Server) {
	registerAction(srv, "debugger_step_out",
		"Run until the current function returns",
		func(ctx context.Context) (any, error) {
			if err := m.StepOut(ctx); err != nil {
				return nil, err
			}
			return &statusResult{Status: "stepped out"}, nil
		})
}

func (m *Manager) registerGetPausedState(srv *mcp.Server) {
	registerAction(srv, "debugger_get_paused_state",
		"Return the current pause snapshot with call frames, or paused=false",
		func(_ context.Context) (any, error) {
			st := m.PausedSnapshot()
			if st == nil {
				return map[string]any{"paused": false}, nil
			}
			return map[string]any{"paused": true, "state": st}, nil
		})
}

func (m *Manager) registerWaitForPaused(srv *mcp.Server) {
	type req struct {
		TimeoutMs int `json:"timeout_ms"`
	}

	tool := &mcp.Tool{
		Name:        "debugger_wait_for_paused",
		Description: "Block until the page pauses or the timeout expires",
		InputSchema: inputSchema(map[string]any{
			"timeout_ms": map[string]any{"type": "integer", "description": "Timeout in ms, default 30000"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return m.WaitForPaused(ctx, time.Duration(p.TimeoutMs)*time.Millisecond)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if len(r.Params.Arguments) > 0 {
			if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (m *Manager) registerEvaluateOnCallFrame(srv *mcp.Server) {
	type req struct {
		CallFrameID   string `json:"call_frame_id"`
		Expression    string `json:"expression"`
		ReturnByValue bool   `json:"return_by_value"`
	}

	tool := &mcp.Tool{
		Name:        "debugger_evaluate_on_call_frame",
		Description: "Evaluate a JavaScript expression in a call frame of the current pause",
		InputSchema: inputSchema(map[string]any{
			"call_frame_id":   map[string]any{"type": "string", "description": "Call frame id, default top frame"},
			"expression":      map[string]any{"type": "string", "description": "Expression to evaluate"},
			"return_by_value": map[string]any{"type": "boolean", "description": "Serialize the result instead of returning an object handle"},
		}, []string{"expression"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return m.EvaluateOnCallFrame(ctx, p.CallFrameID, p.Expression, p.ReturnByValue)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- Breakpoints ---

func (m *Manager) registerSetBreakpointByURL(srv *mcp.Server) {
	type req struct {
		URL       string `json:"url"`
		Line      int    `json:"line_number"`
		Column    *int   `json:"column_number"`
		Condition string `json:"condition"`
	}

	tool := &mcp.Tool{
		Name:        "debugger_set_breakpoint_by_url",
		Description: "Set a breakpoint by script URL and zero-based line, surviving reloads",
		InputSchema: inputSchema(map[string]any{
			"url":           map[string]any{"type": "string", "description": "Script URL"},
			"line_number":   map[string]any{"type": "integer", "description": "Zero-based line number"},
			"column_number": map[string]any{"type": "integer", "description": "Zero-based column number"},
			"condition":     map[string]any{"type": "string", "description": "Only pause when this expression is truthy"},
		}, []string{"url", "line_number"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return m.SetBreakpointByURL(ctx, BreakpointByURLRequest{
			URL:       p.URL,
			Line:      p.Line,
			Column:    p.Column,
			Condition: p.Condition,
		})
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (m *Manager) registerSetBreakpoint(srv *mcp.Server) {
	type req struct {
		ScriptID  string `json:"script_id"`
		Line      int    `json:"line_number"`
		Column    *int   `json:"column_number"`
		Condition string `json:"condition"`
	}

	tool := &mcp.Tool{
		Name:        "debugger_set_breakpoint",
		Description: "Set a breakpoint on a parsed script id at a zero-based line",
		InputSchema: inputSchema(map[string]any{
			"script_id":     map[string]any{"type": "string", "description": "Script id from the script registry"},
			"line_number":   map[string]any{"type": "integer", "description": "Zero-based line number"},
			"column_number": map[string]any{"type": "integer", "description": "Zero-based column number"},
			"condition":     map[string]any{"type": "string", "description": "Only pause when this expression is truthy"},
		}, []string{"script_id", "line_number"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return m.SetBreakpointByScript(ctx, BreakpointByScriptRequest{
			ScriptID:  p.ScriptID,
			Line:      p.Line,
			Column:    p.Column,
			Condition: p.Condition,
		})
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (m *Manager) registerRemoveBreakpoint(srv *mcp.Server) {
	type req struct {
		BreakpointID string `json:"breakpoint_id"`
	}

	tool := &mcp.Tool{
		Name:        "debugger_remove_breakpoint",
		Description: "Remove a breakpoint by id",
		InputSchema: inputSchema(map[string]any{
			"breakpoint_id": map[string]any{"type": "string", "description": "Breakpoint id"},
		}, []string{"breakpoint_id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		if err := m.RemoveBreakpoint(ctx, p.BreakpointID); err != nil {
			return nil, err
		}
		return &statusResult{Status: "removed " + p.BreakpointID}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (m *Manager) registerListBreakpoints(srv *mcp.Server) {
	registerAction(srv, "debugger_list_breakpoints",
		"List registered breakpoints in creation order",
		func(_ context.Context) (any, error) {
			return map[string]any{"breakpoints": m.ListBreakpoints()}, nil
		})
}

func (m *Manager) registerGetBreakpoint(srv *mcp.Server) {
	type req struct {
		BreakpointID string `json:"breakpoint_id"`
	}

	tool := &mcp.Tool{
		Name:        "debugger_get_breakpoint",
		Description: "Fetch one breakpoint by id",
		InputSchema: inputSchema(map[string]any{
			"breakpoint_id": map[string]any{"type": "string", "description": "Breakpoint id"},
		}, []string{"breakpoint_id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return m.GetBreakpoint(p.BreakpointID)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (m *Manager) registerClearAllBreakpoints(srv *mcp.Server) {
	registerAction(srv, "debugger_clear_all_breakpoints",
		"Remove every registered breakpoint, best effort",
		func(ctx context.Context) (any, error) {
			return m.ClearAllBreakpoints(ctx)
		})
}

// --- Scopes ---

func (m *Manager) registerGetScopeVariables(srv *mcp.Server) {
	type req struct {
		CallFrameID             string `json:"call_frame_id"`
		IncludeObjectProperties bool   `json:"include_object_properties"`
		MaxDepth                int    `json:"max_depth"`
		SkipErrors              *bool  `json:"skip_errors"`
	}

	tool := &mcp.Tool{
		Name:        "debugger_get_scope_variables",
		Description: "Read the variables of every scope of a paused call frame",
		InputSchema: inputSchema(map[string]any{
			"call_frame_id":             map[string]any{"type": "string", "description": "Call frame id, default top frame"},
			"include_object_properties": map[string]any{"type": "boolean", "description": "Expand object variables into dotted child entries"},
			"max_depth":                 map[string]any{"type": "integer", "description": "Expansion depth, default 1"},
			"skip_errors":               map[string]any{"type": "boolean", "description": "Collect per-scope failures instead of failing, default true"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return m.GetScopeVariables(ctx, ScopeVariablesRequest{
			CallFrameID:             p.CallFrameID,
			IncludeObjectProperties: p.IncludeObjectProperties,
			MaxDepth:                p.MaxDepth,
			SkipErrors:              p.SkipErrors,
		})
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if len(r.Params.Arguments) > 0 {
			if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (m *Manager) registerGetObjectProperties(srv *mcp.Server) {
	type req struct {
		ObjectID string `json:"object_id"`
	}

	tool := &mcp.Tool{
		Name:        "debugger_get_object_properties",
		Description: "Fetch the own properties of a remote object by handle",
		InputSchema: inputSchema(map[string]any{
			"object_id": map[string]any{"type": "string", "description": "Remote object id from a variable"},
		}, []string{"object_id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		vars, err := m.GetObjectProperties(ctx, p.ObjectID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"properties": vars}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- Event and XHR breakpoints ---

func (m *Manager) registerSetEventBreakpoint(srv *mcp.Server) {
	type req struct {
		EventName  string `json:"event_name"`
		TargetName string `json:"target_name"`
	}

	tool := &mcp.Tool{
		Name:        "debugger_set_event_breakpoint",
		Description: "Pause whenever a listener for the named DOM event fires",
		InputSchema: inputSchema(map[string]any{
			"event_name":  map[string]any{"type": "string", "description": "Event name, for example click or keydown"},
			"target_name": map[string]any{"type": "string", "description": "Optional interface filter, for example websocket"},
		}, []string{"event_name"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return m.SetEventBreakpoint(ctx, p.EventName, p.TargetName)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (m *Manager) registerSetEventFamilyBreakpoints(srv *mcp.Server) {
	type req struct {
		Family string `json:"family"`
	}

	tool := &mcp.Tool{
		Name:        "debugger_set_event_family_breakpoints",
		Description: "Register a whole family of listener breakpoints: mouse, keyboard, timer or websocket",
		InputSchema: inputSchema(map[string]any{
			"family": map[string]any{"type": "string", "description": "Family name: mouse, keyboard, timer or websocket"},
		}, []string{"family"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		entries, err := m.SetEventFamilyBreakpoints(ctx, p.Family)
		if err != nil {
			return nil, err
		}
		return map[string]any{"breakpoints": entries}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (m *Manager) registerRemoveEventBreakpoint(srv *mcp.Server) {
	type req struct {
		ID string `json:"id"`
	}

	tool := &mcp.Tool{
		Name:        "debugger_remove_event_breakpoint",
		Description: "Remove one event listener breakpoint by id",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Event breakpoint id"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		if err := m.RemoveEventBreakpoint(ctx, p.ID); err != nil {
			return nil, err
		}
		return &statusResult{Status: "removed " + p.ID}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (m *Manager) registerListEventBreakpoints(srv *mcp.Server) {
	registerAction(srv, "debugger_list_event_breakpoints",
		"List registered event listener breakpoints",
		func(_ context.Context) (any, error) {
			return map[string]any{"breakpoints": m.ListEventBreakpoints()}, nil
		})
}

func (m *Manager) registerClearAllEventBreakpoints(srv *mcp.Server) {
	registerAction(srv, "debugger_clear_all_event_breakpoints",
		"Remove every event listener breakpoint, best effort",
		func(ctx context.Context) (any, error) {
			return m.ClearAllEventBreakpoints(ctx), nil
		})
}

func (m *Manager) registerSetXHRBreakpoint(srv *mcp.Server) {
	type req struct {
		URLPattern string `json:"url_pattern"`
	}

	tool := &mcp.Tool{
		Name:        "debugger_set_xhr_breakpoint",
		Description: "Pause when a fetch or XHR URL contains the pattern; empty matches all",
		InputSchema: inputSchema(map[string]any{
			"url_pattern": map[string]any{"type": "string", "description": "Substring of the request URL"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return m.SetXHRBreakpoint(ctx, p.URLPattern)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if len(r.Params.Arguments) > 0 {
			if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (m *Manager) registerRemoveXHRBreakpoint(srv *mcp.Server) {
	type req struct {
		ID string `json:"id"`
	}

	tool := &mcp.Tool{
		Name:        "debugger_remove_xhr_breakpoint",
		Description: "Remove one XHR breakpoint by id",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "XHR breakpoint id"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		if err := m.RemoveXHRBreakpoint(ctx, p.ID); err != nil {
			return nil, err
		}
		return &statusResult{Status: "removed " + p.ID}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (m *Manager) registerListXHRBreakpoints(srv *mcp.Server) {
	registerAction(srv, "debugger_list_xhr_breakpoints",
		"List registered XHR breakpoints",
		func(_ context.Context) (any, error) {
			return map[string]any{"breakpoints": m.ListXHRBreakpoints()}, nil
		})
}

func (m *Manager) registerClearAllXHRBreakpoints(srv *mcp.Server) {
	registerAction(srv, "debugger_clear_all_xhr_breakpoints",
		"Remove every XHR breakpoint, best effort",
		func(ctx context.Context) (any, error) {
			return m.ClearAllXHRBreakpoints(ctx), nil
		})
}
