package debugger

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/chrdbg/kit"
)

func (m *Manager) registerScriptTools(srv *mcp.Server) {
	m.registerListScripts(srv)
	m.registerGetScriptSource(srv)
	m.registerGetScriptChunk(srv)
	m.registerSearchScripts(srv)
	m.registerSearchScriptsEnhanced(srv)
	m.registerClearScripts(srv)
}

func (m *Manager) registerListScripts(srv *mcp.Server) {
	type req struct {
		IncludeSource bool `json:"include_source"`
		MaxScripts    int  `json:"max_scripts"`
	}

	tool := &mcp.Tool{
		Name:        "scripts_list",
		Description: "List scripts the page has parsed, in announcement order",
		InputSchema: inputSchema(map[string]any{
			"include_source": map[string]any{"type": "boolean", "description": "Also fetch script bodies"},
			"max_scripts":    map[string]any{"type": "integer", "description": "Cap on listed scripts, default 50"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return m.scripts.GetAllScripts(ctx, p.IncludeSource, p.MaxScripts)
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

func (m *Manager) registerGetScriptSource(srv *mcp.Server) {
	type req struct {
		Script string `json:"script"`
	}

	tool := &mcp.Tool{
		Name:        "scripts_get_source",
		Description: "Fetch a script body by id or by URL pattern where * matches anything",
		InputSchema: inputSchema(map[string]any{
			"script": map[string]any{"type": "string", "description": "Script id or URL pattern, for example */app.js"},
		}, []string{"script"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return m.scripts.GetScriptSource(ctx, p.Script)
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

func (m *Manager) registerGetScriptChunk(srv *mcp.Server) {
	type req struct {
		ScriptID string `json:"script_id"`
		Index    int    `json:"index"`
	}

	tool := &mcp.Tool{
		Name:        "scripts_get_chunk",
		Description: "Fetch one 100 KiB chunk of a script body by index",
		InputSchema: inputSchema(map[string]any{
			"script_id": map[string]any{"type": "string", "description": "Script id"},
			"index":     map[string]any{"type": "integer", "description": "Zero-based chunk index"},
		}, []string{"script_id", "index"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return m.scripts.GetScriptChunk(ctx, p.ScriptID, p.Index)
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

type searchReq struct {
	Query         string `json:"query"`
	IsRegex       bool   `json:"is_regex"`
	CaseSensitive bool   `json:"case_sensitive"`
	ContextLines  int    `json:"context_lines"`
	MaxMatches    int    `json:"max_matches"`
}

func searchSchema() map[string]any {
	return inputSchema(map[string]any{
		"query":          map[string]any{"type": "string", "description": "Text or regex to look for"},
		"is_regex":       map[string]any{"type": "boolean", "description": "Treat the query as a regular expression"},
		"case_sensitive": map[string]any{"type": "boolean", "description": "Match case exactly"},
		"context_lines":  map[string]any{"type": "integer", "description": "Lines of context around each hit, default 2"},
		"max_matches":    map[string]any{"type": "integer", "description": "Stop after this many hits, default 20"},
	}, []string{"query"})
}

func decodeSearch(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var p searchReq
	if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
		return nil, err
	}
	return &kit.MCPDecodeResult{Request: &p}, nil
}

func (m *Manager) registerSearchScripts(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "scripts_search",
		Description: "Search all script sources line by line",
		InputSchema: searchSchema(),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*searchReq)
		return m.scripts.SearchInScripts(ctx, p.Query, SearchOptions{
			IsRegex:       p.IsRegex,
			CaseSensitive: p.CaseSensitive,
			ContextLines:  p.ContextLines,
			MaxMatches:    p.MaxMatches,
		})
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeSearch)
}

func (m *Manager) registerSearchScriptsEnhanced(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "scripts_search_enhanced",
		Description: "Search script sources through the keyword index; finds identifiers containing the query",
		InputSchema: searchSchema(),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*searchReq)
		return m.scripts.SearchInScriptsEnhanced(ctx, p.Query, SearchOptions{
			IsRegex:       p.IsRegex,
			CaseSensitive: p.CaseSensitive,
			ContextLines:  p.ContextLines,
			MaxMatches:    p.MaxMatches,
		})
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeSearch)
}

func (m *Manager) registerClearScripts(srv *mcp.Server) {
	registerAction(srv, "scripts_clear",
		"Drop every cached script, source and index entry",
		func(_ context.Context) (any, error) {
			m.scripts.Clear()
			return &statusResult{Status: "cleared"}, nil
		})
}
