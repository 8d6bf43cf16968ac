package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/chrdbg/capture"
	"github.com/hazyhaar/chrdbg/debugger"
	"github.com/hazyhaar/chrdbg/shield"
)

// newRouter builds the read-only HTTP surface. Mutations go through MCP
// tools; these endpoints exist so a human can watch a session from curl
// or a dashboard without speaking JSON-RPC. mcpHandler, when non-nil, is
// mounted at /mcp for clients using the streamable HTTP transport.
func newRouter(m *debugger.Manager, journal *capture.Journal, target string, mcpHandler http.Handler) http.Handler {
	started := time.Now()

	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]any{
			"session_id":        m.SessionID(),
			"target":            target,
			"paused":            m.IsPaused(),
			"breakpoints":       len(m.ListBreakpoints()),
			"event_breakpoints": len(m.ListEventBreakpoints()),
			"xhr_breakpoints":   len(m.ListXHRBreakpoints()),
			"scripts":           m.Scripts().Count(),
			"uptime_s":          int(time.Since(started).Seconds()),
		})
	})

	r.Get("/api/paused", func(w http.ResponseWriter, _ *http.Request) {
		st := m.PausedSnapshot()
		if st == nil {
			writeJSON(w, 200, map[string]any{"paused": false})
			return
		}
		writeJSON(w, 200, map[string]any{"paused": true, "state": st})
	})

	r.Get("/api/breakpoints", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]any{
			"breakpoints":       m.ListBreakpoints(),
			"event_breakpoints": m.ListEventBreakpoints(),
			"xhr_breakpoints":   m.ListXHRBreakpoints(),
		})
	})

	r.Get("/api/scripts", func(w http.ResponseWriter, r *http.Request) {
		includeSource := r.URL.Query().Get("source") == "true"
		list, err := m.Scripts().GetAllScripts(r.Context(), includeSource, queryInt(r, "limit", 0))
		if err != nil {
			writeError(w, httpStatus(err), err)
			return
		}
		writeJSON(w, 200, list)
	})

	r.Get("/api/search", func(w http.ResponseWriter, r *http.Request) {
		opts := debugger.SearchOptions{
			IsRegex:       r.URL.Query().Get("regex") == "true",
			CaseSensitive: r.URL.Query().Get("case") == "true",
			ContextLines:  queryInt(r, "context", 0),
			MaxMatches:    queryInt(r, "limit", 0),
		}
		q := r.URL.Query().Get("q")
		var (
			res *debugger.SearchResult
			err error
		)
		if r.URL.Query().Get("strategy") == "index" {
			res, err = m.Scripts().SearchInScriptsEnhanced(r.Context(), q, opts)
		} else {
			res, err = m.Scripts().SearchInScripts(r.Context(), q, opts)
		}
		if err != nil {
			writeError(w, httpStatus(err), err)
			return
		}
		writeJSON(w, 200, res)
	})

	r.Get("/api/captures", func(w http.ResponseWriter, r *http.Request) {
		if journal == nil {
			writeError(w, 404, errors.New("capture journal disabled"))
			return
		}
		rows, err := journal.Recent(r.Context(), m.SessionID(), queryInt(r, "limit", 100))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, map[string]any{"captures": rows})
	})

	if mcpHandler != nil {
		r.Handle("/mcp", mcpHandler)
	}

	return r
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, debugger.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, debugger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, debugger.ErrNotEnabled), errors.Is(err, debugger.ErrNotPaused):
		return http.StatusConflict
	case errors.Is(err, debugger.ErrStaleHandle):
		return http.StatusGone
	case errors.Is(err, debugger.ErrWaitTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
