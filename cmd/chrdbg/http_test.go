package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hazyhaar/chrdbg/debugger"
)

type stubClient struct{}

func (stubClient) Call(_ context.Context, _, _ string, _ interface{}) ([]byte, error) {
	return []byte(`{}`), nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := debugger.New(stubClient{}, nil, logger, debugger.WithSessionID("sess_http"))
	if err != nil {
		t.Fatalf("debugger.New: %v", err)
	}
	return newRouter(m, nil, "https://shop.test/checkout", nil)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func TestHealthEndpoint(t *testing.T) {
	w := get(t, newTestRouter(t), "/health")
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestStatusEndpoint(t *testing.T) {
	w := get(t, newTestRouter(t), "/status")
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
	var st map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st["session_id"] != "sess_http" {
		t.Errorf("session_id = %v", st["session_id"])
	}
	if st["target"] != "https://shop.test/checkout" {
		t.Errorf("target = %v", st["target"])
	}
	if st["paused"] != false {
		t.Errorf("paused = %v", st["paused"])
	}
}

func TestPausedEndpointIdle(t *testing.T) {
	w := get(t, newTestRouter(t), "/api/paused")
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["paused"] != false {
		t.Errorf("paused = %v, want false on an idle session", body["paused"])
	}
	if _, ok := body["state"]; ok {
		t.Error("idle response carries a state field")
	}
}

func TestSearchEndpointRejectsEmptyQuery(t *testing.T) {
	w := get(t, newTestRouter(t), "/api/search")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] == "" {
		t.Error("error body missing")
	}
}

func TestCapturesEndpointDisabled(t *testing.T) {
	// The test router runs without a journal.
	w := get(t, newTestRouter(t), "/api/captures")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestMCPNotMountedOnStdio(t *testing.T) {
	w := get(t, newTestRouter(t), "/mcp")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 when /mcp is not mounted", w.Code)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad line", debugger.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: breakpoint bp-9", debugger.ErrNotFound), http.StatusNotFound},
		{debugger.ErrNotEnabled, http.StatusConflict},
		{debugger.ErrNotPaused, http.StatusConflict},
		{debugger.ErrStaleHandle, http.StatusGone},
		{debugger.ErrWaitTimeout, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := httpStatus(tc.err); got != tc.want {
			t.Errorf("httpStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
