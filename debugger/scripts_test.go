package debugger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func sourceHandler(bodies map[string]string) func(json.RawMessage) (any, error) {
	return func(raw json.RawMessage) (any, error) {
		var p struct {
			ScriptID string `json:"scriptId"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		body, ok := bodies[p.ScriptID]
		if !ok {
			return nil, fmt.Errorf("no source for %s", p.ScriptID)
		}
		return map[string]any{"scriptSource": body}, nil
	}
}

func TestScriptListingIsLazy(t *testing.T) {
	m, fc := newEnabledManager(t, nil)
	r := m.Scripts()
	announceScript(r, "s1", "https://shop.test/app.js")
	announceScript(r, "s2", "https://shop.test/vendor.js")
	fc.handlers["Debugger.getScriptSource"] = sourceHandler(map[string]string{
		"s1": "function checkout() {}",
		"s2": "var vendor = 1;",
	})

	list, err := r.GetAllScripts(context.Background(), false, 0)
	if err != nil {
		t.Fatalf("GetAllScripts: %v", err)
	}
	if list.Total != 2 || len(list.Scripts) != 2 {
		t.Fatalf("list = %+v", list)
	}
	if got := fc.callCount("Debugger.getScriptSource"); got != 0 {
		t.Fatalf("metadata listing fetched %d sources, want 0", got)
	}

	list, err = r.GetAllScripts(context.Background(), true, 0)
	if err != nil {
		t.Fatalf("GetAllScripts with source: %v", err)
	}
	if list.Scripts[0].Source != "function checkout() {}" {
		t.Fatalf("source = %q", list.Scripts[0].Source)
	}
	if got := fc.callCount("Debugger.getScriptSource"); got != 2 {
		t.Fatalf("fetches = %d, want 2", got)
	}

	// Cached bodies serve the second pass.
	if _, err := r.GetAllScripts(context.Background(), true, 0); err != nil {
		t.Fatalf("GetAllScripts cached: %v", err)
	}
	if got := fc.callCount("Debugger.getScriptSource"); got != 2 {
		t.Fatalf("fetches after cache = %d, want 2", got)
	}
}

func TestReannounceKeepsCachedSource(t *testing.T) {
	m, fc := newEnabledManager(t, nil)
	r := m.Scripts()
	announceScript(r, "s1", "https://shop.test/app.js")
	fc.handlers["Debugger.getScriptSource"] = sourceHandler(map[string]string{
		"s1": "let total = 0;",
	})

	if _, err := r.GetScriptSource(context.Background(), "s1"); err != nil {
		t.Fatalf("GetScriptSource: %v", err)
	}
	announceScript(r, "s1", "https://shop.test/app.js")

	src, err := r.GetScriptSource(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetScriptSource after reannounce: %v", err)
	}
	if src.Source != "let total = 0;" {
		t.Fatalf("source = %q", src.Source)
	}
	if got := fc.callCount("Debugger.getScriptSource"); got != 1 {
		t.Fatalf("fetches = %d, want 1", got)
	}
	if got := r.Count(); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
}

func TestScriptChunkTable(t *testing.T) {
	m, fc := newEnabledManager(t, nil)
	r := m.Scripts()
	announceScript(r, "s1", "https://shop.test/bundle.js")

	var b strings.Builder
	for b.Len() < 250*1024 {
		fmt.Fprintf(&b, "let v%d = %d;\n", b.Len(), b.Len())
	}
	source := b.String()[:250*1024]
	fc.handlers["Debugger.getScriptSource"] = sourceHandler(map[string]string{"s1": source})
	ctx := context.Background()

	src, err := r.GetScriptSource(ctx, "s1")
	if err != nil {
		t.Fatalf("GetScriptSource: %v", err)
	}
	if src.TotalChunks != 3 || src.Length != 250*1024 {
		t.Fatalf("source = {chunks: %d, length: %d}", src.TotalChunks, src.Length)
	}

	wantLengths := []int{ScriptChunkSize, ScriptChunkSize, 50 * 1024}
	var rebuilt strings.Builder
	for i, want := range wantLengths {
		chunk, err := r.GetScriptChunk(ctx, "s1", i)
		if err != nil {
			t.Fatalf("GetScriptChunk %d: %v", i, err)
		}
		if chunk.Length != want || chunk.TotalChunks != 3 {
			t.Fatalf("chunk %d = {length: %d, total: %d}, want length %d", i, chunk.Length, chunk.TotalChunks, want)
		}
		rebuilt.WriteString(chunk.Content)
	}
	if rebuilt.String() != source {
		t.Fatal("concatenated chunks differ from the original source")
	}

	_, err = r.GetScriptChunk(ctx, "s1", 3)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("out of range: err = %v, want ErrInvalidInput", err)
	}
	if !strings.Contains(err.Error(), "has 3 chunks") {
		t.Fatalf("err = %v, want chunk count in message", err)
	}
	if _, err := r.GetScriptChunk(ctx, "s1", -1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative index: err = %v, want ErrInvalidInput", err)
	}
}

func TestGetScriptSourceByURLPattern(t *testing.T) {
	m, fc := newEnabledManager(t, nil)
	r := m.Scripts()
	announceScript(r, "s1", "https://shop.test/static/app.js")
	announceScript(r, "s2", "https://shop.test/static/vendor.js")
	fc.handlers["Debugger.getScriptSource"] = sourceHandler(map[string]string{
		"s1": "app",
		"s2": "vendor",
	})
	ctx := context.Background()

	src, err := r.GetScriptSource(ctx, "*app.js")
	if err != nil {
		t.Fatalf("GetScriptSource by pattern: %v", err)
	}
	if src.ScriptID != "s1" {
		t.Fatalf("pattern resolved to %s, want s1", src.ScriptID)
	}

	src, err = r.GetScriptSource(ctx, "https://shop.test/static/vendor.js")
	if err != nil {
		t.Fatalf("GetScriptSource by exact url: %v", err)
	}
	if src.ScriptID != "s2" {
		t.Fatalf("exact url resolved to %s, want s2", src.ScriptID)
	}

	_, err = r.GetScriptSource(ctx, "*missing.js")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "list scripts") {
		t.Fatalf("err = %v, want listing hint", err)
	}
}

func TestGetAllScriptsTruncation(t *testing.T) {
	m, _ := newEnabledManager(t, nil)
	r := m.Scripts()
	for i := 1; i <= 3; i++ {
		announceScript(r, fmt.Sprintf("s%d", i), fmt.Sprintf("https://shop.test/s%d.js", i))
	}

	list, err := r.GetAllScripts(context.Background(), false, 2)
	if err != nil {
		t.Fatalf("GetAllScripts: %v", err)
	}
	if !list.Truncated || list.Total != 3 || len(list.Scripts) != 2 {
		t.Fatalf("list = {truncated: %v, total: %d, scripts: %d}", list.Truncated, list.Total, len(list.Scripts))
	}
	if list.Scripts[0].ScriptID != "s1" || list.Scripts[1].ScriptID != "s2" {
		t.Fatalf("order = %s, %s", list.Scripts[0].ScriptID, list.Scripts[1].ScriptID)
	}

	if _, err := r.GetAllScripts(context.Background(), false, -1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative cap: err = %v, want ErrInvalidInput", err)
	}
}

func TestSourceFailureDowngradesToMetadata(t *testing.T) {
	m, fc := newEnabledManager(t, nil)
	r := m.Scripts()
	announceScript(r, "s1", "https://shop.test/app.js")
	announceScript(r, "s2", "https://shop.test/gone.js")
	fc.handlers["Debugger.getScriptSource"] = sourceHandler(map[string]string{
		"s1": "app",
	})

	list, err := r.GetAllScripts(context.Background(), true, 0)
	if err != nil {
		t.Fatalf("GetAllScripts: %v", err)
	}
	if list.SourceFailures != 1 || len(list.Scripts) != 2 {
		t.Fatalf("list = {failures: %d, scripts: %d}", list.SourceFailures, len(list.Scripts))
	}
	if list.Scripts[0].Source != "app" {
		t.Fatalf("first source = %q", list.Scripts[0].Source)
	}
	if list.Scripts[1].Source != "" || list.Scripts[1].URL != "https://shop.test/gone.js" {
		t.Fatalf("failed entry = %+v, want metadata only", list.Scripts[1])
	}
}

func TestClearResetsRegistry(t *testing.T) {
	m, fc := newEnabledManager(t, nil)
	r := m.Scripts()
	announceScript(r, "s1", "https://shop.test/app.js")
	fc.handlers["Debugger.getScriptSource"] = sourceHandler(map[string]string{
		"s1": "before",
	})
	ctx := context.Background()

	if _, err := r.GetScriptSource(ctx, "s1"); err != nil {
		t.Fatalf("GetScriptSource: %v", err)
	}
	r.Clear()

	if got := r.Count(); got != 0 {
		t.Fatalf("count after clear = %d, want 0", got)
	}
	if _, err := r.GetScriptSource(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after clear", err)
	}

	// The registry stays usable for later announcements.
	announceScript(r, "s9", "https://shop.test/late.js")
	fc.handlers["Debugger.getScriptSource"] = sourceHandler(map[string]string{
		"s9": "after",
	})
	src, err := r.GetScriptSource(ctx, "s9")
	if err != nil {
		t.Fatalf("GetScriptSource after clear: %v", err)
	}
	if src.Source != "after" {
		t.Fatalf("source = %q", src.Source)
	}
}
