package debugger

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// ScriptChunkSize bounds the payload of one GetScriptChunk response.
const ScriptChunkSize = 100 * 1024

// ScriptInfo describes one parsed script. Source is only populated on
// requests that ask for it.
type ScriptInfo struct {
	ScriptID     string `json:"script_id"`
	URL          string `json:"url,omitempty"`
	StartLine    int    `json:"start_line"`
	StartColumn  int    `json:"start_column"`
	EndLine      int    `json:"end_line"`
	EndColumn    int    `json:"end_column"`
	Hash         string `json:"hash,omitempty"`
	SourceLength int    `json:"source_length,omitempty"`
	Source       string `json:"source,omitempty"`
}

// ScriptList is a page of registered scripts.
type ScriptList struct {
	Scripts        []ScriptInfo `json:"scripts"`
	Total          int          `json:"total"`
	Truncated      bool         `json:"truncated"`
	SourceFailures int          `json:"source_failures,omitempty"`
}

// ScriptSource is a full script body with its chunking summary.
type ScriptSource struct {
	ScriptID    string `json:"script_id"`
	URL         string `json:"url,omitempty"`
	Source      string `json:"source"`
	Length      int    `json:"length"`
	TotalChunks int    `json:"total_chunks"`
}

// ScriptChunk is one fixed-size slice of a script body.
type ScriptChunk struct {
	ScriptID    string `json:"script_id"`
	Index       int    `json:"index"`
	TotalChunks int    `json:"total_chunks"`
	Content     string `json:"content"`
	Length      int    `json:"length"`
}

type scriptEntry struct {
	info    ScriptInfo
	sourced bool
}

// ScriptRegistry tracks every script the target announces and caches
// sources, chunk tables and the keyword index lazily on first use.
type ScriptRegistry struct {
	sess *session
	cfg  *Config
	log  *slog.Logger

	mu       sync.Mutex
	scripts  map[string]*scriptEntry
	order    []string
	chunks   map[string][]string
	keywords map[string][]keywordOccurrence
}

func newScriptRegistry(sess *session, cfg *Config, logger *slog.Logger) *ScriptRegistry {
	return &ScriptRegistry{
		sess:     sess,
		cfg:      cfg,
		log:      logger,
		scripts:  make(map[string]*scriptEntry),
		chunks:   make(map[string][]string),
		keywords: make(map[string][]keywordOccurrence),
	}
}

// HandleScriptParsed registers an announced script. The body is not
// fetched here; sources load on demand and stick once loaded.
func (r *ScriptRegistry) HandleScriptParsed(e *proto.DebuggerScriptParsed) {
	id := string(e.ScriptID)
	if id == "" {
		return
	}
	r.mu.Lock()
	entry, ok := r.scripts[id]
	if !ok {
		entry = &scriptEntry{}
		r.scripts[id] = entry
		r.order = append(r.order, id)
	}
	source, sourceLength := entry.info.Source, entry.info.SourceLength
	entry.info = ScriptInfo{
		ScriptID:     id,
		URL:          e.URL,
		StartLine:    e.StartLine,
		StartColumn:  e.StartColumn,
		EndLine:      e.EndLine,
		EndColumn:    e.EndColumn,
		Hash:         e.Hash,
		Source:       source,
		SourceLength: sourceLength,
	}
	r.mu.Unlock()

	r.log.Debug("debugger: script parsed", "script", id, "url", e.URL)
}

// Count returns the number of registered scripts.
func (r *ScriptRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scripts)
}

func (r *ScriptRegistry) urlOf(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.scripts[id]; ok {
		return e.info.URL
	}
	return ""
}

// GetAllScripts lists registered scripts in announcement order, capped at
// maxScripts (0 uses the configured default). With includeSource, bodies
// are fetched for listed entries; individual fetch failures downgrade that
// entry to metadata only.
func (r *ScriptRegistry) GetAllScripts(ctx context.Context, includeSource bool, maxScripts int) (*ScriptList, error) {
	if maxScripts < 0 {
		return nil, fmt.Errorf("%w: negative max scripts %d", ErrInvalidInput, maxScripts)
	}
	if maxScripts == 0 {
		maxScripts = r.cfg.MaxScripts
	}

	r.mu.Lock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	r.mu.Unlock()

	list := &ScriptList{Total: len(ids), Scripts: make([]ScriptInfo, 0, min(len(ids), maxScripts))}
	if len(ids) > maxScripts {
		ids = ids[:maxScripts]
		list.Truncated = true
	}

	for _, id := range ids {
		if includeSource {
			info, err := r.ensureSourced(ctx, id)
			if err == nil {
				list.Scripts = append(list.Scripts, info)
				continue
			}
			list.SourceFailures++
			r.log.Warn("debugger: script source unavailable", "script", id, "error", err)
		}
		r.mu.Lock()
		if e, ok := r.scripts[id]; ok {
			info := e.info
			info.Source = ""
			list.Scripts = append(list.Scripts, info)
		}
		r.mu.Unlock()
	}
	return list, nil
}

// GetScriptSource returns a full script body. The ref is either a script
// id or a URL pattern where * matches any run of characters; patterns
// resolve to the first announced script whose URL matches.
func (r *ScriptRegistry) GetScriptSource(ctx context.Context, ref string) (*ScriptSource, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: script id or url is required", ErrInvalidInput)
	}
	id, err := r.resolveRef(ref)
	if err != nil {
		return nil, err
	}
	info, err := r.ensureSourced(ctx, id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	totalChunks := len(r.chunks[id])
	r.mu.Unlock()

	return &ScriptSource{
		ScriptID:    info.ScriptID,
		URL:         info.URL,
		Source:      info.Source,
		Length:      info.SourceLength,
		TotalChunks: totalChunks,
	}, nil
}

// GetScriptChunk returns one slice of a script body so large sources can
// be paged instead of shipped whole.
func (r *ScriptRegistry) GetScriptChunk(ctx context.Context, scriptID string, index int) (*ScriptChunk, error) {
	if scriptID == "" {
		return nil, fmt.Errorf("%w: script id is required", ErrInvalidInput)
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: negative chunk index %d", ErrInvalidInput, index)
	}
	if _, err := r.ensureSourced(ctx, scriptID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	chunks := r.chunks[scriptID]
	r.mu.Unlock()
	if index >= len(chunks) {
		return nil, fmt.Errorf("%w: chunk index %d, script %s has %d chunks", ErrInvalidInput, index, scriptID, len(chunks))
	}

	return &ScriptChunk{
		ScriptID:    scriptID,
		Index:       index,
		TotalChunks: len(chunks),
		Content:     chunks[index],
		Length:      len(chunks[index]),
	}, nil
}

// Clear drops every registered script, cached source, chunk table and
// keyword entry. Announcements arriving afterwards index normally.
func (r *ScriptRegistry) Clear() {
	r.mu.Lock()
	dropped := len(r.scripts)
	r.scripts = make(map[string]*scriptEntry)
	r.order = nil
	r.chunks = make(map[string][]string)
	r.keywords = make(map[string][]keywordOccurrence)
	r.mu.Unlock()

	r.log.Info("debugger: script registry cleared", "dropped", dropped)
}

func (r *ScriptRegistry) resolveRef(ref string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scripts[ref]; ok {
		return ref, nil
	}
	re, err := globToRegexp(ref)
	if err != nil {
		return "", fmt.Errorf("%w: url pattern %q: %v", ErrInvalidInput, ref, err)
	}
	for _, id := range r.order {
		if url := r.scripts[id].info.URL; url != "" && re.MatchString(url) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no script matches %q, list scripts to see ids and urls", ErrNotFound, ref)
}

func globToRegexp(pattern string) (*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(pattern)
	return regexp.Compile("^" + strings.ReplaceAll(quoted, `\*`, ".*") + "$")
}

// ensureSourced returns the script's info with its body loaded, fetching
// it once from the target. The first load also builds the chunk table and
// keyword index.
func (r *ScriptRegistry) ensureSourced(ctx context.Context, id string) (ScriptInfo, error) {
	r.mu.Lock()
	e, ok := r.scripts[id]
	if !ok {
		r.mu.Unlock()
		return ScriptInfo{}, fmt.Errorf("%w: script %s, list scripts to see ids", ErrNotFound, id)
	}
	if e.sourced {
		info := e.info
		r.mu.Unlock()
		return info, nil
	}
	r.mu.Unlock()

	started := time.Now()
	res, err := proto.DebuggerGetScriptSource{
		ScriptID: proto.RuntimeScriptID(id),
	}.Call(r.sess.target(ctx))
	r.sess.record(ctx, "Debugger.getScriptSource", started, err)
	if err != nil {
		return ScriptInfo{}, fmt.Errorf("debugger: get script source %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok = r.scripts[id]
	if !ok {
		// Cleared while the fetch was in flight.
		return ScriptInfo{}, fmt.Errorf("%w: script %s", ErrNotFound, id)
	}
	if !e.sourced {
		e.info.Source = res.ScriptSource
		e.info.SourceLength = len(res.ScriptSource)
		e.sourced = true
		r.chunks[id] = chunkSource(res.ScriptSource, ScriptChunkSize)
		r.indexScriptLocked(e)
	}
	return e.info, nil
}

func chunkSource(src string, size int) []string {
	if src == "" {
		return nil
	}
	chunks := make([]string, 0, (len(src)+size-1)/size)
	for start := 0; start < len(src); start += size {
		end := start + size
		if end > len(src) {
			end = len(src)
		}
		chunks = append(chunks, src[start:end])
	}
	return chunks
}
