package debugger

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// keywordToken matches identifier-like runs of three or more characters.
// Shorter tokens index poorly and are skipped.
var keywordToken = regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]{2,}`)

// keywordContextLines is the context radius stored per index entry.
const keywordContextLines = 3

type keywordOccurrence struct {
	scriptID string
	url      string
	line     int
	column   int
	lineText string
	context  string
}

// indexScriptLocked tokenizes a freshly loaded source into the keyword
// index. Tokens are case-folded; every occurrence keeps its position and
// surrounding lines so hits render without re-reading the source.
func (r *ScriptRegistry) indexScriptLocked(e *scriptEntry) {
	lines := strings.Split(e.info.Source, "\n")
	for ln, text := range lines {
		for _, span := range keywordToken.FindAllStringIndex(text, -1) {
			token := strings.ToLower(text[span[0]:span[1]])
			r.keywords[token] = append(r.keywords[token], keywordOccurrence{
				scriptID: e.info.ScriptID,
				url:      e.info.URL,
				line:     ln,
				column:   span[0],
				lineText: text,
				context:  contextBlock(lines, ln, keywordContextLines),
			})
		}
	}
}

func contextBlock(lines []string, ln, radius int) string {
	start := ln - radius
	if start < 0 {
		start = 0
	}
	end := ln + radius
	if end > len(lines)-1 {
		end = len(lines) - 1
	}
	return strings.Join(lines[start:end+1], "\n")
}

// SearchOptions tunes a source search. Zero values take the configured
// defaults.
type SearchOptions struct {
	IsRegex       bool `json:"is_regex,omitempty"`
	CaseSensitive bool `json:"case_sensitive,omitempty"`
	ContextLines  int  `json:"context_lines,omitempty"`
	MaxMatches    int  `json:"max_matches,omitempty"`
}

// SearchMatch is one hit, at most one per source line.
type SearchMatch struct {
	ScriptID string `json:"script_id"`
	URL      string `json:"url,omitempty"`
	Line     int    `json:"line_number"`
	Column   int    `json:"column_number"`
	LineText string `json:"line_text"`
	Context  string `json:"context"`
}

// SearchResult reports hits plus how much of the corpus was covered.
type SearchResult struct {
	Query          string        `json:"query"`
	Strategy       string        `json:"strategy"`
	Matches        []SearchMatch `json:"matches"`
	Truncated      bool          `json:"truncated"`
	ScriptsScanned int           `json:"scripts_scanned"`
	ScriptsFailed  int           `json:"scripts_failed,omitempty"`
}

// SearchInScripts scans every registered script line by line, loading
// sources as needed. The scan stops as soon as the match cap is reached,
// so later scripts may never be read.
func (r *ScriptRegistry) SearchInScripts(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", ErrInvalidInput)
	}
	maxMatches, contextLines := r.searchDefaults(opts)

	pattern := query
	if !opts.IsRegex {
		pattern = regexp.QuoteMeta(query)
	}
	if !opts.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: bad search pattern %q: %v", ErrInvalidInput, query, err)
	}

	r.mu.Lock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	r.mu.Unlock()

	res := &SearchResult{Query: query, Strategy: "scan", Matches: make([]SearchMatch, 0, maxMatches)}
scan:
	for _, id := range ids {
		info, err := r.ensureSourced(ctx, id)
		if err != nil {
			res.ScriptsFailed++
			r.log.Warn("debugger: search skipping script", "script", id, "error", err)
			continue
		}
		res.ScriptsScanned++

		lines := strings.Split(info.Source, "\n")
		for ln, text := range lines {
			span := re.FindStringIndex(text)
			if span == nil {
				continue
			}
			res.Matches = append(res.Matches, SearchMatch{
				ScriptID: info.ScriptID,
				URL:      info.URL,
				Line:     ln,
				Column:   span[0],
				LineText: text,
				Context:  contextBlock(lines, ln, contextLines),
			})
			if len(res.Matches) >= maxMatches {
				res.Truncated = true
				break scan
			}
		}
	}
	return res, nil
}

// SearchInScriptsEnhanced answers non-regex queries from the keyword
// index: any indexed token containing the query is a hit. Regex queries
// fall back to the linear scan. Index entries keep their build-time
// context, so ContextLines has no effect on this path.
func (r *ScriptRegistry) SearchInScriptsEnhanced(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", ErrInvalidInput)
	}
	if opts.IsRegex {
		return r.SearchInScripts(ctx, query, opts)
	}
	maxMatches, _ := r.searchDefaults(opts)

	r.mu.Lock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	r.mu.Unlock()

	res := &SearchResult{Query: query, Strategy: "index", Matches: make([]SearchMatch, 0, maxMatches)}
	for _, id := range ids {
		if _, err := r.ensureSourced(ctx, id); err != nil {
			res.ScriptsFailed++
			r.log.Warn("debugger: search skipping script", "script", id, "error", err)
			continue
		}
		res.ScriptsScanned++
	}

	needle := strings.ToLower(query)
	r.mu.Lock()
	defer r.mu.Unlock()

	var tokens []string
	for token := range r.keywords {
		if strings.Contains(token, needle) {
			tokens = append(tokens, token)
		}
	}
	sort.Strings(tokens)

	seen := make(map[string]bool)
	for _, token := range tokens {
		for _, occ := range r.keywords[token] {
			if opts.CaseSensitive && !strings.Contains(occ.lineText, query) {
				continue
			}
			lineKey := fmt.Sprintf("%s:%d", occ.scriptID, occ.line)
			if seen[lineKey] {
				continue
			}
			seen[lineKey] = true
			res.Matches = append(res.Matches, SearchMatch{
				ScriptID: occ.scriptID,
				URL:      occ.url,
				Line:     occ.line,
				Column:   occ.column,
				LineText: occ.lineText,
				Context:  occ.context,
			})
			if len(res.Matches) >= maxMatches {
				res.Truncated = true
				return res, nil
			}
		}
	}
	return res, nil
}

func (r *ScriptRegistry) searchDefaults(opts SearchOptions) (maxMatches, contextLines int) {
	maxMatches = opts.MaxMatches
	if maxMatches <= 0 {
		maxMatches = r.cfg.SearchMaxMatches
	}
	contextLines = opts.ContextLines
	if contextLines <= 0 {
		contextLines = r.cfg.SearchContextLines
	}
	return maxMatches, contextLines
}
