// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/loupedev/loupe/services/review/discovery"
	"github.com/loupedev/loupe/services/review/pathutil"
	"github.com/loupedev/loupe/services/review/symbols"
	"github.com/loupedev/loupe/services/review/timeout"
)

// =============================================================================
// search_for_pattern Tool
// =============================================================================

var searchPatternTracer = otel.Tracer("tools.search_for_pattern")

// DefaultMaxSearchMatches caps matches reported by one search.
const DefaultMaxSearchMatches = 200

// maxContextLines bounds lines_before/lines_after.
const maxContextLines = 20

// SearchPatternParams contains the validated input parameters.
type SearchPatternParams struct {
	// Pattern is the regular expression to search for.
	Pattern string `json:"pattern"`

	// LinesBefore / LinesAfter add context lines around each match (0–20).
	LinesBefore int `json:"lines_before"`
	LinesAfter  int `json:"lines_after"`

	// IncludeFiles / ExcludeFiles are glob filters on file paths.
	IncludeFiles string `json:"include_files"`
	ExcludeFiles string `json:"exclude_files"`

	// SearchPath scopes the search (default ".").
	SearchPath string `json:"search_path"`

	// OnlyCodeFiles restricts the search to supported source languages.
	OnlyCodeFiles bool `json:"only_code_files"`

	// CaseSensitive disables the default case-insensitive matching.
	CaseSensitive bool `json:"case_sensitive"`
}

// searchPatternTool greps the workspace with a compiled regex.
//
// Thread Safety: Safe for concurrent use. All operations are read-only.
type searchPatternTool struct {
	walker *discovery.Walker
	cfg    ToolConfig
	logger *slog.Logger
}

// NewSearchPatternTool creates the search_for_pattern tool.
func NewSearchPatternTool(w *discovery.Walker, cfg ToolConfig) Tool {
	return &searchPatternTool{walker: w, cfg: cfg.withDefaults(), logger: slog.Default()}
}

func (t *searchPatternTool) Name() string { return "search_for_pattern" }

func (t *searchPatternTool) Description() string {
	return "Search file contents with a regular expression. Matching is case-insensitive unless " +
		"case_sensitive is set. Returns 'path:' groups with 'line: text' entries and optional context lines."
}

func (t *searchPatternTool) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"pattern"},
		Properties: map[string]*jsonschema.Schema{
			"pattern": {
				Type:        "string",
				Description: "Regular expression (RE2 syntax) matched per line.",
			},
			"lines_before": {
				Type:        "integer",
				Description: "Context lines before each match (0-20).",
			},
			"lines_after": {
				Type:        "integer",
				Description: "Context lines after each match (0-20).",
			},
			"include_files": {
				Type:        "string",
				Description: "Glob restricting which files are searched, e.g. '**/*.go'.",
			},
			"exclude_files": {
				Type:        "string",
				Description: "Glob excluding files from the search. Wins over include_files.",
			},
			"search_path": {
				Type:        "string",
				Description: "Directory to search under. Default '.'.",
			},
			"only_code_files": {
				Type:        "boolean",
				Description: "Search only files in supported source languages.",
			},
			"case_sensitive": {
				Type:        "boolean",
				Description: "Match case-sensitively. Default false.",
			},
		},
	}
}

// Execute runs the search_for_pattern tool.
func (t *searchPatternTool) Execute(ctx context.Context, args json.RawMessage) *Result {
	start := time.Now()

	var p SearchPatternParams
	if err := json.Unmarshal(args, &p); err != nil {
		return Errorf("search_for_pattern: invalid arguments: %v", err)
	}
	if p.LinesBefore < 0 || p.LinesBefore > maxContextLines || p.LinesAfter < 0 || p.LinesAfter > maxContextLines {
		return Errorf("search_for_pattern: lines_before/lines_after must be between 0 and %d", maxContextLines)
	}
	if p.SearchPath == "" {
		p.SearchPath = "."
	}
	rel, err := pathutil.Sanitize(p.SearchPath)
	if err != nil {
		return Errorf("search_for_pattern: invalid search_path %q: %v", p.SearchPath, err)
	}

	expr := p.Pattern
	if !p.CaseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return Errorf("search_for_pattern: invalid pattern %q: %v", p.Pattern, err)
	}

	ctx, span := searchPatternTracer.Start(ctx, "searchPatternTool.Execute",
		trace.WithAttributes(
			attribute.String("tool", "search_for_pattern"),
			attribute.String("pattern", p.Pattern),
			attribute.String("search_path", rel),
		),
	)
	defer span.End()

	var (
		sb        strings.Builder
		matches   int
		truncated bool
	)
	err = timeout.Do(ctx, t.cfg.Timeout, "search_for_pattern", t.logger, func(ctx context.Context) error {
		var opErr error
		matches, truncated, opErr = t.scan(ctx, &sb, re, rel, p)
		return opErr
	})
	if err != nil {
		if timeout.IsTimeout(err) {
			return Errorf("search_for_pattern timed out%s", timeoutGuidance)
		}
		if timeout.IsCanceled(err) || ctx.Err() != nil {
			return Errorf("search_for_pattern canceled")
		}
		return Errorf("search_for_pattern: %v", err)
	}

	if matches == 0 {
		msg := fmt.Sprintf("No matches for pattern %q\n", p.Pattern)
		// A truncated scan means absence of matches is not conclusive.
		if truncated {
			msg += incompleteNote("the file scan stopping early") + "\n"
		}
		return Success(msg)
	}
	if truncated {
		fmt.Fprintf(&sb, "[Note: Results may be incomplete; stopped after %d matches]\n", matches)
	}

	span.SetAttributes(attribute.Int("matches", matches))
	t.logger.Debug("search_for_pattern done",
		slog.String("pattern", p.Pattern),
		slog.Int("matches", matches),
		slog.Duration("duration", time.Since(start)),
	)
	return Success(sb.String())
}

func (t *searchPatternTool) scan(ctx context.Context, sb *strings.Builder, re *regexp.Regexp, rel string, p SearchPatternParams) (int, bool, error) {
	list, err := t.walker.DiscoverFiles(ctx, discovery.Options{
		SearchPath:    rel,
		IncludeGlob:   p.IncludeFiles,
		ExcludeGlob:   p.ExcludeFiles,
		RespectIgnore: true,
		MaxResults:    t.cfg.MaxFiles,
		Timeout:       t.cfg.Timeout,
	})
	if err != nil {
		return 0, false, err
	}

	matches := 0
	truncated := list.Truncated
	for _, path := range list.Files {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, false, ctxErr
		}
		if p.OnlyCodeFiles {
			ext := strings.ToLower(filepath.Ext(path))
			if _, ok := symbols.SupportedExtensions()[ext]; !ok {
				continue
			}
		}
		content, readErr := t.walker.ReadFileRel(path)
		if readErr != nil || !utf8.Valid(content) {
			continue
		}
		lines := splitLines(content)

		wrote := false
		for i, line := range lines {
			if !re.MatchString(line) {
				continue
			}
			if matches >= DefaultMaxSearchMatches {
				return matches, true, nil
			}
			if !wrote {
				fmt.Fprintf(sb, "%s:\n", path)
				wrote = true
			}
			t.writeMatch(sb, lines, i, p)
			matches++
		}
		if wrote {
			sb.WriteString("\n")
		}
	}
	return matches, truncated, nil
}

// writeMatch emits one match with its context window. idx is 0-based.
func (t *searchPatternTool) writeMatch(sb *strings.Builder, lines []string, idx int, p SearchPatternParams) {
	from := idx - p.LinesBefore
	if from < 0 {
		from = 0
	}
	to := idx + p.LinesAfter
	if to > len(lines)-1 {
		to = len(lines) - 1
	}
	for i := from; i <= to; i++ {
		marker := " "
		if i == idx {
			marker = ">"
		}
		fmt.Fprintf(sb, " %s %d: %s\n", marker, i+1, lines[i])
	}
}
