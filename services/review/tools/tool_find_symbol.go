// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

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
// find_symbol Tool
// =============================================================================

var findSymbolTracer = otel.Tracer("tools.find_symbol")

// FindSymbolParams contains the validated input parameters.
type FindSymbolParams struct {
	// NamePath is the hierarchical symbol path, "/"- or "."-delimited.
	NamePath string `json:"name_path"`

	// RelativePath scopes the search to a file or directory. "." searches
	// the whole workspace.
	RelativePath string `json:"relative_path"`

	// IncludeBody adds numbered source lines for each match.
	IncludeBody bool `json:"include_body"`

	// IncludeChildren adds an overview of each match's direct children.
	IncludeChildren bool `json:"include_children"`

	// IncludeKinds / ExcludeKinds filter matches by symbol kind.
	IncludeKinds []string `json:"include_kinds"`
	ExcludeKinds []string `json:"exclude_kinds"`
}

// findSymbolTool resolves hierarchical name paths to concrete symbols.
//
// Description:
//
//	Two strategies depending on scope. Workspace-wide searches query flat
//	candidates by leaf name and match the remaining segments against each
//	candidate's container hierarchy. Scoped searches walk the hierarchical
//	symbol tree of each file under the scope, with a cheap substring
//	pre-filter so files that cannot contain the leaf are never parsed.
//	Every match is returned with its own resolved name path; ambiguity is
//	surfaced, never deduplicated away.
//
// Thread Safety: Safe for concurrent use. All operations are read-only.
type findSymbolTool struct {
	walker *discovery.Walker
	cfg    ToolConfig
	logger *slog.Logger
}

// NewFindSymbolTool creates the find_symbol tool.
func NewFindSymbolTool(w *discovery.Walker, cfg ToolConfig) Tool {
	return &findSymbolTool{walker: w, cfg: cfg.withDefaults(), logger: slog.Default()}
}

func (t *findSymbolTool) Name() string { return "find_symbol" }

func (t *findSymbolTool) Description() string {
	return "Find symbol definitions by hierarchical name path (e.g. 'MyClass/method' or 'MyClass.method'). " +
		"Searches the whole workspace when relative_path is '.', otherwise only the given file or directory. " +
		"Returns one block per match with its resolved name path; set include_body to see the source."
}

func (t *findSymbolTool) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"name_path"},
		Properties: map[string]*jsonschema.Schema{
			"name_path": {
				Type:        "string",
				Description: "Symbol path, '/'- or '.'-delimited. A leading separator is ignored.",
			},
			"relative_path": {
				Type:        "string",
				Description: "File or directory to search in, relative to the repository root. Default '.' (whole workspace).",
			},
			"include_body": {
				Type:        "boolean",
				Description: "Include the full source body of each match, with line numbers.",
			},
			"include_children": {
				Type:        "boolean",
				Description: "Include a one-line overview of each match's direct children.",
			},
			"include_kinds": {
				Type:        "array",
				Items:       &jsonschema.Schema{Type: "string", Enum: kindEnum()},
				Description: "Only return symbols of these kinds.",
			},
			"exclude_kinds": {
				Type:        "array",
				Items:       &jsonschema.Schema{Type: "string", Enum: kindEnum()},
				Description: "Never return symbols of these kinds. Wins over include_kinds.",
			},
		},
	}
}

// Execute runs the find_symbol tool.
func (t *findSymbolTool) Execute(ctx context.Context, args json.RawMessage) *Result {
	start := time.Now()

	var p FindSymbolParams
	if err := json.Unmarshal(args, &p); err != nil {
		return Errorf("find_symbol: invalid arguments: %v", err)
	}
	if p.RelativePath == "" {
		p.RelativePath = "."
	}

	segments, err := symbols.ParseNamePath(p.NamePath)
	if err != nil {
		return Errorf("find_symbol: %v", err)
	}
	keep, err := kindFilter(p.IncludeKinds, p.ExcludeKinds)
	if err != nil {
		return Errorf("find_symbol: %v", err)
	}
	rel, err := pathutil.Sanitize(p.RelativePath)
	if err != nil {
		return Errorf("find_symbol: invalid relative_path %q: %v", p.RelativePath, err)
	}

	ctx, span := findSymbolTracer.Start(ctx, "findSymbolTool.Execute",
		trace.WithAttributes(
			attribute.String("tool", "find_symbol"),
			attribute.String("name_path", p.NamePath),
			attribute.String("relative_path", rel),
			attribute.Bool("include_body", p.IncludeBody),
		),
	)
	defer span.End()

	var (
		matches   []symbols.Match
		truncated bool
	)
	err = timeout.Do(ctx, t.cfg.Timeout, "find_symbol "+p.NamePath, t.logger, func(ctx context.Context) error {
		var searchErr error
		matches, truncated, searchErr = t.search(ctx, rel, segments)
		return searchErr
	})
	if err != nil {
		if timeout.IsTimeout(err) {
			return Errorf("find_symbol timed out searching for %q%s", p.NamePath, timeoutGuidance)
		}
		if timeout.IsCanceled(err) || ctx.Err() != nil {
			return Errorf("find_symbol canceled")
		}
		return Errorf("find_symbol: %v", err)
	}

	filtered := matches[:0]
	for _, m := range matches {
		if keep(m.Symbol.Kind) {
			filtered = append(filtered, m)
		}
	}
	matches = filtered

	if len(matches) == 0 {
		return Errorf("symbol not found: %s", p.NamePath)
	}

	var sb strings.Builder
	for i, m := range matches {
		if i > 0 {
			sb.WriteString("\n")
		}
		t.renderMatch(ctx, &sb, m, p)
	}
	if truncated {
		sb.WriteString("\n" + incompleteNote("candidate and file limits") + "\n")
	}

	span.SetAttributes(attribute.Int("matches", len(matches)))
	t.logger.Debug("find_symbol done",
		slog.String("name_path", p.NamePath),
		slog.Int("matches", len(matches)),
		slog.Duration("duration", time.Since(start)),
	)
	return Success(sb.String())
}

// search dispatches to the workspace-wide or scoped strategy.
func (t *findSymbolTool) search(ctx context.Context, rel string, segments []string) ([]symbols.Match, bool, error) {
	if rel == "." {
		return t.searchWorkspace(ctx, segments)
	}
	isDir, err := t.walker.IsDir(rel)
	if err != nil {
		return nil, false, err
	}
	if isDir {
		return t.searchDirectory(ctx, rel, segments)
	}
	matches, err := t.searchFile(ctx, rel, segments)
	return matches, false, err
}

func (t *findSymbolTool) searchWorkspace(ctx context.Context, segments []string) ([]symbols.Match, bool, error) {
	leaf := segments[len(segments)-1]
	candidates, truncated, err := t.walker.WorkspaceSymbols(ctx, leaf, discovery.SymbolOptions{
		MaxFiles:       t.cfg.CandidateCap,
		PerFileTimeout: t.cfg.PerFileTimeout,
		OverallTimeout: t.cfg.Timeout,
	})
	if err != nil {
		return nil, false, err
	}

	var matches []symbols.Match
	for _, c := range candidates {
		if !symbols.MatchesFlatCandidate(c.Symbol, segments) {
			continue
		}
		matches = append(matches, symbols.Match{
			Symbol:   c.Symbol,
			NamePath: flatNamePath(c.Symbol),
			FilePath: c.FilePath,
		})
	}
	return matches, truncated, nil
}

func (t *findSymbolTool) searchDirectory(ctx context.Context, rel string, segments []string) ([]symbols.Match, bool, error) {
	list, err := t.walker.DiscoverFiles(ctx, discovery.Options{
		SearchPath:    rel,
		RespectIgnore: true,
		MaxResults:    t.cfg.MaxFiles,
		Timeout:       t.cfg.Timeout,
	})
	if err != nil {
		return nil, false, err
	}

	var matches []symbols.Match
	truncated := list.Truncated
	for _, path := range list.Files {
		if _, ok := symbols.ParserForPath(path); !ok {
			continue
		}
		fileMatches, err := t.searchFile(ctx, path, segments)
		if err != nil {
			if timeout.IsCanceled(err) || ctx.Err() != nil {
				return nil, false, err
			}
			// A skipped file means the answer may be incomplete.
			truncated = true
			continue
		}
		matches = append(matches, fileMatches...)
	}
	return matches, truncated, nil
}

func (t *findSymbolTool) searchFile(ctx context.Context, rel string, segments []string) ([]symbols.Match, error) {
	// Substring pre-filter: a file that never mentions the leaf name
	// cannot define it, so skip the parse entirely.
	content, err := t.walker.ReadFileRel(rel)
	if err != nil {
		return nil, err
	}
	leaf := segments[len(segments)-1]
	if !bytes.Contains(content, []byte(leaf)) {
		return nil, nil
	}

	tree, err := t.walker.FileSymbols(ctx, rel, t.cfg.PerFileTimeout)
	if err != nil {
		return nil, err
	}
	return symbols.FindInTree(tree, segments, rel), nil
}

// renderMatch writes one result block.
func (t *findSymbolTool) renderMatch(ctx context.Context, sb *strings.Builder, m symbols.Match, p FindSymbolParams) {
	sb.WriteString(matchHeader(m.FilePath, m.Symbol.Name, m.Symbol.Kind) + "\n")
	sb.WriteString("Name Path: " + m.NamePath + "\n")

	if p.IncludeChildren && len(m.Symbol.Children) > 0 {
		sb.WriteString("Children:\n")
		for _, child := range m.Symbol.Children {
			sb.WriteString(overviewLine(1, child) + "\n")
		}
	}

	if !p.IncludeBody {
		return
	}
	body, ok := t.bodyRange(ctx, m)
	if !ok {
		sb.WriteString("[Note: body unavailable for this symbol]\n")
		return
	}
	content, err := t.walker.ReadFileRel(m.FilePath)
	if err != nil {
		sb.WriteString("[Note: body unavailable for this symbol]\n")
		return
	}
	sb.WriteString("Body:\n")
	numberedLines(sb, splitLines(content), body.Start.Line, body.End.Line)
}

// bodyRange resolves a match's full body range, expanding flat-shaped
// matches through the file's hierarchical tree.
func (t *findSymbolTool) bodyRange(ctx context.Context, m symbols.Match) (symbols.Range, bool) {
	if r, ok := m.Symbol.BodyRange(); ok {
		return r, true
	}
	tree, err := t.walker.FileSymbols(ctx, m.FilePath, t.cfg.PerFileTimeout)
	if err != nil || len(tree) == 0 {
		return symbols.Range{}, false
	}
	return symbols.EnclosingBodyRange(tree, m.Symbol.SelectionRange.Start)
}

// flatNamePath joins a flat candidate's container hierarchy with its name.
func flatNamePath(s *symbols.Symbol) string {
	var parts []string
	for _, seg := range strings.Split(s.ContainerName, ".") {
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return symbols.JoinNamePath(append(parts, s.Name))
}
