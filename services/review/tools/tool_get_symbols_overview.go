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
// get_symbols_overview Tool
// =============================================================================

var overviewTracer = otel.Tracer("tools.get_symbols_overview")

// OverviewParams contains the validated input parameters.
type OverviewParams struct {
	// Path is the file or directory to summarize.
	Path string `json:"path"`

	// MaxDepth limits hierarchy depth: 0 = top level only, -1 = unlimited.
	MaxDepth int `json:"max_depth"`

	// IncludeBody adds numbered source lines under each rendered symbol.
	IncludeBody bool `json:"include_body"`

	// IncludeKinds / ExcludeKinds filter by symbol kind.
	IncludeKinds []string `json:"include_kinds"`
	ExcludeKinds []string `json:"exclude_kinds"`

	// MaxSymbols caps total rendered symbols (default 100).
	MaxSymbols int `json:"max_symbols"`

	// ShowHierarchy indents children under their parents (default true).
	ShowHierarchy *bool `json:"show_hierarchy"`
}

// overviewTool summarizes the symbol structure of a file or directory as
// "line: name (kind)" listings grouped per file.
//
// Thread Safety: Safe for concurrent use. All operations are read-only.
type overviewTool struct {
	walker *discovery.Walker
	cfg    ToolConfig
	logger *slog.Logger
}

// NewOverviewTool creates the get_symbols_overview tool.
func NewOverviewTool(w *discovery.Walker, cfg ToolConfig) Tool {
	return &overviewTool{walker: w, cfg: cfg.withDefaults(), logger: slog.Default()}
}

func (t *overviewTool) Name() string { return "get_symbols_overview" }

func (t *overviewTool) Description() string {
	return "Get a structural overview of the symbols in a file or directory: one 'line: name (kind)' " +
		"entry per symbol, children indented under parents. Use for orientation before reading bodies."
}

func (t *overviewTool) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"path"},
		Properties: map[string]*jsonschema.Schema{
			"path": {
				Type:        "string",
				Description: "File or directory to summarize, relative to the repository root.",
			},
			"max_depth": {
				Type:        "integer",
				Description: "Hierarchy depth to show: 0 = top-level symbols only (default), -1 = unlimited.",
			},
			"include_body": {
				Type:        "boolean",
				Description: "Include numbered source lines under each symbol. Expensive; prefer find_symbol for single bodies.",
			},
			"include_kinds": {
				Type:        "array",
				Items:       &jsonschema.Schema{Type: "string", Enum: kindEnum()},
				Description: "Only show symbols of these kinds.",
			},
			"exclude_kinds": {
				Type:        "array",
				Items:       &jsonschema.Schema{Type: "string", Enum: kindEnum()},
				Description: "Hide symbols of these kinds. Wins over include_kinds.",
			},
			"max_symbols": {
				Type:        "integer",
				Description: "Maximum symbols to render across all files. Default 100.",
			},
			"show_hierarchy": {
				Type:        "boolean",
				Description: "Indent children under parents. Default true.",
			},
		},
	}
}

// Execute runs the get_symbols_overview tool.
func (t *overviewTool) Execute(ctx context.Context, args json.RawMessage) *Result {
	start := time.Now()

	var p OverviewParams
	if err := json.Unmarshal(args, &p); err != nil {
		return Errorf("get_symbols_overview: invalid arguments: %v", err)
	}
	if p.MaxSymbols <= 0 {
		p.MaxSymbols = 100
	}
	if p.MaxDepth < -1 {
		return Errorf("get_symbols_overview: max_depth must be >= -1, got %d", p.MaxDepth)
	}
	showHierarchy := p.ShowHierarchy == nil || *p.ShowHierarchy

	keep, err := kindFilter(p.IncludeKinds, p.ExcludeKinds)
	if err != nil {
		return Errorf("get_symbols_overview: %v", err)
	}
	rel, err := pathutil.Sanitize(p.Path)
	if err != nil {
		return Errorf("get_symbols_overview: invalid path %q: %v", p.Path, err)
	}

	ctx, span := overviewTracer.Start(ctx, "overviewTool.Execute",
		trace.WithAttributes(
			attribute.String("tool", "get_symbols_overview"),
			attribute.String("path", rel),
			attribute.Int("max_depth", p.MaxDepth),
		),
	)
	defer span.End()

	var result *discovery.DirectorySymbolsResult
	err = timeout.Do(ctx, t.cfg.Timeout, "get_symbols_overview "+rel, t.logger, func(ctx context.Context) error {
		var opErr error
		result, opErr = t.collect(ctx, rel)
		return opErr
	})
	if err != nil {
		if timeout.IsTimeout(err) {
			return Errorf("get_symbols_overview timed out on %q%s", p.Path, timeoutGuidance)
		}
		if timeout.IsCanceled(err) || ctx.Err() != nil {
			return Errorf("get_symbols_overview canceled")
		}
		return Errorf("get_symbols_overview: %v", err)
	}
	if len(result.Results) == 0 {
		return Errorf("no symbols found in %s", p.Path)
	}

	var sb strings.Builder
	rendered := 0
	capped := false
	for _, file := range result.Results {
		if capped {
			break
		}
		fmt.Fprintf(&sb, "%s:\n", file.Path)
		r := renderer{
			sb:            &sb,
			keep:          keep,
			maxDepth:      p.MaxDepth,
			showHierarchy: showHierarchy,
			includeBody:   p.IncludeBody,
			budget:        p.MaxSymbols - rendered,
			tool:          t,
			filePath:      file.Path,
		}
		r.walk(file.Symbols, 0)
		rendered += r.count
		if r.truncated {
			capped = true
		}
		sb.WriteString("\n")
	}

	if capped {
		sb.WriteString(limitNote(p.MaxSymbols) + "\n")
	}
	if result.TimedOutFiles > 0 {
		sb.WriteString(incompleteNote(fmt.Sprintf("%d file(s) timing out", result.TimedOutFiles)) + "\n")
	} else if result.Truncated {
		sb.WriteString(incompleteNote("file limit") + "\n")
	}

	span.SetAttributes(attribute.Int("symbols", rendered))
	t.logger.Debug("get_symbols_overview done",
		slog.String("path", rel),
		slog.Int("symbols", rendered),
		slog.Duration("duration", time.Since(start)),
	)
	return Success(sb.String())
}

// collect gathers symbol trees for a file or a directory scope.
func (t *overviewTool) collect(ctx context.Context, rel string) (*discovery.DirectorySymbolsResult, error) {
	isDir, err := t.walker.IsDir(rel)
	if err != nil {
		return nil, err
	}
	if isDir {
		return t.walker.DirectorySymbols(ctx, rel, discovery.SymbolOptions{
			PerFileTimeout: t.cfg.PerFileTimeout,
			OverallTimeout: t.cfg.Timeout,
			MaxFiles:       t.cfg.MaxFiles,
		})
	}
	syms, err := t.walker.FileSymbols(ctx, rel, t.cfg.PerFileTimeout)
	if err != nil {
		return nil, err
	}
	out := &discovery.DirectorySymbolsResult{}
	if len(syms) > 0 {
		out.Results = []discovery.FileSymbolResult{{Path: rel, Symbols: syms}}
	}
	return out, nil
}

// renderer walks one file's tree emitting overview lines under a shared
// symbol budget.
type renderer struct {
	sb            *strings.Builder
	keep          func(symbols.Kind) bool
	maxDepth      int
	showHierarchy bool
	includeBody   bool
	budget        int
	tool          *overviewTool
	filePath      string

	count     int
	truncated bool
}

func (r *renderer) walk(syms []*symbols.Symbol, depth int) {
	for _, s := range syms {
		if r.truncated {
			return
		}
		if r.keep(s.Kind) {
			if r.count >= r.budget {
				r.truncated = true
				return
			}
			indent := 0
			if r.showHierarchy {
				indent = depth
			}
			r.sb.WriteString(overviewLine(indent, s) + "\n")
			r.count++
			if r.includeBody {
				r.renderBody(s, indent)
			}
		}
		if r.maxDepth == -1 || depth < r.maxDepth {
			r.walk(s.Children, depth+1)
		}
	}
}

func (r *renderer) renderBody(s *symbols.Symbol, indent int) {
	body, ok := s.BodyRange()
	if !ok {
		return
	}
	content, err := r.tool.walker.ReadFileRel(r.filePath)
	if err != nil {
		return
	}
	lines := splitLines(content)
	pad := strings.Repeat("  ", indent+1)
	for i := body.Start.Line; i <= body.End.Line && i <= len(lines); i++ {
		fmt.Fprintf(r.sb, "%s%d: %s\n", pad, i, lines[i-1])
	}
}
