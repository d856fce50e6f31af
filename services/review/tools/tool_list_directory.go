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
	"log/slog"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/loupedev/loupe/services/review/discovery"
	"github.com/loupedev/loupe/services/review/pathutil"
	"github.com/loupedev/loupe/services/review/timeout"
)

// =============================================================================
// list_directory Tool
// =============================================================================

var listDirectoryTracer = otel.Tracer("tools.list_directory")

// ListDirectoryParams contains the validated input parameters.
type ListDirectoryParams struct {
	// RelativePath is the directory to list.
	RelativePath string `json:"relative_path"`

	// Recursive lists the whole subtree instead of immediate entries.
	Recursive bool `json:"recursive"`
}

// listDirectoryTool lists directory contents, ignore-filtered, with
// directories marked by a trailing slash.
//
// Thread Safety: Safe for concurrent use. All operations are read-only.
type listDirectoryTool struct {
	walker *discovery.Walker
	cfg    ToolConfig
	logger *slog.Logger
}

// NewListDirectoryTool creates the list_directory tool.
func NewListDirectoryTool(w *discovery.Walker, cfg ToolConfig) Tool {
	return &listDirectoryTool{walker: w, cfg: cfg.withDefaults(), logger: slog.Default()}
}

func (t *listDirectoryTool) Name() string { return "list_directory" }

func (t *listDirectoryTool) Description() string {
	return "List the contents of a directory. Directories carry a trailing '/'. " +
		"Ignored files (per the repository's .gitignore) are omitted."
}

func (t *listDirectoryTool) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"relative_path", "recursive"},
		Properties: map[string]*jsonschema.Schema{
			"relative_path": {
				Type:        "string",
				Description: "Directory to list, relative to the repository root. Use '.' for the root.",
			},
			"recursive": {
				Type:        "boolean",
				Description: "List the whole subtree instead of only the immediate entries.",
			},
		},
	}
}

// Execute runs the list_directory tool.
func (t *listDirectoryTool) Execute(ctx context.Context, args json.RawMessage) *Result {
	var p ListDirectoryParams
	if err := json.Unmarshal(args, &p); err != nil {
		return Errorf("list_directory: invalid arguments: %v", err)
	}
	if strings.TrimSpace(p.RelativePath) == "" {
		return Errorf("list_directory: relative_path is required")
	}
	rel, err := pathutil.Sanitize(p.RelativePath)
	if err != nil {
		return Errorf("list_directory: invalid relative_path %q: %v", p.RelativePath, err)
	}

	ctx, span := listDirectoryTracer.Start(ctx, "listDirectoryTool.Execute",
		trace.WithAttributes(
			attribute.String("tool", "list_directory"),
			attribute.String("relative_path", rel),
			attribute.Bool("recursive", p.Recursive),
		),
	)
	defer span.End()

	var (
		entries   []string
		truncated bool
	)
	err = timeout.Do(ctx, t.cfg.Timeout, "list_directory "+rel, t.logger, func(ctx context.Context) error {
		var opErr error
		entries, truncated, opErr = t.list(ctx, rel, p.Recursive)
		return opErr
	})
	if err != nil {
		if timeout.IsTimeout(err) {
			return Errorf("list_directory timed out on %q%s", p.RelativePath, timeoutGuidance)
		}
		if timeout.IsCanceled(err) || ctx.Err() != nil {
			return Errorf("list_directory canceled")
		}
		return Errorf("list_directory: %v", err)
	}

	var sb strings.Builder
	if len(entries) == 0 {
		sb.WriteString("(empty)\n")
	}
	for _, e := range entries {
		sb.WriteString(e + "\n")
	}
	if truncated {
		sb.WriteString(incompleteNote("file limit") + "\n")
	}

	span.SetAttributes(attribute.Int("entries", len(entries)))
	return Success(sb.String())
}

func (t *listDirectoryTool) list(ctx context.Context, rel string, recursive bool) ([]string, bool, error) {
	if !recursive {
		entries, err := t.walker.ListDirectory(ctx, rel, true)
		return entries, false, err
	}

	list, err := t.walker.DiscoverFiles(ctx, discovery.Options{
		SearchPath:    rel,
		RespectIgnore: true,
		MaxResults:    t.cfg.MaxFiles,
		Timeout:       t.cfg.Timeout,
	})
	if err != nil {
		return nil, false, err
	}

	// Derive the directory set from the file paths so directories show up
	// with their trailing slash even in recursive mode.
	dirSet := make(map[string]struct{})
	for _, f := range list.Files {
		for d := parentDir(f); d != "" && d != rel; d = parentDir(d) {
			dirSet[d+"/"] = struct{}{}
		}
	}
	entries := make([]string, 0, len(dirSet)+len(list.Files))
	for d := range dirSet {
		entries = append(entries, d)
	}
	entries = append(entries, list.Files...)
	sort.Strings(entries)
	return entries, list.Truncated, nil
}

// parentDir returns the parent of a slash-separated relative path, or "".
func parentDir(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return ""
	}
	return p[:idx]
}
