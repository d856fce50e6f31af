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
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/loupedev/loupe/services/review/discovery"
	"github.com/loupedev/loupe/services/review/pathutil"
)

// =============================================================================
// read_file Tool
// =============================================================================

var readFileTracer = otel.Tracer("tools.read_file")

// DefaultReadFileMaxBytes caps how much of a file one call returns.
const DefaultReadFileMaxBytes = 32 * 1024

// ReadFileParams contains the validated input parameters.
type ReadFileParams struct {
	// Path is the file to read.
	Path string `json:"path"`

	// StartLine / EndLine bound the read, 1-based inclusive. Zero values
	// mean "from the start" / "to the end".
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`

	// MaxBytes caps the returned payload (default DefaultReadFileMaxBytes).
	MaxBytes int `json:"max_bytes"`
}

// readFileTool returns numbered source lines from one file.
//
// Thread Safety: Safe for concurrent use. All operations are read-only.
type readFileTool struct {
	walker *discovery.Walker
	logger *slog.Logger
}

// NewReadFileTool creates the read_file tool.
func NewReadFileTool(w *discovery.Walker) Tool {
	return &readFileTool{walker: w, logger: slog.Default()}
}

func (t *readFileTool) Name() string { return "read_file" }

func (t *readFileTool) Description() string {
	return "Read a file's contents with line numbers. Use start_line/end_line to read a slice; " +
		"large reads are cut at max_bytes with a note."
}

func (t *readFileTool) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"path"},
		Properties: map[string]*jsonschema.Schema{
			"path": {
				Type:        "string",
				Description: "File to read, relative to the repository root.",
			},
			"start_line": {
				Type:        "integer",
				Description: "First line to return, 1-based. Default: start of file.",
			},
			"end_line": {
				Type:        "integer",
				Description: "Last line to return, 1-based inclusive. Default: end of file.",
			},
			"max_bytes": {
				Type:        "integer",
				Description: "Maximum payload size in bytes. Default 32768.",
			},
		},
	}
}

// Execute runs the read_file tool.
func (t *readFileTool) Execute(ctx context.Context, args json.RawMessage) *Result {
	var p ReadFileParams
	if err := json.Unmarshal(args, &p); err != nil {
		return Errorf("read_file: invalid arguments: %v", err)
	}
	rel, err := pathutil.Sanitize(p.Path)
	if err != nil {
		return Errorf("read_file: invalid path %q: %v", p.Path, err)
	}
	if p.MaxBytes <= 0 {
		p.MaxBytes = DefaultReadFileMaxBytes
	}

	_, span := readFileTracer.Start(ctx, "readFileTool.Execute",
		trace.WithAttributes(
			attribute.String("tool", "read_file"),
			attribute.String("path", rel),
			attribute.Int("start_line", p.StartLine),
			attribute.Int("end_line", p.EndLine),
		),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return Errorf("read_file canceled")
	}

	content, err := t.walker.ReadFileRel(rel)
	if err != nil {
		return Errorf("read_file: %v", err)
	}
	if !utf8.Valid(content) {
		return Errorf("read_file: %s is not valid UTF-8 text", p.Path)
	}

	lines := splitLines(content)
	startLine := p.StartLine
	if startLine < 1 {
		startLine = 1
	}
	endLine := p.EndLine
	if endLine < 1 || endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine && len(lines) > 0 {
		return Errorf("read_file: start_line %d is past end_line %d in %s (%d lines)", p.StartLine, p.EndLine, p.Path, len(lines))
	}

	var sb strings.Builder
	cut := false
	lastLine := 0
	for i := startLine; i <= endLine; i++ {
		line := fmt.Sprintf("%d: %s\n", i, lines[i-1])
		if sb.Len()+len(line) > p.MaxBytes {
			cut = true
			break
		}
		sb.WriteString(line)
		lastLine = i
	}
	if cut {
		fmt.Fprintf(&sb, "[Note: output cut at %d bytes after line %d; continue with start_line=%d]\n", p.MaxBytes, lastLine, lastLine+1)
	}

	span.SetAttributes(attribute.Int("result_bytes", sb.Len()))
	return Success(sb.String())
}
