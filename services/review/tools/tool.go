// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tools defines the structured tools the review model can call,
// plus the registry and executor that dispatch them.
//
// Tools return text payloads the model parses, so the output format
// conventions in this package (header blocks, numbered lines, bracketed
// truncation notes) are part of the wire contract, not cosmetics.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// Default execution budgets shared by the concrete tools.
const (
	DefaultToolTimeout    = 60 * time.Second
	DefaultPerFileTimeout = 5 * time.Second
)

// Tool is one callable capability advertised to the model.
//
// Description:
//
//	Implementations are stateless per call and safe for concurrent use.
//	Execute never panics and never returns a Go error: every failure the
//	conversation can survive is encoded as an error Result so the model
//	can read it and adapt. Cancellation is the exception — a tool that
//	observes a canceled context returns promptly and the executor
//	propagates the cancellation instead of recording the result.
type Tool interface {
	// Name is the stable identifier the model calls the tool by.
	Name() string

	// Description is the model-facing usage text.
	Description() string

	// InputSchema describes and constrains the tool's arguments.
	InputSchema() *jsonschema.Schema

	// Execute runs the tool against already-schema-validated arguments.
	Execute(ctx context.Context, args json.RawMessage) *Result
}

// Result is the outcome of one tool execution: a success payload or a
// structured error message, never both.
type Result struct {
	// Content is the text shown to the model.
	Content string

	// IsError marks Content as an error message rather than a payload.
	IsError bool
}

// Success wraps a payload in a successful Result.
func Success(content string) *Result {
	return &Result{Content: content}
}

// Errorf builds a structured error Result.
func Errorf(format string, args ...any) *Result {
	return &Result{Content: fmt.Sprintf(format, args...), IsError: true}
}

// timeoutGuidance is appended to timeout errors so the model retries with
// a narrower scope instead of repeating the same call.
const timeoutGuidance = "; try a more specific path or a narrower scope"

// ToolConfig carries the budgets shared by the concrete tools. The zero
// value is usable; unset fields fall back to package defaults.
type ToolConfig struct {
	// Timeout bounds one tool execution end to end.
	Timeout time.Duration

	// PerFileTimeout bounds a single file's symbol extraction.
	PerFileTimeout time.Duration

	// MaxFiles caps files visited by directory-scoped operations.
	MaxFiles int

	// CandidateCap caps workspace-wide symbol candidates processed.
	CandidateCap int
}

func (c ToolConfig) withDefaults() ToolConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultToolTimeout
	}
	if c.PerFileTimeout <= 0 {
		c.PerFileTimeout = DefaultPerFileTimeout
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = 200
	}
	if c.CandidateCap <= 0 {
		c.CandidateCap = 50
	}
	return c
}
