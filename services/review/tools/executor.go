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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var executorTracer = otel.Tracer("tools.executor")

// Default session guardrails.
const (
	DefaultMaxToolCalls   = 100
	DefaultMaxResultBytes = 64 * 1024
)

// Limits holds the per-session guardrails the executor enforces. They
// live here, not inside individual tools, so every tool is bounded the
// same way.
type Limits struct {
	// MaxToolCalls caps total calls across the session (0 = default).
	MaxToolCalls int

	// MaxResultBytes caps one result's payload size (0 = default).
	MaxResultBytes int
}

// Call is one tool invocation requested by the model.
type Call struct {
	// ID is the provider-assigned tool-call id, echoed back in results.
	ID string

	// Name is the tool to invoke.
	Name string

	// Args is the raw JSON argument object.
	Args json.RawMessage
}

// CallResult pairs a call with its outcome, in call order.
type CallResult struct {
	ID     string
	Name   string
	Result *Result
}

// Executor dispatches batches of tool calls against a registry.
//
// Description:
//
//	Calls within a batch execute sequentially, which makes result
//	ordering trivially deterministic. Every recoverable failure — unknown
//	tool, schema violation, tool timeout, oversized payload — becomes a
//	structured error Result the model can read. Cancellation is the one
//	exception: it aborts the rest of the batch and propagates as an
//	error, because an intentional stop must never masquerade as a tool
//	failure.
//
// Thread Safety: NOT safe for concurrent use. One executor belongs to
// one session loop.
type Executor struct {
	registry  *Registry
	logger    *slog.Logger
	limits    Limits
	callsUsed int
}

// NewExecutor creates an executor bound to one session.
func NewExecutor(registry *Registry, logger *slog.Logger, limits Limits) *Executor {
	if limits.MaxToolCalls <= 0 {
		limits.MaxToolCalls = DefaultMaxToolCalls
	}
	if limits.MaxResultBytes <= 0 {
		limits.MaxResultBytes = DefaultMaxResultBytes
	}
	return &Executor{registry: registry, logger: logger, limits: limits}
}

// CallsUsed reports how many calls have been executed so far.
func (e *Executor) CallsUsed() int { return e.callsUsed }

// BudgetExhausted reports whether the session's tool-call cap is spent.
func (e *Executor) BudgetExhausted() bool {
	return e.callsUsed >= e.limits.MaxToolCalls
}

// ExecuteBatch runs one model turn's tool calls in order.
//
// Description:
//
//	Each call is validated against its tool's schema before execution and
//	wrapped in its own span. Results come back in call order, one per
//	call — unless cancellation fires, in which case the batch stops where
//	it is and the context's error is returned with the results gathered
//	so far discarded by the caller.
//
// Inputs:
//   - ctx: Session context; cancellation aborts the batch.
//   - calls: The model's tool calls, in the order it issued them.
//
// Outputs:
//   - []CallResult: One entry per call, call order preserved.
//   - error: Non-nil only on cancellation.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []Call) ([]CallResult, error) {
	results := make([]CallResult, 0, len(calls))
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := e.executeOne(ctx, call)
		// A context canceled mid-call propagates instead of being
		// recorded as that call's failure.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, CallResult{ID: call.ID, Name: call.Name, Result: res})
	}
	return results, nil
}

func (e *Executor) executeOne(ctx context.Context, call Call) *Result {
	start := time.Now()

	ctx, span := executorTracer.Start(ctx, "Executor.executeOne",
		trace.WithAttributes(
			attribute.String("tool", call.Name),
			attribute.String("call_id", call.ID),
			attribute.Int("args_bytes", len(call.Args)),
		),
	)
	defer span.End()

	if e.callsUsed >= e.limits.MaxToolCalls {
		return Errorf("tool call budget exhausted (%d calls); provide your final answer with the information gathered so far", e.limits.MaxToolCalls)
	}

	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return Errorf("unknown tool %q", call.Name)
	}

	if res := e.validateArgs(call); res != nil {
		return res
	}

	// Only a call that reaches a tool consumes budget.
	e.callsUsed++

	result := tool.Execute(ctx, call.Args)
	if result == nil {
		result = Errorf("tool %q returned no result", call.Name)
	}

	if !result.IsError && len(result.Content) > e.limits.MaxResultBytes {
		e.logger.Warn("tool result over size limit",
			slog.String("tool", call.Name),
			slog.Int("bytes", len(result.Content)),
			slog.Int("limit", e.limits.MaxResultBytes),
		)
		result = Errorf("%s result too large (%d bytes, limit %d); narrow the request and try again", call.Name, len(result.Content), e.limits.MaxResultBytes)
	}

	span.SetAttributes(
		attribute.Bool("is_error", result.IsError),
		attribute.Int("result_bytes", len(result.Content)),
	)
	e.logger.Debug("tool executed",
		slog.String("tool", call.Name),
		slog.Bool("is_error", result.IsError),
		slog.Duration("duration", time.Since(start)),
	)
	return result
}

// validateArgs checks a call's arguments against the tool's schema.
// Returns nil when the arguments are valid.
func (e *Executor) validateArgs(call Call) *Result {
	resolved, ok := e.registry.ResolvedSchema(call.Name)
	if !ok {
		return Errorf("unknown tool %q", call.Name)
	}
	raw := call.Args
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return Errorf("%s: arguments are not valid JSON: %v", call.Name, err)
	}
	if err := resolved.Validate(instance); err != nil {
		return Errorf("%s: invalid arguments: %v", call.Name, err)
	}
	return nil
}
