// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/loupedev/loupe/services/llm"
	"github.com/loupedev/loupe/services/review/config"
	"github.com/loupedev/loupe/services/review/timeout"
	"github.com/loupedev/loupe/services/review/tools"
)

var sessionTracer = otel.Tracer("agent.session")

// Phase is the session's position in the review loop.
type Phase string

const (
	PhasePreparing      Phase = "preparing"
	PhaseAwaitingModel  Phase = "awaiting_model"
	PhaseExecutingTools Phase = "executing_tools"
	PhaseDone           Phase = "done"
)

// wrapUpMessage is injected when a budget runs out, asking the model for
// its final answer with no further tool use.
const wrapUpMessage = "The context is full. Provide your final review now " +
	"based on what you have already seen; no further tool calls are available."

// BudgetError reports that the session hit an iteration or tool-call cap
// and ended with whatever answer the wrap-up turn produced.
type BudgetError struct {
	// Limit names the exhausted budget.
	Limit string
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("session budget exhausted: %s", e.Limit)
}

// Session drives one review conversation to completion.
//
// Description:
//
//	Owns the conversation history and the loop Preparing → AwaitingModel
//	⇄ ExecutingTools → Done. Each model round trip runs under the
//	configured timeout; a model timeout is fatal to the session (there is
//	no retry at this layer). Tool calls are handed to the executor in
//	batch and their results appended in call order. Iteration and
//	tool-call budgets end the session gracefully: the model gets one
//	final turn, without tools, to produce an answer from what it has.
//
// Thread Safety: NOT safe for concurrent use. One session per goroutine.
type Session struct {
	id       string
	client   llm.ToolChatClient
	executor *tools.Executor
	registry *tools.Registry
	cfg      *config.Config
	logger   *slog.Logger

	conv       *Conversation
	phase      Phase
	iterations int
}

// NewSession wires a session from its collaborators. The executor must
// be bound to the same registry.
func NewSession(client llm.ToolChatClient, executor *tools.Executor, registry *tools.Registry, cfg *config.Config, logger *slog.Logger) *Session {
	return &Session{
		id:       uuid.NewString(),
		client:   client,
		executor: executor,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Phase returns the session's current loop phase.
func (s *Session) Phase() Phase { return s.phase }

// Iterations returns the number of model round trips taken so far.
func (s *Session) Iterations() int { return s.iterations }

// Run executes the review loop and returns the model's final answer.
//
// Description:
//
//	Seeds the conversation with the system prompt and the opening user
//	message, then alternates model turns and tool execution until the
//	model stops calling tools, a budget runs out, or the session fails.
//	Cancellation aborts immediately at any point and is returned as the
//	context's error, never disguised as a model or tool failure.
//
// Inputs:
//   - ctx: Session context; cancellation ends the session.
//   - systemPrompt: The reviewer instructions.
//   - userMessage: The opening review request.
//
// Outputs:
//   - string: The model's final text answer.
//   - error: Cancellation, a fatal model error, or *BudgetError when a
//     cap forced the wrap-up turn (the answer is still returned).
func (s *Session) Run(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	ctx, span := sessionTracer.Start(ctx, "session.Run")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", s.id))

	s.phase = PhasePreparing
	s.conv = NewConversation(systemPrompt, userMessage)
	toolDefs := s.toolDefs()

	s.logger.Info("review session started",
		slog.String("session_id", s.id),
		slog.Int("tools", len(toolDefs)),
	)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if s.iterations >= s.cfg.Budgets.MaxIterations {
			return s.wrapUp(ctx, &BudgetError{Limit: "max iterations"})
		}
		if s.executor.BudgetExhausted() {
			return s.wrapUp(ctx, &BudgetError{Limit: "max tool calls"})
		}

		s.enforceTokenBudget()

		result, err := s.modelTurn(ctx, toolDefs)
		if err != nil {
			return "", err
		}

		s.conv.Append(llm.ChatMessage{
			Role:      llm.RoleAssistant,
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		})

		if result.StopReason != llm.StopToolUse || len(result.ToolCalls) == 0 {
			s.phase = PhaseDone
			s.logger.Info("review session finished",
				slog.String("session_id", s.id),
				slog.Int("iterations", s.iterations),
				slog.Int("tool_calls", s.executor.CallsUsed()),
			)
			return result.Content, nil
		}

		if err := s.runToolBatch(ctx, result.ToolCalls); err != nil {
			return "", err
		}
	}
}

// modelTurn performs one model round trip under the request timeout.
func (s *Session) modelTurn(ctx context.Context, toolDefs []llm.ToolDef) (*llm.ChatWithToolsResult, error) {
	s.phase = PhaseAwaitingModel
	s.iterations++

	var result *llm.ChatWithToolsResult
	err := timeout.Do(ctx, s.cfg.Timeouts.ModelRequest.Duration, "model request", s.logger,
		func(tctx context.Context) error {
			var chatErr error
			result, chatErr = s.client.ChatWithTools(tctx, s.conv.Messages(), llm.GenerationParams{}, toolDefs)
			return chatErr
		})

	switch {
	case err == nil:
		return result, nil
	case timeout.IsCanceled(err):
		return nil, err
	case timeout.IsTimeout(err):
		// No retry here: a request that blows the full budget means the
		// model is not keeping up, and the user should hear that.
		return nil, fmt.Errorf("%w; the model may be overloaded", err)
	default:
		return nil, fmt.Errorf("model request failed: %w", err)
	}
}

// runToolBatch executes the model's tool calls and appends their
// results to the conversation in call order.
func (s *Session) runToolBatch(ctx context.Context, calls []llm.ToolCallResponse) error {
	s.phase = PhaseExecutingTools

	batch := make([]tools.Call, len(calls))
	for i, tc := range calls {
		batch[i] = tools.Call{ID: tc.ID, Name: tc.Name, Args: tc.Arguments}
	}

	results, err := s.executor.ExecuteBatch(ctx, batch)
	if err != nil {
		return err
	}

	for _, r := range results {
		content := r.Result.Content
		if r.Result.IsError {
			content = "Error: " + content
		}
		s.conv.Append(llm.ChatMessage{
			Role:       llm.RoleTool,
			Content:    content,
			ToolCallID: r.ID,
			ToolName:   r.Name,
		})
	}
	return nil
}

// wrapUp runs one final model turn without tools after a budget ran out.
//
// Description:
//
//	The synthetic user message tells the model to answer from what it
//	already has. The returned error is always the triggering
//	*BudgetError so callers can distinguish a budgeted ending from a
//	clean one; the answer, if the model produced one, comes with it.
func (s *Session) wrapUp(ctx context.Context, cause *BudgetError) (string, error) {
	s.logger.Warn("session budget exhausted, requesting final answer",
		slog.String("session_id", s.id),
		slog.String("limit", cause.Limit),
		slog.Int("iterations", s.iterations),
		slog.Int("tool_calls", s.executor.CallsUsed()),
	)

	s.conv.Append(llm.ChatMessage{Role: llm.RoleUser, Content: wrapUpMessage})
	s.enforceTokenBudget()

	result, err := s.modelTurn(ctx, nil)
	s.phase = PhaseDone
	if err != nil {
		return "", err
	}
	return result.Content, cause
}

// enforceTokenBudget trims oldest tool results until the estimate fits
// the configured context budget or nothing trimmable remains.
func (s *Session) enforceTokenBudget() {
	trimmed := 0
	for s.conv.EstimatedTokens() > s.cfg.Budgets.MaxContextTokens {
		if !s.conv.TrimOldestToolResult() {
			break
		}
		trimmed++
	}
	if trimmed > 0 {
		s.logger.Debug("trimmed tool results to fit context budget",
			slog.String("session_id", s.id),
			slog.Int("trimmed", trimmed),
			slog.Int("estimated_tokens", s.conv.EstimatedTokens()),
		)
	}
}

// toolDefs converts the registry's catalogue to provider-agnostic defs.
func (s *Session) toolDefs() []llm.ToolDef {
	all := s.registry.All()
	defs := make([]llm.ToolDef, len(all))
	for i, t := range all {
		defs[i] = llm.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		}
	}
	return defs
}
