// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/loupedev/loupe/services/llm"
	"github.com/loupedev/loupe/services/review/config"
	"github.com/loupedev/loupe/services/review/tools"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedClient replays canned responses and records every request.
type scriptedClient struct {
	responses []*llm.ChatWithToolsResult
	calls     int
	seen      [][]llm.ChatMessage
	seenTools [][]llm.ToolDef
	block     bool
}

func (c *scriptedClient) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, _ llm.GenerationParams, defs []llm.ToolDef) (*llm.ChatWithToolsResult, error) {
	if c.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c.seen = append(c.seen, append([]llm.ChatMessage(nil), messages...))
	c.seenTools = append(c.seenTools, defs)
	if c.calls >= len(c.responses) {
		return nil, errors.New("scripted client exhausted")
	}
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}

type echoTool struct {
	fail bool
}

func (e *echoTool) Name() string        { return "echo" }
func (e *echoTool) Description() string { return "echoes its input" }

func (e *echoTool) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object"}
}

func (e *echoTool) Execute(_ context.Context, args json.RawMessage) *tools.Result {
	if e.fail {
		return tools.Errorf("echo failed")
	}
	return tools.Success("echoed: " + string(args))
}

func testConfig() *config.Config {
	return &config.Config{
		Provider: "anthropic",
		Model:    "test-model",
		Budgets: config.Budgets{
			MaxIterations:    10,
			MaxToolCalls:     100,
			MaxResultBytes:   65536,
			MaxContextTokens: 100000,
		},
		Timeouts: config.Timeouts{
			ModelRequest:   config.Duration{Duration: 5 * time.Second},
			PerFileSymbols: config.Duration{Duration: time.Second},
			DirectoryScan:  config.Duration{Duration: 5 * time.Second},
			PerCandidate:   config.Duration{Duration: time.Second},
		},
		Discovery: config.Discovery{MaxFiles: 200, WorkspaceCandidateCap: 50},
	}
}

func newTestSession(t *testing.T, client llm.ToolChatClient, cfg *config.Config, toolList ...tools.Tool) *Session {
	t.Helper()
	if len(toolList) == 0 {
		toolList = []tools.Tool{&echoTool{}}
	}
	registry, err := tools.NewRegistry(toolList...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	executor := tools.NewExecutor(registry, discardLogger(), tools.Limits{
		MaxToolCalls:   cfg.Budgets.MaxToolCalls,
		MaxResultBytes: cfg.Budgets.MaxResultBytes,
	})
	return NewSession(client, executor, registry, cfg, discardLogger())
}

func toolUseTurn(id string, args string) *llm.ChatWithToolsResult {
	return &llm.ChatWithToolsResult{
		StopReason: llm.StopToolUse,
		ToolCalls: []llm.ToolCallResponse{
			{ID: id, Name: "echo", Arguments: json.RawMessage(args)},
		},
	}
}

func finalTurn(answer string) *llm.ChatWithToolsResult {
	return &llm.ChatWithToolsResult{Content: answer, StopReason: llm.StopEnd}
}

func TestRunImmediateAnswer(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatWithToolsResult{finalTurn("looks fine")}}
	s := newTestSession(t, client, testConfig())

	answer, err := s.Run(context.Background(), "be a reviewer", "review this")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "looks fine" {
		t.Errorf("answer = %q", answer)
	}
	if s.Phase() != PhaseDone {
		t.Errorf("phase = %q, want %q", s.Phase(), PhaseDone)
	}
	if s.Iterations() != 1 {
		t.Errorf("iterations = %d, want 1", s.Iterations())
	}
	if len(client.seenTools[0]) != 1 || client.seenTools[0][0].Name != "echo" {
		t.Errorf("tool catalogue = %+v", client.seenTools[0])
	}
}

func TestRunToolRoundTrip(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatWithToolsResult{
		toolUseTurn("call_1", `{"x":1}`),
		finalTurn("done"),
	}}
	s := newTestSession(t, client, testConfig())

	answer, err := s.Run(context.Background(), "sys", "review")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "done" {
		t.Errorf("answer = %q", answer)
	}

	// Second request must carry the assistant tool call and its result.
	second := client.seen[1]
	var toolMsg *llm.ChatMessage
	for i := range second {
		if second[i].Role == llm.RoleTool {
			toolMsg = &second[i]
		}
	}
	if toolMsg == nil {
		t.Fatal("no tool result message in second request")
	}
	if toolMsg.ToolCallID != "call_1" {
		t.Errorf("tool result id = %q, want call_1", toolMsg.ToolCallID)
	}
	if !strings.Contains(toolMsg.Content, "echoed:") {
		t.Errorf("tool result content = %q", toolMsg.Content)
	}
}

func TestRunToolErrorIsMarked(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatWithToolsResult{
		toolUseTurn("call_1", `{}`),
		finalTurn("done"),
	}}
	s := newTestSession(t, client, testConfig(), &echoTool{fail: true})

	if _, err := s.Run(context.Background(), "sys", "review"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	second := client.seen[1]
	last := second[len(second)-1]
	if last.Role != llm.RoleTool {
		t.Fatalf("last message role = %q", last.Role)
	}
	if !strings.HasPrefix(last.Content, "Error: ") {
		t.Errorf("failed tool result = %q, want Error: prefix", last.Content)
	}
}

func TestRunIterationBudgetForcesWrapUp(t *testing.T) {
	cfg := testConfig()
	cfg.Budgets.MaxIterations = 1
	client := &scriptedClient{responses: []*llm.ChatWithToolsResult{
		toolUseTurn("call_1", `{}`),
		finalTurn("best effort answer"),
	}}
	s := newTestSession(t, client, cfg)

	answer, err := s.Run(context.Background(), "sys", "review")
	var be *BudgetError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want *BudgetError", err)
	}
	if be.Limit != "max iterations" {
		t.Errorf("limit = %q", be.Limit)
	}
	if answer != "best effort answer" {
		t.Errorf("answer = %q", answer)
	}

	// The wrap-up turn advertises no tools and injects the wrap-up message.
	lastReq := client.seen[len(client.seen)-1]
	if got := lastReq[len(lastReq)-1]; got.Role != llm.RoleUser || got.Content != wrapUpMessage {
		t.Errorf("wrap-up message = %+v", got)
	}
	if defs := client.seenTools[len(client.seenTools)-1]; len(defs) != 0 {
		t.Errorf("wrap-up turn advertised %d tools", len(defs))
	}
}

func TestRunToolCallBudgetForcesWrapUp(t *testing.T) {
	cfg := testConfig()
	cfg.Budgets.MaxToolCalls = 1
	client := &scriptedClient{responses: []*llm.ChatWithToolsResult{
		toolUseTurn("call_1", `{}`),
		finalTurn("partial review"),
	}}
	s := newTestSession(t, client, cfg)

	answer, err := s.Run(context.Background(), "sys", "review")
	var be *BudgetError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want *BudgetError", err)
	}
	if be.Limit != "max tool calls" {
		t.Errorf("limit = %q", be.Limit)
	}
	if answer != "partial review" {
		t.Errorf("answer = %q", answer)
	}
}

func TestRunModelTimeoutIsFatal(t *testing.T) {
	cfg := testConfig()
	cfg.Timeouts.ModelRequest = config.Duration{Duration: 20 * time.Millisecond}
	s := newTestSession(t, &scriptedClient{block: true}, cfg)

	_, err := s.Run(context.Background(), "sys", "review")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "model may be overloaded") {
		t.Errorf("err = %v", err)
	}
}

func TestRunCancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestSession(t, &scriptedClient{block: true}, testConfig())

	_, err := s.Run(ctx, "sys", "review")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunTrimsOverBudgetHistory(t *testing.T) {
	cfg := testConfig()
	cfg.Budgets.MaxContextTokens = 120
	big := strings.Repeat("data ", 200)
	client := &scriptedClient{responses: []*llm.ChatWithToolsResult{
		toolUseTurn("call_1", `{"payload":"`+big+`"}`),
		finalTurn("ok"),
	}}
	s := newTestSession(t, client, cfg)

	if _, err := s.Run(context.Background(), "sys", "review"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The oversized tool result must arrive at the model trimmed, with
	// its pairing intact and no message dropped.
	second := client.seen[1]
	if len(second) != len(client.seen[0])+2 {
		t.Errorf("message count = %d, want %d", len(second), len(client.seen[0])+2)
	}
	found := false
	for _, m := range second {
		if m.Role == llm.RoleTool && m.Content == trimPlaceholder {
			if m.ToolCallID != "call_1" {
				t.Errorf("trimmed result lost its id: %q", m.ToolCallID)
			}
			found = true
		}
	}
	if !found {
		t.Error("oversized tool result was not trimmed")
	}
}
