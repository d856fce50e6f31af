// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides provider-agnostic tool-calling chat clients.
//
// The review loop speaks only the types in this file; each provider
// client translates them to and from its own wire format.
package llm

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Stop reasons returned in ChatWithToolsResult.
const (
	StopEnd     = "end"
	StopToolUse = "tool_use"
)

// ToolChatClient is a model backend capable of tool-calling chat.
type ToolChatClient interface {
	// ChatWithTools sends a conversation plus a tool catalogue and returns
	// the model's next turn, which may contain tool calls.
	ChatWithTools(ctx context.Context, messages []ChatMessage, params GenerationParams, tools []ToolDef) (*ChatWithToolsResult, error)
}

// ToolDef is the provider-agnostic tool definition advertised to the
// model. Each client converts it to its wire format (Anthropic
// input_schema, OpenAI function parameters).
//
// Thread Safety: ToolDef is immutable and safe for concurrent read access.
type ToolDef struct {
	// Name is the function name the model will call.
	Name string

	// Description explains what the tool does, model-facing.
	Description string

	// InputSchema is the JSON Schema for the tool's arguments.
	InputSchema *jsonschema.Schema
}

// ChatMessage is one turn of conversation, carrying tool call metadata.
//
// Description:
//
//	Regular messages use Role + Content. Assistant messages that invoked
//	tools carry ToolCalls; tool result messages carry ToolCallID linking
//	back to the originating call. This single shape round-trips through
//	every provider's wire format.
//
// Thread Safety: ChatMessage is safe for concurrent read access.
type ChatMessage struct {
	// Role is one of the Role* constants.
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content,omitempty"`

	// ToolCalls contains tool invocations (assistant messages only).
	ToolCalls []ToolCallResponse `json:"tool_calls,omitempty"`

	// ToolCallID links a tool result back to a specific tool call.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolName is the tool name for tool result messages.
	ToolName string `json:"tool_name,omitempty"`
}

// ToolCallResponse is one tool call requested by the model.
//
// Thread Safety: ToolCallResponse is safe for concurrent read access.
type ToolCallResponse struct {
	// ID is the provider-assigned (or synthetic) identifier for the call.
	ID string `json:"id"`

	// Name is the tool to invoke.
	Name string `json:"name"`

	// Arguments is the raw JSON argument object.
	Arguments json.RawMessage `json:"arguments"`
}

// ArgumentsString returns the arguments as a JSON object string.
//
// Description:
//
//	Some providers deliver arguments as a JSON-encoded string rather than
//	an object; this normalizes both representations. Returns "{}" for
//	nil/empty arguments.
func (t *ToolCallResponse) ArgumentsString() string {
	if len(t.Arguments) == 0 {
		return "{}"
	}
	if t.Arguments[0] == '"' {
		var s string
		if err := json.Unmarshal(t.Arguments, &s); err == nil {
			return s
		}
	}
	return string(t.Arguments)
}

// ChatWithToolsResult is the model's next turn.
//
// Thread Safety: ChatWithToolsResult is safe for concurrent read access.
type ChatWithToolsResult struct {
	// Content is the text response (may be empty when only tools were
	// called).
	Content string

	// ToolCalls contains the model's tool calls, in issue order.
	ToolCalls []ToolCallResponse

	// StopReason is StopEnd or StopToolUse.
	StopReason string
}

// GenerationParams carries optional sampling parameters. Nil pointer
// fields are omitted from requests so provider defaults apply.
type GenerationParams struct {
	Temperature *float32
	TopP        *float32
	TopK        *int
	MaxTokens   *int
	Stop        []string

	// ModelOverride selects a different model for this request only.
	ModelOverride string
}
