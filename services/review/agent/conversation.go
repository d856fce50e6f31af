// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent runs the tool-calling review loop against a model backend.
package agent

import (
	"github.com/loupedev/loupe/services/llm"
)

// trimPlaceholder replaces the contents of tool results evicted to fit
// the context budget. The message itself stays in place so the
// assistant/tool call pairing the providers require is never broken.
const trimPlaceholder = "[tool result trimmed to fit the context budget]"

// Conversation is the append-only message history of one review session.
//
// Description:
//
//	Messages are never removed or reordered; trimming replaces the
//	contents of the oldest tool result with a placeholder. A running
//	token estimate (the chars/4 heuristic) is kept in sync with every
//	mutation so budget checks are O(1).
//
// Thread Safety: NOT safe for concurrent use. A conversation belongs to
// exactly one session goroutine.
type Conversation struct {
	messages  []llm.ChatMessage
	estTokens int
}

// NewConversation starts a history with a system prompt and the opening
// user request.
func NewConversation(systemPrompt, userMessage string) *Conversation {
	c := &Conversation{}
	c.Append(llm.ChatMessage{Role: llm.RoleSystem, Content: systemPrompt})
	c.Append(llm.ChatMessage{Role: llm.RoleUser, Content: userMessage})
	return c
}

// Append adds a message and updates the token estimate.
func (c *Conversation) Append(msg llm.ChatMessage) {
	c.messages = append(c.messages, msg)
	c.estTokens += estimateTokens(msg)
}

// Messages returns the history in order. The caller must not mutate it.
func (c *Conversation) Messages() []llm.ChatMessage {
	return c.messages
}

// Len returns the number of messages.
func (c *Conversation) Len() int { return len(c.messages) }

// EstimatedTokens returns the running token estimate for the history.
func (c *Conversation) EstimatedTokens() int { return c.estTokens }

// TrimOldestToolResult replaces the contents of the earliest untrimmed
// tool result with the trim placeholder.
//
// Outputs:
//   - bool: False when no trimmable tool result remains, meaning the
//     history cannot shrink any further.
func (c *Conversation) TrimOldestToolResult() bool {
	for i := range c.messages {
		m := &c.messages[i]
		if m.Role != llm.RoleTool || m.Content == trimPlaceholder {
			continue
		}
		c.estTokens -= estimateTokens(*m)
		m.Content = trimPlaceholder
		c.estTokens += estimateTokens(*m)
		return true
	}
	return false
}

// estimateTokens approximates a message's token cost as chars/4,
// counting text content and tool call arguments.
func estimateTokens(msg llm.ChatMessage) int {
	chars := len(msg.Content)
	for _, tc := range msg.ToolCalls {
		chars += len(tc.Name) + len(tc.Arguments)
	}
	return (chars + 3) / 4
}
