// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func openaiTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOpenAIClient(ClientConfig{
		APIKey:            "test-key",
		Model:             "gpt-test",
		BaseURL:           server.URL,
		RequestsPerMinute: 100000,
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	return client
}

func TestOpenAIChatWithTools_ToolCallRoundTrip(t *testing.T) {
	client := openaiTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "find_symbol" {
			t.Errorf("tools = %+v", req.Tools)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_abc",
						"type": "function",
						"function": {"name": "find_symbol", "arguments": "{\"name_path\": \"MyClass\"}"}
					}]
				}
			}]
		}`))
	})

	result, err := client.ChatWithTools(context.Background(), []ChatMessage{
		{Role: RoleUser, Content: "Find MyClass"},
	}, GenerationParams{}, toolCatalogue())
	if err != nil {
		t.Fatalf("ChatWithTools() error = %v", err)
	}
	if result.StopReason != StopToolUse {
		t.Errorf("StopReason = %q", result.StopReason)
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].ID != "call_abc" {
		t.Fatalf("ToolCalls = %+v", result.ToolCalls)
	}
	var args map[string]string
	if err := json.Unmarshal(result.ToolCalls[0].Arguments, &args); err != nil || args["name_path"] != "MyClass" {
		t.Errorf("arguments = %s (err %v)", result.ToolCalls[0].Arguments, err)
	}
}

func TestOpenAIChatWithTools_SyntheticIDs(t *testing.T) {
	client := openaiTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{"type": "function", "function": {"name": "read_file", "arguments": "{}"}}]
				}
			}]
		}`))
	})

	result, err := client.ChatWithTools(context.Background(), []ChatMessage{
		{Role: RoleUser, Content: "x"},
	}, GenerationParams{}, nil)
	if err != nil {
		t.Fatalf("ChatWithTools() error = %v", err)
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(result.ToolCalls))
	}
	if !strings.HasPrefix(result.ToolCalls[0].ID, "call_") || len(result.ToolCalls[0].ID) <= len("call_") {
		t.Errorf("missing synthetic id, got %q", result.ToolCalls[0].ID)
	}
}

func TestOpenAIChatWithTools_ToolResultMessage(t *testing.T) {
	var captured openaiRequest
	client := openaiTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "done"}}]}`))
	})

	result, err := client.ChatWithTools(context.Background(), []ChatMessage{
		{Role: RoleUser, Content: "go"},
		{Role: RoleAssistant, ToolCalls: []ToolCallResponse{
			{ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{"path":"a.go"}`)},
		}},
		{Role: RoleTool, ToolCallID: "call_1", Content: "1: package a"},
	}, GenerationParams{}, nil)
	if err != nil {
		t.Fatalf("ChatWithTools() error = %v", err)
	}
	if result.StopReason != StopEnd || result.Content != "done" {
		t.Errorf("result = %+v", result)
	}

	if len(captured.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(captured.Messages))
	}
	assistant := captured.Messages[1]
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].Function.Arguments != `{"path":"a.go"}` {
		t.Errorf("assistant tool calls = %+v", assistant.ToolCalls)
	}
	toolMsg := captured.Messages[2]
	if toolMsg.Role != RoleTool || toolMsg.ToolCallID != "call_1" {
		t.Errorf("tool message = %+v", toolMsg)
	}
}

func TestOpenAIChatWithTools_NoChoices(t *testing.T) {
	client := openaiTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": []}`))
	})

	if _, err := client.ChatWithTools(context.Background(), []ChatMessage{{Role: RoleUser, Content: "x"}}, GenerationParams{}, nil); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(ClientConfig{}); err == nil {
		t.Fatal("NewOpenAIClient() accepted an empty API key")
	}
}
