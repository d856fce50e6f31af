// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	anthropicAPIVersion      = "2023-06-01"
	anthropicDefaultBaseURL  = "https://api.anthropic.com/v1/messages"
	anthropicDefaultModel    = "claude-sonnet-4-20250514"
	defaultRequestTimeout    = 120 * time.Second
	defaultRequestsPerMinute = 50

	// System prompts above this size get a cache_control marker so the
	// provider caches them across the session's many turns.
	cacheControlThreshold = 1024

	defaultMaxTokens = 4096
)

// ClientConfig configures a provider client. Zero values fall back to
// sensible defaults; only APIKey is mandatory.
type ClientConfig struct {
	APIKey  string
	Model   string
	BaseURL string

	// Timeout bounds one request end to end.
	Timeout time.Duration

	// RequestsPerMinute throttles outbound requests (client-side).
	RequestsPerMinute int
}

// --- Anthropic wire types ---

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicToolMessage is a message whose content is structured blocks
// (tool_use / tool_result) rather than a plain string.
type anthropicToolMessage struct {
	Role    string `json:"role"`
	Content []any  `json:"content"`
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	Messages  []any         `json:"messages"`
	System    []systemBlock `json:"system,omitempty"`
	MaxTokens int           `json:"max_tokens"`
	Tools     []any         `json:"tools,omitempty"`

	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	StopSeqs    []string `json:"stop_sequences,omitempty"`
}

type systemBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"` // always "ephemeral"
}

type anthropicTextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicToolUseBlock struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type anthropicToolResultBlock struct {
	Type      string `json:"type"`
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

type anthropicToolDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []json.RawMessage `json:"content"`
	StopReason string            `json:"stop_reason,omitempty"`
	Error      *anthropicError   `json:"error,omitempty"`
}

type anthropicContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// AnthropicClient implements ToolChatClient against the Messages API.
//
// Description:
//
//	Uses raw net/http, no SDK. Tool results travel as tool_result content
//	blocks inside user messages and assistant tool calls as tool_use
//	blocks, which the Messages API requires to stay paired. Requests are
//	client-side rate limited; error bodies are redacted before logging.
//
// Thread Safety: Safe for concurrent use.
type AnthropicClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	model      string
	baseURL    string
	logger     *slog.Logger
}

// NewAnthropicClient creates an Anthropic client.
//
// Outputs:
//   - *AnthropicClient: The configured client.
//   - error: Non-nil when APIKey is empty.
func NewAnthropicClient(cfg ClientConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is missing")
	}
	if cfg.Model == "" {
		cfg.Model = anthropicDefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = anthropicDefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultRequestsPerMinute
	}
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		logger:     slog.Default(),
	}, nil
}

// NewAnthropicClientFromEnv creates a client from ANTHROPIC_API_KEY and
// LOUPE_ANTHROPIC_MODEL.
func NewAnthropicClientFromEnv() (*AnthropicClient, error) {
	return NewAnthropicClient(ClientConfig{
		APIKey: os.Getenv("ANTHROPIC_API_KEY"),
		Model:  os.Getenv("LOUPE_ANTHROPIC_MODEL"),
	})
}

// ChatWithTools sends one conversation turn to the Messages API.
func (a *AnthropicClient) ChatWithTools(ctx context.Context, messages []ChatMessage,
	params GenerationParams, tools []ToolDef) (*ChatWithToolsResult, error) {

	a.logger.Debug("ChatWithTools via Anthropic",
		slog.String("model", a.model),
		slog.Int("messages", len(messages)),
		slog.Int("tools", len(tools)),
	)

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	apiMessages, systemPrompt := a.convertMessages(messages)

	var systemBlocks []systemBlock
	if systemPrompt != "" {
		block := systemBlock{Type: "text", Text: systemPrompt}
		if len(systemPrompt) > cacheControlThreshold {
			block.CacheControl = &cacheControl{Type: "ephemeral"}
		}
		systemBlocks = append(systemBlocks, block)
	}

	var apiTools []any
	for _, td := range tools {
		apiTools = append(apiTools, anthropicToolDef{
			Name:        td.Name,
			Description: td.Description,
			InputSchema: td.InputSchema,
		})
	}

	model := a.model
	if params.ModelOverride != "" {
		model = params.ModelOverride
	}
	reqPayload := anthropicRequest{
		Model:       model,
		Messages:    apiMessages,
		System:      systemBlocks,
		MaxTokens:   defaultMaxTokens,
		Tools:       apiTools,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		TopK:        params.TopK,
		StopSeqs:    params.Stop,
	}
	if params.MaxTokens != nil {
		reqPayload.MaxTokens = *params.MaxTokens
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("anthropic: creating HTTP request: %w", err)
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic: API returned status %d: %s", resp.StatusCode, SafeLogString(string(bodyBytes)))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("anthropic: parsing response JSON: %w", err)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("anthropic: API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message))
	}

	return parseAnthropicContent(apiResp.Content, a.logger), nil
}

// convertMessages maps the generic history to Anthropic's format,
// extracting the system prompt to its top-level slot.
func (a *AnthropicClient) convertMessages(messages []ChatMessage) ([]any, string) {
	var apiMessages []any
	var systemPrompt string

	for _, msg := range messages {
		switch {
		case msg.Role == RoleSystem:
			systemPrompt = msg.Content

		case msg.Role == RoleTool && msg.ToolCallID != "":
			// Tool result → user message with a tool_result block.
			apiMessages = append(apiMessages, anthropicToolMessage{
				Role: RoleUser,
				Content: []any{anthropicToolResultBlock{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})

		case msg.Role == RoleAssistant && len(msg.ToolCalls) > 0:
			var blocks []any
			if msg.Content != "" {
				blocks = append(blocks, anthropicTextBlock{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				input := tc.Arguments
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropicToolUseBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: input,
				})
			}
			apiMessages = append(apiMessages, anthropicToolMessage{Role: RoleAssistant, Content: blocks})

		default:
			apiMessages = append(apiMessages, anthropicMessage{Role: msg.Role, Content: msg.Content})
		}
	}
	return apiMessages, systemPrompt
}

// parseAnthropicContent folds response content blocks into the generic
// result shape.
func parseAnthropicContent(content []json.RawMessage, logger *slog.Logger) *ChatWithToolsResult {
	result := &ChatWithToolsResult{}
	var textParts []string

	for _, raw := range content {
		var block anthropicContentBlock
		if err := json.Unmarshal(raw, &block); err != nil {
			logger.Warn("failed to parse content block", slog.String("error", err.Error()))
			continue
		}
		switch block.Type {
		case "text":
			textParts = append(textParts, block.Text)
		case "tool_use":
			input := block.Input
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			result.ToolCalls = append(result.ToolCalls, ToolCallResponse{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: input,
			})
		}
	}

	result.Content = strings.Join(textParts, "")
	if len(result.ToolCalls) > 0 {
		result.StopReason = StopToolUse
	} else {
		result.StopReason = StopEnd
	}
	return result
}
