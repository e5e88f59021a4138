// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jeranaias/hoverlens/internal/pricing"
)

// Defaults for OpenAI-compatible backends.
const (
	DefaultOpenAIURL       = "https://api.openai.com/v1"
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel = "openai/gpt-4o-mini"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	backend
	extraHeaders map[string]string
}

// NewOpenAI returns an adapter for api.openai.com or a compatible server.
func NewOpenAI(cfg Config) *OpenAI {
	if cfg.Kind == "" {
		cfg.Kind = KindOpenAI
	}
	return &OpenAI{backend: newBackend(cfg, DefaultOpenAIURL, DefaultOpenAIModel, pricing.OpenAI)}
}

// NewOpenRouter returns an OpenAI-compatible adapter preset for OpenRouter.
// Model ids carry a vendor prefix such as "anthropic/claude-3-haiku".
func NewOpenRouter(cfg Config) *OpenAI {
	if cfg.Kind == "" {
		cfg.Kind = KindOpenRouter
	}
	return &OpenAI{
		backend: newBackend(cfg, DefaultOpenRouterURL, DefaultOpenRouterModel, pricing.OpenAI.Merge(pricing.Anthropic)),
		extraHeaders: map[string]string{
			"HTTP-Referer": "https://github.com/jeranaias/hoverlens",
			"X-Title":      "hoverlens",
		},
	}
}

// IsConfigured reports whether an API key is set.
func (c *OpenAI) IsConfigured() bool {
	return c.apiKey != ""
}

// Generate sends one chat completion request.
func (c *OpenAI) Generate(ctx context.Context, req Request) (*Response, error) {
	if !c.IsConfigured() {
		return nil, &ProviderError{Provider: c.name, Message: "API key not configured"}
	}

	system, user := BuildPrompt(req)
	body := chatRequest{
		Model: c.modelFor(req),
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.maxTokensFor(req),
		Temperature: 0.2,
	}

	data, err := c.postJSON(ctx, "/chat/completions", body, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+c.apiKey)
		for k, v := range c.extraHeaders {
			r.Header.Set(k, v)
		}
	})
	if err != nil {
		return nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &ProviderError{Provider: c.name, Status: http.StatusOK, Message: "invalid response body", Err: err}
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, &ProviderError{Provider: c.name, Status: http.StatusOK, Err: ErrEmptyResponse}
	}

	resp := &Response{
		Text:             parsed.Choices[0].Message.Content,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
		Model:            parsed.Model,
	}
	if resp.Model == "" {
		resp.Model = body.Model
	}
	c.bill(resp, system+user)
	return resp, nil
}
