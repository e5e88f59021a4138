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

// Defaults for the Anthropic Messages API.
const (
	DefaultAnthropicURL   = "https://api.anthropic.com/v1"
	DefaultAnthropicModel = "claude-3-5-sonnet-latest"
	AnthropicVersion      = "2023-06-01"
)

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type messagesResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Anthropic talks to the Anthropic Messages API.
type Anthropic struct {
	backend
}

// NewAnthropic returns an Anthropic adapter.
func NewAnthropic(cfg Config) *Anthropic {
	if cfg.Kind == "" {
		cfg.Kind = KindAnthropic
	}
	return &Anthropic{backend: newBackend(cfg, DefaultAnthropicURL, DefaultAnthropicModel, pricing.Anthropic)}
}

// IsConfigured reports whether an API key is set.
func (c *Anthropic) IsConfigured() bool {
	return c.apiKey != ""
}

// Generate sends one Messages API request.
func (c *Anthropic) Generate(ctx context.Context, req Request) (*Response, error) {
	if !c.IsConfigured() {
		return nil, &ProviderError{Provider: c.name, Message: "API key not configured"}
	}

	system, user := BuildPrompt(req)
	body := messagesRequest{
		Model:     c.modelFor(req),
		MaxTokens: c.maxTokensFor(req),
		System:    system,
		Messages:  []chatMessage{{Role: "user", Content: user}},
	}

	data, err := c.postJSON(ctx, "/messages", body, func(r *http.Request) {
		r.Header.Set("x-api-key", c.apiKey)
		r.Header.Set("anthropic-version", AnthropicVersion)
	})
	if err != nil {
		return nil, err
	}

	var parsed messagesResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &ProviderError{Provider: c.name, Status: http.StatusOK, Message: "invalid response body", Err: err}
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, &ProviderError{Provider: c.name, Status: http.StatusOK, Err: ErrEmptyResponse}
	}

	resp := &Response{
		Text:             text.String(),
		PromptTokens:     parsed.Usage.InputTokens,
		CompletionTokens: parsed.Usage.OutputTokens,
		Model:            parsed.Model,
	}
	if resp.Model == "" {
		resp.Model = body.Model
	}
	c.bill(resp, system+user)
	return resp, nil
}
