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

// Defaults for a local Ollama server.
const (
	DefaultOllamaURL   = "http://127.0.0.1:11434"
	DefaultOllamaModel = "qwen2.5-coder:14b"
)

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Ollama is the local, never-billed adapter. It reports zero cost and zero
// token usage regardless of what the server returns.
type Ollama struct {
	backend
}

// NewOllama returns an adapter for a local Ollama server.
func NewOllama(cfg Config) *Ollama {
	if cfg.Kind == "" {
		cfg.Kind = KindOllama
	}
	return &Ollama{backend: newBackend(cfg, DefaultOllamaURL, DefaultOllamaModel, pricing.Table{})}
}

// IsConfigured reports whether a server URL is set.
func (c *Ollama) IsConfigured() bool {
	return c.baseURL != ""
}

// Generate sends one non-streaming /api/chat request.
func (c *Ollama) Generate(ctx context.Context, req Request) (*Response, error) {
	system, user := BuildPrompt(req)
	body := ollamaChatRequest{
		Model: c.modelFor(req),
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Options: &ollamaOptions{Temperature: 0.2, NumPredict: c.maxTokensFor(req)},
	}

	data, err := c.postJSON(ctx, "/api/chat", body, func(*http.Request) {})
	if err != nil {
		return nil, err
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &ProviderError{Provider: c.name, Status: http.StatusOK, Message: "invalid response body", Err: err}
	}
	if strings.TrimSpace(parsed.Message.Content) == "" {
		return nil, &ProviderError{Provider: c.name, Status: http.StatusOK, Err: ErrEmptyResponse}
	}

	model := parsed.Model
	if model == "" {
		model = body.Model
	}
	return &Response{Text: parsed.Message.Content, Model: model}, nil
}
