// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jeranaias/hoverlens/internal/pricing"
)

// =============================================================================
// INTERFACE
// =============================================================================

// Provider generates explanations from one backend.
type Provider interface {
	// Name identifies the backend in logs and usage records.
	Name() string
	// Generate calls the backend. Failures are *ProviderError.
	Generate(ctx context.Context, req Request) (*Response, error)
	// IsConfigured reports whether required credentials are present.
	IsConfigured() bool
	// ListModels returns the models this adapter may be asked to use.
	ListModels() []string
	// DefaultModel is used when Request.Model is empty.
	DefaultModel() string
	// Endpoint is the base URL requests are sent to.
	Endpoint() string
}

// Request is one explanation request.
type Request struct {
	Code     string
	Context  string
	Language string

	// Model overrides the adapter's default model.
	Model string
	// MaxTokens caps the completion length; zero uses the adapter default.
	MaxTokens int
}

// Response is the result of a successful call.
type Response struct {
	Text             string         `json:"text"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	Cost             pricing.Micros `json:"cost_micros"`
	Model            string         `json:"model"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrEmptyResponse indicates the backend returned no text.
var ErrEmptyResponse = errors.New("empty response from backend")

// ProviderError is returned for every backend failure. Status is the HTTP
// status code, or 0 for network and timeout failures.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying might succeed: rate limiting, server
// errors and network failures. Context cancellation is never temporary.
func (e *ProviderError) Temporary() bool {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case e.Status == 0:
		return e.Err != nil
	case e.Status == http.StatusTooManyRequests:
		return true
	case e.Status >= 500:
		return true
	}
	return false
}

// =============================================================================
// PROMPT
// =============================================================================

const systemPrompt = `You are an expert software engineer. Explain what the given code does ` +
	`for a developer reading it in their editor. Be clear and concise and use Markdown. ` +
	`Point out non-obvious behavior, edge cases and likely bugs.`

// BuildPrompt returns the system instruction and user message for a request.
func BuildPrompt(req Request) (system, user string) {
	var b strings.Builder
	lang := strings.TrimSpace(req.Language)
	if lang != "" {
		fmt.Fprintf(&b, "Language: %s\n\n", lang)
	}
	if ctx := strings.TrimSpace(req.Context); ctx != "" {
		fmt.Fprintf(&b, "Surrounding context:\n%s\n\n", ctx)
	}
	b.WriteString("Explain this code:\n\n```")
	b.WriteString(lang)
	b.WriteString("\n")
	b.WriteString(req.Code)
	if !strings.HasSuffix(req.Code, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```\n")
	return systemPrompt, b.String()
}
