// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider adapts LLM backends to one interface.
//
// Each adapter turns a code-explanation Request into a backend call and
// reports the generated text, token usage and billed cost. Adapters:
//
//   - openai: OpenAI-compatible chat completions (OpenAI, OpenRouter, Groq, ...)
//   - anthropic: Anthropic Messages API
//   - ollama: local Ollama server; never billed
//
// Any non-2xx response or network failure is returned as *ProviderError.
// API keys are never logged; a short SHA-256 fingerprint is logged instead.
//
// # Usage
//
//	p, err := provider.New(provider.Config{Kind: provider.KindOpenAI, APIKey: key})
//	if err != nil {
//	    return err
//	}
//	resp, err := p.Generate(ctx, provider.Request{Code: code, Language: "go"})
package provider
