// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/hoverlens/internal/pricing"
)

// Kind names a backend protocol.
type Kind string

const (
	KindOpenAI     Kind = "openai"
	KindOpenRouter Kind = "openrouter"
	KindAnthropic  Kind = "anthropic"
	KindOllama     Kind = "ollama"
)

// Kinds lists every supported backend.
var Kinds = []Kind{KindOpenAI, KindOpenRouter, KindAnthropic, KindOllama}

// ParseKind parses a backend name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown provider kind %q", s)
}

// Config describes one adapter.
type Config struct {
	Kind Kind
	// Name overrides the provider name used in logs and usage records.
	Name string

	APIKey  string
	BaseURL string
	Model   string
	Models  []string

	// RequestsPerMinute limits outgoing calls; zero is unlimited.
	RequestsPerMinute int
	// MaxRetries is the number of retries for temporary failures.
	MaxRetries int
	Timeout    time.Duration
	MaxTokens  int

	// Prices are layered over the built-in table for this kind.
	Prices pricing.Table

	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (c Config) name() string {
	if c.Name != "" {
		return c.Name
	}
	return string(c.Kind)
}

// New builds the adapter for cfg.Kind.
func New(cfg Config) (Provider, error) {
	switch cfg.Kind {
	case KindOpenAI:
		return NewOpenAI(cfg), nil
	case KindOpenRouter:
		return NewOpenRouter(cfg), nil
	case KindAnthropic:
		return NewAnthropic(cfg), nil
	case KindOllama:
		return NewOllama(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}
