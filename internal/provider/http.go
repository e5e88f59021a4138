// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/hoverlens/internal/pricing"
	"github.com/jeranaias/hoverlens/internal/router"
)

const (
	// DefaultTimeout bounds a single HTTP call.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxTokens caps completion length when the request sets none.
	DefaultMaxTokens = 1024

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second
)

// backend holds what every HTTP adapter shares: credentials, limits, retry
// policy and pricing.
type backend struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	models     []string
	maxTokens  int
	maxRetries int
	limiter    *rate.Limiter
	prices     pricing.Table
	fallback   pricing.Price
	httpClient *http.Client
	log        *slog.Logger
}

func newBackend(cfg Config, defaultURL, defaultModel string, prices pricing.Table) backend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	prices = prices.Merge(cfg.Prices)

	models := cfg.Models
	if len(models) == 0 {
		models = []string{cfg.Model}
	}

	b := backend{
		name:       cfg.name(),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		model:      cfg.Model,
		models:     models,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
		prices:     prices,
		fallback:   prices.Max(),
		httpClient: cfg.HTTPClient,
	}
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.RequestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}
	b.log = cfg.Logger.With("component", "provider", "provider", b.name)
	return b
}

func (b *backend) Name() string         { return b.name }
func (b *backend) DefaultModel() string { return b.model }
func (b *backend) Endpoint() string     { return b.baseURL }

func (b *backend) ListModels() []string {
	out := make([]string, len(b.models))
	copy(out, b.models)
	return out
}

func (b *backend) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return b.model
}

func (b *backend) maxTokensFor(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return b.maxTokens
}

// keyFingerprint identifies the API key in logs without exposing it.
func (b *backend) keyFingerprint() string {
	if b.apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(b.apiKey))
	return hex.EncodeToString(h[:4])
}

// price returns the model's price. Models missing from the table are billed
// at the table's most expensive rate.
func (b *backend) price(model string) pricing.Price {
	if p, ok := b.prices.Lookup(model); ok {
		return p
	}
	b.log.Warn("no price for model, billing at highest known rate", "model", model)
	return b.fallback
}

// bill fills in token totals and cost. When the backend reports no usage the
// prompt and completion sizes are estimated.
func (b *backend) bill(resp *Response, prompt string) {
	if resp.PromptTokens == 0 && resp.CompletionTokens == 0 && resp.TotalTokens == 0 {
		resp.PromptTokens = router.EstimateTokens(prompt)
		resp.CompletionTokens = router.EstimateTokens(resp.Text)
	}
	p := b.price(resp.Model)
	if resp.PromptTokens == 0 && resp.CompletionTokens == 0 {
		resp.Cost = p.CostTotal(resp.TotalTokens)
		return
	}
	if resp.TotalTokens == 0 {
		resp.TotalTokens = resp.PromptTokens + resp.CompletionTokens
	}
	resp.Cost = p.Cost(resp.PromptTokens, resp.CompletionTokens)
}

// postJSON sends body to path and returns the raw response body, retrying
// temporary failures up to maxRetries times with exponential backoff.
func (b *backend) postJSON(ctx context.Context, path string, body any, setHeaders func(*http.Request)) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{Provider: b.name, Message: "failed to encode request", Err: err}
	}

	var lastErr *ProviderError
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(attempt)
			b.log.Debug("retrying request", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, &ProviderError{Provider: b.name, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		data, perr := b.doOnce(ctx, path, payload, setHeaders)
		if perr == nil {
			return data, nil
		}
		lastErr = perr
		if !perr.Temporary() {
			break
		}
	}
	return nil, lastErr
}

func (b *backend) doOnce(ctx context.Context, path string, payload []byte, setHeaders func(*http.Request)) ([]byte, *ProviderError) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, &ProviderError{Provider: b.name, Message: "rate limit wait", Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Provider: b.name, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	setHeaders(req)

	start := time.Now()
	b.log.Debug("sending request", "path", path, "key", b.keyFingerprint())
	resp, err := b.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &ProviderError{Provider: b.name, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	b.log.Debug("received response", "status", resp.StatusCode, "duration", time.Since(start))
	if err != nil {
		return nil, &ProviderError{Provider: b.name, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{
			Provider: b.name,
			Status:   resp.StatusCode,
			Message:  errorMessage(resp.StatusCode, data),
		}
	}
	return data, nil
}

// readResponse reads at most MaxResponseSize bytes.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// errorMessage extracts a human readable message from an error body. Both
// {"error":{"message":"..."}} and {"error":"..."} shapes are understood.
func errorMessage(status int, body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Error != "" {
		return flat.Error
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 {
		return text
	}
	return http.StatusText(status)
}

// calculateBackoff returns 500ms, 1s, 2s, ... capped at 10s.
func calculateBackoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	delay := retryBaseDelay << (attempt - 1)
	if delay > retryMaxDelay || delay <= 0 {
		return retryMaxDelay
	}
	return delay
}
