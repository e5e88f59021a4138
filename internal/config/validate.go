// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/jeranaias/hoverlens/internal/ledger"
	"github.com/jeranaias/hoverlens/internal/offline"
	"github.com/jeranaias/hoverlens/internal/provider"
	"github.com/jeranaias/hoverlens/internal/store"
)

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every problem found by Validate.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns ValidateErrors when anything is
// wrong. A tier without credentials is valid; the gateway treats it as
// unavailable.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	validateTier := func(section string, p ProviderConfig) {
		if p.Kind != "" {
			if _, err := provider.ParseKind(p.Kind); err != nil {
				add(section+".kind", "must be one of openai, openrouter, anthropic, ollama (got %q)", p.Kind)
			}
		}
		if err := offline.ValidateScheme(p.BaseURL); err != nil {
			add(section+".base_url", "%v", err)
		}
		if p.RequestsPerMinute < 0 {
			add(section+".requests_per_minute", "must not be negative")
		}
		if p.MaxRetries < 0 || p.MaxRetries > 10 {
			add(section+".max_retries", "must be between 0 and 10")
		}
		if p.TimeoutSecs < 0 {
			add(section+".timeout_secs", "must not be negative")
		}
		if p.MaxTokens < 0 {
			add(section+".max_tokens", "must not be negative")
		}
		for model, price := range p.Prices {
			if price.InputPer1K < 0 || price.OutputPer1K < 0 {
				add(section+".prices."+model, "prices must not be negative")
			}
		}
	}
	validateTier("economy", c.Economy)
	validateTier("premium", c.Premium)

	if t := c.Routing.ComplexityThreshold; t < 0 || t > 1 {
		add("routing.complexity_threshold", "must be between 0 and 1 (got %g)", t)
	}

	if c.Budget.LimitUSD < 0 {
		add("budget.limit_usd", "must not be negative")
	}
	if _, err := ledger.ParsePeriod(c.Budget.Period); err != nil {
		add("budget.period", "must be day, week or month (got %q)", c.Budget.Period)
	}
	for _, th := range c.Budget.AlertThresholds {
		if th <= 0 || th > 10 {
			add("budget.alert_thresholds", "each threshold must be in (0, 10] (got %g)", th)
			break
		}
	}
	if c.Budget.RetentionDays < 1 {
		add("budget.retention_days", "must be at least 1")
	}

	if c.Cache.MaxEntries < 1 {
		add("cache.max_entries", "must be at least 1")
	}
	if c.Cache.TTLHours < 1 {
		add("cache.ttl_hours", "must be at least 1")
	}

	if c.Gateway.RequestTimeoutSecs < 1 || c.Gateway.RequestTimeoutSecs > 3600 {
		add("gateway.request_timeout_secs", "must be between 1 and 3600")
	}

	switch c.Storage.Backend {
	case store.BackendSQLite, store.BackendFile, store.BackendMemory:
	default:
		add("storage.backend", "must be sqlite, file or memory (got %q)", c.Storage.Backend)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", "must be debug, info, warn or error (got %q)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		add("logging.format", "must be text or json (got %q)", c.Logging.Format)
	}

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		add("server.addr", "must be host:port (%v)", err)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
