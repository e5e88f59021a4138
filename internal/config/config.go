// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/hoverlens/internal/cache"
	"github.com/jeranaias/hoverlens/internal/ledger"
	"github.com/jeranaias/hoverlens/internal/pricing"
	"github.com/jeranaias/hoverlens/internal/provider"
	"github.com/jeranaias/hoverlens/internal/router"
	"github.com/jeranaias/hoverlens/internal/store"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete hoverlens configuration.
type Config struct {
	Economy ProviderConfig `toml:"economy" json:"economy" yaml:"economy"`
	Premium ProviderConfig `toml:"premium" json:"premium" yaml:"premium"`

	Routing RoutingConfig `toml:"routing" json:"routing" yaml:"routing"`
	Budget  BudgetConfig  `toml:"budget" json:"budget" yaml:"budget"`
	Cache   CacheConfig   `toml:"cache" json:"cache" yaml:"cache"`
	Gateway GatewayConfig `toml:"gateway" json:"gateway" yaml:"gateway"`
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
	Server  ServerConfig  `toml:"server" json:"server" yaml:"server"`
}

// ProviderConfig configures the adapter behind one tier. An empty Kind
// leaves the tier unconfigured.
type ProviderConfig struct {
	// Kind is one of openai, openrouter, anthropic or ollama.
	Kind string `toml:"kind" json:"kind" yaml:"kind"`
	// Name labels usage records; defaults to Kind.
	Name    string   `toml:"name,omitempty" json:"name,omitempty" yaml:"name,omitempty"`
	APIKey  string   `toml:"api_key,omitempty" json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string   `toml:"base_url,omitempty" json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model   string   `toml:"model,omitempty" json:"model,omitempty" yaml:"model,omitempty"`
	Models  []string `toml:"models,omitempty" json:"models,omitempty" yaml:"models,omitempty"`

	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute" yaml:"requests_per_minute"`
	MaxRetries        int `toml:"max_retries" json:"max_retries" yaml:"max_retries"`
	TimeoutSecs       int `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`
	MaxTokens         int `toml:"max_tokens" json:"max_tokens" yaml:"max_tokens"`

	// Prices override the built-in table, keyed by model name.
	Prices map[string]PriceConfig `toml:"prices,omitempty" json:"prices,omitempty" yaml:"prices,omitempty"`
}

// PriceConfig is a model price in dollars per 1K tokens.
type PriceConfig struct {
	InputPer1K  float64 `toml:"input_per_1k_usd" json:"input_per_1k_usd" yaml:"input_per_1k_usd"`
	OutputPer1K float64 `toml:"output_per_1k_usd" json:"output_per_1k_usd" yaml:"output_per_1k_usd"`
}

// RoutingConfig controls tier selection.
type RoutingConfig struct {
	// ComplexityThreshold is the score at or above which premium is used.
	ComplexityThreshold float64 `toml:"complexity_threshold" json:"complexity_threshold" yaml:"complexity_threshold"`
	// LocalOnly restricts routing to providers on the loopback interface.
	LocalOnly bool `toml:"local_only" json:"local_only" yaml:"local_only"`
}

// BudgetConfig configures the usage ledger.
type BudgetConfig struct {
	// LimitUSD is the spend allowed per period; 0 disables the budget.
	LimitUSD        float64   `toml:"limit_usd" json:"limit_usd" yaml:"limit_usd"`
	Period          string    `toml:"period" json:"period" yaml:"period"`
	AlertThresholds []float64 `toml:"alert_thresholds" json:"alert_thresholds" yaml:"alert_thresholds"`
	RetentionDays   int       `toml:"retention_days" json:"retention_days" yaml:"retention_days"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Enabled    bool `toml:"enabled" json:"enabled" yaml:"enabled"`
	MaxEntries int  `toml:"max_entries" json:"max_entries" yaml:"max_entries"`
	TTLHours   int  `toml:"ttl_hours" json:"ttl_hours" yaml:"ttl_hours"`
}

// GatewayConfig holds request handling settings.
type GatewayConfig struct {
	RequestTimeoutSecs int  `toml:"request_timeout_secs" json:"request_timeout_secs" yaml:"request_timeout_secs"`
	DedupeInflight     bool `toml:"dedupe_inflight" json:"dedupe_inflight" yaml:"dedupe_inflight"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is sqlite, file or memory.
	Backend string `toml:"backend" json:"backend" yaml:"backend"`
	// Path is the data directory; empty uses ~/.hoverlens/data.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level"`
	Format string `toml:"format" json:"format" yaml:"format"`
}

// ServerConfig configures the HTTP daemon.
type ServerConfig struct {
	Addr string `toml:"addr" json:"addr" yaml:"addr"`
	// AuthToken, when set, is required as a bearer token on /v1 routes.
	AuthToken string `toml:"auth_token,omitempty" json:"auth_token,omitempty" yaml:"auth_token,omitempty"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default values.
const (
	DefaultRequestTimeoutSecs = 60
	DefaultRetentionDays      = 180
	DefaultServerAddr         = "127.0.0.1:8787"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// Default returns the built-in configuration: OpenAI for economy, Anthropic
// for premium, no budget limit, cache enabled. Tiers stay unavailable until
// API keys are supplied. Models are left empty so each adapter uses its own
// default.
func Default() *Config {
	return &Config{
		Economy: ProviderConfig{Kind: string(provider.KindOpenAI)},
		Premium: ProviderConfig{Kind: string(provider.KindAnthropic)},
		Routing: RoutingConfig{
			ComplexityThreshold: router.DefaultThreshold,
		},
		Budget: BudgetConfig{
			Period:          string(ledger.PeriodMonth),
			AlertThresholds: append([]float64(nil), ledger.DefaultAlertThresholds...),
			RetentionDays:   DefaultRetentionDays,
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: cache.DefaultMaxEntries,
			TTLHours:   int(cache.DefaultTTL / time.Hour),
		},
		Gateway: GatewayConfig{
			RequestTimeoutSecs: DefaultRequestTimeoutSecs,
			DedupeInflight:     true,
		},
		Storage: StorageConfig{
			Backend: store.BackendSQLite,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Server: ServerConfig{
			Addr: DefaultServerAddr,
		},
	}
}

// SetDefaults fills zero values left by a partial file. The complexity
// threshold is left alone since zero is meaningful there.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Budget.Period == "" {
		c.Budget.Period = d.Budget.Period
	}
	if len(c.Budget.AlertThresholds) == 0 {
		c.Budget.AlertThresholds = d.Budget.AlertThresholds
	}
	if c.Budget.RetentionDays == 0 {
		c.Budget.RetentionDays = d.Budget.RetentionDays
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = d.Cache.MaxEntries
	}
	if c.Cache.TTLHours == 0 {
		c.Cache.TTLHours = d.Cache.TTLHours
	}
	if c.Gateway.RequestTimeoutSecs == 0 {
		c.Gateway.RequestTimeoutSecs = d.Gateway.RequestTimeoutSecs
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}

	c.Economy.Kind = strings.ToLower(strings.TrimSpace(c.Economy.Kind))
	c.Premium.Kind = strings.ToLower(strings.TrimSpace(c.Premium.Kind))
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Economy = c.Economy.clone()
	out.Premium = c.Premium.clone()
	out.Budget.AlertThresholds = append([]float64(nil), c.Budget.AlertThresholds...)
	return &out
}

func (p ProviderConfig) clone() ProviderConfig {
	p.Models = append([]string(nil), p.Models...)
	if p.Prices != nil {
		prices := make(map[string]PriceConfig, len(p.Prices))
		for k, v := range p.Prices {
			prices[k] = v
		}
		p.Prices = prices
	}
	return p
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns ~/.hoverlens.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".hoverlens"), nil
}

// DefaultPath returns the path Load reads first: $HOVERLENS_CONFIG when set,
// otherwise ~/.hoverlens/config.toml.
func DefaultPath() (string, error) {
	if p := os.Getenv("HOVERLENS_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DataDir returns the storage directory, ~/.hoverlens/data unless
// storage.path is set.
func (c *Config) DataDir() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// Tier returns the provider settings for t.
func (c *Config) Tier(t router.Tier) ProviderConfig {
	if t == router.TierPremium {
		return c.Premium
	}
	return c.Economy
}

// Enabled reports whether the tier names a provider kind.
func (p ProviderConfig) Enabled() bool {
	return p.Kind != ""
}

// Adapter converts tier settings to adapter options.
func (p ProviderConfig) Adapter(logger *slog.Logger) provider.Config {
	var prices pricing.Table
	if len(p.Prices) > 0 {
		prices = make(pricing.Table, len(p.Prices))
		for model, pc := range p.Prices {
			prices[model] = pricing.Price{
				InputPer1K:  pricing.FromDollars(pc.InputPer1K),
				OutputPer1K: pricing.FromDollars(pc.OutputPer1K),
			}
		}
	}
	return provider.Config{
		Kind:              provider.Kind(p.Kind),
		Name:              p.Name,
		APIKey:            p.APIKey,
		BaseURL:           p.BaseURL,
		Model:             p.Model,
		Models:            append([]string(nil), p.Models...),
		RequestsPerMinute: p.RequestsPerMinute,
		MaxRetries:        p.MaxRetries,
		Timeout:           time.Duration(p.TimeoutSecs) * time.Second,
		MaxTokens:         p.MaxTokens,
		Prices:            prices,
		Logger:            logger,
	}
}

// BudgetLimit returns the budget limit in micro-dollars.
func (c *Config) BudgetLimit() pricing.Micros {
	return pricing.FromDollars(c.Budget.LimitUSD)
}

// BudgetPeriod returns the parsed budget period, month if invalid.
func (c *Config) BudgetPeriod() ledger.Period {
	p, err := ledger.ParsePeriod(c.Budget.Period)
	if err != nil {
		return ledger.PeriodMonth
	}
	return p
}

// Retention returns the usage retention horizon.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Budget.RetentionDays) * 24 * time.Hour
}

// CacheTTL returns the cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// RequestTimeout bounds one provider call made by the gateway.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Gateway.RequestTimeoutSecs) * time.Second
}
