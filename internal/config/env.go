// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"github.com/kelseyhightower/envconfig"

	"github.com/jeranaias/hoverlens/internal/provider"
)

// EnvPrefix prefixes every hoverlens environment variable.
const EnvPrefix = "HOVERLENS"

// envOverrides mirrors the settings that may come from the environment.
// Pointer fields stay nil when the variable is unset, so only variables
// that are present override the file.
type envOverrides struct {
	EconomyKind    *string `envconfig:"ECONOMY_KIND"`
	EconomyAPIKey  *string `envconfig:"ECONOMY_API_KEY"`
	EconomyBaseURL *string `envconfig:"ECONOMY_BASE_URL"`
	EconomyModel   *string `envconfig:"ECONOMY_MODEL"`

	PremiumKind    *string `envconfig:"PREMIUM_KIND"`
	PremiumAPIKey  *string `envconfig:"PREMIUM_API_KEY"`
	PremiumBaseURL *string `envconfig:"PREMIUM_BASE_URL"`
	PremiumModel   *string `envconfig:"PREMIUM_MODEL"`

	ComplexityThreshold *float64 `envconfig:"COMPLEXITY_THRESHOLD"`
	LocalOnly           *bool    `envconfig:"LOCAL_ONLY"`

	BudgetLimitUSD *float64 `envconfig:"BUDGET_LIMIT_USD"`
	BudgetPeriod   *string  `envconfig:"BUDGET_PERIOD"`

	CacheEnabled    *bool `envconfig:"CACHE_ENABLED"`
	CacheMaxEntries *int  `envconfig:"CACHE_MAX_ENTRIES"`

	StorageBackend *string `envconfig:"STORAGE_BACKEND"`
	StoragePath    *string `envconfig:"STORAGE_PATH"`

	LogLevel  *string `envconfig:"LOG_LEVEL"`
	LogFormat *string `envconfig:"LOG_FORMAT"`

	ServerAddr      *string `envconfig:"SERVER_ADDR"`
	ServerAuthToken *string `envconfig:"SERVER_AUTH_TOKEN"`
}

// vendorKeys are the conventional unprefixed key variables.
type vendorKeys struct {
	OpenAI     string `envconfig:"OPENAI_API_KEY"`
	Anthropic  string `envconfig:"ANTHROPIC_API_KEY"`
	OpenRouter string `envconfig:"OPENROUTER_API_KEY"`
}

// ApplyEnvOverrides applies HOVERLENS_* variables, then fills empty tier
// keys from the vendor variables matching the tier's kind.
func (c *Config) ApplyEnvOverrides() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}

	setString(&c.Economy.Kind, env.EconomyKind)
	setString(&c.Economy.APIKey, env.EconomyAPIKey)
	setString(&c.Economy.BaseURL, env.EconomyBaseURL)
	setString(&c.Economy.Model, env.EconomyModel)

	setString(&c.Premium.Kind, env.PremiumKind)
	setString(&c.Premium.APIKey, env.PremiumAPIKey)
	setString(&c.Premium.BaseURL, env.PremiumBaseURL)
	setString(&c.Premium.Model, env.PremiumModel)

	if env.ComplexityThreshold != nil {
		c.Routing.ComplexityThreshold = *env.ComplexityThreshold
	}
	if env.LocalOnly != nil {
		c.Routing.LocalOnly = *env.LocalOnly
	}
	if env.BudgetLimitUSD != nil {
		c.Budget.LimitUSD = *env.BudgetLimitUSD
	}
	setString(&c.Budget.Period, env.BudgetPeriod)
	if env.CacheEnabled != nil {
		c.Cache.Enabled = *env.CacheEnabled
	}
	if env.CacheMaxEntries != nil {
		c.Cache.MaxEntries = *env.CacheMaxEntries
	}
	setString(&c.Storage.Backend, env.StorageBackend)
	setString(&c.Storage.Path, env.StoragePath)
	setString(&c.Logging.Level, env.LogLevel)
	setString(&c.Logging.Format, env.LogFormat)
	setString(&c.Server.Addr, env.ServerAddr)
	setString(&c.Server.AuthToken, env.ServerAuthToken)

	var keys vendorKeys
	if err := envconfig.Process("", &keys); err != nil {
		return err
	}
	keys.fill(&c.Economy)
	keys.fill(&c.Premium)
	return nil
}

func (k vendorKeys) fill(p *ProviderConfig) {
	if p.APIKey != "" {
		return
	}
	switch provider.Kind(p.Kind) {
	case provider.KindOpenAI:
		p.APIKey = k.OpenAI
	case provider.KindAnthropic:
		p.APIKey = k.Anthropic
	case provider.KindOpenRouter:
		p.APIKey = k.OpenRouter
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
