// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads, validates and saves hoverlens configuration.
//
// Configuration file locations (in order of precedence):
//   - $HOVERLENS_CONFIG
//   - ~/.hoverlens/config.toml
//   - ~/.hoverlens/config.json
//   - ~/.hoverlens/config.yaml
//   - Built-in defaults
//
// Environment variables prefixed with HOVERLENS_ override file values, for
// example HOVERLENS_ECONOMY_API_KEY or HOVERLENS_BUDGET_LIMIT_USD. The
// conventional OPENAI_API_KEY, ANTHROPIC_API_KEY and OPENROUTER_API_KEY
// variables fill in a tier's key when the file leaves it empty.
//
// Example config.toml:
//
//	[economy]
//	kind = "openai"
//	model = "gpt-4o-mini"
//
//	[premium]
//	kind = "anthropic"
//	model = "claude-3-5-sonnet-latest"
//
//	[routing]
//	complexity_threshold = 0.6
//
//	[budget]
//	limit_usd = 10.0
//	period = "month"
//
// Watch reloads a config file when it changes so a running daemon can pick
// up new keys, models and budgets without a restart.
package config
