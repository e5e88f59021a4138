// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline decides whether a provider endpoint keeps source code on
// the local machine.
//
// With routing.local_only enabled the gateway only routes to tiers whose
// base URL resolves to a loopback host (typically a local Ollama instance).
// Scheme validation applies in every mode: only http and https endpoints
// are accepted.
//
// Usage:
//
//	if err := offline.CheckEndpoint(cfg.BaseURL, true); err != nil {
//	    // tier is not usable in local-only mode
//	}
package offline
