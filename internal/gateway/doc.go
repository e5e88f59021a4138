// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway is the single entry point for explanation requests.
//
// A request moves through a fixed sequence:
//
//	cache check -> budget check -> tier selection -> provider call
//	            -> ledger record -> cache store
//
// A cache hit returns immediately without touching the budget or any
// provider. A failed budget check or provider call leaves the cache and
// ledger untouched. Cache and ledger storage faults are logged and never
// fail a request.
//
// The Gateway owns its cache, ledger and store for its whole lifetime.
// Reconfigure swaps providers and routing settings atomically; requests
// already in flight finish with the settings they started with.
package gateway
