// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pricing holds the money type and per-model price tables used to
// bill provider calls.
//
// # Units
//
// All amounts are integer micro-dollars (Micros). Prices are expressed per
// 1K tokens with an input/output split. Each component of a call's cost is
// rounded half-up to the nearest micro-dollar before summing, so ledger sums
// never drift.
//
// # Usage
//
//	price, _ := pricing.OpenAI.Lookup("gpt-4o-mini")
//	cost := price.Cost(promptTokens, completionTokens)
//	fmt.Println(cost) // $0.000450
package pricing
