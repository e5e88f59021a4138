// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router decides which model tier should explain a piece of code.
//
// Two tiers exist: Economy (cheap, fast) and Premium (capable, expensive).
// A heuristic complexity score in [0,1] is computed from the code, the
// surrounding context and the language tag; scores at or above the
// configured threshold go to Premium.
//
// # Key Types
//
//   - Tier: Economy or Premium
//   - Analysis: the score plus its per-factor breakdown
//   - Decision: the chosen tier and why it was chosen
//
// # Usage
//
//	score := router.Score(code, context, "typescript")
//	d, err := router.SelectTier(score, router.DefaultThreshold,
//	    router.Availability{Economy: true, Premium: true}, nil)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(d.Tier, d.Reason)
//
// Scoring is pure and deterministic: the same inputs always give the same
// score, and the score never decreases as code grows longer or nests deeper.
package router
