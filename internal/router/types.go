// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"
	"strings"
)

// ============================================================================
// TIER TYPE
// ============================================================================

// Tier is a class of model chosen per request.
// Ordered by cost: Economy < Premium.
type Tier int

const (
	// TierEconomy is the cheap, fast model tier.
	TierEconomy Tier = iota
	// TierPremium is the capable, expensive model tier.
	TierPremium
)

// AllTiers lists every tier in cost order.
var AllTiers = []Tier{TierEconomy, TierPremium}

// String returns the lower-case name of the tier.
func (t Tier) String() string {
	switch t {
	case TierEconomy:
		return "economy"
	case TierPremium:
		return "premium"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// IsValid reports whether t is a known tier.
func (t Tier) IsValid() bool {
	return t == TierEconomy || t == TierPremium
}

// ParseTier parses a tier name. "fast" and "cheap" are accepted for Economy,
// "smart" and "best" for Premium.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "economy", "fast", "cheap":
		return TierEconomy, nil
	case "premium", "smart", "best":
		return TierPremium, nil
	default:
		return 0, fmt.Errorf("unknown tier %q (want economy or premium)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ============================================================================
// ANALYSIS
// ============================================================================

// Factors is the per-factor breakdown of a complexity score. Each field is
// the contribution of that factor after its cap has been applied.
type Factors struct {
	Length     float64 `json:"length"`
	Lines      float64 `json:"lines"`
	Nesting    float64 `json:"nesting"`
	Constructs float64 `json:"constructs"`
	Language   float64 `json:"language"`
	Functions  float64 `json:"functions"`
	Context    float64 `json:"context"`
}

// Sum adds all factor contributions.
func (f Factors) Sum() float64 {
	return f.Length + f.Lines + f.Nesting + f.Constructs + f.Language + f.Functions + f.Context
}

// Analysis is the result of scoring a code fragment.
type Analysis struct {
	Score     float64 `json:"score"`
	Language  string  `json:"language"`
	Runes     int     `json:"runes"`
	LineCount int     `json:"line_count"`
	MaxDepth  int     `json:"max_depth"`
	Factors   Factors `json:"factors"`
}
