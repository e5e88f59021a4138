// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"errors"
	"fmt"
)

// DefaultThreshold is the score at or above which Premium is chosen.
const DefaultThreshold = 0.6

// ErrTierUnavailable indicates no configured tier can serve the request.
var ErrTierUnavailable = errors.New("no tier available")

// Availability records which tiers have a configured provider.
type Availability struct {
	Economy bool
	Premium bool
}

// Has reports whether tier t is available.
func (a Availability) Has(t Tier) bool {
	switch t {
	case TierEconomy:
		return a.Economy
	case TierPremium:
		return a.Premium
	}
	return false
}

// Count returns the number of available tiers.
func (a Availability) Count() int {
	n := 0
	if a.Economy {
		n++
	}
	if a.Premium {
		n++
	}
	return n
}

// Decision is the outcome of tier selection.
type Decision struct {
	Tier      Tier    `json:"tier"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Reason    string  `json:"reason"`
}

// SelectTier picks the tier for a request.
//
// Rules, in order:
//  1. An explicit override is honored if that tier is available
//  2. With a single available tier, that tier is always used
//  3. score >= threshold selects Premium, anything lower selects Economy
func SelectTier(score, threshold float64, avail Availability, override *Tier) (Decision, error) {
	d := Decision{Score: score, Threshold: threshold}

	if override != nil {
		if !avail.Has(*override) {
			return d, fmt.Errorf("%w: %s tier requested but not configured", ErrTierUnavailable, *override)
		}
		d.Tier = *override
		d.Reason = "explicit override"
		return d, nil
	}

	switch avail.Count() {
	case 0:
		return d, ErrTierUnavailable
	case 1:
		d.Tier = TierEconomy
		if avail.Premium {
			d.Tier = TierPremium
		}
		d.Reason = "only configured tier"
		return d, nil
	}

	if score >= threshold {
		d.Tier = TierPremium
		d.Reason = fmt.Sprintf("score %.2f >= threshold %.2f", score, threshold)
	} else {
		d.Tier = TierEconomy
		d.Reason = fmt.Sprintf("score %.2f < threshold %.2f", score, threshold)
	}
	return d, nil
}
