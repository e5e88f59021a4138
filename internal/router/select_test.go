// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tierPtr(t Tier) *Tier { return &t }

func TestSelectTier(t *testing.T) {
	both := Availability{Economy: true, Premium: true}

	tests := []struct {
		name     string
		score    float64
		avail    Availability
		override *Tier
		want     Tier
		wantErr  bool
	}{
		{"below threshold", 0.59, both, nil, TierEconomy, false},
		{"at threshold", 0.6, both, nil, TierPremium, false},
		{"above threshold", 0.9, both, nil, TierPremium, false},
		{"override premium on low score", 0.1, both, tierPtr(TierPremium), TierPremium, false},
		{"override economy on high score", 0.95, both, tierPtr(TierEconomy), TierEconomy, false},
		{"only economy, high score", 0.99, Availability{Economy: true}, nil, TierEconomy, false},
		{"only premium, low score", 0.01, Availability{Premium: true}, nil, TierPremium, false},
		{"override unavailable tier", 0.5, Availability{Economy: true}, tierPtr(TierPremium), 0, true},
		{"nothing configured", 0.5, Availability{}, nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := SelectTier(tt.score, DefaultThreshold, tt.avail, tt.override)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrTierUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Tier)
			assert.NotEmpty(t, d.Reason)
			assert.Equal(t, tt.score, d.Score)
		})
	}
}

func TestParseTier(t *testing.T) {
	for in, want := range map[string]Tier{
		"economy": TierEconomy,
		"FAST":    TierEconomy,
		"premium": TierPremium,
		" smart ": TierPremium,
	} {
		got, err := ParseTier(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseTier("gold")
	assert.Error(t, err)
}

func TestTierJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Tier Tier `json:"tier"`
	}{TierPremium})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tier":"premium"}`, string(b))

	var out struct {
		Tier Tier `json:"tier"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"tier":"economy"}`), &out))
	assert.Equal(t, TierEconomy, out.Tier)

	assert.Equal(t, "tier(7)", Tier(7).String())
}
