// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jeranaias/hoverlens/internal/config"
	"github.com/jeranaias/hoverlens/internal/offline"
	"github.com/jeranaias/hoverlens/internal/provider"
	"github.com/jeranaias/hoverlens/internal/router"
)

// runtime is an immutable snapshot of everything a request needs from
// configuration. Reconfigure replaces it as a whole.
type runtime struct {
	tiers        map[router.Tier]*tierState
	threshold    float64
	timeout      time.Duration
	cacheEnabled bool
	dedupe       bool
	localOnly    bool
}

type tierState struct {
	tier     router.Tier
	kind     string
	provider provider.Provider
	// reason is set when the tier cannot serve requests.
	reason string
}

func (t *tierState) available() bool {
	return t != nil && t.provider != nil && t.reason == ""
}

// buildRuntime constructs providers for every enabled tier. A tier that is
// missing credentials or blocked by local-only routing is kept with a
// reason so Models can report it.
func buildRuntime(cfg *config.Config, newProvider ProviderFactory, log *slog.Logger) (*runtime, error) {
	rt := &runtime{
		tiers:        make(map[router.Tier]*tierState, len(router.AllTiers)),
		threshold:    cfg.Routing.ComplexityThreshold,
		timeout:      cfg.RequestTimeout(),
		cacheEnabled: cfg.Cache.Enabled,
		dedupe:       cfg.Gateway.DedupeInflight,
		localOnly:    cfg.Routing.LocalOnly,
	}
	if rt.timeout <= 0 {
		rt.timeout = time.Duration(config.DefaultRequestTimeoutSecs) * time.Second
	}

	for _, tier := range router.AllTiers {
		pc := cfg.Tier(tier)
		state := &tierState{tier: tier, kind: pc.Kind}
		rt.tiers[tier] = state

		if !pc.Enabled() {
			state.reason = "not configured"
			continue
		}
		p, err := newProvider(pc.Adapter(log))
		if err != nil {
			return nil, fmt.Errorf("%s tier: %w", tier, err)
		}
		state.provider = p

		switch {
		case !p.IsConfigured():
			state.reason = "missing credentials"
		case offline.CheckEndpoint(p.Endpoint(), rt.localOnly) != nil:
			state.reason = "blocked by local-only routing"
		}
	}
	return rt, nil
}

func (rt *runtime) availability() router.Availability {
	return router.Availability{
		Economy: rt.tiers[router.TierEconomy].available(),
		Premium: rt.tiers[router.TierPremium].available(),
	}
}
