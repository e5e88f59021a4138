// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/hoverlens/internal/cache"
	"github.com/jeranaias/hoverlens/internal/config"
	"github.com/jeranaias/hoverlens/internal/ledger"
	"github.com/jeranaias/hoverlens/internal/router"
)

// =============================================================================
// RECONFIGURE
// =============================================================================

// Reconfigure applies cfg. Providers and routing settings are rebuilt and
// swapped in one step; cache limits and the budget are updated in place.
// Storage settings only take effect on restart.
func (g *Gateway) Reconfigure(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	rt, err := buildRuntime(cfg, g.newProvider, g.baseLog)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if cfg.Storage != g.cfg.Storage {
		g.log.Warn("storage settings changed; restart to apply",
			"backend", cfg.Storage.Backend, "path", cfg.Storage.Path)
	}

	g.rt.Store(rt)
	g.cache.Resize(cfg.Cache.MaxEntries)
	g.cache.SetTTL(cfg.CacheTTL())
	g.ledger.SetBudget(cfg.BudgetLimit(), cfg.BudgetPeriod())
	g.cfg = cfg.Clone()

	avail := rt.availability()
	g.log.Info("gateway reconfigured",
		"economy", avail.Economy,
		"premium", avail.Premium,
		"threshold", rt.threshold,
		"budget", cfg.BudgetLimit().String(),
		"period", cfg.BudgetPeriod())
	return nil
}

// Config returns a copy of the last applied configuration.
func (g *Gateway) Config() *config.Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg.Clone()
}

// =============================================================================
// INSPECTION
// =============================================================================

// Models describes both tiers in economy, premium order.
func (g *Gateway) Models() []TierInfo {
	rt := g.rt.Load()
	out := make([]TierInfo, 0, len(router.AllTiers))
	for _, tier := range router.AllTiers {
		st := rt.tiers[tier]
		info := TierInfo{
			Tier:      tier,
			Kind:      st.kind,
			Available: st.available(),
			Reason:    st.reason,
		}
		if st.provider != nil {
			info.Provider = st.provider.Name()
			info.Model = st.provider.DefaultModel()
			info.Models = st.provider.ListModels()
			info.Endpoint = st.provider.Endpoint()
		}
		out = append(out, info)
	}
	return out
}

// UsageStats returns a snapshot of recorded usage and budget state.
func (g *Gateway) UsageStats() ledger.Stats {
	return g.ledger.Stats()
}

// CacheStats returns a snapshot of cache state.
func (g *Gateway) CacheStats() cache.Stats {
	return g.cache.Stats()
}

// CanSpend reports whether the budget allows another billed call.
func (g *Gateway) CanSpend() bool {
	return g.ledger.CanSpend()
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// ClearCache drops every cached response.
func (g *Gateway) ClearCache() {
	g.cache.Clear()
	g.log.Info("cache cleared")
}

// ResetUsage clears usage history. In archive mode the history is saved
// first and the archive key is returned.
func (g *Gateway) ResetUsage(ctx context.Context, mode ledger.ResetMode) (string, error) {
	key, err := g.ledger.Reset(ctx, mode)
	if err != nil {
		return "", fmt.Errorf("failed to reset usage: %w", err)
	}
	g.log.Info("usage reset", "mode", mode, "archive", key)
	return key, nil
}

// Maintain purges expired cache entries and usage past retention.
func (g *Gateway) Maintain() (expired, purged int) {
	expired = g.cache.PurgeExpired()
	retention := g.Config().Retention()
	purged = g.ledger.Purge(g.now().Add(-retention))
	if expired > 0 || purged > 0 {
		g.log.Debug("maintenance", "expired_entries", expired, "purged_records", purged)
	}
	return expired, purged
}

// RunMaintenance calls Maintain every interval until ctx is done.
func (g *Gateway) RunMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Maintain()
		}
	}
}

// Close writes batched cache and ledger changes, then releases the store.
func (g *Gateway) Close() error {
	g.closeOnce.Do(func() {
		g.closed.Store(true)
		g.cache.Flush()
		g.ledger.Flush()
		g.closeErr = g.store.Close()
	})
	return g.closeErr
}
