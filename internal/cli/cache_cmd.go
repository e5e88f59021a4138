// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cache_cmd.go - Response cache commands.
//
// Command: cache [subcommand]
// Short:   Inspect or clear cached explanations
//
// Subcommands:
//   stats (default)     Entry count, hit rate, size and age
//   clear               Drop every cached explanation
//
// Examples:
//   hoverlens cache
//   hoverlens cache stats --json
//   hoverlens cache clear --yes
//
// Statistics Explained:
//   Entries     Number of cached explanations
//   Hit Rate    Share of lookups served from cache since the process started
//   Size        Approximate size of cached text

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jeranaias/hoverlens/internal/cache"
)

const cacheUsage = "hoverlens cache [stats|clear [--yes]] [--json]"

// Cache handles "cache".
func (r *Runner) Cache(ctx context.Context, args Args) error {
	p := args.Parser
	sub := p.Subcommand()
	if sub != "" && sub != "stats" && sub != "clear" {
		return NewUsageError(cacheUsage, "unknown cache subcommand: %s", sub)
	}

	gw, cfg, err := r.openGateway(ctx, args)
	if err != nil {
		return err
	}
	defer gw.Close()

	if sub == "clear" {
		ok, err := r.confirm("clear the response cache", ConfirmationOptions{
			Yes:      p.BoolFlag("yes") || p.BoolFlag("y"),
			JSONMode: args.JSON,
		})
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(r.Stdout, "Cancelled.")
			return nil
		}
		removed := gw.CacheStats().Entries
		gw.ClearCache()
		if args.JSON {
			return r.printJSON("cache clear", map[string]int{"removed": removed})
		}
		fmt.Fprintf(r.Stdout, "%s Removed %d cached explanations.\n", SuccessStyle.Render("[OK]"), removed)
		return nil
	}

	stats := gw.CacheStats()
	if args.JSON {
		return r.printJSON("cache stats", stats)
	}
	renderCacheStats(r.Stdout, stats, cfg.Cache.Enabled, cfg.CacheTTL(), time.Now())
	return nil
}

func renderCacheStats(w io.Writer, s cache.Stats, enabled bool, ttl time.Duration, now time.Time) {
	fmt.Fprintln(w, TitleStyle.Render("Cache"))
	fmt.Fprintln(w, RenderSeparator())

	status := SuccessStyle.Render("enabled")
	if !enabled {
		status = WarningStyle.Render("disabled")
	}
	fmt.Fprintln(w, RenderField("Status:", status))
	fmt.Fprintln(w, RenderField("Entries:", fmt.Sprintf("%d / %d", s.Entries, s.MaxEntries)))
	fmt.Fprintln(w, RenderField("Hit Rate:", fmt.Sprintf("%.1f%% (%d hits, %d misses)", s.HitRate*100, s.Hits, s.Misses)))
	fmt.Fprintln(w, RenderField("Size:", formatBytes(s.SizeBytes)))
	fmt.Fprintln(w, RenderField("TTL:", ttl.String()))
	if s.Oldest != nil {
		fmt.Fprintln(w, RenderField("Oldest:", formatAge(now, *s.Oldest)))
	}
	if s.Newest != nil {
		fmt.Fprintln(w, RenderField("Newest:", formatAge(now, *s.Newest)))
	}
}
