// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// usage_cmd.go - Spending history commands.
//
// Command: usage [subcommand]
// Short:   Show or reset recorded spending
// Aliases: spend
//
// Subcommands:
//   stats (default)     Totals, budget status and breakdowns
//   reset               Discard history (--archive keeps a snapshot)
//
// Examples:
//   hoverlens usage
//   hoverlens usage --days 30
//   hoverlens usage stats --json
//   hoverlens usage reset --archive --yes

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jeranaias/hoverlens/internal/ledger"
)

const usageUsage = "hoverlens usage [stats|reset [--archive] [--yes]] [--days N] [--json]"

// Usage handles "usage".
func (r *Runner) Usage(ctx context.Context, args Args) error {
	p := args.Parser
	switch p.Subcommand() {
	case "", "stats":
	case "reset":
	default:
		return NewUsageError(usageUsage, "unknown usage subcommand: %s", p.Subcommand())
	}
	days, err := p.FlagInt("days", 7)
	if err != nil {
		return NewUsageError(usageUsage, "%v", err)
	}

	gw, _, err := r.openGateway(ctx, args)
	if err != nil {
		return err
	}
	defer gw.Close()

	if p.Subcommand() == "reset" {
		mode := ledger.ResetClear
		if p.BoolFlag("archive") {
			mode = ledger.ResetArchive
		}
		ok, err := r.confirm("reset usage history", ConfirmationOptions{
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

		key, err := gw.ResetUsage(ctx, mode)
		if err != nil {
			return err
		}
		if args.JSON {
			return r.printJSON("usage reset", map[string]string{"mode": string(mode), "archive": key})
		}
		if key != "" {
			fmt.Fprintf(r.Stdout, "%s Usage history archived as %s and cleared.\n", SuccessStyle.Render("[OK]"), key)
		} else {
			fmt.Fprintf(r.Stdout, "%s Usage history cleared.\n", SuccessStyle.Render("[OK]"))
		}
		return nil
	}

	stats := gw.UsageStats()
	if args.JSON {
		return r.printJSON("usage stats", stats)
	}
	renderUsage(r.Stdout, stats, days, time.Now())
	return nil
}

// renderUsage prints stats as styled text.
func renderUsage(w io.Writer, s ledger.Stats, days int, now time.Time) {
	fmt.Fprintln(w, TitleStyle.Render("Usage"))
	fmt.Fprintln(w, RenderSeparator())

	fmt.Fprintln(w, SectionStyle.Render("Budget"))
	if s.Limit == 0 {
		fmt.Fprintln(w, RenderField("Limit:", "unlimited"))
		fmt.Fprintln(w, RenderField("This "+string(s.Period)+":", formatUSD(s.PeriodCost)))
	} else {
		pct := float64(s.PeriodCost) / float64(s.Limit) * 100
		fmt.Fprintln(w, RenderField("Limit:", fmt.Sprintf("%s per %s", formatUSD(s.Limit), s.Period)))
		fmt.Fprintln(w, RenderField("Spent:", fmt.Sprintf("%s (%.0f%%)", formatUSD(s.PeriodCost), pct)))
		fmt.Fprintln(w, RenderField("Remaining:", formatUSD(s.Remaining)))
	}
	status := SuccessStyle.Render("within budget")
	if !s.CanSpend {
		status = ErrorStyle.Render("limit reached")
	}
	fmt.Fprintln(w, RenderField("Status:", status))

	fmt.Fprintln(w, SectionStyle.Render("Totals"))
	fmt.Fprintln(w, RenderField("Requests:", fmt.Sprintf("%d", s.TotalRequests)))
	fmt.Fprintln(w, RenderField("Tokens:", fmt.Sprintf("%d", s.TotalTokens)))
	fmt.Fprintln(w, RenderField("Cost:", HighlightStyle.Render(formatUSD(s.TotalCost))))
	fmt.Fprintln(w, RenderField("Last 24h:", formatUSD(s.LastDay)))
	fmt.Fprintln(w, RenderField("Last 7 days:", formatUSD(s.LastWeek)))
	fmt.Fprintln(w, RenderField("Last 30 days:", formatUSD(s.LastMonth)))
	if s.Oldest != nil {
		fmt.Fprintln(w, RenderField("Since:", formatAge(now, *s.Oldest)))
	}

	renderBreakdowns(w, "By provider", s.ByProvider)
	renderBreakdowns(w, "By model", s.ByModel)

	if len(s.DailyBreakdown) > 0 {
		fmt.Fprintln(w, SectionStyle.Render("Daily"))
		daily := s.DailyBreakdown
		if len(daily) > days {
			daily = daily[len(daily)-days:]
		}
		widths := []int{12, 12, 10, 8}
		fmt.Fprintln(w, DimStyle.Render(RenderRow(widths, "DATE", "COST", "TOKENS", "REQS")))
		for _, d := range daily {
			fmt.Fprintln(w, RenderRow(widths, d.Date.Format("2006-01-02"), formatUSD(d.Cost),
				fmt.Sprintf("%d", d.Tokens), fmt.Sprintf("%d", d.Requests)))
		}
	}
}

func renderBreakdowns(w io.Writer, title string, rows []ledger.Breakdown) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintln(w, SectionStyle.Render(title))
	widths := []int{32, 12, 10, 8}
	fmt.Fprintln(w, DimStyle.Render(RenderRow(widths, "NAME", "COST", "TOKENS", "REQS")))
	for _, b := range rows {
		name := b.Name
		if name == "" {
			name = "(unknown)"
		}
		fmt.Fprintln(w, RenderRow(widths, name, formatUSD(b.Cost),
			fmt.Sprintf("%d", b.Tokens), fmt.Sprintf("%d", b.Requests)))
	}
}
