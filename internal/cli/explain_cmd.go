// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// explain_cmd.go - The explain command.
//
// Command: explain [file|-]
// Short:   Explain a snippet with the cheapest adequate model
// Aliases: x
//
// Examples:
//   hoverlens explain main.go
//   cat query.sql | hoverlens explain --lang sql
//   hoverlens explain util.py --tier premium --json
//   hoverlens explain big.rs --dry-run
//
// Flags:
//   --lang L            Language; detected from the file name when omitted
//   --context C         Surrounding code or a short description
//   --tier T            economy or premium
//   --no-cache          Skip the cache lookup (the answer is still cached)
//   --dry-run           Print the routing decision without calling a provider
//   --json              Output in JSON format

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/hoverlens/internal/gateway"
	"github.com/jeranaias/hoverlens/internal/router"
)

const explainUsage = "hoverlens explain [file|-] [--lang L] [--context C] [--tier economy|premium] [--no-cache] [--dry-run] [--json]"

// MaxInputSize bounds code read from a file or stdin.
const MaxInputSize = 1 << 20

// Explain handles "explain".
func (r *Runner) Explain(ctx context.Context, args Args) error {
	p := args.Parser
	if p.PositionalCount() > 1 {
		return NewUsageError(explainUsage, "expected at most one file, got %d", p.PositionalCount())
	}

	source := p.Positional(0)
	code, err := r.readSource(source)
	if err != nil {
		return err
	}
	if strings.TrimSpace(code) == "" {
		return NewUsageError(explainUsage, "no code to explain")
	}

	req := gateway.Request{
		Code:     code,
		Context:  p.Flag("context"),
		Language: p.FlagOrDefault("lang", detectLanguage(source)),
		NoCache:  p.BoolFlag("no-cache"),
	}
	if name := p.Flag("tier"); name != "" {
		tier, err := router.ParseTier(name)
		if err != nil {
			return NewUsageError(explainUsage, "%v", err)
		}
		req.Tier = &tier
	}

	gw, _, err := r.openGateway(ctx, args)
	if err != nil {
		return err
	}
	defer gw.Close()

	if p.BoolFlag("dry-run") {
		decision, err := gw.Route(req)
		if err != nil {
			return err
		}
		if args.JSON {
			return r.printJSON("explain", decision)
		}
		fmt.Fprintln(r.Stdout, RenderField("Tier:", decision.Tier.String()))
		fmt.Fprintln(r.Stdout, RenderField("Score:", fmt.Sprintf("%.2f (threshold %.2f)", decision.Score, decision.Threshold)))
		fmt.Fprintln(r.Stdout, RenderField("Reason:", decision.Reason))
		return nil
	}

	res, err := gw.Analyze(ctx, req)
	if err != nil {
		return err
	}
	if args.JSON {
		return r.printJSON("explain", res)
	}

	fmt.Fprintln(r.Stdout, r.renderMarkdown(res.Text))
	fmt.Fprintln(r.Stderr, DimStyle.Render(explainFooter(res)))
	return nil
}

// readSource reads a file, or stdin for "" and "-". A bare "explain" on an
// interactive terminal is a usage error rather than a silent wait.
func (r *Runner) readSource(source string) (string, error) {
	var in io.Reader
	switch source {
	case "", "-":
		if source == "" && r.StdinIsTTY() {
			return "", NewUsageError(explainUsage, "no input: pass a file or pipe code on stdin")
		}
		in = r.Stdin
	default:
		f, err := os.Open(source)
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", source, err)
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(io.LimitReader(in, MaxInputSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	if len(data) > MaxInputSize {
		return "", NewUsageError(explainUsage, "input exceeds %s", formatBytes(MaxInputSize))
	}
	return string(data), nil
}

// detectLanguage guesses a language from a file name using chroma's lexer
// registry. It returns "" when nothing matches.
func detectLanguage(path string) string {
	if path == "" || path == "-" {
		return ""
	}
	lexer := lexers.Match(path)
	if lexer == nil {
		return ""
	}
	return strings.ToLower(lexer.Config().Name)
}

// renderMarkdown renders text for a terminal with glamour. Plain text is
// returned for pipes or when rendering fails.
func (r *Runner) renderMarkdown(text string) string {
	enabled := IsTerminal(r.Stdout)
	if r.Markdown != nil {
		enabled = *r.Markdown
	}
	if !enabled {
		return text
	}

	style := glamour.WithAutoStyle()
	if !ColorsEnabled() {
		style = glamour.WithStandardStyle("notty")
	}
	renderer, err := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(min(TerminalWidth(r.Stdout), MaxRenderWidth)),
	)
	if err != nil {
		return text
	}
	out, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// explainFooter summarizes how a request was served.
func explainFooter(res *gateway.Result) string {
	if res.Cached {
		return "cached · " + formatDurationShort(res.Duration)
	}
	parts := []string{res.Tier.String(), res.Provider}
	if res.Model != "" {
		parts = append(parts, res.Model)
	}
	parts = append(parts,
		formatUSD(res.Cost),
		fmt.Sprintf("%d tokens", res.Tokens),
		formatDurationShort(res.Duration))
	if res.Shared {
		parts = append(parts, "shared")
	}
	return strings.Join(parts, " · ")
}
