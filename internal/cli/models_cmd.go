// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models_cmd.go - The models command.
//
// Command: models
// Short:   Show each tier's provider, default model and availability
// Aliases: tiers

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/hoverlens/internal/gateway"
	"github.com/jeranaias/hoverlens/internal/offline"
	"github.com/jeranaias/hoverlens/internal/util"
)

// modelsOutput is the --json payload.
type modelsOutput struct {
	Mode      string             `json:"mode"`
	Threshold float64            `json:"complexity_threshold"`
	Tiers     []gateway.TierInfo `json:"tiers"`
}

// Models handles "models".
func (r *Runner) Models(ctx context.Context, args Args) error {
	if args.Parser.PositionalCount() > 0 {
		return NewUsageError("hoverlens models [--json]", "models takes no arguments")
	}
	gw, cfg, err := r.openGateway(ctx, args)
	if err != nil {
		return err
	}
	defer gw.Close()

	out := modelsOutput{
		Mode:      offline.StatusBadge(cfg.Routing.LocalOnly),
		Threshold: cfg.Routing.ComplexityThreshold,
		Tiers:     gw.Models(),
	}
	if args.JSON {
		return r.printJSON("models", out)
	}
	renderModels(r.Stdout, out)
	return nil
}

func renderModels(w io.Writer, out modelsOutput) {
	badge := SuccessStyle.Render(out.Mode)
	if out.Mode == offline.StatusBadge(true) {
		badge = WarningStyle.Render(out.Mode)
	}
	fmt.Fprintf(w, "%s  %s\n", TitleStyle.Render("Models"), badge)
	fmt.Fprintln(w, RenderSeparator())
	fmt.Fprintln(w, RenderField("Threshold:", fmt.Sprintf("%.2f (score >= threshold uses premium)", out.Threshold)))

	for _, t := range out.Tiers {
		fmt.Fprintln(w, SectionStyle.Render(t.Tier.String()))
		status := "available"
		detail := "ready"
		if !t.Available {
			status = "unavailable"
			detail = t.Reason
		}
		fmt.Fprintln(w, RenderField("Status:", RenderStatus(status)+" "+detail))
		if t.Kind != "" {
			fmt.Fprintln(w, RenderField("Provider:", t.Kind))
		}
		if t.Model != "" {
			fmt.Fprintln(w, RenderField("Model:", t.Model))
		}
		if t.Endpoint != "" {
			fmt.Fprintln(w, RenderField("Endpoint:", t.Endpoint))
		}
		if len(t.Models) > 0 {
			fmt.Fprintln(w, RenderField("Priced models:", util.TruncateRunes(strings.Join(t.Models, ", "), 72)))
		}
	}
}
