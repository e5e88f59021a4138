// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and dispatch for hoverlens.

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jeranaias/hoverlens/internal/config"
	"github.com/jeranaias/hoverlens/internal/gateway"
	"github.com/jeranaias/hoverlens/internal/ledger"
	"github.com/jeranaias/hoverlens/internal/logging"
)

// Version information, set at build time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdExplain
	CmdServe
	CmdUsage
	CmdCache
	CmdModels
	CmdConfig
	CmdVersion
)

var commandNames = map[Command]string{
	CmdHelp:    "help",
	CmdExplain: "explain",
	CmdServe:   "serve",
	CmdUsage:   "usage",
	CmdCache:   "cache",
	CmdModels:  "models",
	CmdConfig:  "config",
	CmdVersion: "version",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// boolFlags lists each command's boolean flags so they never consume the
// following argument.
var boolFlags = map[Command][]string{
	CmdExplain: {"no-cache", "dry-run"},
	CmdUsage:   {"archive", "yes", "y"},
	CmdCache:   {"yes", "y"},
	CmdConfig:  {"force"},
}

// Args holds parsed CLI arguments.
type Args struct {
	Command Command

	// Global flags, accepted anywhere on the line.
	ConfigPath string // --config
	JSON       bool   // --json
	Verbose    bool   // --verbose

	// Parser holds everything after the command word.
	Parser *ArgParser
}

const usageText = `hoverlens - cost-aware code explanations from LLM providers

Usage:
  hoverlens explain [file|-]           Explain code from a file or stdin
      --lang L                         Language (detected from the file name)
      --context C                      Surrounding code or a short description
      --tier economy|premium           Force a tier instead of classifying
      --no-cache                       Skip the cache lookup
      --dry-run                        Show the routing decision only
  hoverlens serve [--addr A]           Run the HTTP daemon
  hoverlens usage [stats|reset]        Spending history (reset: --archive, --yes)
      --days N                         Days of daily breakdown to show (default 7)
  hoverlens cache [stats|clear]        Response cache (clear: --yes)
  hoverlens models                     Configured tiers and their models
  hoverlens config [show|path|init|get|set|keys]
  hoverlens version

Global flags:
  --config PATH     Use this config file
  --json            Machine-readable output
  --verbose         Debug logging on stderr

Environment:
  OPENAI_API_KEY, ANTHROPIC_API_KEY, OPENROUTER_API_KEY   Vendor keys
  HOVERLENS_CONFIG                                        Config file path
  HOVERLENS_*                                             Setting overrides
`

// =============================================================================
// PARSING
// =============================================================================

// Parse parses argv (without the program name).
func Parse(argv []string) (Args, error) {
	var args Args
	rest := make([]string, 0, len(argv))

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "--":
			rest = append(rest, argv[i:]...)
			i = len(argv)
		case arg == "--json":
			args.JSON = true
		case arg == "--verbose":
			args.Verbose = true
		case arg == "--config":
			if i+1 >= len(argv) {
				return args, NewUsageError("", "--config requires a path")
			}
			args.ConfigPath = argv[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			rest = append(rest, arg)
		}
	}

	if len(rest) == 0 {
		args.Parser = NewArgParser(nil)
		return args, nil
	}

	switch rest[0] {
	case "explain", "x":
		args.Command = CmdExplain
	case "serve", "daemon":
		args.Command = CmdServe
	case "usage", "spend":
		args.Command = CmdUsage
	case "cache":
		args.Command = CmdCache
	case "models", "tiers":
		args.Command = CmdModels
	case "config":
		args.Command = CmdConfig
	case "version", "-v", "--version":
		args.Command = CmdVersion
	case "help", "-h", "--help":
		args.Command = CmdHelp
	default:
		return args, NewUsageError("hoverlens help", "unknown command: %s", rest[0])
	}
	args.Parser = NewArgParser(rest[1:], boolFlags[args.Command]...)
	return args, nil
}

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes commands against its streams. Tests swap the streams and
// inject gateway options.
type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Gateway is passed to every gateway the runner opens. A nil Logger is
	// replaced by one built from the config.
	Gateway gateway.Options

	// Markdown forces terminal markdown rendering on or off. Nil renders
	// only when stdout is a terminal.
	Markdown *bool
}

// NewRunner returns a runner bound to the process streams.
func NewRunner() *Runner {
	return &Runner{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// StdinIsTTY reports whether stdin is an interactive terminal.
func (r *Runner) StdinIsTTY() bool {
	return IsTerminal(r.Stdin)
}

// Run executes args.Command.
func (r *Runner) Run(ctx context.Context, args Args) error {
	switch args.Command {
	case CmdExplain:
		return r.Explain(ctx, args)
	case CmdServe:
		return r.Serve(ctx, args)
	case CmdUsage:
		return r.Usage(ctx, args)
	case CmdCache:
		return r.Cache(ctx, args)
	case CmdModels:
		return r.Models(ctx, args)
	case CmdConfig:
		return r.Config(args)
	case CmdVersion:
		return r.Version(args)
	default:
		fmt.Fprint(r.Stdout, usageText)
		return nil
	}
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// loadConfig loads --config when given, otherwise the usual search path.
func (r *Runner) loadConfig(args Args) (*config.Config, error) {
	if args.ConfigPath != "" {
		return config.LoadFromPath(args.ConfigPath)
	}
	return config.Load()
}

// configPath returns the file config commands read and write: --config,
// then an existing file, then the default location.
func configPath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	path, err := config.Locate()
	if err != nil || path != "" {
		return path, err
	}
	return config.DefaultPath()
}

// newLogger builds the stderr logger. One-shot commands only log warnings
// unless --verbose is set.
func (r *Runner) newLogger(cfg *config.Config, args Args) *slog.Logger {
	logCfg := cfg.Logging
	switch {
	case args.Verbose:
		logCfg.Level = "debug"
	case args.Command != CmdServe:
		logCfg.Level = "warn"
	}
	return logging.New(logCfg, r.Stderr)
}

// openGateway loads config and opens a gateway for one-shot commands.
func (r *Runner) openGateway(ctx context.Context, args Args) (*gateway.Gateway, *config.Config, error) {
	cfg, err := r.loadConfig(args)
	if err != nil {
		return nil, nil, err
	}

	opts := r.Gateway
	if opts.Logger == nil {
		opts.Logger = r.newLogger(cfg, args)
	}
	if opts.OnAlert == nil {
		opts.OnAlert = r.printAlert
	}
	gw, err := gateway.New(ctx, cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	gw.Maintain()
	return gw, cfg, nil
}

// printAlert reports a crossed budget threshold on stderr.
func (r *Runner) printAlert(a ledger.Alert) {
	fmt.Fprintf(r.Stderr, "%s %.0f%% of the %s budget used (%s of %s)\n",
		WarningStyle.Render("[BUDGET]"), a.Threshold*100, a.Period,
		formatUSD(a.PeriodCost), formatUSD(a.Limit))
}

// printJSON writes a successful --json envelope.
func (r *Runner) printJSON(command string, data any) error {
	return NewJSONResponse(command, data).Print(r.Stdout)
}
