// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ARG PARSER TESTS
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		boolNames []string
		wantSub   string
		validate  func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"stats"},
			wantSub: "stats",
		},
		{
			name:    "flag with value",
			args:    []string{"stats", "--days", "30"},
			wantSub: "stats",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "30", p.Flag("days"))
				assert.Equal(t, "30", p.Flag("--days"))
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"--lang=go", "main.go"},
			wantSub: "main.go",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "go", p.Flag("lang"))
			},
		},
		{
			name:      "declared boolean does not consume the next argument",
			args:      []string{"--no-cache", "main.go"},
			boolNames: []string{"no-cache"},
			wantSub:   "main.go",
			validate: func(t *testing.T, p *ArgParser) {
				assert.True(t, p.BoolFlag("no-cache"))
				assert.Equal(t, 1, p.PositionalCount())
			},
		},
		{
			name:      "explicit boolean value",
			args:      []string{"reset", "--archive=false"},
			boolNames: []string{"archive"},
			wantSub:   "reset",
			validate: func(t *testing.T, p *ArgParser) {
				assert.False(t, p.BoolFlag("archive"))
				assert.True(t, p.HasFlag("archive"))
			},
		},
		{
			name:    "undeclared trailing flag is boolean",
			args:    []string{"clear", "--yes"},
			wantSub: "clear",
			validate: func(t *testing.T, p *ArgParser) {
				assert.True(t, p.BoolFlag("yes"))
			},
		},
		{
			name:    "dash is a positional",
			args:    []string{"-", "--lang", "python"},
			wantSub: "-",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, "python", p.Flag("lang"))
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"set", "--", "server.auth_token", "--weird"},
			wantSub: "set",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, []string{"server.auth_token", "--weird"}, p.PositionalFrom(1))
				assert.False(t, p.HasFlag("weird"))
			},
		},
		{
			name:    "short flag",
			args:    []string{"clear", "-y"},
			wantSub: "clear",
			validate: func(t *testing.T, p *ArgParser) {
				assert.True(t, p.BoolFlag("y"))
			},
		},
		{
			name:    "no args",
			args:    nil,
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				assert.Equal(t, 0, p.PositionalCount())
				assert.Equal(t, "", p.Positional(3))
				assert.Empty(t, p.PositionalFrom(1))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.boolNames...)
			assert.Equal(t, tt.wantSub, p.Subcommand())
			assert.Equal(t, tt.args, p.Raw())
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestArgParser_FlagHelpers(t *testing.T) {
	p := NewArgParser([]string{"--days", "14", "--bad", "x", "--neg", "-3"})

	days, err := p.FlagInt("days", 7)
	require.NoError(t, err)
	assert.Equal(t, 14, days)

	missing, err := p.FlagInt("missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, missing)

	_, err = p.FlagInt("bad", 7)
	assert.Error(t, err)

	assert.Equal(t, "fallback", p.FlagOrDefault("missing", "fallback"))
	assert.Equal(t, "14", p.FlagOrDefault("days", "fallback"))
}

func TestParseIntWithValidation(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"5", 5, false},
		{"", 0, true},
		{"abc", 0, true},
		{"0", 0, true},
		{"-2", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseIntWithValidation(tt.in, "--days")
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"true", "YES", "y", "1", "on"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v, s)
	}
	for _, s := range []string{"false", "no", "N", "0", " off "} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v, s)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

// =============================================================================
// COMMAND PARSING TESTS
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		want    Command
		check   func(*testing.T, Args)
		wantErr bool
	}{
		{name: "no args shows help", argv: nil, want: CmdHelp},
		{name: "explain", argv: []string{"explain", "main.go"}, want: CmdExplain,
			check: func(t *testing.T, a Args) { assert.Equal(t, "main.go", a.Parser.Positional(0)) }},
		{name: "explain alias", argv: []string{"x", "-"}, want: CmdExplain},
		{name: "serve", argv: []string{"serve", "--addr", "127.0.0.1:9999"}, want: CmdServe,
			check: func(t *testing.T, a Args) { assert.Equal(t, "127.0.0.1:9999", a.Parser.Flag("addr")) }},
		{name: "usage", argv: []string{"usage", "reset", "--archive"}, want: CmdUsage,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "reset", a.Parser.Subcommand())
				assert.True(t, a.Parser.BoolFlag("archive"))
			}},
		{name: "cache", argv: []string{"cache", "clear", "-y"}, want: CmdCache},
		{name: "models", argv: []string{"models"}, want: CmdModels},
		{name: "config", argv: []string{"config", "get", "budget.limit_usd"}, want: CmdConfig},
		{name: "version flag", argv: []string{"--version"}, want: CmdVersion},
		{name: "help", argv: []string{"help"}, want: CmdHelp},
		{name: "global flags anywhere", argv: []string{"--json", "usage", "--config", "/tmp/h.toml", "--verbose"}, want: CmdUsage,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.JSON)
				assert.True(t, a.Verbose)
				assert.Equal(t, "/tmp/h.toml", a.ConfigPath)
				assert.Equal(t, 0, a.Parser.PositionalCount())
			}},
		{name: "config with equals", argv: []string{"models", "--config=/tmp/x.yaml"}, want: CmdModels,
			check: func(t *testing.T, a Args) { assert.Equal(t, "/tmp/x.yaml", a.ConfigPath) }},
		{name: "json does not swallow the file", argv: []string{"explain", "--json", "main.go"}, want: CmdExplain,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.JSON)
				assert.Equal(t, "main.go", a.Parser.Positional(0))
			}},
		{name: "unknown command", argv: []string{"frobnicate"}, wantErr: true},
		{name: "config without path", argv: []string{"models", "--config"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := Parse(tt.argv)
			if tt.wantErr {
				require.Error(t, err)
				var usageErr *UsageError
				assert.True(t, errors.As(err, &usageErr))
				assert.Equal(t, ExitUsageError, GetExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, args.Command)
			require.NotNil(t, args.Parser)
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "explain", CmdExplain.String())
	assert.Equal(t, "version", CmdVersion.String())
	assert.Equal(t, "Command(99)", Command(99).String())
}
