// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration commands.
//
// Command: config [subcommand]
// Short:   Show and edit the config file
//
// Subcommands:
//   show (default)      Effective settings, env overrides included
//   path                The file being used
//   init [--force]      Write a default config file
//   get KEY             Print one setting
//   set KEY VALUE       Change one setting in the file
//   keys                List settable keys
//
// Keys use dotted TOML names, e.g. budget.limit_usd or economy.model.
// Credentials are shown as fingerprints.

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/hoverlens/internal/config"
)

const configUsage = "hoverlens config [show|path|init [--force]|get KEY|set KEY VALUE|keys]"

// Config handles "config".
func (r *Runner) Config(args Args) error {
	p := args.Parser
	switch p.Subcommand() {
	case "", "show":
		return r.configShow(args)
	case "path":
		return r.configPath(args)
	case "init":
		return r.configInit(args)
	case "get":
		if p.PositionalCount() != 2 {
			return NewUsageError(configUsage, "config get takes exactly one key")
		}
		return r.configGet(args, p.Positional(1))
	case "set":
		if p.PositionalCount() < 3 {
			return NewUsageError(configUsage, "config set needs a key and a value")
		}
		return r.configSet(args, p.Positional(1), strings.Join(p.PositionalFrom(2), " "))
	case "keys":
		keys := config.Keys()
		if args.JSON {
			return r.printJSON("config keys", keys)
		}
		for _, k := range keys {
			fmt.Fprintln(r.Stdout, k)
		}
		return nil
	default:
		return NewUsageError(configUsage, "unknown config subcommand: %s", p.Subcommand())
	}
}

// displayValue formats a setting, masking credentials.
func displayValue(key string, v any) string {
	if isSecretKey(key) {
		s, _ := v.(string)
		return maskSecret(s)
	}
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ", ")
	case []float64:
		parts := make([]string, len(val))
		for i, f := range val {
			parts[i] = fmt.Sprint(f)
		}
		return strings.Join(parts, ", ")
	case string:
		if val == "" {
			return "(not set)"
		}
		return val
	default:
		return fmt.Sprint(val)
	}
}

func (r *Runner) configShow(args Args) error {
	cfg, err := r.loadConfig(args)
	if err != nil {
		return err
	}
	path, err := configPath(args)
	if err != nil {
		return err
	}

	keys := config.Keys()
	if args.JSON {
		values := make(map[string]any, len(keys))
		for _, k := range keys {
			v, err := cfg.Get(k)
			if err != nil {
				return err
			}
			if isSecretKey(k) {
				v = displayValue(k, v)
			}
			values[k] = v
		}
		return r.printJSON("config show", map[string]any{"path": path, "settings": values})
	}

	fmt.Fprintln(r.Stdout, TitleStyle.Render("hoverlens configuration"))
	fmt.Fprintln(r.Stdout, RenderSeparator())
	section := ""
	for _, k := range keys {
		sec, name, _ := strings.Cut(k, ".")
		if sec != section {
			section = sec
			fmt.Fprintln(r.Stdout, SectionStyle.Render("["+sec+"]"))
		}
		v, err := cfg.Get(k)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.Stdout, RenderField(name+":", displayValue(k, v)))
	}
	fmt.Fprintln(r.Stdout, RenderSeparator())
	fmt.Fprintf(r.Stdout, "Config file: %s\n", DimStyle.Render(path))
	return nil
}

func (r *Runner) configPath(args Args) error {
	path, err := configPath(args)
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if args.JSON {
		return r.printJSON("config path", map[string]any{"path": path, "exists": exists})
	}
	fmt.Fprintln(r.Stdout, path)
	if !exists {
		fmt.Fprintln(r.Stderr, DimStyle.Render("(file does not exist; defaults are in effect)"))
	}
	return nil
}

func (r *Runner) configInit(args Args) error {
	path := args.ConfigPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil && !args.Parser.BoolFlag("force") {
		return NewUsageError(configUsage, "%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := config.Save(config.Default(), path); err != nil {
		return err
	}
	if args.JSON {
		return r.printJSON("config init", map[string]string{"path": path})
	}
	fmt.Fprintf(r.Stdout, "%s Wrote %s\n", SuccessStyle.Render("[OK]"), path)
	return nil
}

func (r *Runner) configGet(args Args, key string) error {
	cfg, err := r.loadConfig(args)
	if err != nil {
		return err
	}
	v, err := cfg.Get(key)
	if err != nil {
		return NewUsageError(configUsage, "%v", err)
	}
	if args.JSON {
		if isSecretKey(key) {
			v = displayValue(key, v)
		}
		return r.printJSON("config get", map[string]any{"key": key, "value": v})
	}
	fmt.Fprintln(r.Stdout, displayValue(key, v))
	return nil
}

// configSet edits the file itself; environment overrides are not written
// back.
func (r *Runner) configSet(args Args, key, value string) error {
	path, err := configPath(args)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if cfg, err = config.ReadFile(path); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := cfg.Set(key, value); err != nil {
		return NewUsageError(configUsage, "%v", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}

	v, _ := cfg.Get(key)
	if args.JSON {
		if isSecretKey(key) {
			v = displayValue(key, v)
		}
		return r.printJSON("config set", map[string]any{"key": key, "value": v, "path": path})
	}
	fmt.Fprintf(r.Stdout, "%s %s = %s\n", SuccessStyle.Render("[OK]"), key, displayValue(key, v))
	return nil
}
