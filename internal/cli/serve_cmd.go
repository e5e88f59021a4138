// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve_cmd.go - The serve command.
//
// Command: serve [--addr A]
// Short:   Run the HTTP daemon that editor extensions call
// Aliases: daemon
//
// The config file is watched while serving. Provider, routing, budget,
// cache, auth token and log level changes apply without a restart; storage
// changes need one.

package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/jeranaias/hoverlens/internal/config"
	"github.com/jeranaias/hoverlens/internal/gateway"
	"github.com/jeranaias/hoverlens/internal/logging"
	"github.com/jeranaias/hoverlens/internal/offline"
	"github.com/jeranaias/hoverlens/internal/server"
)

const serveUsage = "hoverlens serve [--addr host:port]"

// MaintenanceInterval is how often the daemon purges expired cache entries
// and old usage records.
var MaintenanceInterval = time.Hour

// Serve handles "serve". It blocks until ctx is cancelled.
func (r *Runner) Serve(ctx context.Context, args Args) error {
	cfg, err := r.loadConfig(args)
	if err != nil {
		return err
	}

	addr := args.Parser.FlagOrDefault("addr", cfg.Server.Addr)
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return NewUsageError(serveUsage, "invalid --addr %q: %v", addr, err)
	}

	logger := r.Gateway.Logger
	if logger == nil {
		logger = r.newLogger(cfg, args)
		slog.SetDefault(logger)
	}

	opts := r.Gateway
	opts.Logger = logger
	gw, err := gateway.New(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer gw.Close()

	srv := server.New(gw, server.Options{
		Addr:      addr,
		AuthToken: cfg.Server.AuthToken,
		Version:   Version,
		Logger:    logger,
	})

	host, _, _ := net.SplitHostPort(addr)
	if cfg.Server.AuthToken == "" && !offline.IsLocalhost(host) {
		logger.Warn("serving on a non-loopback address without server.auth_token", "addr", addr)
	}
	logger.Info("routing mode", "mode", offline.StatusBadge(cfg.Routing.LocalOnly))

	r.watchConfig(ctx, args, gw, srv, logger)
	go gw.RunMaintenance(ctx, MaintenanceInterval)

	return srv.ListenAndServe(ctx)
}

// watchConfig hot-reloads the config file if there is one.
func (r *Runner) watchConfig(ctx context.Context, args Args, gw *gateway.Gateway, srv *server.Server, logger *slog.Logger) {
	path, err := configPath(args)
	if err != nil {
		logger.Warn("config reload disabled", "error", err)
		return
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("no config file to watch", "path", path)
		return
	}

	err = config.Watch(ctx, path, func(next *config.Config) {
		if err := gw.Reconfigure(next); err != nil {
			logger.Error("config reload rejected", "error", err)
			return
		}
		srv.SetAuthToken(next.Server.AuthToken)
		if !args.Verbose {
			logging.SetLevel(next.Logging.Level)
		}
		logger.Info("config reloaded", "path", path,
			"mode", offline.StatusBadge(next.Routing.LocalOnly))
	})
	if err != nil {
		logger.Warn("config reload disabled", "error", err)
	}
}
