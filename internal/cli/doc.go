// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the hoverlens command line.
//
// # Key Types
//
//   - Command: the commands hoverlens understands
//   - Args: global flags plus an ArgParser for the command's own arguments
//   - Runner: executes a command against injectable stdin/stdout/stderr
//
// # Usage
//
//	args, err := cli.Parse(os.Args[1:])
//	if err != nil {
//	    cli.DisplayError(os.Stderr, err, false)
//	    os.Exit(cli.GetExitCode(err))
//	}
//	err = cli.NewRunner().Run(ctx, args)
//
// # Commands
//
//   - explain: explain code from a file or stdin
//   - serve: run the HTTP daemon with config hot reload
//   - usage: spending history and budget status; reset with optional archive
//   - cache: cache statistics and clearing
//   - models: tier availability, models and routing mode
//   - config: show, path, init, get, set, keys
//   - version: build information
//
// Every command accepts --json and writes a JSONResponse envelope.
package cli
