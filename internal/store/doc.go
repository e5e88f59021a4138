// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides the key-value persistence used by the response
// cache and the usage ledger.
//
// Values are opaque byte slices (JSON documents in practice). Three
// backends are available:
//
//   - sqlite: a single-table database via modernc.org/sqlite (default)
//   - file: one zstd-compressed file per key, written atomically
//   - memory: process-local map, for tests and ephemeral runs
//
// All backends are safe for concurrent use.
package store
