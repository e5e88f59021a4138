// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ledger records the cost of every billed provider call and gates
// new calls against a rolling budget.
//
// # Key Types
//
//   - Ledger: append-only usage history with budget checks
//   - Record: one billed call (cost, tokens, provider, model)
//   - Stats: totals, per-provider and per-model breakdowns, rollups
//   - Alert: raised when spending crosses a configured fraction of the limit
//
// # Budget
//
// The budget period is a rolling window ending now: a day is 24h, a week 7
// days and a month 30 days. CanSpend reports whether spending in the current
// window is strictly below the limit. A zero limit disables the budget.
//
// # Persistence
//
// History is stored under "usage.history"; Reset in archive mode first copies
// it to "usage.archive.<timestamp>". Records older than the retention horizon
// (180 days by default) are purged when the ledger is opened.
package ledger
