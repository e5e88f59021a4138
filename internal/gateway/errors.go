// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import "errors"

var (
	// ErrNoProviderConfigured means no tier (or not the requested tier) has
	// a usable provider. Retrying will not help until configuration changes.
	ErrNoProviderConfigured = errors.New("no provider configured")

	// ErrBudgetExceeded means the spend for the current period has reached
	// the configured limit.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrTimeout means the provider did not answer within the gateway's
	// request timeout. It wraps context.DeadlineExceeded and is worth
	// retrying.
	ErrTimeout = errors.New("provider timed out")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("gateway closed")
)
