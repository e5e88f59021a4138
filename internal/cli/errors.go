// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error display and exit codes for hoverlens commands.
//
// Commands always return errors; the caller decides how to show them.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/hoverlens/internal/config"
	"github.com/jeranaias/hoverlens/internal/gateway"
	"github.com/jeranaias/hoverlens/internal/provider"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	// ExitUsageError indicates invalid arguments.
	ExitUsageError = 2
	// ExitConfigError indicates a bad config file or no usable provider.
	ExitConfigError = 3
	// ExitBudgetError indicates the spending limit is reached.
	ExitBudgetError = 4
	// ExitProviderError indicates the provider call failed.
	ExitProviderError = 5
	// ExitTimeoutError indicates the request timed out.
	ExitTimeoutError = 8
	// ExitInterrupted follows the shell convention for SIGINT.
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports bad command-line arguments.
type UsageError struct {
	Message string
	Usage   string
}

func (e *UsageError) Error() string {
	if e.Usage != "" {
		return fmt.Sprintf("%s\nUsage: %s", e.Message, e.Usage)
	}
	return e.Message
}

// NewUsageError returns a *UsageError.
func NewUsageError(usage, format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...), Usage: usage}
}

// =============================================================================
// DISPLAY
// =============================================================================

// errorKind names the category reported in JSON output.
func errorKind(err error) string {
	var usageErr *UsageError
	var validateErrs config.ValidateErrors
	var providerErr *provider.ProviderError
	switch {
	case errors.As(err, &usageErr):
		return "usage_error"
	case errors.Is(err, gateway.ErrBudgetExceeded):
		return "budget_exceeded"
	case errors.Is(err, gateway.ErrNoProviderConfigured):
		return "no_provider"
	case errors.As(err, &validateErrs):
		return "config_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &providerErr):
		return "provider_error"
	default:
		return "error"
	}
}

// DisplayError writes err to w, as a JSON envelope in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		resp := NewJSONErrorResponse("", err)
		_ = resp.Print(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())

	var providerErr *provider.ProviderError
	switch {
	case errors.Is(err, gateway.ErrNoProviderConfigured):
		fmt.Fprintln(w, DimStyle.Render("Set an API key (e.g. OPENAI_API_KEY) or run 'hoverlens config init'."))
	case errors.Is(err, gateway.ErrBudgetExceeded):
		fmt.Fprintln(w, DimStyle.Render("Raise budget.limit_usd or run 'hoverlens usage reset'."))
	case errors.Is(err, gateway.ErrTimeout):
		fmt.Fprintln(w, DimStyle.Render("The provider did not answer in time; try again or raise gateway.request_timeout_secs."))
	case errors.As(err, &providerErr) && providerErr.Temporary():
		fmt.Fprintln(w, DimStyle.Render("The provider reported a temporary failure; try again."))
	}
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var usageErr *UsageError
	var validateErrs config.ValidateErrors
	var providerErr *provider.ProviderError
	switch {
	case errors.As(err, &usageErr):
		return ExitUsageError
	case errors.Is(err, gateway.ErrBudgetExceeded):
		return ExitBudgetError
	case errors.Is(err, gateway.ErrNoProviderConfigured), errors.As(err, &validateErrs):
		return ExitConfigError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.As(err, &providerErr):
		return ExitProviderError
	default:
		return ExitGeneralError
	}
}
