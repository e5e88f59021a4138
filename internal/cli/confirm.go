// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation for destructive commands.
//
//  1. --yes proceeds without prompting
//  2. --json requires --yes (no prompts in JSON mode)
//  3. A non-terminal stdin requires --yes
//  4. Otherwise the user is asked

package cli

import (
	"bufio"
	"fmt"
	"strings"
)

// ErrConfirmationRequired is returned when a prompt is impossible.
var ErrConfirmationRequired error = &UsageError{Message: "confirmation required: pass --yes"}

// ConfirmationOptions carries the flags that affect prompting.
type ConfirmationOptions struct {
	// Yes is set by --yes / -y.
	Yes      bool
	JSONMode bool
}

// confirm asks the user to approve action.
func (r *Runner) confirm(action string, opts ConfirmationOptions) (bool, error) {
	if opts.Yes {
		return true, nil
	}
	if opts.JSONMode {
		return false, fmt.Errorf("%w (JSON mode)", ErrConfirmationRequired)
	}
	if !r.StdinIsTTY() {
		return false, fmt.Errorf("%w (stdin is not a terminal)", ErrConfirmationRequired)
	}

	fmt.Fprintf(r.Stdout, "Are you sure you want to %s? [y/N]: ", action)
	input, err := bufio.NewReader(r.Stdin).ReadString('\n')
	if err != nil && input == "" {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes", nil
}
