// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import "strings"

// EstimateTokens approximates the token count of text. Used when a backend
// does not report usage. Blends a word count with the ~4 chars per token rule.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	chars := len(text)
	est := (words + chars/4) / 2
	if est == 0 {
		return 1
	}
	return est
}
