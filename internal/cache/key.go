// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ComputeKey derives the cache key for a request. Whitespace runs collapse to
// a single space and text is NFC-normalized, so formatting-only differences
// map to the same key. The language tag is compared case-insensitively.
func ComputeKey(code, context, language string) string {
	h := sha256.New()
	h.Write([]byte(normalize(code)))
	h.Write([]byte{0})
	h.Write([]byte(normalize(context)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(language))))
	return hex.EncodeToString(h.Sum(nil))
}

func normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
