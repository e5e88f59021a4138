// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/hoverlens/internal/pricing"
)

// formatUSD formats money for humans. Sub-cent amounts keep enough digits
// to stay non-zero.
func formatUSD(m pricing.Micros) string {
	d := m.Dollars()
	switch {
	case m == 0:
		return "$0.00"
	case d >= 1 || d <= -1:
		return fmt.Sprintf("$%.2f", d)
	case m%100 == 0:
		return fmt.Sprintf("$%.4f", d)
	default:
		return m.String()
	}
}

// formatDurationShort formats a request duration.
func formatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}

// formatAge formats how long ago t was.
func formatAge(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// formatBytes formats a byte count for display.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)
	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

// maskSecret replaces a credential with a short SHA-256 fingerprint so
// keys can be told apart without being shown.
func maskSecret(value string) string {
	if value == "" {
		return "(not set)"
	}
	hash := sha256.Sum256([]byte(value))
	return fmt.Sprintf("sha256:%x...", hash[:4])
}

// isSecretKey reports whether a config key holds a credential.
func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	return strings.HasSuffix(key, "api_key") || strings.HasSuffix(key, "token")
}
