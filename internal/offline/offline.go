// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNonLocalhost is returned for a remote endpoint in local-only mode.
	ErrNonLocalhost = errors.New("local-only mode: endpoint is not on localhost")

	// ErrInvalidURLScheme rejects file://, data:// and other non-HTTP schemes.
	ErrInvalidURLScheme = errors.New("only http and https endpoints are allowed")

	// ErrInvalidURL is returned when the endpoint cannot be parsed.
	ErrInvalidURL = errors.New("invalid endpoint URL")
)

// =============================================================================
// HOST CHECKS
// =============================================================================

// IsLocalhost reports whether host (with or without a port) refers to the
// loopback interface. Every 127.0.0.0/8 address and all IPv6 loopback
// spellings count.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateScheme checks that rawURL parses and uses http or https.
// An empty URL is accepted; adapters fall back to their default endpoint.
func ValidateScheme(rawURL string) error {
	if rawURL == "" {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return ErrInvalidURLScheme
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

// CheckEndpoint validates rawURL and, when localOnly is set, requires it to
// point at the loopback interface.
func CheckEndpoint(rawURL string, localOnly bool) error {
	if err := ValidateScheme(rawURL); err != nil {
		return err
	}
	if !localOnly {
		return nil
	}
	if rawURL == "" {
		return ErrNonLocalhost
	}
	parsed, _ := url.Parse(rawURL)
	if !IsLocalhost(parsed.Hostname()) {
		return ErrNonLocalhost
	}
	return nil
}

// =============================================================================
// DISPLAY
// =============================================================================

// StatusBadge returns a short label for the routing mode.
func StatusBadge(localOnly bool) string {
	if localOnly {
		return "LOCAL ONLY"
	}
	return "CLOUD OK"
}
