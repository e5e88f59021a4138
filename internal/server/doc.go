// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the gateway over HTTP for editor extensions and
// other local hosts.
//
// # Endpoints
//
//   - POST   /v1/explain      - Explain a code snippet
//   - GET    /v1/usage        - Usage and budget statistics
//   - POST   /v1/usage/reset  - Clear or archive usage history
//   - GET    /v1/cache        - Cache statistics
//   - DELETE /v1/cache        - Clear the response cache
//   - GET    /v1/models       - Configured tiers and models
//   - GET    /health          - Liveness
//
// # Errors
//
// Failures are JSON objects of the form
//
//	{"error": {"code": "budget_exceeded", "message": "..."}, "request_id": "..."}
//
// with 402 for an exhausted budget, 503 when no provider is configured,
// 502 for upstream failures and 400 for malformed requests.
//
// # Security
//
//   - Listens on 127.0.0.1 by default
//   - Optional bearer token on /v1 routes, compared in constant time
//   - Request bodies capped at 1 MB
//   - Every response carries X-Request-ID
package server
