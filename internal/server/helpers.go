// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jeranaias/hoverlens/internal/gateway"
	"github.com/jeranaias/hoverlens/internal/logging"
	"github.com/jeranaias/hoverlens/internal/provider"
)

// ============================================================================
// Request helpers
// ============================================================================

// readJSON decodes a size-limited JSON body, writing a 400 or 413 on failure.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds 1 MB")
		} else {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		}
		return v, false
	}
	return v, true
}

// ============================================================================
// Response helpers
// ============================================================================

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	Provider       string `json:"provider,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	Retryable      bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeErrorDetail(w, r, status, ErrorDetail{Code: code, Message: message})
}

func writeErrorDetail(w http.ResponseWriter, r *http.Request, status int, detail ErrorDetail) {
	writeJSON(w, status, ErrorBody{Error: detail, RequestID: logging.RequestID(r.Context())})
}

// writeGatewayError maps gateway failures to HTTP statuses so callers can
// tell a spent budget from a flaky upstream.
func (s *Server) writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *provider.ProviderError

	switch {
	case errors.Is(err, gateway.ErrBudgetExceeded):
		writeErrorDetail(w, r, http.StatusPaymentRequired, ErrorDetail{
			Code:    "budget_exceeded",
			Message: "usage budget for the current period is exhausted",
		})
	case errors.Is(err, gateway.ErrNoProviderConfigured):
		writeErrorDetail(w, r, http.StatusServiceUnavailable, ErrorDetail{
			Code:    "no_provider",
			Message: err.Error(),
		})
	case errors.Is(err, context.DeadlineExceeded):
		detail := ErrorDetail{
			Code:      "timeout",
			Message:   "request timed out",
			Retryable: true,
		}
		if errors.As(err, &pe) {
			detail.Provider = pe.Provider
		}
		writeErrorDetail(w, r, http.StatusGatewayTimeout, detail)
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the body.
		w.WriteHeader(499)
	case errors.As(err, &pe):
		writeErrorDetail(w, r, http.StatusBadGateway, ErrorDetail{
			Code:           "provider_error",
			Message:        pe.Message,
			Provider:       pe.Provider,
			UpstreamStatus: pe.Status,
			Retryable:      pe.Temporary(),
		})
	default:
		logging.FromContext(r.Context(), s.log).Error("request failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
