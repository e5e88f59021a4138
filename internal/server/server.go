// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jeranaias/hoverlens/internal/cache"
	"github.com/jeranaias/hoverlens/internal/gateway"
	"github.com/jeranaias/hoverlens/internal/ledger"
	"github.com/jeranaias/hoverlens/internal/router"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr keeps the daemon on the loopback interface.
	DefaultAddr = "127.0.0.1:8787"

	// MaxRequestBodySize caps request bodies (1 MB).
	MaxRequestBodySize = 1 << 20

	shutdownTimeout = 10 * time.Second
)

// Backend is the part of the gateway the server needs.
type Backend interface {
	Analyze(ctx context.Context, req gateway.Request) (*gateway.Result, error)
	UsageStats() ledger.Stats
	CacheStats() cache.Stats
	ClearCache()
	ResetUsage(ctx context.Context, mode ledger.ResetMode) (string, error)
	Models() []gateway.TierInfo
	CanSpend() bool
}

// ============================================================================
// SERVER
// ============================================================================

// Options configures a Server.
type Options struct {
	Addr      string
	AuthToken string
	Version   string
	Logger    *slog.Logger
}

// Server is the HTTP daemon.
type Server struct {
	backend Backend
	addr    string
	version string
	token   atomic.Pointer[string]
	started time.Time
	handler http.Handler
	log     *slog.Logger
}

// New creates a server for backend.
func New(backend Backend, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		backend: backend,
		addr:    opts.Addr,
		version: opts.Version,
		started: time.Now(),
		log:     opts.Logger.With("component", "server"),
	}
	s.SetAuthToken(opts.AuthToken)
	s.handler = s.routes()
	return s
}

// SetAuthToken replaces the bearer token; empty disables auth.
func (s *Server) SetAuthToken(token string) {
	s.token.Store(&token)
}

func (s *Server) authToken() string {
	return *s.token.Load()
}

// Handler returns the root handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(securityHeadersMiddleware)
	r.Use(loggingMiddleware(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware(s.authToken, s.log))

		r.Post("/explain", s.handleExplain)
		r.Get("/usage", s.handleUsage)
		r.Post("/usage/reset", s.handleUsageReset)
		r.Get("/cache", s.handleCacheStats)
		r.Delete("/cache", s.handleCacheClear)
		r.Get("/models", s.handleModels)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      180 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", ln.Addr().String(), "version", s.version,
			"auth", s.authToken() != "")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ============================================================================
// HANDLERS
// ============================================================================

// ExplainRequest is the body of POST /v1/explain.
type ExplainRequest struct {
	Code     string `json:"code"`
	Context  string `json:"context"`
	Language string `json:"language"`
	// Tier optionally forces "economy" or "premium".
	Tier    string `json:"tier,omitempty"`
	NoCache bool   `json:"no_cache,omitempty"`
}

// ExplainResponse is the body of a successful explanation.
type ExplainResponse struct {
	Text       string  `json:"text"`
	Tier       string  `json:"tier,omitempty"`
	Provider   string  `json:"provider,omitempty"`
	Model      string  `json:"model,omitempty"`
	Score      float64 `json:"score"`
	Cached     bool    `json:"cached"`
	CostUSD    float64 `json:"cost_usd"`
	Tokens     int     `json:"tokens"`
	DurationMS int64   `json:"duration_ms"`
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[ExplainRequest](w, r)
	if !ok {
		return
	}
	if body.Code == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	req := gateway.Request{
		Code:     body.Code,
		Context:  body.Context,
		Language: body.Language,
		NoCache:  body.NoCache,
	}
	if body.Tier != "" {
		tier, err := router.ParseTier(body.Tier)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		req.Tier = &tier
	}

	res, err := s.backend.Analyze(r.Context(), req)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}

	resp := ExplainResponse{
		Text:       res.Text,
		Provider:   res.Provider,
		Model:      res.Model,
		Score:      res.Score,
		Cached:     res.Cached,
		CostUSD:    res.Cost.Dollars(),
		Tokens:     res.Tokens,
		DurationMS: res.Duration.Milliseconds(),
	}
	if !res.Cached {
		resp.Tier = res.Tier.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// UsageResponse wraps ledger stats with dollar amounts for display.
type UsageResponse struct {
	ledger.Stats
	TotalCostUSD  float64 `json:"total_cost_usd"`
	PeriodCostUSD float64 `json:"period_cost_usd"`
	LimitUSD      float64 `json:"limit_usd"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	stats := s.backend.UsageStats()
	writeJSON(w, http.StatusOK, UsageResponse{
		Stats:         stats,
		TotalCostUSD:  stats.TotalCost.Dollars(),
		PeriodCostUSD: stats.PeriodCost.Dollars(),
		LimitUSD:      stats.Limit.Dollars(),
	})
}

// ResetRequest is the body of POST /v1/usage/reset.
type ResetRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleUsageReset(w http.ResponseWriter, r *http.Request) {
	body := ResetRequest{Mode: string(ledger.ResetClear)}
	if r.ContentLength != 0 {
		var ok bool
		if body, ok = readJSON[ResetRequest](w, r); !ok {
			return
		}
	}

	var mode ledger.ResetMode
	switch body.Mode {
	case "", string(ledger.ResetClear):
		mode = ledger.ResetClear
	case string(ledger.ResetArchive):
		mode = ledger.ResetArchive
	default:
		writeError(w, r, http.StatusBadRequest, "invalid_request", "mode must be clear or archive")
		return
	}

	key, err := s.backend.ResetUsage(r.Context(), mode)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":        mode,
		"archive_key": key,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.CacheStats())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.backend.ClearCache()
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tiers": s.backend.Models()})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	CanSpend      bool   `json:"can_spend"`
	Providers     int    `json:"providers_available"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	available := 0
	for _, t := range s.backend.Models() {
		if t.Available {
			available++
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		CanSpend:      s.backend.CanSpend(),
		Providers:     available,
	})
}
