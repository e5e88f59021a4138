// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/hoverlens/internal/cache"
	"github.com/jeranaias/hoverlens/internal/config"
	"github.com/jeranaias/hoverlens/internal/ledger"
	"github.com/jeranaias/hoverlens/internal/logging"
	"github.com/jeranaias/hoverlens/internal/pricing"
	"github.com/jeranaias/hoverlens/internal/provider"
	"github.com/jeranaias/hoverlens/internal/router"
	"github.com/jeranaias/hoverlens/internal/store"
)

// UsageKind labels ledger records written by the gateway.
const UsageKind = "explain"

// FlushDelay is how long cache and ledger changes are batched before they
// are written to the store. Close writes whatever is still pending.
var FlushDelay = 2 * time.Second

// =============================================================================
// TYPES
// =============================================================================

// ProviderFactory builds an adapter from its configuration.
type ProviderFactory func(provider.Config) (provider.Provider, error)

// Scorer computes the complexity score of a request.
type Scorer func(code, context, language string) float64

// Options customizes construction. All fields are optional.
type Options struct {
	// Store persists cache and usage. Nil opens the backend named in the
	// config under its data directory.
	Store store.Store
	// NewProvider defaults to provider.New.
	NewProvider ProviderFactory
	// Scorer defaults to router.Score.
	Scorer Scorer
	// OnAlert receives budget alerts. The ledger logs them either way.
	OnAlert ledger.AlertFunc

	Logger *slog.Logger
	Now    func() time.Time
}

// Request is one explanation request.
type Request struct {
	Code     string `json:"code"`
	Context  string `json:"context"`
	Language string `json:"language"`

	// Tier forces a tier instead of classifying the request.
	Tier *router.Tier `json:"tier,omitempty"`
	// NoCache skips the cache lookup. The fresh answer is still cached.
	NoCache bool `json:"no_cache,omitempty"`
}

// Result describes how a request was served.
type Result struct {
	Text     string         `json:"text"`
	Tier     router.Tier    `json:"tier"`
	Provider string         `json:"provider,omitempty"`
	Model    string         `json:"model,omitempty"`
	Score    float64        `json:"score"`
	Reason   string         `json:"reason,omitempty"`
	Cached   bool           `json:"cached"`
	Shared   bool           `json:"shared,omitempty"`
	Cost     pricing.Micros `json:"cost_micros"`
	Tokens   int            `json:"tokens"`
	Duration time.Duration  `json:"duration"`
}

// MarshalJSON leaves the tier out of cached results; the cache does not
// remember which tier produced an answer.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		plain
		Tier string `json:"tier,omitempty"`
	}{plain: plain(r)}
	if !r.Cached {
		out.Tier = r.Tier.String()
	}
	return json.Marshal(out)
}

// TierInfo describes one tier for display.
type TierInfo struct {
	Tier      router.Tier `json:"tier"`
	Kind      string      `json:"kind,omitempty"`
	Provider  string      `json:"provider,omitempty"`
	Model     string      `json:"model,omitempty"`
	Models    []string    `json:"models,omitempty"`
	Endpoint  string      `json:"endpoint,omitempty"`
	Available bool        `json:"available"`
	Reason    string      `json:"reason,omitempty"`
}

// Gateway routes explanation requests to providers while enforcing the
// budget and serving repeats from cache.
type Gateway struct {
	rt     atomic.Pointer[runtime]
	cache  *cache.Cache
	ledger *ledger.Ledger
	store  store.Store

	group       singleflight.Group
	newProvider ProviderFactory
	scorer      Scorer
	baseLog     *slog.Logger
	log         *slog.Logger
	now         func() time.Time

	// cfg is the last applied config, guarded by mu.
	mu        sync.Mutex
	cfg       *config.Config
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// New builds a gateway from cfg, loading persisted cache and usage.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Gateway, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewProvider == nil {
		opts.NewProvider = provider.New
	}
	if opts.Scorer == nil {
		opts.Scorer = router.Score
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	g := &Gateway{
		newProvider: opts.NewProvider,
		scorer:      opts.Scorer,
		baseLog:     opts.Logger,
		log:         opts.Logger.With("component", "gateway"),
		now:         opts.Now,
		cfg:         cfg.Clone(),
	}

	rt, err := buildRuntime(cfg, g.newProvider, opts.Logger)
	if err != nil {
		return nil, err
	}
	g.rt.Store(rt)

	st := opts.Store
	if st == nil {
		dir, err := cfg.DataDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}
		st, err = store.Open(cfg.Storage.Backend, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
		}
	}
	g.store = st

	g.cache = cache.New(cache.Options{
		MaxEntries: cfg.Cache.MaxEntries,
		TTL:        cfg.CacheTTL(),
		Store:      st,
		FlushDelay: FlushDelay,
		Logger:     opts.Logger,
		Now:        opts.Now,
	})
	if err := g.cache.Load(ctx); err != nil {
		g.log.Warn("starting with empty cache", "error", err)
	}

	g.ledger, err = ledger.Open(ctx, ledger.Options{
		Limit:           cfg.BudgetLimit(),
		Period:          cfg.BudgetPeriod(),
		AlertThresholds: cfg.Budget.AlertThresholds,
		Retention:       cfg.Retention(),
		OnAlert:         opts.OnAlert,
		Store:           st,
		FlushDelay:      FlushDelay,
		Logger:          opts.Logger,
		Now:             opts.Now,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open usage ledger: %w", err)
	}

	avail := rt.availability()
	g.log.Info("gateway ready",
		"economy", avail.Economy,
		"premium", avail.Premium,
		"threshold", rt.threshold,
		"cache_enabled", rt.cacheEnabled)
	return g, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

// Explain returns an explanation of code. It fails with
// ErrNoProviderConfigured, ErrBudgetExceeded or a *provider.ProviderError.
func (g *Gateway) Explain(ctx context.Context, code, codeContext, language string) (string, error) {
	res, err := g.Analyze(ctx, Request{Code: code, Context: codeContext, Language: language})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Analyze serves req and reports how it was served.
func (g *Gateway) Analyze(ctx context.Context, req Request) (*Result, error) {
	if g.closed.Load() {
		return nil, ErrClosed
	}
	start := g.now()
	rt := g.rt.Load()
	log := logging.FromContext(ctx, g.log)

	avail := rt.availability()
	if avail.Count() == 0 {
		return nil, ErrNoProviderConfigured
	}
	if req.Tier != nil && !avail.Has(*req.Tier) {
		return nil, fmt.Errorf("%w: %s tier is unavailable", ErrNoProviderConfigured, *req.Tier)
	}

	lang := router.CanonicalLanguage(req.Language)
	key := cache.ComputeKey(req.Code, req.Context, lang)

	if rt.cacheEnabled && !req.NoCache {
		if text, ok := g.cache.Get(key); ok {
			log.Debug("cache hit", "key", key[:12])
			return &Result{Text: text, Cached: true, Duration: g.now().Sub(start)}, nil
		}
	}

	if !rt.dedupe {
		res, err := g.execute(ctx, rt, req, lang, key, log)
		if err != nil {
			return nil, err
		}
		res.Duration = g.now().Sub(start)
		return res, nil
	}

	// Callers that give up early must not cancel the call for the others.
	shared := context.WithoutCancel(ctx)
	ch := g.group.DoChan(flightKey(key, req.Tier), func() (any, error) {
		return g.execute(shared, rt, req, lang, key, log)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*Result)
		res.Shared = r.Shared
		res.Duration = g.now().Sub(start)
		return &res, nil
	}
}

func flightKey(key string, tier *router.Tier) string {
	if tier == nil {
		return key
	}
	return key + "|" + tier.String()
}

// execute runs everything after a cache miss.
func (g *Gateway) execute(ctx context.Context, rt *runtime, req Request, lang, key string, log *slog.Logger) (*Result, error) {
	if !g.ledger.CanSpend() {
		limit, period := g.ledger.Budget()
		log.Info("request refused by budget", "limit", limit.String(), "period", period)
		return nil, ErrBudgetExceeded
	}

	decision, err := g.decide(rt, req, lang)
	if err != nil {
		return nil, err
	}
	p := rt.tiers[decision.Tier].provider

	callCtx, cancel := context.WithTimeout(ctx, rt.timeout)
	defer cancel()

	resp, err := p.Generate(callCtx, provider.Request{
		Code:     req.Code,
		Context:  req.Context,
		Language: req.Language,
	})
	if err != nil {
		// Only our own deadline counts; a caller's deadline stays as is.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, rt.timeout, err)
		}
		log.Warn("provider call failed",
			"tier", decision.Tier,
			"provider", p.Name(),
			"error", err)
		return nil, err
	}

	rec := g.ledger.Record(resp.Cost, resp.TotalTokens, p.Name(), resp.Model, UsageKind)
	if rt.cacheEnabled {
		g.cache.Set(key, resp.Text)
	}

	log.Info("explanation served",
		"tier", decision.Tier,
		"provider", p.Name(),
		"model", resp.Model,
		"score", decision.Score,
		"tokens", resp.TotalTokens,
		"cost", resp.Cost.String(),
		"usage_id", rec.ID)

	return &Result{
		Text:     resp.Text,
		Tier:     decision.Tier,
		Provider: p.Name(),
		Model:    resp.Model,
		Score:    decision.Score,
		Reason:   decision.Reason,
		Cost:     resp.Cost,
		Tokens:   resp.TotalTokens,
	}, nil
}

// decide picks a tier. The classifier only runs when both tiers are
// available and no override is given.
func (g *Gateway) decide(rt *runtime, req Request, lang string) (router.Decision, error) {
	avail := rt.availability()
	var score float64
	if req.Tier == nil && avail.Count() > 1 {
		score = g.scorer(req.Code, req.Context, lang)
	}
	d, err := router.SelectTier(score, rt.threshold, avail, req.Tier)
	if err != nil {
		if errors.Is(err, router.ErrTierUnavailable) {
			return d, fmt.Errorf("%w: %v", ErrNoProviderConfigured, err)
		}
		return d, err
	}
	return d, nil
}

// Route reports which tier req would be sent to without calling anything.
func (g *Gateway) Route(req Request) (router.Decision, error) {
	rt := g.rt.Load()
	if rt.availability().Count() == 0 {
		return router.Decision{}, ErrNoProviderConfigured
	}
	return g.decide(rt, req, router.CanonicalLanguage(req.Language))
}
