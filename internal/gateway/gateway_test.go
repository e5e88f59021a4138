// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hoverlens/internal/config"
	"github.com/jeranaias/hoverlens/internal/ledger"
	"github.com/jeranaias/hoverlens/internal/pricing"
	"github.com/jeranaias/hoverlens/internal/provider"
	"github.com/jeranaias/hoverlens/internal/router"
	"github.com/jeranaias/hoverlens/internal/store"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeProvider struct {
	name       string
	endpoint   string
	configured bool
	text       string
	cost       pricing.Micros
	tokens     int
	err        error

	// When set, Generate signals started and waits for release.
	started chan struct{}
	release chan struct{}

	calls    atomic.Int32
	deadline atomic.Value
}

func newFake(name string) *fakeProvider {
	return &fakeProvider{
		name:       name,
		endpoint:   "https://api.example.com/v1",
		configured: true,
		text:       "explanation from " + name,
		cost:       1500,
		tokens:     300,
	}
}

func (f *fakeProvider) Name() string         { return f.name }
func (f *fakeProvider) IsConfigured() bool   { return f.configured }
func (f *fakeProvider) ListModels() []string { return []string{f.name + "-model"} }
func (f *fakeProvider) DefaultModel() string { return f.name + "-model" }
func (f *fakeProvider) Endpoint() string     { return f.endpoint }

func (f *fakeProvider) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	f.calls.Add(1)
	if dl, ok := ctx.Deadline(); ok {
		f.deadline.Store(dl)
	}
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, &provider.ProviderError{Provider: f.name, Message: "cancelled", Err: ctx.Err()}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Response{
		Text:        f.text,
		TotalTokens: f.tokens,
		Cost:        f.cost,
		Model:       f.DefaultModel(),
	}, nil
}

type fixture struct {
	gw      *Gateway
	cfg     *config.Config
	economy *fakeProvider
	premium *fakeProvider
	score   atomic.Value
	store   store.Store
}

// newFixture builds a gateway over two fake tiers. mutate adjusts the
// config before construction.
func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	f := &fixture{
		economy: newFake("econ"),
		premium: newFake("prem"),
		store:   store.NewMemory(),
	}
	f.score.Store(0.1)

	cfg := config.Default()
	cfg.Economy = config.ProviderConfig{Kind: "openai", Name: "econ"}
	cfg.Premium = config.ProviderConfig{Kind: "anthropic", Name: "prem"}
	cfg.Storage.Backend = store.BackendMemory
	if mutate != nil {
		mutate(cfg)
	}
	f.cfg = cfg

	gw, err := New(context.Background(), cfg, Options{
		Store:       f.store,
		NewProvider: f.factory,
		Scorer: func(string, string, string) float64 {
			return f.score.Load().(float64)
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })
	f.gw = gw
	return f
}

func (f *fixture) factory(pc provider.Config) (provider.Provider, error) {
	switch pc.Name {
	case "econ":
		return f.economy, nil
	case "prem":
		return f.premium, nil
	}
	return nil, fmt.Errorf("unexpected provider %q", pc.Name)
}

func (f *fixture) totalCalls() int32 {
	return f.economy.calls.Load() + f.premium.calls.Load()
}

var sample = Request{Code: "func add(a, b int) int { return a + b }", Context: "math helpers", Language: "go"}

// =============================================================================
// END-TO-END SCENARIOS
// =============================================================================

func TestScenario_SingleEconomyTierMiss(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Premium = config.ProviderConfig{} })

	res, err := f.gw.Analyze(context.Background(), sample)
	require.NoError(t, err)

	assert.Equal(t, "explanation from econ", res.Text)
	assert.Equal(t, router.TierEconomy, res.Tier)
	assert.False(t, res.Cached)
	assert.Equal(t, int32(1), f.economy.calls.Load())

	stats := f.gw.UsageStats()
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, pricing.Micros(1500), stats.TotalCost)
	assert.Equal(t, 300, stats.TotalTokens)
	assert.Equal(t, 1, f.gw.CacheStats().Entries)
}

func TestScenario_RepeatServedFromCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.gw.Analyze(ctx, sample)
	require.NoError(t, err)
	costAfterFirst := f.gw.UsageStats().TotalCost

	second, err := f.gw.Analyze(ctx, sample)
	require.NoError(t, err)

	assert.Equal(t, first.Text, second.Text)
	assert.True(t, second.Cached)
	assert.Equal(t, int32(1), f.totalCalls())
	assert.Equal(t, costAfterFirst, f.gw.UsageStats().TotalCost)
	assert.Equal(t, 1, f.gw.UsageStats().TotalRequests)
}

func TestResultJSONOmitsTierWhenCached(t *testing.T) {
	fresh, err := json.Marshal(Result{Text: "x", Tier: router.TierPremium, Provider: "prem"})
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(fresh, &m))
	assert.Equal(t, "premium", m["tier"])
	assert.Equal(t, "prem", m["provider"])

	cached, err := json.Marshal(Result{Text: "x", Cached: true})
	require.NoError(t, err)
	m = nil
	require.NoError(t, json.Unmarshal(cached, &m))
	assert.NotContains(t, m, "tier")
	assert.Equal(t, true, m["cached"])
}

func TestScenario_BudgetExhausted(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Budget.LimitUSD = 1 })
	f.gw.ledger.Record(pricing.FromDollars(1), 10, "econ", "econ-model", UsageKind)

	_, err := f.gw.Analyze(context.Background(), sample)
	require.ErrorIs(t, err, ErrBudgetExceeded)

	assert.Zero(t, f.totalCalls(), "no provider call when over budget")
	assert.Equal(t, 0, f.gw.CacheStats().Entries)
	assert.Len(t, f.gw.ledger.Records(), 1)
	assert.False(t, f.gw.CanSpend())
}

func TestScenario_ScoreAtThresholdRoutesPremium(t *testing.T) {
	f := newFixture(t, nil)
	f.score.Store(router.DefaultThreshold)

	res, err := f.gw.Analyze(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, router.TierPremium, res.Tier)
	assert.Equal(t, "prem", res.Provider)
	assert.Equal(t, router.DefaultThreshold, res.Score)
	assert.Zero(t, f.economy.calls.Load())
}

func TestScoreBelowThresholdRoutesEconomy(t *testing.T) {
	f := newFixture(t, nil)
	f.score.Store(0.59)

	res, err := f.gw.Analyze(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, router.TierEconomy, res.Tier)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestNoProviderConfigured(t *testing.T) {
	t.Run("no tiers", func(t *testing.T) {
		f := newFixture(t, func(c *config.Config) {
			c.Economy = config.ProviderConfig{}
			c.Premium = config.ProviderConfig{}
		})
		_, err := f.gw.Explain(context.Background(), "x", "", "go")
		assert.ErrorIs(t, err, ErrNoProviderConfigured)
	})

	t.Run("missing credentials", func(t *testing.T) {
		f := newFixture(t, nil)
		f.economy.configured = false
		f.premium.configured = false
		require.NoError(t, f.gw.Reconfigure(f.cfg))

		_, err := f.gw.Explain(context.Background(), "x", "", "go")
		assert.ErrorIs(t, err, ErrNoProviderConfigured)
		assert.Zero(t, f.totalCalls())
	})

	t.Run("override names unavailable tier", func(t *testing.T) {
		f := newFixture(t, func(c *config.Config) { c.Premium = config.ProviderConfig{} })
		tier := router.TierPremium
		req := sample
		req.Tier = &tier

		_, err := f.gw.Analyze(context.Background(), req)
		assert.ErrorIs(t, err, ErrNoProviderConfigured)
		assert.Zero(t, f.totalCalls())
	})
}

func TestProviderErrorLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, nil)
	f.economy.err = &provider.ProviderError{Provider: "econ", Status: 503, Message: "overloaded"}

	_, err := f.gw.Analyze(context.Background(), sample)

	var pe *provider.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 503, pe.Status)
	assert.Equal(t, "econ", pe.Provider)

	assert.Zero(t, f.gw.UsageStats().TotalRequests)
	assert.Zero(t, f.gw.CacheStats().Entries)
	assert.Zero(t, f.premium.calls.Load(), "no fallback to the other tier")
}

func TestBudgetAndNetworkErrorsAreDistinguishable(t *testing.T) {
	f := newFixture(t, nil)
	f.economy.err = &provider.ProviderError{Provider: "econ", Message: "connection refused"}

	_, err := f.gw.Analyze(context.Background(), sample)
	assert.False(t, errors.Is(err, ErrBudgetExceeded))

	var pe *provider.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Temporary())
}

// =============================================================================
// ROUTING
// =============================================================================

func TestOverrideSkipsClassifier(t *testing.T) {
	f := newFixture(t, nil)
	f.score.Store(0.99)
	tier := router.TierEconomy
	req := sample
	req.Tier = &tier

	res, err := f.gw.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, router.TierEconomy, res.Tier)
	assert.Equal(t, "explicit override", res.Reason)
}

func TestSingleTierIgnoresScore(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Economy = config.ProviderConfig{} })
	f.score.Store(0.0)

	res, err := f.gw.Analyze(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, router.TierPremium, res.Tier)
}

func TestLocalOnlyRouting(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Routing.LocalOnly = true })
	// Fixture providers are remote; rebuild with a local premium tier.
	f.premium.endpoint = "http://127.0.0.1:11434"
	require.NoError(t, f.gw.Reconfigure(f.cfg))
	f.score.Store(0.0)

	res, err := f.gw.Analyze(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, router.TierPremium, res.Tier, "remote economy tier is blocked")

	models := f.gw.Models()
	require.Len(t, models, 2)
	assert.False(t, models[0].Available)
	assert.Equal(t, "blocked by local-only routing", models[0].Reason)
	assert.True(t, models[1].Available)
}

func TestRoute(t *testing.T) {
	f := newFixture(t, nil)
	f.score.Store(0.8)

	d, err := f.gw.Route(sample)
	require.NoError(t, err)
	assert.Equal(t, router.TierPremium, d.Tier)
	assert.Zero(t, f.totalCalls())
}

// =============================================================================
// CACHE BEHAVIOR
// =============================================================================

func TestCacheDisabled(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Cache.Enabled = false })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.gw.Analyze(ctx, sample)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), f.totalCalls())
	assert.Zero(t, f.gw.CacheStats().Entries)
	assert.Equal(t, 2, f.gw.UsageStats().TotalRequests)
}

func TestNoCacheRefreshes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.gw.Analyze(ctx, sample)
	require.NoError(t, err)

	f.economy.text = "fresh"
	req := sample
	req.NoCache = true
	res, err := f.gw.Analyze(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "fresh", res.Text)

	text, err := f.gw.Explain(ctx, sample.Code, sample.Context, sample.Language)
	require.NoError(t, err)
	assert.Equal(t, "fresh", text)
	assert.Equal(t, int32(2), f.totalCalls())
}

func TestLanguageAliasesShareCacheEntry(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.gw.Explain(ctx, "const x = 1", "", "js")
	require.NoError(t, err)
	_, err = f.gw.Explain(ctx, "const x = 1", "", "javascript")
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.totalCalls())
}

func TestCacheSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	econ := newFake("econ")
	factory := func(pc provider.Config) (provider.Provider, error) { return econ, nil }

	cfg := config.Default()
	cfg.Economy = config.ProviderConfig{Kind: "openai", Name: "econ"}
	cfg.Premium = config.ProviderConfig{}
	cfg.Storage = config.StorageConfig{Backend: store.BackendFile, Path: dir}

	gw, err := New(context.Background(), cfg, Options{NewProvider: factory})
	require.NoError(t, err)
	_, err = gw.Analyze(context.Background(), sample)
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	gw, err = New(context.Background(), cfg, Options{NewProvider: factory})
	require.NoError(t, err)
	defer gw.Close()

	res, err := gw.Analyze(context.Background(), sample)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, int32(1), econ.calls.Load())
	assert.Equal(t, 1, gw.UsageStats().TotalRequests)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrentIdenticalRequestsCallOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.economy.started = make(chan struct{}, 1)
	f.economy.release = make(chan struct{})

	const n = 8
	var wg sync.WaitGroup
	results := make([]*Result, n)
	errs := make([]error, n)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = f.gw.Analyze(context.Background(), sample)
	}()
	<-f.economy.started

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.gw.Analyze(context.Background(), sample)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(f.economy.release)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "explanation from econ", results[i].Text)
	}
	assert.Equal(t, int32(1), f.economy.calls.Load())
	assert.Equal(t, 1, f.gw.UsageStats().TotalRequests)
}

func TestCallerCancelDoesNotAbortSharedCall(t *testing.T) {
	f := newFixture(t, nil)
	f.economy.started = make(chan struct{}, 1)
	f.economy.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := f.gw.Analyze(ctx, sample)
		errCh <- err
	}()
	<-f.economy.started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(f.economy.release)
	require.Eventually(t, func() bool {
		return f.gw.CacheStats().Entries == 1
	}, 2*time.Second, 10*time.Millisecond, "abandoned call still completes and is recorded")
	assert.Equal(t, 1, f.gw.UsageStats().TotalRequests)
}

func TestProviderCallHasTimeout(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Gateway.RequestTimeoutSecs = 5 })

	before := time.Now()
	_, err := f.gw.Analyze(context.Background(), sample)
	require.NoError(t, err)

	dl, ok := f.economy.deadline.Load().(time.Time)
	require.True(t, ok, "provider context must carry a deadline")
	assert.WithinDuration(t, before.Add(5*time.Second), dl, time.Second)
}

func TestProviderTimeoutIsReported(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Gateway.RequestTimeoutSecs = 1 })
	f.economy.release = make(chan struct{})

	_, err := f.gw.Analyze(context.Background(), sample)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var pe *provider.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "econ", pe.Provider)
	assert.Zero(t, f.gw.UsageStats().TotalRequests)
}

func TestCallerDeadlineIsNotAGatewayTimeout(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Gateway.RequestTimeoutSecs = 30
		c.Gateway.DedupeInflight = false
	})
	f.economy.release = make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.gw.Analyze(ctx, sample)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestDedupeDisabledStillWorks(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Gateway.DedupeInflight = false })

	res, err := f.gw.Analyze(context.Background(), sample)
	require.NoError(t, err)
	assert.False(t, res.Shared)
	assert.Equal(t, int32(1), f.totalCalls())
}

// =============================================================================
// RECONFIGURE AND ADMIN
// =============================================================================

func TestReconfigure(t *testing.T) {
	f := newFixture(t, nil)
	f.score.Store(0.3)

	res, err := f.gw.Analyze(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, router.TierEconomy, res.Tier)

	next := f.cfg.Clone()
	next.Routing.ComplexityThreshold = 0.2
	next.Budget.LimitUSD = 5
	next.Budget.Period = "day"
	next.Cache.MaxEntries = 10
	require.NoError(t, f.gw.Reconfigure(next))

	req := sample
	req.Code += "\n// changed"
	res, err = f.gw.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, router.TierPremium, res.Tier)

	stats := f.gw.UsageStats()
	assert.Equal(t, pricing.FromDollars(5), stats.Limit)
	assert.Equal(t, ledger.PeriodDay, stats.Period)
	assert.Equal(t, 10, f.gw.CacheStats().MaxEntries)
	assert.Equal(t, 0.2, f.gw.Config().Routing.ComplexityThreshold)

	bad := next.Clone()
	bad.Routing.ComplexityThreshold = 3
	assert.Error(t, f.gw.Reconfigure(bad))
	assert.Equal(t, 0.2, f.gw.Config().Routing.ComplexityThreshold, "invalid config is not applied")
}

func TestModels(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Premium = config.ProviderConfig{} })

	models := f.gw.Models()
	require.Len(t, models, 2)
	assert.Equal(t, router.TierEconomy, models[0].Tier)
	assert.True(t, models[0].Available)
	assert.Equal(t, "econ", models[0].Provider)
	assert.Equal(t, "econ-model", models[0].Model)
	assert.Equal(t, router.TierPremium, models[1].Tier)
	assert.False(t, models[1].Available)
	assert.Equal(t, "not configured", models[1].Reason)
}

func TestClearCacheAndResetUsage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.gw.Analyze(ctx, sample)
	require.NoError(t, err)

	f.gw.ClearCache()
	assert.Zero(t, f.gw.CacheStats().Entries)

	key, err := f.gw.ResetUsage(ctx, ledger.ResetArchive)
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Zero(t, f.gw.UsageStats().TotalRequests)

	archived, err := f.gw.ledger.LoadArchive(ctx, key)
	require.NoError(t, err)
	assert.Len(t, archived, 1)
}

func TestMaintain(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var clock atomic.Value
	clock.Store(now)

	econ := newFake("econ")
	cfg := config.Default()
	cfg.Economy = config.ProviderConfig{Kind: "openai", Name: "econ"}
	cfg.Premium = config.ProviderConfig{}
	cfg.Storage.Backend = store.BackendMemory
	cfg.Cache.TTLHours = 1
	cfg.Budget.RetentionDays = 1

	gw, err := New(context.Background(), cfg, Options{
		Store:       store.NewMemory(),
		NewProvider: func(provider.Config) (provider.Provider, error) { return econ, nil },
		Now:         func() time.Time { return clock.Load().(time.Time) },
	})
	require.NoError(t, err)
	defer gw.Close()

	_, err = gw.Analyze(context.Background(), sample)
	require.NoError(t, err)

	clock.Store(now.Add(48 * time.Hour))
	expired, purged := gw.Maintain()
	assert.Equal(t, 1, expired)
	assert.Equal(t, 1, purged)
}

func TestBudgetAlertForwarded(t *testing.T) {
	alerts := make(chan ledger.Alert, 4)
	var logs lockedBuffer
	econ := newFake("econ")
	econ.cost = pricing.FromDollars(0.9)

	cfg := config.Default()
	cfg.Economy = config.ProviderConfig{Kind: "openai", Name: "econ"}
	cfg.Premium = config.ProviderConfig{}
	cfg.Budget.LimitUSD = 1

	gw, err := New(context.Background(), cfg, Options{
		Store:       store.NewMemory(),
		NewProvider: func(provider.Config) (provider.Provider, error) { return econ, nil },
		OnAlert:     func(a ledger.Alert) { alerts <- a },
		Logger:      slog.New(slog.NewJSONHandler(&logs, nil)),
	})
	require.NoError(t, err)
	defer gw.Close()

	_, err = gw.Analyze(context.Background(), sample)
	require.NoError(t, err)

	select {
	case a := <-alerts:
		assert.Equal(t, 0.8, a.Threshold)
	case <-time.After(2 * time.Second):
		t.Fatal("expected budget alert")
	}

	logs.mu.Lock()
	defer logs.mu.Unlock()
	assert.Equal(t, 1, strings.Count(logs.buf.String(), `"threshold":0.8`), "alert is logged once")
}

// lockedBuffer is a log sink safe for concurrent writers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func TestClosedGateway(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.gw.Close())
	require.NoError(t, f.gw.Close())

	_, err := f.gw.Analyze(context.Background(), sample)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.MaxEntries = -1
	_, err := New(context.Background(), cfg, Options{Store: store.NewMemory()})

	var verrs config.ValidateErrors
	assert.ErrorAs(t, err, &verrs)
}
