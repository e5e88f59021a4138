// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hoverlens/internal/pricing"
	"github.com/jeranaias/hoverlens/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)}
}

func openLedger(t *testing.T, opts Options) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), opts)
	require.NoError(t, err)
	return l
}

func dollars(d float64) pricing.Micros { return pricing.FromDollars(d) }

func TestLedger_RecordAndPeriodCost(t *testing.T) {
	clock := newClock()
	l := openLedger(t, Options{Limit: dollars(10), Period: PeriodMonth, Now: clock.Now})

	rec := l.Record(dollars(1.5), 1200, "openai", "gpt-4o-mini", "explanation")
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, clock.Now(), rec.Timestamp)

	l.Record(dollars(0.5), 300, "anthropic", "claude-3-5-sonnet", "explanation")

	assert.Equal(t, dollars(2), l.CurrentPeriodCost(PeriodMonth))
	assert.Equal(t, dollars(2), l.CurrentPeriodCost(PeriodDay))
	assert.True(t, l.CanSpend())
}

func TestLedger_RollingWindow(t *testing.T) {
	clock := newClock()
	l := openLedger(t, Options{Now: clock.Now})

	l.Record(dollars(1), 10, "p", "m", "explanation")
	clock.Advance(25 * time.Hour)
	l.Record(dollars(2), 10, "p", "m", "explanation")

	assert.Equal(t, dollars(2), l.CurrentPeriodCost(PeriodDay), "record older than 24h is outside the day window")
	assert.Equal(t, dollars(3), l.CurrentPeriodCost(PeriodWeek))

	clock.Advance(31 * 24 * time.Hour)
	assert.Zero(t, l.CurrentPeriodCost(PeriodMonth))
}

func TestLedger_CanSpendBoundary(t *testing.T) {
	clock := newClock()
	l := openLedger(t, Options{Limit: dollars(10), Period: PeriodMonth, Now: clock.Now})

	l.Record(dollars(9.99), 100, "p", "m", "explanation")
	assert.True(t, l.CanSpend(), "below the limit")

	l.Record(dollars(0.01), 1, "p", "m", "explanation")
	assert.False(t, l.CanSpend(), "exactly at the limit must block")

	clock.Advance(31 * 24 * time.Hour)
	assert.True(t, l.CanSpend(), "spend leaves the rolling window")
}

func TestLedger_ZeroLimitIsUnlimited(t *testing.T) {
	l := openLedger(t, Options{})
	l.Record(dollars(1000), 1, "p", "m", "explanation")
	assert.True(t, l.CanSpend())
	assert.Zero(t, l.Stats().Remaining)
}

func TestLedger_Stats(t *testing.T) {
	clock := newClock()
	l := openLedger(t, Options{Limit: dollars(10), Period: PeriodWeek, Now: clock.Now})

	l.Record(dollars(3), 300, "openai", "gpt-4o-mini", "explanation")
	clock.Advance(2 * 24 * time.Hour)
	l.Record(dollars(1), 100, "anthropic", "claude-3-haiku", "explanation")
	l.Record(dollars(2), 200, "openai", "gpt-4o", "explanation")
	l.Record(0, 0, "ollama", "llama3", "explanation")

	s := l.Stats()
	assert.Equal(t, dollars(6), s.TotalCost)
	assert.Equal(t, 600, s.TotalTokens)
	assert.Equal(t, 4, s.TotalRequests)

	require.Len(t, s.ByProvider, 3)
	assert.Equal(t, "openai", s.ByProvider[0].Name)
	assert.Equal(t, dollars(5), s.ByProvider[0].Cost)
	assert.Equal(t, 2, s.ByProvider[0].Requests)
	assert.Equal(t, "anthropic", s.ByProvider[1].Name)
	assert.Equal(t, "ollama", s.ByProvider[2].Name)

	require.Len(t, s.ByModel, 4)
	assert.Equal(t, "gpt-4o-mini", s.ByModel[0].Name)
	assert.Equal(t, "gpt-4o", s.ByModel[1].Name)

	assert.Equal(t, dollars(3), s.LastDay)
	assert.Equal(t, dollars(6), s.LastWeek)
	assert.Equal(t, dollars(6), s.LastMonth)

	require.Len(t, s.DailyBreakdown, 2)
	assert.Equal(t, dollars(3), s.DailyBreakdown[0].Cost)
	assert.Equal(t, 3, s.DailyBreakdown[1].Requests)

	assert.Equal(t, PeriodWeek, s.Period)
	assert.Equal(t, dollars(6), s.PeriodCost)
	assert.Equal(t, dollars(4), s.Remaining)
	assert.True(t, s.CanSpend)
	require.NotNil(t, s.Oldest)
}

func TestLedger_RemainingNeverNegative(t *testing.T) {
	l := openLedger(t, Options{Limit: dollars(1)})
	l.Record(dollars(5), 1, "p", "m", "explanation")

	s := l.Stats()
	assert.Zero(t, s.Remaining)
	assert.False(t, s.CanSpend)
}

func TestLedger_ResetClear(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	l := openLedger(t, Options{Store: kv})
	l.Record(dollars(1), 1, "p", "m", "explanation")

	key, err := l.Reset(ctx, ResetClear)
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Empty(t, l.Records())
	assert.Zero(t, l.Stats().TotalCost)

	archives, err := l.Archives(ctx)
	require.NoError(t, err)
	assert.Empty(t, archives)
}

func TestLedger_ResetArchive(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	clock := newClock()
	l := openLedger(t, Options{Store: kv, Now: clock.Now})
	l.Record(dollars(1), 10, "p", "m1", "explanation")
	l.Record(dollars(2), 20, "p", "m2", "explanation")

	key, err := l.Reset(ctx, ResetArchive)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, ArchivePrefix))
	assert.Empty(t, l.Records())

	archived, err := l.LoadArchive(ctx, key)
	require.NoError(t, err)
	require.Len(t, archived, 2)
	assert.Equal(t, "m1", archived[0].Model)

	archives, err := l.Archives(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{key}, archives)
}

func TestLedger_ResetUnknownMode(t *testing.T) {
	l := openLedger(t, Options{})
	l.Record(1, 1, "p", "m", "explanation")
	_, err := l.Reset(context.Background(), "shred")
	assert.Error(t, err)
	assert.Len(t, l.Records(), 1)
}

func TestLedger_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	clock := newClock()

	l := openLedger(t, Options{Store: kv, Now: clock.Now})
	l.Record(dollars(1.25), 50, "openai", "gpt-4o-mini", "explanation")

	reopened := openLedger(t, Options{Store: kv, Now: clock.Now})
	records := reopened.Records()
	require.Len(t, records, 1)
	assert.Equal(t, dollars(1.25), records[0].Cost)

	raw, err := kv.Get(ctx, HistoryKey)
	require.NoError(t, err)
	var decoded []Record
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Len(t, decoded, 1)
}

func TestLedger_BatchedWrites(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()

	l := openLedger(t, Options{Store: kv, FlushDelay: time.Hour})
	for i := 0; i < 5; i++ {
		l.Record(dollars(0.01), 10, "openai", "gpt-4o-mini", "explanation")
	}
	_, err := kv.Get(ctx, HistoryKey)
	assert.ErrorIs(t, err, store.ErrNotFound, "records are not written on the request path")

	l.Flush()
	raw, err := kv.Get(ctx, HistoryKey)
	require.NoError(t, err)
	var decoded []Record
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Len(t, decoded, 5)
}

func TestLedger_RetentionPurgeOnOpen(t *testing.T) {
	kv := store.NewMemory()
	clock := newClock()

	l := openLedger(t, Options{Store: kv, Now: clock.Now})
	l.Record(dollars(1), 1, "p", "old", "explanation")
	clock.Advance(100 * 24 * time.Hour)
	l.Record(dollars(1), 1, "p", "recent", "explanation")
	clock.Advance(100 * 24 * time.Hour)

	reopened := openLedger(t, Options{Store: kv, Now: clock.Now})
	records := reopened.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "recent", records[0].Model)
}

func TestLedger_CorruptHistoryIsSetAside(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Put(ctx, HistoryKey, []byte("[{broken")))

	l := openLedger(t, Options{Store: kv})
	assert.Empty(t, l.Records())

	keys, err := kv.List(ctx, "usage.corrupt.")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestLedger_AlertsFireOncePerCrossing(t *testing.T) {
	clock := newClock()
	alerts := make(chan Alert, 10)
	l := openLedger(t, Options{
		Limit:   dollars(10),
		Period:  PeriodMonth,
		Now:     clock.Now,
		OnAlert: func(a Alert) { alerts <- a },
	})

	l.Record(dollars(7), 1, "p", "m", "explanation")
	l.Record(dollars(1.5), 1, "p", "m", "explanation") // crosses 0.8
	l.Record(dollars(0.5), 1, "p", "m", "explanation")
	l.Record(dollars(1), 1, "p", "m", "explanation") // crosses 1.0

	got := make([]float64, 0, 2)
	for i := 0; i < 2; i++ {
		select {
		case a := <-alerts:
			got = append(got, a.Threshold)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected two alerts, got %v", got)
		}
	}
	assert.ElementsMatch(t, []float64{0.8, 1.0}, got)

	select {
	case a := <-alerts:
		t.Fatalf("unexpected extra alert %+v", a)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLedger_AlertDoesNotBlockRecord(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	l := openLedger(t, Options{
		Limit:   dollars(1),
		OnAlert: func(Alert) { <-block },
	})

	done := make(chan struct{})
	go func() {
		l.Record(dollars(2), 1, "p", "m", "explanation")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on the alert callback")
	}
}

func TestLedger_SetBudget(t *testing.T) {
	l := openLedger(t, Options{Limit: dollars(1)})
	l.Record(dollars(2), 1, "p", "m", "explanation")
	assert.False(t, l.CanSpend())

	l.SetBudget(dollars(5), PeriodDay)
	limit, period := l.Budget()
	assert.Equal(t, dollars(5), limit)
	assert.Equal(t, PeriodDay, period)
	assert.True(t, l.CanSpend())
}

func TestParsePeriod(t *testing.T) {
	for in, want := range map[string]Period{
		"day": PeriodDay, "Weekly": PeriodWeek, "month": PeriodMonth, "": PeriodMonth,
	} {
		got, err := ParsePeriod(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePeriod("fortnight")
	assert.Error(t, err)
}

func TestLedger_ConcurrentRecord(t *testing.T) {
	l := openLedger(t, Options{Store: store.NewMemory()})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record(10, 1, "p", "m", "explanation")
			_ = l.Stats()
			_ = l.CanSpend()
		}()
	}
	wg.Wait()

	assert.Equal(t, pricing.Micros(500), l.Stats().TotalCost)
}
