// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/hoverlens/internal/pricing"
	"github.com/jeranaias/hoverlens/internal/store"
)

// Storage keys and defaults.
const (
	HistoryKey    = "usage.history"
	ArchivePrefix = "usage.archive."
	corruptPrefix = "usage.corrupt."

	DefaultRetention = 180 * 24 * time.Hour

	persistTimeout = 5 * time.Second
	breakdownDays  = 30
)

// DefaultAlertThresholds are the budget fractions that raise alerts.
var DefaultAlertThresholds = []float64{0.8, 1.0}

// Options configures a Ledger.
type Options struct {
	// Limit is the budget per Period. Zero disables the budget.
	Limit  pricing.Micros
	Period Period

	// AlertThresholds are fractions of Limit; nil uses DefaultAlertThresholds.
	AlertThresholds []float64
	OnAlert         AlertFunc

	// Retention is how long records are kept; zero uses DefaultRetention.
	Retention time.Duration

	Store store.Store
	// FlushDelay batches history writes; zero writes on every change.
	// Call Flush before closing the store.
	FlushDelay time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Ledger is the append-only usage history.
type Ledger struct {
	mu         sync.RWMutex
	records    []Record
	limit      pricing.Micros
	period     Period
	thresholds []float64
	onAlert    AlertFunc
	retention  time.Duration
	version    uint64

	store store.Store
	log   *slog.Logger
	now   func() time.Time

	flusher   *store.WriteBehind
	persistMu sync.Mutex
	persisted uint64
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// Open loads persisted history and purges records past the retention
// horizon. A corrupt history document is set aside under a "usage.corrupt."
// key and the ledger starts empty.
func Open(ctx context.Context, opts Options) (*Ledger, error) {
	if opts.Period == "" {
		opts.Period = PeriodMonth
	}
	if opts.AlertThresholds == nil {
		opts.AlertThresholds = DefaultAlertThresholds
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	thresholds := append([]float64(nil), opts.AlertThresholds...)
	sort.Float64s(thresholds)

	l := &Ledger{
		records:    make([]Record, 0),
		limit:      opts.Limit,
		period:     opts.Period,
		thresholds: thresholds,
		onAlert:    opts.OnAlert,
		retention:  opts.Retention,
		store:      opts.Store,
		log:        opts.Logger.With("component", "ledger"),
		now:        opts.Now,
	}
	l.flusher = store.NewWriteBehind(opts.FlushDelay, l.persist)

	if err := l.load(ctx); err != nil {
		return nil, err
	}
	if n := l.Purge(l.now().Add(-l.retention)); n > 0 {
		l.log.Info("purged usage records past retention", "removed", n)
	}
	return l, nil
}

func (l *Ledger) load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	raw, err := l.store.Get(ctx, HistoryKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load usage history: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		key := corruptPrefix + l.now().UTC().Format(time.RFC3339Nano)
		l.log.Error("usage history is corrupt, starting empty", "error", err, "saved_as", key)
		if perr := l.store.Put(ctx, key, raw); perr != nil {
			l.log.Warn("failed to save corrupt usage history", "error", perr)
		}
		return nil
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	l.records = records
	return nil
}

// =============================================================================
// RECORDING
// =============================================================================

// Record appends a usage record stamped with the current time and returns
// it. Persistence failures are logged, never returned.
func (l *Ledger) Record(cost pricing.Micros, tokens int, provider, model, kind string) Record {
	if cost < 0 {
		cost = 0
	}
	rec := Record{
		ID:       uuid.NewString(),
		Cost:     cost,
		Tokens:   tokens,
		Provider: provider,
		Model:    model,
		Kind:     kind,
	}

	l.mu.Lock()
	// Stamped under the lock so history stays time ordered.
	rec.Timestamp = l.now()
	l.records = append(l.records, rec)
	after := l.periodCostLocked(l.period, rec.Timestamp)
	alerts := l.crossedLocked(after-cost, after, rec.Timestamp)
	l.mu.Unlock()

	l.flusher.Mark()

	for _, a := range alerts {
		l.log.Warn("budget threshold crossed",
			"threshold", a.Threshold, "period", a.Period,
			"spent", a.PeriodCost.String(), "limit", a.Limit.String())
		if l.onAlert != nil {
			go l.onAlert(a)
		}
	}
	return rec
}

// crossedLocked returns alerts for thresholds passed between before and after.
func (l *Ledger) crossedLocked(before, after pricing.Micros, at time.Time) []Alert {
	if l.limit <= 0 || after == before {
		return nil
	}
	var alerts []Alert
	for _, t := range l.thresholds {
		mark := pricing.Micros(math.Round(t * float64(l.limit)))
		if before < mark && after >= mark {
			alerts = append(alerts, Alert{
				Threshold:  t,
				Period:     l.period,
				PeriodCost: after,
				Limit:      l.limit,
				At:         at,
			})
		}
	}
	return alerts
}

// =============================================================================
// BUDGET
// =============================================================================

// CurrentPeriodCost sums the cost of records inside the rolling window of
// the given period ending now.
func (l *Ledger) CurrentPeriodCost(period Period) pricing.Micros {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.periodCostLocked(period, l.now())
}

// CanSpend reports whether spending in the configured period is below the
// limit. It is always true when no limit is set.
func (l *Ledger) CanSpend() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.limit <= 0 {
		return true
	}
	return l.periodCostLocked(l.period, l.now()) < l.limit
}

// SetBudget replaces the limit and period.
func (l *Ledger) SetBudget(limit pricing.Micros, period Period) {
	if period == "" {
		period = PeriodMonth
	}
	l.mu.Lock()
	l.limit = limit
	l.period = period
	l.mu.Unlock()
}

// Budget returns the current limit and period.
func (l *Ledger) Budget() (pricing.Micros, Period) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limit, l.period
}

func (l *Ledger) periodCostLocked(period Period, now time.Time) pricing.Micros {
	start := now.Add(-period.Duration())
	var total pricing.Micros
	// Records are time ordered; walk back until the window start.
	for i := len(l.records) - 1; i >= 0; i-- {
		r := l.records[i]
		if r.Timestamp.Before(start) {
			break
		}
		if r.Timestamp.After(now) {
			continue
		}
		total += r.Cost
	}
	return total
}

// =============================================================================
// STATS
// =============================================================================

// Stats aggregates the whole history.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	s := Stats{
		Period:         l.period,
		Limit:          l.limit,
		DailyBreakdown: make([]DailyCost, 0),
	}

	providers := make(map[string]*Breakdown)
	models := make(map[string]*Breakdown)
	days := make(map[time.Time]*DailyCost)
	breakdownStart := startOfDay(now).AddDate(0, 0, -(breakdownDays - 1))

	for _, r := range l.records {
		s.TotalCost += r.Cost
		s.TotalTokens += r.Tokens
		s.TotalRequests++

		addBreakdown(providers, r.Provider, r)
		addBreakdown(models, r.Model, r)

		if !r.Timestamp.After(now) {
			age := now.Sub(r.Timestamp)
			if age <= PeriodDay.Duration() {
				s.LastDay += r.Cost
			}
			if age <= PeriodWeek.Duration() {
				s.LastWeek += r.Cost
			}
			if age <= PeriodMonth.Duration() {
				s.LastMonth += r.Cost
			}
		}

		if day := startOfDay(r.Timestamp); !day.Before(breakdownStart) {
			d, ok := days[day]
			if !ok {
				d = &DailyCost{Date: day}
				days[day] = d
			}
			d.Cost += r.Cost
			d.Tokens += r.Tokens
			d.Requests++
		}
	}

	s.ByProvider = sortedBreakdowns(providers)
	s.ByModel = sortedBreakdowns(models)

	for _, d := range days {
		s.DailyBreakdown = append(s.DailyBreakdown, *d)
	}
	sort.Slice(s.DailyBreakdown, func(i, j int) bool {
		return s.DailyBreakdown[i].Date.Before(s.DailyBreakdown[j].Date)
	})

	s.PeriodCost = l.periodCostLocked(l.period, now)
	s.CanSpend = l.limit <= 0 || s.PeriodCost < l.limit
	if l.limit > s.PeriodCost {
		s.Remaining = l.limit - s.PeriodCost
	}
	if len(l.records) > 0 {
		oldest := l.records[0].Timestamp
		s.Oldest = &oldest
	}
	return s
}

// Records returns a copy of the history, oldest first.
func (l *Ledger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

func addBreakdown(m map[string]*Breakdown, name string, r Record) {
	if name == "" {
		name = "unknown"
	}
	b, ok := m[name]
	if !ok {
		b = &Breakdown{Name: name}
		m[name] = b
	}
	b.Cost += r.Cost
	b.Tokens += r.Tokens
	b.Requests++
}

// sortedBreakdowns orders by cost descending, then name.
func sortedBreakdowns(m map[string]*Breakdown) []Breakdown {
	out := make([]Breakdown, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cost != out[j].Cost {
			return out[i].Cost > out[j].Cost
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// =============================================================================
// RESET, ARCHIVE AND RETENTION
// =============================================================================

// Reset discards history. In archive mode the history is first saved under
// an "usage.archive.<timestamp>" key, which is returned. If the archive
// cannot be written the history is left untouched.
func (l *Ledger) Reset(ctx context.Context, mode ResetMode) (string, error) {
	var archiveKey string

	l.mu.Lock()
	switch mode {
	case ResetClear:
	case ResetArchive:
		if l.store == nil {
			l.mu.Unlock()
			return "", errors.New("ledger: archive requires a store")
		}
		data, err := json.Marshal(l.records)
		if err != nil {
			l.mu.Unlock()
			return "", fmt.Errorf("failed to encode archive: %w", err)
		}
		archiveKey = ArchivePrefix + l.now().UTC().Format(time.RFC3339Nano)
		if err := l.store.Put(ctx, archiveKey, data); err != nil {
			l.mu.Unlock()
			return "", fmt.Errorf("failed to write archive: %w", err)
		}
	default:
		l.mu.Unlock()
		return "", fmt.Errorf("unknown reset mode %q", mode)
	}
	n := len(l.records)
	l.records = make([]Record, 0)
	l.mu.Unlock()

	l.log.Info("usage history reset", "mode", mode, "records", n, "archive", archiveKey)
	if err := l.persistErr(ctx); err != nil {
		return archiveKey, fmt.Errorf("failed to persist reset: %w", err)
	}
	return archiveKey, nil
}

// Archives lists archive keys, oldest first.
func (l *Ledger) Archives(ctx context.Context) ([]string, error) {
	if l.store == nil {
		return []string{}, nil
	}
	return l.store.List(ctx, ArchivePrefix)
}

// LoadArchive reads the records saved under an archive key.
func (l *Ledger) LoadArchive(ctx context.Context, key string) ([]Record, error) {
	if l.store == nil {
		return nil, store.ErrNotFound
	}
	raw, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("corrupt archive %s: %w", key, err)
	}
	return records, nil
}

// Purge removes records older than before and returns how many were removed.
func (l *Ledger) Purge(before time.Time) int {
	l.mu.Lock()
	cut := sort.Search(len(l.records), func(i int) bool {
		return !l.records[i].Timestamp.Before(before)
	})
	if cut > 0 {
		l.records = append(make([]Record, 0, len(l.records)-cut), l.records[cut:]...)
	}
	l.mu.Unlock()

	if cut > 0 {
		l.flusher.Mark()
	}
	return cut
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Flush writes any batched changes to the store.
func (l *Ledger) Flush() {
	l.flusher.Flush()
}

func (l *Ledger) persist() {
	if err := l.persistErr(context.Background()); err != nil {
		l.log.Warn("failed to persist usage history", "error", err)
	}
}

// persistErr writes the current history. Versioning keeps a slow writer from
// overwriting a newer snapshot.
func (l *Ledger) persistErr(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	l.mu.Lock()
	l.version++
	version := l.version
	data, err := json.Marshal(l.records)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	l.persistMu.Lock()
	defer l.persistMu.Unlock()
	if version <= l.persisted {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := l.store.Put(ctx, HistoryKey, data); err != nil {
		return err
	}
	l.persisted = version
	return nil
}
