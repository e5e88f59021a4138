// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/hoverlens/internal/store"
)

// Defaults applied when Options leave a limit unset.
const (
	DefaultMaxEntries = 1000
	DefaultTTL        = 7 * 24 * time.Hour

	// StoreKey is the key the cache snapshot is persisted under.
	StoreKey = "cache.entries"

	persistTimeout = 5 * time.Second
)

// =============================================================================
// TYPES
// =============================================================================

// Entry is one cached explanation.
type Entry struct {
	Key            string    `json:"key"`
	Value          string    `json:"value"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    int       `json:"access_count"`
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Entries    int        `json:"entries"`
	MaxEntries int        `json:"max_entries"`
	Hits       uint64     `json:"hits"`
	Misses     uint64     `json:"misses"`
	HitRate    float64    `json:"hit_rate"`
	SizeBytes  int64      `json:"size_bytes"`
	Oldest     *time.Time `json:"oldest,omitempty"`
	Newest     *time.Time `json:"newest,omitempty"`
}

// Options configures a Cache.
type Options struct {
	MaxEntries int
	TTL        time.Duration

	// Store persists the cache across restarts. Nil disables persistence.
	Store store.Store
	// FlushDelay batches snapshot writes; zero writes on every change.
	// Call Flush before closing the store.
	FlushDelay time.Duration

	Logger *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Cache is an LRU + TTL map from request keys to explanations.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*list.Element
	order      *list.List // front is most recently accessed
	maxEntries int
	ttl        time.Duration
	hits       uint64
	misses     uint64
	version    uint64

	store store.Store
	log   *slog.Logger
	now   func() time.Time

	flusher   *store.WriteBehind
	persistMu sync.Mutex
	persisted uint64
}

// New creates an empty cache. Call Load to restore a persisted snapshot.
func New(opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Cache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: opts.MaxEntries,
		ttl:        opts.TTL,
		store:      opts.Store,
		log:        opts.Logger.With("component", "cache"),
		now:        opts.Now,
	}
	c.flusher = store.NewWriteBehind(opts.FlushDelay, c.persist)
	return c
}

// Flush writes any batched changes to the store.
func (c *Cache) Flush() {
	c.flusher.Flush()
}

// =============================================================================
// LOOKUP AND STORE
// =============================================================================

// Get returns the cached value for key. A hit refreshes the entry's access
// time; an expired entry is removed and reported as a miss.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		c.mu.Unlock()
		return "", false
	}

	entry := el.Value.(*Entry)
	now := c.now()
	if c.expiredLocked(entry, now) {
		c.removeElementLocked(el)
		c.misses++
		c.mu.Unlock()
		c.log.Debug("cache entry expired", "key", shortKey(key))
		c.flusher.Mark()
		return "", false
	}

	entry.LastAccessedAt = now
	entry.AccessCount++
	c.order.MoveToFront(el)
	c.hits++
	value := entry.Value
	c.mu.Unlock()
	return value, true
}

// Set stores value under key, overwriting any existing entry. When the cache
// is full the least recently accessed entry is evicted first.
func (c *Cache) Set(key, value string) {
	c.mu.Lock()
	now := c.now()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*Entry)
		entry.Value = value
		entry.CreatedAt = now
		entry.LastAccessedAt = now
		c.order.MoveToFront(el)
	} else {
		for c.order.Len() >= c.maxEntries {
			c.evictOldestLocked()
		}
		c.entries[key] = c.order.PushFront(&Entry{
			Key:            key,
			Value:          value,
			CreatedAt:      now,
			LastAccessedAt: now,
		})
	}
	c.mu.Unlock()

	c.flusher.Mark()
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	el, ok := c.entries[key]
	if ok {
		c.removeElementLocked(el)
	}
	c.mu.Unlock()

	if ok {
		c.flusher.Mark()
	}
	return ok
}

// Clear removes every entry and resets the hit and miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.hits = 0
	c.misses = 0
	c.mu.Unlock()

	c.flusher.Mark()
}

// PurgeExpired drops every expired entry and returns how many were removed.
func (c *Cache) PurgeExpired() int {
	c.mu.Lock()
	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if c.expiredLocked(el.Value.(*Entry), now) {
			c.removeElementLocked(el)
			removed++
		}
		el = prev
	}
	c.mu.Unlock()

	if removed > 0 {
		c.flusher.Mark()
	}
	return removed
}

// =============================================================================
// LIMITS
// =============================================================================

// Resize changes the capacity, evicting least recently used entries if the
// cache is now over it. Non-positive values restore the default.
func (c *Cache) Resize(maxEntries int) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	c.mu.Lock()
	c.maxEntries = maxEntries
	evicted := 0
	for c.order.Len() > c.maxEntries {
		c.evictOldestLocked()
		evicted++
	}
	c.mu.Unlock()

	if evicted > 0 {
		c.flusher.Mark()
	}
}

// SetTTL changes the entry lifetime. Non-positive values restore the default.
func (c *Cache) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

// =============================================================================
// INSPECTION
// =============================================================================

// Len returns the number of entries, including expired ones not yet purged.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

// Stats returns counters and size information.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Entries:    c.order.Len(),
		MaxEntries: c.maxEntries,
		Hits:       c.hits,
		Misses:     c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}

	var oldest, newest time.Time
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*Entry)
		s.SizeBytes += int64(len(e.Key) + len(e.Value))
		if oldest.IsZero() || e.CreatedAt.Before(oldest) {
			oldest = e.CreatedAt
		}
		if e.CreatedAt.After(newest) {
			newest = e.CreatedAt
		}
	}
	if s.Entries > 0 {
		s.Oldest = &oldest
		s.Newest = &newest
	}
	return s
}

// Entries returns a copy of all entries, most recently accessed first.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*Entry))
	}
	return out
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Load replaces the in-memory contents with the persisted snapshot. Expired
// entries are dropped and the result is trimmed to capacity. A missing
// snapshot is not an error; a corrupt one is logged and returned, leaving the
// cache empty.
func (c *Cache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	raw, err := c.store.Get(ctx, StoreKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		c.log.Warn("failed to load cache snapshot", "error", err)
		return err
	}

	var snapshot map[string]Entry
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		c.log.Warn("discarding corrupt cache snapshot", "error", err)
		return err
	}

	entries := make([]Entry, 0, len(snapshot))
	for key, e := range snapshot {
		e.Key = key
		entries = append(entries, e)
	}
	// Oldest access at the back of the list.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccessedAt.After(entries[j].LastAccessedAt)
	})

	c.mu.Lock()
	now := c.now()
	c.entries = make(map[string]*list.Element, len(entries))
	c.order.Init()
	dropped := 0
	for i := range entries {
		e := entries[i]
		if c.expiredLocked(&e, now) || c.order.Len() >= c.maxEntries {
			dropped++
			continue
		}
		c.entries[e.Key] = c.order.PushBack(&e)
	}
	loaded := c.order.Len()
	c.mu.Unlock()

	c.log.Debug("cache snapshot loaded", "entries", loaded, "dropped", dropped)
	if dropped > 0 {
		c.flusher.Mark()
	}
	return nil
}

// persist writes the current snapshot to the store. Failures are logged.
// Snapshots are versioned so a slow writer never overwrites a newer one.
func (c *Cache) persist() {
	if c.store == nil {
		return
	}

	c.mu.Lock()
	c.version++
	version := c.version
	snapshot := make(map[string]Entry, len(c.entries))
	for key, el := range c.entries {
		snapshot[key] = *el.Value.(*Entry)
	}
	c.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		c.log.Warn("failed to encode cache snapshot", "error", err)
		return
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if version <= c.persisted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.store.Put(ctx, StoreKey, data); err != nil {
		c.log.Warn("failed to persist cache", "error", err)
		return
	}
	c.persisted = version
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Cache) expiredLocked(e *Entry, now time.Time) bool {
	return now.Sub(e.CreatedAt) > c.ttl
}

func (c *Cache) evictOldestLocked() {
	if el := c.order.Back(); el != nil {
		c.log.Debug("evicting least recently used entry", "key", shortKey(el.Value.(*Entry).Key))
		c.removeElementLocked(el)
	}
}

func (c *Cache) removeElementLocked(el *list.Element) {
	entry := c.order.Remove(el).(*Entry)
	delete(c.entries, entry.Key)
}

// shortKey trims a digest for log lines.
func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
