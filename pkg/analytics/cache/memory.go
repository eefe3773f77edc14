package cache

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/pulse/pkg/analytics"
)

type entry struct {
	result     *analytics.QueryResult
	normalized string
	createdAt  time.Time
	expiresAt  time.Time
	hits       int64
}

// Memory is an in-process cache backend. All operations are safe for
// concurrent use; the internal table is a single mutual-exclusion
// domain.
type Memory struct {
	config   Config
	notifier analytics.Notifier

	mu      sync.Mutex
	entries map[string]*entry

	hits   atomic.Int64
	misses atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemory creates a memory cache and starts its expiry sweep. Call
// Stop to release the sweep goroutine.
func NewMemory(config Config, notifier analytics.Notifier) *Memory {
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultConfig().MaxEntries
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultConfig().SweepInterval
	}
	if notifier == nil {
		notifier = analytics.NopNotifier()
	}

	c := &Memory{
		config:   config,
		notifier: notifier,
		entries:  make(map[string]*entry),
		stopCh:   make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Get returns the cached result for query, or (nil, false) on a miss.
// An expired entry is removed and reported as a miss.
func (c *Memory) Get(ctx context.Context, query analytics.AnalyticsQuery) (*analytics.QueryResult, bool) {
	key := Key(query)
	now := time.Now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && now.After(e.expiresAt) {
		delete(c.entries, key)
		c.mu.Unlock()
		c.misses.Add(1)
		c.notify(analytics.NotifyCacheExpired, key)
		c.notify(analytics.NotifyCacheMiss, key)
		return nil, false
	}
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		c.notify(analytics.NotifyCacheMiss, key)
		return nil, false
	}
	e.hits++
	result := *e.result
	c.mu.Unlock()

	c.hits.Add(1)
	c.notify(analytics.NotifyCacheHit, key)

	result.Metadata.CacheHit = true
	return &result, true
}

// Set stores result under the query's content hash, evicting the
// least-used entry when the cache is full.
func (c *Memory) Set(ctx context.Context, query analytics.AnalyticsQuery, result *analytics.QueryResult) {
	if result == nil {
		return
	}
	key := Key(query)
	now := time.Now()

	var evicted string
	c.mu.Lock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.config.MaxEntries {
		evicted = c.evictLocked()
	}
	c.entries[key] = &entry{
		result:     result,
		normalized: Normalize(query),
		createdAt:  now,
		expiresAt:  now.Add(c.config.TTL),
	}
	c.mu.Unlock()

	if evicted != "" {
		c.notify(analytics.NotifyCacheEvicted, evicted)
	}
	c.notify(analytics.NotifyCacheSet, key)
}

// evictLocked removes the entry with the fewest cumulative hits, ties
// broken by oldest creation time. Caller holds c.mu.
func (c *Memory) evictLocked() string {
	var victim string
	var victimEntry *entry
	for key, e := range c.entries {
		if victimEntry == nil ||
			e.hits < victimEntry.hits ||
			(e.hits == victimEntry.hits && e.createdAt.Before(victimEntry.createdAt)) {
			victim = key
			victimEntry = e
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
	return victim
}

// Invalidate removes entries whose normalized query matches pattern,
// or everything when pattern is empty.
func (c *Memory) Invalidate(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		c.mu.Lock()
		count := len(c.entries)
		c.entries = make(map[string]*entry)
		c.mu.Unlock()
		c.notifyCleared("", count)
		return count, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid invalidation pattern %q: %w", pattern, err)
	}

	c.mu.Lock()
	count := 0
	for key, e := range c.entries {
		if re.MatchString(e.normalized) {
			delete(c.entries, key)
			count++
		}
	}
	c.mu.Unlock()

	if count > 0 {
		c.notifyCleared(pattern, count)
	}
	return count, nil
}

// Stats reports the current cache state.
func (c *Memory) Stats(ctx context.Context) Stats {
	c.mu.Lock()
	entries := make([]EntryStats, 0, len(c.entries))
	for key, e := range c.entries {
		entries = append(entries, EntryStats{
			Key:       key,
			Hits:      e.hits,
			CreatedAt: e.createdAt,
			ExpiresAt: e.expiresAt,
		})
	}
	c.mu.Unlock()

	stats := Stats{Size: len(entries), Entries: entries}
	hits, misses := c.hits.Load(), c.misses.Load()
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// Stop terminates the expiry sweep goroutine.
func (c *Memory) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// sweep proactively removes expired entries so they do not linger
// until the next Get touches them.
func (c *Memory) sweep() {
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case now := <-ticker.C:
			var expired []string
			c.mu.Lock()
			for key, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, key)
					expired = append(expired, key)
				}
			}
			c.mu.Unlock()
			for _, key := range expired {
				c.notify(analytics.NotifyCacheExpired, key)
			}
		}
	}
}

func (c *Memory) notify(kind analytics.NotificationKind, key string) {
	c.notifier.Notify(analytics.Notification{
		Kind:   kind,
		At:     time.Now(),
		Fields: map[string]interface{}{"key": key},
	})
}

func (c *Memory) notifyCleared(pattern string, removed int) {
	c.notifier.Notify(analytics.Notification{
		Kind:   analytics.NotifyCacheCleared,
		At:     time.Now(),
		Fields: map[string]interface{}{"pattern": pattern, "removed": removed},
	})
}
