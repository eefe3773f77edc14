package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/platinummonkey/pulse/pkg/analytics"
)

// Cache memoizes query results. Get and Set never fail; Invalidate
// fails only on a malformed pattern.
type Cache interface {
	// Get returns the cached result for query with CacheHit set, or
	// (nil, false) on a miss.
	Get(ctx context.Context, query analytics.AnalyticsQuery) (*analytics.QueryResult, bool)

	// Set stores result under the query's content hash.
	Set(ctx context.Context, query analytics.AnalyticsQuery, result *analytics.QueryResult)

	// Invalidate removes entries whose normalized query matches the
	// regexp pattern, or all entries when pattern is empty. It returns
	// the number of entries removed.
	Invalidate(ctx context.Context, pattern string) (int, error)

	// Stats reports the current cache state.
	Stats(ctx context.Context) Stats
}

// EntryStats describes one live cache entry.
type EntryStats struct {
	Key       string    `json:"key"`
	Hits      int64     `json:"hits"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Stats is a snapshot of cache effectiveness.
type Stats struct {
	Size    int          `json:"size"`
	HitRate float64      `json:"hit_rate"`
	Entries []EntryStats `json:"entries,omitempty"`
}

// Config holds cache tuning knobs.
type Config struct {
	TTL           time.Duration
	MaxEntries    int
	SweepInterval time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		TTL:           5 * time.Minute,
		MaxEntries:    1000,
		SweepInterval: time.Minute,
	}
}

// Normalize returns the canonical JSON encoding of query. Filters are
// sorted by dimension then operator so that construction order does
// not affect the encoding; struct fields marshal in a fixed order.
func Normalize(query analytics.AnalyticsQuery) string {
	if len(query.Filters) > 1 {
		filters := make([]analytics.QueryFilter, len(query.Filters))
		copy(filters, query.Filters)
		sort.SliceStable(filters, func(i, j int) bool {
			if filters[i].Dimension != filters[j].Dimension {
				return filters[i].Dimension < filters[j].Dimension
			}
			return filters[i].Operator < filters[j].Operator
		})
		query.Filters = filters
	}
	data, err := json.Marshal(query)
	if err != nil {
		// AnalyticsQuery contains no unmarshalable types; filter values
		// arrive from JSON in the first place.
		return ""
	}
	return string(data)
}

// Key returns the deterministic content-hash key for query.
func Key(query analytics.AnalyticsQuery) string {
	sum := sha256.Sum256([]byte(Normalize(query)))
	return hex.EncodeToString(sum[:])
}
