package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/pulse/pkg/analytics"
	"github.com/platinummonkey/pulse/pkg/observability"
)

const redisKeyPrefix = "pulse:query:"

type redisPayload struct {
	Normalized string                 `json:"normalized"`
	Result     *analytics.QueryResult `json:"result"`
}

// Redis is a cache backend shared by multiple instances. Redis-side
// failures degrade to cache misses rather than surfacing to callers;
// they are logged for operators instead. Expiry is delegated to Redis
// TTLs, so there is no sweep goroutine.
type Redis struct {
	client   *redis.Client
	config   Config
	notifier analytics.Notifier
	logger   *observability.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedis creates a Redis-backed cache from a redis URL.
func NewRedis(redisURL string, config Config, notifier analytics.Notifier, logger *observability.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisWithClient(client, config, notifier, logger), nil
}

func newRedisWithClient(client *redis.Client, config Config, notifier analytics.Notifier, logger *observability.Logger) *Redis {
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}
	if notifier == nil {
		notifier = analytics.NopNotifier()
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Redis{
		client:   client,
		config:   config,
		notifier: notifier,
		logger:   logger,
	}
}

// Client exposes the underlying redis client for health checks.
func (c *Redis) Client() *redis.Client {
	return c.client
}

// Close releases the redis connection.
func (c *Redis) Close() error {
	return c.client.Close()
}

// Get returns the cached result for query, or (nil, false) on a miss.
func (c *Redis) Get(ctx context.Context, query analytics.AnalyticsQuery) (*analytics.QueryResult, bool) {
	key := Key(query)

	data, err := c.client.Get(ctx, redisKeyPrefix+key).Result()
	if err == redis.Nil {
		c.misses.Add(1)
		c.notify(analytics.NotifyCacheMiss, key)
		return nil, false
	} else if err != nil {
		c.logger.WithError(err).Warn("redis cache get failed, treating as miss")
		c.misses.Add(1)
		c.notify(analytics.NotifyCacheMiss, key)
		return nil, false
	}

	var payload redisPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		// Corrupt entry, drop it.
		c.client.Del(ctx, redisKeyPrefix+key)
		c.misses.Add(1)
		c.notify(analytics.NotifyCacheMiss, key)
		return nil, false
	}

	c.hits.Add(1)
	c.notify(analytics.NotifyCacheHit, key)

	result := payload.Result
	result.Metadata.CacheHit = true
	return result, true
}

// Set stores result under the query's content hash with the configured
// TTL. Capacity is bounded by the Redis maxmemory policy rather than an
// entry count.
func (c *Redis) Set(ctx context.Context, query analytics.AnalyticsQuery, result *analytics.QueryResult) {
	if result == nil {
		return
	}
	key := Key(query)

	data, err := json.Marshal(redisPayload{Normalized: Normalize(query), Result: result})
	if err != nil {
		c.logger.WithError(err).Warn("failed to marshal cache payload")
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, data, c.config.TTL).Err(); err != nil {
		c.logger.WithError(err).Warn("redis cache set failed")
		return
	}
	c.notify(analytics.NotifyCacheSet, key)
}

// Invalidate removes entries whose normalized query matches pattern,
// or everything under the cache prefix when pattern is empty.
func (c *Redis) Invalidate(ctx context.Context, pattern string) (int, error) {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return 0, fmt.Errorf("invalid invalidation pattern %q: %w", pattern, err)
		}
	}

	count := 0
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if re != nil {
			data, err := c.client.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			var payload redisPayload
			if err := json.Unmarshal([]byte(data), &payload); err != nil {
				continue
			}
			if !re.MatchString(payload.Normalized) {
				continue
			}
		}
		if err := c.client.Del(ctx, key).Err(); err == nil {
			count++
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.WithError(err).Warn("redis cache invalidation scan failed")
	}

	if count > 0 {
		c.notifier.Notify(analytics.Notification{
			Kind:   analytics.NotifyCacheCleared,
			At:     time.Now(),
			Fields: map[string]interface{}{"pattern": pattern, "removed": count},
		})
	}
	return count, nil
}

// Stats reports cache effectiveness. Size is the number of live keys
// under the cache prefix; per-entry hit counts are not tracked by this
// backend.
func (c *Redis) Stats(ctx context.Context) Stats {
	size := 0
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		size++
	}

	stats := Stats{Size: size}
	hits, misses := c.hits.Load(), c.misses.Load()
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

func (c *Redis) notify(kind analytics.NotificationKind, key string) {
	c.notifier.Notify(analytics.Notification{
		Kind:   kind,
		At:     time.Now(),
		Fields: map[string]interface{}{"key": key},
	})
}
