package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPoolTTL bounds a cached figure's life when the hour-bucket
// remainder cannot be computed.
const DefaultPoolTTL = 5 * time.Minute

// PoolCache caches aggregated pool figures per hour bucket. Reads are
// best-effort: a miss or a redis failure falls back to the database and
// is never surfaced as an error.
type PoolCache struct {
	client *redis.Client
}

// NewPoolCache creates a pool cache. A nil client disables caching.
func NewPoolCache(client *redis.Client) *PoolCache {
	return &PoolCache{client: client}
}

func poolKey(domain string, hourBucket time.Time, level, category, subcategory string) string {
	return fmt.Sprintf("pool:%s:%s:%s:%s:%s",
		domain, hourBucket.UTC().Format("2006-01-02T15"), level, category, subcategory)
}

// Get retrieves a cached aggregated value. The second return reports a
// hit.
func (c *PoolCache) Get(ctx context.Context, domain string, hourBucket time.Time, level, category, subcategory string) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}

	val, err := c.client.Get(ctx, poolKey(domain, hourBucket, level, category, subcategory)).Result()
	if err != nil {
		return 0, false
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Set stores an aggregated value until the end of its hour bucket.
func (c *PoolCache) Set(ctx context.Context, domain string, hourBucket time.Time, level, category, subcategory string, value int64) {
	if c == nil || c.client == nil {
		return
	}

	ttl := time.Until(hourBucket.Add(time.Hour))
	if ttl <= 0 {
		ttl = DefaultPoolTTL
	}

	_ = c.client.Set(ctx, poolKey(domain, hourBucket, level, category, subcategory), value, ttl).Err()
}

// InvalidateHour drops every cached figure for one domain and hour
// bucket. Called after a wave run rewrites the hour's allocations.
func (c *PoolCache) InvalidateHour(ctx context.Context, domain string, hourBucket time.Time) {
	if c == nil || c.client == nil {
		return
	}

	pattern := fmt.Sprintf("pool:%s:%s:*", domain, hourBucket.UTC().Format("2006-01-02T15"))
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		_ = c.client.Del(ctx, iter.Val()).Err()
	}
}
