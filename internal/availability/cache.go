package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDatesCache stores month date lists in Redis.
type RedisDatesCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisDatesCache creates a cache with the given entry lifetime.
func NewRedisDatesCache(client *redis.Client, ttl time.Duration) *RedisDatesCache {
	if client == nil {
		panic("availability: redis client required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisDatesCache{redis: client, ttl: ttl, prefix: "availability:dates"}
}

func (c *RedisDatesCache) key(year int, month time.Month) string {
	return fmt.Sprintf("%s:%04d-%02d", c.prefix, year, int(month))
}

func (c *RedisDatesCache) GetDates(ctx context.Context, year int, month time.Month) ([]time.Time, bool, error) {
	data, err := c.redis.Get(ctx, c.key(year, month)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("availability: cache get: %w", err)
	}
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, fmt.Errorf("availability: cache decode: %w", err)
	}
	dates := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		d, err := ParseDate(s)
		if err != nil {
			return nil, false, fmt.Errorf("availability: cache decode: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, true, nil
}

func (c *RedisDatesCache) SetDates(ctx context.Context, year int, month time.Month, dates []time.Time) error {
	raw := make([]string, 0, len(dates))
	for _, d := range dates {
		raw = append(raw, FormatDate(d))
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("availability: cache encode: %w", err)
	}
	if err := c.redis.Set(ctx, c.key(year, month), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("availability: cache set: %w", err)
	}
	return nil
}

// Invalidate deletes the month entries containing dates.
func (c *RedisDatesCache) Invalidate(ctx context.Context, dates ...time.Time) error {
	seen := map[string]bool{}
	var keys []string
	for _, d := range dates {
		k := c.key(d.Year(), d.Month())
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("availability: cache invalidate: %w", err)
	}
	return nil
}
