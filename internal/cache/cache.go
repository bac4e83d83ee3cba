// Package cache keeps computed slot lists in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Shorlotik/Bot-Stomatologija/internal/schedule"
)

const keyPrefix = "slots:"

// SlotCache implements schedule.SlotCache on top of Redis.
// Any Redis failure is treated as a miss.
type SlotCache struct {
	redis  *redis.Client
	ttl    time.Duration
	loc    *time.Location
	logger zerolog.Logger
}

// NewSlotCache creates a slot cache. Entries expire after ttl.
func NewSlotCache(client *redis.Client, ttl time.Duration, loc *time.Location, logger zerolog.Logger) *SlotCache {
	if loc == nil {
		loc = time.Local
	}
	return &SlotCache{
		redis:  client,
		ttl:    ttl,
		loc:    loc,
		logger: logger.With().Str("component", "slot_cache").Logger(),
	}
}

func dateKey(date time.Time) string {
	return date.Format("2006-01-02")
}

func (c *SlotCache) key(k schedule.SlotKey) string {
	mode := "regular"
	if k.Restricted {
		mode = "restricted"
	}
	return fmt.Sprintf("%s%s:%d:%s", keyPrefix, dateKey(k.Date), k.DurationMinutes, mode)
}

// Get returns a cached slot list.
func (c *SlotCache) Get(ctx context.Context, k schedule.SlotKey) ([]time.Time, bool) {
	if c.redis == nil || c.ttl <= 0 {
		return nil, false
	}
	val, err := c.redis.Get(ctx, c.key(k)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("slot cache read failed")
		}
		return nil, false
	}
	var unix []int64
	if err := json.Unmarshal([]byte(val), &unix); err != nil {
		return nil, false
	}
	slots := make([]time.Time, len(unix))
	for i, u := range unix {
		slots[i] = time.Unix(u, 0).In(c.loc)
	}
	return slots, true
}

// Set stores a slot list.
func (c *SlotCache) Set(ctx context.Context, k schedule.SlotKey, slots []time.Time) {
	if c.redis == nil || c.ttl <= 0 {
		return
	}
	unix := make([]int64, len(slots))
	for i, s := range slots {
		unix[i] = s.Unix()
	}
	data, err := json.Marshal(unix)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.key(k), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("slot cache write failed")
	}
}

// InvalidateDate drops every cached list for date.
func (c *SlotCache) InvalidateDate(ctx context.Context, date time.Time) error {
	return c.deleteMatching(ctx, keyPrefix+dateKey(date)+":*")
}

// InvalidateAll drops every cached list. Schedule changes use it.
func (c *SlotCache) InvalidateAll(ctx context.Context) error {
	return c.deleteMatching(ctx, keyPrefix+"*")
}

func (c *SlotCache) deleteMatching(ctx context.Context, pattern string) error {
	if c.redis == nil {
		return nil
	}
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete %d keys: %w", len(keys), err)
	}
	c.logger.Debug().Str("pattern", pattern).Int("keys", len(keys)).Msg("slot cache invalidated")
	return nil
}

// Ping checks the Redis connection.
func (c *SlotCache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}
