package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"slotbook/internal/models"
)

// Cached decorates a Collector with a Redis read-through cache for busy
// intervals. Write-back calls invalidate the cache and pass straight
// through. Served data may lag the upstream calendar by up to the TTL,
// which the core tolerates: commits re-validate against this same cache.
type Cached struct {
	inner  Collector
	redis  *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

// NewCached wraps inner with a Redis cache.
func NewCached(inner Collector, rdb *redis.Client, ttl time.Duration, logger *zerolog.Logger) *Cached {
	return &Cached{inner: inner, redis: rdb, ttl: ttl, logger: logger}
}

// BusyIntervals serves from cache when possible, otherwise asks the inner
// collector and stores the result. Cache failures degrade to the inner
// collector rather than failing the request.
func (c *Cached) BusyIntervals(ctx context.Context, start, end time.Time) ([]models.BusyInterval, error) {
	key := c.busyKey(start, end)

	var cached []models.BusyInterval
	if c.readCache(ctx, key, &cached) {
		return cached, nil
	}

	busy, err := c.inner.BusyIntervals(ctx, start, end)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, busy)
	return busy, nil
}

// CreateEvent passes through and invalidates cached busy data.
func (c *Cached) CreateEvent(ctx context.Context, booking models.Booking) (string, error) {
	id, err := c.inner.CreateEvent(ctx, booking)
	if err != nil {
		return "", err
	}
	c.invalidate(ctx)
	return id, nil
}

// DeleteEvent passes through and invalidates cached busy data.
func (c *Cached) DeleteEvent(ctx context.Context, externalEventID string) error {
	err := c.inner.DeleteEvent(ctx, externalEventID)
	if err != nil && err != ErrEventAbsent {
		return err
	}
	c.invalidate(ctx)
	return err
}

func (c *Cached) busyKey(start, end time.Time) string {
	return fmt.Sprintf("busy:%d:%d", start.Unix(), end.Unix())
}

func (c *Cached) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.ttl <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Cached) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("busy interval cache write failed")
	}
}

func (c *Cached) invalidate(ctx context.Context) {
	if c.redis == nil {
		return
	}
	iter := c.redis.Scan(ctx, 0, "busy:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Debug().Err(err).Msg("busy interval cache invalidation failed")
			return
		}
	}
}
