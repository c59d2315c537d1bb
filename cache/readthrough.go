package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/leaguehub/roster-service/metrics"
)

// ReadThrough serves values from a Store and falls back to a loader on miss.
// Concurrent misses for the same key share one loader call. Store failures
// are logged and treated as misses.
type ReadThrough[T any] struct {
	name    string
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewReadThrough[T any](name string, store Store, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *ReadThrough[T] {
	return &ReadThrough[T]{
		name:    name,
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  logger,
	}
}

func (c *ReadThrough[T]) Get(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("cache read failed", slog.String("cache", c.name), slog.String("key", key), slog.Any("error", err))
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			c.metrics.ObserveCache(c.name, true)
			return v, nil
		}
		c.logger.Warn("cache entry undecodable, reloading", slog.String("cache", c.name), slog.String("key", key))
	}
	c.metrics.ObserveCache(c.name, false)

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(v); err == nil {
			if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
				c.logger.Warn("cache write failed", slog.String("cache", c.name), slog.String("key", key), slog.Any("error", err))
			}
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}
