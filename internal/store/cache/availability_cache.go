package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"schedula/availability/internal/domain"
	"schedula/availability/internal/store"
)

const (
	keyPrefix     = "schedula:availability"
	generationKey = keyPrefix + ":gen"
)

// AvailabilityCache serves range reads from Redis. Every successful write
// bumps a generation counter, which retires all previously cached ranges at
// once. Redis failures degrade to reading through.
type AvailabilityCache struct {
	next   store.AvailabilityRepository
	rdb    *redis.Client
	ttl    time.Duration
	log    *slog.Logger
	tracer trace.Tracer
}

func NewAvailabilityCache(next store.AvailabilityRepository, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *AvailabilityCache {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AvailabilityCache{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		log:    log.With(slog.String("component", "cache.availability")),
		tracer: otel.Tracer("schedula.internal.store.cache"),
	}
}

func (c *AvailabilityCache) ListRange(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
	ctx, span := c.tracer.Start(ctx, "cache.list_range")
	defer span.End()

	gen, err := c.generation(ctx)
	if err != nil {
		c.log.Warn("cache generation read failed", slog.Any("err", err))
		return c.next.ListRange(ctx, rangeStart, rangeEnd)
	}
	key := rangeKey(gen, rangeStart, rangeEnd)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rows []domain.AvailabilityRecord
		if err := json.Unmarshal(raw, &rows); err == nil {
			span.SetAttributes(attribute.Bool("schedula.cache_hit", true))
			return rows, nil
		}
		c.log.Warn("cache entry corrupt", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("cache read failed", slog.String("key", key), slog.Any("err", err))
	}

	span.SetAttributes(attribute.Bool("schedula.cache_hit", false))
	rows, err := c.next.ListRange(ctx, rangeStart, rangeEnd)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if b, err := json.Marshal(rows); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.log.Warn("cache write failed", slog.String("key", key), slog.Any("err", err))
		}
	}
	return rows, nil
}

func (c *AvailabilityCache) UpsertBatch(ctx context.Context, batch domain.Batch) (int, error) {
	n, err := c.next.UpsertBatch(ctx, batch)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx)
	return n, nil
}

func (c *AvailabilityCache) Upsert(ctx context.Context, rec domain.AvailabilityRecord) (domain.AvailabilityRecord, error) {
	out, err := c.next.Upsert(ctx, rec)
	if err != nil {
		return domain.AvailabilityRecord{}, err
	}
	c.invalidate(ctx)
	return out, nil
}

func (c *AvailabilityCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *AvailabilityCache) invalidate(ctx context.Context) {
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		c.log.Warn("cache invalidation failed", slog.Any("err", err))
	}
}

func rangeKey(gen int64, rangeStart, rangeEnd domain.Date) string {
	return fmt.Sprintf("%s:%d:%s:%s", keyPrefix, gen, rangeStart, rangeEnd)
}
