// Package catalog serves service definitions to the availability query through a Redis
// read-through cache. Bookings never read from here.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "catalog:service:"

type Source interface {
	GetService(ctx context.Context, id string) (model.Service, error)
}

type Cache struct {
	rdb     redis.Cmdable
	src     Source
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.BookingMetrics
}

// New returns a cache over src. A nil rdb disables caching and every Get goes to src.
func New(rdb redis.Cmdable, src Source, ttl time.Duration, logger *slog.Logger, m *metrics.BookingMetrics) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{rdb: rdb, src: src, ttl: ttl, logger: logger, metrics: m}
}

func Key(id string) string {
	return keyPrefix + id
}

type entry struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	DurationMinutes int     `json:"durationMinutes"`
	Price           float64 `json:"price"`
}

// Get returns the service, consulting Redis first. Redis failures fall back to the source.
func (c *Cache) Get(ctx context.Context, id string) (model.Service, error) {
	if c.rdb == nil {
		return c.src.GetService(ctx, id)
	}

	raw, err := c.rdb.Get(ctx, Key(id)).Bytes()
	switch {
	case err == nil:
		var e entry
		if jerr := json.Unmarshal(raw, &e); jerr == nil {
			c.metrics.ObserveCatalogLookup("hit")
			return model.Service{ID: e.ID, Name: e.Name, DurationMinutes: e.DurationMinutes, Price: e.Price}, nil
		}
		c.logger.Warn("catalog cache entry unreadable", "service_id", id)
		c.metrics.ObserveCatalogLookup("error")
	case errors.Is(err, redis.Nil):
		c.metrics.ObserveCatalogLookup("miss")
	default:
		c.logger.Warn("catalog cache get failed", "service_id", id, "err", err)
		c.metrics.ObserveCatalogLookup("error")
	}

	svc, err := c.src.GetService(ctx, id)
	if err != nil {
		return model.Service{}, err
	}
	payload, _ := json.Marshal(entry{ID: svc.ID, Name: svc.Name, DurationMinutes: svc.DurationMinutes, Price: svc.Price})
	if err := c.rdb.Set(ctx, Key(id), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache set failed", "service_id", id, "err", err)
	}
	return svc, nil
}

// Invalidate drops the cached entry for id. Call after every service write.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, Key(id)).Err()
}
