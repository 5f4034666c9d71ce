// Package cache keeps computed availability in Redis, one hash per shop and
// day with a field per service. Any change to that shop's day drops the hash.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"petagenda/internal/events"
	"petagenda/internal/metrics"
)

const keyPrefix = "availability"

// Entry is a cached availability answer.
type Entry struct {
	Slots  []string `json:"slots"`
	Reason string   `json:"reason,omitempty"`
}

// AvailabilityCache is safe for concurrent use. A nil cache misses on every read.
type AvailabilityCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  zerolog.Logger
}

func New(rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *AvailabilityCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	l := logger.With().Str("component", "cache").Logger()

	settings := gobreaker.Settings{
		Name:        "availability-cache",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			metrics.SetBreakerOpen(to == gobreaker.StateOpen)
		},
	}

	return &AvailabilityCache{
		rdb:     rdb,
		ttl:     ttl,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		logger:  l,
	}
}

func dayKey(shopID int64, day time.Time) string {
	return fmt.Sprintf("%s:%d:%s", keyPrefix, shopID, day.Format("2006-01-02"))
}

func field(serviceID int64) string {
	return fmt.Sprintf("%d", serviceID)
}

// Get returns the cached entry and whether it was found. Redis errors count as misses.
func (c *AvailabilityCache) Get(ctx context.Context, shopID, serviceID int64, day time.Time) (Entry, bool) {
	if c == nil || c.rdb == nil {
		return Entry{}, false
	}

	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.rdb.HGet(ctx, dayKey(shopID, day), field(serviceID)).Bytes()
	})
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug().Err(err).Msg("cache read failed")
		}
		return Entry{}, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false
	}
	return e, true
}

// Set stores an entry; failures are logged and otherwise ignored.
func (c *AvailabilityCache) Set(ctx context.Context, shopID, serviceID int64, day time.Time, e Entry) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}

	key := dayKey(shopID, day)
	_, err = c.breaker.Execute(func() ([]byte, error) {
		pipe := c.rdb.TxPipeline()
		pipe.HSet(ctx, key, field(serviceID), data)
		pipe.Expire(ctx, key, c.ttl)
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Invalidate drops the cached days of a shop.
func (c *AvailabilityCache) Invalidate(ctx context.Context, shopID int64, days ...time.Time) error {
	if c == nil || c.rdb == nil || len(days) == 0 {
		return nil
	}
	keys := make([]string, len(days))
	for i, d := range days {
		keys[i] = dayKey(shopID, d)
	}
	_, err := c.breaker.Execute(func() ([]byte, error) {
		return nil, c.rdb.Del(ctx, keys...).Err()
	})
	return err
}

// Flush drops every cached availability entry.
func (c *AvailabilityCache) Flush(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	_, err := c.breaker.Execute(func() ([]byte, error) {
		iter := c.rdb.Scan(ctx, 0, keyPrefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
				return nil, err
			}
		}
		return nil, iter.Err()
	})
	return err
}

// Subscribe invalidates affected days whenever availability changes.
func (c *AvailabilityCache) Subscribe(bus *events.EventBus) {
	bus.Subscribe(func(e events.Event) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if e.Type == events.RosterSynced {
			return c.Flush(ctx)
		}
		return c.Invalidate(ctx, e.ShopID, e.Days...)
	},
		events.BookingCreated,
		events.BookingStatusChanged,
		events.SeriesCreated,
		events.TimeBlockCreated,
		events.RosterSynced,
	)
}
