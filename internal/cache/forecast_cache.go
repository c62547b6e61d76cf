// Package cache provides a cache-aside store for computed forecasts. A
// small in-process LRU serves as the hot tier; an optional Redis backend
// shares entries across replicas and sits behind a circuit breaker so a
// flapping Redis never slows down forecast requests.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/iop-forecast-server/internal/domain"
)

const redisKeyPrefix = "iopf:forecast:"

// ForecastCache implements domain.ForecastCache over an LRU tier and an
// optional Redis tier.
type ForecastCache struct {
	hot     *lru.Cache
	redis   *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	log     *logrus.Logger
}

// New builds a ForecastCache from configuration. When cfg.RedisURL is
// empty the cache runs LRU-only.
func New(cfg domain.CacheConfig, logger *logrus.Logger) (*ForecastCache, error) {
	size := cfg.LRUSize
	if size <= 0 {
		size = 512
	}
	hot, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}

	fc := &ForecastCache{
		hot: hot,
		ttl: cfg.DefaultTTL,
		log: logger,
	}
	if fc.ttl <= 0 {
		fc.ttl = 15 * time.Minute
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts.MaxRetries = cfg.MaxRetries
		if cfg.PoolSize > 0 {
			opts.PoolSize = cfg.PoolSize
		}
		if cfg.PoolTimeout > 0 {
			opts.PoolTimeout = cfg.PoolTimeout
		}
		fc.redis = redis.NewClient(opts)

		fc.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "forecast-cache-redis",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Cache circuit breaker state changed")
			},
		})
	}

	return fc, nil
}

// Key derives the cache key from the attribute snapshot. Identical
// attributes always hash to the same key because the struct marshals
// with a fixed field order.
func Key(attrs domain.PatientAttributes) string {
	payload, _ := json.Marshal(attrs)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type entry struct {
	Response  domain.ForecastResponse `json:"response"`
	ExpiresAt time.Time               `json:"expires_at"`
}

// Get returns the cached forecast for the attribute snapshot, or
// (nil, nil) on a miss.
func (fc *ForecastCache) Get(ctx context.Context, attrs domain.PatientAttributes) (*domain.ForecastResponse, error) {
	key := Key(attrs)

	if v, ok := fc.hot.Get(key); ok {
		e := v.(entry)
		if time.Now().Before(e.ExpiresAt) {
			resp := e.Response
			return &resp, nil
		}
		fc.hot.Remove(key)
	}

	if fc.redis == nil {
		return nil, nil
	}

	raw, err := fc.breaker.Execute(func() (interface{}, error) {
		return fc.redis.Get(ctx, redisKeyPrefix+key).Bytes()
	})
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		fc.log.WithError(err).Debug("Redis cache read failed")
		return nil, nil
	}

	var e entry
	if err := json.Unmarshal(raw.([]byte), &e); err != nil {
		fc.log.WithError(err).Warn("Discarding undecodable cache entry")
		return nil, nil
	}
	if !time.Now().Before(e.ExpiresAt) {
		return nil, nil
	}

	fc.hot.Add(key, e)
	resp := e.Response
	return &resp, nil
}

// Set stores the forecast in both tiers. Redis failures are swallowed;
// the LRU write always succeeds.
func (fc *ForecastCache) Set(ctx context.Context, attrs domain.PatientAttributes, resp *domain.ForecastResponse) error {
	key := Key(attrs)
	e := entry{Response: *resp, ExpiresAt: time.Now().Add(fc.ttl)}
	fc.hot.Add(key, e)

	if fc.redis == nil {
		return nil
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	if _, err := fc.breaker.Execute(func() (interface{}, error) {
		return nil, fc.redis.Set(ctx, redisKeyPrefix+key, payload, fc.ttl).Err()
	}); err != nil {
		fc.log.WithError(err).Debug("Redis cache write failed")
	}
	return nil
}

// Close releases the Redis connection if one was configured.
func (fc *ForecastCache) Close() error {
	if fc.redis != nil {
		return fc.redis.Close()
	}
	return nil
}
