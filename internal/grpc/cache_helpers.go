package grpc

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type FetchFunc[T any] func(ctx context.Context) (T, error)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultSetTimeout   = 5 * time.Second
)

// cacheEntry wraps a cached value with the time it was computed so readers
// can tell how stale it is.
type cacheEntry[T any] struct {
	Value    T         `json:"value"`
	StoredAt time.Time `json:"storedAt"`
}

// addTTLJitter adds up to ±15s random jitter to TTL to avoid mass expiration.
func addTTLJitter(ttl time.Duration) time.Duration {
	if ttl <= 30*time.Second {
		return ttl
	}
	jitter := time.Duration(rand.Intn(30)-15) * time.Second
	return ttl + jitter
}

func storeEntry[T any](c Cacher, key string, value T, ttl time.Duration, logger *zap.Logger) {
	setCtx, cancel := context.WithTimeout(context.Background(), defaultSetTimeout)
	defer cancel()

	ttlWithJitter := addTTLJitter(ttl)
	entry := cacheEntry[T]{Value: value, StoredAt: time.Now()}
	if err := c.Set(setCtx, key, entry, ttlWithJitter); err != nil {
		logger.Warn("failed to write cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	logger.Debug("cache entry written", zap.String("key", key), zap.Duration("ttl", ttlWithJitter))
}

// triggerBackgroundRefresh recomputes key off the request path. Concurrent
// refreshes of one key collapse into one.
func triggerBackgroundRefresh[T any](
	c Cacher,
	sf *singleflight.Group,
	key string,
	ttl time.Duration,
	logger *zap.Logger,
	fn FetchFunc[T],
) {
	go func() {
		_, _, _ = sf.Do(key+":refresh", func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), defaultFetchTimeout)
			defer cancel()

			value, err := fn(ctx)
			if err != nil {
				logger.Warn("background refresh failed", zap.String("key", key), zap.Error(err))
				return nil, err
			}
			storeEntry(c, key, value, ttl, logger)
			return nil, nil
		})
	}()
}

// FindAndCache implements read-through caching with singleflight. Entries
// older than half the TTL are served and refreshed in the background. The
// boolean result reports a cache hit. A nil Cacher always fetches.
func FindAndCache[T any](
	ctx context.Context,
	c Cacher,
	sf *singleflight.Group,
	key string,
	ttl time.Duration,
	logger *zap.Logger,
	fn FetchFunc[T],
) (T, bool, error) {
	var zero T
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		v, err := fn(ctx)
		return v, false, err
	}

	var cached cacheEntry[T]
	err := c.Get(ctx, key, &cached)
	switch {
	case err == nil:
		logger.Debug("cache hit", zap.String("key", key))
		if time.Since(cached.StoredAt) > ttl/2 {
			triggerBackgroundRefresh(c, sf, key, ttl, logger, fn)
		}
		return cached.Value, true, nil

	case errors.Is(err, redis.Nil):
		logger.Debug("cache miss", zap.String("key", key))

	default:
		logger.Warn("cache get error (treating as miss)", zap.String("key", key), zap.Error(err))
	}

	// The shared fetch outlives any one caller; each caller's ctx only bounds
	// its own wait.
	ch := sf.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultFetchTimeout)
		defer cancel()

		value, err := fn(fetchCtx)
		if err != nil {
			return nil, err
		}
		go storeEntry(c, key, value, ttl, logger)
		return value, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		logger.Debug("caller left before fetch finished", zap.String("key", key), zap.Error(ctx.Err()))
		return zero, false, ctx.Err()
	case res = <-ch:
	}

	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		logger.Debug("fetch failed", zap.String("key", key), zap.Error(err))
		return zero, false, err
	}

	value, ok := v.(T)
	if !ok {
		logger.Error("singleflight type mismatch", zap.String("key", key))
		return zero, false, fmt.Errorf("type mismatch for key %q", key)
	}

	if shared {
		logger.Debug("singleflight shared result", zap.String("key", key))
	}

	return value, false, nil
}
