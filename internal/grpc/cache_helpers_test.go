package grpc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/godilite/feedback-reward/internal/grpc/mocks"
)

func TestFindAndCache(t *testing.T) {
	ctx := context.Background()

	t.Run("nil cache always fetches", func(t *testing.T) {
		var sf singleflight.Group
		v, hit, err := FindAndCache(ctx, nil, &sf, "k", time.Minute, nil, func(context.Context) (int, error) {
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.False(t, hit)
	})

	t.Run("miss populates the cache", func(t *testing.T) {
		var sf singleflight.Group
		cache := mocks.NewInMemoryCache()

		v, hit, err := FindAndCache(ctx, cache, &sf, "k", time.Minute, zap.NewNop(), func(context.Context) (string, error) {
			return "fresh", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "fresh", v)
		assert.False(t, hit)
		assert.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, 5*time.Millisecond)

		var fetches int32
		v, hit, err = FindAndCache(ctx, cache, &sf, "k", time.Minute, zap.NewNop(), func(context.Context) (string, error) {
			atomic.AddInt32(&fetches, 1)
			return "other", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "fresh", v)
		assert.True(t, hit)
		assert.Zero(t, atomic.LoadInt32(&fetches))
	})

	t.Run("stale entry is served and refreshed", func(t *testing.T) {
		var sf singleflight.Group
		cache := mocks.NewInMemoryCache()
		require.NoError(t, cache.Set(ctx, "k", cacheEntry[int]{Value: 1, StoredAt: time.Now().Add(-time.Hour)}, time.Minute))

		v, hit, err := FindAndCache(ctx, cache, &sf, "k", time.Minute, zap.NewNop(), func(context.Context) (int, error) {
			return 2, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, v)
		assert.True(t, hit)

		assert.Eventually(t, func() bool {
			var e cacheEntry[int]
			return cache.Get(ctx, "k", &e) == nil && e.Value == 2
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("cache errors are treated as a miss", func(t *testing.T) {
		var sf singleflight.Group
		cache := &mocks.MockCacher{
			GetFunc: func(context.Context, string, any) error { return errors.New("connection refused") },
		}

		v, hit, err := FindAndCache(ctx, cache, &sf, "k", time.Minute, zap.NewNop(), func(context.Context) (int, error) {
			return 5, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 5, v)
		assert.False(t, hit)
	})

	t.Run("fetch error is returned and not cached", func(t *testing.T) {
		var sf singleflight.Group
		cache := mocks.NewInMemoryCache()
		fetchErr := errors.New("boom")

		_, _, err := FindAndCache(ctx, cache, &sf, "k", time.Minute, zap.NewNop(), func(context.Context) (int, error) {
			return 0, fetchErr
		})
		assert.ErrorIs(t, err, fetchErr)
		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, cache.Len())
	})

	t.Run("concurrent misses share one fetch", func(t *testing.T) {
		var sf singleflight.Group
		cache := &mocks.MockCacher{
			GetFunc: func(context.Context, string, any) error { return errors.New("miss") },
		}
		var fetches int32
		release := make(chan struct{})

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, _, err := FindAndCache(ctx, cache, &sf, "shared", time.Minute, zap.NewNop(), func(context.Context) (int, error) {
					atomic.AddInt32(&fetches, 1)
					<-release
					return 9, nil
				})
				assert.NoError(t, err)
				assert.Equal(t, 9, v)
			}()
		}
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.LessOrEqual(t, atomic.LoadInt32(&fetches), int32(5))
		assert.GreaterOrEqual(t, atomic.LoadInt32(&fetches), int32(1))
	})
}

func TestFindAndCache_CallerCancellation(t *testing.T) {
	var sf singleflight.Group
	cache := mocks.NewInMemoryCache()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var fetches int32
	fetch := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&fetches, 1)
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 9, nil
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := FindAndCache(leaderCtx, cache, &sf, "shared", time.Minute, zap.NewNop(), fetch)
		leaderErr <- err
	}()
	<-started

	type result struct {
		v   int
		err error
	}
	follower := make(chan result, 1)
	go func() {
		v, _, err := FindAndCache(context.Background(), cache, &sf, "shared", time.Minute, zap.NewNop(), fetch)
		follower <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	got := <-follower
	require.NoError(t, got.err)
	assert.Equal(t, 9, got.v)
	assert.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))
}

func TestAddTTLJitter(t *testing.T) {
	assert.Equal(t, 10*time.Second, addTTLJitter(10*time.Second))

	for i := 0; i < 20; i++ {
		got := addTTLJitter(10 * time.Minute)
		assert.InDelta(t, float64(10*time.Minute), float64(got), float64(15*time.Second))
	}
}
