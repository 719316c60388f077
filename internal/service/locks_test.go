package service

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, PairKey("b1", "yelp"))
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, PairKey("b1", "yelp"))
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be rejected")

	other, ok, _ := l.TryLock(ctx, PairKey("b1", "facebook"))
	assert.True(t, ok, "different platform is independent")
	other()

	release()
	release()
	again, ok, _ := l.TryLock(ctx, PairKey("b1", "yelp"))
	assert.True(t, ok)
	again()
}

func TestMemoryLocker_OnlyOneWinner(t *testing.T) {
	l := NewMemoryLocker()
	var winners int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok, _ := l.TryLock(context.Background(), "b1/maps"); ok {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), winners)
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" || testing.Short() {
		t.Skip("REDIS_ADDR not set, skipping redis integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	key := PairKey(uuid.NewString(), "yelp")
	a := NewRedisLocker(client, time.Minute, quietLogger())
	b := NewRedisLocker(client, time.Minute, quietLogger())

	lockCtx, cancel := context.WithCancel(ctx)
	release, ok, err := a.TryLock(lockCtx, key)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.TryLock(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.TTL(ctx, redisLockPrefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	// 加锁时的 ctx 已取消也要能释放
	cancel()
	release()

	releaseB, ok, err := b.TryLock(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	releaseB()

	_, _, err = a.TryLock(ctx, "")
	assert.Error(t, err)
}
