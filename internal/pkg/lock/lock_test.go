package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"beerorder/internal/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisLocker) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	locker, err := NewRedisLocker(context.Background(), client, "lock:order:", time.Second)
	require.NoError(t, err)
	locker.retry = 5 * time.Millisecond
	return mr, locker
}

func exerciseMutualExclusion(t *testing.T, l Locker) {
	t.Helper()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			unlock, err := l.Acquire(ctx, "order-1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			assert.NoError(t, unlock())
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive)
}

func TestLocalLocker_MutualExclusion(t *testing.T) {
	l := NewLocalLocker()
	exerciseMutualExclusion(t, l)
	assert.Zero(t, l.size())
}

func TestLocalLocker_TimeoutAndDoubleUnlock(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, unlock())
	assert.ErrorIs(t, unlock(), ErrNotHeld)
	assert.Zero(t, l.size())

	// 不同 key 互不影响
	u1, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	u2, err := l.Acquire(context.Background(), "b")
	require.NoError(t, err)
	require.NoError(t, u1())
	require.NoError(t, u2())
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	_, l := setupMiniRedis(t)
	exerciseMutualExclusion(t, l)
}

func TestRedisLocker_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	mr, l := setupMiniRedis(t)

	unlock, err := l.Acquire(context.Background(), "order-2")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:order:order-2"))

	mr.FastForward(2 * time.Second)
	assert.False(t, mr.Exists("lock:order:order-2"))

	unlock2, err := l.Acquire(context.Background(), "order-2")
	require.NoError(t, err)

	assert.ErrorIs(t, unlock(), ErrNotHeld)
	assert.True(t, mr.Exists("lock:order:order-2"))
	require.NoError(t, unlock2())
	assert.False(t, mr.Exists("lock:order:order-2"))
}

func TestRedisLocker_Timeout(t *testing.T) {
	_, l := setupMiniRedis(t)

	unlock, err := l.Acquire(context.Background(), "order-3")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "order-3")
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestSortBySequence(t *testing.T) {
	children := []string{
		"_c_b1-lock-0000000003",
		"_c_ff-lock-0000000001",
		"_c_00-lock-0000000002",
	}
	sortBySequence(children)
	assert.Equal(t, []string{
		"_c_ff-lock-0000000001",
		"_c_00-lock-0000000002",
		"_c_b1-lock-0000000003",
	}, children)
}
