package lock

import (
	"context"
	"fmt"
	"time"

	"beerorder/internal/pkg/redis"

	"github.com/google/uuid"
)

const (
	unlockScriptName = "order_lock_release"
	// 只有持有者的 token 匹配时才删除
	unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`
)

// RedisLocker 基于 SET NX PX 的单实例锁，ttl 兜底持有者崩溃的情况。
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(ctx context.Context, client *redis.Client, prefix string, ttl time.Duration) (*RedisLocker, error) {
	if err := client.LoadScriptFromContent(ctx, unlockScriptName, unlockScript); err != nil {
		return nil, fmt.Errorf("failed to load unlock script: %w", err)
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, retry: 20 * time.Millisecond}, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func() error, error) {
	lockKey := l.prefix + key
	token := uuid.New().String()

	for {
		ok, err := l.client.GetClient().SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
			}
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrLockTimeout, key, ctx.Err())
		case <-time.After(l.retry):
		}
	}

	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		res, err := l.client.RunScript(ctx, unlockScriptName, []string{lockKey}, token)
		if err != nil {
			return fmt.Errorf("redis unlock %s: %w", key, err)
		}
		if n, _ := res.(int64); n == 0 {
			return fmt.Errorf("%w: %s", ErrNotHeld, key)
		}
		return nil
	}, nil
}
