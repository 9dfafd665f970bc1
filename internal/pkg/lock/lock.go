// Package lock 提供按 key 互斥的锁实现：进程内、Redis 和 ZooKeeper。
// 三种实现都满足同一个 Acquire 签名，返回的函数用于释放锁。
package lock

import (
	"context"
	"errors"
)

var (
	ErrLockTimeout = errors.New("lock: acquire timeout")
	ErrNotHeld     = errors.New("lock: not held")
)

type Locker interface {
	Acquire(ctx context.Context, key string) (func() error, error)
}
