package port

import "context"

// OrderLocker 保证同一个订单的读-改-写在同一时刻只有一个执行者。
type OrderLocker interface {
	// Acquire 阻塞直到拿到锁或 ctx 结束，返回的函数用于释放锁。
	Acquire(ctx context.Context, orderID string) (func() error, error)
}
