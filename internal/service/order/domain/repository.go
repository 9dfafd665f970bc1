// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Create 写入一个新订单，ID 已存在时返回错误。
	Create(ctx context.Context, order *Order) error

	// FindByID 返回订单的独立副本，不存在时返回 ErrOrderNotFound。
	FindByID(ctx context.Context, id string) (*Order, error)

	// Save 整体覆盖订单（含订单行）。只有存储中的版本号等于 order.Version 时才会成功，
	// 成功后 order.Version 加一；否则返回 ErrVersionConflict。
	Save(ctx context.Context, order *Order) error
}
