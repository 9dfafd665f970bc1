package port

import (
	"context"

	"beerorder/internal/service/order/domain"
)

// StatusObserver 在订单状态持久化成功后被同步回调，实现不应阻塞。
type StatusObserver interface {
	OnStatusChange(ctx context.Context, order *domain.Order, from domain.Status, event domain.Event)
}
