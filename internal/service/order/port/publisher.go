package port

import (
	"context"

	"beerorder/internal/service/order/domain"
)

// Publisher 是出站消息的端口。key 为订单 ID，用于关联和分区。
// 投递是 fire-and-forget 的，实现不做重试。
type Publisher interface {
	Publish(ctx context.Context, channel domain.Channel, key string, payload any) error
}
