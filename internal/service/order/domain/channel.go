// internal/service/order/domain/channel.go
package domain

// Channel 是与校验服务、库存服务之间的消息通道，在 Kafka 中即 topic 名。
type Channel string

const (
	// 出站
	ChannelValidateOrder     Channel = "validate-order"
	ChannelAllocateOrder     Channel = "allocate-order"
	ChannelAllocateFailure   Channel = "allocate-failure"
	ChannelValidationFailure Channel = "validation-failure"
	ChannelDeallocateOrder   Channel = "deallocate-order"

	// 入站
	ChannelValidateOrderResult     Channel = "validate-order-result"
	ChannelAllocateOrderResponse   Channel = "allocate-order-response"
	ChannelDeallocateOrderResponse Channel = "deallocate-order-response"
)

func (c Channel) String() string { return string(c) }
