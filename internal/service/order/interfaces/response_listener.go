// internal/service/order/interfaces/response_listener.go
package interfaces

import (
	"context"
	"encoding/json"
	"fmt"

	"beerorder/internal/pkg/logger"
	"beerorder/internal/pkg/mq"
	"beerorder/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
)

// ResultProcessor 是监听器驱动的应用服务能力。
type ResultProcessor interface {
	ProcessValidationResult(ctx context.Context, orderID string, valid bool) error
	ProcessAllocationResult(ctx context.Context, snapshot *domain.Order, allocationError, pendingInventory bool) error
	ProcessDeallocationResult(ctx context.Context, snapshot *domain.Order) error
}

// ResponseListener 把校验服务、库存服务的回包反序列化后交给应用服务。
// 不做去重，重复消息会以 ErrEventRejected 的形式被丢弃。
type ResponseListener struct {
	svc ResultProcessor
}

func NewResponseListener(svc ResultProcessor) *ResponseListener {
	return &ResponseListener{svc: svc}
}

// Handlers 返回入站 topic 到处理函数的映射。
func (l *ResponseListener) Handlers() map[domain.Channel]mq.Handler {
	return map[domain.Channel]mq.Handler{
		domain.ChannelValidateOrderResult:     l.HandleValidationResult,
		domain.ChannelAllocateOrderResponse:   l.HandleAllocationResult,
		domain.ChannelDeallocateOrderResponse: l.HandleDeallocationResult,
	}
}

func (l *ResponseListener) HandleValidationResult(ctx context.Context, msg kafka.Message) error {
	var result domain.ValidateOrderResult
	if err := decode(msg, &result); err != nil {
		return err
	}
	if result.OrderID == "" {
		return fmt.Errorf("%w: validation result without order id", domain.ErrInvalidOrder)
	}
	logger.Ctx(ctx).Info().Str(logger.FieldOrderID, result.OrderID).Bool("valid", result.IsValid).Msg("validation result received")
	return l.svc.ProcessValidationResult(ctx, result.OrderID, result.IsValid)
}

func (l *ResponseListener) HandleAllocationResult(ctx context.Context, msg kafka.Message) error {
	var result domain.AllocateOrderResult
	if err := decode(msg, &result); err != nil {
		return err
	}
	if result.Order == nil {
		return fmt.Errorf("%w: allocation result without order", domain.ErrInvalidOrder)
	}
	logger.Ctx(ctx).Info().
		Str(logger.FieldOrderID, result.Order.ID).
		Bool("allocation_error", result.AllocationError).
		Bool("pending_inventory", result.PendingInventory).
		Msg("allocation result received")
	return l.svc.ProcessAllocationResult(ctx, result.Order, result.AllocationError, result.PendingInventory)
}

func (l *ResponseListener) HandleDeallocationResult(ctx context.Context, msg kafka.Message) error {
	var result domain.DeallocateOrderResult
	if err := decode(msg, &result); err != nil {
		return err
	}
	if result.Order == nil {
		return fmt.Errorf("%w: deallocation result without order", domain.ErrInvalidOrder)
	}
	logger.Ctx(ctx).Info().Str(logger.FieldOrderID, result.Order.ID).Msg("deallocation result received")
	return l.svc.ProcessDeallocationResult(ctx, result.Order)
}

func decode(msg kafka.Message, v any) error {
	if err := json.Unmarshal(msg.Value, v); err != nil {
		return fmt.Errorf("decode message from %s at offset %d: %w", msg.Topic, msg.Offset, err)
	}
	return nil
}
