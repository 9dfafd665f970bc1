// internal/service/order/application/action/actions.go
package action

import (
	"context"
	"fmt"

	"beerorder/internal/pkg/logger"
	"beerorder/internal/service/order/domain"
	"beerorder/internal/service/order/port"
	"beerorder/internal/service/order/statemachine"
)

// Actions 实现迁移表里的所有动作。每个动作只做一次发布，不重试也不等待确认。
type Actions struct {
	repo      domain.OrderRepository
	publisher port.Publisher

	notifyValidationFailure bool
}

func New(repo domain.OrderRepository, publisher port.Publisher, notifyValidationFailure bool) *Actions {
	return &Actions{repo: repo, publisher: publisher, notifyValidationFailure: notifyValidationFailure}
}

// Registry 返回给状态机用的动作表。
func (a *Actions) Registry() map[statemachine.ActionKind]statemachine.Action {
	return map[statemachine.ActionKind]statemachine.Action{
		statemachine.ActionSendValidateRequest:     a.SendValidateRequest,
		statemachine.ActionSendAllocateRequest:     a.SendAllocateRequest,
		statemachine.ActionSendDeallocateRequest:   a.SendDeallocateRequest,
		statemachine.ActionNotifyAllocationFailure: a.NotifyAllocationFailure,
		statemachine.ActionNotifyValidationFailure: a.NotifyValidationFailure,
	}
}

func (a *Actions) SendValidateRequest(ctx context.Context, orderID string) error {
	order, err := a.snapshot(ctx, orderID)
	if err != nil {
		return err
	}
	return a.publish(ctx, domain.ChannelValidateOrder, orderID, domain.ValidateOrderRequest{Order: order})
}

func (a *Actions) SendAllocateRequest(ctx context.Context, orderID string) error {
	order, err := a.snapshot(ctx, orderID)
	if err != nil {
		return err
	}
	return a.publish(ctx, domain.ChannelAllocateOrder, orderID, domain.AllocateOrderRequest{Order: order})
}

func (a *Actions) SendDeallocateRequest(ctx context.Context, orderID string) error {
	order, err := a.snapshot(ctx, orderID)
	if err != nil {
		return err
	}
	return a.publish(ctx, domain.ChannelDeallocateOrder, orderID, domain.DeallocateOrderRequest{Order: order})
}

func (a *Actions) NotifyAllocationFailure(ctx context.Context, orderID string) error {
	return a.publish(ctx, domain.ChannelAllocateFailure, orderID, domain.AllocationFailureEvent{OrderID: orderID})
}

// NotifyValidationFailure 可以通过配置关闭，关闭时只记录日志。
func (a *Actions) NotifyValidationFailure(ctx context.Context, orderID string) error {
	if !a.notifyValidationFailure {
		logger.Ctx(ctx).Info().Str(logger.FieldOrderID, orderID).Msg("validation failed, notification disabled")
		return nil
	}
	return a.publish(ctx, domain.ChannelValidationFailure, orderID, domain.ValidationFailureEvent{OrderID: orderID})
}

func (a *Actions) snapshot(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := a.repo.FindByID(ctx, orderID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str(logger.FieldOrderID, orderID).Msg("order not found for outbound request")
		return nil, fmt.Errorf("load order %s for outbound request: %w", orderID, err)
	}
	return order, nil
}

func (a *Actions) publish(ctx context.Context, channel domain.Channel, orderID string, payload any) error {
	if err := a.publisher.Publish(ctx, channel, orderID, payload); err != nil {
		return fmt.Errorf("publish %s for order %s: %w", channel, orderID, err)
	}
	logger.Ctx(ctx).Debug().Str(logger.FieldOrderID, orderID).Str("channel", string(channel)).Msg("outbound message sent")
	return nil
}
