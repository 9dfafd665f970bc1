// internal/service/simulator/listener.go
package simulator

import (
	"context"
	"encoding/json"
	"fmt"

	"beerorder/internal/pkg/mq"
	"beerorder/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
)

// JSONPublisher 是 mq.JSONPublisher 的接口形式。
type JSONPublisher interface {
	PublishJSON(ctx context.Context, topic, key string, payload any) error
}

// Listener 消费订单服务发出的请求，并把模拟结果发回响应 topic。
type Listener struct {
	sim *Simulator
	pub JSONPublisher
}

func NewListener(sim *Simulator, pub JSONPublisher) *Listener {
	return &Listener{sim: sim, pub: pub}
}

func (l *Listener) Handlers() map[domain.Channel]mq.Handler {
	return map[domain.Channel]mq.Handler{
		domain.ChannelValidateOrder:   l.handleValidate,
		domain.ChannelAllocateOrder:   l.handleAllocate,
		domain.ChannelDeallocateOrder: l.handleDeallocate,
	}
}

func (l *Listener) handleValidate(ctx context.Context, msg kafka.Message) error {
	var req domain.ValidateOrderRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("decode validate request: %w", err)
	}
	res, err := l.sim.Validate(ctx, req)
	if err != nil || res == nil {
		return err
	}
	return l.pub.PublishJSON(ctx, string(domain.ChannelValidateOrderResult), res.OrderID, res)
}

func (l *Listener) handleAllocate(ctx context.Context, msg kafka.Message) error {
	var req domain.AllocateOrderRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("decode allocate request: %w", err)
	}
	res, err := l.sim.Allocate(ctx, req)
	if err != nil || res == nil {
		return err
	}
	return l.pub.PublishJSON(ctx, string(domain.ChannelAllocateOrderResponse), res.Order.ID, res)
}

func (l *Listener) handleDeallocate(ctx context.Context, msg kafka.Message) error {
	var req domain.DeallocateOrderRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("decode deallocate request: %w", err)
	}
	res, err := l.sim.Deallocate(ctx, req)
	if err != nil || res == nil {
		return err
	}
	return l.pub.PublishJSON(ctx, string(domain.ChannelDeallocateOrderResponse), res.Order.ID, res)
}
