// internal/service/order/application/persist_hook.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"beerorder/internal/pkg/logger"
	"beerorder/internal/service/order/domain"
	"beerorder/internal/service/order/port"
	"beerorder/internal/service/order/statemachine"
)

// persistHook 在每次被接受的迁移中同步写入新状态。
type persistHook struct {
	repo      domain.OrderRepository
	observers []port.StatusObserver
}

func newPersistHook(repo domain.OrderRepository, observers []port.StatusObserver) *persistHook {
	return &persistHook{repo: repo, observers: observers}
}

func (h *persistHook) PreStateChange(ctx context.Context, req statemachine.Request, t statemachine.Transition) error {
	order, err := h.repo.FindByID(ctx, req.OrderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		// 迁移照常生效，只是没有可写的记录
		logger.Ctx(ctx).Error().
			Str(logger.FieldOrderID, req.OrderID).
			Str("event", string(t.Event)).
			Msg("order not found while persisting status change")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load order %s for status change: %w", req.OrderID, err)
	}

	// 读到的状态已经不是调用方决策时的状态，说明中间有别的写入
	if order.Status != t.From {
		return fmt.Errorf("%w: order %s moved from %s to %s before %s was applied",
			domain.ErrVersionConflict, req.OrderID, t.From, order.Status, t.Event)
	}

	if req.Mutate != nil {
		if err := req.Mutate(order); err != nil {
			return err
		}
	}
	order.Status = t.To
	order.UpdatedAt = time.Now().UTC()
	if err := h.repo.Save(ctx, order); err != nil {
		return fmt.Errorf("persist order %s status %s: %w", req.OrderID, t.To, err)
	}

	logger.Ctx(ctx).Debug().
		Str(logger.FieldOrderID, req.OrderID).
		Str("from", string(t.From)).
		Str("to", string(t.To)).
		Str("event", string(t.Event)).
		Int64("version", order.Version).
		Msg("order status persisted")

	for _, o := range h.observers {
		o.OnStatusChange(ctx, order.Clone(), t.From, t.Event)
	}
	return nil
}
