// internal/service/simulator/simulator.go
package simulator

import (
	"context"
	"fmt"

	"beerorder/internal/pkg/logger"
	"beerorder/internal/service/order/domain"
)

// Simulator 扮演校验服务和库存服务。返回 nil 结果表示不回包。
type Simulator struct {
	rules *Rules
}

func New(rules *Rules) *Simulator {
	return &Simulator{rules: rules}
}

func (s *Simulator) Validate(ctx context.Context, req domain.ValidateOrderRequest) (*domain.ValidateOrderResult, error) {
	if req.Order == nil {
		return nil, fmt.Errorf("%w: validate request without order", domain.ErrInvalidOrder)
	}
	respond, err := eval(s.rules.validateRespond, req.Order)
	if err != nil || !respond {
		return nil, err
	}
	valid, err := eval(s.rules.valid, req.Order)
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info().Str(logger.FieldOrderID, req.Order.ID).Bool("valid", valid).Msg("simulated validation")
	return &domain.ValidateOrderResult{OrderID: req.Order.ID, IsValid: valid}, nil
}

// Allocate 默认全部分配；pending_inventory 时每行少分配一件，allocation_error 时不改数量。
func (s *Simulator) Allocate(ctx context.Context, req domain.AllocateOrderRequest) (*domain.AllocateOrderResult, error) {
	if req.Order == nil {
		return nil, fmt.Errorf("%w: allocate request without order", domain.ErrInvalidOrder)
	}
	respond, err := eval(s.rules.allocateRespond, req.Order)
	if err != nil || !respond {
		return nil, err
	}
	failed, err := eval(s.rules.allocationError, req.Order)
	if err != nil {
		return nil, err
	}
	pending, err := eval(s.rules.pendingInventory, req.Order)
	if err != nil {
		return nil, err
	}

	order := req.Order.Clone()
	if !failed {
		for i := range order.Lines {
			allocated := order.Lines[i].OrderQuantity
			if pending {
				allocated--
			}
			order.Lines[i].QuantityAllocated = max(allocated, 0)
		}
	}
	logger.Ctx(ctx).Info().
		Str(logger.FieldOrderID, order.ID).
		Bool("allocation_error", failed).
		Bool("pending_inventory", pending).
		Msg("simulated allocation")
	return &domain.AllocateOrderResult{Order: order, AllocationError: failed, PendingInventory: pending}, nil
}

func (s *Simulator) Deallocate(ctx context.Context, req domain.DeallocateOrderRequest) (*domain.DeallocateOrderResult, error) {
	if req.Order == nil {
		return nil, fmt.Errorf("%w: deallocate request without order", domain.ErrInvalidOrder)
	}
	order := req.Order.Clone()
	for i := range order.Lines {
		order.Lines[i].QuantityAllocated = 0
	}
	logger.Ctx(ctx).Info().Str(logger.FieldOrderID, order.ID).Msg("simulated deallocation")
	return &domain.DeallocateOrderResult{Order: order}, nil
}
