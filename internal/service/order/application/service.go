// internal/service/order/application/service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"beerorder/internal/pkg/logger"
	"beerorder/internal/pkg/metrics"
	"beerorder/internal/service/order/application/action"
	"beerorder/internal/service/order/domain"
	"beerorder/internal/service/order/port"
	"beerorder/internal/service/order/statemachine"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// OrderApplicationService 是订单生命周期的编排者：
// 对外提供创建、取件、取消，对内处理校验服务和库存服务的异步回包。
type OrderApplicationService struct {
	repo      domain.OrderRepository
	machine   *statemachine.Machine
	locker    port.OrderLocker
	observers []port.StatusObserver
	tracer    trace.Tracer
	metrics   *metrics.OrderMetrics
	cfg       Config
}

func NewOrderApplicationService(repo domain.OrderRepository, publisher port.Publisher, opts ...Option) (*OrderApplicationService, error) {
	s := &OrderApplicationService{
		repo:   repo,
		tracer: noop.NewTracerProvider().Tracer("order"),
		cfg:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}

	actions := action.New(repo, publisher, s.cfg.NotifyValidationFailure)
	machine, err := statemachine.New(
		newPersistHook(repo, s.observers),
		actions.Registry(),
		statemachine.WithTracer(s.tracer),
		statemachine.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, err
	}
	s.machine = machine
	return s, nil
}

// CreateOrder 以 NEW 状态落库并立即发出 VALIDATE_ORDER。
func (s *OrderApplicationService) CreateOrder(ctx context.Context, input *domain.Order) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()

	if input == nil {
		return nil, fmt.Errorf("%w: nil order", domain.ErrInvalidOrder)
	}
	order, err := domain.NewOrder(input.CustomerID, input.CustomerRef, input.Lines)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid order")
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	if err := s.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save new order")
		logger.Ctx(ctx).Error().Err(err).Str(logger.FieldOrderID, order.ID).Msg("failed to save new order")
		return nil, err
	}

	err = s.mutate(ctx, order.ID, func(ctx context.Context) error {
		current, err := s.repo.FindByID(ctx, order.ID)
		if err != nil {
			return err
		}
		_, err = s.fire(ctx, current, domain.EventValidateOrder, nil)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to request validation")
		return nil, err
	}

	logger.Ctx(ctx).Info().Str(logger.FieldOrderID, order.ID).Str("customer_ref", order.CustomerRef).Msg("order created")
	return s.repo.FindByID(ctx, order.ID)
}

// ProcessValidationResult 处理校验服务的回包。
// 校验通过时连续推进 VALIDATION_PASSED 和 ALLOCATE_ORDER。
func (s *OrderApplicationService) ProcessValidationResult(ctx context.Context, orderID string, valid bool) error {
	ctx, span := s.tracer.Start(ctx, "app.ProcessValidationResult", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.Bool("order.valid", valid),
	))
	defer span.End()

	if err := s.awaitStatus(ctx, orderID, domain.StatusValidationPending, "validation_result"); err != nil {
		return s.fail(span, err)
	}

	err := s.mutate(ctx, orderID, func(ctx context.Context) error {
		order, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		if !valid {
			_, err = s.fire(ctx, order, domain.EventValidationFailed, nil)
			return err
		}

		// 重试时前一次可能已经写入了 VALIDATED
		if order.Status != domain.StatusValidated {
			if _, err := s.fire(ctx, order, domain.EventValidationPassed, nil); err != nil {
				return err
			}
		}
		validated, err := s.repo.FindByID(ctx, orderID)
		if errors.Is(err, domain.ErrOrderNotFound) {
			return fmt.Errorf("%w: order %s disappeared after validation passed", domain.ErrInvariantViolation, orderID)
		}
		if err != nil {
			return err
		}
		_, err = s.fire(ctx, validated, domain.EventAllocateOrder, nil)
		return err
	})
	return s.fail(span, err)
}

// ProcessAllocationResult 处理库存服务的分配回包。优先级：分配出错 > 库存不足 > 分配成功。
// 后两种情况下分配数量和状态在同一次写入中落库；事件被拒绝时不做任何修改。
func (s *OrderApplicationService) ProcessAllocationResult(ctx context.Context, snapshot *domain.Order, allocationError, pendingInventory bool) error {
	if snapshot == nil || snapshot.ID == "" {
		return fmt.Errorf("%w: allocation result without order", domain.ErrInvalidOrder)
	}
	orderID := snapshot.ID

	ctx, span := s.tracer.Start(ctx, "app.ProcessAllocationResult", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.Bool("allocation.error", allocationError),
		attribute.Bool("allocation.pending_inventory", pendingInventory),
	))
	defer span.End()

	if err := s.awaitStatus(ctx, orderID, domain.StatusAllocationPending, "allocation_result"); err != nil {
		return s.fail(span, err)
	}

	reconcile := func(o *domain.Order) error {
		return o.ApplyAllocation(snapshot.Lines)
	}

	err := s.mutate(ctx, orderID, func(ctx context.Context) error {
		order, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		switch {
		case allocationError:
			_, err = s.fire(ctx, order, domain.EventAllocationFailed, nil)
		case pendingInventory:
			_, err = s.fire(ctx, order, domain.EventAllocationNoInventory, reconcile)
		default:
			_, err = s.fire(ctx, order, domain.EventAllocationSuccess, reconcile)
		}
		return err
	})
	return s.fail(span, err)
}

// ProcessDeallocationResult 同步库存服务释放后的数量。
// 回包或合并后的订单行仍保留库存都视为不变量被破坏，此时不写入任何修改。
func (s *OrderApplicationService) ProcessDeallocationResult(ctx context.Context, snapshot *domain.Order) error {
	if snapshot == nil || snapshot.ID == "" {
		return fmt.Errorf("%w: deallocation result without order", domain.ErrInvalidOrder)
	}
	orderID := snapshot.ID

	ctx, span := s.tracer.Start(ctx, "app.ProcessDeallocationResult", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	err := s.mutate(ctx, orderID, func(ctx context.Context) error {
		order, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		// 回包中的行（包括本地没有的行）也不能保留库存
		if snapshot.HasAllocation() {
			logger.Ctx(ctx).Error().Str(logger.FieldOrderID, orderID).Msg("deallocation response still reports allocated lines")
			return fmt.Errorf("%w: deallocation response for order %s reports allocated lines", domain.ErrInvariantViolation, orderID)
		}
		if err := order.ApplyAllocation(snapshot.Lines); err != nil {
			return err
		}
		if order.HasAllocation() {
			logger.Ctx(ctx).Error().Str(logger.FieldOrderID, orderID).Msg("deallocation incomplete")
			return fmt.Errorf("%w: deallocation incomplete for order %s", domain.ErrInvariantViolation, orderID)
		}
		order.UpdatedAt = time.Now().UTC()
		return s.repo.Save(ctx, order)
	})
	return s.fail(span, err)
}

// Pickup 只允许对 ALLOCATED 的订单执行。
func (s *OrderApplicationService) Pickup(ctx context.Context, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "app.Pickup", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	err := s.mutate(ctx, orderID, func(ctx context.Context) error {
		order, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusAllocated {
			return fmt.Errorf("%w: order %s is %s, pickup requires %s",
				domain.ErrPreconditionViolation, orderID, order.Status, domain.StatusAllocated)
		}
		_, err = s.fire(ctx, order, domain.EventPickedUp, nil)
		return err
	})
	return s.fail(span, err)
}

// Cancel 对终态订单返回 ErrEventRejected。
func (s *OrderApplicationService) Cancel(ctx context.Context, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "app.Cancel", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	err := s.mutate(ctx, orderID, func(ctx context.Context) error {
		order, err := s.load(ctx, orderID)
		if err != nil {
			return err
		}
		_, err = s.fire(ctx, order, domain.EventCancelOrder, nil)
		return err
	})
	return s.fail(span, err)
}

func (s *OrderApplicationService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.repo.FindByID(ctx, orderID)
}

func (s *OrderApplicationService) fire(ctx context.Context, order *domain.Order, event domain.Event, mutate func(*domain.Order) error) (statemachine.Transition, error) {
	return s.machine.Fire(ctx, statemachine.Request{
		OrderID: order.ID,
		From:    order.Status,
		Event:   event,
		Mutate:  mutate,
	})
}

func (s *OrderApplicationService) load(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		logger.Ctx(ctx).Error().Str(logger.FieldOrderID, orderID).Msg("order not found")
	}
	return order, err
}

// mutate 在订单锁内执行 fn，遇到版本冲突时整体重试。
func (s *OrderApplicationService) mutate(ctx context.Context, orderID string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.cfg.ConflictRetries; attempt++ {
		err = s.locked(ctx, orderID, fn)
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
		logger.Ctx(ctx).Warn().Err(err).Str(logger.FieldOrderID, orderID).Int("attempt", attempt+1).Msg("order version conflict, retrying")
	}
	return err
}

func (s *OrderApplicationService) locked(ctx context.Context, orderID string, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	unlock, err := s.locker.Acquire(lockCtx, orderID)
	cancel()
	if err != nil {
		return fmt.Errorf("acquire lock for order %s: %w", orderID, err)
	}
	defer func() {
		if err := unlock(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str(logger.FieldOrderID, orderID).Msg("failed to release order lock")
		}
	}()
	return fn(ctx)
}

// awaitStatus 等待订单进入 want 状态，用来吸收“回包比状态写入先到”的竞态。
// 用完所有次数后记录日志并继续（StrictRace 时返回 ErrRaceTimeout）。
func (s *OrderApplicationService) awaitStatus(ctx context.Context, orderID string, want domain.Status, operation string) error {
	if s.cfg.AwaitAttempts <= 0 {
		return nil
	}
	var last domain.Status
	for i := 0; i < s.cfg.AwaitAttempts; i++ {
		order, err := s.repo.FindByID(ctx, orderID)
		switch {
		case err == nil:
			if order.Status == want {
				return nil
			}
			last = order.Status
		case !errors.Is(err, domain.ErrOrderNotFound):
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.AwaitInterval):
		}
	}

	s.metrics.RaceTimeout(operation)
	logger.Ctx(ctx).Error().
		Str(logger.FieldOrderID, orderID).
		Str("expected", string(want)).
		Str("actual", string(last)).
		Int("attempts", s.cfg.AwaitAttempts).
		Msg("race condition detected, expected status not reached")
	if s.cfg.StrictRace {
		return fmt.Errorf("%w: order %s expected %s, last seen %q", domain.ErrRaceTimeout, orderID, want, last)
	}
	return nil
}

func (s *OrderApplicationService) fail(span trace.Span, err error) error {
	if err != nil && !domain.IsSoft(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
