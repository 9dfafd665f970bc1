// internal/service/order/statemachine/machine.go
package statemachine

import (
	"context"
	"fmt"

	"beerorder/internal/pkg/logger"
	"beerorder/internal/pkg/metrics"
	"beerorder/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Request 描述一次事件投递。From 是调用方读到的当前状态，
// Mutate 可选，会和状态变更在同一次写入中落库（例如同步分配数量）。
type Request struct {
	OrderID string
	From    domain.Status
	Event   domain.Event
	Mutate  func(order *domain.Order) error
}

// Hook 在迁移被接受后、动作执行前同步调用，负责持久化新状态。
// 返回错误时迁移中止，动作不会执行。
type Hook interface {
	PreStateChange(ctx context.Context, req Request, t Transition) error
}

// Action 是迁移成功后的副作用，失败只记录日志。
type Action func(ctx context.Context, orderID string) error

type Option func(*Machine)

func WithTracer(t trace.Tracer) Option {
	return func(m *Machine) { m.tracer = t }
}

func WithMetrics(om *metrics.OrderMetrics) Option {
	return func(m *Machine) { m.metrics = om }
}

// WithTransitions 替换默认迁移表，仅用于测试。
func WithTransitions(rows []Transition) Option {
	return func(m *Machine) { m.rows = rows }
}

// Machine 本身不保存订单状态，每次 Fire 都以调用方给出的当前状态为准。
type Machine struct {
	rows    []Transition
	index   map[transitionKey]Transition
	hook    Hook
	actions map[ActionKind]Action
	tracer  trace.Tracer
	metrics *metrics.OrderMetrics
}

// New 校验迁移表，并确认表中引用的每个动作都已注册。
func New(hook Hook, actions map[ActionKind]Action, opts ...Option) (*Machine, error) {
	m := &Machine{
		rows:    transitions,
		hook:    hook,
		actions: actions,
		tracer:  noop.NewTracerProvider().Tracer("statemachine"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.hook == nil {
		return nil, fmt.Errorf("statemachine: hook is required")
	}
	if err := Validate(m.rows); err != nil {
		return nil, fmt.Errorf("statemachine: invalid transition table: %w", err)
	}
	for _, t := range m.rows {
		if t.Action == ActionNone {
			continue
		}
		if _, ok := m.actions[t.Action]; !ok {
			return nil, fmt.Errorf("statemachine: no action registered for %q", t.Action)
		}
	}
	m.index = index(m.rows)
	return m, nil
}

// Accepts 报告 event 在 status 下是否合法。
func (m *Machine) Accepts(status domain.Status, event domain.Event) bool {
	_, ok := m.index[transitionKey{status, event}]
	return ok
}

// Fire 投递一个事件。没有匹配的迁移时返回 domain.ErrEventRejected，不产生任何副作用。
func (m *Machine) Fire(ctx context.Context, req Request) (Transition, error) {
	ctx, span := m.tracer.Start(ctx, "statemachine.Fire", trace.WithAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.String("order.status", string(req.From)),
		attribute.String("order.event", string(req.Event)),
	))
	defer span.End()

	t, ok := m.index[transitionKey{req.From, req.Event}]
	if !ok {
		m.metrics.EventRejected(string(req.From), string(req.Event))
		logger.Ctx(ctx).Error().
			Str(logger.FieldOrderID, req.OrderID).
			Str("status", string(req.From)).
			Str("event", string(req.Event)).
			Msg("event not accepted in current status")
		span.SetStatus(codes.Error, "event rejected")
		return Transition{}, fmt.Errorf("%w: %s in %s (order %s)", domain.ErrEventRejected, req.Event, req.From, req.OrderID)
	}

	if err := m.hook.PreStateChange(ctx, req, t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return Transition{}, err
	}
	m.metrics.Transition(string(t.From), string(t.To), string(t.Event))
	span.SetAttributes(attribute.String("order.status.next", string(t.To)))

	if t.Action != ActionNone {
		if err := m.actions[t.Action](ctx, req.OrderID); err != nil {
			// 已落库的迁移不会因为动作失败而回退
			span.RecordError(err)
			logger.Ctx(ctx).Error().Err(err).
				Str(logger.FieldOrderID, req.OrderID).
				Str("action", string(t.Action)).
				Msg("transition action failed")
		}
	}
	return t, nil
}
