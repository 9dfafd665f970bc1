package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"beerorder/internal/pkg/bootstrap"
	"beerorder/internal/pkg/metrics"
	"beerorder/internal/service/order/application"
	"beerorder/internal/service/order/domain"
	"beerorder/internal/service/order/infrastructure"
	"beerorder/internal/service/order/infrastructure/adapter"
	"beerorder/internal/service/simulator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type harness struct {
	svc     *application.OrderApplicationService
	repo    *infrastructure.MemoryOrderRepository
	pub     *adapter.MemoryPublisher
	sim     *simulator.Simulator
	metrics *metrics.OrderMetrics

	// 除请求以外发出的消息（失败通知等）
	notifications []adapter.PublishedMessage
}

func fastConfig() application.Config {
	cfg := application.DefaultConfig()
	cfg.AwaitInterval = time.Millisecond
	cfg.AwaitAttempts = 5
	cfg.LockTimeout = time.Second
	return cfg
}

func newHarness(t *testing.T, cfg application.Config, opts ...application.Option) *harness {
	t.Helper()
	return newHarnessWithRepo(t, infrastructure.NewMemoryOrderRepository(), cfg, opts...)
}

func newHarnessWithRepo(t *testing.T, repo domain.OrderRepository, cfg application.Config, opts ...application.Option) *harness {
	t.Helper()
	rules, err := simulator.CompileRules(bootstrap.DefaultConfig().Simulator)
	require.NoError(t, err)

	h := &harness{
		pub:     adapter.NewMemoryPublisher(),
		sim:     simulator.New(rules),
		metrics: metrics.NewOrderMetrics(prometheus.NewRegistry()),
	}
	if mem, ok := repo.(*infrastructure.MemoryOrderRepository); ok {
		h.repo = mem
	}
	opts = append([]application.Option{application.WithConfig(cfg), application.WithMetrics(h.metrics)}, opts...)
	h.svc, err = application.NewOrderApplicationService(repo, h.pub, opts...)
	require.NoError(t, err)
	return h
}

// pump 把已发布的请求交给模拟器，再把结果喂回应用服务，直到没有新消息。
func (h *harness) pump(t *testing.T, ctx context.Context) {
	t.Helper()
	for {
		msgs := h.pub.Drain()
		if len(msgs) == 0 {
			return
		}
		for _, m := range msgs {
			switch req := m.Payload.(type) {
			case domain.ValidateOrderRequest:
				res, err := h.sim.Validate(ctx, req)
				require.NoError(t, err)
				if res != nil {
					require.NoError(t, h.svc.ProcessValidationResult(ctx, res.OrderID, res.IsValid))
				}
			case domain.AllocateOrderRequest:
				res, err := h.sim.Allocate(ctx, req)
				require.NoError(t, err)
				if res != nil {
					require.NoError(t, h.svc.ProcessAllocationResult(ctx, res.Order, res.AllocationError, res.PendingInventory))
				}
			case domain.DeallocateOrderRequest:
				res, err := h.sim.Deallocate(ctx, req)
				require.NoError(t, err)
				require.NoError(t, h.svc.ProcessDeallocationResult(ctx, res.Order))
			default:
				h.notifications = append(h.notifications, m)
			}
		}
	}
}

func (h *harness) create(t *testing.T, ctx context.Context, customerRef string, quantities ...int) *domain.Order {
	t.Helper()
	lines := make([]domain.OrderLine, 0, len(quantities))
	for i, q := range quantities {
		lines = append(lines, domain.OrderLine{BeerID: "beer-" + string(rune('a'+i)), UPC: "0083783375213", OrderQuantity: q})
	}
	order, err := h.svc.CreateOrder(ctx, &domain.Order{CustomerRef: customerRef, Lines: lines})
	require.NoError(t, err)
	return order
}

func (h *harness) status(t *testing.T, ctx context.Context, orderID string) domain.Status {
	t.Helper()
	o, err := h.svc.GetOrder(ctx, orderID)
	require.NoError(t, err)
	return o.Status
}

type observedChange struct {
	from  domain.Status
	to    domain.Status
	event domain.Event
}

type recordingObserver struct {
	mu      sync.Mutex
	changes []observedChange
}

func (r *recordingObserver) OnStatusChange(_ context.Context, order *domain.Order, from domain.Status, event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, observedChange{from: from, to: order.Status, event: event})
}

func (r *recordingObserver) events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, 0, len(r.changes))
	for _, c := range r.changes {
		out = append(out, c.event)
	}
	return out
}

// conflictingRepo 让前 n 次 Save 返回版本冲突。
type conflictingRepo struct {
	domain.OrderRepository
	mu        sync.Mutex
	conflicts int
	saves     int
}

func (r *conflictingRepo) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	r.saves++
	if r.conflicts > 0 {
		r.conflicts--
		r.mu.Unlock()
		return domain.ErrVersionConflict
	}
	r.mu.Unlock()
	return r.OrderRepository.Save(ctx, order)
}
