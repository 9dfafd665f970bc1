package simulator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"beerorder/internal/pkg/bootstrap"
	"beerorder/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimulator(t *testing.T) *Simulator {
	t.Helper()
	rules, err := CompileRules(bootstrap.DefaultConfig().Simulator)
	require.NoError(t, err)
	return New(rules)
}

func orderWithRef(ref string, quantities ...int) *domain.Order {
	o := &domain.Order{ID: "order-1", CustomerRef: ref, Status: domain.StatusAllocationPending}
	for i, q := range quantities {
		o.Lines = append(o.Lines, domain.OrderLine{ID: string(rune('a' + i)), OrderQuantity: q})
	}
	return o
}

func TestCompileRules_Errors(t *testing.T) {
	cfg := bootstrap.DefaultConfig().Simulator
	cfg.Valid = `customerRef +`
	_, err := CompileRules(cfg)
	assert.ErrorContains(t, err, "valid")

	cfg = bootstrap.DefaultConfig().Simulator
	cfg.PendingInventory = `totalQuantity`
	_, err = CompileRules(cfg)
	assert.ErrorContains(t, err, "must evaluate to bool")

	cfg = bootstrap.DefaultConfig().Simulator
	cfg.AllocationError = `unknownVar == 1`
	_, err = CompileRules(cfg)
	assert.Error(t, err)
}

func TestRules_UseOrderVariables(t *testing.T) {
	cfg := bootstrap.DefaultConfig().Simulator
	cfg.Valid = `lineCount <= 2 && totalQuantity < 10`
	rules, err := CompileRules(cfg)
	require.NoError(t, err)
	sim := New(rules)
	ctx := context.Background()

	res, err := sim.Validate(ctx, domain.ValidateOrderRequest{Order: orderWithRef("", 3, 4)})
	require.NoError(t, err)
	assert.True(t, res.IsValid)

	res, err = sim.Validate(ctx, domain.ValidateOrderRequest{Order: orderWithRef("", 3, 4, 1)})
	require.NoError(t, err)
	assert.False(t, res.IsValid)
}

func TestValidate(t *testing.T) {
	sim := newSimulator(t)
	ctx := context.Background()

	tests := []struct {
		ref       string
		respond   bool
		wantValid bool
	}{
		{"", true, true},
		{"fail-validation", true, false},
		{"cancel-while-pending-validation", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			res, err := sim.Validate(ctx, domain.ValidateOrderRequest{Order: orderWithRef(tt.ref, 1)})
			require.NoError(t, err)
			if !tt.respond {
				assert.Nil(t, res)
				return
			}
			require.NotNil(t, res)
			assert.Equal(t, "order-1", res.OrderID)
			assert.Equal(t, tt.wantValid, res.IsValid)
		})
	}

	_, err := sim.Validate(ctx, domain.ValidateOrderRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestAllocate(t *testing.T) {
	sim := newSimulator(t)
	ctx := context.Background()

	res, err := sim.Allocate(ctx, domain.AllocateOrderRequest{Order: orderWithRef("", 3, 1)})
	require.NoError(t, err)
	assert.False(t, res.AllocationError)
	assert.False(t, res.PendingInventory)
	assert.Equal(t, 3, res.Order.Lines[0].QuantityAllocated)
	assert.Equal(t, 1, res.Order.Lines[1].QuantityAllocated)

	req := domain.AllocateOrderRequest{Order: orderWithRef("partial-allocation", 3, 1)}
	res, err = sim.Allocate(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.PendingInventory)
	assert.Equal(t, 2, res.Order.Lines[0].QuantityAllocated)
	assert.Equal(t, 0, res.Order.Lines[1].QuantityAllocated)
	assert.Zero(t, req.Order.Lines[0].QuantityAllocated, "request order must not be modified")

	res, err = sim.Allocate(ctx, domain.AllocateOrderRequest{Order: orderWithRef("fail-allocation", 2)})
	require.NoError(t, err)
	assert.True(t, res.AllocationError)
	assert.Zero(t, res.Order.Lines[0].QuantityAllocated)

	res, err = sim.Allocate(ctx, domain.AllocateOrderRequest{Order: orderWithRef("cancel-while-pending-allocation", 2)})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestDeallocate(t *testing.T) {
	sim := newSimulator(t)
	order := orderWithRef("", 2, 5)
	order.Lines[0].QuantityAllocated = 2
	order.Lines[1].QuantityAllocated = 5

	res, err := sim.Deallocate(context.Background(), domain.DeallocateOrderRequest{Order: order})
	require.NoError(t, err)
	assert.False(t, res.Order.HasAllocation())
	assert.True(t, order.HasAllocation())
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent map[string][]any
}

func (p *recordingPublisher) PublishJSON(_ context.Context, topic, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sent == nil {
		p.sent = make(map[string][]any)
	}
	p.sent[topic] = append(p.sent[topic], payload)
	return nil
}

func TestListener_RoutesRequestsToResponseTopics(t *testing.T) {
	pub := &recordingPublisher{}
	l := NewListener(newSimulator(t), pub)
	handlers := l.Handlers()
	ctx := context.Background()

	send := func(ch domain.Channel, v any) error {
		body, err := json.Marshal(v)
		require.NoError(t, err)
		return handlers[ch](ctx, kafka.Message{Topic: string(ch), Value: body})
	}

	require.NoError(t, send(domain.ChannelValidateOrder, domain.ValidateOrderRequest{Order: orderWithRef("", 1)}))
	require.NoError(t, send(domain.ChannelValidateOrder, domain.ValidateOrderRequest{Order: orderWithRef("cancel-while-pending-validation", 1)}))
	require.NoError(t, send(domain.ChannelAllocateOrder, domain.AllocateOrderRequest{Order: orderWithRef("", 1)}))
	require.NoError(t, send(domain.ChannelDeallocateOrder, domain.DeallocateOrderRequest{Order: orderWithRef("", 1)}))

	assert.Len(t, pub.sent[string(domain.ChannelValidateOrderResult)], 1)
	assert.Len(t, pub.sent[string(domain.ChannelAllocateOrderResponse)], 1)
	assert.Len(t, pub.sent[string(domain.ChannelDeallocateOrderResponse)], 1)

	err := handlers[domain.ChannelAllocateOrder](ctx, kafka.Message{Value: []byte("{")})
	assert.ErrorContains(t, err, "decode allocate request")
}
