// internal/service/order/infrastructure/memory_repository.go
package infrastructure

import (
	"context"
	"fmt"
	"sync"

	"beerorder/internal/service/order/domain"
)

// MemoryOrderRepository 是进程内的仓储实现，语义与 GORM 实现一致，用于单机部署和测试。
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *MemoryOrderRepository) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *MemoryOrderRepository) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return o.Clone(), nil
}

func (r *MemoryOrderRepository) Save(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[order.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, order.ID)
	}
	if stored.Version != order.Version {
		return fmt.Errorf("%w: order %s stored version %d, got %d", domain.ErrVersionConflict, order.ID, stored.Version, order.Version)
	}
	order.Version++
	r.orders[order.ID] = order.Clone()
	return nil
}
