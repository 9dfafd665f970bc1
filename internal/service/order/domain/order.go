// internal/service/order/domain/order.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Order 是订单聚合的根实体
type Order struct {
	ID          string      `json:"id"`
	Version     int64       `json:"version"`
	CustomerID  string      `json:"customerId,omitempty"`
	CustomerRef string      `json:"customerRef,omitempty"`
	Status      Status      `json:"orderStatus"`
	Lines       []OrderLine `json:"orderLines"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// OrderLine 是订单中的一行商品
type OrderLine struct {
	ID                string `json:"id"`
	BeerID            string `json:"beerId"`
	UPC               string `json:"upc"`
	OrderQuantity     int    `json:"orderQuantity"`
	QuantityAllocated int    `json:"quantityAllocated"`
}

// NewOrder 创建一个 NEW 状态的订单：分配 ID，分配数量清零。
// 调用方传入的状态和版本号都会被忽略。
func NewOrder(customerID, customerRef string, lines []OrderLine) (*Order, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order must have at least one line", ErrInvalidOrder)
	}

	now := time.Now().UTC()
	o := &Order{
		ID:          uuid.New().String(),
		CustomerID:  customerID,
		CustomerRef: customerRef,
		Status:      StatusNew,
		Lines:       make([]OrderLine, 0, len(lines)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, l := range lines {
		if l.OrderQuantity <= 0 {
			return nil, fmt.Errorf("%w: line %d has non-positive quantity %d", ErrInvalidOrder, i, l.OrderQuantity)
		}
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		l.QuantityAllocated = 0
		o.Lines = append(o.Lines, l)
	}
	return o, nil
}

// Clone 深拷贝，避免仓储和调用方共享 Lines。
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Lines = append([]OrderLine(nil), o.Lines...)
	return &c
}

// ApplyAllocation 按行 ID 把外部报告的分配数量同步到本地订单行。
// 报告中不存在的行保持不变，本地不存在的行被忽略。
func (o *Order) ApplyAllocation(reported []OrderLine) error {
	byID := make(map[string]int, len(reported))
	for _, r := range reported {
		byID[r.ID] = r.QuantityAllocated
	}
	for i := range o.Lines {
		qty, ok := byID[o.Lines[i].ID]
		if !ok {
			continue
		}
		if qty < 0 || qty > o.Lines[i].OrderQuantity {
			return fmt.Errorf("%w: line %s allocated %d of %d", ErrInvariantViolation, o.Lines[i].ID, qty, o.Lines[i].OrderQuantity)
		}
		o.Lines[i].QuantityAllocated = qty
	}
	return nil
}

// HasAllocation 是否还有任何一行保留着库存。
func (o *Order) HasAllocation() bool {
	for _, l := range o.Lines {
		if l.QuantityAllocated > 0 {
			return true
		}
	}
	return false
}

func (o *Order) FullyAllocated() bool {
	for _, l := range o.Lines {
		if l.QuantityAllocated != l.OrderQuantity {
			return false
		}
	}
	return true
}
