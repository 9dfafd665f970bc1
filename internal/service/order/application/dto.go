// internal/service/order/application/dto.go
package application

import (
	"time"

	"beerorder/internal/service/order/domain"
)

// CreateOrderRequest 是创建订单用例的输入数据
type CreateOrderRequest struct {
	CustomerID  string            `json:"customerId"`
	CustomerRef string            `json:"customerRef"`
	Lines       []CreateOrderLine `json:"orderLines"`
}

type CreateOrderLine struct {
	BeerID        string `json:"beerId"`
	UPC           string `json:"upc"`
	OrderQuantity int    `json:"orderQuantity"`
}

// ToOrder 转换为领域对象，ID 和状态由 CreateOrder 负责填充。
func (req *CreateOrderRequest) ToOrder() *domain.Order {
	lines := make([]domain.OrderLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, domain.OrderLine{BeerID: l.BeerID, UPC: l.UPC, OrderQuantity: l.OrderQuantity})
	}
	return &domain.Order{CustomerID: req.CustomerID, CustomerRef: req.CustomerRef, Lines: lines}
}

// OrderResponse 是对外暴露的订单视图
type OrderResponse struct {
	ID          string             `json:"id"`
	Status      domain.Status      `json:"orderStatus"`
	CustomerID  string             `json:"customerId,omitempty"`
	CustomerRef string             `json:"customerRef,omitempty"`
	Lines       []domain.OrderLine `json:"orderLines"`
	Version     int64              `json:"version"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func ToOrderResponse(o *domain.Order) *OrderResponse {
	return &OrderResponse{
		ID:          o.ID,
		Status:      o.Status,
		CustomerID:  o.CustomerID,
		CustomerRef: o.CustomerRef,
		Lines:       o.Lines,
		Version:     o.Version,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}
