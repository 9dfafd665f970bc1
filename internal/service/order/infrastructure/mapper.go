// internal/service/order/infrastructure/mapper.go
package infrastructure

import (
	"beerorder/internal/service/order/domain"
)

// ToDomainOrder 将数据库模型转换为领域模型
func ToDomainOrder(model *OrderModel) *domain.Order {
	if model == nil {
		return nil
	}
	o := &domain.Order{
		ID:          model.ID,
		Version:     model.Version,
		CustomerID:  model.CustomerID,
		CustomerRef: model.CustomerRef,
		Status:      domain.Status(model.Status),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		Lines:       make([]domain.OrderLine, 0, len(model.Lines)),
	}
	for _, l := range model.Lines {
		o.Lines = append(o.Lines, domain.OrderLine{
			ID:                l.ID,
			BeerID:            l.BeerID,
			UPC:               l.UPC,
			OrderQuantity:     l.OrderQuantity,
			QuantityAllocated: l.QuantityAllocated,
		})
	}
	return o
}

// ToOrderModel 将领域模型转换为数据库模型，行顺序保存在 Position 中
func ToOrderModel(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:          o.ID,
		Version:     o.Version,
		CustomerID:  o.CustomerID,
		CustomerRef: o.CustomerRef,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		Lines:       make([]OrderLineModel, 0, len(o.Lines)),
	}
	for i, l := range o.Lines {
		m.Lines = append(m.Lines, OrderLineModel{
			ID:                l.ID,
			OrderID:           o.ID,
			Position:          i,
			BeerID:            l.BeerID,
			UPC:               l.UPC,
			OrderQuantity:     l.OrderQuantity,
			QuantityAllocated: l.QuantityAllocated,
		})
	}
	return m
}
