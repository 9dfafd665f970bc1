// internal/service/order/domain/message.go
package domain

// 出站消息

type ValidateOrderRequest struct {
	Order *Order `json:"order"`
}

type AllocateOrderRequest struct {
	Order *Order `json:"order"`
}

type DeallocateOrderRequest struct {
	Order *Order `json:"order"`
}

type AllocationFailureEvent struct {
	OrderID string `json:"orderId"`
}

type ValidationFailureEvent struct {
	OrderID string `json:"orderId"`
}

// 入站消息

type ValidateOrderResult struct {
	OrderID string `json:"orderId"`
	IsValid bool   `json:"isValid"`
}

type AllocateOrderResult struct {
	Order            *Order `json:"order"`
	AllocationError  bool   `json:"allocationError"`
	PendingInventory bool   `json:"pendingInventory"`
}

type DeallocateOrderResult struct {
	Order *Order `json:"order"`
}
