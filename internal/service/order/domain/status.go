// internal/service/order/domain/status.go
package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusNew                 Status = "NEW"
	StatusValidationPending   Status = "VALIDATION_PENDING"
	StatusValidated           Status = "VALIDATED"
	StatusValidationException Status = "VALIDATION_EXCEPTION"
	StatusAllocationPending   Status = "ALLOCATION_PENDING"
	StatusAllocated           Status = "ALLOCATED"
	StatusAllocationException Status = "ALLOCATION_EXCEPTION"
	StatusPendingInventory    Status = "PENDING_INVENTORY"
	StatusPickedUp            Status = "PICKED_UP"
	StatusDelivered           Status = "DELIVERED"
	StatusDeliveryException   Status = "DELIVERY_EXCEPTION"
	StatusCancelled           Status = "CANCELLED"
)

// AllStatuses 按生命周期的大致顺序列出所有状态。
var AllStatuses = []Status{
	StatusNew,
	StatusValidationPending,
	StatusValidated,
	StatusValidationException,
	StatusAllocationPending,
	StatusAllocated,
	StatusAllocationException,
	StatusPendingInventory,
	StatusPickedUp,
	StatusDelivered,
	StatusDeliveryException,
	StatusCancelled,
}

// IsTerminal 终态不再接受任何事件。
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPickedUp, StatusDelivered, StatusDeliveryException,
		StatusValidationException, StatusAllocationException, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }
