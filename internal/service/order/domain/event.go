// internal/service/order/domain/event.go
package domain

// Event 是驱动状态机的输入。
type Event string

const (
	EventValidateOrder         Event = "VALIDATE_ORDER"
	EventValidationPassed      Event = "VALIDATION_PASSED"
	EventValidationFailed      Event = "VALIDATION_FAILED"
	EventAllocateOrder         Event = "ALLOCATE_ORDER"
	EventAllocationSuccess     Event = "ALLOCATION_SUCCESS"
	EventAllocationFailed      Event = "ALLOCATION_FAILED"
	EventAllocationNoInventory Event = "ALLOCATION_NO_INVENTORY"
	EventPickedUp              Event = "BEER_ORDER_PICKED_UP"
	EventCancelOrder           Event = "CANCEL_ORDER"
)

var AllEvents = []Event{
	EventValidateOrder,
	EventValidationPassed,
	EventValidationFailed,
	EventAllocateOrder,
	EventAllocationSuccess,
	EventAllocationFailed,
	EventAllocationNoInventory,
	EventPickedUp,
	EventCancelOrder,
}

func (e Event) Valid() bool {
	for _, v := range AllEvents {
		if v == e {
			return true
		}
	}
	return false
}

func (e Event) String() string { return string(e) }
