// internal/service/order/statemachine/table.go
package statemachine

import (
	"fmt"

	"beerorder/internal/service/order/domain"
)

// ActionKind 标识一次迁移成功后要执行的动作，空字符串表示无动作。
type ActionKind string

const (
	ActionNone                    ActionKind = ""
	ActionSendValidateRequest     ActionKind = "send-validate-request"
	ActionSendAllocateRequest     ActionKind = "send-allocate-request"
	ActionSendDeallocateRequest   ActionKind = "send-deallocate-request"
	ActionNotifyAllocationFailure ActionKind = "notify-allocation-failure"
	ActionNotifyValidationFailure ActionKind = "notify-validation-failure"
)

// Transition 是迁移表中的一行。
type Transition struct {
	From   domain.Status
	Event  domain.Event
	To     domain.Status
	Action ActionKind
}

type transitionKey struct {
	from  domain.Status
	event domain.Event
}

// transitions 是订单生命周期的全部合法迁移，不在表里的 (状态, 事件) 一律拒绝。
var transitions = []Transition{
	{domain.StatusNew, domain.EventValidateOrder, domain.StatusValidationPending, ActionSendValidateRequest},

	{domain.StatusValidationPending, domain.EventValidationPassed, domain.StatusValidated, ActionNone},
	{domain.StatusValidationPending, domain.EventValidationFailed, domain.StatusValidationException, ActionNotifyValidationFailure},
	{domain.StatusValidationPending, domain.EventCancelOrder, domain.StatusCancelled, ActionNone},

	{domain.StatusValidated, domain.EventAllocateOrder, domain.StatusAllocationPending, ActionSendAllocateRequest},
	{domain.StatusValidated, domain.EventCancelOrder, domain.StatusCancelled, ActionNone},

	{domain.StatusAllocationPending, domain.EventAllocationSuccess, domain.StatusAllocated, ActionNone},
	{domain.StatusAllocationPending, domain.EventAllocationFailed, domain.StatusAllocationException, ActionNotifyAllocationFailure},
	{domain.StatusAllocationPending, domain.EventAllocationNoInventory, domain.StatusPendingInventory, ActionNone},
	{domain.StatusAllocationPending, domain.EventCancelOrder, domain.StatusCancelled, ActionNone},

	// 已经占用了库存的订单取消时需要释放库存
	{domain.StatusPendingInventory, domain.EventCancelOrder, domain.StatusCancelled, ActionSendDeallocateRequest},
	{domain.StatusAllocated, domain.EventCancelOrder, domain.StatusCancelled, ActionSendDeallocateRequest},

	{domain.StatusAllocated, domain.EventPickedUp, domain.StatusPickedUp, ActionNone},
}

// Table 返回迁移表的副本。
func Table() []Transition {
	return append([]Transition(nil), transitions...)
}

// Validate 检查迁移表：状态和事件必须已定义，(状态, 事件) 不能重复，终态不能有出边。
func Validate(rows []Transition) error {
	seen := make(map[transitionKey]struct{}, len(rows))
	for i, t := range rows {
		if !t.From.Valid() || !t.To.Valid() {
			return fmt.Errorf("transition %d: unknown status %s -> %s", i, t.From, t.To)
		}
		if !t.Event.Valid() {
			return fmt.Errorf("transition %d: unknown event %q", i, t.Event)
		}
		if t.From.IsTerminal() {
			return fmt.Errorf("transition %d: terminal status %s has outgoing event %s", i, t.From, t.Event)
		}
		k := transitionKey{t.From, t.Event}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("duplicate transition key (%s, %s)", t.From, t.Event)
		}
		seen[k] = struct{}{}
	}
	return nil
}

func index(rows []Transition) map[transitionKey]Transition {
	m := make(map[transitionKey]Transition, len(rows))
	for _, t := range rows {
		m[transitionKey{t.From, t.Event}] = t
	}
	return m
}
