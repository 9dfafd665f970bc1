package statemachine

import (
	"context"
	"errors"
	"testing"

	"beerorder/internal/service/order/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHook struct {
	calls []Transition
	err   error
	log   *[]string
}

func (h *recordingHook) PreStateChange(_ context.Context, _ Request, t Transition) error {
	*h.log = append(*h.log, "persist:"+string(t.To))
	if h.err != nil {
		return h.err
	}
	h.calls = append(h.calls, t)
	return nil
}

func newTestMachine(t *testing.T, hookErr, actionErr error) (*Machine, *recordingHook, *[]string) {
	t.Helper()
	var log []string
	hook := &recordingHook{err: hookErr, log: &log}
	actions := map[ActionKind]Action{}
	for _, kind := range []ActionKind{
		ActionSendValidateRequest, ActionSendAllocateRequest, ActionSendDeallocateRequest,
		ActionNotifyAllocationFailure, ActionNotifyValidationFailure,
	} {
		kind := kind
		actions[kind] = func(context.Context, string) error {
			log = append(log, "action:"+string(kind))
			return actionErr
		}
	}
	m, err := New(hook, actions)
	require.NoError(t, err)
	return m, hook, &log
}

func TestTable_IsValid(t *testing.T) {
	require.NoError(t, Validate(Table()))
}

func TestTable_Edges(t *testing.T) {
	want := map[[2]string]Transition{}
	for _, tr := range []Transition{
		{domain.StatusNew, domain.EventValidateOrder, domain.StatusValidationPending, ActionSendValidateRequest},
		{domain.StatusValidationPending, domain.EventValidationPassed, domain.StatusValidated, ActionNone},
		{domain.StatusValidationPending, domain.EventValidationFailed, domain.StatusValidationException, ActionNotifyValidationFailure},
		{domain.StatusValidated, domain.EventAllocateOrder, domain.StatusAllocationPending, ActionSendAllocateRequest},
		{domain.StatusAllocationPending, domain.EventAllocationSuccess, domain.StatusAllocated, ActionNone},
		{domain.StatusAllocationPending, domain.EventAllocationFailed, domain.StatusAllocationException, ActionNotifyAllocationFailure},
		{domain.StatusAllocationPending, domain.EventAllocationNoInventory, domain.StatusPendingInventory, ActionNone},
		{domain.StatusAllocated, domain.EventPickedUp, domain.StatusPickedUp, ActionNone},
		{domain.StatusValidationPending, domain.EventCancelOrder, domain.StatusCancelled, ActionNone},
		{domain.StatusValidated, domain.EventCancelOrder, domain.StatusCancelled, ActionNone},
		{domain.StatusAllocationPending, domain.EventCancelOrder, domain.StatusCancelled, ActionNone},
		{domain.StatusPendingInventory, domain.EventCancelOrder, domain.StatusCancelled, ActionSendDeallocateRequest},
		{domain.StatusAllocated, domain.EventCancelOrder, domain.StatusCancelled, ActionSendDeallocateRequest},
	} {
		want[[2]string{string(tr.From), string(tr.Event)}] = tr
	}

	m, _, _ := newTestMachine(t, nil, nil)
	for _, s := range domain.AllStatuses {
		for _, e := range domain.AllEvents {
			expected, ok := want[[2]string{string(s), string(e)}]
			assert.Equal(t, ok, m.Accepts(s, e), "%s/%s", s, e)
			if ok {
				assert.Equal(t, expected, m.index[transitionKey{s, e}])
			}
		}
	}
	assert.Len(t, Table(), len(want))
}

func TestValidate_Rejects(t *testing.T) {
	dup := []Transition{
		{domain.StatusNew, domain.EventValidateOrder, domain.StatusValidationPending, ActionNone},
		{domain.StatusNew, domain.EventValidateOrder, domain.StatusCancelled, ActionNone},
	}
	assert.ErrorContains(t, Validate(dup), "duplicate")

	terminal := []Transition{{domain.StatusCancelled, domain.EventValidateOrder, domain.StatusNew, ActionNone}}
	assert.ErrorContains(t, Validate(terminal), "terminal")

	unknown := []Transition{{domain.StatusNew, domain.Event("SHIP"), domain.StatusDelivered, ActionNone}}
	assert.ErrorContains(t, Validate(unknown), "unknown event")

	_, err := New(&recordingHook{log: new([]string)}, nil, WithTransitions(dup))
	assert.Error(t, err)
}

func TestNew_RequiresRegisteredActions(t *testing.T) {
	_, err := New(&recordingHook{log: new([]string)}, map[ActionKind]Action{})
	assert.ErrorContains(t, err, "no action registered")
}

func TestFire_PersistsThenActs(t *testing.T) {
	m, hook, log := newTestMachine(t, nil, nil)

	tr, err := m.Fire(context.Background(), Request{OrderID: "o-1", From: domain.StatusNew, Event: domain.EventValidateOrder})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusValidationPending, tr.To)
	assert.Len(t, hook.calls, 1)
	assert.Equal(t, []string{"persist:VALIDATION_PENDING", "action:send-validate-request"}, *log)
}

func TestFire_RejectedHasNoSideEffects(t *testing.T) {
	m, hook, log := newTestMachine(t, nil, nil)

	_, err := m.Fire(context.Background(), Request{OrderID: "o-1", From: domain.StatusAllocated, Event: domain.EventAllocationSuccess})
	assert.ErrorIs(t, err, domain.ErrEventRejected)
	assert.Empty(t, hook.calls)
	assert.Empty(t, *log)
}

func TestFire_HookErrorSkipsAction(t *testing.T) {
	boom := errors.New("db down")
	m, _, log := newTestMachine(t, boom, nil)

	_, err := m.Fire(context.Background(), Request{OrderID: "o-1", From: domain.StatusNew, Event: domain.EventValidateOrder})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"persist:VALIDATION_PENDING"}, *log)
}

func TestFire_ActionErrorDoesNotFailTransition(t *testing.T) {
	m, hook, _ := newTestMachine(t, nil, errors.New("broker down"))

	tr, err := m.Fire(context.Background(), Request{OrderID: "o-1", From: domain.StatusAllocationPending, Event: domain.EventAllocationFailed})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAllocationException, tr.To)
	assert.Len(t, hook.calls, 1)
}
