package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	o, err := NewOrder("c-1", "ref", []OrderLine{
		{BeerID: "b-1", UPC: "0631234200036", OrderQuantity: 3, QuantityAllocated: 7},
		{ID: "keep-me", BeerID: "b-2", OrderQuantity: 1},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, StatusNew, o.Status)
	assert.Zero(t, o.Version)
	require.Len(t, o.Lines, 2)
	assert.NotEmpty(t, o.Lines[0].ID)
	assert.Equal(t, "keep-me", o.Lines[1].ID)
	assert.False(t, o.HasAllocation())
}

func TestNewOrder_Invalid(t *testing.T) {
	_, err := NewOrder("c-1", "", nil)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = NewOrder("c-1", "", []OrderLine{{OrderQuantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestApplyAllocation(t *testing.T) {
	o := &Order{Lines: []OrderLine{
		{ID: "l1", OrderQuantity: 5},
		{ID: "l2", OrderQuantity: 2},
	}}

	require.NoError(t, o.ApplyAllocation([]OrderLine{
		{ID: "l1", QuantityAllocated: 5},
		{ID: "unknown", QuantityAllocated: 9},
	}))
	assert.Equal(t, 5, o.Lines[0].QuantityAllocated)
	assert.Equal(t, 0, o.Lines[1].QuantityAllocated)
	assert.False(t, o.FullyAllocated())

	require.NoError(t, o.ApplyAllocation([]OrderLine{{ID: "l2", QuantityAllocated: 2}}))
	assert.True(t, o.FullyAllocated())

	err := o.ApplyAllocation([]OrderLine{{ID: "l2", QuantityAllocated: 3}})
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestClone_Independent(t *testing.T) {
	o := &Order{ID: "o", Lines: []OrderLine{{ID: "l1", OrderQuantity: 1}}}
	c := o.Clone()
	c.Lines[0].QuantityAllocated = 1
	assert.Zero(t, o.Lines[0].QuantityAllocated)
}

func TestStatus_Terminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusPickedUp:            true,
		StatusDelivered:           true,
		StatusDeliveryException:   true,
		StatusValidationException: true,
		StatusAllocationException: true,
		StatusCancelled:           true,
	}
	for _, s := range AllStatuses {
		assert.Equal(t, terminal[s], s.IsTerminal(), s)
		assert.True(t, s.Valid())
	}
	assert.False(t, Status("SHIPPED").Valid())
}

func TestIsSoft(t *testing.T) {
	assert.True(t, IsSoft(fmt.Errorf("wrap: %w", ErrOrderNotFound)))
	assert.True(t, IsSoft(ErrEventRejected))
	assert.True(t, IsSoft(ErrRaceTimeout))
	assert.False(t, IsSoft(ErrInvariantViolation))
	assert.False(t, IsSoft(ErrPreconditionViolation))
	assert.False(t, IsSoft(nil))
}
