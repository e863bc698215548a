package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderValidation(t *testing.T) {
	_, err := NewOrder("", "widget", 5, "store-1", "loc-1", 0)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = NewOrder("o1", "widget", 0, "store-1", "loc-1", 0)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = NewOrder("o1", "widget", -3, "store-1", "loc-1", 0)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	o, err := NewOrder("o1", "widget", 5, "store-1", "loc-1", 7)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, uint64(7), o.Created)
	assert.Equal(t, "loc-1", o.DeliveryLocation)
}

func TestOrderForwardOnlyTransitions(t *testing.T) {
	o, err := NewOrder("o1", "widget", 5, "store-1", "loc-1", 0)
	require.NoError(t, err)

	require.NoError(t, o.Transition(StatusInTransit))
	assert.ErrorIs(t, o.Transition(StatusPending), ErrOrderTransition)
	assert.ErrorIs(t, o.Transition(StatusCancelled), ErrOrderTransition,
		"in-transit orders cannot be cancelled")

	require.NoError(t, o.Transition(StatusFulfilled))
	assert.True(t, o.Terminal())
	assert.ErrorIs(t, o.Transition(StatusInTransit), ErrOrderTransition,
		"terminal status is final")
}

func TestOrderCancelFromPending(t *testing.T) {
	o, err := NewOrder("o1", "widget", 5, "store-1", "loc-1", 0)
	require.NoError(t, err)

	require.NoError(t, o.Transition(StatusCancelled))
	assert.True(t, o.Terminal())
	assert.ErrorIs(t, o.Transition(StatusFulfilled), ErrOrderTransition)
}

func TestInventoryClampsAtZero(t *testing.T) {
	inv := Inventory{"widget": 5}

	removed, short := inv.Remove("widget", 8)
	assert.Equal(t, 5, removed)
	assert.Equal(t, 3, short)
	assert.Equal(t, 0, inv.Get("widget"))

	removed, short = inv.Remove("widget", 1)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 1, short)
}

func TestInventoryAddIgnoresNonPositive(t *testing.T) {
	inv := Inventory{}
	inv.Add("widget", -5)
	inv.Add("widget", 0)
	assert.Equal(t, 0, inv.Get("widget"))

	inv.Add("widget", 3)
	assert.Equal(t, 3, inv.Total())
}

func TestInventoryCloneIsIndependent(t *testing.T) {
	inv := Inventory{"widget": 10}
	clone := inv.Clone()
	clone.Remove("widget", 4)

	assert.Equal(t, 10, inv.Get("widget"))
	assert.Equal(t, 6, clone.Get("widget"))
}
