package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionForward(t *testing.T) {
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusConfirmed))
	assert.True(t, CanTransition(OrderStatusConfirmed, OrderStatusProcessing))
	assert.True(t, CanTransition(OrderStatusShipped, OrderStatusOutForDelivery))
	assert.True(t, CanTransition(OrderStatusOutForDelivery, OrderStatusDelivered))

	// Intermediate stops may be skipped.
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusShipped))
	assert.True(t, CanTransition(OrderStatusConfirmed, OrderStatusDelivered))
}

func TestCanTransitionRejectsBackward(t *testing.T) {
	assert.False(t, CanTransition(OrderStatusShipped, OrderStatusPending))
	assert.False(t, CanTransition(OrderStatusProcessing, OrderStatusConfirmed))
	assert.False(t, CanTransition(OrderStatusOutForDelivery, OrderStatusShipped))
}

func TestTerminalStatesAreFinal(t *testing.T) {
	terminals := []OrderStatus{
		OrderStatusDelivered,
		OrderStatusCancelled,
		OrderStatusReturned,
		OrderStatusRefunded,
	}
	targets := []OrderStatus{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusOutForDelivery,
		OrderStatusDelivered,
		OrderStatusCancelled,
		OrderStatusReturned,
		OrderStatusRefunded,
	}

	for _, from := range terminals {
		assert.True(t, from.IsTerminal())
		for _, to := range targets {
			assert.False(t, CanTransition(from, to),
				"terminal %s must not transition to %s", from, to)
		}
	}
}

func TestCancellationOnlyFromEarlyStates(t *testing.T) {
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusCancelled))
	assert.True(t, CanTransition(OrderStatusConfirmed, OrderStatusCancelled))

	assert.False(t, CanTransition(OrderStatusProcessing, OrderStatusCancelled))
	assert.False(t, CanTransition(OrderStatusShipped, OrderStatusCancelled))
	assert.False(t, CanTransition(OrderStatusDelivered, OrderStatusCancelled))
}

func TestCancellable(t *testing.T) {
	assert.True(t, OrderStatusPending.Cancellable())
	assert.True(t, OrderStatusConfirmed.Cancellable())
	assert.False(t, OrderStatusShipped.Cancellable())
	assert.False(t, OrderStatusDelivered.Cancellable())
	assert.False(t, OrderStatusCancelled.Cancellable())
}

func TestSelfTransitionRejected(t *testing.T) {
	assert.False(t, CanTransition(OrderStatusPending, OrderStatusPending))
	assert.False(t, CanTransition(OrderStatusShipped, OrderStatusShipped))
}

func TestUnknownStatusRejected(t *testing.T) {
	assert.False(t, OrderStatus("packed").IsValid())
	assert.False(t, CanTransition(OrderStatus("packed"), OrderStatusShipped))
	assert.False(t, CanTransition(OrderStatusPending, OrderStatus("packed")))
}

func TestProductDerivedFields(t *testing.T) {
	p := &Product{Quantity: 5, Reserved: 3, OriginalPrice: 1000, SalePrice: 750, Status: ProductStatusActive}

	assert.Equal(t, 2, p.Available())
	assert.Equal(t, 25, p.DiscountPercentage())
	assert.True(t, p.Purchasable())

	p.Status = ProductStatusOutOfStock
	assert.False(t, p.Purchasable())
}
