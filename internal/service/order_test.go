package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"clearance-connect/internal/models"

	"github.com/stretchr/testify/assert"
)

func sampleOrder() *models.Order {
	return &models.Order{
		ID:         1,
		CustomerID: 42,
		Status:     models.OrderStatusPending,
		Items: []models.OrderItem{
			{ProductID: 1, SellerID: 7, Quantity: 1},
			{ProductID: 2, SellerID: 8, Quantity: 2},
		},
	}
}

func TestCanViewOrder(t *testing.T) {
	order := sampleOrder()

	assert.True(t, CanViewOrder(order, models.Actor{ID: 42, Role: models.RoleCustomer}))
	assert.False(t, CanViewOrder(order, models.Actor{ID: 43, Role: models.RoleCustomer}))

	// Sellers see only orders that carry one of their lines.
	assert.True(t, CanViewOrder(order, models.Actor{ID: 7, Role: models.RoleSeller}))
	assert.True(t, CanViewOrder(order, models.Actor{ID: 8, Role: models.RoleSeller}))
	assert.False(t, CanViewOrder(order, models.Actor{ID: 9, Role: models.RoleSeller}))

	assert.True(t, CanViewOrder(order, models.Actor{ID: 1, Role: models.RoleAdmin}))
}

func TestCanUpdateStatus(t *testing.T) {
	order := sampleOrder()

	// The owning customer cannot drive the state machine; cancellation
	// is their separate path.
	assert.False(t, CanUpdateStatus(order, models.Actor{ID: 42, Role: models.RoleCustomer}))

	assert.True(t, CanUpdateStatus(order, models.Actor{ID: 7, Role: models.RoleSeller}))
	assert.False(t, CanUpdateStatus(order, models.Actor{ID: 9, Role: models.RoleSeller}))
	assert.True(t, CanUpdateStatus(order, models.Actor{ID: 1, Role: models.RoleAdmin}))
}

func TestUpdateStatusRejectsCancelled(t *testing.T) {
	svc := NewOrderService(nil, nil, nil, testBusiness)

	// Cancellation releases stock and records the refund, so a bare
	// status update to cancelled is refused for every role. The guard
	// fires before any store access.
	for _, role := range []models.Role{models.RoleAdmin, models.RoleSeller} {
		_, err := svc.UpdateStatus(context.Background(), 1, models.Actor{ID: 1, Role: role},
			models.OrderStatusCancelled, "", "")
		assert.ErrorIs(t, err, models.ErrInvalidState)
	}
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "product_not_found",
		failureReason(fmt.Errorf("product 3: %w", models.ErrProductNotFound)))
	assert.Equal(t, "product_unavailable",
		failureReason(fmt.Errorf("product 3: %w", models.ErrProductUnavailable)))
	assert.Equal(t, "insufficient_stock",
		failureReason(fmt.Errorf("product 3: %w", models.ErrInsufficientStock)))
	assert.Equal(t, "db_error", failureReason(errors.New("connection reset")))
}

func TestEventItems(t *testing.T) {
	order := sampleOrder()
	order.Items[0].UnitPrice = 1500

	data := eventItems(order.Items)

	assert.Len(t, data, 2)
	assert.Equal(t, int64(1), data[0].ProductID)
	assert.Equal(t, int64(7), data[0].SellerID)
	assert.Equal(t, int64(1500), data[0].UnitPrice)
}
