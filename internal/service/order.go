package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clearance-connect/config"
	"clearance-connect/internal/broker"
	"clearance-connect/internal/models"
	"clearance-connect/internal/store"
	"clearance-connect/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const orderNumberAttempts = 3

// OrderService converts validated carts into persisted orders with
// reserved stock, and drives the order status state machine.
type OrderService struct {
	store          *store.Store
	carts          CartStore
	eventPublisher *broker.EventPublisher
	business       config.BusinessConfig
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store *store.Store,
	carts CartStore,
	eventPublisher *broker.EventPublisher,
	business config.BusinessConfig,
) *OrderService {
	return &OrderService{
		store:          store,
		carts:          carts,
		eventPublisher: eventPublisher,
		business:       business,
		logger:         util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddress models.Address     `json:"shipping_address" binding:"required"`
	BillingAddress  *models.Address    `json:"billing_address,omitempty"`
	Payment         PaymentRequest     `json:"payment" binding:"required"`
	CustomerNotes   string             `json:"customer_notes,omitempty"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// PaymentRequest carries the chosen payment method. Payment execution
// is an external collaborator; the order only records the method.
type PaymentRequest struct {
	Method string `json:"method" binding:"required,oneof=cod online wallet upi"`
}

// CreateOrder snapshots pricing for the requested items, computes the
// totals, and persists the order while reserving every line's stock in
// a single all-or-nothing pass. A failure on any line mutates nothing.
func (s *OrderService) CreateOrder(ctx context.Context, customerID int64, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	products, err := s.validateItems(ctx, req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	var subtotal int64
	for _, item := range req.Items {
		line := snapshotLine(products[item.ProductID], item.Quantity)
		subtotal += line.LineTotal
		items = append(items, line)
	}

	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}

	shippingCost := ShippingCost(subtotal, s.business)
	tax := Tax(subtotal, s.business)

	order := &models.Order{
		CustomerID:    customerID,
		Subtotal:      subtotal,
		ShippingCost:  shippingCost,
		Tax:           tax,
		Discount:      0,
		Total:         subtotal + shippingCost + tax,
		Status:        models.OrderStatusPending,
		PaymentMethod: req.Payment.Method,
		ShippingAddr:  req.ShippingAddress,
		BillingAddr:   billing,
		CustomerNotes: req.CustomerNotes,
		Items:         items,
	}

	actor := models.Actor{ID: customerID, Role: models.RoleCustomer}

	start := time.Now()
	err = s.placeWithFreshNumber(ctx, order, actor)
	util.StockReserveLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		util.StockReservationsFailed.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total", order.Total))

	// Checkout consumes the cart.
	if err := s.carts.Clear(ctx, customerID); err != nil {
		s.logger.Warn("Failed to clear cart after checkout",
			zap.Int64("customer_id", customerID),
			zap.Error(err))
	}

	s.publishOrderPlaced(ctx, order)

	return order, nil
}

// placeWithFreshNumber retries the whole placement transaction with a
// regenerated order number when the unique constraint trips. The
// random suffix makes more than one collision vanishingly unlikely.
func (s *OrderService) placeWithFreshNumber(ctx context.Context, order *models.Order, actor models.Actor) error {
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber = NewOrderNumber(time.Now())
		err = s.store.PlaceOrder(ctx, order, actor)
		if err == nil || !store.IsUniqueViolation(err) {
			return err
		}
		s.logger.Warn("Order number collision, retrying",
			zap.String("order_number", order.OrderNumber))
	}
	return fmt.Errorf("exhausted order number attempts: %w", err)
}

func (s *OrderService) validateItems(ctx context.Context, items []OrderItemRequest) (map[int64]*models.Product, error) {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	// Checked in input order so the first broken item names the error.
	// The authoritative re-check happens under row locks inside the
	// placement transaction; this pass exists for fast, precise errors.
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, models.ErrProductNotFound)
		}
		if !product.Purchasable() {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, models.ErrProductUnavailable)
		}
		if product.Available() < item.Quantity {
			return nil, fmt.Errorf("product %d: available=%d, requested=%d: %w",
				item.ProductID, product.Available(), item.Quantity, models.ErrInsufficientStock)
		}
	}

	return byID, nil
}

// GetOrder retrieves an order for its owner, any seller with a line in
// it, or an admin.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64, actor models.Actor) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanViewOrder(order, actor) {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrForbidden)
	}
	return order, nil
}

// ListOrders returns the customer's own orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, customerID int64) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	return s.store.GetOrdersByCustomer(ctx, customerID)
}

// UpdateStatus moves an order along the status state machine. Only the
// admin overseer or a seller with a line in the order may do so; an
// order spanning several sellers can be advanced by any one of them.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, actor models.Actor,
	newStatus models.OrderStatus, message, trackingNumber string) (*models.Order, error) {

	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	// Cancellation must release reserved stock and record the refund,
	// which a bare status flip cannot do. It only happens via Cancel.
	if newStatus == models.OrderStatusCancelled {
		return nil, fmt.Errorf("order %d: cancellation must go through the cancel operation: %w",
			orderID, models.ErrInvalidState)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !CanUpdateStatus(order, actor) {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrForbidden)
	}
	if !models.CanTransition(order.Status, newStatus) {
		return nil, fmt.Errorf("order %d: %s -> %s: %w",
			orderID, order.Status, newStatus, models.ErrInvalidState)
	}

	if message == "" {
		message = models.DefaultStatusMessage(newStatus)
	}

	if _, err := s.store.UpdateOrderStatus(ctx, orderID, order.Status, newStatus, message, actor, trackingNumber); err != nil {
		return nil, err
	}

	util.OrderStatusUpdatesTotal.WithLabelValues(string(newStatus)).Inc()
	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", string(order.Status)),
		zap.String("to", string(newStatus)))

	updated, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.publishStatusChanged(ctx, updated, actor)

	return updated, nil
}

// Cancel lets the owning customer cancel an order that has not moved
// past confirmed. Cancellation is auto-approved and releases every
// line's reserved stock.
func (s *OrderService) Cancel(ctx context.Context, orderID, customerID int64, reason string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Cancel")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, fmt.Errorf("order %d: %w", orderID, models.ErrForbidden)
	}
	if !order.Status.Cancellable() {
		return nil, fmt.Errorf("order %d in status %s: %w", orderID, order.Status, models.ErrInvalidState)
	}

	actor := models.Actor{ID: customerID, Role: models.RoleCustomer}
	if err := s.store.CancelOrder(ctx, order, reason, actor); err != nil {
		return nil, err
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled",
		zap.Int64("order_id", orderID),
		zap.String("reason", reason))

	updated, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.publishCancelled(ctx, updated, reason)

	return updated, nil
}

// TrackView is the public, shareable order status page payload.
type TrackView struct {
	OrderNumber  string                 `json:"order_number"`
	Status       models.OrderStatus     `json:"status"`
	CustomerName string                 `json:"customer_name"`
	Timeline     []models.TimelineEntry `json:"timeline"`
	Shipping     models.ShippingInfo    `json:"shipping"`
}

// Track returns the public tracking summary. No authorization: status
// pages are deliberately shareable.
func (s *OrderService) Track(ctx context.Context, orderID int64) (*TrackView, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Track")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &TrackView{
		OrderNumber:  order.OrderNumber,
		Status:       order.Status,
		CustomerName: order.ShippingAddr.FirstName + " " + order.ShippingAddr.LastName,
		Timeline:     order.Timeline,
		Shipping:     order.Shipping(),
	}, nil
}

// CanViewOrder reports whether the actor may read the full order.
func CanViewOrder(order *models.Order, actor models.Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	if actor.IsCustomer() && order.CustomerID == actor.ID {
		return true
	}
	return actor.IsSeller() && orderHasSeller(order, actor.ID)
}

// CanUpdateStatus reports whether the actor may drive the order's
// status. Customers never can; cancellation is their separate path.
func CanUpdateStatus(order *models.Order, actor models.Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.IsSeller() && orderHasSeller(order, actor.ID)
}

func orderHasSeller(order *models.Order, sellerID int64) bool {
	for _, item := range order.Items {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, models.ErrProductUnavailable):
		return "product_unavailable"
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "db_error"
	}
}

func (s *OrderService) publishOrderPlaced(ctx context.Context, order *models.Order) {
	event := &models.OrderPlacedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Total:       order.Total,
		Items:       eventItems(order.Items),
	}
	if err := s.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}
}

func (s *OrderService) publishStatusChanged(ctx context.Context, order *models.Order, actor models.Actor) {
	event := &models.OrderStatusChangedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		ActorRole:   actor.Role,
		ActorID:     actor.ID,
	}
	if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}
}

func (s *OrderService) publishCancelled(ctx context.Context, order *models.Order, reason string) {
	event := &models.OrderCancelledEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Reason:      reason,
		Items:       eventItems(order.Items),
	}
	if err := s.eventPublisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func eventItems(items []models.OrderItem) []models.OrderItemData {
	out := make([]models.OrderItemData, len(items))
	for i, item := range items {
		out[i] = models.OrderItemData{
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return out
}
