package store

import (
	"context"
	"database/sql"
	"fmt"

	"clearance-connect/internal/models"

	"github.com/jmoiron/sqlx"
)

// PlaceOrder persists a new order, its line items, and the opening
// timeline entry, reserving stock for every line in the same
// transaction. Either the whole order lands with all its reservations
// applied or nothing changes.
func (s *Store) PlaceOrder(ctx context.Context, order *models.Order, actor models.Actor) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := reserveItemsTx(ctx, tx, order.Items); err != nil {
		return err
	}

	query := `
		INSERT INTO orders (order_number, customer_id, subtotal, shipping_cost, tax, discount, total,
			status, payment_method, shipping_address, billing_address, customer_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		order.OrderNumber, order.CustomerID, order.Subtotal, order.ShippingCost,
		order.Tax, order.Discount, order.Total, order.Status, order.PaymentMethod,
		order.ShippingAddr, order.BillingAddr, order.CustomerNotes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, seller_id, name, image, quantity,
			unit_price, original_unit_price, line_discount, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err = tx.QueryRowxContext(ctx, itemQuery,
			item.OrderID, item.ProductID, item.SellerID, item.Name, item.Image,
			item.Quantity, item.UnitPrice, item.OriginalUnitPrice,
			item.LineDiscount, item.LineTotal,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	entry := models.TimelineEntry{
		OrderID:   order.ID,
		Status:    order.Status,
		Message:   models.DefaultStatusMessage(order.Status),
		ActorRole: actor.Role,
		ActorID:   actor.ID,
	}
	if err := appendTimelineTx(ctx, tx, &entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	order.Timeline = []models.TimelineEntry{entry}
	return nil
}

func appendTimelineTx(ctx context.Context, tx *sqlx.Tx, entry *models.TimelineEntry) error {
	query := `
		INSERT INTO order_timeline (order_id, status, message, actor_role, actor_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := tx.QueryRowxContext(ctx, query,
		entry.OrderID, entry.Status, entry.Message, entry.ActorRole, entry.ActorID,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append timeline entry: %w", err)
	}
	return nil
}

// GetOrderByID retrieves an order with its items and timeline.
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrOrderNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadOrderRelations(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByNumber retrieves an order by its human-readable number.
func (s *Store) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE order_number = $1", number)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", number, models.ErrOrderNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadOrderRelations(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) loadOrderRelations(ctx context.Context, order *models.Order) error {
	if err := s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", order.ID); err != nil {
		return err
	}
	return s.db.SelectContext(ctx, &order.Timeline,
		"SELECT * FROM order_timeline WHERE order_id = $1 ORDER BY id", order.ID)
}

// GetOrdersByCustomer retrieves a customer's orders, newest first.
// Items and timeline are not loaded for list views.
func (s *Store) GetOrdersByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	return orders, err
}

// UpdateOrderStatus moves an order to a new status and appends the
// matching timeline entry. The WHERE guard on the expected current
// status makes concurrent transitions lose cleanly instead of
// double-writing the timeline.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, from, to models.OrderStatus,
	message string, actor models.Actor, trackingNumber string) (*models.TimelineEntry, error) {

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := "UPDATE orders SET status = $1, updated_at = NOW()"
	args := []interface{}{to}

	switch to {
	case models.OrderStatusShipped:
		if trackingNumber != "" {
			query += ", tracking_number = $2, shipped_at = NOW() WHERE id = $3 AND status = $4"
			args = append(args, trackingNumber, orderID, from)
		} else {
			query += ", shipped_at = NOW() WHERE id = $2 AND status = $3"
			args = append(args, orderID, from)
		}
	case models.OrderStatusDelivered:
		query += ", delivered_at = NOW() WHERE id = $2 AND status = $3"
		args = append(args, orderID, from)
	default:
		query += " WHERE id = $2 AND status = $3"
		args = append(args, orderID, from)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("order %d moved out of %s concurrently: %w",
			orderID, from, models.ErrInvalidState)
	}

	entry := models.TimelineEntry{
		OrderID:   orderID,
		Status:    to,
		Message:   message,
		ActorRole: actor.Role,
		ActorID:   actor.ID,
	}
	if err := appendTimelineTx(ctx, tx, &entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &entry, nil
}

// CancelOrder flips the order to cancelled, records the auto-approved
// cancellation, appends the timeline entry, and releases every line's
// reserved stock, all in one transaction. The conditional UPDATE is
// the cancellability check: it only matches orders still in pending or
// confirmed, so a concurrent shipment and a cancellation cannot both
// win.
func (s *Store) CancelOrder(ctx context.Context, order *models.Order, reason string, actor models.Actor) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, cancel_reason = $2, cancelled_at = NOW(), refund_amount = $3, updated_at = NOW()
		WHERE id = $4 AND status IN ($5, $6)`,
		models.OrderStatusCancelled, reason, order.Total, order.ID,
		models.OrderStatusPending, models.OrderStatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order %d is no longer cancellable: %w", order.ID, models.ErrInvalidState)
	}

	entry := models.TimelineEntry{
		OrderID:   order.ID,
		Status:    models.OrderStatusCancelled,
		Message:   fmt.Sprintf("Order cancelled: %s", reason),
		ActorRole: actor.Role,
		ActorID:   actor.ID,
	}
	if err := appendTimelineTx(ctx, tx, &entry); err != nil {
		return err
	}

	if err := releaseItemsTx(ctx, tx, order.Items); err != nil {
		return err
	}

	return tx.Commit()
}
