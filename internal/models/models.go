package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Product statuses
const (
	ProductStatusPendingApproval = "pending_approval"
	ProductStatusActive          = "active"
	ProductStatusInactive        = "inactive"
	ProductStatusOutOfStock      = "out_of_stock"
	ProductStatusDiscontinued    = "discontinued"
)

// Payment methods accepted at checkout
const (
	PaymentMethodCOD    = "cod"
	PaymentMethodOnline = "online"
	PaymentMethodWallet = "wallet"
	PaymentMethodUPI    = "upi"
)

// Product represents a sellable clearance item. Prices are in paise.
type Product struct {
	ID            int64     `db:"id" json:"id"`
	SellerID      int64     `db:"seller_id" json:"seller_id"`
	Name          string    `db:"name" json:"name"`
	Image         string    `db:"image" json:"image,omitempty"`
	OriginalPrice int64     `db:"original_price" json:"original_price"`
	SalePrice     int64     `db:"sale_price" json:"sale_price"`
	Quantity      int       `db:"quantity" json:"quantity"`
	Reserved      int       `db:"reserved" json:"reserved"`
	Status        string    `db:"status" json:"status"`
	CartAdds      int64     `db:"cart_adds" json:"cart_adds"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Available is the only number that gates new cart/order acceptance.
func (p *Product) Available() int {
	return p.Quantity - p.Reserved
}

// DiscountPercentage is derived from the two prices, never stored.
func (p *Product) DiscountPercentage() int {
	if p.OriginalPrice <= 0 || p.SalePrice >= p.OriginalPrice {
		return 0
	}
	return int((p.OriginalPrice - p.SalePrice) * 100 / p.OriginalPrice)
}

// Purchasable reports whether the product can enter a cart or order.
func (p *Product) Purchasable() bool {
	return p.Status == ProductStatusActive
}

// Address is a shipping or billing address, stored as JSONB.
type Address struct {
	FirstName  string `json:"first_name" binding:"required"`
	LastName   string `json:"last_name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Phone      string `json:"phone" binding:"required,inphone"`
	Street     string `json:"street" binding:"required"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state" binding:"required"`
	PostalCode string `json:"postal_code" binding:"required,pincode"`
}

func (a Address) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *Address) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported address column type %T", src)
	}
}

// Order is an immutable-once-placed record of a purchase.
type Order struct {
	ID             int64       `db:"id" json:"id"`
	OrderNumber    string      `db:"order_number" json:"order_number"`
	CustomerID     int64       `db:"customer_id" json:"customer_id"`
	Subtotal       int64       `db:"subtotal" json:"subtotal"`
	ShippingCost   int64       `db:"shipping_cost" json:"shipping_cost"`
	Tax            int64       `db:"tax" json:"tax"`
	Discount       int64       `db:"discount" json:"discount"`
	Total          int64       `db:"total" json:"total"`
	Status         OrderStatus `db:"status" json:"status"`
	PaymentMethod  string      `db:"payment_method" json:"payment_method"`
	ShippingAddr   Address     `db:"shipping_address" json:"shipping_address"`
	BillingAddr    Address     `db:"billing_address" json:"billing_address"`
	CustomerNotes  string      `db:"customer_notes" json:"customer_notes,omitempty"`
	TrackingNumber *string     `db:"tracking_number" json:"tracking_number,omitempty"`
	ShippedAt      *time.Time  `db:"shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time  `db:"delivered_at" json:"delivered_at,omitempty"`
	CancelReason   *string     `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledAt    *time.Time  `db:"cancelled_at" json:"cancelled_at,omitempty"`
	RefundAmount   *int64      `db:"refund_amount" json:"refund_amount,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`

	Items    []OrderItem     `db:"-" json:"items,omitempty"`
	Timeline []TimelineEntry `db:"-" json:"timeline,omitempty"`
}

// ShippingInfo is the shipping sub-record exposed on tracking reads.
type ShippingInfo struct {
	TrackingNumber *string    `json:"tracking_number,omitempty"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

func (o *Order) Shipping() ShippingInfo {
	return ShippingInfo{
		TrackingNumber: o.TrackingNumber,
		ShippedAt:      o.ShippedAt,
		DeliveredAt:    o.DeliveredAt,
	}
}

// Cancellation is present only once the order reached cancelled.
// Cancellation is auto-approved, so requested and approved timestamps match.
type Cancellation struct {
	Reason       string     `json:"reason"`
	RequestedAt  *time.Time `json:"requested_at,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	RefundAmount *int64     `json:"refund_amount,omitempty"`
}

func (o *Order) Cancellation() *Cancellation {
	if o.CancelReason == nil {
		return nil
	}
	return &Cancellation{
		Reason:       *o.CancelReason,
		RequestedAt:  o.CancelledAt,
		ApprovedAt:   o.CancelledAt,
		RefundAmount: o.RefundAmount,
	}
}

// OrderItem is a line snapshot taken from the product at placement time.
// Later price changes on the product never touch it.
type OrderItem struct {
	ID                int64  `db:"id" json:"id"`
	OrderID           int64  `db:"order_id" json:"order_id"`
	ProductID         int64  `db:"product_id" json:"product_id"`
	SellerID          int64  `db:"seller_id" json:"seller_id"`
	Name              string `db:"name" json:"name"`
	Image             string `db:"image" json:"image,omitempty"`
	Quantity          int    `db:"quantity" json:"quantity"`
	UnitPrice         int64  `db:"unit_price" json:"unit_price"`
	OriginalUnitPrice int64  `db:"original_unit_price" json:"original_unit_price"`
	LineDiscount      int64  `db:"line_discount" json:"line_discount"`
	LineTotal         int64  `db:"line_total" json:"line_total"`
}

// TimelineEntry is one row of an order's append-only status audit log.
type TimelineEntry struct {
	ID        int64       `db:"id" json:"-"`
	OrderID   int64       `db:"order_id" json:"-"`
	Status    OrderStatus `db:"status" json:"status"`
	Message   string      `db:"message" json:"message"`
	ActorRole Role        `db:"actor_role" json:"actor_role"`
	ActorID   int64       `db:"actor_id" json:"actor_id"`
	CreatedAt time.Time   `db:"created_at" json:"timestamp"`
}

// CartEntry is what the ledger actually stores per product.
type CartEntry struct {
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// CartLine is a cart entry joined with live product data.
type CartLine struct {
	ProductID         int64     `json:"product_id"`
	SellerID          int64     `json:"seller_id"`
	Name              string    `json:"name"`
	Image             string    `json:"image,omitempty"`
	UnitPrice         int64     `json:"unit_price"`
	OriginalUnitPrice int64     `json:"original_unit_price"`
	Quantity          int       `json:"quantity"`
	LineTotal         int64     `json:"line_total"`
	Available         int       `json:"available"`
	AddedAt           time.Time `json:"added_at"`
}

// CartSummary is the priced view of a cart returned to the storefront.
type CartSummary struct {
	Items        []CartLine `json:"items"`
	ItemCount    int        `json:"item_count"`
	Subtotal     int64      `json:"subtotal"`
	ShippingCost int64      `json:"shipping_cost"`
	Tax          int64      `json:"tax"`
	Total        int64      `json:"total"`
}

// CartItemError describes why a cart entry cannot proceed to checkout.
type CartItemError struct {
	ProductID int64  `json:"product_id"`
	Reason    string `json:"reason"`
}

// CartValidation partitions a cart into sellable and broken entries.
type CartValidation struct {
	ValidItems           []CartLine      `json:"valid_items"`
	Errors               []CartItemError `json:"errors"`
	CanProceedToCheckout bool            `json:"can_proceed_to_checkout"`
}

// Role identifies how the caller was authenticated upstream.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

// Actor is the identity attached to every authenticated request.
type Actor struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

func (a Actor) IsAdmin() bool    { return a.Role == RoleAdmin }
func (a Actor) IsSeller() bool   { return a.Role == RoleSeller }
func (a Actor) IsCustomer() bool { return a.Role == RoleCustomer }

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
