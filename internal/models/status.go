package models

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusReturned       OrderStatus = "returned"
	OrderStatusRefunded       OrderStatus = "refunded"
)

// statusRank orders the forward chain. Transitions may skip ranks but
// never move backward; cancelled sits outside the chain.
var statusRank = map[OrderStatus]int{
	OrderStatusPending:        0,
	OrderStatusConfirmed:      1,
	OrderStatusProcessing:     2,
	OrderStatusShipped:        3,
	OrderStatusOutForDelivery: 4,
	OrderStatusDelivered:      5,
	OrderStatusReturned:       6,
	OrderStatusRefunded:       7,
}

var terminalStatuses = map[OrderStatus]bool{
	OrderStatusDelivered: true,
	OrderStatusCancelled: true,
	OrderStatusReturned:  true,
	OrderStatusRefunded:  true,
}

// IsValid reports whether s is a known order status.
func (s OrderStatus) IsValid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// IsTerminal reports whether the status admits no further transition.
func (s OrderStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// Cancellable reports whether an order in this status may still be
// cancelled by its customer.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// CanTransition reports whether an order may move from one status to
// another. Terminal states are final, cancellation is only reachable
// from pending/confirmed, and everything else must move forward along
// the chain (skipping intermediate stops is allowed).
func CanTransition(from, to OrderStatus) bool {
	if !from.IsValid() || !to.IsValid() || from == to {
		return false
	}
	if from.IsTerminal() {
		return false
	}
	if to == OrderStatusCancelled {
		return from.Cancellable()
	}
	return statusRank[to] > statusRank[from]
}

// DefaultStatusMessage is used when a transition carries no message.
func DefaultStatusMessage(s OrderStatus) string {
	switch s {
	case OrderStatusPending:
		return "Order placed successfully"
	case OrderStatusConfirmed:
		return "Order confirmed"
	case OrderStatusProcessing:
		return "Order is being processed"
	case OrderStatusShipped:
		return "Order shipped"
	case OrderStatusOutForDelivery:
		return "Order is out for delivery"
	case OrderStatusDelivered:
		return "Order delivered"
	case OrderStatusCancelled:
		return "Order cancelled"
	case OrderStatusReturned:
		return "Order returned"
	case OrderStatusRefunded:
		return "Order refunded"
	default:
		return "Order status updated"
	}
}
