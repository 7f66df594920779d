package models

import "errors"

// Domain error taxonomy. Lower layers wrap these with context via
// fmt.Errorf("...: %w", err); the API layer maps them to HTTP once.
var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is not available for purchase")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrLimitExceeded      = errors.New("quantity limit per item exceeded")
	ErrCartItemNotFound   = errors.New("item not found in cart")
	ErrOrderNotFound      = errors.New("order not found")
	ErrForbidden          = errors.New("not allowed to perform this action")
	ErrInvalidState       = errors.New("operation not permitted in the order's current state")
)
