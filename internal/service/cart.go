package service

import (
	"context"
	"fmt"
	"time"

	"clearance-connect/config"
	"clearance-connect/internal/cartstore"
	"clearance-connect/internal/models"
	"clearance-connect/internal/util"

	"go.uber.org/zap"
)

// CartStore is the per-customer ledger capability the cart service
// depends on. The production implementation is Redis; tests swap in an
// in-memory one.
type CartStore interface {
	AddQuantity(ctx context.Context, customerID, productID int64, quantity, limit int) (cartstore.AddResult, error)
	GetEntry(ctx context.Context, customerID, productID int64) (*models.CartEntry, error)
	SetEntry(ctx context.Context, customerID int64, entry models.CartEntry) error
	RemoveEntry(ctx context.Context, customerID, productID int64) (bool, error)
	Clear(ctx context.Context, customerID int64) error
	Entries(ctx context.Context, customerID int64) ([]models.CartEntry, error)
}

// Catalog is the product-read surface the cart service needs.
type Catalog interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	IncrementCartAdds(ctx context.Context, productID int64) error
}

// CartService maintains the customer's pending selection and guards it
// against stock and per-line limits before it may become an order.
type CartService struct {
	carts    CartStore
	catalog  Catalog
	business config.BusinessConfig
	logger   *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(carts CartStore, catalog Catalog, business config.BusinessConfig) *CartService {
	return &CartService{
		carts:    carts,
		catalog:  catalog,
		business: business,
		logger:   util.GetLogger(),
	}
}

// CartCounts summarizes a cart after a mutation.
type CartCounts struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	ItemCount int   `json:"item_count"`
}

// Add puts quantity units of a product into the customer's cart. The
// resulting line quantity may not exceed the per-line cap nor the
// product's available stock at the time of the call.
func (s *CartService) Add(ctx context.Context, customerID, productID int64, quantity int) (*CartCounts, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Add")
	defer span.End()

	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", models.ErrLimitExceeded)
	}

	product, err := s.catalog.GetProductByID(ctx, productID)
	if err != nil {
		util.CartRejectionsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}
	if !product.Purchasable() {
		util.CartRejectionsTotal.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("product %d: %w", productID, models.ErrProductUnavailable)
	}

	available := product.Available()
	limit := s.business.MaxQuantityPerLine
	if available < limit {
		limit = available
	}

	result, err := s.carts.AddQuantity(ctx, customerID, productID, quantity, limit)
	if err != nil {
		return nil, fmt.Errorf("cart store add failed: %w", err)
	}
	if result.CapExceeded {
		// Stock is checked before the per-line cap when both are broken.
		if result.PrevQuantity+quantity > available {
			util.CartRejectionsTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, fmt.Errorf("product %d: only %d available: %w",
				productID, available, models.ErrInsufficientStock)
		}
		util.CartRejectionsTotal.WithLabelValues("limit_exceeded").Inc()
		return nil, fmt.Errorf("product %d: cart line capped at %d: %w",
			productID, s.business.MaxQuantityPerLine, models.ErrLimitExceeded)
	}

	util.CartAddsTotal.Inc()

	// Analytics counter is best-effort: a failure here never fails the add.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.catalog.IncrementCartAdds(ctx, productID); err != nil {
			s.logger.Warn("Failed to bump cart-adds counter",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}()

	entries, err := s.carts.Entries(ctx, customerID)
	if err != nil {
		return nil, err
	}

	return &CartCounts{
		ProductID: productID,
		Quantity:  result.NewQuantity,
		ItemCount: len(entries),
	}, nil
}

// UpdateQuantity sets a cart line to an absolute quantity. Zero
// removes the line. The new quantity is validated against the
// product's current availability, not the stock seen at add time.
func (s *CartService) UpdateQuantity(ctx context.Context, customerID, productID int64, quantity int) (*CartCounts, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity")
	defer span.End()

	entry, err := s.carts.GetEntry(ctx, customerID, productID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("product %d: %w", productID, models.ErrCartItemNotFound)
	}

	if quantity == 0 {
		if _, err := s.carts.RemoveEntry(ctx, customerID, productID); err != nil {
			return nil, err
		}
		entries, err := s.carts.Entries(ctx, customerID)
		if err != nil {
			return nil, err
		}
		return &CartCounts{ProductID: productID, Quantity: 0, ItemCount: len(entries)}, nil
	}

	if quantity < 0 || quantity > s.business.MaxQuantityPerLine {
		util.CartRejectionsTotal.WithLabelValues("limit_exceeded").Inc()
		return nil, fmt.Errorf("product %d: cart line capped at %d: %w",
			productID, s.business.MaxQuantityPerLine, models.ErrLimitExceeded)
	}

	product, err := s.catalog.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > product.Available() {
		util.CartRejectionsTotal.WithLabelValues("insufficient_stock").Inc()
		return nil, fmt.Errorf("product %d: only %d available: %w",
			productID, product.Available(), models.ErrInsufficientStock)
	}

	entry.Quantity = quantity
	if err := s.carts.SetEntry(ctx, customerID, *entry); err != nil {
		return nil, err
	}

	entries, err := s.carts.Entries(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &CartCounts{ProductID: productID, Quantity: quantity, ItemCount: len(entries)}, nil
}

// Remove deletes a cart line. Removing an absent line is an error, not
// a silent no-op.
func (s *CartService) Remove(ctx context.Context, customerID, productID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.Remove")
	defer span.End()

	removed, err := s.carts.RemoveEntry(ctx, customerID, productID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("product %d: %w", productID, models.ErrCartItemNotFound)
	}
	return nil
}

// Clear unconditionally empties the cart.
func (s *CartService) Clear(ctx context.Context, customerID int64) error {
	ctx, span := util.StartSpan(ctx, "CartService.Clear")
	defer span.End()

	return s.carts.Clear(ctx, customerID)
}

// Read joins the ledger with live product data and prices the cart.
// Lines whose product has vanished or gone inactive are silently
// excluded from the view (they stay in the ledger; Validate is the
// operation that names them).
func (s *CartService) Read(ctx context.Context, customerID int64) (*models.CartSummary, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Read")
	defer span.End()

	lines, _, err := s.joinLiveProducts(ctx, customerID)
	if err != nil {
		return nil, err
	}

	summary := &models.CartSummary{Items: lines, ItemCount: len(lines)}
	for _, line := range lines {
		summary.Subtotal += line.LineTotal
	}
	summary.ShippingCost = ShippingCost(summary.Subtotal, s.business)
	summary.Tax = Tax(summary.Subtotal, s.business)
	summary.Total = summary.Subtotal + summary.ShippingCost + summary.Tax

	return summary, nil
}

// Validate re-checks every ledger entry against the live catalog and
// partitions the cart into sellable lines and named errors. Checkout
// may proceed only when the error list is empty.
func (s *CartService) Validate(ctx context.Context, customerID int64) (*models.CartValidation, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Validate")
	defer span.End()

	entries, err := s.carts.Entries(ctx, customerID)
	if err != nil {
		return nil, err
	}

	validation := &models.CartValidation{
		ValidItems: []models.CartLine{},
		Errors:     []models.CartItemError{},
	}
	if len(entries) == 0 {
		validation.CanProceedToCheckout = false
		return validation, nil
	}

	products, err := s.productsFor(ctx, entries)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		product, ok := products[entry.ProductID]
		switch {
		case !ok:
			validation.Errors = append(validation.Errors, models.CartItemError{
				ProductID: entry.ProductID,
				Reason:    "product no longer exists",
			})
		case !product.Purchasable():
			validation.Errors = append(validation.Errors, models.CartItemError{
				ProductID: entry.ProductID,
				Reason:    "product is no longer available",
			})
		case entry.Quantity > product.Available():
			validation.Errors = append(validation.Errors, models.CartItemError{
				ProductID: entry.ProductID,
				Reason:    fmt.Sprintf("only %d left in stock", product.Available()),
			})
		default:
			validation.ValidItems = append(validation.ValidItems, cartLine(entry, product))
		}
	}

	validation.CanProceedToCheckout = len(validation.Errors) == 0
	return validation, nil
}

func (s *CartService) joinLiveProducts(ctx context.Context, customerID int64) ([]models.CartLine, []models.CartEntry, error) {
	entries, err := s.carts.Entries(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}
	if len(entries) == 0 {
		return []models.CartLine{}, entries, nil
	}

	products, err := s.productsFor(ctx, entries)
	if err != nil {
		return nil, nil, err
	}

	lines := make([]models.CartLine, 0, len(entries))
	for _, entry := range entries {
		product, ok := products[entry.ProductID]
		if !ok || !product.Purchasable() {
			continue
		}
		lines = append(lines, cartLine(entry, product))
	}
	return lines, entries, nil
}

func (s *CartService) productsFor(ctx context.Context, entries []models.CartEntry) (map[int64]*models.Product, error) {
	ids := make([]int64, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ProductID
	}

	products, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return byID, nil
}

func cartLine(entry models.CartEntry, product *models.Product) models.CartLine {
	return models.CartLine{
		ProductID:         product.ID,
		SellerID:          product.SellerID,
		Name:              product.Name,
		Image:             product.Image,
		UnitPrice:         product.SalePrice,
		OriginalUnitPrice: product.OriginalPrice,
		Quantity:          entry.Quantity,
		LineTotal:         product.SalePrice * int64(entry.Quantity),
		Available:         product.Available(),
		AddedAt:           entry.AddedAt,
	}
}
