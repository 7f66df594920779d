package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"clearance-connect/internal/cartstore"
	"clearance-connect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCartStore mirrors the Redis ledger semantics in memory,
// including the capped atomic increment.
type fakeCartStore struct {
	mu    sync.Mutex
	carts map[int64]map[int64]models.CartEntry
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{carts: make(map[int64]map[int64]models.CartEntry)}
}

func (f *fakeCartStore) AddQuantity(_ context.Context, customerID, productID int64, quantity, limit int) (cartstore.AddResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cart := f.carts[customerID]
	if cart == nil {
		cart = make(map[int64]models.CartEntry)
		f.carts[customerID] = cart
	}

	entry, ok := cart[productID]
	prev := 0
	if ok {
		prev = entry.Quantity
	}

	if prev+quantity > limit {
		return cartstore.AddResult{NewQuantity: -1, PrevQuantity: prev, CapExceeded: true}, nil
	}

	if !ok {
		entry = models.CartEntry{ProductID: productID, AddedAt: time.Now()}
	}
	entry.Quantity = prev + quantity
	cart[productID] = entry

	return cartstore.AddResult{NewQuantity: entry.Quantity, PrevQuantity: prev}, nil
}

func (f *fakeCartStore) GetEntry(_ context.Context, customerID, productID int64) (*models.CartEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.carts[customerID][productID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (f *fakeCartStore) SetEntry(_ context.Context, customerID int64, entry models.CartEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.carts[customerID] == nil {
		f.carts[customerID] = make(map[int64]models.CartEntry)
	}
	f.carts[customerID][entry.ProductID] = entry
	return nil
}

func (f *fakeCartStore) RemoveEntry(_ context.Context, customerID, productID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.carts[customerID][productID]; !ok {
		return false, nil
	}
	delete(f.carts[customerID], productID)
	return true, nil
}

func (f *fakeCartStore) Clear(_ context.Context, customerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.carts, customerID)
	return nil
}

func (f *fakeCartStore) Entries(_ context.Context, customerID int64) ([]models.CartEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := make([]models.CartEntry, 0, len(f.carts[customerID]))
	for _, entry := range f.carts[customerID] {
		entries = append(entries, entry)
	}
	return entries, nil
}

type fakeCatalog struct {
	mu       sync.Mutex
	products map[int64]*models.Product
	cartAdds map[int64]int
}

func newFakeCatalog(products ...*models.Product) *fakeCatalog {
	byID := make(map[int64]*models.Product)
	for _, p := range products {
		byID[p.ID] = p
	}
	return &fakeCatalog{products: byID, cartAdds: make(map[int64]int)}
}

func (f *fakeCatalog) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrProductNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) IncrementCartAdds(_ context.Context, productID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cartAdds[productID]++
	return nil
}

func activeProduct(id int64, price int64, quantity, reserved int) *models.Product {
	return &models.Product{
		ID:            id,
		SellerID:      100 + id,
		Name:          fmt.Sprintf("Clearance Item %d", id),
		OriginalPrice: price * 2,
		SalePrice:     price,
		Quantity:      quantity,
		Reserved:      reserved,
		Status:        models.ProductStatusActive,
	}
}

func newTestCartService(catalog *fakeCatalog) (*CartService, *fakeCartStore) {
	carts := newFakeCartStore()
	return NewCartService(carts, catalog, testBusiness), carts
}

func TestCartAdd(t *testing.T) {
	svc, _ := newTestCartService(newFakeCatalog(activeProduct(1, 1000, 5, 0)))
	ctx := context.Background()

	counts, err := svc.Add(ctx, 42, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Quantity)
	assert.Equal(t, 1, counts.ItemCount)

	// Second add accumulates.
	counts, err = svc.Add(ctx, 42, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Quantity)
}

func TestCartAddStockBoundary(t *testing.T) {
	svc, _ := newTestCartService(newFakeCatalog(activeProduct(1, 1000, 5, 2)))
	ctx := context.Background()

	// Exactly the available stock (5 - 2 = 3) fits.
	counts, err := svc.Add(ctx, 42, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Quantity)

	// One more does not.
	_, err = svc.Add(ctx, 42, 1, 1)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)
}

func TestCartAddLineCap(t *testing.T) {
	// Plenty of stock, so only the per-line cap can reject.
	svc, _ := newTestCartService(newFakeCatalog(activeProduct(1, 1000, 100, 0)))
	ctx := context.Background()

	_, err := svc.Add(ctx, 42, 1, 10)
	require.NoError(t, err)

	_, err = svc.Add(ctx, 42, 1, 1)
	assert.ErrorIs(t, err, models.ErrLimitExceeded)
}

func TestCartAddStockCheckedBeforeLineCap(t *testing.T) {
	// Adding 8 to a line of 4 breaks both the stock limit (5 available)
	// and the per-line cap; the stock error wins.
	svc, _ := newTestCartService(newFakeCatalog(activeProduct(1, 1000, 5, 0)))
	ctx := context.Background()

	_, err := svc.Add(ctx, 42, 1, 4)
	require.NoError(t, err)

	_, err = svc.Add(ctx, 42, 1, 8)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)
}

func TestCartAddRejectsDeadProducts(t *testing.T) {
	inactive := activeProduct(2, 1000, 5, 0)
	inactive.Status = models.ProductStatusInactive
	svc, _ := newTestCartService(newFakeCatalog(inactive))
	ctx := context.Background()

	_, err := svc.Add(ctx, 42, 2, 1)
	assert.ErrorIs(t, err, models.ErrProductUnavailable)

	_, err = svc.Add(ctx, 42, 99, 1)
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestCartUpdateQuantity(t *testing.T) {
	catalog := newFakeCatalog(activeProduct(1, 1000, 5, 0))
	svc, _ := newTestCartService(catalog)
	ctx := context.Background()

	_, err := svc.Add(ctx, 42, 1, 2)
	require.NoError(t, err)

	counts, err := svc.UpdateQuantity(ctx, 42, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, counts.Quantity)

	// Re-validated against current stock, not add-time stock.
	catalog.mu.Lock()
	catalog.products[1].Reserved = 3
	catalog.mu.Unlock()

	_, err = svc.UpdateQuantity(ctx, 42, 1, 4)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	// Zero removes the line.
	counts, err = svc.UpdateQuantity(ctx, 42, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Quantity)
	assert.Equal(t, 0, counts.ItemCount)

	// The line is gone now.
	_, err = svc.UpdateQuantity(ctx, 42, 1, 1)
	assert.ErrorIs(t, err, models.ErrCartItemNotFound)
}

func TestCartRemove(t *testing.T) {
	svc, _ := newTestCartService(newFakeCatalog(activeProduct(1, 1000, 5, 0)))
	ctx := context.Background()

	_, err := svc.Add(ctx, 42, 1, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, 42, 1))

	// Removing an absent line is an explicit error, not a no-op.
	err = svc.Remove(ctx, 42, 1)
	assert.ErrorIs(t, err, models.ErrCartItemNotFound)
}

func TestCartClear(t *testing.T) {
	svc, _ := newTestCartService(newFakeCatalog(activeProduct(1, 1000, 5, 0)))
	ctx := context.Background()

	_, err := svc.Add(ctx, 42, 1, 2)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, 42))
	// Clearing an already empty cart also succeeds.
	require.NoError(t, svc.Clear(ctx, 42))

	summary, err := svc.Read(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, summary.Items)
}

func TestCartRead(t *testing.T) {
	gone := activeProduct(2, 500, 5, 0)
	catalog := newFakeCatalog(activeProduct(1, 20000, 10, 0), gone)
	svc, _ := newTestCartService(catalog)
	ctx := context.Background()

	_, err := svc.Add(ctx, 42, 1, 2)
	require.NoError(t, err)
	_, err = svc.Add(ctx, 42, 2, 1)
	require.NoError(t, err)

	// Product 2 goes inactive after it was added.
	catalog.mu.Lock()
	catalog.products[2].Status = models.ProductStatusInactive
	catalog.mu.Unlock()

	summary, err := svc.Read(ctx, 42)
	require.NoError(t, err)

	// The dead line is silently excluded from the view.
	require.Len(t, summary.Items, 1)
	assert.Equal(t, int64(1), summary.Items[0].ProductID)
	assert.Equal(t, int64(40000), summary.Subtotal)
	assert.Equal(t, testBusiness.ShippingFlatFee, summary.ShippingCost)
	assert.Equal(t, Tax(40000, testBusiness), summary.Tax)
	assert.Equal(t, summary.Subtotal+summary.ShippingCost+summary.Tax, summary.Total)
}

func TestCartReadFreeShipping(t *testing.T) {
	svc, _ := newTestCartService(newFakeCatalog(activeProduct(1, 30000, 10, 0)))
	ctx := context.Background()

	_, err := svc.Add(ctx, 42, 1, 2)
	require.NoError(t, err)

	summary, err := svc.Read(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), summary.Subtotal)
	assert.Equal(t, int64(0), summary.ShippingCost)
}

func TestCartValidatePartitions(t *testing.T) {
	short := activeProduct(2, 1000, 2, 0)
	catalog := newFakeCatalog(activeProduct(1, 1000, 5, 0), short)
	svc, carts := newTestCartService(catalog)
	ctx := context.Background()

	_, err := svc.Add(ctx, 42, 1, 2)
	require.NoError(t, err)
	_, err = svc.Add(ctx, 42, 2, 2)
	require.NoError(t, err)

	// Stock for product 2 drains after the add.
	catalog.mu.Lock()
	catalog.products[2].Reserved = 2
	catalog.mu.Unlock()

	// And a third product vanishes from the catalog entirely.
	require.NoError(t, carts.SetEntry(ctx, 42, models.CartEntry{ProductID: 3, Quantity: 1, AddedAt: time.Now()}))

	validation, err := svc.Validate(ctx, 42)
	require.NoError(t, err)

	assert.Len(t, validation.ValidItems, 1)
	assert.Len(t, validation.Errors, 2)
	assert.False(t, validation.CanProceedToCheckout)
}

func TestCartValidateIdempotent(t *testing.T) {
	svc, _ := newTestCartService(newFakeCatalog(activeProduct(1, 1000, 5, 0)))
	ctx := context.Background()

	_, err := svc.Add(ctx, 42, 1, 2)
	require.NoError(t, err)

	first, err := svc.Validate(ctx, 42)
	require.NoError(t, err)
	second, err := svc.Validate(ctx, 42)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCartValidateEmptyCart(t *testing.T) {
	svc, _ := newTestCartService(newFakeCatalog())
	ctx := context.Background()

	validation, err := svc.Validate(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, validation.ValidItems)
	assert.Empty(t, validation.Errors)
	assert.False(t, validation.CanProceedToCheckout)
}
