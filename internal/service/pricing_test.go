package service

import (
	"regexp"
	"testing"
	"time"

	"clearance-connect/config"
	"clearance-connect/internal/models"

	"github.com/stretchr/testify/assert"
)

var testBusiness = config.BusinessConfig{
	FreeShippingThreshold: 50000,
	ShippingFlatFee:       4000,
	TaxRatePercent:        18,
	MaxQuantityPerLine:    10,
}

func TestShippingCost(t *testing.T) {
	// Below the threshold: flat fee.
	assert.Equal(t, int64(4000), ShippingCost(40000, testBusiness))
	// At and above the threshold: free.
	assert.Equal(t, int64(0), ShippingCost(50000, testBusiness))
	assert.Equal(t, int64(0), ShippingCost(60000, testBusiness))
	// Nothing to ship.
	assert.Equal(t, int64(0), ShippingCost(0, testBusiness))
}

func TestTaxRoundsToNearest(t *testing.T) {
	assert.Equal(t, int64(1800), Tax(10000, testBusiness))
	// 18% of 3 paise is 0.54, rounds to 1.
	assert.Equal(t, int64(1), Tax(3, testBusiness))
	// 18% of 2 paise is 0.36, rounds to 0.
	assert.Equal(t, int64(0), Tax(2, testBusiness))
}

func TestNewOrderNumberFormat(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	number := NewOrderNumber(now)

	assert.Regexp(t, regexp.MustCompile(`^CC-20260314-[0-9A-F]{6}$`), number)

	// The random suffix makes consecutive numbers differ.
	assert.NotEqual(t, number, NewOrderNumber(now))
}

func TestSnapshotLine(t *testing.T) {
	product := &models.Product{
		ID:            7,
		SellerID:      3,
		Name:          "Clearance Kettle",
		OriginalPrice: 2000,
		SalePrice:     1500,
	}

	line := snapshotLine(product, 3)

	assert.Equal(t, int64(7), line.ProductID)
	assert.Equal(t, int64(3), line.SellerID)
	assert.Equal(t, int64(1500), line.UnitPrice)
	assert.Equal(t, int64(2000), line.OriginalUnitPrice)
	assert.Equal(t, int64(4500), line.LineTotal)
	assert.Equal(t, int64(1500), line.LineDiscount)
}

func TestOrderTotalsInvariant(t *testing.T) {
	products := []*models.Product{
		{ID: 1, SalePrice: 10000, OriginalPrice: 10000},
		{ID: 2, SalePrice: 15000, OriginalPrice: 20000},
	}

	var subtotal int64
	var items []models.OrderItem
	for _, p := range products {
		line := snapshotLine(p, 2)
		subtotal += line.LineTotal
		items = append(items, line)
	}

	var lineSum int64
	for _, item := range items {
		lineSum += item.LineTotal
	}
	assert.Equal(t, subtotal, lineSum)

	shipping := ShippingCost(subtotal, testBusiness)
	tax := Tax(subtotal, testBusiness)
	total := subtotal + shipping + tax
	assert.Equal(t, int64(50000), subtotal)
	assert.Equal(t, int64(0), shipping)
	assert.Equal(t, int64(9000), tax)
	assert.Equal(t, int64(59000), total)
}
