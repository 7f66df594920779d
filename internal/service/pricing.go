package service

import (
	"fmt"
	"time"

	"clearance-connect/config"
	"clearance-connect/internal/models"

	"github.com/google/uuid"
)

// ShippingCost is zero above the free-shipping threshold, otherwise
// the flat fee. An empty cart ships nothing and costs nothing.
func ShippingCost(subtotal int64, b config.BusinessConfig) int64 {
	if subtotal == 0 || subtotal >= b.FreeShippingThreshold {
		return 0
	}
	return b.ShippingFlatFee
}

// Tax applies the GST rate to the subtotal, rounding to the nearest
// paisa.
func Tax(subtotal int64, b config.BusinessConfig) int64 {
	return (subtotal*b.TaxRatePercent + 50) / 100
}

// NewOrderNumber builds a human-readable order number: date plus a
// random hex suffix. Uniqueness is enforced by the database; callers
// retry with a fresh number on collision.
func NewOrderNumber(now time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("CC-%s-%X", now.UTC().Format("20060102"), id[:3])
}

// snapshotLine freezes a product's display and pricing data into an
// order line. Later product mutations never touch the snapshot.
func snapshotLine(product *models.Product, quantity int) models.OrderItem {
	lineTotal := product.SalePrice * int64(quantity)
	return models.OrderItem{
		ProductID:         product.ID,
		SellerID:          product.SellerID,
		Name:              product.Name,
		Image:             product.Image,
		Quantity:          quantity,
		UnitPrice:         product.SalePrice,
		OriginalUnitPrice: product.OriginalPrice,
		LineDiscount:      (product.OriginalPrice - product.SalePrice) * int64(quantity),
		LineTotal:         lineTotal,
	}
}
