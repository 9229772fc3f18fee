// Package catalog is a product catalog served over HTTP. Every operation
// runs as one railway: decode, validate, persist through the repository
// wrapper, then announce the change on the bus.
package catalog

import (
	"net/http"
	"time"

	"go.railyard.dev/internal/rop"
	"go.railyard.dev/internal/validation"
)

// Entity names products in errors and metrics.
const Entity = "Product"

// Product is a catalog entry. Prices are in cents.
type Product struct {
	ID         string    `json:"id" gorm:"type:uuid;primaryKey" bson:"_id"`
	Name       string    `json:"name" gorm:"size:200;not null" bson:"name"`
	SKU        string    `json:"sku" gorm:"size:64;uniqueIndex;not null" bson:"sku"`
	PriceCents int64     `json:"priceCents" gorm:"not null" bson:"priceCents"`
	Stock      int64     `json:"stock" gorm:"not null" bson:"stock"`
	CreatedAt  time.Time `json:"createdAt" gorm:"not null" bson:"createdAt"`
}

// CreateProduct is the body of a create request.
type CreateProduct struct {
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	PriceCents int64  `json:"priceCents"`
	Stock      int64  `json:"stock"`
}

// UpdatePrice is the body of a price change request.
type UpdatePrice struct {
	PriceCents int64 `json:"priceCents"`
}

const (
	CodePriceUnchanged      = "Price.Unchanged"
	CodePriceChangeTooLarge = "Price.ChangeTooLarge"
)

// MaxPriceChangePercent bounds a single price change relative to the
// current price.
const MaxPriceChangePercent = 50

// MaxPriceCents is the highest price a product may carry.
const MaxPriceCents int64 = 100_000_000_000

var createRules = validation.Rules[CreateProduct]{
	validation.Required("Name", func(c CreateProduct) string { return c.Name }),
	validation.MaxLength("Name", 200, func(c CreateProduct) string { return c.Name }),
	validation.Required("SKU", func(c CreateProduct) string { return c.SKU }),
	validation.MaxLength("SKU", 64, func(c CreateProduct) string { return c.SKU }),
	validation.Positive("PriceCents", func(c CreateProduct) int64 { return c.PriceCents }),
	validation.AtMost("PriceCents", MaxPriceCents, func(c CreateProduct) int64 { return c.PriceCents }),
	validation.NotNegative("Stock", func(c CreateProduct) int64 { return c.Stock }),
}

var priceRules = validation.Rules[UpdatePrice]{
	validation.Positive("PriceCents", func(u UpdatePrice) int64 { return u.PriceCents }),
	validation.AtMost("PriceCents", MaxPriceCents, func(u UpdatePrice) int64 { return u.PriceCents }),
}

func priceUnchanged() rop.HTTPError {
	return rop.NewError(CodePriceUnchanged, "The new price equals the current price.").
		WithStatus(http.StatusUnprocessableEntity)
}

func priceChangeTooLarge() rop.HTTPError {
	return rop.NewError(CodePriceChangeTooLarge, "A price may change by at most 50% at a time.").
		WithStatus(http.StatusUnprocessableEntity)
}

// withinBand reports whether next differs from current by at most
// MaxPriceChangePercent. Both prices are positive; the allowed change is
// computed by division so it cannot overflow for any int64 price.
func withinBand(current, next int64) bool {
	diff := next - current
	if diff < 0 {
		diff = -diff
	}
	allowed := current/100*MaxPriceChangePercent + current%100*MaxPriceChangePercent/100
	return diff <= allowed
}
