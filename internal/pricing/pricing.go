// Package pricing computes checkout totals. It is pure: no I/O, no
// clock reads, all inputs passed in by the caller so sale windows are
// evaluated at the moment of pricing and never cached.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"autoparts-service/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Line is one (unit price, quantity) pairing to be priced.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Settings are the pricing inputs read from the settings store.
type Settings struct {
	TaxRate               decimal.Decimal
	ShippingCost          decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

// Quote is the computed money breakdown of a checkout. Each component
// is rounded to 2 places and TotalAmount is the sum of the rounded
// components, so the totals invariant holds exactly on persisted rows.
type Quote struct {
	Subtotal     decimal.Decimal
	TaxAmount    decimal.Decimal
	ShippingCost decimal.Decimal
	TotalAmount  decimal.Decimal
}

// SaleActive reports whether a part's sale window covers now. A part
// flagged on sale with no window is always active; an expired window
// leaves is_on_sale set but the sale must not be honored.
func SaleActive(p *models.SparePart, now time.Time) bool {
	if !p.IsOnSale {
		return false
	}
	if p.SaleStartDate != nil && now.Before(*p.SaleStartDate) {
		return false
	}
	if p.SaleEndDate != nil && now.After(*p.SaleEndDate) {
		return false
	}
	return true
}

// EffectiveUnitPrice resolves the price a part sells at right now.
// During an active sale the discount is applied to the original price,
// with the percentage clamped to [0, 100]. Outside the window an
// on-sale part sells at its original price.
func EffectiveUnitPrice(p *models.SparePart, now time.Time) decimal.Decimal {
	base := p.Price
	if p.OriginalPrice != nil && !p.OriginalPrice.IsZero() {
		base = *p.OriginalPrice
	}

	if !p.IsOnSale {
		return p.Price
	}
	if !SaleActive(p, now) {
		return base
	}
	if p.DiscountPercentage == nil {
		return base
	}

	discount := *p.DiscountPercentage
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(hundred) {
		discount = hundred
	}
	return base.Mul(decimal.NewFromInt(1).Sub(discount.Div(hundred)))
}

// LineFromPart builds a priced line for a cart quantity against a part.
func LineFromPart(p *models.SparePart, quantity int, now time.Time) Line {
	return Line{UnitPrice: EffectiveUnitPrice(p, now), Quantity: quantity}
}

// Compute prices a set of lines against settings. Intermediate
// arithmetic keeps full precision; rounding happens once per component.
func Compute(lines []Line, s Settings) Quote {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	roundedSubtotal := subtotal.Round(2)
	taxAmount := roundedSubtotal.Mul(s.TaxRate).Round(2)

	shipping := s.ShippingCost.Round(2)
	if roundedSubtotal.GreaterThanOrEqual(s.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Quote{
		Subtotal:     roundedSubtotal,
		TaxAmount:    taxAmount,
		ShippingCost: shipping,
		TotalAmount:  roundedSubtotal.Add(taxAmount).Add(shipping),
	}
}
