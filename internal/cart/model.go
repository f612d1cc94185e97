package cart

import (
	"github.com/shopspring/decimal"

	"github.com/construmax/storefront-backend/internal/catalog"
)

// Line is one product plus its quantity and discount context within a cart.
// Product is a snapshot taken at add time: later catalog price changes do not
// retroactively alter items already in the cart.
type Line struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
	// DiscountPercent is provenance/display metadata only. The discounted
	// unit price is already baked into Product.Price before the line is
	// added; totals never reapply it.
	DiscountPercent float64 `json:"discountPercent,omitempty"`
}

// AddOptions carries the active-offer context at add time.
type AddOptions struct {
	DiscountPercent float64
}

// OfferPrice applies an active offer to a product snapshot: the unit price is
// pre-multiplied by (1 - discount/100) and rounded to cents, the list price is
// kept as OriginalPrice for display. discount outside (0, 100] returns the
// snapshot unchanged.
func OfferPrice(p catalog.Product, discountPercent float64) catalog.Product {
	if discountPercent <= 0 || discountPercent > 100 {
		return p
	}
	factor := decimal.NewFromFloat(1).Sub(decimal.NewFromFloat(discountPercent).Div(decimal.NewFromInt(100)))
	discounted := decimal.NewFromFloat(p.Price).Mul(factor).Round(2)

	p.OriginalPrice = p.Price
	p.Price = discounted.InexactFloat64()
	return p
}
