// Package pricing derives shipping and tax from a cart subtotal using the
// store's fixed business rules. Everything here is a pure function of the
// subtotal.
package pricing

import "github.com/shopspring/decimal"

const (
	// Orders strictly above this subtotal ship free; exactly at the
	// threshold still pays the flat rate.
	FreeShippingThreshold = 500.0
	FlatShipping          = 25.0
	TaxRate               = 0.08
)

type Summary struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Summarize computes the order breakdown for a subtotal. Tax is rounded
// half-up to cents.
func Summarize(subtotal float64) Summary {
	sub := decimal.NewFromFloat(subtotal)

	shipping := decimal.NewFromFloat(FlatShipping)
	if sub.GreaterThan(decimal.NewFromFloat(FreeShippingThreshold)) {
		shipping = decimal.Zero
	}

	tax := sub.Mul(decimal.NewFromFloat(TaxRate)).Round(2)

	return Summary{
		Subtotal: sub.InexactFloat64(),
		Shipping: shipping.InexactFloat64(),
		Tax:      tax.InexactFloat64(),
		Total:    sub.Add(shipping).Add(tax).InexactFloat64(),
	}
}
