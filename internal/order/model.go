package order

import "time"

// Item is a frozen copy of a cart line at checkout time.
type Item struct {
	ProductID       string  `json:"productId"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	Quantity        int     `json:"quantity"`
	DiscountPercent float64 `json:"discountPercent,omitempty"`
}

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Email   string `json:"email,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type Order struct {
	ID            string    `json:"orderId"`
	Customer      Customer  `json:"customer"`
	Items         []Item    `json:"items"`
	Total         float64   `json:"total"`
	PaymentMethod string    `json:"paymentMethod"`
	// Gateway-assigned reference for the charge; used as the idempotency
	// key when a charged order has to be reconciled.
	PaymentRef string    `json:"paymentRef,omitempty"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}
