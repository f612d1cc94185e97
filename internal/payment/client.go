// Package payment talks to the external card processor. The processor issues
// an opaque intent usable exactly once to confirm payment; confirmation
// yields a payment reference or a decline reason.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/construmax/storefront-backend/internal/cart"
	"github.com/construmax/storefront-backend/internal/checkout"
	"github.com/construmax/storefront-backend/internal/order"
)

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid payment base url %q: %w", baseURL, err)
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type intentRequest struct {
	Amount   float64      `json:"amount"`
	Currency string       `json:"currency"`
	Customer customerInfo `json:"customer"`
	Items    []intentItem `json:"items"`
}

type customerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type intentItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type intentResponse struct {
	IntentID string `json:"intentId"`
}

type confirmResponse struct {
	Status     string `json:"status"`
	PaymentRef string `json:"paymentRef"`
	Reason     string `json:"reason"`
}

func (c *Client) CreateIntent(ctx context.Context, lines []cart.Line, customer order.Customer) (checkout.Intent, error) {
	req := intentRequest{Currency: "USD", Customer: customerInfo{Name: customer.Name, Email: customer.Email}}
	for _, l := range lines {
		req.Amount += l.Product.Price * float64(l.Quantity)
		req.Items = append(req.Items, intentItem{ProductID: l.Product.ID, Quantity: l.Quantity, Price: l.Product.Price})
	}

	var resp intentResponse
	if err := c.post(ctx, "/api/payments/intents", req, &resp); err != nil {
		return checkout.Intent{}, err
	}
	if resp.IntentID == "" {
		return checkout.Intent{}, fmt.Errorf("gateway returned empty intent id")
	}
	return checkout.Intent{ID: resp.IntentID}, nil
}

func (c *Client) Confirm(ctx context.Context, intent checkout.Intent) (checkout.Confirmation, error) {
	var resp confirmResponse
	path := "/api/payments/intents/" + url.PathEscape(intent.ID) + "/confirm"
	if err := c.post(ctx, path, struct{}{}, &resp); err != nil {
		return checkout.Confirmation{}, err
	}

	switch resp.Status {
	case "succeeded":
		return checkout.Confirmation{PaymentRef: resp.PaymentRef}, nil
	case "declined":
		return checkout.Confirmation{}, &checkout.DeclinedError{Reason: resp.Reason}
	default:
		return checkout.Confirmation{}, fmt.Errorf("gateway returned status %q", resp.Status)
	}
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
