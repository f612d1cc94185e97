package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/construmax/storefront-backend/internal/order"
)

const (
	OrderCreatedQueue   = "order.created"
	OrderReconcileQueue = "order.reconcile"
)

type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type OrderCreated struct {
	EventType string      `json:"eventType"`
	OrderID   string      `json:"orderId"`
	Total     float64     `json:"total"`
	Items     []OrderItem `json:"items"`
	Timestamp time.Time   `json:"timestamp"`
}

// OrderReconcile carries a charged-but-unrecorded order. Consumers retry
// persistence and must dedupe on PaymentRef so a charge is never recorded
// twice.
type OrderReconcile struct {
	EventType  string      `json:"eventType"`
	OrderID    string      `json:"orderId"`
	PaymentRef string      `json:"paymentRef"`
	Order      order.Order `json:"order"`
	Timestamp  time.Time   `json:"timestamp"`
}

type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// Declare queues so publish never fails due to missing infra
	for _, q := range []string{OrderCreatedQueue, OrderReconcileQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare %s: %w", q, err)
		}
	}

	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) PublishOrderCreated(ctx context.Context, o *order.Order) error {
	ev := OrderCreated{
		EventType: "OrderCreated",
		OrderID:   o.ID,
		Total:     o.Total,
		Timestamp: time.Now().UTC(),
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal OrderCreated: %w", err)
	}

	return p.publishJSON(ctx, OrderCreatedQueue, body)
}

// OrderReconcile enqueues a charged order whose persistence failed, keyed on
// the gateway payment reference. Implements checkout.ReconcileSink.
func (p *Publisher) OrderReconcile(ctx context.Context, o *order.Order) error {
	ev := OrderReconcile{
		EventType:  "OrderReconcile",
		OrderID:    o.ID,
		PaymentRef: o.PaymentRef,
		Order:      *o,
		Timestamp:  time.Now().UTC(),
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal OrderReconcile: %w", err)
	}

	return p.publishJSON(ctx, OrderReconcileQueue, body)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		"",         // default exchange
		routingKey, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
