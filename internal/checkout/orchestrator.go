package checkout

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/construmax/storefront-backend/internal/cart"
	"github.com/construmax/storefront-backend/internal/order"
	"github.com/construmax/storefront-backend/internal/pricing"
)

// State of one checkout attempt.
type State int

const (
	StateEditing State = iota
	StateAwaitingPaymentIntent
	StateReadyToPay
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateAwaitingPaymentIntent:
		return "awaiting_payment_intent"
	case StateReadyToPay:
		return "ready_to_pay"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureKind distinguishes the failure classes of a checkout attempt. The
// charged-but-unrecorded class is the serious one: payment succeeded but the
// order could not be saved, and the charge must not be resubmitted.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureDeclined
	FailureGateway
	FailureUnrecordedCharge
)

// Intent is the opaque payment handle issued by the gateway, usable exactly
// once to confirm payment.
type Intent struct {
	ID string `json:"id"`
}

// Confirmation is the gateway's answer to a confirm call.
type Confirmation struct {
	PaymentRef string `json:"paymentRef"`
}

// DeclinedError signals a gateway decline as opposed to a transport failure.
type DeclinedError struct {
	Reason string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Reason)
}

// Gateway is the external card processor.
type Gateway interface {
	CreateIntent(ctx context.Context, lines []cart.Line, customer order.Customer) (Intent, error)
	Confirm(ctx context.Context, intent Intent) (Confirmation, error)
}

// OrderStore persists orders; idempotency by order id is assumed.
type OrderStore interface {
	Create(ctx context.Context, o *order.Order) error
}

// ReconcileSink receives orders that were charged but could not be persisted.
// Implementations must be idempotent on the payment reference.
type ReconcileSink interface {
	OrderReconcile(ctx context.Context, o *order.Order) error
}

// Orchestrator drives one checkout attempt through
// Editing -> AwaitingPaymentIntent -> ReadyToPay -> Submitting -> Succeeded | Failed.
//
// The cart is cleared only after the order is durably recorded. On any
// failure the cart keeps its lines so the user can resubmit.
type Orchestrator struct {
	cart      *cart.Engine
	gateway   Gateway
	orders    OrderStore
	reconcile ReconcileSink
	logger    *log.Logger

	mu      sync.Mutex
	state   State
	form    Form
	reasons []string
	// intentSeq supersedes in-flight handle requests: a response whose
	// sequence is no longer current is discarded, last write wins.
	intentSeq uint64
	intent    *Intent
	failure   FailureKind
	lastErr   string
	result    *order.Order
}

func NewOrchestrator(c *cart.Engine, gw Gateway, orders OrderStore, reconcile ReconcileSink, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		cart:      c,
		gateway:   gw,
		orders:    orders,
		reconcile: reconcile,
		logger:    logger,
		state:     StateEditing,
	}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Failure() FailureKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failure
}

// Reasons returns the validation reasons keeping the attempt in Editing.
func (o *Orchestrator) Reasons() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.reasons...)
}

func (o *Orchestrator) Err() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Order returns the persisted order after StateSucceeded, nil otherwise.
func (o *Orchestrator) Order() *order.Order {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// UpdateForm records the shipping fields and, when the form is valid and the
// cart non-empty, requests a fresh payment handle. Calling it again while a
// request is in flight supersedes that request.
func (o *Orchestrator) UpdateForm(ctx context.Context, f Form) {
	o.mu.Lock()
	o.form = f
	o.mu.Unlock()

	o.refreshIntent(ctx)
}

// CartChanged re-keys the payment handle to the current cart contents. Called
// after any cart mutation while a checkout attempt is open.
func (o *Orchestrator) CartChanged(ctx context.Context) {
	o.refreshIntent(ctx)
}

func (o *Orchestrator) refreshIntent(ctx context.Context) {
	o.mu.Lock()
	if o.state == StateSubmitting || o.state == StateSucceeded {
		o.mu.Unlock()
		return
	}

	reasons := o.form.Validate()
	if len(reasons) > 0 || o.cart.TotalItems() == 0 {
		if o.cart.TotalItems() == 0 {
			reasons = append(reasons, "cart is empty")
		}
		o.state = StateEditing
		o.reasons = reasons
		o.intent = nil
		o.intentSeq++ // invalidate any in-flight request
		o.mu.Unlock()
		return
	}

	o.state = StateAwaitingPaymentIntent
	o.reasons = nil
	o.lastErr = ""
	o.intentSeq++
	seq := o.intentSeq
	form := o.form
	o.mu.Unlock()

	// Gateway call runs unlocked so a newer UpdateForm can supersede it.
	intent, err := o.gateway.CreateIntent(ctx, o.cart.Lines(), form.customer())

	o.mu.Lock()
	defer o.mu.Unlock()
	if seq != o.intentSeq {
		// superseded by a newer request; discard this response
		return
	}
	if err != nil {
		// retryable: stays awaiting, the user triggers another attempt
		o.lastErr = err.Error()
		return
	}
	o.intent = &intent
	o.state = StateReadyToPay
}

// Submit confirms the payment and, on success, persists the order and clears
// the cart. The cart is never cleared before the order is durably recorded.
func (o *Orchestrator) Submit(ctx context.Context) {
	o.mu.Lock()
	if o.state != StateReadyToPay || o.intent == nil {
		o.lastErr = "not ready to pay"
		o.mu.Unlock()
		return
	}
	o.state = StateSubmitting
	intent := *o.intent
	form := o.form
	o.mu.Unlock()

	conf, err := o.gateway.Confirm(ctx, intent)
	if err != nil {
		kind := FailureGateway
		if _, ok := err.(*DeclinedError); ok {
			kind = FailureDeclined
		}
		o.fail(kind, err.Error())
		return
	}

	ord := o.buildOrder(form, conf.PaymentRef)

	if err := o.orders.Create(ctx, ord); err != nil {
		// Charged but unrecorded: hand the order to the reconciliation
		// sink keyed on the payment reference. Never resubmit the charge.
		if o.reconcile != nil {
			if rerr := o.reconcile.OrderReconcile(ctx, ord); rerr != nil {
				o.logger.Printf("reconcile order %s (payment %s): %v", ord.ID, ord.PaymentRef, rerr)
			}
		}
		o.fail(FailureUnrecordedCharge, fmt.Sprintf("payment succeeded but order could not be saved: %v", err))
		return
	}

	o.cart.Clear()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = StateSucceeded
	o.failure = FailureNone
	o.lastErr = ""
	o.result = ord
}

func (o *Orchestrator) buildOrder(f Form, paymentRef string) *order.Order {
	lines := o.cart.Lines()
	items := make([]order.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, order.Item{
			ProductID:       l.Product.ID,
			Name:            l.Product.Name,
			Price:           l.Product.Price,
			Quantity:        l.Quantity,
			DiscountPercent: l.DiscountPercent,
		})
	}

	summary := pricing.Summarize(o.cart.TotalPrice())

	return &order.Order{
		ID:            uuid.NewString(),
		Customer:      f.customer(),
		Items:         items,
		Total:         summary.Total,
		PaymentMethod: "card",
		PaymentRef:    paymentRef,
		Status:        order.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

func (o *Orchestrator) fail(kind FailureKind, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = StateFailed
	o.failure = kind
	o.lastErr = msg
}
