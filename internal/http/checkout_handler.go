package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/construmax/storefront-backend/internal/cart"
	"github.com/construmax/storefront-backend/internal/checkout"
	"github.com/construmax/storefront-backend/internal/order"
)

// OrderEventsPublisher emits the post-checkout event once an order row is
// durable. Publish failures never fail the checkout response.
type OrderEventsPublisher interface {
	PublishOrderCreated(ctx context.Context, o *order.Order) error
}

type CheckoutHandler struct {
	carts     cart.Repository
	gateway   checkout.Gateway
	orders    order.Repository
	reconcile checkout.ReconcileSink
	events    OrderEventsPublisher
	logger    *log.Logger
}

func NewCheckoutHandler(carts cart.Repository, gateway checkout.Gateway, orders order.Repository,
	reconcile checkout.ReconcileSink, events OrderEventsPublisher, logger *log.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		carts:     carts,
		gateway:   gateway,
		orders:    orders,
		reconcile: reconcile,
		events:    events,
		logger:    logger,
	}
}

// Checkout runs one full checkout attempt for the session cart: validate the
// shipping form, acquire a payment handle, confirm the charge, persist the
// order, clear the cart.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing sessionId")
		return
	}

	var form checkout.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	lines, err := h.carts.Load(ctx, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return
	}

	mirror := func(lines []cart.Line) {
		if err := h.carts.Save(ctx, sessionID, lines); err != nil {
			h.logger.Printf("mirror cart %s: %v", sessionID, err)
		}
	}
	engine := cart.Restore(lines, mirror)

	orch := checkout.NewOrchestrator(engine, h.gateway, h.orders, h.reconcile, h.logger)
	orch.UpdateForm(ctx, form)

	switch orch.State() {
	case checkout.StateEditing:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "cannot checkout",
			"reasons": orch.Reasons(),
		})
		return
	case checkout.StateAwaitingPaymentIntent:
		// payment handle could not be acquired; retryable
		writeError(w, http.StatusBadGateway, orch.Err())
		return
	}

	orch.Submit(ctx)

	switch orch.State() {
	case checkout.StateSucceeded:
		o := orch.Order()
		if err := h.events.PublishOrderCreated(ctx, o); err != nil {
			h.logger.Printf("publish order created %s: %v", o.ID, err)
		}
		writeJSON(w, http.StatusCreated, o)
	case checkout.StateFailed:
		switch orch.Failure() {
		case checkout.FailureDeclined:
			writeError(w, http.StatusPaymentRequired, orch.Err())
		case checkout.FailureUnrecordedCharge:
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": orch.Err(),
				"code":  "charged_unrecorded",
			})
		default:
			writeError(w, http.StatusBadGateway, orch.Err())
		}
	default:
		writeError(w, http.StatusInternalServerError, "unexpected checkout state")
	}
}
