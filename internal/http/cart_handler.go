package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/construmax/storefront-backend/internal/cart"
	"github.com/construmax/storefront-backend/internal/catalog"
	"github.com/construmax/storefront-backend/internal/pricing"
)

var validate = validator.New()

type CartHandler struct {
	carts    cart.Repository
	products catalog.Repository
	logger   *log.Logger
}

func NewCartHandler(carts cart.Repository, products catalog.Repository, logger *log.Logger) *CartHandler {
	return &CartHandler{carts: carts, products: products, logger: logger}
}

type cartResponse struct {
	Items      []cart.Line     `json:"items"`
	TotalItems int             `json:"totalItems"`
	Summary    pricing.Summary `json:"summary"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing sessionId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	lines, err := h.carts.Load(ctx, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return
	}

	engine := cart.Restore(lines, nil)
	writeCart(w, engine)
}

type addItemRequest struct {
	ProductID       string  `json:"productId" validate:"required"`
	DiscountPercent float64 `json:"discountPercent" validate:"gte=0,lte=100"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing sessionId")
		return
	}

	var body addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	product, err := h.products.Get(ctx, body.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	// Offer discount is baked into the snapshot unit price here; the engine
	// treats DiscountPercent as display metadata from this point on.
	snapshot := cart.OfferPrice(product, body.DiscountPercent)

	engine, ok := h.restore(ctx, w, sessionID)
	if !ok {
		return
	}
	engine.Add(snapshot, cart.AddOptions{DiscountPercent: body.DiscountPercent})

	writeCart(w, engine)
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	productID := chi.URLParam(r, "productId")
	if sessionID == "" || productID == "" {
		writeError(w, http.StatusBadRequest, "missing sessionId or productId")
		return
	}

	var body setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	engine, ok := h.restore(ctx, w, sessionID)
	if !ok {
		return
	}
	engine.SetQuantity(productID, body.Quantity)

	writeCart(w, engine)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	productID := chi.URLParam(r, "productId")
	if sessionID == "" || productID == "" {
		writeError(w, http.StatusBadRequest, "missing sessionId or productId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	engine, ok := h.restore(ctx, w, sessionID)
	if !ok {
		return
	}
	engine.Remove(productID)

	writeCart(w, engine)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing sessionId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.carts.Clear(ctx, sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear cart")
		return
	}

	writeCart(w, cart.NewEngine(nil))
}

// restore loads the session lines into an engine whose mirror writes back to
// the repository. Mirror failures are logged, never surfaced: at worst the
// most recent mutation is lost, the store is never corrupted.
func (h *CartHandler) restore(ctx context.Context, w http.ResponseWriter, sessionID string) (*cart.Engine, bool) {
	lines, err := h.carts.Load(ctx, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return nil, false
	}

	mirror := func(lines []cart.Line) {
		if err := h.carts.Save(ctx, sessionID, lines); err != nil {
			h.logger.Printf("mirror cart %s: %v", sessionID, err)
		}
	}

	return cart.Restore(lines, mirror), true
}

func writeCart(w http.ResponseWriter, engine *cart.Engine) {
	lines := engine.Lines()
	if lines == nil {
		lines = []cart.Line{}
	}
	writeJSON(w, http.StatusOK, cartResponse{
		Items:      lines,
		TotalItems: engine.TotalItems(),
		Summary:    pricing.Summarize(engine.TotalPrice()),
	})
}
