package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/construmax/storefront-backend/internal/catalog"
)

type ProductHandler struct {
	repo  catalog.Repository
	store *catalog.Store
}

func NewProductHandler(repo catalog.Repository, store *catalog.Store) *ProductHandler {
	return &ProductHandler{repo: repo, store: store}
}

// ListProducts serves the full list through the catalog store so concurrent
// refreshes collapse into one fetch; filtered requests hit the repository
// directly.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if q == "" && category == "" {
		h.store.Fetch(ctx)
		if errMsg := h.store.Err(); errMsg != "" && len(h.store.Products()) == 0 {
			writeError(w, http.StatusInternalServerError, "failed to load products")
			return
		}
		writeJSON(w, http.StatusOK, h.store.Products())
		return
	}

	products, err := h.repo.Search(ctx, q, category)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to search products")
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	if productID == "" {
		writeError(w, http.StatusBadRequest, "missing productId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.repo.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	writeJSON(w, http.StatusOK, p)
}
