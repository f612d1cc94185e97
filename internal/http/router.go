package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Products *ProductHandler
	Carts    *CartHandler
	Checkout *CheckoutHandler
	Admin    *AdminHandler

	JWTSecret        []byte
	CORSAllowOrigins []string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(CorrelationID)
	r.Use(CORS(cfg.CORSAllowOrigins))

	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", cfg.Products.ListProducts)
		r.Get("/products/{productId}", cfg.Products.GetProduct)

		r.Route("/cart/{sessionId}", func(r chi.Router) {
			r.Get("/", cfg.Carts.GetCart)
			r.Delete("/", cfg.Carts.ClearCart)
			r.Post("/items", cfg.Carts.AddItem)
			r.Patch("/items/{productId}", cfg.Carts.SetQuantity)
			r.Delete("/items/{productId}", cfg.Carts.RemoveItem)
			r.Post("/checkout", cfg.Checkout.Checkout)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", cfg.Admin.Login)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin(cfg.JWTSecret))

				r.Post("/products", cfg.Admin.CreateProduct)
				r.Put("/products/{productId}", cfg.Admin.UpdateProduct)
				r.Delete("/products/{productId}", cfg.Admin.DeleteProduct)

				r.Get("/orders", cfg.Admin.ListOrders)
				r.Get("/orders/{orderId}", cfg.Admin.GetOrder)
				r.Patch("/orders/{orderId}/status", cfg.Admin.UpdateOrderStatus)
			})
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "storefront",
	})
}
