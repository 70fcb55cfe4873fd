package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Products      *ProductHandler
	Cart          *CartHandler
	Wishlist      *WishlistHandler
	Session       *SessionHandler
	Checkout      *CheckoutHandler
	Orders        *OrdersHandler
	PaymentIntent http.Handler

	// Health pings each dependency by name.
	Health map[string]Pinger

	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	SessionTTL         time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.Compress(5))
	r.Use(MaxBodyMiddleware(cfg.MaxRequestBodySize))

	r.Get("/health", healthHandler(cfg.Health))

	if cfg.PaymentIntent != nil {
		r.Method(http.MethodPost, "/api/create-payment-intent", cfg.PaymentIntent)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(cfg.SessionTTL))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", cfg.Products.List)
			r.Get("/{id}", cfg.Products.Get)
			r.Get("/{id}/reviews", cfg.Products.ListReviews)
			r.Post("/{id}/reviews", cfg.Products.CreateReview)
		})
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cfg.Cart.GetCart)
			r.Delete("/", cfg.Cart.ClearCart)
			r.Post("/validate", cfg.Cart.Validate)
			r.Post("/items", cfg.Cart.AddItem)
			r.Put("/items/{product_id}", cfg.Cart.UpdateQuantity)
			r.Post("/items/{product_id}/decrement", cfg.Cart.Decrement)
			r.Delete("/items/{product_id}", cfg.Cart.RemoveItem)
		})
		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", cfg.Wishlist.Get)
			r.Post("/{product_id}/toggle", cfg.Wishlist.Toggle)
			r.Delete("/{product_id}", cfg.Wishlist.Remove)
		})
		r.Post("/session/sign-in", cfg.Session.SignIn)
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", cfg.Checkout.InitiateCheckout)
			r.Post("/{order_id}/intent", cfg.Checkout.RetryIntent)
			r.Post("/{order_id}/confirm", cfg.Checkout.Confirm)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", cfg.Orders.ListOrders)
			r.Get("/{order_id}", cfg.Orders.GetOrder)
		})
	})

	return r
}

func healthHandler(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]string, len(deps))
		status, code := "ok", http.StatusOK
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				checks[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		respondJSON(w, code, map[string]any{"status": status, "checks": checks})
	}
}
