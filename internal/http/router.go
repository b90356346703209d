package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ivanderson2066/velora-storefront/internal/cart"
	"github.com/ivanderson2066/velora-storefront/internal/reviews"
)

// NewRouter wires the storefront API surface.
func NewRouter(carts *cart.Manager, products ProductCatalog, reviewService *reviews.Service, requestTimeout time.Duration) http.Handler {
	cartHandler := NewCartHandler(carts)
	productHandler := NewProductHandler(products)
	reviewsHandler := NewReviewsHandler(reviewService)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(SessionMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{variantID}", cartHandler.UpdateQuantity)
			r.Delete("/items/{variantID}", cartHandler.RemoveItem)
			r.Post("/sync", cartHandler.SyncPrices)
		})
		r.Post("/checkout", cartHandler.CreateCheckout)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Get("/{handle}", productHandler.GetProduct)
			r.Get("/{handle}/reviews", reviewsHandler.ListReviews)
			r.Post("/{handle}/reviews", reviewsHandler.AddReview)
			r.Get("/{handle}/rating", reviewsHandler.GetRating)
		})
	})

	return r
}
