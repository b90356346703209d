package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ivanderson2066/velora-storefront/internal/catalog"
	"github.com/ivanderson2066/velora-storefront/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// ProductCatalog is the slice of the catalog the product pages need.
type ProductCatalog interface {
	Products(ctx context.Context, first int) ([]domain.ProductSnapshot, error)
	ProductByHandle(ctx context.Context, handle string) (*domain.ProductSnapshot, error)
}

type ProductHandler struct {
	catalog ProductCatalog
}

func NewProductHandler(catalog ProductCatalog) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	first := defaultPageSize
	if raw := r.URL.Query().Get("first"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "invalid_first", "first must be a positive integer")
			return
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		first = parsed
	}

	products, err := h.catalog.Products(r.Context(), first)
	if err != nil {
		log.Printf("failed to list products: %v", err)
		respondError(w, http.StatusBadGateway, "catalog_unavailable", "product catalog is unavailable")
		return
	}

	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	product, err := h.catalog.ProductByHandle(r.Context(), handle)
	if errors.Is(err, catalog.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	if err != nil {
		log.Printf("failed to get product %q: %v", handle, err)
		respondError(w, http.StatusBadGateway, "catalog_unavailable", "product catalog is unavailable")
		return
	}

	respondJSON(w, http.StatusOK, product)
}
