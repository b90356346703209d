package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ivanderson2066/velora-storefront/internal/cart"
	"github.com/ivanderson2066/velora-storefront/internal/domain"
)

const maxLineQuantity = 99

type CartHandler struct {
	carts *cart.Manager
}

func NewCartHandler(carts *cart.Manager) *CartHandler {
	return &CartHandler{carts: carts}
}

type AddItemRequestDTO struct {
	VariantID       string                  `json:"variantId"`
	VariantTitle    string                  `json:"variantTitle"`
	Product         domain.ProductSnapshot  `json:"product"`
	Price           domain.Money            `json:"price"`
	Quantity        int                     `json:"quantity"`
	SelectedOptions []domain.SelectedOption `json:"selectedOptions"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Items      []domain.LineItem `json:"items"`
	TotalItems int               `json:"totalItems"`
	Subtotal   domain.Money      `json:"subtotal"`
	IsLoading  bool              `json:"isLoading"`
}

type CheckoutResponseDTO struct {
	CheckoutURL string `json:"checkoutUrl"`
}

// cartResponse renders a single point-in-time snapshot so the items and
// totals in one response always agree, even under concurrent mutation.
func cartResponse(store *cart.Store) CartResponseDTO {
	snap := store.Snapshot()
	items := snap.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	return CartResponseDTO{
		Items:      items,
		TotalItems: snap.TotalItems,
		Subtotal: domain.Money{
			Amount:       snap.Subtotal.StringFixed(2),
			CurrencyCode: snap.Currency,
		},
		IsLoading: snap.IsLoading,
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	store := h.carts.Store(r.Context(), getSessionID(r.Context()))
	respondJSON(w, http.StatusOK, cartResponse(store))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.VariantID == "" {
		respondError(w, http.StatusBadRequest, "invalid_variant_id", "variantId is required")
		return
	}
	if req.Quantity < 1 || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}
	if req.Price.Amount == "" || req.Price.CurrencyCode == "" {
		respondError(w, http.StatusBadRequest, "invalid_price", "price amount and currencyCode are required")
		return
	}

	store := h.carts.Store(r.Context(), getSessionID(r.Context()))
	store.AddItem(domain.LineItem{
		VariantID:       req.VariantID,
		VariantTitle:    req.VariantTitle,
		Product:         req.Product,
		Price:           req.Price,
		Quantity:        req.Quantity,
		SelectedOptions: req.SelectedOptions,
	})

	respondJSON(w, http.StatusCreated, cartResponse(store))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	variantID := chi.URLParam(r, "variantID")
	if variantID == "" {
		respondError(w, http.StatusBadRequest, "invalid_variant_id", "variantID is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	// quantity <= 0 removes the item, mirroring the store semantics
	store := h.carts.Store(r.Context(), getSessionID(r.Context()))
	store.UpdateQuantity(variantID, req.Quantity)

	respondJSON(w, http.StatusOK, cartResponse(store))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	variantID := chi.URLParam(r, "variantID")
	store := h.carts.Store(r.Context(), getSessionID(r.Context()))
	store.RemoveItem(variantID)

	respondJSON(w, http.StatusOK, cartResponse(store))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	store := h.carts.Store(r.Context(), getSessionID(r.Context()))
	store.Clear()

	respondJSON(w, http.StatusOK, cartResponse(store))
}

// SyncPrices refreshes the cart's prices from the catalog and returns
// the refreshed cart. The UI calls this when the cart drawer opens and
// right before checkout.
func (h *CartHandler) SyncPrices(w http.ResponseWriter, r *http.Request) {
	store := h.carts.Store(r.Context(), getSessionID(r.Context()))
	store.SyncPrices(r.Context())

	respondJSON(w, http.StatusOK, cartResponse(store))
}

func (h *CartHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	store := h.carts.Store(r.Context(), getSessionID(r.Context()))

	if store.TotalItems() == 0 {
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
		return
	}

	url := store.CreateCheckout(r.Context())
	if url == "" {
		// best-effort contract: the store logged the cause; the UI shows
		// a retry affordance
		respondError(w, http.StatusBadGateway, "checkout_unavailable", "checkout could not be created")
		return
	}

	respondJSON(w, http.StatusOK, CheckoutResponseDTO{CheckoutURL: url})
}
