package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ivanderson2066/velora-storefront/internal/reviews"
)

type ReviewsHandler struct {
	service *reviews.Service
}

func NewReviewsHandler(service *reviews.Service) *ReviewsHandler {
	return &ReviewsHandler{service: service}
}

type AddReviewRequestDTO struct {
	Author string `json:"author"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Rating int    `json:"rating"`
}

func (h *ReviewsHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	productID := r.URL.Query().Get("productId")

	list := h.service.ListByHandle(r.Context(), productID, handle)
	if list == nil {
		list = []reviews.Review{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *ReviewsHandler) GetRating(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	productID := r.URL.Query().Get("productId")

	respondJSON(w, http.StatusOK, h.service.Summary(r.Context(), productID, handle))
}

func (h *ReviewsHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	var req AddReviewRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	stored, err := h.service.Add(r.Context(), reviews.Review{
		ProductHandle: handle,
		Author:        req.Author,
		Title:         req.Title,
		Body:          req.Body,
		Rating:        req.Rating,
	})
	if errors.Is(err, reviews.ErrInvalidReview) {
		respondError(w, http.StatusBadRequest, "invalid_review", "author, body and a rating between 1 and 5 are required")
		return
	}
	if err != nil {
		log.Printf("failed to store review: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not store review")
		return
	}

	respondJSON(w, http.StatusCreated, stored)
}
