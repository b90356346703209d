package reviews

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Lister is the slice of the repository the service reads through.
type Lister interface {
	ListByProduct(ctx context.Context, productID, handle string) ([]Review, error)
	Insert(ctx context.Context, review *Review) error
}

// Summary is a product's aggregate rating.
type Summary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

var ErrInvalidReview = errors.New("review is missing required fields")

// Service merges the static seed reviews with database rows. Database
// failures are absorbed: the storefront still shows the seed reviews
// when the review store is down.
type Service struct {
	repo Lister
	seed []Review
}

func NewService(repo Lister, seed []Review) *Service {
	return &Service{repo: repo, seed: seed}
}

// ListByHandle returns all reviews for the product, newest first, with
// one entry per review ID across both sources.
func (s *Service) ListByHandle(ctx context.Context, productID, handle string) []Review {
	merged := make([]Review, 0)
	seen := make(map[string]bool)

	rows, err := s.repo.ListByProduct(ctx, productID, handle)
	if err != nil {
		log.Printf("failed to list reviews from database: %v", err)
	}
	for _, review := range rows {
		if seen[review.ID] {
			continue
		}
		seen[review.ID] = true
		merged = append(merged, review)
	}

	for _, review := range s.seed {
		if review.ProductHandle != handle || seen[review.ID] {
			continue
		}
		seen[review.ID] = true
		merged = append(merged, review)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged
}

// Summary computes the rolling average over both sources: the seed
// aggregate (count times average) plus every database row, so imported
// reviews and live ones weigh the same.
func (s *Service) Summary(ctx context.Context, productID, handle string) Summary {
	sum := 0
	count := 0
	for _, review := range s.ListByHandle(ctx, productID, handle) {
		sum += review.Rating
		count++
	}
	if count == 0 {
		return Summary{}
	}
	return Summary{
		Average: float64(sum) / float64(count),
		Count:   count,
	}
}

// Add validates and stores a shopper-submitted review.
func (s *Service) Add(ctx context.Context, review Review) (Review, error) {
	review.Author = strings.TrimSpace(review.Author)
	review.Body = strings.TrimSpace(review.Body)

	if review.ProductHandle == "" || review.Author == "" || review.Body == "" {
		return Review{}, ErrInvalidReview
	}
	if review.Rating < 1 || review.Rating > 5 {
		return Review{}, ErrInvalidReview
	}

	review.ID = uuid.New().String()
	review.CreatedAt = time.Now()

	if err := s.repo.Insert(ctx, &review); err != nil {
		return Review{}, err
	}
	return review, nil
}
