package reviews

import (
	"context"
	"errors"
)

var errDatabaseUnavailable = errors.New("review database unavailable")

// Unavailable stands in for the repository when the review database
// cannot be reached at startup. Reads fall back to the seed reviews,
// writes fail.
type Unavailable struct{}

func (Unavailable) ListByProduct(context.Context, string, string) ([]Review, error) {
	return nil, errDatabaseUnavailable
}

func (Unavailable) Insert(context.Context, *Review) error {
	return errDatabaseUnavailable
}
