package reviews

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Judge.me review export column layout.
const (
	colTitle  = 0
	colBody   = 1
	colRating = 2
	colDate   = 3
	colAuthor = 6
	colHandle = 9
)

const seedDateLayout = "2006-01-02"

// ParseSeedCSV reads a Judge.me review export. Rows without a product
// handle are skipped; an unparseable rating defaults to 5 the way the
// storefront's importer did.
func ParseSeedCSV(r io.Reader) ([]Review, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse review seed: %w", err)
	}

	var reviews []Review
	for i, record := range records {
		if i == 0 { // header
			continue
		}
		if len(record) <= colHandle {
			continue
		}

		handle := strings.TrimSpace(record[colHandle])
		if handle == "" {
			continue
		}

		rating, err := strconv.Atoi(strings.TrimSpace(record[colRating]))
		if err != nil || rating < 1 || rating > 5 {
			rating = 5
		}

		author := strings.TrimSpace(record[colAuthor])
		if author == "" {
			author = "Verified Buyer"
		}

		createdAt, _ := time.Parse(seedDateLayout, strings.TrimSpace(record[colDate]))

		reviews = append(reviews, Review{
			ID:            fmt.Sprintf("csv-review-%d", i),
			ProductHandle: handle,
			Author:        author,
			Title:         strings.TrimSpace(record[colTitle]),
			Body:          strings.TrimSpace(record[colBody]),
			Rating:        rating,
			CreatedAt:     createdAt,
		})
	}
	return reviews, nil
}
