package reviews

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Review is one product review, either imported from the seed export or
// submitted by a shopper.
type Review struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"productId,omitempty"`
	ProductHandle string    `json:"productHandle"`
	Author        string    `json:"author"`
	Title         string    `json:"title,omitempty"`
	Body          string    `json:"body"`
	Rating        int       `json:"rating"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "reviews_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// ListByProduct returns rows matching the product by ID or handle. The
// seed exports are sloppy about which column carries the handle, so the
// handle is matched against both, mirroring how the storefront queried
// its review table.
func (r *Repository) ListByProduct(ctx context.Context, productID, handle string) ([]Review, error) {
	query := `SELECT id, product_id, product_handle, author, title, body, rating, created_at
	          FROM reviews
	          WHERE product_id = $1 OR product_handle = $2 OR product_id = $2
	          ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, productID, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var review Review
		if err := rows.Scan(
			&review.ID,
			&review.ProductID,
			&review.ProductHandle,
			&review.Author,
			&review.Title,
			&review.Body,
			&review.Rating,
			&review.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return reviews, nil
}

func (r *Repository) Insert(ctx context.Context, review *Review) error {
	query := `INSERT INTO reviews (id, product_id, product_handle, author, title, body, rating, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		review.ID,
		review.ProductID,
		review.ProductHandle,
		review.Author,
		review.Title,
		review.Body,
		review.Rating,
		review.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
