package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/settlement-service/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

// Repository is a read-only view over the product catalog. It only answers
// price questions; product CRUD lives in the storefront's admin tooling.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// an in-memory database exists per connection
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

// lookupBatchSize keeps each IN list well under SQLite's bound-variable limit.
const lookupBatchSize = 500

// GetPrices returns the current price of every known product among ids.
// Unknown ids are simply absent from the result; deciding what that means is
// the caller's job.
func (r *Repository) GetPrices(ctx context.Context, ids []string) (map[string]domain.Cents, error) {
	prices := make(map[string]domain.Cents, len(ids))
	for start := 0; start < len(ids); start += lookupBatchSize {
		end := min(start+lookupBatchSize, len(ids))
		if err := r.queryPrices(ctx, ids[start:end], prices); err != nil {
			return nil, err
		}
	}
	return prices, nil
}

func (r *Repository) queryPrices(ctx context.Context, ids []string, prices map[string]domain.Cents) error {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT id, price_cents FROM products WHERE id IN (` + strings.Join(placeholders, ",") + `)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var price int64
		if err := rows.Scan(&id, &price); err != nil {
			return fmt.Errorf("failed to scan price: %w", err)
		}
		prices[id] = domain.Cents(price)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
