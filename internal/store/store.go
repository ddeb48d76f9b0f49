package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"checkout-service/internal/models"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// RunMigrations applies pending schema migrations from the given directory.
func (s *Store) RunMigrations(migrationsPath string) error {
	driver, err := postgres.WithInstance(s.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetProductsByIDs retrieves the catalog rows for the given product ids in a
// single batch query. Ids absent from the result were not found; callers must
// treat that as unresolvable, not as free.
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// FindProfile retrieves a profile, returning nil without error when missing.
func (s *Store) FindProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.GetContext(ctx, &profile, "SELECT * FROM profiles WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// EnsureProfile creates the profile row if it does not exist. Concurrent
// callers racing on the same user both succeed; the conflict clause makes the
// insert a no-op for the loser.
func (s *Store) EnsureProfile(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING",
		userID)
	return err
}

// GetAddress retrieves a saved address, scoped to its owner.
func (s *Store) GetAddress(ctx context.Context, userID, addressID string) (*models.Address, error) {
	var addr models.Address
	err := s.db.GetContext(ctx, &addr,
		"SELECT * FROM addresses WHERE id = $1 AND user_id = $2", addressID, userID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("address not found: %s", addressID)
	}
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// InsertTamperingEntry appends one row to the abuse log. Rows are never
// updated or deleted by this service.
func (s *Store) InsertTamperingEntry(ctx context.Context, entry *models.TamperingLogEntry) error {
	query := `
		INSERT INTO price_tampering_log (user_id, product_id, claimed_price, actual_price, ip_address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, entry, query,
		entry.UserID, entry.ProductID, entry.ClaimedPrice, entry.ActualPrice, entry.IPAddress)
}
