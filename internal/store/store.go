package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"clearance-connect/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
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

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (used to retry order-number collisions).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrProductNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
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

// IncrementCartAdds bumps the product's cart-adds analytics counter.
// Best-effort: callers must not fail the cart mutation on error.
func (s *Store) IncrementCartAdds(ctx context.Context, productID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE products SET cart_adds = cart_adds + 1 WHERE id = $1", productID)
	return err
}

// SetProductStatus updates a product's lifecycle status. The guard on
// the current status keeps the catalog worker from resurrecting
// inactive or discontinued products.
func (s *Store) SetProductStatus(ctx context.Context, productID int64, from, to string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, productID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// reserveItemsTx locks every product row (ascending id, to avoid lock
// cycles between concurrent orders), re-validates status and available
// stock under the lock, and applies all reservations. Any failure
// rolls back the whole transaction, so a mid-list rejection leaves no
// stock reserved.
func reserveItemsTx(ctx context.Context, tx *sqlx.Tx, items []models.OrderItem) error {
	quantities := make(map[int64]int, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, seen := quantities[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		var product models.Product
		err := tx.GetContext(ctx, &product,
			"SELECT * FROM products WHERE id = $1 FOR UPDATE", id)
		if err == sql.ErrNoRows {
			return fmt.Errorf("product %d: %w", id, models.ErrProductNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock product %d: %w", id, err)
		}

		if !product.Purchasable() {
			return fmt.Errorf("product %d: %w", id, models.ErrProductUnavailable)
		}

		qty := quantities[id]
		if product.Available() < qty {
			return fmt.Errorf("product %d: available=%d, requested=%d: %w",
				id, product.Available(), qty, models.ErrInsufficientStock)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE products SET reserved = reserved + $1, updated_at = NOW() WHERE id = $2",
			qty, id)
		if err != nil {
			return fmt.Errorf("failed to reserve stock for product %d: %w", id, err)
		}
	}

	return nil
}

// releaseItemsTx returns reserved stock to the pool (cancellation).
func releaseItemsTx(ctx context.Context, tx *sqlx.Tx, items []models.OrderItem) error {
	for _, item := range items {
		_, err := tx.ExecContext(ctx,
			"UPDATE products SET reserved = reserved - $1, updated_at = NOW() WHERE id = $2",
			item.Quantity, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to release stock for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
