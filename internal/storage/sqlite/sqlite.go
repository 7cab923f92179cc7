// Package sqlite provides a SQLite-backed implementation of the storage.KV
// interface plus the order collection the checkout flow writes into.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/flame5nz/flame5/internal/models"
	"github.com/flame5nz/flame5/internal/storage"
)

// ErrOrderNotFound is returned when no order matches the lookup.
var ErrOrderNotFound = errors.New("order not found")

// Ensure Store implements storage.KV
var _ storage.KV = (*Store)(nil)

// Store implements storage.KV and the order collection on a single SQLite file.
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key, or false when absent.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM kv WHERE key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// InsertOrder persists a new order to the orders collection.
// The order's ID is populated when empty; received_at is assigned by the
// database, independent of the submission timestamp on the record.
func (s *Store) InsertOrder(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("order is nil")
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}

	var userID sql.NullString
	if order.UserID != "" {
		userID = sql.NullString{String: order.UserID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, order_number, phone, user_id, items, total_amount, total_currency, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.OrderNumber, order.Phone, userID, string(items),
		order.Total.Amount.String(), order.Total.Currency.String(),
		order.Status, order.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return nil
}

// OrderByNumber retrieves an order by its customer-facing number.
// Returns ErrOrderNotFound when no such order exists.
func (s *Store) OrderByNumber(ctx context.Context, number int) (*models.Order, error) {
	var (
		order     models.Order
		userID    sql.NullString
		items     string
		amount    string
		unit      string
		createdAt string
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT id, order_number, phone, user_id, items, total_amount, total_currency, status, created_at
		 FROM orders WHERE order_number = ?`,
		number,
	).Scan(&order.ID, &order.OrderNumber, &order.Phone, &userID, &items, &amount, &unit, &order.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	order.UserID = userID.String

	if err := json.Unmarshal([]byte(items), &order.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}

	parsedAmount, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("amount[%s] is not valid: %w", amount, err)
	}
	parsedCurrency, err := currency.ParseISO(unit)
	if err != nil {
		return nil, fmt.Errorf("currency[%s] is not valid: %w", unit, err)
	}
	order.Total = models.Money{Amount: parsedAmount, Currency: parsedCurrency}

	order.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("created_at[%s] is not valid: %w", createdAt, err)
	}

	return &order, nil
}
