// Package storage provides abstractions for persistent data storage.
package storage

import "context"

// Fixed keys in the key-value store. The cart and the order backup each live
// under a single key as a JSON-encoded array, matching the record layout the
// site has always used.
const (
	// CartKey holds the current cart as an ordered array of line objects.
	CartKey = "flame5Cart"

	// OrdersBackupKey holds every order ever placed from this install,
	// append-only, as a local backup of the order store.
	OrdersBackupKey = "flame5Orders"
)

// KV defines the interface for the durable key-value store backing the cart
// and the order backup. This abstraction allows swapping backends without
// changing the cart or checkout layers.
type KV interface {
	// Get returns the value stored under key. The second return is false
	// when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
