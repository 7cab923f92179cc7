// Package cart owns the shopping cart: an ordered list of lines keyed by item
// name, persisted write-through to the key-value store after every mutation.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/flame5nz/flame5/internal/models"
	"github.com/flame5nz/flame5/internal/storage"
)

// Snapshot is the render input: the ordered lines plus derived totals,
// a pure function of current cart state.
type Snapshot struct {
	Lines []models.CartLine
	Total decimal.Decimal
	Count int
}

// Store owns the cart lines. All mutations persist synchronously before
// returning, so the in-memory copy and the stored copy never diverge within
// this process. Concurrent tabs/processes sharing the storage key are a known
// gap and are not coordinated here.
type Store struct {
	mu    sync.Mutex
	kv    storage.KV
	lines []models.CartLine
}

// New loads the cart from storage. A missing or unparseable stored value
// seeds an empty cart; parse failures are recovered silently, never surfaced.
func New(ctx context.Context, kv storage.KV) (*Store, error) {
	s := &Store{kv: kv}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the in-memory lines with the latest persisted state.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.kv.Get(ctx, storage.CartKey)
	if err != nil {
		return fmt.Errorf("kv.Get: %w", err)
	}
	if !ok {
		s.lines = nil
		return nil
	}

	var lines []models.CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		slog.Warn("Stored cart is unreadable, starting empty", "error", err)
		s.lines = nil
		return nil
	}

	s.lines = lines
	return nil
}

// AddItem increments the quantity of the named line, or appends a new line
// with quantity 1 if the name is not yet in the cart.
func (s *Store) AddItem(ctx context.Context, name string, price decimal.Decimal, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].Name == name {
			s.lines[i].Quantity++
			return s.persistLocked(ctx)
		}
	}

	s.lines = append(s.lines, models.CartLine{
		Name:     name,
		Price:    price,
		Category: category,
		Quantity: 1,
	})
	return s.persistLocked(ctx)
}

// SetQuantityDelta adds delta to the named line's quantity. A resulting
// quantity <= 0 removes the line entirely. Unknown names are a silent no-op.
func (s *Store) SetQuantityDelta(ctx context.Context, name string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].Name == name {
			s.lines[i].Quantity += delta
			if s.lines[i].Quantity <= 0 {
				s.lines = append(s.lines[:i], s.lines[i+1:]...)
			}
			return s.persistLocked(ctx)
		}
	}
	return nil
}

// RemoveItem deletes the named line unconditionally if present.
func (s *Store) RemoveItem(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.lines {
		if s.lines[i].Name == name {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return s.persistLocked(ctx)
		}
	}
	return nil
}

// Clear empties the cart when confirmed is true and reports whether it did.
// A declined confirmation leaves the cart untouched.
func (s *Store) Clear(ctx context.Context, confirmed bool) (bool, error) {
	if !confirmed {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	if err := s.persistLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Reset empties the cart and drops the storage key without asking for
// confirmation. Used when an order commits.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	if err := s.kv.Delete(ctx, storage.CartKey); err != nil {
		return fmt.Errorf("kv.Delete: %w", err)
	}
	return nil
}

// Total returns the sum of price*quantity across all lines at full precision,
// recomputed fresh on every call.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalOf(s.lines)
}

// ItemCount returns the sum of all line quantities.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, l := range s.lines {
		count += l.Quantity
	}
	return count
}

// Snapshot returns a copy of the lines in insertion order with derived totals.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]models.CartLine, len(s.lines))
	copy(lines, s.lines)

	count := 0
	for _, l := range lines {
		count += l.Quantity
	}

	return Snapshot{
		Lines: lines,
		Total: totalOf(lines),
		Count: count,
	}
}

func totalOf(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

func (s *Store) persistLocked(ctx context.Context) error {
	encoded, err := json.Marshal(s.lines)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if s.lines == nil {
		encoded = []byte("[]")
	}
	if err := s.kv.Set(ctx, storage.CartKey, string(encoded)); err != nil {
		return fmt.Errorf("kv.Set: %w", err)
	}
	return nil
}
