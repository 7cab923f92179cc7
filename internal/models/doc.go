// Package models defines the core domain models for the Flame 5 ordering
// backend.
//
// # Models
//
//   - CartLine: a single menu item in the cart, keyed by name
//   - Order: an immutable record created on successful checkout
//   - Money: a decimal amount paired with a currency
//
// # Design Principles
//
//  1. **Name as identity**: the menu is small and item names are unique, so
//     cart lines are addressed by name rather than by a product ID.
//  2. **Decimal money**: prices and totals are decimal.Decimal end to end;
//     rounding to two places happens only at the display boundary.
//  3. **Orders are write-once**: an Order is built from a cart snapshot at
//     submission time and never mutated afterwards.
package models
