package models

import "github.com/shopspring/decimal"

// CartLine represents one menu item in the cart.
//
// At most one line exists per distinct Name; repeated adds increment Quantity
// instead of appending. A line with Quantity <= 0 is never observable: the
// cart store removes it instead.
type CartLine struct {
	// Name is the menu item name and the line's unique key within the cart.
	Name string `json:"name"`

	// Price is the unit price. Never negative.
	Price decimal.Decimal `json:"price"`

	// Category is the menu section the item belongs to (e.g. "mains").
	Category string `json:"category"`

	// Quantity is the number of units, always >= 1.
	Quantity int `json:"quantity"`
}

// LineTotal returns Price * Quantity at full precision.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
