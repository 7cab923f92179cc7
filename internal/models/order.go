package models

import "time"

// OrderStatusPending is the only status this system assigns. Fulfilment
// happens off-platform; the record is never updated here.
const OrderStatusPending = "pending"

// Order is the record created on successful checkout confirmation.
// It is written to the order store and duplicated into the local backup,
// and never mutated thereafter.
type Order struct {
	// ID is assigned by the order store on insert (UUID format).
	ID string `json:"id,omitempty"`

	// OrderNumber is the customer-facing 5-digit number in [10000, 99999].
	OrderNumber int `json:"orderNumber"`

	// Phone is the number the customer entered, as typed (not normalized).
	Phone string `json:"phone"`

	// UserID is the verified identity behind the order, empty when the
	// session could not be resolved at submission time.
	UserID string `json:"userId,omitempty"`

	// Items is the cart snapshot at submission time.
	Items []CartLine `json:"items"`

	// Total is the order total at submission time.
	Total Money `json:"total"`

	// Status is always OrderStatusPending when created.
	Status string `json:"status"`

	// CreatedAt is the submission time as seen by this process. The order
	// store additionally records its own receive timestamp.
	CreatedAt time.Time `json:"createdAt"`
}
