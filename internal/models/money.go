package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Money pairs a decimal amount with an ISO 4217 currency.
// The truck trades in a single currency; NewMoney applies the default.
type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// NewMoney returns the amount in the house currency (NZD).
func NewMoney(amount decimal.Decimal) Money {
	return Money{Amount: amount, Currency: currency.NZD}
}

// Display renders the amount for customers, rounded to two places.
func (m Money) Display() string {
	return "$" + m.Amount.StringFixed(2)
}

type moneyJSON struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.Amount, Currency: m.Currency.String()})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	unit, err := currency.ParseISO(raw.Currency)
	if err != nil {
		return fmt.Errorf("currency[%s] is not valid: %w", raw.Currency, err)
	}

	m.Amount = raw.Amount
	m.Currency = unit
	return nil
}
