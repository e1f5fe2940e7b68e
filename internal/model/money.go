package model

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Money is an amount in a currency as reported by the gateway.
// Amounts are never recomputed locally; the gateway's totals are authoritative.
type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// moneyJSON is the wire shape shared by the gateway and the local surface.
type moneyJSON struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

// ParseMoney builds Money from a decimal string and an ISO 4217 code.
// An empty amount is zero.
func ParseMoney(amount, code string) (Money, error) {
	var m Money
	if amount == "" {
		m.Amount = decimal.Zero
	} else {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return Money{}, fmt.Errorf("parsing amount %q: %w", amount, err)
		}
		m.Amount = d
	}
	if code != "" {
		unit, err := currency.ParseISO(code)
		if err != nil {
			return Money{}, fmt.Errorf("parsing currency %q: %w", code, err)
		}
		m.Currency = unit
	}
	return m, nil
}

// MustMoney is ParseMoney for literals in tests and fixtures.
func MustMoney(amount, code string) Money {
	m, err := ParseMoney(amount, code)
	if err != nil {
		panic(err)
	}
	return m
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

// Equal reports whether m and o have the same currency and numeric amount,
// ignoring scale ("1.5" equals "1.50").
func (m Money) Equal(o Money) bool {
	return m.Currency == o.Currency && m.Amount.Equal(o.Amount)
}

// amountString renders at least two decimal places and never fewer than
// the gateway sent, so "12.5" becomes "12.50" and "1.234" stays exact.
func (m Money) amountString() string {
	places := int32(2)
	if exp := -m.Amount.Exponent(); exp > places {
		places = exp
	}
	return m.Amount.StringFixed(places)
}

// String formats the amount with its currency code, e.g. "12.50 USD".
func (m Money) String() string {
	if m.Currency == (currency.Unit{}) {
		return m.amountString()
	}
	return m.amountString() + " " + m.Currency.String()
}

func (m Money) MarshalJSON() ([]byte, error) {
	out := moneyJSON{Amount: m.amountString()}
	if m.Currency != (currency.Unit{}) {
		out.CurrencyCode = m.Currency.String()
	}
	return json.Marshal(out)
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var in moneyJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	parsed, err := ParseMoney(in.Amount, in.CurrencyCode)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
