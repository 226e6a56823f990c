// Package money provides monetary string handling for remote-sourced amounts.
//
// The commerce API transports every monetary field as a decimal string
// ("1249.50", "0.00"). Amount keeps the raw wire form alongside the parsed
// value so that unparseable amounts stay visible instead of collapsing to
// zero.
package money

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Amount is a monetary value parsed from a remote decimal string.
type Amount struct {
	raw   string
	value decimal.Decimal
	valid bool
}

// Parse converts a decimal string into an Amount. An empty or malformed
// string yields an invalid Amount that still remembers the raw input.
func Parse(s string) Amount {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Amount{raw: s, value: decimal.Zero, valid: false}
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Amount{raw: s, value: decimal.Zero, valid: false}
	}
	return Amount{raw: s, value: value, valid: true}
}

// FromDecimal wraps an already-parsed decimal value.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount{raw: d.String(), value: d, valid: true}
}

// Decimal returns the parsed value. ok is false when the amount was
// absent or unparseable.
func (a Amount) Decimal() (decimal.Decimal, bool) {
	return a.value, a.valid
}

// Valid reports whether the amount carried a parseable decimal string.
func (a Amount) Valid() bool { return a.valid }

// IsZero reports whether the amount is a parseable, exact zero.
// Invalid amounts are never zero: checkout must fail safe toward the
// payment step rather than skip it on garbage input.
func (a Amount) IsZero() bool {
	return a.valid && a.value.IsZero()
}

// Equal compares two amounts by numeric value. Invalid amounts compare
// equal only on identical raw strings.
func (a Amount) Equal(b Amount) bool {
	if a.valid && b.valid {
		return a.value.Equal(b.value)
	}
	return a.raw == b.raw
}

// String returns the raw wire form when present, else the parsed value.
func (a Amount) String() string {
	if a.raw != "" {
		return a.raw
	}
	return a.value.String()
}

// MarshalJSON writes the amount back in its wire form.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a JSON string or a bare number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Some endpoints emit numbers instead of strings.
		var f json.Number
		if numErr := json.Unmarshal(data, &f); numErr != nil {
			*a = Amount{raw: string(data), value: decimal.Zero, valid: false}
			return nil
		}
		s = f.String()
	}
	*a = Parse(s)
	return nil
}
