// Package types provides common type aliases and utilities.
package types

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// LenientDecimal decodes a JSON number or string. Null, empty and
// unparsable input decode to zero instead of failing, so a half-filled draft
// form can always be saved and recalculated.
type LenientDecimal struct {
	decimal.Decimal
}

// NewLenient wraps d.
func NewLenient(d decimal.Decimal) LenientDecimal {
	return LenientDecimal{Decimal: d}
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *LenientDecimal) UnmarshalJSON(data []byte) error {
	v, _ := parseLenient(data)
	d.Decimal = v
	return nil
}

// MarshalJSON encodes the value as a JSON string.
func (d LenientDecimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Decimal.String())
}

// OptionalDecimal is a decimal that may be "not specified".
// Null, empty and unparsable input leave it unset.
type OptionalDecimal struct {
	Decimal decimal.Decimal
	Valid   bool
}

// NewOptional returns a set OptionalDecimal.
func NewOptional(d decimal.Decimal) OptionalDecimal {
	return OptionalDecimal{Decimal: d, Valid: true}
}

// Ptr returns nil when unset.
func (o OptionalDecimal) Ptr() *decimal.Decimal {
	if !o.Valid {
		return nil
	}
	d := o.Decimal
	return &d
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalDecimal) UnmarshalJSON(data []byte) error {
	o.Decimal, o.Valid = parseLenient(data)
	return nil
}

// MarshalJSON encodes null when unset.
func (o OptionalDecimal) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Decimal.String())
}

// Bounds of values accepted from operator input. Anything outside them is
// treated as malformed, which also keeps rendering and rounding cheap.
const (
	MaxIntegerDigits  = 18
	MaxFractionDigits = 28
)

// parseLenient accepts either a JSON number or string, with optional
// thousands separators. ok is false when nothing usable was found.
func parseLenient(data []byte) (decimal.Decimal, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return decimal.Zero, false
	}

	s := string(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return decimal.Zero, false
		}
	}

	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(s)
	if err != nil || !withinBounds(v) {
		return decimal.Zero, false
	}
	return v, true
}

// withinBounds checks the exponent before anything scales the coefficient.
func withinBounds(v decimal.Decimal) bool {
	exp := int64(v.Exponent())
	if exp < -MaxFractionDigits || exp > MaxIntegerDigits {
		return false
	}
	return int64(v.NumDigits())+exp <= MaxIntegerDigits
}
