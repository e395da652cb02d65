// Package money implements DKK amounts as integer øre (minor units).
// All ledger arithmetic is int64 to avoid floating-point drift; decimal
// conversion happens only at serialization boundaries (API, export,
// settlement ingestion).
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a DKK amount in øre. Signed: credits positive, debits negative.
type Amount int64

const (
	// OrePerKrone is the minor-unit scale for DKK.
	OrePerKrone = 100
)

var oreScale = decimal.NewFromInt(OrePerKrone)

// FromDKK converts a decimal DKK amount to øre. Fails if the value carries
// sub-øre precision (would be lossy).
func FromDKK(d decimal.Decimal) (Amount, error) {
	ore := d.Mul(oreScale)
	if !ore.IsInteger() {
		return 0, fmt.Errorf("amount %s has sub-øre precision", d.String())
	}
	if !ore.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s out of range", d.String())
	}
	return Amount(ore.IntPart()), nil
}

// ParseDKK parses a decimal DKK string ("123.45") into øre.
func ParseDKK(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDKK(d)
}

// DKK returns the exact decimal DKK representation.
func (a Amount) DKK() decimal.Decimal {
	return decimal.NewFromInt(int64(a)).Div(oreScale)
}

// String renders the amount as a decimal DKK string with two places.
func (a Amount) String() string {
	return a.DKK().StringFixed(2)
}

// Abs returns the absolute value.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// ClampFee computes a bounded percentage fee: amount * rateBps / 10_000,
// clamped into [min, max]. Integer arithmetic, truncating toward zero.
func ClampFee(amount Amount, rateBps int64, min, max Amount) Amount {
	fee := Amount(int64(amount) * rateBps / 10_000)
	if fee < min {
		fee = min
	}
	if fee > max {
		fee = max
	}
	if fee > amount {
		fee = amount
	}
	return fee
}
