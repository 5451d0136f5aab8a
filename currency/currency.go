// Package currency converts between user-facing decimal amounts and the
// integer cents every other package computes with.
package currency

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ToCents converts a decimal amount to integer cents, rounding half away
// from zero. A plain cast is wrong here: 17.4*100 evaluates to 1739.999...
// in binary floating point and would truncate to 1739.
func ToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

// ToDecimal converts integer cents to a decimal amount. Only used for
// output; no arithmetic happens on the result.
func ToDecimal(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}
