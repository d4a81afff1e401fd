// Package utils provides numeric rounding and retry helpers.
package utils

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds v half away from zero to the given number of decimal places.
// Rounding goes through a decimal so that values such as 1.005 round the way
// their printed form suggests. Non-finite values are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// RoundPrice rounds a monetary value to 2 decimal places.
func RoundPrice(v float64) float64 {
	return Round(v, 2)
}

// RoundSize rounds a position size to 6 decimal places.
func RoundSize(v float64) float64 {
	return Round(v, 6)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
