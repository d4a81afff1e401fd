// Package indicators provides technical indicator and forecast calculations
// over time-ascending price sequences.
package indicators

import (
	"math"

	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

// Value is an indicator reading that is undefined until enough history exists.
type Value struct {
	Float float64
	Valid bool
}

// Some wraps a defined reading.
func Some(v float64) Value {
	return Value{Float: v, Valid: true}
}

// None is the undefined reading.
var None = Value{}

// Get returns the reading and whether it is defined.
func (v Value) Get() (float64, bool) {
	return v.Float, v.Valid
}

// Sub returns v - o, undefined if either side is.
func (v Value) Sub(o Value) Value {
	if !v.Valid || !o.Valid {
		return None
	}
	return Some(v.Float - o.Float)
}

// definedTail returns the defined readings of a series in order, and the index of
// the first defined reading (-1 when none).
func definedTail(series []Value) ([]float64, int) {
	start := -1
	for i, v := range series {
		if v.Valid {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, -1
	}
	out := make([]float64, 0, len(series)-start)
	for _, v := range series[start:] {
		if !v.Valid {
			return nil, -1
		}
		out = append(out, v.Float)
	}
	return out, start
}

// sum calculates the sum of a slice of float64.
func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// mean calculates the arithmetic mean of a slice of float64.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// trueRange calculates the true range for a candle.
func trueRange(current, previous models.Candle) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)
	return math.Max(highLow, math.Max(highClose, lowClose))
}

// ClosePrices extracts close prices from candles.
func ClosePrices(candles []models.Candle) []float64 {
	prices := make([]float64, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
	}
	return prices
}

func round6(v float64) float64 {
	return utils.Round(v, 6)
}

func round2(v float64) float64 {
	return utils.Round(v, 2)
}
