package indicators

import "signal-trader/internal/models"

// DefaultATRPeriod is the conventional Wilder ATR length.
const DefaultATRPeriod = 14

// ATR returns the average true range at the last candle.
func ATR(candles []models.Candle, period int) Value {
	series := ATRSeries(candles, period)
	if len(series) == 0 {
		return None
	}
	return series[len(series)-1]
}

// ATRSeries returns the Wilder-smoothed ATR aligned with candles, each value
// rounded to 6 places. True range needs a previous close, so the first
// defined value is at index period and seeds from the mean of TR[1..period].
func ATRSeries(candles []models.Candle, period int) []Value {
	result := make([]Value, len(candles))
	if period <= 0 || len(candles) < period+1 {
		return result
	}

	tr := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		tr[i] = trueRange(candles[i], candles[i-1])
	}

	atr := mean(tr[1 : period+1])
	result[period] = Some(round6(atr))

	p := float64(period)
	for i := period + 1; i < len(candles); i++ {
		atr = (atr*(p-1) + tr[i]) / p
		result[i] = Some(round6(atr))
	}

	return result
}
