package indicators

// Default MACD lengths.
const (
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
)

// SMA returns the mean of the trailing period values, rounded to 6 places.
func SMA(values []float64, period int) Value {
	if period <= 0 || len(values) < period {
		return None
	}
	return Some(round6(mean(values[len(values)-period:])))
}

// EMA returns the exponential moving average of values at the last index.
func EMA(values []float64, length int) Value {
	series := EMASeries(values, length)
	if len(series) == 0 {
		return None
	}
	return series[len(series)-1]
}

// EMASeries returns the EMA aligned with values. Entries before index
// length-1 are undefined; the seed is the SMA of the first length values and
// each later value follows v' = (x - v)*k + v with k = 2/(length+1).
func EMASeries(values []float64, length int) []Value {
	if length <= 0 || len(values) < length {
		return make([]Value, len(values))
	}

	result := make([]Value, len(values))
	multiplier := 2.0 / float64(length+1)

	ema := mean(values[:length])
	result[length-1] = Some(ema)
	for i := length; i < len(values); i++ {
		ema = (values[i]-ema)*multiplier + ema
		result[i] = Some(ema)
	}

	return result
}

// MACDResult holds one MACD reading.
type MACDResult struct {
	MACD      Value
	Signal    Value
	Histogram Value
}

// MACD returns the MACD reading at the last index of values.
func MACD(values []float64, fast, slow, signal int) MACDResult {
	series := MACDSeries(values, fast, slow, signal)
	if len(series) == 0 {
		return MACDResult{}
	}
	return series[len(series)-1]
}

// MACDSeries returns MACD, signal and histogram aligned with values.
// macd = EMA(fast) - EMA(slow); signal = EMA(macd, signal); histogram =
// macd - signal. Each term is undefined wherever its inputs are.
func MACDSeries(values []float64, fast, slow, signal int) []MACDResult {
	result := make([]MACDResult, len(values))
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return result
	}

	fastEMA := EMASeries(values, fast)
	slowEMA := EMASeries(values, slow)

	macdLine := make([]Value, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i].Sub(slowEMA[i])
		result[i].MACD = macdLine[i]
	}

	defined, start := definedTail(macdLine)
	if start < 0 {
		return result
	}

	signalEMA := EMASeries(defined, signal)
	for i, s := range signalEMA {
		idx := start + i
		result[idx].Signal = s
		result[idx].Histogram = macdLine[idx].Sub(s)
	}

	return result
}
