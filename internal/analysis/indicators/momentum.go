package indicators

import "math"

// DefaultRSIPeriod is the conventional Wilder RSI length.
const DefaultRSIPeriod = 14

// RSI returns the Wilder-smoothed relative strength index of values at the
// last index, rounded to 2 places. It is 100 when the average loss is zero.
func RSI(values []float64, period int) Value {
	if period <= 0 || len(values) < period+1 {
		return None
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	p := float64(period)
	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		return Some(100)
	}
	rs := avgGain / avgLoss
	rsi := 100 - 100/(1+rs)
	if math.IsNaN(rsi) {
		return None
	}
	return Some(round2(rsi))
}

// Sign classifies a delta.
type Sign string

const (
	SignPositive Sign = "positive"
	SignNegative Sign = "negative"
	SignNeutral  Sign = "neutral"
)

// FlipDirection is the direction of a delta sign change.
type FlipDirection string

const (
	FlipNone    FlipDirection = ""
	FlipBullish FlipDirection = "bullish"
	FlipBearish FlipDirection = "bearish"
)

func signOf(v Value) Sign {
	switch {
	case !v.Valid || v.Float == 0:
		return SignNeutral
	case v.Float > 0:
		return SignPositive
	default:
		return SignNegative
	}
}

// DeltaGammaResult is one delta/gamma reading.
type DeltaGammaResult struct {
	Delta         Value
	Gamma         Value
	Sign          Sign
	PrevSign      Sign
	Flip          bool
	FlipDirection FlipDirection
}

// DeltaGamma computes delta = price - vwap and gamma = delta - prevDelta.
// prevDelta may be undefined, in which case gamma is undefined and no flip is
// reported. A flip needs both signs non-neutral and different.
func DeltaGamma(price, vwap, prevDelta Value) DeltaGammaResult {
	delta := price.Sub(vwap)
	r := DeltaGammaResult{
		Delta:    delta,
		Gamma:    delta.Sub(prevDelta),
		Sign:     signOf(delta),
		PrevSign: signOf(prevDelta),
	}
	if r.Sign != SignNeutral && r.PrevSign != SignNeutral && r.Sign != r.PrevSign {
		r.Flip = true
		if r.Sign == SignPositive {
			r.FlipDirection = FlipBullish
		} else {
			r.FlipDirection = FlipBearish
		}
	}
	return r
}

// DeltaGammaSeries applies DeltaGamma pairwise to aligned price and vwap
// series. Its length is min(len(prices), len(vwaps)).
func DeltaGammaSeries(prices []float64, vwaps []Value) []DeltaGammaResult {
	n := len(prices)
	if len(vwaps) < n {
		n = len(vwaps)
	}
	result := make([]DeltaGammaResult, n)
	prev := None
	for i := 0; i < n; i++ {
		result[i] = DeltaGamma(Some(prices[i]), vwaps[i], prev)
		prev = result[i].Delta
	}
	return result
}
