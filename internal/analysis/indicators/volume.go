package indicators

import (
	"signal-trader/internal/models"
	"signal-trader/internal/timeframe"
)

// VWAP returns the volume-weighted typical price of the candles that fall in
// the calendar period containing the last candle. Candles with non-positive
// volume are skipped. The result is undefined for empty input, an unknown
// period or zero total volume.
func VWAP(candles []models.Candle, period timeframe.Period) Value {
	if len(candles) == 0 {
		return None
	}
	start, err := timeframe.PeriodStart(candles[len(candles)-1].Timestamp, period)
	if err != nil {
		return None
	}

	first := len(candles)
	for first > 0 && candles[first-1].Timestamp >= start {
		first--
	}
	return weightedTypicalPrice(candles[first:])
}

// DailyVWAP anchors at the UTC day start.
func DailyVWAP(candles []models.Candle) Value {
	return VWAP(candles, timeframe.PeriodDay)
}

// WeeklyVWAP anchors at the UTC Monday start.
func WeeklyVWAP(candles []models.Candle) Value {
	return VWAP(candles, timeframe.PeriodWeek)
}

// MonthlyVWAP anchors at the UTC month start.
func MonthlyVWAP(candles []models.Candle) Value {
	return VWAP(candles, timeframe.PeriodMonth)
}

// RollingVWAP uses the trailing period candles instead of a calendar anchor.
func RollingVWAP(candles []models.Candle, period int) Value {
	if period <= 0 || len(candles) == 0 {
		return None
	}
	if len(candles) > period {
		candles = candles[len(candles)-period:]
	}
	return weightedTypicalPrice(candles)
}

// VWAPSeries returns the anchored VWAP as of each candle, aligned with input.
func VWAPSeries(candles []models.Candle, period timeframe.Period) []Value {
	result := make([]Value, len(candles))
	var pv, vol float64
	var anchor int64 = -1
	for i, c := range candles {
		start, err := timeframe.PeriodStart(c.Timestamp, period)
		if err != nil {
			return make([]Value, len(candles))
		}
		if start != anchor {
			anchor, pv, vol = start, 0, 0
		}
		if c.Volume > 0 {
			pv += c.TypicalPrice() * c.Volume
			vol += c.Volume
		}
		if vol > 0 {
			result[i] = Some(pv / vol)
		}
	}
	return result
}

func weightedTypicalPrice(candles []models.Candle) Value {
	var pv, vol float64
	for _, c := range candles {
		if c.Volume <= 0 {
			continue
		}
		pv += c.TypicalPrice() * c.Volume
		vol += c.Volume
	}
	if vol <= 0 {
		return None
	}
	return Some(pv / vol)
}
