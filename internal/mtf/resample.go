package mtf

import (
	"fmt"

	"signal-trader/internal/models"
	"signal-trader/internal/timeframe"
)

// Resample aggregates time-ascending candles into target timeframe buckets.
// Each output candle opens with the first input in its bucket, closes with
// the last, and carries the extreme high/low and summed volume. The target
// must be at least as long as the input timeframe. A trailing bucket that is
// not yet complete is still emitted; callers replaying history use
// CompleteBefore to drop it.
func Resample(candles []models.Candle, target string) ([]models.Candle, error) {
	spec, err := timeframe.Parse(target)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, nil
	}

	if srcMs, err := timeframe.ToMs(candles[0].Timeframe); err == nil && srcMs > spec.Ms {
		return nil, fmt.Errorf("cannot resample %s candles into shorter %s", candles[0].Timeframe, spec)
	}

	out := make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		bucket, err := timeframe.Bucket(c.Timestamp, spec.Ms)
		if err != nil {
			return nil, err
		}

		if n := len(out); n > 0 && out[n-1].Timestamp == bucket {
			cur := &out[n-1]
			if c.High > cur.High {
				cur.High = c.High
			}
			if c.Low < cur.Low {
				cur.Low = c.Low
			}
			cur.Close = c.Close
			cur.Volume += c.Volume
			continue
		}
		if n := len(out); n > 0 && bucket < out[n-1].Timestamp {
			return nil, fmt.Errorf("input not ascending at %d", c.Timestamp)
		}

		out = append(out, models.Candle{
			Symbol:    c.Symbol,
			Timeframe: spec.String(),
			Timestamp: bucket,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		})
	}

	return out, nil
}

// CompleteBefore returns the prefix of candles whose bucket closes at or
// before cutoff (epoch ms).
func CompleteBefore(candles []models.Candle, cutoff int64) []models.Candle {
	for i, c := range candles {
		tfMs, err := timeframe.ToMs(c.Timeframe)
		if err != nil || timeframe.CloseTime(c.Timestamp, tfMs) > cutoff {
			return candles[:i]
		}
	}
	return candles
}
