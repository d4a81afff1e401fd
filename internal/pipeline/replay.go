package pipeline

import (
	"context"
	"fmt"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
	"signal-trader/internal/mtf"
	"signal-trader/internal/timeframe"
)

// Replay drives Step from archived execution-timeframe candles. For each
// candle the broker first fills resting orders against it, then the candle
// and every higher-timeframe bucket that closed with it are appended to the
// cache, then one Step runs. A higher-timeframe candle only becomes visible
// once its bucket has closed.
func (r *Runner) Replay(ctx context.Context, candles []models.Candle) (*Report, error) {
	marker, ok := r.broker.(CandleMarker)
	if !ok {
		return nil, fmt.Errorf("pipeline: replay needs a broker that simulates fills")
	}

	exec, err := timeframe.Parse(r.cfg.ExecutionTimeframe)
	if err != nil {
		return nil, err
	}

	var higher []string
	for _, tf := range r.cache.Timeframes() {
		spec, _ := timeframe.Parse(tf)
		switch {
		case spec.Ms == exec.Ms:
		case spec.Ms < exec.Ms:
			return nil, fmt.Errorf("pipeline: cannot derive %s from %s candles", tf, exec)
		case spec.Ms%exec.Ms != 0:
			return nil, fmt.Errorf("pipeline: %s is not a whole multiple of %s", tf, exec)
		default:
			higher = append(higher, tf)
		}
	}

	agg := newAggregator(higher)
	report := newReport(r.ledger)

	for _, c := range candles {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if c.Timeframe == "" {
			c.Timeframe = exec.String()
		}
		if c.Symbol == "" {
			c.Symbol = r.cache.Symbol()
		}

		marker.OnCandle(c)

		if err := r.cache.Append(c); err != nil {
			return report, err
		}
		closed, err := agg.add(c, exec.Ms)
		if err != nil {
			return report, err
		}
		for _, hc := range closed {
			if err := r.cache.Append(hc); err != nil {
				return report, err
			}
		}

		res, err := r.Step(ctx)
		report.addStep(res)
		if err != nil {
			var partial *errors.PartialExecutionError
			var orderErr *errors.OrderError
			if errors.As(err, &partial) || errors.As(err, &orderErr) ||
				errors.Is(err, errors.ErrNoPositionToClose) || errors.Is(err, errors.ErrPositionExists) {
				r.logger.Warn().Err(err).Int64("timestamp", c.Timestamp).Msg("Replay step failed")
				continue
			}
			return report, err
		}
	}

	report.finish()
	return report, nil
}

// aggregator buffers execution candles per higher timeframe until the
// bucket closes.
type aggregator struct {
	tfs     []string
	tfMs    map[string]int64
	pending map[string][]models.Candle
}

func newAggregator(tfs []string) *aggregator {
	a := &aggregator{
		tfs:     tfs,
		tfMs:    make(map[string]int64, len(tfs)),
		pending: make(map[string][]models.Candle, len(tfs)),
	}
	for _, tf := range tfs {
		a.tfMs[tf], _ = timeframe.ToMs(tf)
	}
	return a
}

// add buffers c and returns the higher-timeframe candles whose bucket
// closes at c's close. A bucket left incomplete by a gap in the data is
// emitted when the next bucket starts.
func (a *aggregator) add(c models.Candle, execMs int64) ([]models.Candle, error) {
	var out []models.Candle
	for _, tf := range a.tfs {
		tfMs := a.tfMs[tf]
		bucket, err := timeframe.Bucket(c.Timestamp, tfMs)
		if err != nil {
			return nil, err
		}

		buf := a.pending[tf]
		if len(buf) > 0 && buf[0].Timestamp < bucket {
			hc, err := a.flush(tf)
			if err != nil {
				return nil, err
			}
			out = append(out, hc)
		}
		a.pending[tf] = append(a.pending[tf], c)

		if timeframe.CloseTime(c.Timestamp, execMs) >= timeframe.CloseTime(bucket, tfMs) {
			hc, err := a.flush(tf)
			if err != nil {
				return nil, err
			}
			out = append(out, hc)
		}
	}
	return out, nil
}

func (a *aggregator) flush(tf string) (models.Candle, error) {
	buf := a.pending[tf]
	a.pending[tf] = nil
	resampled, err := mtf.Resample(buf, tf)
	if err != nil {
		return models.Candle{}, err
	}
	return resampled[0], nil
}
