// Package snapshot assembles the read-only per-tick view handed to
// strategies. It is the alignment gate for the rest of the pipeline.
package snapshot

import (
	"fmt"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
	"signal-trader/internal/mtf"
	"signal-trader/internal/timeframe"
)

// Input is everything needed to build one TickSnapshot.
type Input struct {
	Symbol             string
	SignalVenue        string
	ExecutionTimeframe string
	ExecutionCandle    models.Candle
	Series             map[string][]models.Candle
}

// TickSnapshot is the composite view of one evaluation cycle. Its series
// are private copies; nothing it returns aliases cache storage.
type TickSnapshot struct {
	Symbol             string
	SignalVenue        string
	ExecutionTimeframe string
	ExecutionCandle    models.Candle
	series             map[string][]models.Candle
}

// Build validates that the execution candle is aligned to the execution
// timeframe and returns the snapshot.
func Build(in Input) (*TickSnapshot, error) {
	spec, err := timeframe.Parse(in.ExecutionTimeframe)
	if err != nil {
		return nil, err
	}
	if err := timeframe.AssertAligned(in.ExecutionCandle.Timestamp, spec.Ms, "executionCandle"); err != nil {
		return nil, err
	}

	series := make(map[string][]models.Candle, len(in.Series))
	for tf, candles := range in.Series {
		name, err := timeframe.Normalize(tf)
		if err != nil {
			return nil, err
		}
		cp := make([]models.Candle, len(candles))
		copy(cp, candles)
		series[name] = cp
	}

	return &TickSnapshot{
		Symbol:             in.Symbol,
		SignalVenue:        in.SignalVenue,
		ExecutionTimeframe: spec.String(),
		ExecutionCandle:    in.ExecutionCandle,
		series:             series,
	}, nil
}

// FromCache builds a snapshot from the cache's latest execution candle and
// every tracked series.
func FromCache(cache *mtf.Cache, venue, executionTimeframe string) (*TickSnapshot, error) {
	latest, ok, err := cache.Latest(executionTimeframe)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewDataError("candles", cache.Symbol(),
			fmt.Sprintf("no %s candle cached", executionTimeframe), errors.ErrDataNotFound)
	}

	return Build(Input{
		Symbol:             cache.Symbol(),
		SignalVenue:        venue,
		ExecutionTimeframe: executionTimeframe,
		ExecutionCandle:    latest,
		Series:             cache.Snapshot(),
	})
}

// Series returns a copy of the series for tf, or nil if it is absent.
func (s *TickSnapshot) Series(tf string) []models.Candle {
	name, err := timeframe.Normalize(tf)
	if err != nil {
		return nil
	}
	candles, ok := s.series[name]
	if !ok {
		return nil
	}
	out := make([]models.Candle, len(candles))
	copy(out, candles)
	return out
}

// Timeframes lists the timeframes present in the snapshot.
func (s *TickSnapshot) Timeframes() []string {
	out := make([]string, 0, len(s.series))
	for tf := range s.series {
		out = append(out, tf)
	}
	return out
}


// LastPrice is the execution candle's close.
func (s *TickSnapshot) LastPrice() float64 {
	return s.ExecutionCandle.Close
}
