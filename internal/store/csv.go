package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/gocarina/gocsv"

	"signal-trader/internal/models"
	"signal-trader/internal/timeframe"
)

// csvCandle is one CSV row. Symbol and timeframe columns are optional.
type csvCandle struct {
	Symbol    string  `csv:"symbol"`
	Timeframe string  `csv:"timeframe"`
	Timestamp int64   `csv:"timestamp"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    float64 `csv:"volume"`
}

// ReadCSV parses candles from r. Rows without symbol or timeframe take the
// given defaults. A row's timeframe matches when it names the same length
// as tf, so 1H and 60m rows both load into 1h. The result is sorted by
// timestamp.
func ReadCSV(r io.Reader, symbol, tf string) ([]models.Candle, error) {
	var rows []*csvCandle
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parsing candle csv: %w", err)
	}

	spec, err := timeframe.Parse(tf)
	if err != nil {
		return nil, err
	}
	name := spec.String()

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if row.Symbol == "" {
			row.Symbol = symbol
		}
		if row.Symbol != symbol || !sameTimeframe(row.Timeframe, spec.Ms) {
			continue
		}
		candles = append(candles, models.Candle{
			Symbol:    row.Symbol,
			Timeframe: name,
			Timestamp: row.Timestamp,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Timestamp < candles[j].Timestamp
	})
	return candles, nil
}

func sameTimeframe(label string, ms int64) bool {
	if label == "" {
		return true
	}
	got, err := timeframe.ToMs(label)
	return err == nil && got == ms
}

// ImportCSV loads a CSV file into the candle archive and returns the
// number of candles stored.
func ImportCSV(ctx context.Context, s CandleStore, path, symbol, tf string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	candles, err := ReadCSV(f, symbol, tf)
	if err != nil {
		return 0, err
	}
	if err := s.SaveCandles(ctx, symbol, tf, candles); err != nil {
		return 0, err
	}
	return len(candles), nil
}

// ExportCSV writes the stored candles with from <= timestamp <= to as CSV
// and returns how many were written. A zero to means unbounded.
func ExportCSV(ctx context.Context, s CandleStore, w io.Writer, symbol, tf string, from, to int64) (int, error) {
	candles, err := s.GetCandles(ctx, symbol, tf, from, to)
	if err != nil {
		return 0, err
	}
	if err := WriteCSV(w, candles); err != nil {
		return 0, fmt.Errorf("writing candle csv: %w", err)
	}
	return len(candles), nil
}

// WriteCSV writes candles with a header row.
func WriteCSV(w io.Writer, candles []models.Candle) error {
	return gocsv.Marshal(candles, w)
}
