// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"signal-trader/internal/models"
)

// CandleStore archives candles for replay.
type CandleStore interface {
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	// GetCandles returns candles with from <= timestamp <= to (epoch ms),
	// ascending. A zero to means unbounded.
	GetCandles(ctx context.Context, symbol, timeframe string, from, to int64) ([]models.Candle, error)
	LatestTimestamp(ctx context.Context, symbol, timeframe string) (int64, bool, error)
	Close() error
}

// TradeStore records realized round trips.
type TradeStore interface {
	SaveClosedTrade(ctx context.Context, runID string, trade models.ClosedTrade) error
	GetClosedTrades(ctx context.Context, filter TradeFilter) ([]models.ClosedTrade, error)
}

// TradeFilter represents filters for querying trades.
type TradeFilter struct {
	RunID  string
	Symbol string
	Limit  int
}
