// Package strategy derives trade intents from tick snapshots.
package strategy

import (
	"fmt"

	"signal-trader/internal/analysis/indicators"
	"signal-trader/internal/config"
	"signal-trader/internal/models"
	"signal-trader/internal/snapshot"
	"signal-trader/internal/timeframe"
)

// Strategy maps one snapshot to one intent. Implementations are stateless
// with respect to positions; the pipeline reconciles intents against the
// account before planning.
type Strategy interface {
	Name() string
	Evaluate(snap *snapshot.TickSnapshot) models.TradeIntent
}

// New returns the strategy named in cfg.
func New(cfg config.StrategyConfig) (Strategy, error) {
	switch cfg.Name {
	case "", "vwap_flip":
		return NewVWAPFlip(cfg), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Name)
	}
}

// VWAPFlip trades daily VWAP delta sign flips on the execution timeframe.
//
// A bullish flip opens long when the AR4 forecast points up and RSI is
// below the overbought level; otherwise it closes any short. Bearish flips
// are the mirror image.
type VWAPFlip struct {
	rsiPeriod      int
	overbought     float64
	oversold       float64
	forecastWindow int
}

// NewVWAPFlip creates the strategy, filling zero values with defaults.
func NewVWAPFlip(cfg config.StrategyConfig) *VWAPFlip {
	s := &VWAPFlip{
		rsiPeriod:      cfg.RSIPeriod,
		overbought:     cfg.RSIOverbought,
		oversold:       cfg.RSIOversold,
		forecastWindow: cfg.ForecastWindow,
	}
	if s.rsiPeriod <= 0 {
		s.rsiPeriod = indicators.DefaultRSIPeriod
	}
	if s.overbought == 0 && s.oversold == 0 {
		s.overbought, s.oversold = 70, 30
	}
	if s.forecastWindow < indicators.AR4MinObs {
		s.forecastWindow = 50
	}
	return s
}

// Name implements Strategy.
func (s *VWAPFlip) Name() string {
	return "vwap_flip"
}

// Evaluate implements Strategy.
func (s *VWAPFlip) Evaluate(snap *snapshot.TickSnapshot) models.TradeIntent {
	candles := snap.Series(snap.ExecutionTimeframe)
	if len(candles) < 2 {
		return models.NoAction(snap.Symbol, "insufficient history")
	}

	vwaps := indicators.VWAPSeries(candles, timeframe.PeriodDay)
	closes := indicators.ClosePrices(candles)
	n := len(closes)

	dg := indicators.DeltaGammaSeries(closes[n-2:], vwaps[n-2:])
	last := dg[len(dg)-1]
	if !last.Flip {
		return models.NoAction(snap.Symbol, "no flip")
	}

	window := closes
	if len(window) > s.forecastWindow {
		window = window[len(window)-s.forecastWindow:]
	}
	forecast, ok := indicators.AR4Forecast(window).Get()
	if !ok {
		return models.NoAction(snap.Symbol, "forecast unavailable")
	}
	price := closes[n-1]

	rsi, rsiOK := indicators.RSI(closes, s.rsiPeriod).Get()

	switch last.FlipDirection {
	case indicators.FlipBullish:
		if forecast > price && rsiOK && rsi < s.overbought {
			return models.TradeIntent{
				Symbol: snap.Symbol,
				Action: models.IntentOpenLong,
				Reason: fmt.Sprintf("bullish vwap flip, forecast %.2f > %.2f, rsi %.2f", forecast, price, rsi),
			}
		}
		return models.TradeIntent{Symbol: snap.Symbol, Action: models.IntentCloseShort, Reason: "bullish vwap flip"}
	case indicators.FlipBearish:
		if forecast < price && rsiOK && rsi > s.oversold {
			return models.TradeIntent{
				Symbol: snap.Symbol,
				Action: models.IntentOpenShort,
				Reason: fmt.Sprintf("bearish vwap flip, forecast %.2f < %.2f, rsi %.2f", forecast, price, rsi),
			}
		}
		return models.TradeIntent{Symbol: snap.Symbol, Action: models.IntentCloseLong, Reason: "bearish vwap flip"}
	}
	return models.NoAction(snap.Symbol, "no flip")
}

// Reconcile adapts intent to the held position: an open against an
// opposite position becomes a close of that position.
func Reconcile(intent models.TradeIntent, account models.AccountState) models.TradeIntent {
	pos, ok := account.Position(intent.Symbol)
	if !ok {
		return intent
	}
	switch {
	case intent.Action == models.IntentOpenLong && pos.Side == models.PositionShort:
		intent.Action = models.IntentCloseShort
	case intent.Action == models.IntentOpenShort && pos.Side == models.PositionLong:
		intent.Action = models.IntentCloseLong
	}
	return intent
}
