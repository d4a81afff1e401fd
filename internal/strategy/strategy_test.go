package strategy

import (
	"testing"

	"signal-trader/internal/analysis/indicators"
	"signal-trader/internal/config"
	"signal-trader/internal/models"
	"signal-trader/internal/snapshot"
)

const day = int64(1741564800000) // 2025-03-10T00:00:00Z

func buildSnapshot(t *testing.T, closes []float64) *snapshot.TickSnapshot {
	t.Helper()
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{
			Symbol: "BTC/USDT", Timeframe: "1m", Timestamp: day + int64(i)*60_000,
			Open: c, High: c, Low: c, Close: c, Volume: 1,
		}
	}
	snap, err := snapshot.Build(snapshot.Input{
		Symbol:             "BTC/USDT",
		ExecutionTimeframe: "1m",
		ExecutionCandle:    candles[len(candles)-1],
		Series:             map[string][]models.Candle{"1m": candles},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return snap
}

func declineThen(last float64) []float64 {
	closes := make([]float64, 0, 31)
	for i := 0; i < 30; i++ {
		closes = append(closes, 120-float64(i)*0.7)
	}
	return append(closes, last)
}

func TestVWAPFlipNoSignal(t *testing.T) {
	s := NewVWAPFlip(config.StrategyConfig{})

	if got := s.Evaluate(buildSnapshot(t, []float64{100})); got.Action != models.IntentNoAction {
		t.Errorf("single candle: %v", got.Action)
	}
	// Steady decline stays below VWAP.
	if got := s.Evaluate(buildSnapshot(t, declineThen(99))); got.Action != models.IntentNoAction {
		t.Errorf("no flip expected, got %v", got.Action)
	}
}

func TestVWAPFlipBullish(t *testing.T) {
	s := NewVWAPFlip(config.StrategyConfig{})
	closes := declineThen(130)

	got := s.Evaluate(buildSnapshot(t, closes))

	// 31 closes fit inside the default forecast window.
	forecast, _ := indicators.AR4Forecast(closes).Get()
	rsi, _ := indicators.RSI(closes, indicators.DefaultRSIPeriod).Get()

	want := models.IntentCloseShort
	if forecast > 130 && rsi < 70 {
		want = models.IntentOpenLong
	}
	if got.Action != want {
		t.Errorf("action = %v, want %v (forecast %v, rsi %v)", got.Action, want, forecast, rsi)
	}
}

func TestVWAPFlipBearish(t *testing.T) {
	s := NewVWAPFlip(config.StrategyConfig{RSIOverbought: 100, RSIOversold: 0})
	closes := make([]float64, 0, 31)
	for i := 0; i < 30; i++ {
		closes = append(closes, 100+float64(i)*0.7)
	}
	closes = append(closes, 90)

	got := s.Evaluate(buildSnapshot(t, closes))

	forecast, _ := indicators.AR4Forecast(closes).Get()
	want := models.IntentCloseLong
	if forecast < 90 {
		want = models.IntentOpenShort
	}
	if got.Action != want {
		t.Errorf("action = %v, want %v (forecast %v)", got.Action, want, forecast)
	}
}

func TestReconcile(t *testing.T) {
	long := models.AccountState{Positions: []models.Position{{Symbol: "BTC/USDT", Side: models.PositionLong, Contracts: 1}}}
	short := models.AccountState{Positions: []models.Position{{Symbol: "BTC/USDT", Side: models.PositionShort, Contracts: 1}}}

	tests := []struct {
		name    string
		action  models.IntentAction
		account models.AccountState
		want    models.IntentAction
	}{
		{"short against long", models.IntentOpenShort, long, models.IntentCloseLong},
		{"long against short", models.IntentOpenLong, short, models.IntentCloseShort},
		{"same side unchanged", models.IntentOpenLong, long, models.IntentOpenLong},
		{"flat unchanged", models.IntentOpenShort, models.AccountState{}, models.IntentOpenShort},
		{"close unchanged", models.IntentCloseLong, long, models.IntentCloseLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(models.TradeIntent{Symbol: "BTC/USDT", Action: tt.action}, tt.account)
			if got.Action != tt.want {
				t.Errorf("got %v, want %v", got.Action, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	if s, err := New(config.StrategyConfig{Name: "vwap_flip"}); err != nil || s.Name() != "vwap_flip" {
		t.Errorf("New(vwap_flip) = %v, %v", s, err)
	}
	if _, err := New(config.StrategyConfig{Name: "martingale"}); err == nil {
		t.Errorf("unknown strategy should fail")
	}
}
