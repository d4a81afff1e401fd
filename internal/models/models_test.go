package models

import (
	"errors"
	"testing"

	xerrors "signal-trader/internal/errors"
)

func TestTradePlanValidate(t *testing.T) {
	tests := []struct {
		name    string
		plan    TradePlan
		wantErr bool
	}{
		{
			name: "valid long open",
			plan: TradePlan{Action: PlanOpen, PositionSide: PositionLong, Side: OrderSideBuy, Amount: 1,
				EntryPrice: 100, StopLossPrice: Float(99), TakeProfitPrice: Float(102)},
		},
		{
			name: "valid short open",
			plan: TradePlan{Action: PlanOpen, PositionSide: PositionShort, Side: OrderSideSell, Amount: 1,
				EntryPrice: 100, StopLossPrice: Float(101), TakeProfitPrice: Float(98)},
		},
		{
			name: "long stop above entry",
			plan: TradePlan{Action: PlanOpen, PositionSide: PositionLong, Amount: 1,
				EntryPrice: 100, StopLossPrice: Float(101), TakeProfitPrice: Float(102)},
			wantErr: true,
		},
		{
			name: "short take-profit at zero",
			plan: TradePlan{Action: PlanOpen, PositionSide: PositionShort, Side: OrderSideSell, Amount: 1,
				EntryPrice: 100, StopLossPrice: Float(101), TakeProfitPrice: Float(0)},
			wantErr: true,
		},
		{
			name:    "open without bracket",
			plan:    TradePlan{Action: PlanOpen, PositionSide: PositionLong, Amount: 1, EntryPrice: 100},
			wantErr: true,
		},
		{
			name:    "zero amount",
			plan:    TradePlan{Action: PlanClose, Amount: 0, ReduceOnly: true},
			wantErr: true,
		},
		{
			name:    "close not reduce-only",
			plan:    TradePlan{Action: PlanClose, Amount: 2},
			wantErr: true,
		},
		{
			name: "valid close",
			plan: TradePlan{Action: PlanClose, Side: OrderSideSell, PositionSide: PositionLong, Amount: 2, ReduceOnly: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.wantErr {
				if !errors.Is(err, xerrors.ErrInvalidPlan) {
					t.Fatalf("expected ErrInvalidPlan, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestAccountStateQueries(t *testing.T) {
	acct := AccountState{
		BalanceUSDT: 1000,
		Positions: []Position{
			{Symbol: "BTC/USDT", Side: PositionLong, Contracts: 0.5, UnrealizedPnL: 25},
			{Symbol: "ETH/USDT", Side: PositionFlat, Contracts: 0},
			{Symbol: "SOL/USDT", Side: PositionShort, Contracts: 3, UnrealizedPnL: -10},
		},
	}

	if got := acct.Equity(); got != 1015 {
		t.Errorf("Equity() = %v, want 1015", got)
	}
	if got := acct.OpenPositionCount(); got != 2 {
		t.Errorf("OpenPositionCount() = %d, want 2", got)
	}
	if _, ok := acct.Position("ETH/USDT"); ok {
		t.Errorf("flat position should not be reported as open")
	}
	if p, ok := acct.Position("SOL/USDT"); !ok || p.Side != PositionShort {
		t.Errorf("expected short SOL position, got %+v", p)
	}
}

func TestIntentActionValid(t *testing.T) {
	if !IntentOpenShort.Valid() || IntentAction("HEDGE").Valid() {
		t.Errorf("Valid() mismatch")
	}
	if OrderSideBuy.Opposite() != OrderSideSell || OrderSideSell.Opposite() != OrderSideBuy {
		t.Errorf("Opposite() mismatch")
	}
}
