package account

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"signal-trader/internal/models"
)

func TestRegisterClosedTrades(t *testing.T) {
	p := NewPaper(1000)

	p.RegisterClosedTrade(models.ClosedTrade{Symbol: "BTC/USDT", RealizedPnL: 50})
	snap := p.RegisterClosedTrade(models.ClosedTrade{Symbol: "BTC/USDT", RealizedPnL: -20})

	if snap.Balance != 1030 {
		t.Errorf("Balance = %v, want 1030", snap.Balance)
	}
	if snap.Wins != 1 || snap.Losses != 1 || snap.Breakeven != 0 || snap.TotalTrades != 2 {
		t.Errorf("counters = %+v", snap)
	}
	if snap.LastTrade == nil || snap.LastTrade.RealizedPnL != -20 {
		t.Errorf("LastTrade = %+v", snap.LastTrade)
	}

	final := p.Snapshot(0)
	if final.MaxEquity != 1050 {
		t.Errorf("MaxEquity = %v, want 1050", final.MaxEquity)
	}
	if final.MaxDrawdown != final.MaxEquity-1030 {
		t.Errorf("MaxDrawdown = %v, want %v", final.MaxDrawdown, final.MaxEquity-1030)
	}
}

func TestBreakevenAndUnrealized(t *testing.T) {
	p := NewPaper(500)
	snap := p.RegisterClosedTrade(models.ClosedTrade{RealizedPnL: 0})
	if snap.Breakeven != 1 || snap.Wins != 0 || snap.Losses != 0 {
		t.Errorf("breakeven not counted: %+v", snap)
	}

	snap = p.Snapshot(25)
	if snap.Equity != 525 || snap.Balance != 500 || snap.MaxEquity != 525 || snap.MaxDrawdown != 0 {
		t.Errorf("snapshot(25) = %+v", snap)
	}
	snap = p.Snapshot(-10)
	if snap.Equity != 490 || snap.MaxEquity != 525 || snap.MaxDrawdown != 35 {
		t.Errorf("snapshot(-10) = %+v", snap)
	}
	if p.WinRate() != 0 {
		t.Errorf("WinRate = %v", p.WinRate())
	}
}

func TestSnapshotLastTradeIsCopy(t *testing.T) {
	p := NewPaper(100)
	snap := p.RegisterClosedTrade(models.ClosedTrade{RealizedPnL: 5})
	snap.LastTrade.RealizedPnL = 999
	if p.Snapshot(0).LastTrade.RealizedPnL != 5 {
		t.Errorf("snapshot aliases ledger state")
	}
}

// Property: max equity never decreases and drawdown is never negative.
func TestProperty_MaxEquityMonotone(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("max equity monotone, drawdown non-negative", prop.ForAll(
		func(pnls []float64) bool {
			p := NewPaper(1000)
			prevMax := 1000.0
			for i, pnl := range pnls {
				var snap models.AccountSnapshot
				if i%2 == 0 {
					snap = p.RegisterClosedTrade(models.ClosedTrade{RealizedPnL: pnl})
				} else {
					snap = p.Snapshot(pnl)
				}
				if snap.MaxEquity < prevMax || snap.MaxDrawdown < 0 {
					return false
				}
				if snap.Wins+snap.Losses+snap.Breakeven != snap.TotalTrades {
					return false
				}
				prevMax = snap.MaxEquity
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(-100, 100)),
	))

	properties.TestingRun(t)
}
