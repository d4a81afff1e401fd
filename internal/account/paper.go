// Package account keeps the paper-trading ledger for one session.
package account

import (
	"math"

	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

// Paper is a single-writer ledger. It is owned by the simulation loop and
// is not safe for concurrent use.
type Paper struct {
	startingBalance float64
	balance         float64
	equity          float64
	maxEquity       float64

	total     int
	wins      int
	losses    int
	breakeven int
	lastTrade *models.ClosedTrade
}

// NewPaper opens a ledger at startingBalance.
func NewPaper(startingBalance float64) *Paper {
	return &Paper{
		startingBalance: startingBalance,
		balance:         startingBalance,
		equity:          startingBalance,
		maxEquity:       startingBalance,
	}
}

// RegisterClosedTrade books trade's realized PnL and returns a snapshot
// with no unrealized PnL.
func (p *Paper) RegisterClosedTrade(trade models.ClosedTrade) models.AccountSnapshot {
	p.balance = utils.RoundPrice(p.balance + trade.RealizedPnL)
	p.total++
	switch {
	case trade.RealizedPnL > 0:
		p.wins++
	case trade.RealizedPnL < 0:
		p.losses++
	default:
		p.breakeven++
	}
	t := trade
	p.lastTrade = &t

	return p.Snapshot(0)
}

// Snapshot recomputes equity from unrealizedPnL and reports drawdown from
// the running equity high.
func (p *Paper) Snapshot(unrealizedPnL float64) models.AccountSnapshot {
	p.equity = utils.RoundPrice(p.balance + unrealizedPnL)
	p.maxEquity = math.Max(p.maxEquity, p.equity)

	snap := models.AccountSnapshot{
		StartingBalance: p.startingBalance,
		Balance:         p.balance,
		Equity:          p.equity,
		UnrealizedPnL:   unrealizedPnL,
		MaxEquity:       p.maxEquity,
		MaxDrawdown:     utils.RoundPrice(p.maxEquity - p.equity),
		TotalTrades:     p.total,
		Wins:            p.wins,
		Losses:          p.losses,
		Breakeven:       p.breakeven,
	}
	if p.lastTrade != nil {
		t := *p.lastTrade
		snap.LastTrade = &t
	}
	return snap
}

// Balance returns the realized balance.
func (p *Paper) Balance() float64 {
	return p.balance
}

// WinRate is wins over total trades, 0 with no trades.
func (p *Paper) WinRate() float64 {
	if p.total == 0 {
		return 0
	}
	return float64(p.wins) / float64(p.total)
}
