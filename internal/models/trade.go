package models

// Position represents an open position on one symbol.
type Position struct {
	Symbol        string       `json:"symbol"`
	Side          PositionSide `json:"side"`
	Contracts     float64      `json:"contracts"`
	EntryPrice    float64      `json:"entry_price"`
	UnrealizedPnL float64      `json:"unrealized_pnl"`
	Leverage      float64      `json:"leverage"`
}

// AccountState is a value snapshot of balance and open positions.
type AccountState struct {
	BalanceUSDT float64    `json:"balance_usdt"`
	Positions   []Position `json:"positions"`
}

// Equity returns balance plus unrealized PnL of all positions.
func (a AccountState) Equity() float64 {
	equity := a.BalanceUSDT
	for _, p := range a.Positions {
		equity += p.UnrealizedPnL
	}
	return equity
}

// Position returns the open position for symbol, if any.
func (a AccountState) Position(symbol string) (Position, bool) {
	for _, p := range a.Positions {
		if p.Symbol == symbol && p.Contracts > 0 && p.Side != PositionFlat {
			return p, true
		}
	}
	return Position{}, false
}

// OpenPositionCount counts positions with non-zero exposure.
func (a AccountState) OpenPositionCount() int {
	n := 0
	for _, p := range a.Positions {
		if p.Contracts > 0 && p.Side != PositionFlat {
			n++
		}
	}
	return n
}

// ClosedTrade is a round trip whose PnL has been realized.
type ClosedTrade struct {
	Symbol      string       `json:"symbol"`
	Side        PositionSide `json:"side"`
	Amount      float64      `json:"amount"`
	EntryPrice  float64      `json:"entry_price"`
	ExitPrice   float64      `json:"exit_price"`
	RealizedPnL float64      `json:"realized_pnl"`
	Fee         float64      `json:"fee"`
	Reason      string       `json:"reason"`
	OpenedAt    int64        `json:"opened_at"`
	ClosedAt    int64        `json:"closed_at"`
}

// AccountSnapshot is the paper ledger's reporting view.
type AccountSnapshot struct {
	StartingBalance float64      `json:"starting_balance"`
	Balance         float64      `json:"balance"`
	Equity          float64      `json:"equity"`
	UnrealizedPnL   float64      `json:"unrealized_pnl"`
	MaxEquity       float64      `json:"max_equity"`
	MaxDrawdown     float64      `json:"max_drawdown"`
	TotalTrades     int          `json:"total_trades"`
	Wins            int          `json:"wins"`
	Losses          int          `json:"losses"`
	Breakeven       int          `json:"breakeven"`
	LastTrade       *ClosedTrade `json:"last_trade,omitempty"`
}
