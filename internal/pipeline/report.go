package pipeline

import (
	"math"

	"signal-trader/internal/account"
	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

// EquityPoint represents a point on the equity curve.
type EquityPoint struct {
	Timestamp int64   `json:"timestamp"`
	Equity    float64 `json:"equity"`
}

// Report summarizes a replay.
type Report struct {
	Ticks        int                    `json:"ticks"`
	Plans        map[string]int         `json:"plans"`
	Skips        map[string]int         `json:"skips"`
	Trades       []models.ClosedTrade   `json:"trades"`
	EquityCurve  []EquityPoint          `json:"equity_curve"`
	Account      models.AccountSnapshot `json:"account"`
	TotalReturn  float64                `json:"total_return_pct"`
	WinRate      float64                `json:"win_rate_pct"`
	AvgWin       float64                `json:"avg_win"`
	AvgLoss      float64                `json:"avg_loss"`
	ProfitFactor float64                `json:"profit_factor"`
	SharpeRatio  float64                `json:"sharpe_ratio"`
	// AvgRisk and MaxRisk are the percent of equity at risk per opened plan.
	AvgRisk float64 `json:"avg_risk_pct"`
	MaxRisk float64 `json:"max_risk_pct"`

	ledger   *account.Paper
	riskSum  float64
	riskOpen int
	riskMax  float64
}

func newReport(ledger *account.Paper) *Report {
	return &Report{
		Plans:  make(map[string]int),
		Skips:  make(map[string]int),
		ledger: ledger,
	}
}

func (r *Report) addStep(res StepResult) {
	r.Trades = append(r.Trades, res.Closed...)
	if res.Timestamp == 0 {
		return
	}
	r.Ticks++
	if res.Plan != nil {
		r.Plans[string(res.Plan.Action)]++
	}
	if res.EffectiveRisk > 0 {
		r.riskSum += res.EffectiveRisk
		r.riskOpen++
		r.riskMax = math.Max(r.riskMax, res.EffectiveRisk)
	}
	if res.Skip != "" {
		r.Skips[string(res.Skip)]++
	}
	if r.ledger != nil {
		r.Account = res.Account
		r.EquityCurve = append(r.EquityCurve, EquityPoint{Timestamp: res.Timestamp, Equity: res.Account.Equity})
	}
}

// finish derives the performance ratios from the trades and equity curve.
func (r *Report) finish() {
	if start := r.Account.StartingBalance; start > 0 {
		r.TotalReturn = utils.RoundPrice((r.Account.Equity - start) / start * 100)
	}

	var wins, losses []float64
	for _, t := range r.Trades {
		switch {
		case t.RealizedPnL > 0:
			wins = append(wins, t.RealizedPnL)
		case t.RealizedPnL < 0:
			losses = append(losses, t.RealizedPnL)
		}
	}
	switch {
	case r.ledger != nil:
		r.WinRate = utils.RoundPrice(r.ledger.WinRate() * 100)
	case len(r.Trades) > 0:
		r.WinRate = utils.RoundPrice(float64(len(wins)) / float64(len(r.Trades)) * 100)
	}
	if r.riskOpen > 0 {
		r.AvgRisk = utils.Round(r.riskSum/float64(r.riskOpen)*100, 4)
	}
	r.MaxRisk = utils.Round(r.riskMax*100, 4)

	totalWins, totalLosses := sum(wins), math.Abs(sum(losses))
	if len(wins) > 0 {
		r.AvgWin = utils.RoundPrice(totalWins / float64(len(wins)))
	}
	if len(losses) > 0 {
		r.AvgLoss = utils.RoundPrice(-totalLosses / float64(len(losses)))
	}
	if totalLosses > 0 {
		r.ProfitFactor = utils.Round(totalWins/totalLosses, 4)
	}

	r.SharpeRatio = utils.Round(sharpeRatio(r.EquityCurve), 4)
}

func sum(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}

// sharpeRatio is the mean over the standard deviation of per-tick equity
// returns, without annualisation or a risk-free rate.
func sharpeRatio(curve []EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if prev := curve[i-1].Equity; prev > 0 {
			returns = append(returns, (curve[i].Equity-prev)/prev)
		}
	}
	if len(returns) == 0 {
		return 0
	}

	mean := sum(returns) / float64(len(returns))
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	stdDev := math.Sqrt(variance)

	if stdDev == 0 {
		return 0
	}
	return mean / stdDev
}
