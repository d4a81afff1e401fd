// Package risk turns strategy intents into sized, bracketed trade plans.
//
// The engine is pure: identical inputs give identical plans, and it never
// logs. Callers log the Skip reason when no plan is produced.
package risk

import (
	"math"

	"signal-trader/internal/config"
	"signal-trader/internal/errors"
	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

// Skip explains why Evaluate produced no plan.
type Skip string

const (
	SkipNone              Skip = ""
	SkipNoAction          Skip = "no_action"
	SkipUnsupportedAction Skip = "unsupported_action"
	SkipMaxPositions      Skip = "max_positions"
	SkipSizingUnavailable Skip = "sizing_unavailable"
	SkipNoPositionToClose Skip = "no_position_to_close"
	SkipPositionExists    Skip = "position_exists"
)

// Err maps the reason to its sentinel error, or nil for SkipNone and SkipNoAction.
func (s Skip) Err() error {
	switch s {
	case SkipUnsupportedAction:
		return errors.ErrUnsupportedAction
	case SkipMaxPositions:
		return errors.ErrMaxPositions
	case SkipSizingUnavailable:
		return errors.ErrSizingUnavailable
	case SkipNoPositionToClose:
		return errors.ErrNoPositionToClose
	case SkipPositionExists:
		return errors.ErrPositionExists
	}
	return nil
}

// Engine sizes plans against a fixed RiskConfig.
type Engine struct {
	cfg config.RiskConfig
}

// NewEngine creates an engine. cfg is copied and never mutated.
func NewEngine(cfg config.RiskConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine's risk configuration.
func (e *Engine) Config() config.RiskConfig {
	return e.cfg
}

// Plan is Evaluate without the skip reason.
func (e *Engine) Plan(intent models.TradeIntent, lastPrice float64, account models.AccountState) *models.TradePlan {
	plan, _ := e.Evaluate(intent, lastPrice, account)
	return plan
}

// Evaluate returns a plan for intent, or nil and the reason none was made.
func (e *Engine) Evaluate(intent models.TradeIntent, lastPrice float64, account models.AccountState) (*models.TradePlan, Skip) {
	switch intent.Action {
	case models.IntentNoAction:
		return nil, SkipNoAction
	case models.IntentOpenLong:
		return e.open(intent.Symbol, models.PositionLong, lastPrice, account)
	case models.IntentOpenShort:
		return e.open(intent.Symbol, models.PositionShort, lastPrice, account)
	case models.IntentCloseLong:
		return e.close(intent.Symbol, models.PositionLong, lastPrice, account)
	case models.IntentCloseShort:
		return e.close(intent.Symbol, models.PositionShort, lastPrice, account)
	default:
		return nil, SkipUnsupportedAction
	}
}

func (e *Engine) open(symbol string, side models.PositionSide, lastPrice float64, account models.AccountState) (*models.TradePlan, Skip) {
	if account.OpenPositionCount() >= e.cfg.MaxPositions {
		return nil, SkipMaxPositions
	}
	if _, ok := account.Position(symbol); ok {
		return nil, SkipPositionExists
	}

	amount, ok := e.size(lastPrice, account.Equity())
	if !ok {
		return nil, SkipSizingUnavailable
	}

	slPct := e.cfg.StopLossPercent / 100
	tpPct := e.cfg.TakeProfitPercent / 100

	plan := &models.TradePlan{
		Symbol:       symbol,
		Action:       models.PlanOpen,
		PositionSide: side,
		Amount:       amount,
		EntryPrice:   utils.RoundPrice(lastPrice),
		Leverage:     e.cfg.MaxLeverage,
	}
	if side == models.PositionLong {
		plan.Side = models.OrderSideBuy
		plan.StopLossPrice = models.Float(utils.RoundPrice(lastPrice * (1 - slPct)))
		plan.TakeProfitPrice = models.Float(utils.RoundPrice(lastPrice * (1 + tpPct)))
	} else {
		plan.Side = models.OrderSideSell
		plan.StopLossPrice = models.Float(utils.RoundPrice(lastPrice * (1 + slPct)))
		plan.TakeProfitPrice = models.Float(utils.RoundPrice(lastPrice * (1 - tpPct)))
	}

	// Rounding can collapse a bracket onto the entry for very small prices.
	if err := plan.Validate(); err != nil {
		return nil, SkipSizingUnavailable
	}
	return plan, SkipNone
}

// size applies the risk budget, clamps to [min, max] and then caps the
// notional at equity x leverage. The clamp wins over the risk budget, so
// the realised risk can differ from RiskPerTradePercent; see EffectiveRisk.
func (e *Engine) size(lastPrice, equity float64) (float64, bool) {
	if !utils.IsFinite(lastPrice) || lastPrice <= 0 || !utils.IsFinite(equity) {
		return 0, false
	}

	stopDistance := lastPrice * e.cfg.StopLossPercent / 100
	riskCapital := equity * e.cfg.RiskPerTradePercent
	raw := riskCapital / stopDistance
	if !utils.IsFinite(raw) || raw <= 0 {
		return 0, false
	}

	amount := math.Min(math.Max(raw, e.cfg.MinPositionSize), e.cfg.MaxPositionSize)

	if maxNotional := equity * e.cfg.MaxLeverage; amount*lastPrice > maxNotional {
		amount = maxNotional / lastPrice
	}

	amount = utils.RoundSize(amount)
	if amount <= 0 {
		return 0, false
	}
	return amount, true
}

func (e *Engine) close(symbol string, side models.PositionSide, lastPrice float64, account models.AccountState) (*models.TradePlan, Skip) {
	pos, ok := account.Position(symbol)
	if !ok || pos.Side != side {
		return nil, SkipNoPositionToClose
	}

	leverage := pos.Leverage
	if leverage <= 0 {
		leverage = e.cfg.MaxLeverage
	}

	plan := &models.TradePlan{
		Symbol:       symbol,
		Action:       models.PlanClose,
		PositionSide: side,
		Amount:       pos.Contracts,
		EntryPrice:   utils.RoundPrice(lastPrice),
		Leverage:     leverage,
		ReduceOnly:   true,
	}
	if side == models.PositionLong {
		plan.Side = models.OrderSideSell
	} else {
		plan.Side = models.OrderSideBuy
	}
	return plan, SkipNone
}

// EffectiveRisk is the fraction of equity lost if plan's stop is hit.
// Close plans and plans without a stop carry no new risk.
func EffectiveRisk(plan *models.TradePlan, equity float64) float64 {
	if plan == nil || plan.StopLossPrice == nil || plan.Action != models.PlanOpen || equity <= 0 {
		return 0
	}
	return plan.Amount * math.Abs(plan.EntryPrice-*plan.StopLossPrice) / equity
}
