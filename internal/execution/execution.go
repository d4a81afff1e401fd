// Package execution submits trade plans as entry plus protective orders.
package execution

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

// OrderPlacer submits one order to a venue.
type OrderPlacer interface {
	CreateOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error)
}

// AccountSource returns the current balance and positions.
type AccountSource interface {
	FetchAccount(ctx context.Context) (models.AccountState, error)
}

// Bracket stages reported by PartialExecutionError.
const (
	StageStopLoss   = "stop_loss"
	StageTakeProfit = "take_profit"
)

// Engine executes plans. It performs no retries.
type Engine struct {
	placer  OrderPlacer
	account AccountSource
	logger  zerolog.Logger
}

// NewEngine creates an execution engine.
func NewEngine(placer OrderPlacer, account AccountSource, logger zerolog.Logger) *Engine {
	return &Engine{
		placer:  placer,
		account: account,
		logger:  logger.With().Str("component", "execution").Logger(),
	}
}

// Execute re-syncs exposure, submits the market entry and, for opening
// plans, a reduce-only stop and take-profit on the opposite side.
//
// Protective orders are only sent after the entry is acknowledged. If one
// of them fails the report built so far is returned together with an
// *errors.PartialExecutionError so the entry order id is never lost.
func (e *Engine) Execute(ctx context.Context, plan models.TradePlan) (*models.ExecutionReport, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	plan, err := e.resync(ctx, plan)
	if err != nil {
		return nil, err
	}

	log := e.logger.With().Str("symbol", plan.Symbol).Str("action", string(plan.Action)).Logger()

	entry, err := e.placer.CreateOrder(ctx, models.OrderRequest{
		Symbol:     plan.Symbol,
		Side:       plan.Side,
		Type:       models.OrderTypeMarket,
		Amount:     plan.Amount,
		ReduceOnly: plan.ReduceOnly,
		Params:     map[string]interface{}{"leverage": plan.Leverage},
	})
	if err != nil {
		return nil, errors.NewOrderError("", plan.Symbol, string(plan.Action), "entry order failed", err)
	}

	report := &models.ExecutionReport{Plan: plan, EntryOrderID: entry.OrderID}
	log.Info().
		Str("order_id", entry.OrderID).
		Str("side", string(plan.Side)).
		Float64("amount", plan.Amount).
		Msg("Entry order placed")

	if plan.ReduceOnly || plan.Action != models.PlanOpen {
		return report, nil
	}

	exit := plan.Side.Opposite()

	if plan.StopLossPrice != nil {
		res, err := e.placer.CreateOrder(ctx, models.OrderRequest{
			Symbol:     plan.Symbol,
			Side:       exit,
			Type:       models.OrderTypeStop,
			Amount:     plan.Amount,
			Price:      models.Float(*plan.StopLossPrice),
			ReduceOnly: true,
			Params:     map[string]interface{}{"stopPrice": *plan.StopLossPrice},
		})
		if err != nil {
			log.Error().Err(err).Str("entry_order_id", entry.OrderID).Msg("Stop-loss order failed")
			return report, errors.NewPartialExecutionError(StageStopLoss, entry.OrderID, err)
		}
		report.StopOrderID = res.OrderID
	}

	if plan.TakeProfitPrice != nil {
		res, err := e.placer.CreateOrder(ctx, models.OrderRequest{
			Symbol:     plan.Symbol,
			Side:       exit,
			Type:       models.OrderTypeTakeProfit,
			Amount:     plan.Amount,
			Price:      models.Float(*plan.TakeProfitPrice),
			ReduceOnly: true,
			Params:     map[string]interface{}{"stopPrice": *plan.TakeProfitPrice},
		})
		if err != nil {
			log.Error().Err(err).Str("entry_order_id", entry.OrderID).Msg("Take-profit order failed")
			return report, errors.NewPartialExecutionError(StageTakeProfit, entry.OrderID, err)
		}
		report.TakeProfitOrderID = res.OrderID
	}

	log.Debug().
		Str("stop_order_id", report.StopOrderID).
		Str("take_profit_order_id", report.TakeProfitOrderID).
		Msg("Bracket placed")
	return report, nil
}

// resync reloads exposure for the plan's symbol. A close is capped to what
// is still held; an open is refused if a position appeared meanwhile.
func (e *Engine) resync(ctx context.Context, plan models.TradePlan) (models.TradePlan, error) {
	if e.account == nil {
		return plan, nil
	}

	state, err := e.account.FetchAccount(ctx)
	if err != nil {
		return plan, errors.NewDataError("account", plan.Symbol, "resync before execution", err)
	}
	pos, held := state.Position(plan.Symbol)

	switch plan.Action {
	case models.PlanClose:
		if !held || pos.Side != plan.PositionSide {
			return plan, fmt.Errorf("%w: %s %s", errors.ErrNoPositionToClose, plan.PositionSide, plan.Symbol)
		}
		if plan.Amount > pos.Contracts {
			e.logger.Warn().
				Str("symbol", plan.Symbol).
				Float64("planned", plan.Amount).
				Float64("held", pos.Contracts).
				Msg("Close amount capped to held exposure")
			plan.Amount = utils.RoundSize(pos.Contracts)
			if plan.Amount <= 0 {
				plan.Amount = pos.Contracts
			}
		}
	case models.PlanOpen:
		if held {
			return plan, fmt.Errorf("%w: %s %s", errors.ErrPositionExists, pos.Side, plan.Symbol)
		}
	}
	return plan, nil
}
