package models

import (
	"fmt"

	"signal-trader/internal/errors"
)

// PlanAction distinguishes opening from closing plans.
type PlanAction string

const (
	PlanOpen  PlanAction = "OPEN"
	PlanClose PlanAction = "CLOSE"
)

// TradePlan is a sized, bracketed adjustment produced by the risk engine.
type TradePlan struct {
	Symbol          string       `json:"symbol"`
	Action          PlanAction   `json:"action"`
	Side            OrderSide    `json:"side"`
	PositionSide    PositionSide `json:"position_side"`
	Amount          float64      `json:"amount"`
	EntryPrice      float64      `json:"entry_price"`
	Leverage        float64      `json:"leverage"`
	StopLossPrice   *float64     `json:"stop_loss_price,omitempty"`
	TakeProfitPrice *float64     `json:"take_profit_price,omitempty"`
	ReduceOnly      bool         `json:"reduce_only"`
}

// Validate checks the structural invariants of a plan.
func (p TradePlan) Validate() error {
	if p.Amount <= 0 {
		return fmt.Errorf("%w: amount %v must be positive", errors.ErrInvalidPlan, p.Amount)
	}
	switch p.Action {
	case PlanOpen:
		if p.StopLossPrice == nil || p.TakeProfitPrice == nil {
			return fmt.Errorf("%w: open plan requires stop-loss and take-profit", errors.ErrInvalidPlan)
		}
		sl, tp := *p.StopLossPrice, *p.TakeProfitPrice
		if sl <= 0 || tp <= 0 {
			return fmt.Errorf("%w: bracket prices %v/%v must be positive", errors.ErrInvalidPlan, sl, tp)
		}
		switch p.PositionSide {
		case PositionLong:
			if !(sl < p.EntryPrice && tp > p.EntryPrice) {
				return fmt.Errorf("%w: long bracket %v/%v around entry %v", errors.ErrInvalidPlan, sl, tp, p.EntryPrice)
			}
		case PositionShort:
			if !(sl > p.EntryPrice && tp < p.EntryPrice) {
				return fmt.Errorf("%w: short bracket %v/%v around entry %v", errors.ErrInvalidPlan, sl, tp, p.EntryPrice)
			}
		default:
			return fmt.Errorf("%w: open plan with position side %s", errors.ErrInvalidPlan, p.PositionSide)
		}
	case PlanClose:
		if !p.ReduceOnly {
			return fmt.Errorf("%w: close plan must be reduce-only", errors.ErrInvalidPlan)
		}
	default:
		return fmt.Errorf("%w: unknown action %s", errors.ErrInvalidPlan, p.Action)
	}
	return nil
}

// OrderRequest is the abstract order sent to the placement collaborator.
type OrderRequest struct {
	Symbol     string                 `json:"symbol"`
	Side       OrderSide              `json:"side"`
	Type       OrderType              `json:"type"`
	Amount     float64                `json:"amount"`
	Price      *float64               `json:"price,omitempty"`
	ReduceOnly bool                   `json:"reduce_only"`
	Params     map[string]interface{} `json:"params,omitempty"`
}

// OrderResult represents the result of an order placement.
type OrderResult struct {
	OrderID     string  `json:"order_id"`
	Status      string  `json:"status"`
	FilledPrice float64 `json:"filled_price,omitempty"`
}

// ExecutionReport lists the order ids produced for one plan.
// StopOrderID and TakeProfitOrderID are empty when not submitted.
type ExecutionReport struct {
	Plan              TradePlan `json:"plan"`
	EntryOrderID      string    `json:"entry_order_id"`
	StopOrderID       string    `json:"stop_order_id,omitempty"`
	TakeProfitOrderID string    `json:"take_profit_order_id,omitempty"`
}

// Float returns a pointer to v, for optional price fields.
func Float(v float64) *float64 {
	return &v
}
