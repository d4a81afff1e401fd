package broker

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

// Closed-trade reasons.
const (
	ReasonSignal     = "signal"
	ReasonStopLoss   = "stop_loss"
	ReasonTakeProfit = "take_profit"
)

// PaperBroker simulates a leveraged single-position-per-symbol venue.
// Market orders fill at the mark price plus slippage; stop and take-profit
// orders rest until OnCandle sees their trigger.
type PaperBroker struct {
	feeRate  float64
	slippage float64
	onClose  func(models.ClosedTrade)
	logger   zerolog.Logger

	balance   float64
	positions map[string]*paperPosition
	orders    map[string]*Order
	resting   []string // open order ids in placement order
	marks     map[string]float64
	now       int64

	orderCounter int

	mu sync.Mutex
}

type paperPosition struct {
	side       models.PositionSide
	contracts  float64
	entryPrice float64
	leverage   float64
	fees       float64 // entry fees not yet realized
	openedAt   int64
}

// PaperBrokerConfig holds configuration for paper broker.
type PaperBrokerConfig struct {
	StartingBalance float64
	FeeRate         float64
	SlippagePercent float64
	// OnClose receives every realized round trip, e.g. the paper ledger.
	OnClose func(models.ClosedTrade)
}

// NewPaperBroker creates a new paper trading broker.
func NewPaperBroker(cfg PaperBrokerConfig, logger zerolog.Logger) *PaperBroker {
	return &PaperBroker{
		feeRate:   cfg.FeeRate,
		slippage:  cfg.SlippagePercent / 100,
		onClose:   cfg.OnClose,
		logger:    logger.With().Str("component", "paper_broker").Logger(),
		balance:   cfg.StartingBalance,
		positions: make(map[string]*paperPosition),
		orders:    make(map[string]*Order),
		marks:     make(map[string]float64),
	}
}

// CreateOrder simulates order placement.
func (p *PaperBroker) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	if req.Amount <= 0 || !utils.IsFinite(req.Amount) {
		return nil, errors.NewOrderError("", req.Symbol, string(req.Side), "amount must be positive", errors.ErrOrderRejected)
	}

	p.mu.Lock()
	result, closed, err := p.place(req)
	p.mu.Unlock()

	p.emit(closed)
	return result, err
}

func (p *PaperBroker) place(req models.OrderRequest) (*models.OrderResult, []models.ClosedTrade, error) {
	p.orderCounter++
	order := &Order{
		ID:       fmt.Sprintf("PAPER-%d", p.orderCounter),
		Request:  req,
		Status:   StatusOpen,
		PlacedAt: p.now,
	}

	switch req.Type {
	case models.OrderTypeMarket:
		mark := p.marks[req.Symbol]
		if mark <= 0 {
			return nil, nil, errors.NewOrderError(order.ID, req.Symbol, string(req.Side), "no mark price", errors.ErrOrderRejected)
		}
		closed, err := p.fill(order, p.slipped(req.Side, mark), ReasonSignal)
		if err != nil {
			return nil, nil, err
		}
		p.orders[order.ID] = order
		return &models.OrderResult{OrderID: order.ID, Status: order.Status, FilledPrice: order.FillPrice}, closed, nil

	case models.OrderTypeStop, models.OrderTypeTakeProfit, models.OrderTypeLimit:
		if req.Price == nil || *req.Price <= 0 {
			return nil, nil, errors.NewOrderError(order.ID, req.Symbol, string(req.Side), "price required", errors.ErrOrderRejected)
		}
		if req.Type != models.OrderTypeLimit && !req.ReduceOnly {
			return nil, nil, errors.NewOrderError(order.ID, req.Symbol, string(req.Side), "protective orders must be reduce-only", errors.ErrOrderRejected)
		}
		p.orders[order.ID] = order
		p.resting = append(p.resting, order.ID)
		return &models.OrderResult{OrderID: order.ID, Status: order.Status}, nil, nil

	default:
		return nil, nil, errors.NewOrderError(order.ID, req.Symbol, string(req.Side), "unsupported order type "+string(req.Type), errors.ErrOrderRejected)
	}
}

// slipped moves price against the taker.
func (p *PaperBroker) slipped(side models.OrderSide, price float64) float64 {
	if side == models.OrderSideBuy {
		return price * (1 + p.slippage)
	}
	return price * (1 - p.slippage)
}

// fill applies an execution at price to the symbol's position. Callers hold p.mu.
func (p *PaperBroker) fill(order *Order, price float64, reason string) ([]models.ClosedTrade, error) {
	req := order.Request
	pos := p.positions[req.Symbol]
	amount := req.Amount

	increasing := pos == nil || pos.side == sideFor(req.Side)
	if increasing && req.ReduceOnly {
		return nil, errors.NewOrderError(order.ID, req.Symbol, string(req.Side), "reduce-only order would increase exposure", errors.ErrOrderRejected)
	}

	price = utils.RoundPrice(price)
	var closed []models.ClosedTrade

	if !increasing {
		closeAmt := math.Min(amount, pos.contracts)
		trade := p.reduce(req.Symbol, pos, closeAmt, price, reason)
		closed = append(closed, trade)
		amount = utils.RoundSize(amount - closeAmt)
		if req.ReduceOnly {
			amount = 0
		}
		pos = p.positions[req.Symbol]
	}

	if amount > 0 {
		fee := amount * price * p.feeRate
		p.balance -= fee
		leverage, _ := req.Params["leverage"].(float64)
		if pos == nil {
			p.positions[req.Symbol] = &paperPosition{
				side:       sideFor(req.Side),
				contracts:  amount,
				entryPrice: price,
				leverage:   leverage,
				fees:       fee,
				openedAt:   p.now,
			}
		} else {
			total := pos.contracts + amount
			pos.entryPrice = (pos.entryPrice*pos.contracts + price*amount) / total
			pos.contracts = total
			pos.fees += fee
		}
	}

	order.Status = StatusFilled
	order.FillPrice = price
	order.FilledAt = p.now
	order.Reason = reason
	p.logger.Debug().
		Str("order_id", order.ID).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Float64("amount", req.Amount).
		Float64("price", price).
		Msg("Paper fill")
	return closed, nil
}

// reduce realizes closeAmt of pos at price. Callers hold p.mu.
func (p *PaperBroker) reduce(symbol string, pos *paperPosition, closeAmt, price float64, reason string) models.ClosedTrade {
	direction := 1.0
	if pos.side == models.PositionShort {
		direction = -1
	}
	gross := (price - pos.entryPrice) * closeAmt * direction
	exitFee := closeAmt * price * p.feeRate
	entryFee := pos.fees * closeAmt / pos.contracts

	p.balance += gross - exitFee

	trade := models.ClosedTrade{
		Symbol:      symbol,
		Side:        pos.side,
		Amount:      closeAmt,
		EntryPrice:  utils.RoundPrice(pos.entryPrice),
		ExitPrice:   price,
		RealizedPnL: utils.RoundPrice(gross - exitFee - entryFee),
		Fee:         utils.RoundPrice(exitFee + entryFee),
		Reason:      reason,
		OpenedAt:    pos.openedAt,
		ClosedAt:    p.now,
	}

	pos.fees -= entryFee
	pos.contracts = utils.RoundSize(pos.contracts - closeAmt)
	if pos.contracts <= 0 {
		delete(p.positions, symbol)
		p.cancelProtective(symbol)
	}
	return trade
}

// cancelProtective cancels resting reduce-only orders once the symbol is flat.
func (p *PaperBroker) cancelProtective(symbol string) {
	kept := p.resting[:0]
	for _, id := range p.resting {
		o := p.orders[id]
		if o.Request.Symbol == symbol && o.Request.ReduceOnly && o.Status == StatusOpen {
			o.Status = StatusCancelled
			continue
		}
		if o.Status == StatusOpen {
			kept = append(kept, id)
		}
	}
	p.resting = kept
}

// OnCandle marks the symbol to the candle close and fills any resting
// order whose trigger lies inside the candle's range. Stops are evaluated
// before take-profits, so a candle spanning both exits at the stop.
func (p *PaperBroker) OnCandle(candle models.Candle) []models.ClosedTrade {
	p.mu.Lock()
	p.now = candle.Timestamp

	var closed []models.ClosedTrade
	for _, typ := range []models.OrderType{models.OrderTypeStop, models.OrderTypeTakeProfit, models.OrderTypeLimit} {
		for _, id := range append([]string(nil), p.resting...) {
			o := p.orders[id]
			if o.Status != StatusOpen || o.Request.Symbol != candle.Symbol || o.Request.Type != typ {
				continue
			}
			price, hit := triggerPrice(o.Request, candle)
			if !hit {
				continue
			}
			reason := ReasonSignal
			switch typ {
			case models.OrderTypeStop:
				reason = ReasonStopLoss
				price = p.slipped(o.Request.Side, price)
			case models.OrderTypeTakeProfit:
				reason = ReasonTakeProfit
			}
			trades, err := p.fill(o, price, reason)
			if err != nil {
				o.Status = StatusCancelled
				p.logger.Warn().Err(err).Str("order_id", o.ID).Msg("Resting order dropped")
			}
			closed = append(closed, trades...)
			p.dropResting(id)
		}
	}

	p.marks[candle.Symbol] = candle.Close
	p.mu.Unlock()

	p.emit(closed)
	return closed
}

// triggerPrice reports whether req triggers inside candle and at what
// price. Gaps through the trigger fill at the open.
func triggerPrice(req models.OrderRequest, c models.Candle) (float64, bool) {
	price := *req.Price
	sell := req.Side == models.OrderSideSell

	switch req.Type {
	case models.OrderTypeStop:
		if sell && c.Low <= price {
			return math.Min(price, c.Open), true
		}
		if !sell && c.High >= price {
			return math.Max(price, c.Open), true
		}
	case models.OrderTypeTakeProfit:
		if sell && c.High >= price {
			return math.Max(price, c.Open), true
		}
		if !sell && c.Low <= price {
			return math.Min(price, c.Open), true
		}
	case models.OrderTypeLimit:
		if sell && c.High >= price {
			return math.Max(price, c.Open), true
		}
		if !sell && c.Low <= price {
			return math.Min(price, c.Open), true
		}
	}
	return 0, false
}

func (p *PaperBroker) dropResting(id string) {
	for i, r := range p.resting {
		if r == id {
			p.resting = append(p.resting[:i], p.resting[i+1:]...)
			return
		}
	}
}

func (p *PaperBroker) emit(closed []models.ClosedTrade) {
	if p.onClose == nil {
		return
	}
	for _, t := range closed {
		p.onClose(t)
	}
}

// CancelOrder simulates order cancellation.
func (p *PaperBroker) CancelOrder(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %s", orderID)
	}
	if order.Status != StatusOpen {
		return fmt.Errorf("cannot cancel order with status: %s", order.Status)
	}

	order.Status = StatusCancelled
	p.dropResting(orderID)
	return nil
}

// ReplaceStop moves every resting stop for symbol to price. It is used by
// trailing-stop management and returns the number of orders moved.
func (p *PaperBroker) ReplaceStop(ctx context.Context, symbol string, price float64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, id := range p.resting {
		o := p.orders[id]
		if o.Request.Symbol == symbol && o.Request.Type == models.OrderTypeStop && o.Status == StatusOpen {
			o.Request.Price = models.Float(utils.RoundPrice(price))
			n++
		}
	}
	return n
}

// OpenOrders returns resting orders for symbol, or all when symbol is empty.
func (p *PaperBroker) OpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Order, 0, len(p.resting))
	for _, id := range p.resting {
		o := p.orders[id]
		if symbol == "" || o.Request.Symbol == symbol {
			out = append(out, *o)
		}
	}
	return out, nil
}

// FetchAccount returns the simulated balance and marked positions.
func (p *PaperBroker) FetchAccount(ctx context.Context) (models.AccountState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := models.AccountState{BalanceUSDT: utils.RoundPrice(p.balance)}
	for symbol, pos := range p.positions {
		state.Positions = append(state.Positions, models.Position{
			Symbol:        symbol,
			Side:          pos.side,
			Contracts:     pos.contracts,
			EntryPrice:    utils.RoundPrice(pos.entryPrice),
			UnrealizedPnL: p.unrealized(symbol, pos),
			Leverage:      pos.leverage,
		})
	}
	return state, nil
}

// UnrealizedPnL returns the marked PnL of all open positions.
func (p *PaperBroker) UnrealizedPnL() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0.0
	for symbol, pos := range p.positions {
		total += p.unrealized(symbol, pos)
	}
	return utils.RoundPrice(total)
}

func (p *PaperBroker) unrealized(symbol string, pos *paperPosition) float64 {
	mark := p.marks[symbol]
	if mark <= 0 {
		return 0
	}
	pnl := (mark - pos.entryPrice) * pos.contracts
	if pos.side == models.PositionShort {
		pnl = -pnl
	}
	return utils.RoundPrice(pnl)
}

// Balance returns the simulated cash balance.
func (p *PaperBroker) Balance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return utils.RoundPrice(p.balance)
}

func sideFor(side models.OrderSide) models.PositionSide {
	if side == models.OrderSideBuy {
		return models.PositionLong
	}
	return models.PositionShort
}

// Ensure PaperBroker implements Broker interface
var _ Broker = (*PaperBroker)(nil)
