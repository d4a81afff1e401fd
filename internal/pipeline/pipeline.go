// Package pipeline wires the candle cache, strategy, risk engine and
// execution engine into one sequential loop per symbol.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"signal-trader/internal/account"
	"signal-trader/internal/errors"
	"signal-trader/internal/execution"
	"signal-trader/internal/logging"
	"signal-trader/internal/metrics"
	"signal-trader/internal/models"
	"signal-trader/internal/mtf"
	"signal-trader/internal/resilience"
	"signal-trader/internal/risk"
	"signal-trader/internal/snapshot"
	"signal-trader/internal/store"
	"signal-trader/internal/strategy"
	"signal-trader/pkg/utils"
)

// Broker is the venue the runner trades against.
type Broker interface {
	execution.OrderPlacer
	execution.AccountSource
}

// StopReplacer moves resting stops. Brokers that implement it get
// trailing-stop management.
type StopReplacer interface {
	ReplaceStop(ctx context.Context, symbol string, price float64) int
}

// CandleMarker simulates fills against a new candle. Replay requires it.
type CandleMarker interface {
	OnCandle(candle models.Candle) []models.ClosedTrade
}

type unrealizer interface {
	UnrealizedPnL() float64
}

// Config configures a Runner.
type Config struct {
	SignalVenue        string
	ExecutionTimeframe string
	// Live refreshes the cache from its fetcher at the start of every step.
	Live    bool
	Retry   utils.RetryConfig
	Breaker resilience.CircuitBreakerConfig
	// RunID tags closed trades written to the journal.
	RunID string
}

// Deps are the collaborators of a Runner. Ledger, Journal and Metrics are
// optional.
type Deps struct {
	Cache    *mtf.Cache
	Strategy strategy.Strategy
	Risk     *risk.Engine
	Broker   Broker
	Ledger   *account.Paper
	Journal  store.TradeStore
	Metrics  *metrics.Metrics
}

// StepResult describes one tick.
type StepResult struct {
	Timestamp int64
	Price     float64
	Intent    models.TradeIntent
	Plan      *models.TradePlan
	Skip      risk.Skip
	Report    *models.ExecutionReport
	Account   models.AccountSnapshot
	// EffectiveRisk is the fraction of equity an opened plan loses at its stop.
	EffectiveRisk float64
	// Closed holds trades realized since the previous step.
	Closed []models.ClosedTrade
}

type trail struct {
	ts   *execution.TrailingStop
	stop float64
}

// Runner evaluates one symbol. It is not safe for concurrent use.
type Runner struct {
	cfg      Config
	cache    *mtf.Cache
	strategy strategy.Strategy
	risk     *risk.Engine
	exec     *execution.Engine
	broker   Broker
	ledger   *account.Paper
	journal  store.TradeStore
	metrics  *metrics.Metrics
	breaker  *resilience.CircuitBreaker
	logger   zerolog.Logger

	trails map[string]*trail
	closed []models.ClosedTrade
	// marked is the newest execution candle handed to a CandleMarker in
	// live mode.
	marked int64
}

// New creates a Runner.
func New(cfg Config, deps Deps, logger zerolog.Logger) (*Runner, error) {
	if deps.Cache == nil || deps.Strategy == nil || deps.Risk == nil || deps.Broker == nil {
		return nil, fmt.Errorf("pipeline: cache, strategy, risk and broker are required")
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = utils.DefaultRetryConfig()
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker = resilience.DefaultCircuitBreakerConfig()
	}

	logger = logging.WithTimeframe(logging.WithSymbol(logger, deps.Cache.Symbol()), cfg.ExecutionTimeframe)
	return &Runner{
		cfg:      cfg,
		cache:    deps.Cache,
		strategy: deps.Strategy,
		risk:     deps.Risk,
		exec:     execution.NewEngine(deps.Broker, deps.Broker, logger),
		broker:   deps.Broker,
		ledger:   deps.Ledger,
		journal:  deps.Journal,
		metrics:  deps.Metrics,
		breaker:  resilience.NewCircuitBreaker(cfg.SignalVenue, cfg.Breaker),
		logger:   logger.With().Str("component", "pipeline").Logger(),
		trails:   make(map[string]*trail),
	}, nil
}

// Step runs one tick: refresh, snapshot, strategy, risk, execution,
// trailing-stop management and the paper account snapshot. A partial
// execution is returned together with its result.
func (r *Runner) Step(ctx context.Context) (StepResult, error) {
	var res StepResult

	if r.cfg.Live {
		start := time.Now()
		err := r.breaker.Execute(ctx, func() error {
			return utils.Retry(ctx, r.cfg.Retry, func() error {
				return r.cache.RefreshAll(ctx)
			})
		})
		logging.LogAPICall(r.logger, "RefreshAll", r.cfg.SignalVenue, time.Since(start), err)
		if errors.Is(err, resilience.ErrCircuitOpen) {
			stats := r.breaker.Stats()
			r.logger.Warn().
				Str("breaker", stats.Name).
				Int64("rejected", stats.Rejected).
				Int("failures", stats.CurrentFailures).
				Msg("Refresh skipped while circuit open")
		}
		if err != nil {
			return res, err
		}
		if err := r.markLive(); err != nil {
			return res, err
		}
	}

	snap, err := snapshot.FromCache(r.cache, r.cfg.SignalVenue, r.cfg.ExecutionTimeframe)
	if err != nil {
		return res, err
	}
	r.metrics.Tick()
	res.Timestamp = snap.ExecutionCandle.Timestamp
	res.Price = snap.LastPrice()

	acct, err := r.broker.FetchAccount(ctx)
	if err != nil {
		return res, errors.NewDataError("account", snap.Symbol, "fetching account", err)
	}
	r.dropFlatTrails(acct)

	res.Intent = strategy.Reconcile(r.strategy.Evaluate(snap), acct)

	plan, skip := r.risk.Evaluate(res.Intent, res.Price, acct)
	res.Skip = skip
	if skip != risk.SkipNone {
		if skip != risk.SkipNoAction {
			logging.LogSkip(r.logger, snap.Symbol, string(res.Intent.Action), string(skip))
		}
		r.metrics.Skip(string(skip))
	} else {
		res.Plan = plan
		res.EffectiveRisk = risk.EffectiveRisk(plan, acct.Equity())
		res.Report, err = r.execute(ctx, *plan)
		if err != nil && res.Report == nil {
			r.finish(&res)
			return res, err
		}
	}

	r.manageTrails(ctx, res.Price)
	r.finish(&res)
	return res, err
}

func (r *Runner) execute(ctx context.Context, plan models.TradePlan) (*models.ExecutionReport, error) {
	logging.LogPlan(r.logger, plan.Symbol, string(plan.Action), string(plan.Side), plan.Amount, plan.EntryPrice, plan.StopLossPrice, plan.TakeProfitPrice)
	r.metrics.Plan(string(plan.Action))

	report, err := r.exec.Execute(ctx, plan)
	if report == nil {
		r.logger.Warn().Err(err).Str("action", string(plan.Action)).Msg("Plan not executed")
		return nil, err
	}

	r.metrics.Order(string(models.OrderTypeMarket))
	logging.LogOrder(r.logger, report.EntryOrderID, plan.Symbol, string(plan.Side), string(models.OrderTypeMarket), "placed")
	if report.StopOrderID != "" {
		r.metrics.Order(string(models.OrderTypeStop))
	}
	if report.TakeProfitOrderID != "" {
		r.metrics.Order(string(models.OrderTypeTakeProfit))
	}

	switch plan.Action {
	case models.PlanOpen:
		if rc := r.risk.Config(); rc.TrailingEnabled() && plan.StopLossPrice != nil {
			r.trails[plan.Symbol] = &trail{
				ts:   execution.NewTrailingStop(plan.PositionSide, plan.EntryPrice, rc),
				stop: *plan.StopLossPrice,
			}
		}
	case models.PlanClose:
		delete(r.trails, plan.Symbol)
	}

	if err != nil {
		var partial *errors.PartialExecutionError
		if errors.As(err, &partial) {
			log := logging.WithOrderID(r.logger, partial.EntryOrderID)
			log.Error().Err(err).Str("stage", partial.Stage).Msg("Bracket incomplete")
		}
	}
	return report, err
}

// markLive hands execution candles that arrived with the last refresh to a
// simulating broker, so resting orders see them before the next decision.
// Replay marks candles itself.
func (r *Runner) markLive() error {
	marker, ok := r.broker.(CandleMarker)
	if !ok {
		return nil
	}
	candles, err := r.cache.Candles(r.cfg.ExecutionTimeframe)
	if err != nil {
		return err
	}
	for _, c := range candles {
		if c.Timestamp <= r.marked {
			continue
		}
		marker.OnCandle(c)
		r.marked = c.Timestamp
	}
	return nil
}

// dropFlatTrails forgets trailing state for positions closed by the venue,
// e.g. by a triggered stop.
func (r *Runner) dropFlatTrails(acct models.AccountState) {
	for symbol := range r.trails {
		if _, ok := acct.Position(symbol); !ok {
			delete(r.trails, symbol)
		}
	}
}

func (r *Runner) manageTrails(ctx context.Context, price float64) {
	replacer, ok := r.broker.(StopReplacer)
	if !ok {
		return
	}
	for symbol, t := range r.trails {
		stop, _ := t.ts.Update(price)
		if !t.ts.Active() {
			continue
		}
		stop = utils.RoundPrice(stop)
		improves := stop > t.stop
		if t.ts.Side == models.PositionShort {
			improves = stop < t.stop
		}
		if !improves {
			continue
		}
		if n := replacer.ReplaceStop(ctx, symbol, stop); n > 0 {
			r.logger.Debug().Float64("from", t.stop).Float64("to", stop).Msg("Trailing stop moved")
			t.stop = stop
		}
	}
}

// OnClosedTrade books a realized trade in the ledger and journal. Wire it
// as the broker's close callback.
func (r *Runner) OnClosedTrade(t models.ClosedTrade) {
	logging.LogClosedTrade(r.logger, t.Symbol, string(t.Side), t.Reason, t.Amount, t.EntryPrice, t.ExitPrice, t.RealizedPnL)
	if r.ledger != nil {
		r.ledger.RegisterClosedTrade(t)
	}
	if r.journal != nil {
		if err := r.journal.SaveClosedTrade(context.Background(), r.cfg.RunID, t); err != nil {
			r.logger.Error().Err(err).Msg("Failed to journal closed trade")
		}
	}
	r.closed = append(r.closed, t)
}

func (r *Runner) finish(res *StepResult) {
	res.Closed = r.closed
	r.closed = nil
	if r.ledger == nil {
		return
	}
	unrealized := 0.0
	if u, ok := r.broker.(unrealizer); ok {
		unrealized = u.UnrealizedPnL()
	}
	res.Account = r.ledger.Snapshot(unrealized)
	r.metrics.Account(res.Account.Equity, res.Account.MaxDrawdown)
}
