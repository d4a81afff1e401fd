package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"signal-trader/internal/account"
	"signal-trader/internal/broker"
	"signal-trader/internal/config"
	"signal-trader/internal/errors"
	"signal-trader/internal/logging"
	"signal-trader/internal/metrics"
	"signal-trader/internal/models"
	"signal-trader/internal/mtf"
	"signal-trader/internal/pipeline"
	"signal-trader/internal/resilience"
	"signal-trader/internal/risk"
	"signal-trader/internal/store"
	"signal-trader/internal/strategy"
	"signal-trader/pkg/utils"
)

func newBacktestCmd(app *App) *cobra.Command {
	var (
		symbol     string
		from       string
		to         string
		runID      string
		showTrades bool
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay stored candles through the pipeline with the paper broker",
		Long: `Replay execution-timeframe candles from the candle store through the
strategy, risk engine and execution engine against the paper broker.
Longer timeframes are rebuilt from the replayed candles as their buckets
close. Closed trades are journaled under the run id.`,
		Example: `  trader backtest --from 2025-01-01 --to 2025-02-01
  trader backtest --symbol ETH/USDT --trades --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg := app.Config

			if symbol == "" {
				symbol = cfg.Pipeline.Symbol
			}
			if from == "" {
				from = cfg.Backtest.From
			}
			if to == "" {
				to = cfg.Backtest.To
			}
			fromMs, err := ParseTime(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			toMs, err := ParseTime(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			if runID == "" {
				runID = fmt.Sprintf("bt-%d", time.Now().Unix())
			}

			s, err := app.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			candles, err := s.GetCandles(ctx, symbol, cfg.Pipeline.ExecutionTimeframe, fromMs, toMs)
			if err != nil {
				return err
			}
			if len(candles) == 0 {
				return errors.NewDataError("candles", symbol, "no "+cfg.Pipeline.ExecutionTimeframe+" candles in range; run 'trader import' first", errors.ErrDataNotFound)
			}

			report, err := runBacktest(ctx, cfg, symbol, candles, s, runID, logging.WithOperation(logging.FromContext(ctx), "backtest"))
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"run_id":  runID,
					"symbol":  symbol,
					"from":    candles[0].Timestamp,
					"to":      candles[len(candles)-1].Timestamp,
					"candles": len(candles),
					"report":  report,
				})
			}
			printReport(output, runID, symbol, candles, report, showTrades)
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol to replay (default: pipeline.symbol)")
	cmd.Flags().StringVar(&from, "from", "", "start time, RFC 3339, date or epoch ms (default: backtest.from)")
	cmd.Flags().StringVar(&to, "to", "", "end time (default: backtest.to)")
	cmd.Flags().StringVar(&runID, "run-id", "", "journal run id (default: bt-<unix time>)")
	cmd.Flags().BoolVar(&showTrades, "trades", false, "list closed trades")
	return cmd
}

// runBacktest wires a paper-broker pipeline for symbol and replays candles.
// journal may be nil.
func runBacktest(ctx context.Context, cfg *config.Config, symbol string, candles []models.Candle, journal store.TradeStore, runID string, logger zerolog.Logger) (*pipeline.Report, error) {
	sess, err := newSession(cfg, symbol, nil, journal, runID, logger)
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	return sess.runner.Replay(ctx, candles)
}

// session is one pipeline over a paper broker and ledger.
type session struct {
	runner *pipeline.Runner
	broker *broker.PaperBroker
	ledger *account.Paper
	stop   func()
}

// newSession builds the cache, strategy, paper broker, ledger and runner
// for symbol. A non-nil fetcher makes the runner live: every Step refreshes
// the cache through it with the retry and breaker settings of cfg.Live.
func newSession(cfg *config.Config, symbol string, fetcher mtf.Fetcher, journal store.TradeStore, runID string, logger zerolog.Logger) (*session, error) {
	cache, err := mtf.NewCache(mtf.CacheConfig{
		Symbol:     symbol,
		Timeframes: cfg.Pipeline.Timeframes,
		Capacity:   cfg.Pipeline.CacheCapacity,
		Fetcher:    fetcher,
	}, logger)
	if err != nil {
		return nil, err
	}

	strat, err := strategy.New(cfg.Pipeline.Strategy)
	if err != nil {
		return nil, err
	}

	sess := &session{
		ledger: account.NewPaper(cfg.Paper.StartingBalance),
		stop:   func() {},
	}
	sess.broker = broker.NewPaperBroker(broker.PaperBrokerConfig{
		StartingBalance: cfg.Paper.StartingBalance,
		FeeRate:         cfg.Paper.FeeRate,
		SlippagePercent: cfg.Paper.SlippagePercent,
		OnClose:         func(t models.ClosedTrade) { sess.runner.OnClosedTrade(t) },
	}, logger)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		sess.stop = m.Serve(cfg.Metrics.Addr, logger)
	}

	sess.runner, err = pipeline.New(pipeline.Config{
		SignalVenue:        cfg.Pipeline.SignalVenue,
		ExecutionTimeframe: cfg.Pipeline.ExecutionTimeframe,
		Live:               fetcher != nil,
		Retry: utils.RetryConfig{
			MaxAttempts:   cfg.Live.RetryAttempts,
			InitialDelay:  cfg.Live.RetryInitialDelay,
			MaxDelay:      cfg.Live.RetryMaxDelay,
			BackoffFactor: 2,
		},
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.Live.BreakerFailures,
			SuccessThreshold: 1,
			Cooldown:         cfg.Live.BreakerCooldown,
		},
		RunID: runID,
	}, pipeline.Deps{
		Cache:    cache,
		Strategy: strat,
		Risk:     risk.NewEngine(cfg.Risk),
		Broker:   sess.broker,
		Ledger:   sess.ledger,
		Journal:  journal,
		Metrics:  m,
	}, logger)
	if err != nil {
		sess.stop()
		return nil, err
	}
	return sess, nil
}

// Close stops the metrics endpoint, if one was started.
func (s *session) Close() {
	s.stop()
}

func printReport(output *Output, runID, symbol string, candles []models.Candle, r *pipeline.Report, showTrades bool) {
	acct := r.Account

	output.Bold("Backtest %s", runID)
	output.Printf("  Symbol:          %s\n", symbol)
	output.Printf("  Range:           %s → %s\n", FormatTimestamp(candles[0].Timestamp), FormatTimestamp(candles[len(candles)-1].Timestamp))
	output.Printf("  Ticks:           %d\n", r.Ticks)
	output.Printf("  Plans:           %d open, %d close\n", r.Plans[string(models.PlanOpen)], r.Plans[string(models.PlanClose)])
	output.Println()

	output.Bold("Paper Account")
	output.Printf("  Starting:        %s\n", FormatUSDT(acct.StartingBalance))
	output.Printf("  Equity:          %s\n", FormatUSDT(acct.Equity))
	output.Printf("  Return:          %s\n", FormatPercent(r.TotalReturn))
	output.Printf("  Max equity:      %s\n", FormatUSDT(acct.MaxEquity))
	output.Printf("  Drawdown:        %s\n", FormatUSDT(acct.MaxDrawdown))
	output.Printf("  Trades:          %d (%d won, %d lost, %d even)\n", acct.TotalTrades, acct.Wins, acct.Losses, acct.Breakeven)
	output.Printf("  Win rate:        %.2f%%\n", r.WinRate)
	output.Printf("  Avg win/loss:    %s / %s\n", FormatUSDT(r.AvgWin), FormatUSDT(r.AvgLoss))
	output.Printf("  Profit factor:   %.2f\n", r.ProfitFactor)
	output.Printf("  Sharpe (tick):   %.4f\n", r.SharpeRatio)
	output.Printf("  Risk per open:   %.2f%% avg, %.2f%% max\n", r.AvgRisk, r.MaxRisk)

	if len(r.Skips) > 0 {
		output.Println()
		output.Bold("Skipped intents")
		reasons := make([]string, 0, len(r.Skips))
		for reason := range r.Skips {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			if reason == string(risk.SkipNoAction) {
				continue
			}
			output.Printf("  %-22s %d\n", reason, r.Skips[reason])
		}
	}

	if showTrades && len(r.Trades) > 0 {
		output.Println()
		table := NewTable(output, "CLOSED", "SIDE", "SIZE", "ENTRY", "EXIT", "PNL", "REASON")
		for _, t := range r.Trades {
			table.AddRow(
				FormatTimestamp(t.ClosedAt),
				string(t.Side),
				fmt.Sprintf("%g", t.Amount),
				FormatPrice(t.EntryPrice),
				FormatPrice(t.ExitPrice),
				output.FormatPnL(t.RealizedPnL),
				t.Reason,
			)
		}
		table.Render()
	}
}
