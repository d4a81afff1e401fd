package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"signal-trader/internal/logging"
	"signal-trader/internal/models"
	"signal-trader/internal/pipeline"
	"signal-trader/internal/timeframe"
)

func newPaperCmd(app *App) *cobra.Command {
	var (
		symbol   string
		runID    string
		interval time.Duration
		maxTicks int
	)

	cmd := &cobra.Command{
		Use:   "paper",
		Short: "Paper trade live against candles polled from the candle store",
		Long: `Run the pipeline in live mode against the paper broker. Every tick
refreshes the multi-timeframe cache from the candle store, so another
process (for example a scheduled 'trader import') can keep appending
candles while this one trades them.

Refreshes are retried and guarded by a circuit breaker as configured in
the [live] section. Stop with Ctrl+C.`,
		Example: `  trader paper
  trader paper --interval 30s --symbol ETH/USDT
  trader paper --max-ticks 10 --json`,
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
			if runID == "" {
				runID = fmt.Sprintf("paper-%d", time.Now().Unix())
			}
			if interval <= 0 {
				interval = cfg.Live.Interval
			}
			if interval <= 0 {
				ms, err := timeframe.ToMs(cfg.Pipeline.ExecutionTimeframe)
				if err != nil {
					return err
				}
				interval = time.Duration(ms) * time.Millisecond
			}

			s, err := app.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			logger := logging.WithOperation(logging.FromContext(ctx), "paper")
			sess, err := newSession(cfg, symbol, s, s, runID, logger)
			if err != nil {
				return err
			}
			defer sess.Close()

			if !output.IsJSON() {
				output.Bold("Paper trading %s", runID)
				output.Printf("  Symbol:    %s\n", symbol)
				output.Printf("  Timeframe: %s\n", cfg.Pipeline.ExecutionTimeframe)
				output.Printf("  Interval:  %s\n", interval)
				output.Println()
			}

			var last pipeline.StepResult
			ticks := runPaper(ctx, sess.runner, interval, maxTicks, logger, func(res pipeline.StepResult) {
				last = res
				if !output.IsJSON() {
					printStep(output, res)
				}
			})

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"run_id":  runID,
					"symbol":  symbol,
					"ticks":   ticks,
					"account": last.Account,
				})
			}
			output.Println()
			output.Bold("Paper Account after %d ticks", ticks)
			output.Printf("  Equity:    %s\n", FormatUSDT(last.Account.Equity))
			output.Printf("  Realized:  %s\n", output.FormatPnL(last.Account.Balance-last.Account.StartingBalance))
			output.Printf("  Trades:    %d\n", last.Account.TotalTrades)
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol to trade (default: pipeline.symbol)")
	cmd.Flags().StringVar(&runID, "run-id", "", "journal run id (default: paper-<unix time>)")
	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "tick interval (default: live.interval, else one execution timeframe)")
	cmd.Flags().IntVar(&maxTicks, "max-ticks", 0, "stop after this many ticks (0 runs until interrupted)")
	return cmd
}

// runPaper steps runner once immediately and then every interval until ctx
// is done or maxTicks steps have run. Failed steps are logged and the loop
// carries on; onStep sees every step that produced a snapshot.
func runPaper(ctx context.Context, runner *pipeline.Runner, interval time.Duration, maxTicks int, logger zerolog.Logger, onStep func(pipeline.StepResult)) int {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ticks := 0
	for {
		res, err := runner.Step(ctx)
		if ctx.Err() != nil {
			return ticks
		}
		ticks++
		if err != nil {
			logger.Warn().Err(err).Int("tick", ticks).Msg("Paper step failed")
		}
		if res.Timestamp != 0 {
			onStep(res)
		}
		if maxTicks > 0 && ticks >= maxTicks {
			return ticks
		}

		select {
		case <-ctx.Done():
			return ticks
		case <-ticker.C:
		}
	}
}

func printStep(output *Output, res pipeline.StepResult) {
	if res.Plan != nil {
		line := fmt.Sprintf("%s %s %s %g @ %s", FormatTimestamp(res.Timestamp), res.Plan.Action, res.Plan.Side, res.Plan.Amount, FormatPrice(res.Plan.EntryPrice))
		if res.EffectiveRisk > 0 {
			line += fmt.Sprintf(" (risk %.2f%%)", res.EffectiveRisk*100)
		}
		output.Info("%s", line)
	}
	for _, t := range res.Closed {
		output.Printf("%s closed %s %g @ %s  %s (%s)\n", FormatTimestamp(t.ClosedAt), t.Side, t.Amount, FormatPrice(t.ExitPrice), output.FormatPnL(t.RealizedPnL), t.Reason)
	}
	if res.Plan == nil && len(res.Closed) == 0 && res.Intent.Action != models.IntentNoAction && res.Skip != "" {
		output.Dim("%s %s skipped: %s", FormatTimestamp(res.Timestamp), res.Intent.Action, res.Skip)
	}
}
