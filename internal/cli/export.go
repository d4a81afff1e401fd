package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"signal-trader/internal/logging"
	"signal-trader/internal/store"
	"signal-trader/internal/timeframe"
)

func newExportCmd(app *App) *cobra.Command {
	var (
		symbol string
		tf     string
		from   string
		to     string
	)

	cmd := &cobra.Command{
		Use:   "export [csv]",
		Short: "Export stored candles as CSV",
		Long: `Write one stored candle series as CSV in the format 'trader import'
reads. Without a file argument the CSV goes to standard output.`,
		Example: `  trader export btc-1h.csv --timeframe 1h
  trader export --from 2025-01-01 --to 2025-01-02 > day.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if symbol == "" {
				symbol = app.Config.Pipeline.Symbol
			}
			if tf == "" {
				tf = app.Config.Pipeline.ExecutionTimeframe
			}
			name, err := timeframe.Normalize(tf)
			if err != nil {
				return err
			}
			fromMs, err := ParseTime(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			toMs, err := ParseTime(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			s, err := app.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			var w io.Writer = cmd.OutOrStdout()
			if len(args) == 1 {
				f, err := os.Create(args[0])
				if err != nil {
					return fmt.Errorf("creating %s: %w", args[0], err)
				}
				defer f.Close()
				w = f
			}

			n, err := store.ExportCSV(ctx, s, w, symbol, name, fromMs, toMs)
			if err != nil {
				return err
			}

			log := logging.WithOperation(logging.FromContext(ctx), "export")
			log.Info().Str("symbol", symbol).Str("timeframe", name).Int("candles", n).Msg("Candles exported")

			if len(args) == 0 {
				return nil
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"symbol": symbol, "timeframe": name, "file": args[0], "candles": n})
			}
			output.Success("✓ %s %s: %d candles → %s", symbol, name, n, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol to export (default: pipeline.symbol)")
	cmd.Flags().StringVar(&tf, "timeframe", "", "timeframe to export (default: pipeline.execution_timeframe)")
	cmd.Flags().StringVar(&from, "from", "", "start time, RFC 3339, date or epoch ms")
	cmd.Flags().StringVar(&to, "to", "", "end time (default: unbounded)")
	return cmd
}
