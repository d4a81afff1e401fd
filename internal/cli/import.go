package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"signal-trader/internal/logging"
	"signal-trader/internal/mtf"
	"signal-trader/internal/store"
	"signal-trader/internal/timeframe"
)

func newImportCmd(app *App) *cobra.Command {
	var (
		symbol   string
		tf       string
		resample bool
	)

	cmd := &cobra.Command{
		Use:   "import <csv>",
		Short: "Import candles from a CSV file into the candle store",
		Long: `Import candles from a CSV file with a header row of
timestamp,open,high,low,close,volume (epoch ms, optional symbol and
timeframe columns) into the SQLite candle store.

With --resample every other configured timeframe longer than the imported
one is derived from it. Only buckets that are complete are stored.`,
		Args: cobra.ExactArgs(1),
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

			s, err := app.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := store.ImportCSV(ctx, s, args[0], symbol, name)
			if err != nil {
				return err
			}
			counts := map[string]int{name: n}

			if resample {
				derived, err := resampleStored(ctx, s, symbol, name, app.Config.Pipeline.Timeframes)
				if err != nil {
					return err
				}
				for k, v := range derived {
					counts[k] = v
				}
			}

			log := logging.WithOperation(logging.FromContext(ctx), "import")
			log.Info().Str("file", args[0]).Str("symbol", symbol).Interface("candles", counts).Msg("Candles imported")

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"symbol": symbol, "candles": counts})
			}
			for _, k := range sortedTimeframes(counts) {
				output.Success("✓ %s %s: %d candles", symbol, k, counts[k])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol for rows without one (default: pipeline.symbol)")
	cmd.Flags().StringVar(&tf, "timeframe", "", "timeframe of the file (default: pipeline.execution_timeframe)")
	cmd.Flags().BoolVar(&resample, "resample", false, "derive longer configured timeframes from the import")
	return cmd
}

// resampleStored derives each longer timeframe from the stored source
// series and saves the complete buckets.
func resampleStored(ctx context.Context, s store.CandleStore, symbol, source string, targets []string) (map[string]int, error) {
	srcMs, _ := timeframe.ToMs(source)
	candles, err := s.GetCandles(ctx, symbol, source, 0, 0)
	if err != nil || len(candles) == 0 {
		return nil, err
	}
	cutoff := timeframe.CloseTime(candles[len(candles)-1].Timestamp, srcMs)

	counts := make(map[string]int)
	for _, target := range targets {
		spec, err := timeframe.Parse(target)
		if err != nil {
			return nil, err
		}
		if spec.Ms <= srcMs {
			continue
		}
		out, err := mtf.Resample(candles, spec.String())
		if err != nil {
			return nil, fmt.Errorf("resampling %s: %w", spec, err)
		}
		complete := mtf.CompleteBefore(out, cutoff)
		if err := s.SaveCandles(ctx, symbol, spec.String(), complete); err != nil {
			return nil, err
		}
		counts[spec.String()] = len(complete)
	}
	return counts, nil
}

func sortedTimeframes(counts map[string]int) []string {
	out := make([]string, 0, len(counts))
	for k := range counts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := timeframe.ToMs(out[i])
		b, _ := timeframe.ToMs(out[j])
		return a < b
	})
	return out
}
