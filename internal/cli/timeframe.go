package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"signal-trader/internal/timeframe"
)

func newTimeframeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeframe <tf> [timestamp]",
		Short: "Show a timeframe's length and the bucket a timestamp falls in",
		Example: `  trader timeframe 15m
  trader timeframe 1h 1735690261234
  trader timeframe 1d 2025-01-01T13:45:00Z`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			spec, err := timeframe.Parse(args[0])
			if err != nil {
				return err
			}

			result := map[string]interface{}{
				"timeframe": spec.String(),
				"ms":        spec.Ms,
			}
			if len(args) == 2 {
				ts, err := ParseTime(args[1])
				if err != nil {
					return err
				}
				bucket, err := timeframe.Bucket(ts, spec.Ms)
				if err != nil {
					return err
				}
				result["timestamp"] = ts
				result["bucket"] = bucket
				result["close_time"] = timeframe.CloseTime(bucket, spec.Ms)
				result["aligned"] = bucket == ts
			}

			if output.IsJSON() {
				return output.JSON(result)
			}

			output.Printf("%s = %s ms (%s)\n", spec, strconv.FormatInt(spec.Ms, 10), spec.Duration())
			if bucket, ok := result["bucket"].(int64); ok {
				ts := result["timestamp"].(int64)
				output.Printf("bucket:  %d  %s\n", bucket, FormatTimestamp(bucket))
				output.Printf("closes:  %d  %s\n", timeframe.CloseTime(bucket, spec.Ms), FormatTimestamp(timeframe.CloseTime(bucket, spec.Ms)))
				if bucket == ts {
					output.Success("✓ %d is aligned", ts)
				} else {
					output.Warning("%d is %d ms into its bucket", ts, ts-bucket)
				}
			}
			return nil
		},
	}
}
