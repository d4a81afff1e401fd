package timeframe

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: bucketing is idempotent and IsAligned agrees with Bucket for all
// non-negative timestamps and positive durations.
func TestProperty_BucketIdempotentAndAligned(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("Bucket(Bucket(ts)) == Bucket(ts)", prop.ForAll(
		func(ts, tfMs int64) bool {
			b, err := Bucket(ts, tfMs)
			if err != nil {
				return false
			}
			bb, err := Bucket(b, tfMs)
			return err == nil && bb == b && b <= ts && ts-b < tfMs
		},
		gen.Int64Range(0, 4_102_444_800_000),
		gen.Int64Range(1, 30*DayMs),
	))

	properties.Property("IsAligned == (Bucket(ts) == ts)", prop.ForAll(
		func(ts, tfMs int64) bool {
			b, _ := Bucket(ts, tfMs)
			return IsAligned(ts, tfMs) == (b == ts)
		},
		gen.Int64Range(0, 4_102_444_800_000),
		gen.Int64Range(1, 30*DayMs),
	))

	properties.TestingRun(t)
}

// Property: ToMs depends only on (n, unit) and is n times the unit length.
func TestProperty_ToMsIsPureFunctionOfCountAndUnit(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	units := map[string]int64{"m": MinuteMs, "h": HourMs, "d": DayMs}

	properties.Property("ToMs(n+unit) == n * unitMs", prop.ForAll(
		func(n int64, unit string, upper bool) bool {
			tf := fmt.Sprintf("%d%s", n, unit)
			if upper {
				tf = fmt.Sprintf("  %d%s ", n, string(unit[0]-32))
			}
			got, err := ToMs(tf)
			return err == nil && got == n*units[unit]
		},
		gen.Int64Range(1, 10_000),
		gen.OneConstOf("m", "h", "d"),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
