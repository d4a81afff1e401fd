// Package timeframe converts timeframe strings to durations and snaps
// epoch-millisecond timestamps to bucket boundaries.
package timeframe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"signal-trader/internal/errors"
)

// Unit multipliers in milliseconds.
const (
	MinuteMs int64 = 60_000
	HourMs         = 60 * MinuteMs
	DayMs          = 24 * HourMs
)

var pattern = regexp.MustCompile(`^(\d+)([mhd])$`)

// Spec is a parsed timeframe.
type Spec struct {
	Unit string
	N    int64
	Ms   int64
}

// Duration returns the timeframe as a time.Duration.
func (s Spec) Duration() time.Duration {
	return time.Duration(s.Ms) * time.Millisecond
}

func (s Spec) String() string {
	return fmt.Sprintf("%d%s", s.N, s.Unit)
}

// Parse validates tf and returns its unit, count and length in ms.
// Input is trimmed and lower-cased first.
func Parse(tf string) (Spec, error) {
	norm := strings.ToLower(strings.TrimSpace(tf))
	m := pattern.FindStringSubmatch(norm)
	if m == nil {
		return Spec{}, errors.NewTimeframeError(tf, "expected <count><m|h|d>")
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Spec{}, errors.NewTimeframeError(tf, "count out of range")
	}
	if n <= 0 {
		return Spec{}, errors.NewTimeframeError(tf, "count must be positive")
	}

	var unitMs int64
	switch m[2] {
	case "m":
		unitMs = MinuteMs
	case "h":
		unitMs = HourMs
	case "d":
		unitMs = DayMs
	}
	if n > (1<<63-1)/unitMs {
		return Spec{}, errors.NewTimeframeError(tf, "count out of range")
	}

	return Spec{Unit: m[2], N: n, Ms: n * unitMs}, nil
}

// ToMs returns the length of tf in milliseconds.
func ToMs(tf string) (int64, error) {
	spec, err := Parse(tf)
	if err != nil {
		return 0, err
	}
	return spec.Ms, nil
}

// Normalize returns the canonical form of tf ("1H " -> "1h").
func Normalize(tf string) (string, error) {
	spec, err := Parse(tf)
	if err != nil {
		return "", err
	}
	return spec.String(), nil
}

// Bucket returns floor(ts / tfMs) * tfMs.
// Timestamps before the epoch are rejected.
func Bucket(ts, tfMs int64) (int64, error) {
	if ts < 0 {
		return 0, fmt.Errorf("%w: %d", errors.ErrInvalidTimestamp, ts)
	}
	if tfMs <= 0 {
		return 0, fmt.Errorf("%w: %d", errors.ErrInvalidDuration, tfMs)
	}
	return (ts / tfMs) * tfMs, nil
}

// IsAligned reports whether ts sits exactly on a tfMs boundary.
func IsAligned(ts, tfMs int64) bool {
	b, err := Bucket(ts, tfMs)
	return err == nil && b == ts
}

// AssertAligned returns an *errors.AlignmentError when ts is not on a tfMs
// boundary. context names the offending field in the message.
func AssertAligned(ts, tfMs int64, context string) error {
	b, err := Bucket(ts, tfMs)
	if err != nil {
		if context != "" {
			return fmt.Errorf("%s: %w", context, err)
		}
		return err
	}
	if b != ts {
		return errors.NewAlignmentError(ts, tfMs, b, context)
	}
	return nil
}

// CloseTime returns the exclusive end of the bucket starting at ts.
func CloseTime(ts, tfMs int64) int64 {
	return ts + tfMs
}
