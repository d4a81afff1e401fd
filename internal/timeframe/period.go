package timeframe

import (
	"fmt"
	"time"
)

// Period is a calendar period used for anchored calculations.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// PeriodStart returns the UTC start (epoch ms) of the period containing ts.
// Weeks start on Monday.
func PeriodStart(ts int64, period Period) (int64, error) {
	t := time.UnixMilli(ts).UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	switch period {
	case PeriodDay:
		return day.UnixMilli(), nil
	case PeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset).UnixMilli(), nil
	case PeriodMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).UnixMilli(), nil
	default:
		return 0, fmt.Errorf("unknown period %q", period)
	}
}
