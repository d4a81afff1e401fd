package timeframe

import (
	"errors"
	"testing"
	"time"

	xerrors "signal-trader/internal/errors"
)

func TestToMs(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1m", 60_000, false},
		{"15m", 900_000, false},
		{"4h", 14_400_000, false},
		{"1d", 86_400_000, false},
		{" 1H ", 3_600_000, false},
		{"5M", 300_000, false},
		{"0m", 0, true},
		{"-1m", 0, true},
		{"1w", 0, true},
		{"m", 0, true},
		{"", 0, true},
		{"1.5h", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToMs(tt.in)
			if tt.wantErr {
				if !errors.Is(err, xerrors.ErrInvalidTimeframe) {
					t.Fatalf("ToMs(%q) error = %v, want ErrInvalidTimeframe", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToMs(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ToMs(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	spec, err := Parse("4H")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if spec.Unit != "h" || spec.N != 4 || spec.Ms != 4*HourMs {
		t.Errorf("Parse(4H) = %+v", spec)
	}
	if spec.Duration() != 4*time.Hour {
		t.Errorf("Duration() = %v", spec.Duration())
	}
	if s, _ := Normalize(" 15M"); s != "15m" {
		t.Errorf("Normalize = %q, want 15m", s)
	}
}

func TestBucket(t *testing.T) {
	got, err := Bucket(1735690261234, MinuteMs)
	if err != nil {
		t.Fatalf("Bucket: %v", err)
	}
	if got != 1735690260000 {
		t.Errorf("Bucket = %d, want 1735690260000", got)
	}

	if _, err := Bucket(-1, MinuteMs); !errors.Is(err, xerrors.ErrInvalidTimestamp) {
		t.Errorf("negative ts: got %v", err)
	}
	if _, err := Bucket(1000, 0); !errors.Is(err, xerrors.ErrInvalidDuration) {
		t.Errorf("zero duration: got %v", err)
	}
	if _, err := Bucket(1000, -60000); !errors.Is(err, xerrors.ErrInvalidDuration) {
		t.Errorf("negative duration: got %v", err)
	}
}

func TestAssertAligned(t *testing.T) {
	if err := AssertAligned(1735690260000, MinuteMs, "executionCandle"); err != nil {
		t.Fatalf("aligned timestamp rejected: %v", err)
	}

	err := AssertAligned(1735690261234, MinuteMs, "executionCandle")
	var alignErr *xerrors.AlignmentError
	if !errors.As(err, &alignErr) {
		t.Fatalf("expected AlignmentError, got %v", err)
	}
	if alignErr.Context != "executionCandle" || alignErr.Offset != 1234 || alignErr.Bucket != 1735690260000 {
		t.Errorf("unexpected alignment details: %+v", alignErr)
	}
	if alignErr.TimeframeMs != MinuteMs || alignErr.Timestamp != 1735690261234 {
		t.Errorf("unexpected alignment inputs: %+v", alignErr)
	}

	if err := AssertAligned(0, 0, "x"); !errors.Is(err, xerrors.ErrInvalidDuration) {
		t.Errorf("zero duration should fail with ErrInvalidDuration, got %v", err)
	}
}

func TestPeriodStart(t *testing.T) {
	// Wednesday 2025-01-15 13:45 UTC
	ts := time.Date(2025, 1, 15, 13, 45, 0, 0, time.UTC).UnixMilli()

	tests := []struct {
		period Period
		want   time.Time
	}{
		{PeriodDay, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
		{PeriodWeek, time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)},
		{PeriodMonth, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := PeriodStart(ts, tt.period)
		if err != nil {
			t.Fatalf("PeriodStart(%s): %v", tt.period, err)
		}
		if got != tt.want.UnixMilli() {
			t.Errorf("PeriodStart(%s) = %v, want %v", tt.period, time.UnixMilli(got).UTC(), tt.want)
		}
	}

	// Sunday belongs to the week that started the previous Monday.
	sunday := time.Date(2025, 1, 19, 23, 0, 0, 0, time.UTC).UnixMilli()
	got, _ := PeriodStart(sunday, PeriodWeek)
	if got != time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("Sunday week start = %v", time.UnixMilli(got).UTC())
	}

	if _, err := PeriodStart(ts, Period("year")); err == nil {
		t.Errorf("expected error for unknown period")
	}
}
