package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestAlignmentErrorUnwrapsToMisaligned(t *testing.T) {
	err := NewAlignmentError(1735690261234, 60000, 1735690260000, "executionCandle")

	if !Is(err, ErrMisaligned) {
		t.Fatalf("expected ErrMisaligned in chain")
	}
	if err.Offset != 1234 {
		t.Errorf("offset = %d, want 1234", err.Offset)
	}
	if !strings.Contains(err.Error(), "executionCandle") {
		t.Errorf("message should name context: %s", err.Error())
	}
}

func TestWrappedTypedErrors(t *testing.T) {
	wrapped := Wrapf(NewTimeframeError("0m", "count must be positive"), "parsing %s", "0m")
	if !Is(wrapped, ErrInvalidTimeframe) {
		t.Errorf("timeframe error should unwrap to ErrInvalidTimeframe")
	}

	var tfErr *TimeframeError
	if !As(wrapped, &tfErr) || tfErr.Input != "0m" {
		t.Errorf("As should recover TimeframeError, got %v", tfErr)
	}

	if !Is(NewValidationError("risk.max_leverage", 0, "must be positive"), ErrConfigInvalid) {
		t.Errorf("validation error should unwrap to ErrConfigInvalid")
	}
}

func TestPartialExecutionErrorKeepsEntryID(t *testing.T) {
	cause := fmt.Errorf("exchange down")
	err := NewPartialExecutionError("stop_loss", "ord-1", cause)

	if !Is(err, cause) {
		t.Errorf("partial execution error should unwrap to cause")
	}
	if !strings.Contains(err.Error(), "ord-1") {
		t.Errorf("message should carry entry id: %s", err.Error())
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Errorf("Wrap(nil) should be nil")
	}
}
