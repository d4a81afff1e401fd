// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidTimeframe  = errors.New("invalid timeframe")
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrMisaligned        = errors.New("timestamp not bucket aligned")
	ErrUnknownTimeframe  = errors.New("unknown timeframe")
	ErrOutOfOrder        = errors.New("candle older than latest cached candle")
	ErrSizingUnavailable = errors.New("position sizing unavailable")
	ErrNoPositionToClose = errors.New("no position to close")
	ErrMaxPositions      = errors.New("max concurrent positions reached")
	ErrUnsupportedAction = errors.New("unsupported action")
	ErrPositionExists    = errors.New("position already open")
	ErrSingularMatrix    = errors.New("singular or ill-conditioned system")
	ErrInvalidPlan       = errors.New("invalid trade plan")
	ErrOrderRejected     = errors.New("order rejected")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrDataNotFound      = errors.New("data not found")
	ErrDatabaseError     = errors.New("database error")
)

// TimeframeError reports a malformed timeframe string.
type TimeframeError struct {
	Input  string
	Reason string
}

func (e *TimeframeError) Error() string {
	return fmt.Sprintf("invalid timeframe %q: %s", e.Input, e.Reason)
}

func (e *TimeframeError) Unwrap() error {
	return ErrInvalidTimeframe
}

// NewTimeframeError creates a new TimeframeError.
func NewTimeframeError(input, reason string) *TimeframeError {
	return &TimeframeError{Input: input, Reason: reason}
}

// AlignmentError reports a timestamp that does not sit on its bucket boundary.
type AlignmentError struct {
	Timestamp   int64
	TimeframeMs int64
	Bucket      int64
	Offset      int64
	Context     string
}

func (e *AlignmentError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: timestamp %d not aligned to %dms bucket (bucket %d, offset %dms)",
			e.Context, e.Timestamp, e.TimeframeMs, e.Bucket, e.Offset)
	}
	return fmt.Sprintf("timestamp %d not aligned to %dms bucket (bucket %d, offset %dms)",
		e.Timestamp, e.TimeframeMs, e.Bucket, e.Offset)
}

func (e *AlignmentError) Unwrap() error {
	return ErrMisaligned
}

// NewAlignmentError creates a new AlignmentError.
func NewAlignmentError(ts, tfMs, bucket int64, context string) *AlignmentError {
	return &AlignmentError{
		Timestamp:   ts,
		TimeframeMs: tfMs,
		Bucket:      bucket,
		Offset:      ts - bucket,
		Context:     context,
	}
}

// OrderError represents an error related to order operations.
type OrderError struct {
	OrderID string
	Symbol  string
	Action  string
	Reason  string
	Err     error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error [%s] %s %s: %s: %v", e.OrderID, e.Action, e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error [%s] %s %s: %s", e.OrderID, e.Action, e.Symbol, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(orderID, symbol, action, reason string, err error) *OrderError {
	return &OrderError{
		OrderID: orderID,
		Symbol:  symbol,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// PartialExecutionError is returned when the entry order was acknowledged but a
// protective order failed. EntryOrderID is always set.
type PartialExecutionError struct {
	Stage        string
	EntryOrderID string
	Err          error
}

func (e *PartialExecutionError) Error() string {
	return fmt.Sprintf("partial execution: entry %s filled, %s failed: %v", e.EntryOrderID, e.Stage, e.Err)
}

func (e *PartialExecutionError) Unwrap() error {
	return e.Err
}

// NewPartialExecutionError creates a new PartialExecutionError.
func NewPartialExecutionError(stage, entryOrderID string, err error) *PartialExecutionError {
	return &PartialExecutionError{
		Stage:        stage,
		EntryOrderID: entryOrderID,
		Err:          err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
