// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientData    = errors.New("insufficient data for calculation")
	ErrInvalidPeriod       = errors.New("invalid period")
	ErrInvalidQuote        = errors.New("invalid quote")
	ErrDuplicateOrder      = errors.New("duplicate order")
	ErrOrderNotFound       = errors.New("order not found")
	ErrUpstreamUnavailable = errors.New("upstream data source unavailable")
	ErrDataNotFound        = errors.New("data not found")
	ErrConfigInvalid       = errors.New("invalid configuration")
	ErrMalformedSeries     = errors.New("malformed price series")
)

// DataError represents a data-related error for one instrument.
type DataError struct {
	DataType string
	Code     string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Code, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, code, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Code:     code,
		Message:  message,
		Err:      err,
	}
}

// OrderError represents an error related to order operations.
type OrderError struct {
	OrderID string
	Code    string
	Side    string
	Reason  string
	Err     error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error [%s] %s %s: %s: %v", e.OrderID, e.Side, e.Code, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error [%s] %s %s: %s", e.OrderID, e.Side, e.Code, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(orderID, code, side, reason string, err error) *OrderError {
	return &OrderError{
		OrderID: orderID,
		Code:    code,
		Side:    side,
		Reason:  reason,
		Err:     err,
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

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// StoreError represents a persistence-layer error.
type StoreError struct {
	Operation string
	Key       string
	Err       error
}

func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("store error [%s] %s: %v", e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("store error [%s]: %v", e.Operation, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(operation, key string, err error) *StoreError {
	return &StoreError{
		Operation: operation,
		Key:       key,
		Err:       err,
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
