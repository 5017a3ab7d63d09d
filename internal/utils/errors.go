package utils

import (
	"errors"
	"fmt"
)

// InvalidParameterError represents a request parameter outside its allowed
// range. It is rejected before the pipeline runs and never retried.
type InvalidParameterError struct {
	Message string
}

// Error returns the error message string.
func (e *InvalidParameterError) Error() string {
	return e.Message
}

// NewInvalidParameterError creates a new InvalidParameterError with a specific message.
func NewInvalidParameterError(message string) error {
	return &InvalidParameterError{
		Message: message,
	}
}

// NewInvalidParameterErrorf creates a new InvalidParameterError with a formatted message.
func NewInvalidParameterErrorf(format string, args ...interface{}) error {
	return &InvalidParameterError{
		Message: fmt.Sprintf(format, args...),
	}
}

// DataUnavailableError represents a ticker for which the provider returned
// no bars at all (unknown symbol or empty series).
type DataUnavailableError struct {
	Ticker  string
	Message string
}

// Error returns the error message string.
func (e *DataUnavailableError) Error() string {
	return e.Message
}

// NewDataUnavailableError creates a new DataUnavailableError for a ticker.
func NewDataUnavailableError(ticker string) error {
	return &DataUnavailableError{
		Ticker:  ticker,
		Message: fmt.Sprintf("no data found for %s", ticker),
	}
}

// InsufficientHistoryError represents a series that exists but holds fewer
// usable bars than the analysis requires. Distinct from DataUnavailableError
// so callers can tell "unknown ticker" from "known ticker, short history".
type InsufficientHistoryError struct {
	Required int
	Actual   int
	Message  string
}

// Error returns the error message string.
func (e *InsufficientHistoryError) Error() string {
	return e.Message
}

// NewInsufficientHistoryError creates a new InsufficientHistoryError with counts.
func NewInsufficientHistoryError(required, actual int) error {
	return &InsufficientHistoryError{
		Required: required,
		Actual:   actual,
		Message:  fmt.Sprintf("insufficient history: need %d usable bars, have %d", required, actual),
	}
}

// ProviderError represents a market-data fetch failure after the retry
// budget is exhausted. Surfaced as service-unavailable.
type ProviderError struct {
	Message string
	Err     error
}

// Error returns the error message string.
func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying transport error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps a transport failure from the market-data boundary.
func NewProviderError(message string, err error) error {
	return &ProviderError{
		Message: message,
		Err:     err,
	}
}

// RateLimitError represents an upstream API quota rejection. Surfaced as
// too-many-requests so the caller can back off.
type RateLimitError struct {
	Message string
}

// Error returns the error message string.
func (e *RateLimitError) Error() string {
	return e.Message
}

// NewRateLimitError creates a new RateLimitError with a specific message.
func NewRateLimitError(message string) error {
	return &RateLimitError{
		Message: message,
	}
}

// ClusteringError represents a degenerate feature matrix or an internal
// clustering invariant breach. Retrying with identical inputs reproduces the
// failure, so it is never retried.
type ClusteringError struct {
	Message string
}

// Error returns the error message string.
func (e *ClusteringError) Error() string {
	return e.Message
}

// NewClusteringError creates a new ClusteringError with a specific message.
func NewClusteringError(message string) error {
	return &ClusteringError{
		Message: message,
	}
}

// NewClusteringErrorf creates a new ClusteringError with a formatted message.
func NewClusteringErrorf(format string, args ...interface{}) error {
	return &ClusteringError{
		Message: fmt.Sprintf(format, args...),
	}
}

// IsInvalidParameter reports whether err is an InvalidParameterError.
func IsInvalidParameter(err error) bool {
	var target *InvalidParameterError
	return errors.As(err, &target)
}

// IsDataUnavailable reports whether err is a DataUnavailableError.
func IsDataUnavailable(err error) bool {
	var target *DataUnavailableError
	return errors.As(err, &target)
}

// IsInsufficientHistory reports whether err is an InsufficientHistoryError.
func IsInsufficientHistory(err error) bool {
	var target *InsufficientHistoryError
	return errors.As(err, &target)
}

// IsProviderError reports whether err is a ProviderError.
func IsProviderError(err error) bool {
	var target *ProviderError
	return errors.As(err, &target)
}

// IsRateLimited reports whether err is a RateLimitError.
func IsRateLimited(err error) bool {
	var target *RateLimitError
	return errors.As(err, &target)
}

// IsClusteringError reports whether err is a ClusteringError.
func IsClusteringError(err error) bool {
	var target *ClusteringError
	return errors.As(err, &target)
}
