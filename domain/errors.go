package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeValidationRejected  ErrorCode = "VALIDATION_REJECTED"
	ErrCodeAggregateState      ErrorCode = "AGGREGATE_STATE"
	ErrCodeConcurrencyConflict ErrorCode = "CONCURRENCY_CONFLICT"
	ErrCodeProjectionFailure   ErrorCode = "PROJECTION_FAILURE"
	ErrCodeStoreUnavailable    ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeInvalid             ErrorCode = "INVALID"
	ErrCodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal            ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Rejected builds a business-rule rejection carrying the human readable reason.
func Rejected(reason string) *Error {
	return NewError(ErrCodeValidationRejected, reason)
}

// Common domain errors.
var (
	ErrAggregateNotInitialized = NewError(ErrCodeAggregateState, "account has not been opened")
	ErrAlreadyOpened           = NewError(ErrCodeAggregateState, "account is already open")
	ErrConcurrencyConflict     = NewError(ErrCodeConcurrencyConflict, "stream was modified concurrently")
	ErrProjectionGap           = NewError(ErrCodeProjectionFailure, "event sequence gap in projection")
	ErrAccountNotFound         = NewError(ErrCodeNotFound, "account not found")
	ErrInvalidPayload          = NewError(ErrCodeInvalid, "invalid payload")
	ErrUnknownCommand          = NewError(ErrCodeInvalid, "unknown command")
	ErrUnknownEvent            = NewError(ErrCodeInternal, "unknown event type")
	ErrUnauthorized            = NewError(ErrCodeUnauthorized, "unauthorized")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// Code returns the classification of err, INTERNAL when it carries none.
func Code(err error) ErrorCode {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return ErrCodeInternal
}

// StoreError classifies a persistence failure. Domain errors pass through
// untouched; deadlines and cancellations are reported separately from other
// outages so callers can tell a timeout apart from an unreachable store.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var dErr *Error
	if errors.As(err, &dErr) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return WrapError(ErrCodeStoreUnavailable, "store timeout during "+op, err)
	case errors.Is(err, context.Canceled):
		return WrapError(ErrCodeStoreUnavailable, op+" cancelled", err)
	default:
		return WrapError(ErrCodeStoreUnavailable, op+" failed", err)
	}
}

// IsTimeout reports whether err is a store timeout.
func IsTimeout(err error) bool {
	return IsDomainError(err, ErrCodeStoreUnavailable) && errors.Is(err, context.DeadlineExceeded)
}
