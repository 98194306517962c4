package usecase

import (
	"fmt"

	"healthcare-assistant/internal/domain"
)

// ErrorCode is the stable code returned to API callers.
type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorStore        ErrorCode = "STORE_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

// Error is a caller-facing failure with a stable code and a machine reason.
// ErrorInvalidInput is the validation error: no generator runs.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// GenerationError reports that a tier could not produce a reply. The
// orchestrator recovers from it by moving to the next tier.
type GenerationError struct {
	Tier   domain.Tier
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s tier failed (%s)", e.Tier, e.Reason)
	}
	return fmt.Sprintf("usecase: %s tier failed (%s): %v", e.Tier, e.Reason, e.Err)
}

func (e *GenerationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func generationError(tier domain.Tier, reason string, err error) *GenerationError {
	return &GenerationError{Tier: tier, Reason: reason, Err: err}
}

// StoreError wraps a conversation store I/O fault.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("usecase: store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
