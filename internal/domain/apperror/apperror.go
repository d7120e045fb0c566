package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound              Kind = "not_found"
	KindInvalidRange          Kind = "invalid_range"
	KindAdvanceWindowExceeded Kind = "advance_window_exceeded"
	KindInsufficientBalance   Kind = "insufficient_balance"
	KindInvalidState          Kind = "invalid_state"
	KindForbidden             Kind = "forbidden"
	KindValidation            Kind = "validation_error"
)

// Error is a business-rule failure. Callers match it with errors.Is against
// the sentinels below, which compare by Kind only.
type Error struct {
	Kind    Kind
	Message string

	MaxAdvanceDays int
	Category       string
	Remaining      float64
}

var (
	ErrNotFound              = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidRange          = &Error{Kind: KindInvalidRange, Message: "start date must be on or before end date"}
	ErrAdvanceWindowExceeded = &Error{Kind: KindAdvanceWindowExceeded, Message: "request is too far in advance"}
	ErrInsufficientBalance   = &Error{Kind: KindInsufficientBalance, Message: "insufficient balance"}
	ErrInvalidState          = &Error{Kind: KindInvalidState, Message: "request is not pending"}
	ErrForbidden             = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrValidation            = &Error{Kind: KindValidation, Message: "validation failed"}
)

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func InvalidRange() *Error {
	return &Error{Kind: KindInvalidRange, Message: ErrInvalidRange.Message}
}

func AdvanceWindowExceeded(maxDays int) *Error {
	return &Error{
		Kind:           KindAdvanceWindowExceeded,
		Message:        fmt.Sprintf("requests can be submitted at most %d days in advance", maxDays),
		MaxAdvanceDays: maxDays,
	}
}

func InsufficientBalance(category string, remaining float64) *Error {
	return &Error{
		Kind:      KindInsufficientBalance,
		Message:   fmt.Sprintf("insufficient %s balance: %g remaining", category, remaining),
		Category:  category,
		Remaining: remaining,
	}
}

func InvalidState(msg string) *Error {
	return &Error{Kind: KindInvalidState, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// err is not a business-rule failure.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
