package errors

import (
	"errors"
	"fmt"
)

var (
	ErrIndexUnavailable       = errors.New("index unavailable")
	ErrInvalidCodecInput      = errors.New("invalid codec input")
	ErrOutOfBounds            = errors.New("index out of bounds")
	ErrCorruptIndex           = errors.New("corrupt index file")
	ErrConstructionInProgress = errors.New("index construction already in progress")
	ErrEmptyJournal           = errors.New("journal is empty")
	ErrBudgetExhausted        = errors.New("query budget exhausted")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInternal               = errors.New("internal error")
)

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// Category maps an error onto the short label used for metrics and logs.
func Category(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrIndexUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidCodecInput), errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, ErrCorruptIndex):
		return "corrupt"
	case errors.Is(err, ErrConstructionInProgress):
		return "busy"
	case errors.Is(err, ErrEmptyJournal):
		return "empty_journal"
	case errors.Is(err, ErrBudgetExhausted):
		return "budget_exhausted"
	default:
		return "internal"
	}
}
