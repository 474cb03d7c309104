package enrichment

import (
	"errors"
	"fmt"
)

const (
	CallCategorize = "categorize"
	CallScore      = "score"
)

var (
	// ErrEmptyResponse is returned when the model produced no JSON object.
	ErrEmptyResponse = errors.New("enrichment: response contained no JSON object")
	// ErrInvalidResponse is returned when a parsed response fails validation.
	ErrInvalidResponse = errors.New("enrichment: invalid response")
)

// Error reports the failure of one enrichment call.
type Error struct {
	Call string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("enrichment: %s failed: %v", e.Call, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidResponse, fmt.Sprintf(format, args...))
}
