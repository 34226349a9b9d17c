package utils

import (
	"errors"
	"fmt"
	"strings"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError is returned when a lifecycle guard or an availability
// check rejects an operation. Nothing is mutated when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field string, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PartialSagaFailure is returned when a multi-step write sequence fails
// after earlier steps have already been committed. Completed steps are NOT
// compensated; the caller gets their identifiers for manual correction.
type PartialSagaFailure struct {
	FailedStep     string
	CompletedSteps []string
	Err            error
}

func (e *PartialSagaFailure) Error() string {
	return fmt.Sprintf("step %q failed after steps [%s] were committed: %v",
		e.FailedStep, strings.Join(e.CompletedSteps, ", "), e.Err)
}

func (e *PartialSagaFailure) Unwrap() error {
	return e.Err
}
