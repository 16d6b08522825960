// Package services provides the journey service layer between the HTTP
// surface and the execution engine.
package services

import (
	"errors"
	"fmt"

	"github.com/hivecrm/journey/pkg/workflow"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest    = errors.New("invalid request")
	ErrContactRequired   = errors.New("contact ID is required")
	ErrWorkflowRequired  = errors.New("workflow ID is required")
	ErrEventTypeRequired = errors.New("event type is required")
	ErrAccountRequired   = errors.New("account ID is required")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should return HTTP 400.
func IsValidationError(err error) bool {
	var validationErr *workflow.ValidationError
	if errors.As(err, &validationErr) {
		return true
	}

	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrContactRequired) ||
		errors.Is(err, ErrWorkflowRequired) ||
		errors.Is(err, ErrEventTypeRequired) ||
		errors.Is(err, ErrAccountRequired)
}

// IsConflictError checks if an error is a state conflict that should
// return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, workflow.ErrInvalidStatusTransition) ||
		errors.Is(err, workflow.ErrWorkflowNotActive) ||
		errors.Is(err, workflow.ErrContactOptedOut) ||
		errors.Is(err, workflow.ErrRetryLimitExceeded)
}

// IsLimitError checks if an error is a throughput limit that should return
// HTTP 429.
func IsLimitError(err error) bool {
	return errors.Is(err, workflow.ErrConcurrencyLimitExceeded)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
