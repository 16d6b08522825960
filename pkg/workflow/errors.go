// Package workflow implements the journey execution engine: the state
// machine driving one enrollment through ordered steps with retry, branch
// routing, goal exit and per-account concurrency ceilings.
package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrencyLimitExceeded indicates the account's concurrent
	// execution ceiling is reached. The caller may requeue.
	ErrConcurrencyLimitExceeded = errors.New("concurrency limit exceeded")

	// ErrInvalidStatusTransition indicates an operation is not legal from
	// the execution's current status.
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrWorkflowNotActive indicates the workflow does not accept new
	// enrollments.
	ErrWorkflowNotActive = errors.New("workflow is not active")

	// ErrContactOptedOut indicates the contact refused automation.
	ErrContactOptedOut = errors.New("contact has opted out")

	// ErrRetryLimitExceeded indicates a failed execution has used up its
	// operator retry budget.
	ErrRetryLimitExceeded = errors.New("retry limit exceeded")
)

// ValidationError indicates bad configuration: unknown action type, invalid
// branch structure, unresolvable jump target. Never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Message
}

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ActionExecutionError wraps an action failure that exhausted its retry
// budget. It marks the execution failed.
type ActionExecutionError struct {
	StepID     string
	ActionType string
	Attempts   int
	Err        error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %s (step %s) failed after %d attempts: %v",
		e.ActionType, e.StepID, e.Attempts, e.Err)
}

func (e *ActionExecutionError) Unwrap() error {
	return e.Err
}
