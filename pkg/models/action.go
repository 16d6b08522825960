package models

import "time"

// ActionContext carries everything an action executor needs for one attempt:
// the owning execution, the step being executed, and the interpolation facts
// built from contact, workflow and execution data.
type ActionContext struct {
	Execution *Execution
	Step      Step
	Facts     map[string]any
}

// ExecutionResult is the plain-data outcome of one action execution. Webhook
// and transport errors never escape the executor; they surface here through
// Error and the retry hints.
type ExecutionResult struct {
	Success           bool           `json:"success"`
	Data              map[string]any `json:"data,omitempty"`
	Error             string         `json:"error,omitempty"`
	ShouldRetry       bool           `json:"should_retry"`
	RetryDelaySeconds int            `json:"retry_delay_seconds,omitempty"`

	// Suspend asks the engine to park the execution in waiting status and
	// resume it at ResumeAt. Used by wait steps only.
	Suspend  bool      `json:"-"`
	ResumeAt time.Time `json:"-"`
}

// SuccessResult builds a successful ExecutionResult with the given data.
func SuccessResult(data map[string]any) ExecutionResult {
	return ExecutionResult{Success: true, Data: data}
}

// FailureResult builds a failed ExecutionResult with a retry hint.
func FailureResult(errMsg string, shouldRetry bool) ExecutionResult {
	return ExecutionResult{Success: false, Error: errMsg, ShouldRetry: shouldRetry}
}
