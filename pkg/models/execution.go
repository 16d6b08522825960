package models

import "time"

// ExecutionStatus represents the lifecycle state of one enrollment run.
type ExecutionStatus string

const (
	ExecutionStatusQueued    ExecutionStatus = "queued"
	ExecutionStatusActive    ExecutionStatus = "active"
	ExecutionStatusWaiting   ExecutionStatus = "waiting"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal executions are
// immutable.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// Execution is one contact's run through one workflow version. It is
// exclusively owned by the engine for the duration of the run and persisted
// at status transitions.
type Execution struct {
	ID               string          `json:"id"`
	WorkflowID       string          `json:"workflow_id"`
	WorkflowVersion  int             `json:"workflow_version"`
	ContactID        string          `json:"contact_id"`
	AccountID        string          `json:"account_id"`
	Status           ExecutionStatus `json:"status"`
	CurrentStepIndex int             `json:"current_step_index"`
	RetryCount       int             `json:"retry_count"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
}

// ExecutionLog is one step-level log entry; one entry is appended per action
// attempt, success or failure.
type ExecutionLog struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	StepIndex   int            `json:"step_index"`
	StepID      string         `json:"step_id"`
	ActionType  string         `json:"action_type"`
	Attempt     int            `json:"attempt"`
	Status      string         `json:"status"`
	Response    map[string]any `json:"response,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Log entry statuses.
const (
	LogStatusSuccess = "success"
	LogStatusFailure = "failure"
	LogStatusSkipped = "skipped"
)
