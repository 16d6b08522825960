// Package models defines the core domain models for journey automation:
// workflows, steps, executions, goals and the facts conditions evaluate against.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Executable, accepts enrollments
	WorkflowStatusPaused   WorkflowStatus = "paused"   // Existing enrollments keep running, no new ones
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, not executable
)

// TriggerConfig describes the business event that enrolls a contact into
// the workflow, e.g. {"event_type": "form_submitted", "form_id": "f-1"}.
type TriggerConfig struct {
	EventType string         `json:"event_type" validate:"required"`
	Config    map[string]any `json:"config,omitempty"`
}

// Workflow represents one version of a journey definition with its ordered
// steps and exit goals.
type Workflow struct {
	ID          string         `json:"id"          validate:"required"`
	AccountID   string         `json:"account_id"  validate:"required"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Version     int            `json:"version"`
	Status      WorkflowStatus `json:"status"      validate:"required"`
	Trigger     TriggerConfig  `json:"trigger"`
	Steps       []Step         `json:"steps"`
	Goals       []GoalConfig   `json:"goals,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IsActive reports whether the workflow accepts new enrollments.
func (w *Workflow) IsActive() bool {
	return w.Status == WorkflowStatusActive
}
