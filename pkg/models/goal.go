package models

import "time"

// Goal types understood by the detector.
const (
	GoalTagAdded             = "tag_added"
	GoalPurchaseMade         = "purchase_made"
	GoalAppointmentBooked    = "appointment_booked"
	GoalFormSubmitted        = "form_submitted"
	GoalPipelineStageReached = "pipeline_stage_reached"
)

// GoalConfig describes a business event whose occurrence ends an enrollment
// early regardless of step position.
type GoalConfig struct {
	ID         string         `json:"id"          validate:"required"`
	WorkflowID string         `json:"workflow_id"`
	Type       string         `json:"type"        validate:"required"`
	Config     map[string]any `json:"config"`
	Active     bool           `json:"active"`
}

// GoalAchievement records that a contact satisfied a goal. At most one
// achievement exists per (contact, goal config) pair.
type GoalAchievement struct {
	ID           string         `json:"id"`
	ExecutionID  string         `json:"execution_id"`
	ContactID    string         `json:"contact_id"`
	GoalConfigID string         `json:"goal_config_id"`
	AchievedAt   time.Time      `json:"achieved_at"`
	TriggerEvent map[string]any `json:"trigger_event,omitempty"`
}

// GoalResult is the plain-data outcome of checking one event against a
// workflow's goals.
type GoalResult struct {
	Achieved     bool   `json:"achieved"`
	GoalConfigID string `json:"goal_config_id,omitempty"`
	ShouldExit   bool   `json:"should_exit"`
}
