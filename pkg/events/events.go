// Package events defines the contact activity and execution lifecycle
// events that flow between the CRM, the journey workers and the API.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const ContactTopic = "journey.contact.events"     // CRM activity consumed by workers
const ExecutionTopic = "journey.execution.events" // Engine lifecycle notifications

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Inbound contact activity.
	ContactActivityEvent EventType = "contact.activity"

	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
	ExecutionWaitingEvent   EventType = "execution.waiting"
	ExecutionResumedEvent   EventType = "execution.resumed"
	GoalAchievedEvent       EventType = "execution.goal_achieved"
)

// Contact activity names. Trigger matching and goal detection key on these.
const (
	ActivityTagAdded             = "tag_added"
	ActivityTagRemoved           = "tag_removed"
	ActivityPurchaseMade         = "purchase_made"
	ActivityAppointmentBooked    = "appointment_booked"
	ActivityFormSubmitted        = "form_submitted"
	ActivityPipelineStageReached = "pipeline_stage_reached"
	ActivityEmailOpened          = "email_opened"
	ActivityLinkClicked          = "link_clicked"
	ActivityContactCreated       = "contact_created"
	ActivityContactUpdated       = "contact_updated"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	AccountID string         `json:"account_id"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, accountID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		AccountID: accountID,
		Metadata:  make(map[string]any),
	}
}

// ContactActivity is one CRM-side fact about a contact: a tag was added, a
// purchase was made, a form was submitted. Workers match these against
// workflow triggers and active goals.
type ContactActivity struct {
	BaseEvent

	ContactID string         `json:"contact_id"`
	Activity  string         `json:"activity"`
	Data      map[string]any `json:"data,omitempty"`
}

func (c ContactActivity) GetType() EventType {
	return ContactActivityEvent
}

// Execution lifecycle events

type ExecutionStarted struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	WorkflowID   string `json:"workflow_id"`
	ContactID    string `json:"contact_id"`
	TriggerEvent string `json:"trigger_event,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	WorkflowID    string `json:"workflow_id"`
	ContactID     string `json:"contact_id"`
	DurationMs    int64  `json:"duration_ms"`
	StepsExecuted int    `json:"steps_executed"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	ContactID   string `json:"contact_id"`
	StepIndex   int    `json:"step_index"`
	StepID      string `json:"step_id,omitempty"`
	Error       string `json:"error"`
	RetryCount  int    `json:"retry_count"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	ContactID   string `json:"contact_id"`
	Reason      string `json:"reason,omitempty"`
	CancelledBy string `json:"cancelled_by,omitempty"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

type ExecutionWaiting struct {
	BaseEvent

	ExecutionID string    `json:"execution_id"`
	WorkflowID  string    `json:"workflow_id"`
	StepIndex   int       `json:"step_index"`
	ResumeAt    time.Time `json:"resume_at"`
}

func (e ExecutionWaiting) GetType() EventType {
	return ExecutionWaitingEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	StepIndex   int    `json:"step_index"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type GoalAchieved struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	WorkflowID   string `json:"workflow_id"`
	ContactID    string `json:"contact_id"`
	GoalConfigID string `json:"goal_config_id"`
	GoalType     string `json:"goal_type"`
	Activity     string `json:"activity"`
}

func (g GoalAchieved) GetType() EventType {
	return GoalAchievedEvent
}
