package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hivecrm/journey/pkg/eventbus"
	"github.com/hivecrm/journey/pkg/events"
	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/persistence"
	"github.com/hivecrm/journey/pkg/retry"
	"github.com/hivecrm/journey/pkg/workflow"
)

// Engine is the slice of the execution engine the service uses.
type Engine interface {
	Enroll(ctx context.Context, workflow *models.Workflow, contactID string) (*models.Execution, error)
	Run(ctx context.Context, execution *models.Execution) error
	Retry(ctx context.Context, executionID string) (*models.Execution, error)
	Cancel(ctx context.Context, executionID, reason string) (*models.Execution, error)
}

// ResumeCanceller drops a pending wait-step wake-up.
type ResumeCanceller interface {
	CancelResume(ctx context.Context, executionID string) error
}

// Journey exposes enrollment and execution management operations. Enroll
// and Retry return as soon as the execution is accepted; the run itself
// happens on a background goroutine.
type Journey struct {
	persistence persistence.Persistence
	engine      Engine
	publisher   eventbus.EventPublisher
	canceller   ResumeCanceller
	logger      *slog.Logger
}

type JourneyOption func(*Journey)

// WithPublisher wires the contact event publisher.
func WithPublisher(publisher eventbus.EventPublisher) JourneyOption {
	return func(j *Journey) { j.publisher = publisher }
}

// WithResumeCanceller wires the scheduler hook used when cancelling a
// waiting execution.
func WithResumeCanceller(canceller ResumeCanceller) JourneyOption {
	return func(j *Journey) { j.canceller = canceller }
}

func NewJourney(logger *slog.Logger, store persistence.Persistence, engine Engine, opts ...JourneyOption) *Journey {
	j := &Journey{
		persistence: store,
		engine:      engine,
		logger:      logger.With("module", "journey_service"),
	}

	for _, opt := range opts {
		opt(j)
	}

	return j
}

// EnrollRequest asks for one contact to be enrolled into one workflow.
type EnrollRequest struct {
	WorkflowID string
	ContactID  string
}

// Enroll validates the request, persists a queued execution and starts the
// run in the background.
func (j *Journey) Enroll(ctx context.Context, req EnrollRequest) (*models.Execution, error) {
	if req.WorkflowID == "" {
		return nil, NewValidationError("enroll", "missing_workflow", "workflow ID is required", ErrWorkflowRequired)
	}

	if req.ContactID == "" {
		return nil, NewValidationError("enroll", "missing_contact", "contact ID is required", ErrContactRequired)
	}

	wf, err := j.persistence.WorkflowByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	execution, err := j.engine.Enroll(ctx, wf, req.ContactID)
	if err != nil {
		return nil, err
	}

	go j.runDetached(execution)

	return execution, nil
}

func (j *Journey) runDetached(execution *models.Execution) {
	// The HTTP request context ends when the response is written; the run
	// must outlive it.
	ctx := context.WithoutCancel(context.Background())

	if err := j.engine.Run(ctx, execution); err != nil {
		j.logger.Error("Background run ended with error",
			"execution_id", execution.ID,
			"error", err)
	}
}

// Execution returns one execution by id.
func (j *Journey) Execution(ctx context.Context, executionID string) (*models.Execution, error) {
	return j.persistence.ExecutionByID(ctx, executionID)
}

// ExecutionLogs returns the step-level log for one execution, oldest first.
func (j *Journey) ExecutionLogs(ctx context.Context, executionID string) ([]*models.ExecutionLog, error) {
	if _, err := j.persistence.ExecutionByID(ctx, executionID); err != nil {
		return nil, err
	}

	return j.persistence.ExecutionLogs(ctx, executionID)
}

// ExecutionsByContact returns a contact's enrollment history.
func (j *Journey) ExecutionsByContact(ctx context.Context, contactID string) ([]*models.Execution, error) {
	if contactID == "" {
		return nil, NewValidationError("executions_by_contact", "missing_contact", "contact ID is required", ErrContactRequired)
	}

	return j.persistence.ExecutionsByContact(ctx, contactID)
}

// Cancel ends an execution and drops any pending wait-step wake-up.
func (j *Journey) Cancel(ctx context.Context, executionID, reason string) (*models.Execution, error) {
	execution, err := j.engine.Cancel(ctx, executionID, reason)
	if err != nil {
		return nil, err
	}

	if j.canceller != nil {
		if err := j.canceller.CancelResume(ctx, executionID); err != nil {
			j.logger.Warn("Failed to drop pending resume",
				"execution_id", executionID,
				"error", err)
		}
	}

	return execution, nil
}

// Retry validates the retry preconditions and re-runs a failed execution
// in the background.
func (j *Journey) Retry(ctx context.Context, executionID string) (*models.Execution, error) {
	execution, err := j.persistence.ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status != models.ExecutionStatusFailed {
		return nil, fmt.Errorf("%w: cannot retry from %s",
			workflow.ErrInvalidStatusTransition, execution.Status)
	}

	if execution.RetryCount >= retry.DefaultMaxAttempts {
		return nil, fmt.Errorf("%w: execution %s already retried %d times",
			workflow.ErrRetryLimitExceeded, executionID, execution.RetryCount)
	}

	go func() {
		ctx := context.WithoutCancel(context.Background())

		if _, err := j.engine.Retry(ctx, executionID); err != nil {
			j.logger.Error("Background retry ended with error",
				"execution_id", executionID,
				"error", err)
		}
	}()

	return execution, nil
}

// ContactEventRequest is one observed business event about a contact.
type ContactEventRequest struct {
	AccountID string
	ContactID string
	EventType string
	Data      map[string]any
}

// PostContactEvent publishes a contact activity onto the event bus. The
// worker matches it against workflow triggers and goal configs.
func (j *Journey) PostContactEvent(ctx context.Context, req ContactEventRequest) (*events.ContactActivity, error) {
	if req.AccountID == "" {
		return nil, NewValidationError("post_contact_event", "missing_account", "account ID is required", ErrAccountRequired)
	}

	if req.ContactID == "" {
		return nil, NewValidationError("post_contact_event", "missing_contact", "contact ID is required", ErrContactRequired)
	}

	if req.EventType == "" {
		return nil, NewValidationError("post_contact_event", "missing_event_type", "event type is required", ErrEventTypeRequired)
	}

	if j.publisher == nil {
		return nil, NewValidationError("post_contact_event", "bus_not_configured", "event publishing is not configured", ErrInvalidRequest)
	}

	activity := &events.ContactActivity{
		BaseEvent: events.NewBaseEvent(events.ContactActivityEvent, req.AccountID),
		ContactID: req.ContactID,
		Activity:  req.EventType,
		Data:      req.Data,
	}

	if err := j.publisher.Publish(ctx, req.ContactID, activity); err != nil {
		return nil, fmt.Errorf("failed to publish contact event: %w", err)
	}

	return activity, nil
}

// HealthCheck checks the health of the persistence layer.
func (j *Journey) HealthCheck(ctx context.Context) (string, bool) {
	if j.persistence == nil {
		return "Persistence layer not initialized", false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := j.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}
