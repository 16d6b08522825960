package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hivecrm/journey/pkg/conditions"
	"github.com/hivecrm/journey/pkg/contacts"
	"github.com/hivecrm/journey/pkg/eventbus"
	"github.com/hivecrm/journey/pkg/events"
	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/otelhelper"
	"github.com/hivecrm/journey/pkg/persistence"
	"github.com/hivecrm/journey/pkg/registry"
	"github.com/hivecrm/journey/pkg/retry"
	"github.com/hivecrm/journey/pkg/template"
)

// ResumeScheduler records a future wake-up for a waiting execution and
// drops it again when the execution ends before the wake-up fires.
type ResumeScheduler interface {
	ScheduleResume(ctx context.Context, executionID string, resumeAt time.Time) error
	CancelResume(ctx context.Context, executionID string) error
}

// Engine drives enrollments through their workflow steps. One enrollment's
// run is strictly sequential; many enrollments run concurrently across
// worker goroutines sharing the same Engine.
type Engine struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	facts       contacts.FactsProvider
	selector    *conditions.Selector
	limiter     *AccountLimiter
	policy      *retry.Policy
	scheduler   ResumeScheduler
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithAccountLimit overrides the per-account concurrent execution ceiling.
func WithAccountLimit(limit int) EngineOption {
	return func(e *Engine) { e.limiter = NewAccountLimiter(limit) }
}

// WithRetryPolicy overrides the engine-level retry policy.
func WithRetryPolicy(policy *retry.Policy) EngineOption {
	return func(e *Engine) { e.policy = policy }
}

// WithScheduler wires the resume scheduler used for wait steps.
func WithScheduler(scheduler ResumeScheduler) EngineOption {
	return func(e *Engine) { e.scheduler = scheduler }
}

// WithPublisher wires the lifecycle event publisher.
func WithPublisher(publisher eventbus.EventPublisher) EngineOption {
	return func(e *Engine) { e.publisher = publisher }
}

// WithTracer overrides the tracer used for run and step spans.
func WithTracer(tracer trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = tracer }
}

// WithSleep overrides the backoff sleeper, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) EngineOption {
	return func(e *Engine) { e.sleep = sleep }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(
	logger *slog.Logger,
	store persistence.Persistence,
	reg *registry.Registry,
	factsProvider contacts.FactsProvider,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		persistence: store,
		registry:    reg,
		facts:       factsProvider,
		selector:    conditions.NewSelector(reg),
		limiter:     NewAccountLimiter(DefaultAccountLimit),
		policy:      retry.NewPolicy(),
		logger:      logger.With("module", "execution_engine"),
		tracer:      otel.Tracer("journey.execution"),
		sleep:       sleepContext,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start enrolls a contact into an active workflow and runs it until the
// execution completes, fails, suspends on a wait step, or is cancelled.
func (e *Engine) Start(ctx context.Context, workflow *models.Workflow, contactID string) (*models.Execution, error) {
	execution, err := e.Enroll(ctx, workflow, contactID)
	if err != nil {
		return execution, err
	}

	return execution, e.runEnrolled(ctx, workflow, execution)
}

// Enroll checks the enrollment preconditions and persists a queued
// execution without running it. Run picks it up afterwards, possibly on
// another goroutine.
func (e *Engine) Enroll(ctx context.Context, workflow *models.Workflow, contactID string) (*models.Execution, error) {
	if !workflow.IsActive() {
		return nil, fmt.Errorf("%w: workflow %s is %s", ErrWorkflowNotActive, workflow.ID, workflow.Status)
	}

	contactFacts, err := e.facts.Facts(ctx, workflow.AccountID, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact facts: %w", err)
	}

	if contactFacts.OptedOut {
		return nil, fmt.Errorf("%w: contact %s", ErrContactOptedOut, contactID)
	}

	if e.limiter.Active(workflow.AccountID) >= e.limiter.Limit() {
		return nil, fmt.Errorf("%w: account %s", ErrConcurrencyLimitExceeded, workflow.AccountID)
	}

	execution := &models.Execution{
		ID:              uuid.New().String(),
		WorkflowID:      workflow.ID,
		WorkflowVersion: workflow.Version,
		ContactID:       contactID,
		AccountID:       workflow.AccountID,
		Status:          models.ExecutionStatusQueued,
		StartedAt:       e.now().UTC(),
	}

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return execution, err
	}

	e.publish(ctx, execution.ID, events.ExecutionStarted{
		BaseEvent:    events.NewBaseEvent(events.ExecutionStartedEvent, execution.AccountID),
		ExecutionID:  execution.ID,
		WorkflowID:   workflow.ID,
		ContactID:    contactID,
		TriggerEvent: workflow.Trigger.EventType,
	})

	return execution, nil
}

// Run drives a queued execution to its next stopping point: completed,
// failed, waiting, or cancelled.
func (e *Engine) Run(ctx context.Context, execution *models.Execution) error {
	workflow, err := e.persistence.WorkflowByID(ctx, execution.WorkflowID)
	if err != nil {
		return err
	}

	return e.runEnrolled(ctx, workflow, execution)
}

// runEnrolled activates a queued execution and drives the step loop while
// holding an account slot.
func (e *Engine) runEnrolled(ctx context.Context, workflow *models.Workflow, execution *models.Execution) error {
	contactFacts, err := e.facts.Facts(ctx, execution.AccountID, execution.ContactID)
	if err != nil {
		return fmt.Errorf("failed to load contact facts: %w", err)
	}

	if err := e.limiter.Acquire(execution.AccountID); err != nil {
		return fmt.Errorf("%w: account %s", err, execution.AccountID)
	}
	defer e.limiter.Release(execution.AccountID)

	if err := transition(execution, triggerActivate); err != nil {
		return err
	}

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return err
	}

	return e.run(ctx, workflow, execution, contactFacts)
}

// Resume wakes a waiting execution and continues from its current step
// index. Slot accounting restarts for the resumed portion of the run.
func (e *Engine) Resume(ctx context.Context, executionID string) (*models.Execution, error) {
	execution, err := e.persistence.ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if err := transition(execution, triggerResume); err != nil {
		return execution, err
	}

	workflow, err := e.persistence.WorkflowByID(ctx, execution.WorkflowID)
	if err != nil {
		return execution, err
	}

	contactFacts, err := e.facts.Facts(ctx, execution.AccountID, execution.ContactID)
	if err != nil {
		return execution, fmt.Errorf("failed to load contact facts: %w", err)
	}

	if err := e.limiter.Acquire(execution.AccountID); err != nil {
		return execution, fmt.Errorf("%w: account %s", err, execution.AccountID)
	}
	defer e.limiter.Release(execution.AccountID)

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return execution, err
	}

	e.publish(ctx, execution.ID, events.ExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent, execution.AccountID),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		StepIndex:   execution.CurrentStepIndex,
	})

	return execution, e.run(ctx, workflow, execution, contactFacts)
}

// Cancel ends an execution from queued, active or waiting. Cancellation is
// cooperative: a run in flight observes the persisted status at its next
// step boundary and discards any in-flight result.
func (e *Engine) Cancel(ctx context.Context, executionID, reason string) (*models.Execution, error) {
	execution, err := e.persistence.ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	wasWaiting := execution.Status == models.ExecutionStatusWaiting

	if err := transition(execution, triggerCancel); err != nil {
		return execution, err
	}

	completedAt := e.now().UTC()
	execution.CompletedAt = &completedAt

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return execution, err
	}

	if wasWaiting {
		e.dropResume(ctx, execution.ID)
	}

	e.publish(ctx, execution.ID, events.ExecutionCancelled{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent, execution.AccountID),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		ContactID:   execution.ContactID,
		Reason:      reason,
	})

	return execution, nil
}

// Retry re-runs a failed execution from its current step index, never from
// step zero. The operator budget is three retries per execution.
func (e *Engine) Retry(ctx context.Context, executionID string) (*models.Execution, error) {
	execution, err := e.persistence.ExecutionByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status == models.ExecutionStatusFailed && execution.RetryCount >= retry.DefaultMaxAttempts {
		return execution, fmt.Errorf("%w: execution %s already retried %d times",
			ErrRetryLimitExceeded, executionID, execution.RetryCount)
	}

	if err := transition(execution, triggerRetry); err != nil {
		return execution, err
	}

	execution.RetryCount++
	execution.ErrorMessage = ""
	execution.CompletedAt = nil

	workflow, err := e.persistence.WorkflowByID(ctx, execution.WorkflowID)
	if err != nil {
		return execution, err
	}

	contactFacts, err := e.facts.Facts(ctx, execution.AccountID, execution.ContactID)
	if err != nil {
		return execution, fmt.Errorf("failed to load contact facts: %w", err)
	}

	if err := e.limiter.Acquire(execution.AccountID); err != nil {
		return execution, fmt.Errorf("%w: account %s", err, execution.AccountID)
	}
	defer e.limiter.Release(execution.AccountID)

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return execution, err
	}

	return execution, e.run(ctx, workflow, execution, contactFacts)
}

// ExitForGoal completes an execution early because a goal was achieved.
// Legal from any non-terminal status.
func (e *Engine) ExitForGoal(ctx context.Context, executionID, goalConfigID string) error {
	execution, err := e.persistence.ExecutionByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status.Terminal() {
		return nil
	}

	wasWaiting := execution.Status == models.ExecutionStatusWaiting

	if execution.Status != models.ExecutionStatusActive {
		if err := transitionToActive(execution); err != nil {
			return err
		}
	}

	if err := transition(execution, triggerComplete); err != nil {
		return err
	}

	completedAt := e.now().UTC()
	execution.CompletedAt = &completedAt

	if execution.Metadata == nil {
		execution.Metadata = make(map[string]any)
	}

	execution.Metadata["exited_by_goal"] = goalConfigID

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return err
	}

	if wasWaiting {
		e.dropResume(ctx, execution.ID)
	}

	return nil
}

// dropResume clears a parked execution's pending wake-up so a later tick
// does not try to resume a finished execution.
func (e *Engine) dropResume(ctx context.Context, executionID string) {
	if e.scheduler == nil {
		return
	}

	if err := e.scheduler.CancelResume(ctx, executionID); err != nil {
		e.logger.WarnContext(ctx, "Failed to drop pending resume",
			"execution_id", executionID,
			"error", err)
	}
}

// transitionToActive lifts queued and waiting executions to active so a
// goal exit can complete them through the normal machine.
func transitionToActive(execution *models.Execution) error {
	switch execution.Status {
	case models.ExecutionStatusQueued:
		return transition(execution, triggerActivate)
	case models.ExecutionStatusWaiting:
		return transition(execution, triggerResume)
	default:
		return fmt.Errorf("%w: cannot activate from %s", ErrInvalidStatusTransition, execution.Status)
	}
}

// run executes the step loop from execution.CurrentStepIndex. The caller
// holds the account slot for the duration.
func (e *Engine) run(ctx context.Context, workflow *models.Workflow, execution *models.Execution, contactFacts *models.ContactFacts) error {
	steps := sortedSteps(workflow)
	indexByID := stepIndexMap(steps)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "execution.run",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
		attribute.String(otelhelper.WorkflowNameKey, workflow.Name),
		attribute.String(otelhelper.AccountIDKey, execution.AccountID),
		attribute.String(otelhelper.ContactIDKey, execution.ContactID),
	)
	defer span.End()

	logger := e.logger.With(
		"execution_id", execution.ID,
		"workflow_id", workflow.ID,
		"contact_id", execution.ContactID)

	index := execution.CurrentStepIndex

	for index < len(steps) {
		// Cooperative cancellation and goal exit: another goroutine may
		// have flipped the persisted status since the last boundary.
		persisted, err := e.persistence.ExecutionStatusByID(ctx, execution.ID)
		if err != nil {
			return err
		}

		if persisted != models.ExecutionStatusActive {
			logger.InfoContext(ctx, "Stopping run, execution no longer active",
				"status", string(persisted))
			execution.Status = persisted

			return nil
		}

		step := steps[index]

		execution.CurrentStepIndex = index
		if err := e.persistence.SaveExecution(ctx, execution); err != nil {
			return err
		}

		if !step.Enabled {
			e.appendLog(ctx, execution, index, step, 1, models.LogStatusSkipped, nil, 0)
			index++

			continue
		}

		if step.IsCondition() {
			next, err := e.runCondition(ctx, execution, contactFacts, step, index, indexByID, len(steps), logger)
			if err != nil {
				return e.fail(ctx, execution, index, step, err, logger)
			}

			index = next

			continue
		}

		next, ok := resolveNext(step.NextStepID, index, indexByID, len(steps))
		if !ok {
			return e.fail(ctx, execution, index, step,
				NewValidationError("step %q points at unknown step %q", step.ID, step.NextStepID), logger)
		}

		result, err := e.runAction(ctx, workflow, execution, contactFacts, step, index, logger)
		if err != nil {
			return e.fail(ctx, execution, index, step, err, logger)
		}

		if result.Suspend {
			return e.suspend(ctx, execution, index, next, result.ResumeAt, logger)
		}

		index = next
	}

	return e.complete(ctx, execution, len(steps), logger)
}

// resolveNext maps a next-step id to a loop index: empty falls through to
// the step after current, StepEnd jumps past the last step, anything else
// must name a known step.
func resolveNext(nextStepID string, current int, indexByID map[string]int, total int) (int, bool) {
	switch nextStepID {
	case "":
		return current + 1, true
	case models.StepEnd:
		return total, true
	default:
		target, ok := indexByID[nextStepID]

		return target, ok
	}
}

// runCondition routes one condition step and returns the next step index.
func (e *Engine) runCondition(
	ctx context.Context,
	execution *models.Execution,
	contactFacts *models.ContactFacts,
	step models.Step,
	index int,
	indexByID map[string]int,
	total int,
	logger *slog.Logger,
) (int, error) {
	selection, err := e.selector.Select(step, contactFacts, execution.ID)
	if err != nil {
		return 0, &ValidationError{Message: err.Error()}
	}

	response := map[string]any{
		"match":   selection.Result.Match,
		"details": selection.Result.Details,
	}
	if selection.Selected {
		response["branch"] = selection.Branch.Name
	}

	e.appendLog(ctx, execution, index, step, 1, models.LogStatusSuccess, response, 0)

	if !selection.Selected {
		return index + 1, nil
	}

	target, ok := resolveNext(selection.Branch.NextStepID, index, indexByID, total)
	if !ok {
		return 0, NewValidationError("branch %q points at unknown step %q",
			selection.Branch.Name, selection.Branch.NextStepID)
	}

	logger.InfoContext(ctx, "Condition routed",
		"step_id", step.ID,
		"branch", selection.Branch.Name,
		"next_index", target)

	return target, nil
}

// runAction dispatches one action step inside the engine-level retry loop.
// The webhook executor retries transport failures internally on its fixed
// schedule; this loop retries whole action failures with exponential
// backoff.
func (e *Engine) runAction(
	ctx context.Context,
	workflow *models.Workflow,
	execution *models.Execution,
	contactFacts *models.ContactFacts,
	step models.Step,
	index int,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "execution.step "+step.Type,
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.ActionTypeKey, step.Type),
		attribute.Int(otelhelper.StepIndexKey, index),
	)
	defer span.End()

	action, err := e.registry.CreateAction(step.Type, step.Config)
	if err != nil {
		validationErr := &ValidationError{Message: err.Error()}
		otelhelper.SetError(span, validationErr)

		return models.ExecutionResult{}, validationErr
	}

	actionCtx := models.ActionContext{
		Execution: execution,
		Step:      step,
		Facts:     template.BuildContext(workflow, execution, contactFacts),
	}

	var lastErr error

	for attempt := 1; ; attempt++ {
		start := e.now()

		result, execErr := action.Execute(ctx, actionCtx, logger)
		durationMs := e.now().Sub(start).Milliseconds()

		if execErr == nil && result.Success {
			e.appendLog(ctx, execution, index, step, attempt, models.LogStatusSuccess, result.Data, durationMs)

			return result, nil
		}

		lastErr = execErr
		if lastErr == nil {
			lastErr = errors.New(result.Error)
		}

		e.appendLog(ctx, execution, index, step, attempt, models.LogStatusFailure,
			failureResponse(result, lastErr), durationMs)

		category := retry.Categorize(lastErr)

		logger.WarnContext(ctx, "Action attempt failed",
			"step_id", step.ID,
			"action_type", step.Type,
			"attempt", attempt,
			"category", string(category),
			"error", lastErr)

		if execErr == nil && !result.ShouldRetry {
			actionErr := &ActionExecutionError{
				StepID: step.ID, ActionType: step.Type, Attempts: attempt, Err: lastErr,
			}
			otelhelper.SetError(span, actionErr)

			return result, actionErr
		}

		if !e.policy.ShouldRetry(attempt, category) {
			actionErr := &ActionExecutionError{
				StepID: step.ID, ActionType: step.Type, Attempts: attempt, Err: lastErr,
			}
			otelhelper.SetError(span, actionErr)

			return result, actionErr
		}

		delay := e.policy.CalculateDelay(attempt)
		if result.RetryDelaySeconds > 0 {
			delay = time.Duration(result.RetryDelaySeconds) * time.Second
		}

		if err := e.sleep(ctx, delay); err != nil {
			actionErr := &ActionExecutionError{
				StepID: step.ID, ActionType: step.Type, Attempts: attempt, Err: err,
			}
			otelhelper.SetError(span, actionErr)

			return result, actionErr
		}
	}
}

func failureResponse(result models.ExecutionResult, err error) map[string]any {
	response := map[string]any{"error": err.Error()}
	for k, v := range result.Data {
		response[k] = v
	}

	return response
}

func (e *Engine) suspend(ctx context.Context, execution *models.Execution, index, next int, resumeAt time.Time, logger *slog.Logger) error {
	if err := transition(execution, triggerWait); err != nil {
		return err
	}

	// The wait step itself is done; resuming continues at its next step.
	execution.CurrentStepIndex = next

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return err
	}

	if e.scheduler != nil {
		if err := e.scheduler.ScheduleResume(ctx, execution.ID, resumeAt); err != nil {
			return fmt.Errorf("failed to schedule resume: %w", err)
		}
	}

	e.publish(ctx, execution.ID, events.ExecutionWaiting{
		BaseEvent:   events.NewBaseEvent(events.ExecutionWaitingEvent, execution.AccountID),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		StepIndex:   execution.CurrentStepIndex,
		ResumeAt:    resumeAt,
	})

	logger.InfoContext(ctx, "Execution parked",
		"resume_at", resumeAt.Format(time.RFC3339),
		"next_index", execution.CurrentStepIndex)

	return nil
}

func (e *Engine) complete(ctx context.Context, execution *models.Execution, stepsExecuted int, logger *slog.Logger) error {
	if err := transition(execution, triggerComplete); err != nil {
		return err
	}

	completedAt := e.now().UTC()
	execution.CompletedAt = &completedAt
	execution.CurrentStepIndex = stepsExecuted

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return err
	}

	e.publish(ctx, execution.ID, events.ExecutionCompleted{
		BaseEvent:     events.NewBaseEvent(events.ExecutionCompletedEvent, execution.AccountID),
		ExecutionID:   execution.ID,
		WorkflowID:    execution.WorkflowID,
		ContactID:     execution.ContactID,
		DurationMs:    completedAt.Sub(execution.StartedAt).Milliseconds(),
		StepsExecuted: stepsExecuted,
	})

	logger.InfoContext(ctx, "Execution completed")

	return nil
}

// fail marks the execution failed and propagates the step error.
func (e *Engine) fail(ctx context.Context, execution *models.Execution, index int, step models.Step, stepErr error, logger *slog.Logger) error {
	if err := transition(execution, triggerFail); err != nil {
		return errors.Join(stepErr, err)
	}

	completedAt := e.now().UTC()
	execution.CompletedAt = &completedAt
	execution.ErrorMessage = stepErr.Error()
	execution.CurrentStepIndex = index

	if err := e.persistence.SaveExecution(ctx, execution); err != nil {
		return errors.Join(stepErr, err)
	}

	e.publish(ctx, execution.ID, events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, execution.AccountID),
		ExecutionID: execution.ID,
		WorkflowID:  execution.WorkflowID,
		ContactID:   execution.ContactID,
		StepIndex:   index,
		StepID:      step.ID,
		Error:       stepErr.Error(),
		RetryCount:  execution.RetryCount,
	})

	logger.ErrorContext(ctx, "Execution failed",
		"step_id", step.ID,
		"step_index", index,
		"error", stepErr)

	return stepErr
}

func (e *Engine) appendLog(
	ctx context.Context,
	execution *models.Execution,
	index int,
	step models.Step,
	attempt int,
	status string,
	response map[string]any,
	durationMs int64,
) {
	entry := &models.ExecutionLog{
		ID:          uuid.New().String(),
		ExecutionID: execution.ID,
		StepIndex:   index,
		StepID:      step.ID,
		ActionType:  step.Type,
		Attempt:     attempt,
		Status:      status,
		Response:    response,
		DurationMs:  durationMs,
		CreatedAt:   e.now().UTC(),
	}

	if err := e.persistence.AppendExecutionLog(ctx, entry); err != nil {
		e.logger.WarnContext(ctx, "Failed to append execution log",
			"execution_id", execution.ID,
			"step_id", step.ID,
			"error", err)
	}
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish lifecycle event",
			"event_type", string(event.GetType()),
			"error", err)
	}
}

// sortedSteps returns the workflow steps ordered by position. The copy keeps
// the engine from mutating the caller's workflow.
func sortedSteps(workflow *models.Workflow) []models.Step {
	steps := make([]models.Step, len(workflow.Steps))
	copy(steps, workflow.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Position < steps[j].Position })

	return steps
}

// stepIndexMap precomputes step id to index so branch jumps are O(1).
func stepIndexMap(steps []models.Step) map[string]int {
	indexByID := make(map[string]int, len(steps))
	for i, step := range steps {
		indexByID[step.ID] = i
	}

	return indexByID
}
