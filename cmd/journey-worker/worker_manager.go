package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hivecrm/journey/pkg/contacts"
	"github.com/hivecrm/journey/pkg/eventbus"
	"github.com/hivecrm/journey/pkg/events"
	"github.com/hivecrm/journey/pkg/goals"
	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/otelhelper"
	"github.com/hivecrm/journey/pkg/persistence"
	"github.com/hivecrm/journey/pkg/registry"
	"github.com/hivecrm/journey/pkg/scheduler"
	"github.com/hivecrm/journey/pkg/workflow"
)

// WorkerManager consumes contact activity events and turns them into
// enrollments, goal exits, and resumed executions.
type WorkerManager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	engine      *workflow.Engine
	detector    *goals.Detector
	scheduler   *scheduler.Scheduler
	tracer      trace.Tracer
}

func NewWorkerManager(
	id string,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	reg *registry.Registry,
	factsProvider contacts.FactsProvider,
	resumeStore scheduler.ResumeStore,
	logger *slog.Logger,
) *WorkerManager {
	w := &WorkerManager{
		id:          id,
		logger:      logger.With("module", "journey-worker", "worker_id", id),
		persistence: store,
		eventBus:    eventBus,
		detector:    goals.NewDetector(logger, store),
		tracer:      otel.Tracer("journey.worker"),
	}

	// The engine and scheduler reference each other: wait steps register
	// wake-ups, wake-ups resume through the engine.
	resumer := &engineResumer{}
	w.scheduler = scheduler.NewScheduler(logger, resumeStore, resumer)
	w.engine = workflow.NewEngine(logger, store, reg, factsProvider,
		workflow.WithPublisher(eventBus),
		workflow.WithScheduler(w.scheduler))
	resumer.engine = w.engine

	return w
}

type engineResumer struct {
	engine *workflow.Engine
}

func (r *engineResumer) Resume(ctx context.Context, executionID string) (*models.Execution, error) {
	return r.engine.Resume(ctx, executionID)
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	if err := w.eventBus.Handle(events.ContactActivityEvent, w.handleContactActivity); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	if err := w.scheduler.Start(ctx); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	w.logger.InfoContext(ctx, "Shutting down worker...")
	w.scheduler.Stop()

	return nil
}

// handleContactActivity processes one contact event: first goal detection
// against the contact's running executions, then trigger matching for new
// enrollments.
func (w *WorkerManager) handleContactActivity(ctx context.Context, event any) error {
	activity, ok := event.(*events.ContactActivity)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ContactActivity")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.contact_activity",
		attribute.String(otelhelper.EventIDKey, activity.ID),
		attribute.String(otelhelper.WorkerIDKey, w.id),
		attribute.String(otelhelper.AccountIDKey, activity.AccountID),
		attribute.String(otelhelper.ContactIDKey, activity.ContactID),
	)
	defer span.End()

	logger := w.logger.With(
		"contact_id", activity.ContactID,
		"account_id", activity.AccountID,
		"activity", activity.Activity,
		"event_id", activity.ID,
	)
	logger.InfoContext(ctx, "Processing contact activity")

	if err := w.detectGoals(ctx, activity, logger); err != nil {
		logger.ErrorContext(ctx, "Goal detection failed", "error", err)
	}

	if err := w.matchTriggers(ctx, activity, logger); err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	return nil
}

func (w *WorkerManager) detectGoals(ctx context.Context, activity *events.ContactActivity, logger *slog.Logger) error {
	executions, err := w.persistence.ExecutionsByContact(ctx, activity.ContactID)
	if err != nil {
		return err
	}

	for _, execution := range executions {
		if execution.Status.Terminal() || execution.AccountID != activity.AccountID {
			continue
		}

		wf, err := w.persistence.WorkflowByID(ctx, execution.WorkflowID)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to load workflow for goal detection",
				"workflow_id", execution.WorkflowID,
				"error", err)

			continue
		}

		result, err := w.detector.EvaluateActivity(ctx, wf, execution, activity)
		if err != nil {
			logger.ErrorContext(ctx, "Goal evaluation failed",
				"execution_id", execution.ID,
				"error", err)

			continue
		}

		if !result.Achieved {
			continue
		}

		logger.InfoContext(ctx, "Goal achieved",
			"execution_id", execution.ID,
			"goal_config_id", result.GoalConfigID)

		trace.SpanFromContext(ctx).AddEvent("goal achieved", trace.WithAttributes(
			attribute.String(otelhelper.GoalIDKey, result.GoalConfigID),
			attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		))

		w.publishGoalAchieved(ctx, wf, execution, activity, result.GoalConfigID)

		if result.ShouldExit {
			if err := w.engine.ExitForGoal(ctx, execution.ID, result.GoalConfigID); err != nil {
				logger.ErrorContext(ctx, "Failed to exit execution for goal",
					"execution_id", execution.ID,
					"error", err)
			}
		}
	}

	return nil
}

func (w *WorkerManager) publishGoalAchieved(
	ctx context.Context,
	wf *models.Workflow,
	execution *models.Execution,
	activity *events.ContactActivity,
	goalConfigID string,
) {
	goalType := ""

	for _, goal := range wf.Goals {
		if goal.ID == goalConfigID {
			goalType = goal.Type

			break
		}
	}

	achieved := events.GoalAchieved{
		BaseEvent:    events.NewBaseEvent(events.GoalAchievedEvent, activity.AccountID),
		ExecutionID:  execution.ID,
		WorkflowID:   wf.ID,
		ContactID:    activity.ContactID,
		GoalConfigID: goalConfigID,
		GoalType:     goalType,
		Activity:     activity.Activity,
	}
	achieved.WorkerID = w.id

	if err := w.eventBus.Publish(ctx, execution.ID, achieved); err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish goal achieved event", "error", err)
	}
}

func (w *WorkerManager) matchTriggers(ctx context.Context, activity *events.ContactActivity, logger *slog.Logger) error {
	workflows, err := w.persistence.ActiveWorkflowsByTrigger(ctx, activity.AccountID, activity.Activity)
	if err != nil {
		return err
	}

	for _, wf := range workflows {
		if !triggerMatches(wf.Trigger.Config, activity.Data) {
			continue
		}

		logger.InfoContext(ctx, "Trigger matched, enrolling contact", "workflow_id", wf.ID)

		execution, err := w.engine.Start(ctx, wf, activity.ContactID)
		if err != nil {
			logger.ErrorContext(ctx, "Enrollment failed",
				"workflow_id", wf.ID,
				"error", err)

			continue
		}

		logger.InfoContext(ctx, "Enrollment finished",
			"workflow_id", wf.ID,
			"execution_id", execution.ID,
			"status", string(execution.Status))
	}

	return nil
}

// triggerMatches compares every configured trigger constraint against the
// event payload. A workflow with no extra config matches any event of its
// trigger type.
func triggerMatches(config, data map[string]any) bool {
	for key, want := range config {
		got, ok := data[key]
		if !ok || got != want {
			return false
		}
	}

	return true
}
