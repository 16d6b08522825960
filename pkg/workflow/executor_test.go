package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hivecrm/journey/pkg/conditions"
	"github.com/hivecrm/journey/pkg/contacts"
	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/otelhelper"
	"github.com/hivecrm/journey/pkg/persistence/memory"
	"github.com/hivecrm/journey/pkg/protocol"
	"github.com/hivecrm/journey/pkg/registry"
)

type fakeAction struct {
	fn func(ctx context.Context, actionCtx models.ActionContext) (models.ExecutionResult, error)
}

func (a *fakeAction) Execute(ctx context.Context, actionCtx models.ActionContext, _ *slog.Logger) (models.ExecutionResult, error) {
	return a.fn(ctx, actionCtx)
}

type fakeFactory struct {
	id     string
	action protocol.Action
}

func (f *fakeFactory) ID() string                                  { return f.id }
func (f *fakeFactory) Schema() map[string]any                      { return nil }
func (f *fakeFactory) Create(map[string]any) (protocol.Action, error) { return f.action, nil }

type recordingScheduler struct {
	mu          sync.Mutex
	executionID string
	resumeAt    time.Time
	calls       int
	cancelled   []string
}

func (s *recordingScheduler) ScheduleResume(_ context.Context, executionID string, resumeAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executionID = executionID
	s.resumeAt = resumeAt
	s.calls++

	return nil
}

func (s *recordingScheduler) CancelResume(_ context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, executionID)

	return nil
}

type engineFixture struct {
	engine *Engine
	store  *memory.Persistence
	reg    *registry.Registry
	facts  *contacts.MemoryStore
	slept  *[]time.Duration
}

func newEngineFixture(t *testing.T, opts ...EngineOption) *engineFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewPersistence()
	reg := registry.NewRegistry(logger)
	conditions.RegisterDefaults(reg)

	factsStore := contacts.NewMemoryStore()

	slept := &[]time.Duration{}
	base := []EngineOption{
		WithSleep(func(_ context.Context, d time.Duration) error {
			*slept = append(*slept, d)

			return nil
		}),
	}

	engine := NewEngine(logger, store, reg, factsStore, append(base, opts...)...)

	return &engineFixture{engine: engine, store: store, reg: reg, facts: factsStore, slept: slept}
}

func (f *engineFixture) putContact(id string, tags ...string) {
	f.facts.Put(&models.ContactFacts{
		ContactID: id,
		AccountID: "acct-1",
		Tags:      tags,
		Fields:    map[string]any{"email": id + "@example.com"},
	})
}

func activeWorkflow(steps ...models.Step) *models.Workflow {
	return &models.Workflow{
		ID:        "wf-1",
		AccountID: "acct-1",
		Name:      "Lead nurture",
		Status:    models.WorkflowStatusActive,
		Version:   3,
		Trigger:   models.TriggerConfig{EventType: "tag_added"},
		Steps:     steps,
	}
}

func actionStep(id string, position int, actionType string) models.Step {
	return models.Step{
		ID:       id,
		Kind:     models.StepKindAction,
		Type:     actionType,
		Position: position,
		Enabled:  true,
	}
}

func TestEngineStart_RetriesActionThenRoutesOnTag(t *testing.T) {
	f := newEngineFixture(t)

	var webhookAttempts int
	f.reg.RegisterAction(&fakeFactory{id: "webhook_call", action: &fakeAction{
		fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
			webhookAttempts++
			if webhookAttempts < 3 {
				return models.FailureResult("server error: upstream flapping", true), nil
			}

			return models.SuccessResult(map[string]any{"status_code": 200}), nil
		},
	}})

	var ranBranch string
	for _, id := range []string{"notify-vip", "notify-standard"} {
		id := id
		f.reg.RegisterAction(&fakeFactory{id: id, action: &fakeAction{
			fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
				ranBranch = id

				return models.SuccessResult(nil), nil
			},
		}})
	}

	// The vip branch ends the run so the standard notification never fires for
	// vip contacts.
	vipStep := actionStep("step-vip", 2, "notify-vip")
	vipStep.NextStepID = models.StepEnd

	workflow := activeWorkflow(
		actionStep("step-webhook", 0, "webhook_call"),
		models.Step{
			ID:         "step-route",
			Kind:       models.StepKindCondition,
			Type:       conditions.TypeContactHasTag,
			Config:     map[string]any{"operator": conditions.TagHasAny, "tags": []any{"vip"}},
			Position:   1,
			Enabled:    true,
			BranchType: models.BranchTypeIfElse,
			Branches: []models.Branch{
				{Name: "True", NextStepID: "step-vip"},
				{Name: "False", IsDefault: true, NextStepID: "step-standard"},
			},
		},
		vipStep,
		actionStep("step-standard", 3, "notify-standard"),
	)

	tests := []struct {
		name       string
		contactID  string
		tags       []string
		wantBranch string
	}{
		{name: "vip contact takes the True branch", contactID: "c-vip", tags: []string{"vip", "customer"}, wantBranch: "notify-vip"},
		{name: "plain contact falls to the default branch", contactID: "c-plain", tags: []string{"customer"}, wantBranch: "notify-standard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			webhookAttempts = 0
			ranBranch = ""
			*f.slept = nil
			f.putContact(tt.contactID, tt.tags...)

			execution, err := f.engine.Start(context.Background(), workflow, tt.contactID)
			require.NoError(t, err)

			assert.Equal(t, 3, webhookAttempts)
			assert.Len(t, *f.slept, 2)
			assert.Equal(t, tt.wantBranch, ranBranch)
			assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
			require.NotNil(t, execution.CompletedAt)

			logs, err := f.store.ExecutionLogs(context.Background(), execution.ID)
			require.NoError(t, err)

			var failures, successes int
			for _, entry := range logs {
				switch entry.Status {
				case models.LogStatusFailure:
					failures++
				case models.LogStatusSuccess:
					successes++
				}
			}

			assert.Equal(t, 2, failures)
			// webhook + condition + one branch action
			assert.Equal(t, 3, successes)
		})
	}
}

func TestEngineStart_ActionNextStepSkipsAhead(t *testing.T) {
	f := newEngineFixture(t)
	f.putContact("c-1")

	var ran []string
	for _, id := range []string{"first", "skipped", "last"} {
		id := id
		f.reg.RegisterAction(&fakeFactory{id: id, action: &fakeAction{
			fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
				ran = append(ran, id)

				return models.SuccessResult(nil), nil
			},
		}})
	}

	opener := actionStep("step-first", 0, "first")
	opener.NextStepID = "step-last"

	execution, err := f.engine.Start(context.Background(), activeWorkflow(
		opener,
		actionStep("step-skipped", 1, "skipped"),
		actionStep("step-last", 2, "last"),
	), "c-1")
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, []string{"first", "last"}, ran)
}

func TestEngineStart_UnknownNextStepFailsExecution(t *testing.T) {
	f := newEngineFixture(t)
	f.putContact("c-1")

	var ranCount int
	f.reg.RegisterAction(&fakeFactory{id: "noop", action: &fakeAction{
		fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
			ranCount++

			return models.SuccessResult(nil), nil
		},
	}})

	broken := actionStep("step-1", 0, "noop")
	broken.NextStepID = "step-ghost"

	execution, err := f.engine.Start(context.Background(), activeWorkflow(broken), "c-1")
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	// The broken wiring is caught before the action runs.
	assert.Equal(t, 0, ranCount)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
}

func TestEngineStart_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	f := newEngineFixture(t, WithTracer(provider.Tracer("journey.execution")))
	f.putContact("c-1")

	f.reg.RegisterAction(&fakeFactory{id: "send_email", action: &fakeAction{
		fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
			return models.SuccessResult(nil), nil
		},
	}})

	execution, err := f.engine.Start(context.Background(), activeWorkflow(actionStep("step-1", 0, "send_email")), "c-1")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	// The step span ends before the run span that wraps it.
	stepSpan, runSpan := spans[0], spans[1]
	assert.Equal(t, "execution.step send_email", stepSpan.Name())
	assert.Equal(t, "execution.run", runSpan.Name())
	assert.Contains(t, stepSpan.Attributes(), attribute.String(otelhelper.ActionTypeKey, "send_email"))
	assert.Contains(t, runSpan.Attributes(), attribute.String(otelhelper.ExecutionIDKey, execution.ID))
}

func TestEngineStart_RejectsInactiveWorkflow(t *testing.T) {
	f := newEngineFixture(t)
	f.putContact("c-1")

	workflow := activeWorkflow()
	workflow.Status = models.WorkflowStatusPaused

	_, err := f.engine.Start(context.Background(), workflow, "c-1")
	assert.ErrorIs(t, err, ErrWorkflowNotActive)
}

func TestEngineStart_RejectsOptedOutContact(t *testing.T) {
	f := newEngineFixture(t)
	f.facts.Put(&models.ContactFacts{ContactID: "c-out", AccountID: "acct-1", OptedOut: true})

	_, err := f.engine.Start(context.Background(), activeWorkflow(), "c-out")
	assert.ErrorIs(t, err, ErrContactOptedOut)
}

func TestEngineStart_SkipsDisabledSteps(t *testing.T) {
	f := newEngineFixture(t)
	f.putContact("c-1")

	var ran []string
	for _, id := range []string{"first", "second"} {
		id := id
		f.reg.RegisterAction(&fakeFactory{id: id, action: &fakeAction{
			fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
				ran = append(ran, id)

				return models.SuccessResult(nil), nil
			},
		}})
	}

	disabled := actionStep("step-1", 0, "first")
	disabled.Enabled = false

	execution, err := f.engine.Start(context.Background(), activeWorkflow(
		disabled,
		actionStep("step-2", 1, "second"),
	), "c-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"second"}, ran)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	logs, err := f.store.ExecutionLogs(context.Background(), execution.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.LogStatusSkipped, logs[0].Status)
}

func TestEngineStart_FailsAfterRetryBudget(t *testing.T) {
	f := newEngineFixture(t)
	f.putContact("c-1")

	var attempts int
	f.reg.RegisterAction(&fakeFactory{id: "flaky", action: &fakeAction{
		fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
			attempts++

			return models.FailureResult("connection refused", true), nil
		},
	}})

	execution, err := f.engine.Start(context.Background(), activeWorkflow(
		actionStep("step-1", 0, "flaky"),
	), "c-1")
	require.Error(t, err)

	var actionErr *ActionExecutionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "step-1", actionErr.StepID)
	assert.Equal(t, 3, actionErr.Attempts)
	assert.Equal(t, 3, attempts)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Contains(t, execution.ErrorMessage, "connection refused")
	assert.Equal(t, 0, execution.CurrentStepIndex)
}

func TestEngineStart_ValidationFailureIsNotRetried(t *testing.T) {
	f := newEngineFixture(t)
	f.putContact("c-1")

	execution, err := f.engine.Start(context.Background(), activeWorkflow(
		actionStep("step-1", 0, "never_registered"),
	), "c-1")
	require.Error(t, err)

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Empty(t, *f.slept)
}

func TestEngineStart_PermanentActionFailureSkipsBackoff(t *testing.T) {
	f := newEngineFixture(t)
	f.putContact("c-1")

	var attempts int
	f.reg.RegisterAction(&fakeFactory{id: "rejecting", action: &fakeAction{
		fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
			attempts++

			return models.FailureResult("client_error: 400", false), nil
		},
	}})

	_, err := f.engine.Start(context.Background(), activeWorkflow(
		actionStep("step-1", 0, "rejecting"),
	), "c-1")
	require.Error(t, err)

	assert.Equal(t, 1, attempts)
	assert.Empty(t, *f.slept)
}

func TestEngineStart_HonorsResultRetryDelay(t *testing.T) {
	f := newEngineFixture(t)
	f.putContact("c-1")

	var attempts int
	f.reg.RegisterAction(&fakeFactory{id: "ratelimited", action: &fakeAction{
		fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
			attempts++
			if attempts == 1 {
				result := models.FailureResult("rate limit hit", true)
				result.RetryDelaySeconds = 7

				return result, nil
			}

			return models.SuccessResult(nil), nil
		},
	}})

	_, err := f.engine.Start(context.Background(), activeWorkflow(
		actionStep("step-1", 0, "ratelimited"),
	), "c-1")
	require.NoError(t, err)

	require.Len(t, *f.slept, 1)
	assert.Equal(t, 7*time.Second, (*f.slept)[0])
}

func TestEngineStart_EnforcesAccountCeiling(t *testing.T) {
	f := newEngineFixture(t, WithAccountLimit(1))
	f.putContact("c-1")
	f.putContact("c-2")

	release := make(chan struct{})
	started := make(chan struct{})
	f.reg.RegisterAction(&fakeFactory{id: "blocking", action: &fakeAction{
		fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
			close(started)
			<-release

			return models.SuccessResult(nil), nil
		},
	}})

	workflow := activeWorkflow(actionStep("step-1", 0, "blocking"))

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Start(context.Background(), workflow, "c-1")
		done <- err
	}()

	<-started

	_, err := f.engine.Start(context.Background(), workflow, "c-2")
	assert.ErrorIs(t, err, ErrConcurrencyLimitExceeded)

	close(release)
	require.NoError(t, <-done)

	// Slot released after completion, the account can run again.
	f.reg.RegisterAction(&fakeFactory{id: "blocking", action: &fakeAction{
		fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
			return models.SuccessResult(nil), nil
		},
	}})

	_, err = f.engine.Start(context.Background(), workflow, "c-2")
	assert.NoError(t, err)
}

func TestEngineStart_SlotReleasedOnFailure(t *testing.T) {
	f := newEngineFixture(t, WithAccountLimit(1))
	f.putContact("c-1")

	f.reg.RegisterAction(&fakeFactory{id: "broken", action: &fakeAction{
		fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
			return models.ExecutionResult{}, errors.New("validation: bad config")
		},
	}})

	workflow := activeWorkflow(actionStep("step-1", 0, "broken"))

	_, err := f.engine.Start(context.Background(), workflow, "c-1")
	require.Error(t, err)

	assert.Equal(t, 0, f.engine.limiter.Active("acct-1"))
}

func TestEngineWaitStep_SuspendsAndSchedulesResume(t *testing.T) {
	scheduler := &recordingScheduler{}
	f := newEngineFixture(t, WithScheduler(scheduler))
	f.putContact("c-1")

	resumeAt := time.Now().UTC().Add(2 * time.Hour)
	f.reg.RegisterAction(&fakeFactory{id: "wait_time", action: &fakeAction{
		fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
			result := models.SuccessResult(map[string]any{"waited": "2h0m0s"})
			result.Suspend = true
			result.ResumeAt = resumeAt

			return result, nil
		},
	}})

	var afterRan bool
	f.reg.RegisterAction(&fakeFactory{id: "after", action: &fakeAction{
		fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
			afterRan = true

			return models.SuccessResult(nil), nil
		},
	}})

	workflow := activeWorkflow(
		actionStep("step-wait", 0, "wait_time"),
		actionStep("step-after", 1, "after"),
	)
	require.NoError(t, f.store.SaveWorkflow(context.Background(), workflow))

	execution, err := f.engine.Start(context.Background(), workflow, "c-1")
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusWaiting, execution.Status)
	assert.Equal(t, 1, execution.CurrentStepIndex)
	assert.False(t, afterRan)

	require.Equal(t, 1, scheduler.calls)
	assert.Equal(t, execution.ID, scheduler.executionID)
	assert.Equal(t, resumeAt, scheduler.resumeAt)

	// The worker slot is free while the execution waits.
	assert.Equal(t, 0, f.engine.limiter.Active("acct-1"))

	resumed, err := f.engine.Resume(context.Background(), execution.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)
	assert.True(t, afterRan)
}

func TestEngineCancel(t *testing.T) {
	f := newEngineFixture(t)

	tests := []struct {
		name    string
		status  models.ExecutionStatus
		wantErr error
	}{
		{name: "queued can cancel", status: models.ExecutionStatusQueued},
		{name: "active can cancel", status: models.ExecutionStatusActive},
		{name: "waiting can cancel", status: models.ExecutionStatusWaiting},
		{name: "completed cannot cancel", status: models.ExecutionStatusCompleted, wantErr: ErrInvalidStatusTransition},
		{name: "failed cannot cancel", status: models.ExecutionStatusFailed, wantErr: ErrInvalidStatusTransition},
		{name: "cancelled cannot cancel again", status: models.ExecutionStatusCancelled, wantErr: ErrInvalidStatusTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execution := &models.Execution{
				ID:         "exec-" + string(tt.status),
				WorkflowID: "wf-1",
				ContactID:  "c-1",
				AccountID:  "acct-1",
				Status:     tt.status,
				StartedAt:  time.Now().UTC(),
			}
			require.NoError(t, f.store.SaveExecution(context.Background(), execution))

			cancelled, err := f.engine.Cancel(context.Background(), execution.ID, "operator request")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, models.ExecutionStatusCancelled, cancelled.Status)
			require.NotNil(t, cancelled.CompletedAt)
		})
	}
}

func TestEngineCancel_WaitingDropsPendingResume(t *testing.T) {
	scheduler := &recordingScheduler{}
	f := newEngineFixture(t, WithScheduler(scheduler))

	execution := &models.Execution{
		ID:         "exec-parked",
		WorkflowID: "wf-1",
		ContactID:  "c-1",
		AccountID:  "acct-1",
		Status:     models.ExecutionStatusWaiting,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, f.store.SaveExecution(context.Background(), execution))

	cancelled, err := f.engine.Cancel(context.Background(), execution.ID, "operator request")
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCancelled, cancelled.Status)
	assert.Equal(t, []string{execution.ID}, scheduler.cancelled)
}

func TestEngineCancel_ObservedMidRun(t *testing.T) {
	f := newEngineFixture(t)
	f.putContact("c-1")

	var cancelErr error
	f.reg.RegisterAction(&fakeFactory{id: "self-cancelling", action: &fakeAction{
		fn: func(ctx context.Context, actionCtx models.ActionContext) (models.ExecutionResult, error) {
			_, cancelErr = f.engine.Cancel(ctx, actionCtx.Execution.ID, "contact unsubscribed")

			return models.SuccessResult(nil), nil
		},
	}})

	var secondRan bool
	f.reg.RegisterAction(&fakeFactory{id: "second", action: &fakeAction{
		fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
			secondRan = true

			return models.SuccessResult(nil), nil
		},
	}})

	execution, err := f.engine.Start(context.Background(), activeWorkflow(
		actionStep("step-1", 0, "self-cancelling"),
		actionStep("step-2", 1, "second"),
	), "c-1")
	require.NoError(t, err)
	require.NoError(t, cancelErr)

	// The run stopped at the next step boundary without touching step 2.
	assert.Equal(t, models.ExecutionStatusCancelled, execution.Status)
	assert.False(t, secondRan)

	persisted, err := f.store.ExecutionByID(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, persisted.Status)
}

func TestEngineRetry_ResumesFromFailedStep(t *testing.T) {
	f := newEngineFixture(t)
	f.putContact("c-1")

	var firstRuns int
	f.reg.RegisterAction(&fakeFactory{id: "first", action: &fakeAction{
		fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
			firstRuns++

			return models.SuccessResult(nil), nil
		},
	}})

	var secondAttempts int
	f.reg.RegisterAction(&fakeFactory{id: "second", action: &fakeAction{
		fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
			secondAttempts++
			if secondAttempts <= 3 {
				return models.FailureResult("service unavailable", true), nil
			}

			return models.SuccessResult(nil), nil
		},
	}})

	workflow := activeWorkflow(
		actionStep("step-1", 0, "first"),
		actionStep("step-2", 1, "second"),
	)
	require.NoError(t, f.store.SaveWorkflow(context.Background(), workflow))

	execution, err := f.engine.Start(context.Background(), workflow, "c-1")
	require.Error(t, err)
	require.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.Equal(t, 1, execution.CurrentStepIndex)

	retried, err := f.engine.Retry(context.Background(), execution.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, retried.Status)
	assert.Equal(t, 1, retried.RetryCount)
	assert.Empty(t, retried.ErrorMessage)

	// Retry resumed at the failed step, never from step zero.
	assert.Equal(t, 1, firstRuns)
	assert.Equal(t, 4, secondAttempts)
}

func TestEngineRetry_RequiresFailedStatus(t *testing.T) {
	f := newEngineFixture(t)

	execution := &models.Execution{
		ID:         "exec-active",
		WorkflowID: "wf-1",
		AccountID:  "acct-1",
		Status:     models.ExecutionStatusActive,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, f.store.SaveExecution(context.Background(), execution))

	_, err := f.engine.Retry(context.Background(), execution.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestEngineRetry_EnforcesRetryBudget(t *testing.T) {
	f := newEngineFixture(t)

	execution := &models.Execution{
		ID:         "exec-exhausted",
		WorkflowID: "wf-1",
		AccountID:  "acct-1",
		Status:     models.ExecutionStatusFailed,
		RetryCount: 3,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, f.store.SaveExecution(context.Background(), execution))

	_, err := f.engine.Retry(context.Background(), execution.ID)
	assert.ErrorIs(t, err, ErrRetryLimitExceeded)
}

func TestEngineExitForGoal(t *testing.T) {
	f := newEngineFixture(t)

	execution := &models.Execution{
		ID:         "exec-goal",
		WorkflowID: "wf-1",
		ContactID:  "c-1",
		AccountID:  "acct-1",
		Status:     models.ExecutionStatusWaiting,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, f.store.SaveExecution(context.Background(), execution))

	require.NoError(t, f.engine.ExitForGoal(context.Background(), execution.ID, "goal-1"))

	persisted, err := f.store.ExecutionByID(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, persisted.Status)
	assert.Equal(t, "goal-1", persisted.Metadata["exited_by_goal"])

	// Already terminal is a no-op.
	assert.NoError(t, f.engine.ExitForGoal(context.Background(), execution.ID, "goal-1"))
}

func TestEngineExitForGoal_WaitingDropsPendingResume(t *testing.T) {
	scheduler := &recordingScheduler{}
	f := newEngineFixture(t, WithScheduler(scheduler))

	execution := &models.Execution{
		ID:         "exec-goal-parked",
		WorkflowID: "wf-1",
		ContactID:  "c-1",
		AccountID:  "acct-1",
		Status:     models.ExecutionStatusWaiting,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, f.store.SaveExecution(context.Background(), execution))

	require.NoError(t, f.engine.ExitForGoal(context.Background(), execution.ID, "goal-1"))

	// The parked wake-up is cleared so the scheduler never resumes a
	// completed execution.
	assert.Equal(t, []string{execution.ID}, scheduler.cancelled)
}

func TestEngineEnrollThenRun(t *testing.T) {
	f := newEngineFixture(t)
	f.putContact("c-1")

	var ran bool
	f.reg.RegisterAction(&fakeFactory{id: "noop", action: &fakeAction{
		fn: func(context.Context, models.ActionContext) (models.ExecutionResult, error) {
			ran = true

			return models.SuccessResult(nil), nil
		},
	}})

	workflow := activeWorkflow(actionStep("step-1", 0, "noop"))
	require.NoError(t, f.store.SaveWorkflow(context.Background(), workflow))

	execution, err := f.engine.Enroll(context.Background(), workflow, "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusQueued, execution.Status)
	assert.False(t, ran)

	require.NoError(t, f.engine.Run(context.Background(), execution))
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.True(t, ran)
}

func TestEngineStart_EmptyWorkflowCompletesImmediately(t *testing.T) {
	f := newEngineFixture(t)
	f.putContact("c-1")

	execution, err := f.engine.Start(context.Background(), activeWorkflow(), "c-1")
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	require.NotNil(t, execution.CompletedAt)
}
