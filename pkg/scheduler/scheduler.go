// Package scheduler wakes waiting executions when their resume time
// arrives. Wait steps never hold a worker; they park the execution and
// register a resume entry here.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hivecrm/journey/pkg/models"
)

// DefaultTickSpec polls the resume store often enough that wait durations
// measured in seconds stay accurate.
const DefaultTickSpec = "@every 5s"

// DefaultBatchSize bounds how many executions one tick resumes.
const DefaultBatchSize = 100

// ResumeStore persists pending resume entries ordered by due time. Claiming
// an entry removes it, so concurrent schedulers resume each execution at
// most once.
type ResumeStore interface {
	Schedule(ctx context.Context, executionID string, resumeAt time.Time) error
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]string, error)
	Remove(ctx context.Context, executionID string) error
	Close() error
}

// Resumer continues a parked execution. Implemented by the execution
// engine.
type Resumer interface {
	Resume(ctx context.Context, executionID string) (*models.Execution, error)
}

type Scheduler struct {
	store     ResumeStore
	resumer   Resumer
	logger    *slog.Logger
	cron      *cron.Cron
	tickSpec  string
	batchSize int
	now       func() time.Time
}

type Option func(*Scheduler)

// WithTickSpec overrides the cron spec driving the poll loop.
func WithTickSpec(spec string) Option {
	return func(s *Scheduler) { s.tickSpec = spec }
}

// WithBatchSize overrides the per-tick resume batch size.
func WithBatchSize(size int) Option {
	return func(s *Scheduler) { s.batchSize = size }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func NewScheduler(logger *slog.Logger, store ResumeStore, resumer Resumer, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:     store,
		resumer:   resumer,
		logger:    logger.With("module", "resume_scheduler"),
		tickSpec:  DefaultTickSpec,
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ScheduleResume registers a future wake-up. Satisfies the engine's
// scheduler dependency.
func (s *Scheduler) ScheduleResume(ctx context.Context, executionID string, resumeAt time.Time) error {
	return s.store.Schedule(ctx, executionID, resumeAt)
}

// CancelResume drops a pending wake-up, used when a waiting execution is
// cancelled or exited by a goal.
func (s *Scheduler) CancelResume(ctx context.Context, executionID string) error {
	return s.store.Remove(ctx, executionID)
}

// Start launches the poll loop. The loop runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(s.tickSpec, func() {
		if err := s.Tick(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Resume tick failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid tick spec %q: %w", s.tickSpec, err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Resume scheduler started", "tick", s.tickSpec)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the poll loop, waiting for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}

	<-s.cron.Stop().Done()
	s.logger.Info("Resume scheduler stopped")
}

// Tick claims every due entry and resumes each execution. A failed resume
// is logged and dropped; the execution stays waiting and an operator can
// retry it through the API.
func (s *Scheduler) Tick(ctx context.Context) error {
	due, err := s.store.ClaimDue(ctx, s.now().UTC(), s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim due resumes: %w", err)
	}

	for _, executionID := range due {
		if _, err := s.resumer.Resume(ctx, executionID); err != nil {
			s.logger.ErrorContext(ctx, "Failed to resume execution",
				"execution_id", executionID,
				"error", err)

			continue
		}

		s.logger.InfoContext(ctx, "Execution resumed", "execution_id", executionID)
	}

	return nil
}
