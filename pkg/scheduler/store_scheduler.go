package scheduler

import (
	"context"
	"time"
)

// StoreScheduler registers and cancels wake-ups against a shared resume
// store without running the tick loop. The API process uses it so wait
// steps it parks are picked up by the worker fleet's schedulers.
type StoreScheduler struct {
	store ResumeStore
}

func NewStoreScheduler(store ResumeStore) *StoreScheduler {
	return &StoreScheduler{store: store}
}

func (s *StoreScheduler) ScheduleResume(ctx context.Context, executionID string, resumeAt time.Time) error {
	return s.store.Schedule(ctx, executionID, resumeAt)
}

func (s *StoreScheduler) CancelResume(ctx context.Context, executionID string) error {
	return s.store.Remove(ctx, executionID)
}
