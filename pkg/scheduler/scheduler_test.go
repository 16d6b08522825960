package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivecrm/journey/pkg/models"
)

type fakeResumer struct {
	resumed []string
	failOn  map[string]error
}

func (r *fakeResumer) Resume(_ context.Context, executionID string) (*models.Execution, error) {
	if err, ok := r.failOn[executionID]; ok {
		return nil, err
	}

	r.resumed = append(r.resumed, executionID)

	return &models.Execution{ID: executionID, Status: models.ExecutionStatusCompleted}, nil
}

func TestMemoryStore_ClaimDue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Schedule(ctx, "exec-late", now.Add(time.Hour)))
	require.NoError(t, store.Schedule(ctx, "exec-due-2", now.Add(-time.Minute)))
	require.NoError(t, store.Schedule(ctx, "exec-due-1", now.Add(-time.Hour)))
	require.NoError(t, store.Schedule(ctx, "exec-exact", now))

	due, err := store.ClaimDue(ctx, now, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"exec-due-1", "exec-due-2", "exec-exact"}, due)

	// Claimed entries are gone; the future one remains.
	again, err := store.ClaimDue(ctx, now, 0)
	require.NoError(t, err)
	assert.Empty(t, again)

	later, err := store.ClaimDue(ctx, now.Add(2*time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"exec-late"}, later)
}

func TestMemoryStore_ClaimDueHonorsLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Schedule(ctx, id, now.Add(-time.Second)))
	}

	first, err := store.ClaimDue(ctx, now, 2)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	rest, err := store.ClaimDue(ctx, now, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestMemoryStore_RescheduleOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, store.Schedule(ctx, "exec-1", now.Add(-time.Minute)))
	require.NoError(t, store.Schedule(ctx, "exec-1", now.Add(time.Hour)))

	due, err := store.ClaimDue(ctx, now, 0)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMemoryStore_Remove(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, store.Schedule(ctx, "exec-1", now.Add(-time.Minute)))
	require.NoError(t, store.Remove(ctx, "exec-1"))

	due, err := store.ClaimDue(ctx, now, 0)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestSchedulerTick_ResumesDueExecutions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	resumer := &fakeResumer{}
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	s := NewScheduler(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		store, resumer,
		WithClock(func() time.Time { return now }),
	)

	require.NoError(t, s.ScheduleResume(ctx, "exec-1", now.Add(-time.Minute)))
	require.NoError(t, s.ScheduleResume(ctx, "exec-2", now.Add(time.Hour)))

	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, []string{"exec-1"}, resumer.resumed)

	// Second tick finds nothing new.
	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, []string{"exec-1"}, resumer.resumed)
}

func TestSchedulerTick_FailedResumeDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	resumer := &fakeResumer{failOn: map[string]error{"exec-bad": errors.New("execution not found")}}
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	s := NewScheduler(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		store, resumer,
		WithClock(func() time.Time { return now }),
	)

	require.NoError(t, s.ScheduleResume(ctx, "exec-bad", now.Add(-2*time.Minute)))
	require.NoError(t, s.ScheduleResume(ctx, "exec-good", now.Add(-time.Minute)))

	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, []string{"exec-good"}, resumer.resumed)
}

func TestSchedulerCancelResume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	resumer := &fakeResumer{}
	now := time.Now().UTC()

	s := NewScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)), store, resumer)

	require.NoError(t, s.ScheduleResume(ctx, "exec-1", now.Add(-time.Minute)))
	require.NoError(t, s.CancelResume(ctx, "exec-1"))

	require.NoError(t, s.Tick(ctx))
	assert.Empty(t, resumer.resumed)
}

func TestStoreScheduler_SharesResumeStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now().UTC()

	// Wake-ups registered through the loop-less scheduler are visible to a
	// ticking scheduler on the same store.
	writer := NewStoreScheduler(store)
	require.NoError(t, writer.ScheduleResume(ctx, "exec-1", now.Add(-time.Minute)))
	require.NoError(t, writer.ScheduleResume(ctx, "exec-2", now.Add(-time.Minute)))
	require.NoError(t, writer.CancelResume(ctx, "exec-2"))

	resumer := &fakeResumer{}
	s := NewScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)), store, resumer)

	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, []string{"exec-1"}, resumer.resumed)
}

func TestSchedulerStart_RejectsInvalidTickSpec(t *testing.T) {
	s := NewScheduler(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewMemoryStore(), &fakeResumer{},
		WithTickSpec("not a cron spec"),
	)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tick spec")
}

func TestNewRedisStore_ParsesConnection(t *testing.T) {
	store, err := NewRedisStore(map[string]string{"addr": "localhost:6379", "db": "2"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = NewRedisStore(map[string]string{"db": "not-a-number"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis db")
}
