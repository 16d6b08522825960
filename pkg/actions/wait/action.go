// Package wait implements the wait_time action. A wait step never blocks a
// worker: it asks the engine to park the execution and schedules a resume.
package wait

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/protocol"
)

const ActionType = "wait_time"

// Duration bounds for a single wait step.
const (
	MinWait = 1 * time.Second
	MaxWait = 90 * 24 * time.Hour
)

var unitDurations = map[string]time.Duration{
	"seconds": time.Second,
	"minutes": time.Minute,
	"hours":   time.Hour,
	"days":    24 * time.Hour,
}

// Action suspends the execution for a configured duration.
type Action struct {
	duration time.Duration
	now      func() time.Time
}

func newAction(config map[string]any, now func() time.Time) (*Action, error) {
	duration, err := parseDuration(config)
	if err != nil {
		return nil, err
	}

	return &Action{duration: duration, now: now}, nil
}

func parseDuration(config map[string]any) (time.Duration, error) {
	if seconds, ok := numberValue(config["duration_seconds"]); ok {
		return boundedDuration(time.Duration(seconds * float64(time.Second)))
	}

	amount, ok := numberValue(config["duration"])
	if !ok {
		return 0, fmt.Errorf("validation: wait step requires duration_seconds or duration")
	}

	unit, _ := config["unit"].(string)
	if unit == "" {
		unit = "minutes"
	}

	per, ok := unitDurations[unit]
	if !ok {
		return 0, fmt.Errorf("validation: unknown wait unit %q", unit)
	}

	return boundedDuration(time.Duration(amount * float64(per)))
}

func boundedDuration(d time.Duration) (time.Duration, error) {
	if d < MinWait || d > MaxWait {
		return 0, fmt.Errorf("validation: wait duration %s outside [%s, %s]", d, MinWait, MaxWait)
	}

	return d, nil
}

func (a *Action) Execute(ctx context.Context, actionCtx models.ActionContext, logger *slog.Logger) (models.ExecutionResult, error) {
	resumeAt := a.now().Add(a.duration)

	logger.InfoContext(ctx, "Parking execution for wait step",
		"duration", a.duration.String(),
		"resume_at", resumeAt.Format(time.RFC3339))

	result := models.SuccessResult(map[string]any{
		"waited":    a.duration.String(),
		"resume_at": resumeAt.Format(time.RFC3339),
	})
	result.Suspend = true
	result.ResumeAt = resumeAt

	return result, nil
}

type actionFactory struct {
	now func() time.Time
}

// NewFactory builds the wait_time factory.
func NewFactory() protocol.ActionFactory {
	return &actionFactory{now: time.Now}
}

// NewFactoryWithClock builds a wait_time factory with a fixed time source,
// for tests.
func NewFactoryWithClock(now func() time.Time) protocol.ActionFactory {
	return &actionFactory{now: now}
}

func (f *actionFactory) ID() string { return ActionType }

func (f *actionFactory) Create(config map[string]any) (protocol.Action, error) {
	return newAction(config, f.now)
}

func (f *actionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration_seconds": map[string]any{
				"type":    "number",
				"minimum": 1,
			},
			"duration": map[string]any{
				"type":    "number",
				"minimum": 1,
			},
			"unit": map[string]any{
				"type": "string",
				"enum": []string{"seconds", "minutes", "hours", "days"},
			},
		},
	}
}

func numberValue(v any) (float64, bool) {
	switch typed := v.(type) {
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	default:
		return 0, false
	}
}
