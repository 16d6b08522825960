// Package goals detects goal achievement from incoming contact activity and
// signals early exit for active enrollments.
package goals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hivecrm/journey/pkg/events"
	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/persistence"
)

// AchievementStore persists goal achievements. Implementations back the
// check-then-insert with a unique (contact_id, goal_config_id) constraint.
type AchievementStore interface {
	GoalAchievementExists(ctx context.Context, contactID, goalConfigID string) (bool, error)
	SaveGoalAchievement(ctx context.Context, achievement *models.GoalAchievement) error
}

// Detector matches contact activity against a workflow's active goals.
type Detector struct {
	store  AchievementStore
	logger *slog.Logger
	now    func() time.Time
}

func NewDetector(logger *slog.Logger, store AchievementStore) *Detector {
	return &Detector{
		store:  store,
		logger: logger.With("module", "goal_detector"),
		now:    time.Now,
	}
}

// EvaluateActivity checks one contact activity against every active goal of
// the workflow, in declaration order. The first matching goal is recorded;
// the check-then-insert against (contact_id, goal_config_id) keeps
// achievement at-most-once under duplicate event delivery.
func (d *Detector) EvaluateActivity(ctx context.Context, workflow *models.Workflow, execution *models.Execution, activity *events.ContactActivity) (models.GoalResult, error) {
	for _, goal := range workflow.Goals {
		if !goal.Active {
			continue
		}

		if !matches(goal, activity) {
			continue
		}

		exists, err := d.store.GoalAchievementExists(ctx, activity.ContactID, goal.ID)
		if err != nil {
			return models.GoalResult{}, fmt.Errorf("goal achievement lookup failed: %w", err)
		}

		if exists {
			d.logger.DebugContext(ctx, "Goal already achieved, skipping",
				"goal_config_id", goal.ID,
				"contact_id", activity.ContactID)

			continue
		}

		achievement := &models.GoalAchievement{
			ID:           uuid.New().String(),
			ExecutionID:  execution.ID,
			ContactID:    activity.ContactID,
			GoalConfigID: goal.ID,
			AchievedAt:   d.now().UTC(),
			TriggerEvent: map[string]any{
				"activity": activity.Activity,
				"data":     activity.Data,
			},
		}

		if err := d.store.SaveGoalAchievement(ctx, achievement); err != nil {
			// A concurrent delivery of the same activity can win the
			// check-then-insert race; the goal is achieved either way.
			if persistence.IsAchievementExists(err) {
				d.logger.DebugContext(ctx, "Goal already achieved concurrently",
					"goal_config_id", goal.ID,
					"contact_id", activity.ContactID)

				continue
			}

			return models.GoalResult{}, fmt.Errorf("goal achievement save failed: %w", err)
		}

		d.logger.InfoContext(ctx, "Goal achieved",
			"goal_config_id", goal.ID,
			"goal_type", goal.Type,
			"contact_id", activity.ContactID,
			"execution_id", execution.ID)

		return models.GoalResult{
			Achieved:     true,
			GoalConfigID: goal.ID,
			ShouldExit:   true,
		}, nil
	}

	return models.GoalResult{}, nil
}
