package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/persistence"
)

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

// AchievementRepository handles goal achievement storage. The unique
// (contact_id, goal_config_id) constraint backs the at-most-once guarantee
// even when two workers race the same event.
type AchievementRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewAchievementRepository(db *sql.DB, logger *slog.Logger) *AchievementRepository {
	return &AchievementRepository{db: db, logger: logger}
}

func (ar *AchievementRepository) Exists(ctx context.Context, contactID, goalConfigID string) (bool, error) {
	var exists bool

	err := ar.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM goal_achievements WHERE contact_id = $1 AND goal_config_id = $2)`,
		contactID, goalConfigID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check goal achievement: %w", err)
	}

	return exists, nil
}

func (ar *AchievementRepository) Save(ctx context.Context, achievement *models.GoalAchievement) error {
	triggerEventJSON, err := json.Marshal(achievement.TriggerEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger event: %w", err)
	}

	query := `
		INSERT INTO goal_achievements (
			id, execution_id, contact_id, goal_config_id, achieved_at, trigger_event
		)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = ar.db.ExecContext(ctx, query,
		achievement.ID,
		achievement.ExecutionID,
		achievement.ContactID,
		achievement.GoalConfigID,
		achievement.AchievedAt,
		triggerEventJSON,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return persistence.NewExecutionError("SaveGoalAchievement", achievement.ExecutionID, persistence.ErrAchievementExists)
		}

		return persistence.NewExecutionError("SaveGoalAchievement", achievement.ExecutionID, err)
	}

	return nil
}
