package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hivecrm/journey/pkg/models"
)

// ExecutionLogRepository handles step-level log storage. Appends are small
// single-row inserts so they never stall the step loop for long.
type ExecutionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionLogRepository(db *sql.DB, logger *slog.Logger) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db, logger: logger}
}

func (lr *ExecutionLogRepository) Append(ctx context.Context, entry *models.ExecutionLog) error {
	responseJSON, err := json.Marshal(entry.Response)
	if err != nil {
		return fmt.Errorf("failed to marshal response snapshot: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO execution_logs (
			id, execution_id, step_index, step_id, action_type,
			attempt, status, response, duration_ms, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = lr.db.ExecContext(ctx, query,
		entry.ID,
		entry.ExecutionID,
		entry.StepIndex,
		entry.StepID,
		entry.ActionType,
		entry.Attempt,
		entry.Status,
		responseJSON,
		entry.DurationMs,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append execution log: %w", err)
	}

	return nil
}

func (lr *ExecutionLogRepository) GetByExecution(ctx context.Context, executionID string) ([]*models.ExecutionLog, error) {
	query := `
		SELECT id, execution_id, step_index, step_id, action_type,
			   attempt, status, response, duration_ms, created_at
		FROM execution_logs
		WHERE execution_id = $1
		ORDER BY created_at, attempt
	`

	rows, err := lr.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.ExecutionLog

	for rows.Next() {
		var (
			entry        models.ExecutionLog
			responseJSON []byte
		)

		err := rows.Scan(
			&entry.ID,
			&entry.ExecutionID,
			&entry.StepIndex,
			&entry.StepID,
			&entry.ActionType,
			&entry.Attempt,
			&entry.Status,
			&responseJSON,
			&entry.DurationMs,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}

		if len(responseJSON) > 0 {
			if err := json.Unmarshal(responseJSON, &entry.Response); err != nil {
				return nil, fmt.Errorf("failed to unmarshal response snapshot: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution logs: %w", err)
	}

	return entries, nil
}
