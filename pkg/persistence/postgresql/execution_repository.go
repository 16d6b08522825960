package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/persistence"
)

// ExecutionRepository handles enrollment run storage.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id, workflow_id, workflow_version, contact_id, account_id, status,
	current_step_index, retry_count, started_at, completed_at, error_message, metadata
`

// Save upserts an execution. The WHERE clause keeps terminal rows immutable:
// an update that would move a terminal execution back to a live status
// matches no row and reports ErrTerminalExecution. The one sanctioned exit
// is an operator retry, failed back to active with the retry count
// incremented.
func (er *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	metadataJSON, err := json.Marshal(execution.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO executions (
			id, workflow_id, workflow_version, contact_id, account_id, status,
			current_step_index, retry_count, started_at, completed_at, error_message, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_step_index = EXCLUDED.current_step_index,
			retry_count = EXCLUDED.retry_count,
			completed_at = EXCLUDED.completed_at,
			error_message = EXCLUDED.error_message,
			metadata = EXCLUDED.metadata
		WHERE executions.status NOT IN ('completed', 'failed', 'cancelled')
		   OR executions.status = EXCLUDED.status
		   OR (executions.status = 'failed' AND EXCLUDED.status = 'active'
		       AND EXCLUDED.retry_count > executions.retry_count)
	`

	result, err := er.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.WorkflowVersion,
		execution.ContactID,
		execution.AccountID,
		execution.Status,
		execution.CurrentStepIndex,
		execution.RetryCount,
		execution.StartedAt,
		execution.CompletedAt,
		execution.ErrorMessage,
		metadataJSON,
	)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("Save", execution.ID, persistence.ErrTerminalExecution)
	}

	return nil
}

func (er *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	execution, err := er.scan(er.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

func (er *ExecutionRepository) StatusByID(ctx context.Context, id string) (models.ExecutionStatus, error) {
	var status models.ExecutionStatus

	err := er.db.QueryRowContext(ctx, `SELECT status FROM executions WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", persistence.NewExecutionError("StatusByID", id, persistence.ErrExecutionNotFound)
		}

		return "", persistence.NewExecutionError("StatusByID", id, err)
	}

	return status, nil
}

func (er *ExecutionRepository) GetByContact(ctx context.Context, contactID string) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE contact_id = $1 ORDER BY started_at`

	rows, err := er.db.QueryContext(ctx, query, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions by contact: %w", err)
	}
	defer rows.Close()

	return er.collect(rows)
}

func (er *ExecutionRepository) GetActiveByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions
		WHERE workflow_id = $1 AND status IN ('queued', 'active', 'waiting')
		ORDER BY started_at`

	rows, err := er.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active executions: %w", err)
	}
	defer rows.Close()

	return er.collect(rows)
}

func (er *ExecutionRepository) ActiveCountByAccount(ctx context.Context, accountID string) (int, error) {
	var count int

	err := er.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM executions WHERE account_id = $1 AND status IN ('queued', 'active', 'waiting')`,
		accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active executions: %w", err)
	}

	return count, nil
}

func (er *ExecutionRepository) scan(row rowScanner) (*models.Execution, error) {
	var (
		execution    models.Execution
		completedAt  sql.NullTime
		metadataJSON []byte
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.WorkflowVersion,
		&execution.ContactID,
		&execution.AccountID,
		&execution.Status,
		&execution.CurrentStepIndex,
		&execution.RetryCount,
		&execution.StartedAt,
		&completedAt,
		&execution.ErrorMessage,
		&metadataJSON,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &execution.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &execution, nil
}

func (er *ExecutionRepository) collect(rows *sql.Rows) ([]*models.Execution, error) {
	var executions []*models.Execution

	for rows.Next() {
		execution, err := er.scan(rows)
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}

	return executions, nil
}
