package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/persistence"
)

// WorkflowRepository handles workflow definition storage.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
	id, account_id, name, description, version, status,
	trigger_config, steps, goals, metadata, created_at, updated_at
`

func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE deleted_at IS NULL ORDER BY created_at`

	rows, err := wr.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer rows.Close()

	return wr.collect(rows)
}

func (wr *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1 AND deleted_at IS NULL`

	workflow, err := wr.scan(wr.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

func (wr *WorkflowRepository) GetActiveByTrigger(ctx context.Context, accountID, eventType string) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows
		WHERE account_id = $1
		  AND status = $2
		  AND trigger_config->>'event_type' = $3
		  AND deleted_at IS NULL
		ORDER BY created_at`

	rows, err := wr.db.QueryContext(ctx, query, accountID, models.WorkflowStatusActive, eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows by trigger: %w", err)
	}
	defer rows.Close()

	return wr.collect(rows)
}

func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	triggerJSON, err := json.Marshal(workflow.Trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	stepsJSON, err := json.Marshal(workflow.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	goalsJSON, err := json.Marshal(workflow.Goals)
	if err != nil {
		return fmt.Errorf("failed to marshal goals: %w", err)
	}

	metadataJSON, err := json.Marshal(workflow.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO workflows (
			id, account_id, name, description, version, status,
			trigger_config, steps, goals, metadata, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			version = EXCLUDED.version,
			status = EXCLUDED.status,
			trigger_config = EXCLUDED.trigger_config,
			steps = EXCLUDED.steps,
			goals = EXCLUDED.goals,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`

	createdAt := workflow.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = wr.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.AccountID,
		workflow.Name,
		workflow.Description,
		workflow.Version,
		workflow.Status,
		triggerJSON,
		stepsJSON,
		goalsJSON,
		metadataJSON,
		createdAt,
		time.Now().UTC(),
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// Delete soft deletes a workflow by setting deleted_at.
func (wr *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := wr.db.ExecContext(ctx,
		`UPDATE workflows SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (wr *WorkflowRepository) scan(row rowScanner) (*models.Workflow, error) {
	var (
		workflow     models.Workflow
		triggerJSON  []byte
		stepsJSON    []byte
		goalsJSON    []byte
		metadataJSON []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.AccountID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Version,
		&workflow.Status,
		&triggerJSON,
		&stepsJSON,
		&goalsJSON,
		&metadataJSON,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(triggerJSON, &workflow.Trigger); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
	}

	if err := json.Unmarshal(stepsJSON, &workflow.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	if err := json.Unmarshal(goalsJSON, &workflow.Goals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal goals: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &workflow.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) collect(rows *sql.Rows) ([]*models.Workflow, error) {
	var workflows []*models.Workflow

	for rows.Next() {
		workflow, err := wr.scan(rows)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflows: %w", err)
	}

	return workflows, nil
}
