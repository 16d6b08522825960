// Package postgresql provides the PostgreSQL persistence implementation for
// workflows, executions, step logs and goal achievements.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db              *sql.DB
	logger          *slog.Logger
	workflowRepo    *WorkflowRepository
	executionRepo   *ExecutionRepository
	logRepo         *ExecutionLogRepository
	achievementRepo *AchievementRepository
}

// NewPersistence connects, runs migrations and wires the repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:              database,
		logger:          logger,
		workflowRepo:    NewWorkflowRepository(database, logger),
		executionRepo:   NewExecutionRepository(database, logger),
		logRepo:         NewExecutionLogRepository(database, logger),
		achievementRepo: NewAchievementRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	return p.workflowRepo.GetAll(ctx)
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return p.workflowRepo.GetByID(ctx, id)
}

func (p *Persistence) ActiveWorkflowsByTrigger(ctx context.Context, accountID, eventType string) ([]*models.Workflow, error) {
	return p.workflowRepo.GetActiveByTrigger(ctx, accountID, eventType)
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return p.workflowRepo.Save(ctx, workflow)
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	return p.workflowRepo.Delete(ctx, id)
}

func (p *Persistence) SaveExecution(ctx context.Context, execution *models.Execution) error {
	return p.executionRepo.Save(ctx, execution)
}

func (p *Persistence) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	return p.executionRepo.GetByID(ctx, id)
}

func (p *Persistence) ExecutionStatusByID(ctx context.Context, id string) (models.ExecutionStatus, error) {
	return p.executionRepo.StatusByID(ctx, id)
}

func (p *Persistence) ExecutionsByContact(ctx context.Context, contactID string) ([]*models.Execution, error) {
	return p.executionRepo.GetByContact(ctx, contactID)
}

func (p *Persistence) ActiveExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	return p.executionRepo.GetActiveByWorkflow(ctx, workflowID)
}

func (p *Persistence) ActiveExecutionCountByAccount(ctx context.Context, accountID string) (int, error) {
	return p.executionRepo.ActiveCountByAccount(ctx, accountID)
}

func (p *Persistence) AppendExecutionLog(ctx context.Context, entry *models.ExecutionLog) error {
	return p.logRepo.Append(ctx, entry)
}

func (p *Persistence) ExecutionLogs(ctx context.Context, executionID string) ([]*models.ExecutionLog, error) {
	return p.logRepo.GetByExecution(ctx, executionID)
}

func (p *Persistence) GoalAchievementExists(ctx context.Context, contactID, goalConfigID string) (bool, error) {
	return p.achievementRepo.Exists(ctx, contactID, goalConfigID)
}

func (p *Persistence) SaveGoalAchievement(ctx context.Context, achievement *models.GoalAchievement) error {
	return p.achievementRepo.Save(ctx, achievement)
}
