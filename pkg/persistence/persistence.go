// Package persistence provides the storage abstraction for workflows,
// executions, step logs and goal achievements.
package persistence

import (
	"context"

	"github.com/hivecrm/journey/pkg/models"
)

type Persistence interface {
	// Workflow definitions. Steps and goals come back pre-resolved and
	// ordered by position.
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	ActiveWorkflowsByTrigger(ctx context.Context, accountID, eventType string) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error

	// Executions. SaveExecution upserts; terminal executions are never
	// overwritten back to a live status.
	SaveExecution(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)
	ExecutionStatusByID(ctx context.Context, id string) (models.ExecutionStatus, error)
	ExecutionsByContact(ctx context.Context, contactID string) ([]*models.Execution, error)
	ActiveExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
	ActiveExecutionCountByAccount(ctx context.Context, accountID string) (int, error)

	// Step-level logs, one row per attempt.
	AppendExecutionLog(ctx context.Context, entry *models.ExecutionLog) error
	ExecutionLogs(ctx context.Context, executionID string) ([]*models.ExecutionLog, error)

	// Goal achievements, at most one per (contact, goal config) pair.
	GoalAchievementExists(ctx context.Context, contactID, goalConfigID string) (bool, error)
	SaveGoalAchievement(ctx context.Context, achievement *models.GoalAchievement) error

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
