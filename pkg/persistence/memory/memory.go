// Package memory provides an in-memory persistence implementation for tests
// and local development. All state dies with the process.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/persistence"
)

type Persistence struct {
	mu           sync.RWMutex
	workflows    map[string]*models.Workflow
	executions   map[string]*models.Execution
	logs         map[string][]*models.ExecutionLog
	achievements map[string]*models.GoalAchievement
}

func NewPersistence() *Persistence {
	return &Persistence{
		workflows:    make(map[string]*models.Workflow),
		executions:   make(map[string]*models.Execution),
		logs:         make(map[string][]*models.ExecutionLog),
		achievements: make(map[string]*models.GoalAchievement),
	}
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workflows := make([]*models.Workflow, 0, len(p.workflows))
	for _, workflow := range p.workflows {
		workflows = append(workflows, cloneWorkflow(workflow))
	}

	sort.Slice(workflows, func(i, j int) bool { return workflows[i].ID < workflows[j].ID })

	return workflows, nil
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workflow, ok := p.workflows[id]
	if !ok {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	return cloneWorkflow(workflow), nil
}

func (p *Persistence) ActiveWorkflowsByTrigger(ctx context.Context, accountID, eventType string) ([]*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var matched []*models.Workflow

	for _, workflow := range p.workflows {
		if !workflow.IsActive() {
			continue
		}

		if workflow.AccountID != accountID || workflow.Trigger.EventType != eventType {
			continue
		}

		matched = append(matched, cloneWorkflow(workflow))
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	return matched, nil
}

func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.workflows[workflow.ID] = cloneWorkflow(workflow)

	return nil
}

func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.workflows[id]; !ok {
		return persistence.NewWorkflowError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
	}

	delete(p.workflows, id)

	return nil
}

func (p *Persistence) SaveExecution(ctx context.Context, execution *models.Execution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.executions[execution.ID]; ok {
		if existing.Status.Terminal() && existing.Status != execution.Status &&
			!isRetryReactivation(existing, execution) {
			return persistence.NewExecutionError("SaveExecution", execution.ID, persistence.ErrTerminalExecution)
		}
	}

	p.executions[execution.ID] = cloneExecution(execution)

	return nil
}

// isRetryReactivation is the one sanctioned exit from a terminal status:
// an operator retry moves failed back to active with the retry count
// incremented.
func isRetryReactivation(existing, incoming *models.Execution) bool {
	return existing.Status == models.ExecutionStatusFailed &&
		incoming.Status == models.ExecutionStatusActive &&
		incoming.RetryCount > existing.RetryCount
}

func (p *Persistence) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	execution, ok := p.executions[id]
	if !ok {
		return nil, persistence.NewExecutionError("ExecutionByID", id, persistence.ErrExecutionNotFound)
	}

	return cloneExecution(execution), nil
}

func (p *Persistence) ExecutionStatusByID(ctx context.Context, id string) (models.ExecutionStatus, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	execution, ok := p.executions[id]
	if !ok {
		return "", persistence.NewExecutionError("ExecutionStatusByID", id, persistence.ErrExecutionNotFound)
	}

	return execution.Status, nil
}

func (p *Persistence) ExecutionsByContact(ctx context.Context, contactID string) ([]*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var matched []*models.Execution

	for _, execution := range p.executions {
		if execution.ContactID == contactID {
			matched = append(matched, cloneExecution(execution))
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].StartedAt.Before(matched[j].StartedAt) })

	return matched, nil
}

func (p *Persistence) ActiveExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var matched []*models.Execution

	for _, execution := range p.executions {
		if execution.WorkflowID == workflowID && !execution.Status.Terminal() {
			matched = append(matched, cloneExecution(execution))
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	return matched, nil
}

func (p *Persistence) ActiveExecutionCountByAccount(ctx context.Context, accountID string) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0

	for _, execution := range p.executions {
		if execution.AccountID == accountID && !execution.Status.Terminal() {
			count++
		}
	}

	return count, nil
}

func (p *Persistence) AppendExecutionLog(ctx context.Context, entry *models.ExecutionLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	clone := *entry
	p.logs[entry.ExecutionID] = append(p.logs[entry.ExecutionID], &clone)

	return nil
}

func (p *Persistence) ExecutionLogs(ctx context.Context, executionID string) ([]*models.ExecutionLog, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := p.logs[executionID]

	out := make([]*models.ExecutionLog, len(entries))
	for i, entry := range entries {
		clone := *entry
		out[i] = &clone
	}

	return out, nil
}

func (p *Persistence) GoalAchievementExists(ctx context.Context, contactID, goalConfigID string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.achievements[achievementKey(contactID, goalConfigID)]

	return ok, nil
}

func (p *Persistence) SaveGoalAchievement(ctx context.Context, achievement *models.GoalAchievement) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := achievementKey(achievement.ContactID, achievement.GoalConfigID)
	if _, ok := p.achievements[key]; ok {
		return persistence.NewExecutionError("SaveGoalAchievement", achievement.ExecutionID, persistence.ErrAchievementExists)
	}

	clone := *achievement
	p.achievements[key] = &clone

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return nil
}

func (p *Persistence) Close(ctx context.Context) error {
	return nil
}

func achievementKey(contactID, goalConfigID string) string {
	return contactID + "/" + goalConfigID
}

func cloneWorkflow(workflow *models.Workflow) *models.Workflow {
	clone := *workflow
	clone.Steps = append([]models.Step(nil), workflow.Steps...)
	clone.Goals = append([]models.GoalConfig(nil), workflow.Goals...)

	return &clone
}

func cloneExecution(execution *models.Execution) *models.Execution {
	clone := *execution
	if execution.CompletedAt != nil {
		completedAt := *execution.CompletedAt
		clone.CompletedAt = &completedAt
	}

	return &clone
}
