package persistence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowErrorWrapping(t *testing.T) {
	err := NewWorkflowError("WorkflowByID", "wf-1", ErrWorkflowNotFound)

	assert.True(t, errors.Is(err, ErrWorkflowNotFound))
	assert.True(t, IsWorkflowNotFound(err))
	assert.Contains(t, err.Error(), "WorkflowByID")
	assert.Contains(t, err.Error(), "wf-1")
}

func TestExecutionErrorWrapping(t *testing.T) {
	underlying := errors.New("connection reset")
	err := NewExecutionError("SaveExecution", "exec-1", underlying)

	assert.True(t, errors.Is(err, underlying))
	assert.False(t, IsExecutionNotFound(err))
	assert.Contains(t, err.Error(), "exec-1")
}

func TestIsAchievementExists(t *testing.T) {
	wrapped := NewExecutionError("SaveGoalAchievement", "exec-1", ErrAchievementExists)

	assert.True(t, IsAchievementExists(wrapped))
	assert.False(t, IsAchievementExists(errors.New("other")))
}
