package workflow

import (
	"fmt"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/qmuntal/stateless"
)

// Status machine triggers.
const (
	triggerActivate = "activate"
	triggerWait     = "wait"
	triggerResume   = "resume"
	triggerComplete = "complete"
	triggerFail     = "fail"
	triggerCancel   = "cancel"
	triggerRetry    = "retry"
)

// newStatusMachine encodes the legal execution status transitions. Terminal
// states have no outgoing transitions except failed -> active via retry,
// which the engine additionally guards with the retry budget.
func newStatusMachine(current models.ExecutionStatus) *stateless.StateMachine {
	machine := stateless.NewStateMachine(current)

	machine.Configure(models.ExecutionStatusQueued).
		Permit(triggerActivate, models.ExecutionStatusActive).
		Permit(triggerCancel, models.ExecutionStatusCancelled)

	machine.Configure(models.ExecutionStatusActive).
		Permit(triggerWait, models.ExecutionStatusWaiting).
		Permit(triggerComplete, models.ExecutionStatusCompleted).
		Permit(triggerFail, models.ExecutionStatusFailed).
		Permit(triggerCancel, models.ExecutionStatusCancelled)

	machine.Configure(models.ExecutionStatusWaiting).
		Permit(triggerResume, models.ExecutionStatusActive).
		Permit(triggerCancel, models.ExecutionStatusCancelled)

	machine.Configure(models.ExecutionStatusFailed).
		Permit(triggerRetry, models.ExecutionStatusActive)

	return machine
}

// transition fires one status machine trigger against the execution and
// applies the resulting status.
func transition(execution *models.Execution, trigger string) error {
	machine := newStatusMachine(execution.Status)

	if err := machine.Fire(trigger); err != nil {
		return fmt.Errorf("%w: cannot %s from %s", ErrInvalidStatusTransition, trigger, execution.Status)
	}

	status, ok := machine.MustState().(models.ExecutionStatus)
	if !ok {
		return fmt.Errorf("%w: unexpected state type", ErrInvalidStatusTransition)
	}

	execution.Status = status

	return nil
}
