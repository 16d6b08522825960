// Package protocol defines the interfaces pluggable actions and conditions
// implement to participate in journey execution.
package protocol

import (
	"context"
	"log/slog"

	"github.com/hivecrm/journey/pkg/models"
)

// Action executes one configured step against an action context. Transport
// failures are reported through the ExecutionResult; a non-nil error means
// the action could not run at all (bad configuration, cancelled context).
type Action interface {
	Execute(ctx context.Context, actionCtx models.ActionContext, logger *slog.Logger) (models.ExecutionResult, error)
}

// ActionFactory creates action instances from step configuration and
// describes the configuration schema for registry validation.
type ActionFactory interface {
	Create(config map[string]any) (Action, error)
	ID() string
	Schema() map[string]any
}
