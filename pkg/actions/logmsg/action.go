// Package logmsg implements the log_message action, a diagnostic step that
// writes an interpolated message to the execution log stream.
package logmsg

import (
	"context"
	"log/slog"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/protocol"
	"github.com/hivecrm/journey/pkg/template"
)

const ActionType = "log_message"

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Action renders a merge-field message and logs it at the configured level.
type Action struct {
	message string
	level   slog.Level
}

func newAction(config map[string]any) *Action {
	message, _ := config["message"].(string)

	level := slog.LevelInfo
	if name, ok := config["level"].(string); ok {
		if parsed, known := levels[name]; known {
			level = parsed
		}
	}

	return &Action{message: message, level: level}
}

func (a *Action) Execute(ctx context.Context, actionCtx models.ActionContext, logger *slog.Logger) (models.ExecutionResult, error) {
	rendered := template.Interpolate(a.message, actionCtx.Facts)

	logger.Log(ctx, a.level, rendered,
		"action_type", ActionType,
		"step_id", actionCtx.Step.ID)

	return models.SuccessResult(map[string]any{"message": rendered}), nil
}

type actionFactory struct{}

// NewFactory builds the log_message factory.
func NewFactory() protocol.ActionFactory {
	return &actionFactory{}
}

func (*actionFactory) ID() string { return ActionType }

func (*actionFactory) Create(config map[string]any) (protocol.Action, error) {
	if config == nil {
		config = map[string]any{}
	}

	return newAction(config), nil
}

func (*actionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Message to log; merge fields are interpolated",
			},
			"level": map[string]any{
				"type": "string",
				"enum": []string{"debug", "info", "warn", "error"},
			},
		},
		"required": []string{"message"},
	}
}
