// Package tag implements the add_tag and remove_tag actions, which mutate a
// contact's tag set through a CRM-side writer.
package tag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/protocol"
	"github.com/hivecrm/journey/pkg/retry"
	"github.com/hivecrm/journey/pkg/template"
)

const (
	AddActionType    = "add_tag"
	RemoveActionType = "remove_tag"
)

// Writer applies tag mutations to contacts. Both operations are idempotent
// on the CRM side: adding a present tag or removing an absent one succeeds.
type Writer interface {
	AddTag(ctx context.Context, accountID, contactID, tag string) error
	RemoveTag(ctx context.Context, accountID, contactID, tag string) error
}

// Action adds or removes one tag on the execution's contact.
type Action struct {
	writer Writer
	tag    string
	remove bool
}

func newAction(writer Writer, config map[string]any, remove bool) (*Action, error) {
	tag, _ := config["tag"].(string)
	if strings.TrimSpace(tag) == "" {
		return nil, fmt.Errorf("validation: tag action requires a non-empty tag")
	}

	return &Action{writer: writer, tag: tag, remove: remove}, nil
}

func (a *Action) Execute(ctx context.Context, actionCtx models.ActionContext, logger *slog.Logger) (models.ExecutionResult, error) {
	tag := template.Interpolate(a.tag, actionCtx.Facts)

	execution := actionCtx.Execution

	var err error
	if a.remove {
		err = a.writer.RemoveTag(ctx, execution.AccountID, execution.ContactID, tag)
	} else {
		err = a.writer.AddTag(ctx, execution.AccountID, execution.ContactID, tag)
	}

	if err != nil {
		category := retry.Categorize(err)
		logger.WarnContext(ctx, "Tag mutation failed",
			"tag", tag,
			"remove", a.remove,
			"category", string(category),
			"error", err)

		return models.FailureResult(err.Error(), retry.NewPolicy().ShouldRetry(1, category)), nil
	}

	operation := "added"
	if a.remove {
		operation = "removed"
	}

	logger.InfoContext(ctx, "Tag mutation applied",
		"tag", tag,
		"operation", operation)

	return models.SuccessResult(map[string]any{
		"tag":       tag,
		"operation": operation,
	}), nil
}

type actionFactory struct {
	writer Writer
	remove bool
}

// NewAddFactory builds the add_tag factory.
func NewAddFactory(writer Writer) protocol.ActionFactory {
	return &actionFactory{writer: writer}
}

// NewRemoveFactory builds the remove_tag factory.
func NewRemoveFactory(writer Writer) protocol.ActionFactory {
	return &actionFactory{writer: writer, remove: true}
}

func (f *actionFactory) ID() string {
	if f.remove {
		return RemoveActionType
	}

	return AddActionType
}

func (f *actionFactory) Create(config map[string]any) (protocol.Action, error) {
	return newAction(f.writer, config, f.remove)
}

func (f *actionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tag": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Tag name; merge fields are interpolated",
			},
		},
		"required": []string{"tag"},
	}
}
