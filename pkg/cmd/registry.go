package cmd

import (
	"log/slog"

	"github.com/hivecrm/journey/pkg/actions"
	"github.com/hivecrm/journey/pkg/actions/tag"
	"github.com/hivecrm/journey/pkg/actions/webhook"
	"github.com/hivecrm/journey/pkg/breaker"
	"github.com/hivecrm/journey/pkg/conditions"
	"github.com/hivecrm/journey/pkg/registry"
)

// NewRegistry builds the action and condition registry with every built-in
// executor registered. The webhook client shares one circuit breaker for
// the whole process.
func NewRegistry(logger *slog.Logger, tagWriter tag.Writer) *registry.Registry {
	reg := registry.NewRegistry(logger)

	webhookClient := webhook.NewClient(logger, breaker.New())
	actions.RegisterDefaults(reg, webhookClient, tagWriter)
	conditions.RegisterDefaults(reg)

	return reg
}
