// Package registry holds the static tables of action and condition factories
// built at startup. Dispatch by step type goes through these tables; an
// unregistered type is a configuration error, never a panic.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/hivecrm/journey/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger             *slog.Logger
	actionFactories    map[string]protocol.ActionFactory
	conditionFactories map[string]protocol.ConditionFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:             log,
		actionFactories:    make(map[string]protocol.ActionFactory),
		conditionFactories: make(map[string]protocol.ConditionFactory),
	}
}

func (r *Registry) RegisterAction(factory protocol.ActionFactory) {
	r.actionFactories[factory.ID()] = factory
}

func (r *Registry) RegisterCondition(factory protocol.ConditionFactory) {
	r.conditionFactories[factory.ID()] = factory
}

// CreateAction validates config against the factory's schema and builds the
// action. Unknown types and schema violations are validation errors.
func (r *Registry) CreateAction(actionType string, config map[string]any) (protocol.Action, error) {
	factory, ok := r.actionFactories[actionType]
	if !ok {
		return nil, fmt.Errorf("validation: action type %q not registered", actionType)
	}

	if err := validateConfig(factory.Schema(), config); err != nil {
		return nil, fmt.Errorf("validation: action %q config: %w", actionType, err)
	}

	return factory.Create(config)
}

// CreateCondition validates config against the factory's schema and builds
// the condition evaluator.
func (r *Registry) CreateCondition(conditionType string, config map[string]any) (protocol.Condition, error) {
	factory, ok := r.conditionFactories[conditionType]
	if !ok {
		return nil, fmt.Errorf("validation: condition type %q not registered", conditionType)
	}

	if err := validateConfig(factory.Schema(), config); err != nil {
		return nil, fmt.Errorf("validation: condition %q config: %w", conditionType, err)
	}

	return factory.Create(config)
}

// ActionTypes returns the registered action type ids.
func (r *Registry) ActionTypes() []string {
	types := make([]string, 0, len(r.actionFactories))
	for id := range r.actionFactories {
		types = append(types, id)
	}

	return types
}

// ConditionTypes returns the registered condition type ids.
func (r *Registry) ConditionTypes() []string {
	types := make([]string, 0, len(r.conditionFactories))
	for id := range r.conditionFactories {
		types = append(types, id)
	}

	return types
}

func validateConfig(schema map[string]any, config map[string]any) error {
	if schema == nil {
		return nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("invalid configuration: %s", errs[0].String())
		}

		return fmt.Errorf("invalid configuration")
	}

	return nil
}
