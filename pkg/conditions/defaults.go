package conditions

import "github.com/hivecrm/journey/pkg/registry"

// RegisterDefaults registers every built-in condition evaluator.
func RegisterDefaults(reg *registry.Registry) {
	reg.RegisterCondition(NewContactFieldFactory())
	reg.RegisterCondition(NewCustomFieldFactory())
	reg.RegisterCondition(NewTagFactory())
	reg.RegisterCondition(NewPipelineStageFactory())
	reg.RegisterCondition(NewEmailOpenedFactory())
	reg.RegisterCondition(NewLinkClickedFactory())
	reg.RegisterCondition(NewTimeBasedFactory())
}
