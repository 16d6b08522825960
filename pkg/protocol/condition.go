package protocol

import "github.com/hivecrm/journey/pkg/models"

// Condition evaluates one configured condition against contact facts.
// Evaluate never fails and never mutates the facts; missing data yields a
// no-match result, so evaluation stays deterministic for repeated calls.
type Condition interface {
	Evaluate(facts *models.ContactFacts) models.ConditionResult
}

// ConditionFactory creates condition instances from step configuration.
type ConditionFactory interface {
	Create(config map[string]any) (Condition, error)
	ID() string
	Schema() map[string]any
}
