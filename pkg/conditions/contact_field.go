package conditions

import (
	"errors"
	"strings"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/protocol"
)

// Condition type ids.
const (
	TypeContactField = "contact_field_equals"
	TypeCustomField  = "custom_field_value"
)

// FieldCondition compares a contact field against an expected value with one
// of the comparison operators. custom_field_value is the same evaluator
// scoped to the "custom." field namespace.
type FieldCondition struct {
	Field    string
	Operator string
	Expected any
}

func NewFieldCondition(config map[string]any) (*FieldCondition, error) {
	field, _ := config["field"].(string)
	if field == "" {
		return nil, errors.New("field condition requires 'field'")
	}

	operator, _ := config["operator"].(string)
	if operator == "" {
		operator = OpEquals
	}

	return &FieldCondition{
		Field:    field,
		Operator: operator,
		Expected: config["value"],
	}, nil
}

func (c *FieldCondition) Evaluate(facts *models.ContactFacts) models.ConditionResult {
	actual, present := facts.Field(c.Field)

	match := applyOperator(c.Operator, actual, present, c.Expected)

	return models.ConditionResult{
		Match: match,
		Details: map[string]any{
			"field":    c.Field,
			"operator": c.Operator,
			"expected": c.Expected,
			"actual":   actual,
		},
	}
}

type fieldConditionFactory struct {
	id          string
	fieldPrefix string
}

// NewContactFieldFactory builds the contact_field_equals factory.
func NewContactFieldFactory() protocol.ConditionFactory {
	return &fieldConditionFactory{id: TypeContactField}
}

// NewCustomFieldFactory builds the custom_field_value factory. Field names
// are namespaced under "custom." before lookup.
func NewCustomFieldFactory() protocol.ConditionFactory {
	return &fieldConditionFactory{id: TypeCustomField, fieldPrefix: "custom."}
}

func (f *fieldConditionFactory) ID() string { return f.id }

func (f *fieldConditionFactory) Create(config map[string]any) (protocol.Condition, error) {
	cond, err := NewFieldCondition(config)
	if err != nil {
		return nil, err
	}

	if f.fieldPrefix != "" && !strings.HasPrefix(cond.Field, f.fieldPrefix) {
		cond.Field = f.fieldPrefix + cond.Field
	}

	return cond, nil
}

func (f *fieldConditionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field": map[string]any{
				"type":        "string",
				"description": "Contact field name to compare",
			},
			"operator": map[string]any{
				"type": "string",
				"enum": []string{
					OpEquals, OpNotEquals, OpContains, OpNotContains,
					OpStartsWith, OpEndsWith, OpIsEmpty, OpIsNotEmpty,
					OpGreaterThan, OpLessThan, OpInList, OpNotInList,
				},
			},
			"value": map[string]any{
				"description": "Expected value; list operators accept an array or comma-separated string",
			},
		},
		"required": []string{"field"},
	}
}
