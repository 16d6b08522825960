package conditions

import (
	"errors"
	"sort"
	"strings"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/protocol"
)

const TypeContactHasTag = "contact_has_tag"

// Tag set operators.
const (
	TagHasAny  = "has_any"
	TagHasAll  = "has_all"
	TagHasNo   = "has_no"
	TagHasOnly = "has_only"
)

// TagCondition checks the contact's tag set against a configured list.
type TagCondition struct {
	Operator string
	Tags     []string
}

func NewTagCondition(config map[string]any) (*TagCondition, error) {
	operator, _ := config["operator"].(string)
	if operator == "" {
		operator = TagHasAny
	}

	tags := stringList(config["tags"])
	if len(tags) == 0 {
		return nil, errors.New("tag condition requires 'tags'")
	}

	return &TagCondition{Operator: operator, Tags: tags}, nil
}

func (c *TagCondition) Evaluate(facts *models.ContactFacts) models.ConditionResult {
	var match bool

	switch c.Operator {
	case TagHasAny:
		for _, t := range c.Tags {
			if facts.HasTag(t) {
				match = true

				break
			}
		}
	case TagHasAll:
		match = true

		for _, t := range c.Tags {
			if !facts.HasTag(t) {
				match = false

				break
			}
		}
	case TagHasNo:
		match = true

		for _, t := range c.Tags {
			if facts.HasTag(t) {
				match = false

				break
			}
		}
	case TagHasOnly:
		match = sameTagSet(facts.Tags, c.Tags)
	}

	var actual []string
	if facts != nil {
		actual = facts.Tags
	}

	return models.ConditionResult{
		Match: match,
		Details: map[string]any{
			"operator": c.Operator,
			"expected": c.Tags,
			"actual":   actual,
		},
	}
}

func sameTagSet(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	a := normalizeTags(actual)
	b := normalizeTags(expected)

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func normalizeTags(tags []string) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = strings.ToLower(t)
	}

	sort.Strings(out)

	return out
}

func stringList(v any) []string {
	switch typed := v.(type) {
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}

		return out
	case string:
		if typed == "" {
			return nil
		}

		parts := strings.Split(typed, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}

		return out
	default:
		return nil
	}
}

type tagConditionFactory struct{}

func NewTagFactory() protocol.ConditionFactory { return &tagConditionFactory{} }

func (f *tagConditionFactory) ID() string { return TypeContactHasTag }

func (f *tagConditionFactory) Create(config map[string]any) (protocol.Condition, error) {
	return NewTagCondition(config)
}

func (f *tagConditionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operator": map[string]any{
				"type": "string",
				"enum": []string{TagHasAny, TagHasAll, TagHasNo, TagHasOnly},
			},
			"tags": map[string]any{
				"description": "Tag list; accepts an array or comma-separated string",
			},
		},
		"required": []string{"tags"},
	}
}
