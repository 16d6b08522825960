package conditions

import (
	"errors"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/protocol"
)

const (
	TypeEmailOpened = "email_was_opened"
	TypeLinkClicked = "link_was_clicked"
)

// EngagementCondition checks email-engagement facts: whether a given email
// was opened or a given link clicked.
type EngagementCondition struct {
	kind string
	id   string
}

func (c *EngagementCondition) Evaluate(facts *models.ContactFacts) models.ConditionResult {
	var match bool

	switch c.kind {
	case TypeEmailOpened:
		match = facts != nil && facts.OpenedEmail(c.id)
	case TypeLinkClicked:
		match = facts != nil && facts.ClickedLink(c.id)
	}

	return models.ConditionResult{
		Match: match,
		Details: map[string]any{
			"type": c.kind,
			"id":   c.id,
		},
	}
}

type engagementFactory struct {
	kind      string
	configKey string
}

// NewEmailOpenedFactory builds the email_was_opened factory.
func NewEmailOpenedFactory() protocol.ConditionFactory {
	return &engagementFactory{kind: TypeEmailOpened, configKey: "email_id"}
}

// NewLinkClickedFactory builds the link_was_clicked factory.
func NewLinkClickedFactory() protocol.ConditionFactory {
	return &engagementFactory{kind: TypeLinkClicked, configKey: "link_id"}
}

func (f *engagementFactory) ID() string { return f.kind }

func (f *engagementFactory) Create(config map[string]any) (protocol.Condition, error) {
	id, _ := config[f.configKey].(string)
	if id == "" {
		return nil, errors.New(f.kind + " requires '" + f.configKey + "'")
	}

	return &EngagementCondition{kind: f.kind, id: id}, nil
}

func (f *engagementFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			f.configKey: map[string]any{"type": "string"},
		},
		"required": []string{f.configKey},
	}
}
