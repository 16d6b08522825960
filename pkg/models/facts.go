package models

import "strings"

// ContactFacts is the flattened fact map a facts provider exposes to
// condition evaluation: contact fields (custom fields under "custom."),
// tags, pipeline stages and email engagement. It carries no behavior beyond
// read-only lookups, so condition evaluation stays side-effect free.
type ContactFacts struct {
	ContactID string            `json:"contact_id"`
	AccountID string            `json:"account_id"`
	OptedOut  bool              `json:"opted_out"`
	Fields    map[string]any    `json:"fields"`
	Tags      []string          `json:"tags"`
	Stages    map[string]string `json:"stages"` // pipeline id -> stage id
	Opened    []string          `json:"opened_emails"`
	Clicked   []string          `json:"clicked_links"`
}

// Field looks up a contact field by name. Custom fields use the "custom."
// prefix. The boolean is false when the field is absent.
func (f *ContactFacts) Field(name string) (any, bool) {
	if f == nil || f.Fields == nil {
		return nil, false
	}

	v, ok := f.Fields[name]

	return v, ok
}

// HasTag reports whether the contact carries the tag, case-insensitively.
func (f *ContactFacts) HasTag(tag string) bool {
	if f == nil {
		return false
	}

	for _, t := range f.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}

	return false
}

// StageOf returns the contact's current stage in the given pipeline.
func (f *ContactFacts) StageOf(pipelineID string) (string, bool) {
	if f == nil || f.Stages == nil {
		return "", false
	}

	s, ok := f.Stages[pipelineID]

	return s, ok
}

// OpenedEmail reports whether the contact opened the given email.
func (f *ContactFacts) OpenedEmail(emailID string) bool {
	return contains(f.Opened, emailID)
}

// ClickedLink reports whether the contact clicked the given link.
func (f *ContactFacts) ClickedLink(linkID string) bool {
	return contains(f.Clicked, linkID)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}

	return false
}
