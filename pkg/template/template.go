// Package template resolves {{path.to.value}} merge fields against a fact
// context at execution time. An unresolved placeholder is left untouched in
// the output; interpolation never fails.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hivecrm/journey/pkg/models"
)

var mergeFieldPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_][a-zA-Z0-9_.]*)\s*\}\}`)

// Interpolate replaces every {{dotted.path}} placeholder in input with the
// value found at that path in data. Placeholders whose path is absent are
// left exactly as written.
func Interpolate(input string, data map[string]any) string {
	if input == "" || !strings.Contains(input, "{{") {
		return input
	}

	return mergeFieldPattern.ReplaceAllStringFunc(input, func(match string) string {
		path := mergeFieldPattern.FindStringSubmatch(match)[1]

		value, ok := Lookup(data, path)
		if !ok || value == nil {
			return match
		}

		return stringify(value)
	})
}

// InterpolateMap interpolates every string value of a map, recursing into
// nested maps and slices. Non-string values pass through unchanged.
func InterpolateMap(input map[string]any, data map[string]any) map[string]any {
	if input == nil {
		return nil
	}

	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = interpolateValue(v, data)
	}

	return out
}

func interpolateValue(v any, data map[string]any) any {
	switch typed := v.(type) {
	case string:
		return Interpolate(typed, data)
	case map[string]any:
		return InterpolateMap(typed, data)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = interpolateValue(item, data)
		}

		return out
	default:
		return v
	}
}

// Lookup resolves a dotted path against nested map[string]any data. The
// boolean is false when any segment is absent or a non-map is traversed.
// Flattened keys win over nesting: a literal "custom.plan" key is found
// before "custom" is descended into.
func Lookup(data map[string]any, path string) (any, bool) {
	if data == nil {
		return nil, false
	}

	if v, ok := data[path]; ok {
		return v, true
	}

	segments := strings.Split(path, ".")
	var current any = data

	for _, segment := range segments {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func stringify(v any) string {
	switch typed := v.(type) {
	case string:
		return typed
	case float64:
		// Trim the ".0" JSON numbers pick up on round floats.
		if typed == float64(int64(typed)) {
			return fmt.Sprintf("%d", int64(typed))
		}

		return fmt.Sprintf("%v", typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

// BuildContext assembles the interpolation fact map from contact, workflow
// and execution data. Contact fields surface under "contact.", tags under
// "contact.tags", workflow attributes under "workflow." and execution
// attributes under "execution.".
func BuildContext(workflow *models.Workflow, execution *models.Execution, facts *models.ContactFacts) map[string]any {
	contact := map[string]any{}

	if facts != nil {
		contact["id"] = facts.ContactID
		for k, v := range facts.Fields {
			contact[k] = v
		}

		contact["tags"] = strings.Join(facts.Tags, ",")
	}

	data := map[string]any{
		"contact": contact,
	}

	if workflow != nil {
		data["workflow"] = map[string]any{
			"id":      workflow.ID,
			"name":    workflow.Name,
			"version": workflow.Version,
		}
	}

	if execution != nil {
		data["execution"] = map[string]any{
			"id":          execution.ID,
			"workflow_id": execution.WorkflowID,
			"contact_id":  execution.ContactID,
			"account_id":  execution.AccountID,
		}
	}

	return data
}
