package template

import (
	"testing"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolate(t *testing.T) {
	data := map[string]any{
		"contact": map[string]any{
			"name":  "Ann",
			"email": "ann@example.com",
			"score": 42.0,
		},
		"execution": map[string]any{"id": "exec-1"},
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple field", "{{contact.name}}", "Ann"},
		{"embedded", "Hello {{contact.name}}, your id is {{execution.id}}", "Hello Ann, your id is exec-1"},
		{"whitespace tolerated", "{{ contact.email }}", "ann@example.com"},
		{"round float renders as integer", "{{contact.score}}", "42"},
		{"unresolved left untouched", "{{contact.missing}}", "{{contact.missing}}"},
		{"unresolved root left untouched", "{{nothing.here}}", "{{nothing.here}}"},
		{"no placeholders", "plain text", "plain text"},
		{"empty string", "", ""},
		{"mixed resolved and unresolved", "{{contact.name}} / {{contact.missing}}", "Ann / {{contact.missing}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpolate(tt.input, data))
		})
	}
}

func TestInterpolateEmptyContext(t *testing.T) {
	assert.Equal(t, "{{contact.missing}}", Interpolate("{{contact.missing}}", map[string]any{
		"contact": map[string]any{},
	}))
}

func TestInterpolateMap(t *testing.T) {
	data := map[string]any{"contact": map[string]any{"name": "Ann"}}

	input := map[string]any{
		"greeting": "Hi {{contact.name}}",
		"count":    3,
		"nested": map[string]any{
			"inner": "{{contact.name}}",
		},
		"list": []any{"{{contact.name}}", 1},
	}

	out := InterpolateMap(input, data)

	assert.Equal(t, "Hi Ann", out["greeting"])
	assert.Equal(t, 3, out["count"])
	assert.Equal(t, "Ann", out["nested"].(map[string]any)["inner"])
	assert.Equal(t, "Ann", out["list"].([]any)[0])
}

func TestLookupFlattenedKeyWins(t *testing.T) {
	data := map[string]any{
		"custom.plan": "pro",
		"custom":      map[string]any{"plan": "basic"},
	}

	v, ok := Lookup(data, "custom.plan")
	require.True(t, ok)
	assert.Equal(t, "pro", v)
}

func TestBuildContext(t *testing.T) {
	workflow := &models.Workflow{ID: "wf-1", Name: "Onboarding", Version: 2}
	execution := &models.Execution{ID: "exec-1", WorkflowID: "wf-1", ContactID: "c-1", AccountID: "acc-1"}
	facts := &models.ContactFacts{
		ContactID: "c-1",
		Fields:    map[string]any{"name": "Ann"},
		Tags:      []string{"vip", "beta"},
	}

	data := BuildContext(workflow, execution, facts)

	assert.Equal(t, "Ann", Interpolate("{{contact.name}}", data))
	assert.Equal(t, "vip,beta", Interpolate("{{contact.tags}}", data))
	assert.Equal(t, "Onboarding", Interpolate("{{workflow.name}}", data))
	assert.Equal(t, "exec-1", Interpolate("{{execution.id}}", data))
}
