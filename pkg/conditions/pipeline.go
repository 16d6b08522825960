package conditions

import (
	"errors"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/protocol"
)

const TypePipelineStage = "pipeline_stage_is"

// PipelineStageCondition checks the contact's current stage in one pipeline.
type PipelineStageCondition struct {
	PipelineID string
	StageID    string
}

func NewPipelineStageCondition(config map[string]any) (*PipelineStageCondition, error) {
	pipelineID, _ := config["pipeline_id"].(string)
	stageID, _ := config["stage_id"].(string)

	if pipelineID == "" || stageID == "" {
		return nil, errors.New("pipeline condition requires 'pipeline_id' and 'stage_id'")
	}

	return &PipelineStageCondition{PipelineID: pipelineID, StageID: stageID}, nil
}

func (c *PipelineStageCondition) Evaluate(facts *models.ContactFacts) models.ConditionResult {
	actual, present := facts.StageOf(c.PipelineID)

	var actualValue any
	if present {
		actualValue = actual
	}

	return models.ConditionResult{
		Match: present && actual == c.StageID,
		Details: map[string]any{
			"pipeline_id": c.PipelineID,
			"expected":    c.StageID,
			"actual":      actualValue,
		},
	}
}

type pipelineConditionFactory struct{}

func NewPipelineStageFactory() protocol.ConditionFactory { return &pipelineConditionFactory{} }

func (f *pipelineConditionFactory) ID() string { return TypePipelineStage }

func (f *pipelineConditionFactory) Create(config map[string]any) (protocol.Condition, error) {
	return NewPipelineStageCondition(config)
}

func (f *pipelineConditionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pipeline_id": map[string]any{"type": "string"},
			"stage_id":    map[string]any{"type": "string"},
		},
		"required": []string{"pipeline_id", "stage_id"},
	}
}
