package conditions

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/registry"
)

// Selection is the outcome of routing one condition step: the chosen branch
// (when Selected), the evaluation result for logging, and fall-through to
// the next sequential step when no branch applies.
type Selection struct {
	Branch   models.Branch
	Result   models.ConditionResult
	Selected bool
}

// Selector routes condition steps to branches. Evaluation errors never occur
// at routing time; only structural configuration problems (unknown condition
// type, invalid branch layout) are returned as errors.
type Selector struct {
	registry *registry.Registry
}

func NewSelector(reg *registry.Registry) *Selector {
	return &Selector{registry: reg}
}

// Select picks the branch for a condition step. if_else evaluates the step
// config and routes to the non-default branch on match, the default branch
// otherwise. multi_branch evaluates each branch's criteria in order and
// routes to the first match, falling back to the default. split_test routes
// by a deterministic hash of the execution id, ignoring facts entirely.
func (s *Selector) Select(step models.Step, facts *models.ContactFacts, executionID string) (Selection, error) {
	if err := step.ValidateBranches(); err != nil {
		return Selection{}, fmt.Errorf("validation: %w", err)
	}

	switch step.BranchType {
	case models.BranchTypeSplitTest:
		branch := PickSplitBranch(executionID, step.Branches)

		return Selection{
			Branch:   branch,
			Selected: true,
			Result: models.ConditionResult{
				Match:      true,
				BranchName: branch.Name,
				Details:    map[string]any{"split_test": true, "execution_id": executionID},
			},
		}, nil
	case models.BranchTypeMultiBranch:
		return s.selectMultiBranch(step, facts)
	default: // if_else
		return s.selectIfElse(step, facts)
	}
}

func (s *Selector) selectIfElse(step models.Step, facts *models.ContactFacts) (Selection, error) {
	cond, err := s.registry.CreateCondition(step.Type, step.Config)
	if err != nil {
		return Selection{}, err
	}

	result := cond.Evaluate(facts)

	if result.Match {
		for _, b := range step.Branches {
			if !b.IsDefault {
				result.BranchName = b.Name

				return Selection{Branch: b, Result: result, Selected: true}, nil
			}
		}
	}

	return s.fallbackToDefault(step, result), nil
}

func (s *Selector) selectMultiBranch(step models.Step, facts *models.ContactFacts) (Selection, error) {
	ordered := make([]models.Branch, len(step.Branches))
	copy(ordered, step.Branches)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	var last models.ConditionResult

	for _, branch := range ordered {
		if branch.IsDefault || branch.Criteria == nil {
			continue
		}

		conditionType, _ := branch.Criteria["type"].(string)
		if conditionType == "" {
			conditionType = step.Type
		}

		config, _ := branch.Criteria["config"].(map[string]any)
		if config == nil {
			config = branch.Criteria
		}

		cond, err := s.registry.CreateCondition(conditionType, config)
		if err != nil {
			return Selection{}, err
		}

		result := cond.Evaluate(facts)
		last = result

		if result.Match {
			result.BranchName = branch.Name

			return Selection{Branch: branch, Result: result, Selected: true}, nil
		}
	}

	return s.fallbackToDefault(step, last), nil
}

// fallbackToDefault selects the default branch when evaluation did not pick
// one; without a default the execution falls through to the next sequential
// step.
func (s *Selector) fallbackToDefault(step models.Step, result models.ConditionResult) Selection {
	if branch, ok := step.DefaultBranch(); ok {
		result.BranchName = branch.Name

		return Selection{Branch: branch, Result: result, Selected: true}
	}

	return Selection{Result: result, Selected: false}
}

// PickSplitBranch routes an execution to a split-test branch by hashing the
// execution id against cumulative percentage ranges. The hash is FNV-1a, so
// the same execution always routes to the same branch; no randomness is
// involved.
func PickSplitBranch(executionID string, branches []models.Branch) models.Branch {
	ordered := make([]models.Branch, len(branches))
	copy(ordered, branches)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(executionID))

	// Two decimal places of percentage resolution.
	point := float64(hasher.Sum32()%10000) / 100.0

	cumulative := 0.0
	for _, b := range ordered {
		cumulative += b.Percentage
		if point < cumulative {
			return b
		}
	}

	return ordered[len(ordered)-1]
}
