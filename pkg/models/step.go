package models

import (
	"errors"
	"fmt"
	"math"
)

// StepKind distinguishes action steps from condition steps.
type StepKind string

const (
	StepKindAction    StepKind = "action"
	StepKindCondition StepKind = "condition"
)

// BranchType represents the branching strategy of a condition step.
type BranchType string

const (
	BranchTypeIfElse      BranchType = "if_else"
	BranchTypeMultiBranch BranchType = "multi_branch"
	BranchTypeSplitTest   BranchType = "split_test"
)

const maxMultiBranches = 10

// StepEnd is the sentinel next-step id that ends the run instead of falling
// through to the next sequential step. Branch arms use it to terminate
// without executing their sibling arms.
const StepEnd = "end"

// Branch is a named outcome path from a condition step. NextStepID points at
// the step the execution jumps to when the branch is selected; an empty
// NextStepID falls through to the next sequential step and StepEnd ends the
// run.
type Branch struct {
	Name       string         `json:"name"       validate:"required"`
	Order      int            `json:"order"`
	IsDefault  bool           `json:"is_default"`
	Percentage float64        `json:"percentage,omitempty"` // split_test only
	Criteria   map[string]any `json:"criteria,omitempty"`   // multi_branch only
	NextStepID string         `json:"next_step_id,omitempty"`
}

// Step is one node of a workflow: either an action (Type names the action,
// Config its parameters) or a condition (Type names the condition variant,
// BranchType and Branches describe the routing). NextStepID overrides the
// sequential order after the step runs: empty falls through to the next
// position, a step id jumps there, StepEnd terminates the run.
type Step struct {
	ID         string         `json:"id"       validate:"required"`
	Kind       StepKind       `json:"kind"     validate:"required"`
	Type       string         `json:"type"     validate:"required"`
	Name       string         `json:"name"`
	Config     map[string]any `json:"config"`
	Position   int            `json:"position"`
	Enabled    bool           `json:"enabled"`
	NextStepID string         `json:"next_step_id,omitempty"`
	BranchType BranchType     `json:"branch_type,omitempty"`
	Branches   []Branch       `json:"branches,omitempty"`
}

// IsCondition reports whether the step routes through branches.
func (s *Step) IsCondition() bool {
	return s.Kind == StepKindCondition
}

// DefaultBranch returns the branch flagged is_default, if any.
func (s *Step) DefaultBranch() (Branch, bool) {
	for _, b := range s.Branches {
		if b.IsDefault {
			return b, true
		}
	}

	return Branch{}, false
}

// BranchByName returns the branch with the given name, if any.
func (s *Step) BranchByName(name string) (Branch, bool) {
	for _, b := range s.Branches {
		if b.Name == name {
			return b, true
		}
	}

	return Branch{}, false
}

// ValidateBranches enforces the structural invariants of condition steps:
// if_else has exactly two branches with exactly one default, split_test
// percentages sum to 100, multi_branch carries at most ten branches plus
// one default.
func (s *Step) ValidateBranches() error {
	if !s.IsCondition() {
		return nil
	}

	defaults := 0
	for _, b := range s.Branches {
		if b.IsDefault {
			defaults++
		}
	}

	switch s.BranchType {
	case BranchTypeIfElse:
		if len(s.Branches) != 2 {
			return fmt.Errorf("if_else step %s must have exactly 2 branches, has %d", s.ID, len(s.Branches))
		}

		if defaults != 1 {
			return fmt.Errorf("if_else step %s must have exactly one default branch, has %d", s.ID, defaults)
		}
	case BranchTypeSplitTest:
		total := 0.0
		for _, b := range s.Branches {
			if b.Percentage < 0 {
				return fmt.Errorf("split_test step %s branch %q has negative percentage", s.ID, b.Name)
			}

			total += b.Percentage
		}

		if math.Abs(total-100.0) > 1e-9 {
			return fmt.Errorf("split_test step %s branch percentages must sum to 100, sum to %v", s.ID, total)
		}
	case BranchTypeMultiBranch:
		if len(s.Branches)-defaults > maxMultiBranches {
			return fmt.Errorf("multi_branch step %s exceeds %d branches", s.ID, maxMultiBranches)
		}

		if defaults > 1 {
			return fmt.Errorf("multi_branch step %s must have at most one default branch, has %d", s.ID, defaults)
		}
	case "":
		return errors.New("condition step missing branch_type")
	default:
		return fmt.Errorf("unknown branch_type %q on step %s", s.BranchType, s.ID)
	}

	return nil
}
