package models

// ConditionResult is the plain-data outcome of evaluating one condition
// config against a fact context. Evaluation never fails: missing data is a
// no-match, with the observed (possibly nil) actual value recorded in
// Details so repeated evaluation and logging stay deterministic.
type ConditionResult struct {
	Match      bool           `json:"match"`
	BranchName string         `json:"branch_name,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// NoMatch builds a non-matching result recording the actual value seen.
func NoMatch(details map[string]any) ConditionResult {
	return ConditionResult{Match: false, Details: details}
}
