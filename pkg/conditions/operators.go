// Package conditions implements the condition evaluators that drive branch
// selection: contact field comparisons, tag checks, pipeline stage checks,
// email engagement and time windows. Evaluation is side-effect free and
// never returns an error; missing data is a no-match.
package conditions

import (
	"fmt"
	"strconv"
	"strings"
)

// Field comparison operators.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
	OpIsEmpty     = "is_empty"
	OpIsNotEmpty  = "is_not_empty"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpInList      = "in_list"
	OpNotInList   = "not_in_list"
)

// applyOperator compares an actual field value against an expected config
// value. present is false when the field is absent from the facts. Numeric
// operators coerce both sides; a failed coercion is a no-match, never an
// error.
func applyOperator(operator string, actual any, present bool, expected any) bool {
	switch operator {
	case OpIsEmpty:
		return !present || asString(actual) == ""
	case OpIsNotEmpty:
		return present && asString(actual) != ""
	}

	if !present {
		return false
	}

	switch operator {
	case OpEquals:
		return looseEquals(actual, expected)
	case OpNotEquals:
		return !looseEquals(actual, expected)
	case OpContains:
		return strings.Contains(asString(actual), asString(expected))
	case OpNotContains:
		return !strings.Contains(asString(actual), asString(expected))
	case OpStartsWith:
		return strings.HasPrefix(asString(actual), asString(expected))
	case OpEndsWith:
		return strings.HasSuffix(asString(actual), asString(expected))
	case OpGreaterThan:
		a, aok := asNumber(actual)
		b, bok := asNumber(expected)

		return aok && bok && a > b
	case OpLessThan:
		a, aok := asNumber(actual)
		b, bok := asNumber(expected)

		return aok && bok && a < b
	case OpInList:
		return inList(actual, expected)
	case OpNotInList:
		return !inList(actual, expected)
	default:
		return false
	}
}

// looseEquals compares numbers numerically when both sides coerce, and as
// strings otherwise.
func looseEquals(a, b any) bool {
	an, aok := asNumber(a)
	bn, bok := asNumber(b)

	if aok && bok {
		return an == bn
	}

	return asString(a) == asString(b)
}

func inList(actual any, expected any) bool {
	for _, item := range listValues(expected) {
		if looseEquals(actual, item) {
			return true
		}
	}

	return false
}

// listValues accepts either a JSON array or a comma-separated string.
func listValues(expected any) []any {
	switch typed := expected.(type) {
	case []any:
		return typed
	case []string:
		out := make([]any, len(typed))
		for i, s := range typed {
			out[i] = s
		}

		return out
	case string:
		parts := strings.Split(typed, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}

		return out
	default:
		return nil
	}
}

func asString(v any) string {
	if v == nil {
		return ""
	}

	switch typed := v.(type) {
	case string:
		return typed
	case float64:
		if typed == float64(int64(typed)) {
			return strconv.FormatInt(int64(typed), 10)
		}

		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

func asNumber(v any) (float64, bool) {
	switch typed := v.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}

		return n, true
	default:
		return 0, false
	}
}
