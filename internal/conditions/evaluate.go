// Package conditions implements per-field visibility evaluation.
package conditions

import (
	"strconv"
	"strings"

	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

/*
 * Conditional logic evaluation.
 *
 * Evaluates a field's ConditionalRule against sibling field values with
 * AND/OR semantics and short-circuiting. The evaluator is pure: same rule
 * and same lookup results always produce the same answer, so callers may
 * cache freely.
 *
 * Operator families:
 *   - Equality (==, !=): compare raw string forms
 *   - Numeric (>, <, >=, <=): parse both operands as float64; a
 *     non-numeric operand is treated as 0 (documented lossy behavior,
 *     preserved rather than fixed)
 *   - String (contains, not_contains, starts_with, ends_with): operate on
 *     the raw string form of the looked-up value
 *   - Presence (empty, not_empty): unset fields resolve to empty string
 *   - Membership (in, not_in): right-hand value is a pre-split list or a
 *     comma-separated string
 *
 * Degradation: a nil rule, a rule with zero atoms, or a rule with an
 * unrecognized logic keyword is always true (field visible). An atom with
 * an unknown operator is false. Callers log these; evaluation never fails.
 *
 * Why function-based: operator dispatch via switch over 14 small cases is
 * cleaner than 14 interface implementations with minimal behavior
 * variation (same call as the location matcher).
 */

// ValueLookup resolves a sibling field's current value by name.
// The second return reports whether the field has any value at all.
type ValueLookup func(fieldName string) (any, bool)

// Evaluate decides whether a field governed by rule is currently visible.
// Missing fields resolve to the empty string.
func Evaluate(rule *types.ConditionalRule, lookup ValueLookup) bool {
	if rule == nil || len(rule.Atoms) == 0 {
		return true
	}

	switch rule.Logic {
	case types.LogicAnd:
		for _, atom := range rule.Atoms {
			if !evaluateAtom(atom, lookup) {
				return false
			}
		}
		return true
	case types.LogicOr:
		for _, atom := range rule.Atoms {
			if evaluateAtom(atom, lookup) {
				return true
			}
		}
		return false
	default:
		// Malformed logic keyword: field stays visible.
		return true
	}
}

// Malformed reports whether a rule would trigger the always-visible
// degradation path, so callers can log it once at resolution time.
func Malformed(rule *types.ConditionalRule) bool {
	if rule == nil {
		return false
	}
	if len(rule.Atoms) == 0 {
		return true
	}
	return rule.Logic != types.LogicAnd && rule.Logic != types.LogicOr
}

// evaluateAtom applies one comparison against the looked-up sibling value.
// Unknown operators evaluate false.
func evaluateAtom(atom types.ConditionAtom, lookup ValueLookup) bool {
	value, ok := lookup(atom.FieldName)
	if !ok {
		value = ""
	}

	switch atom.Operator {
	case "==":
		return stringForm(value) == stringForm(atom.Value)
	case "!=":
		return stringForm(value) != stringForm(atom.Value)
	case ">":
		return numericForm(value) > numericForm(atom.Value)
	case "<":
		return numericForm(value) < numericForm(atom.Value)
	case ">=":
		return numericForm(value) >= numericForm(atom.Value)
	case "<=":
		return numericForm(value) <= numericForm(atom.Value)
	case "contains":
		return strings.Contains(stringForm(value), stringForm(atom.Value))
	case "not_contains":
		return !strings.Contains(stringForm(value), stringForm(atom.Value))
	case "starts_with":
		return strings.HasPrefix(stringForm(value), stringForm(atom.Value))
	case "ends_with":
		return strings.HasSuffix(stringForm(value), stringForm(atom.Value))
	case "empty":
		return isEmpty(value)
	case "not_empty":
		return !isEmpty(value)
	case "in":
		return inSet(value, atom.Value)
	case "not_in":
		return !inSet(value, atom.Value)
	default:
		return false
	}
}

// inSet tests membership of value's string form in the rule's set.
// Accepts a pre-split list or a comma-separated string as the set.
func inSet(value, set any) bool {
	needle := stringForm(value)
	for _, member := range splitSet(set) {
		if needle == member {
			return true
		}
	}
	return false
}

// splitSet normalizes the membership right-hand side to a string slice.
// Comma-separated entries are trimmed; oversized sets are truncated at
// MaxInSetValues.
func splitSet(set any) []string {
	var members []string
	switch s := set.(type) {
	case []any:
		for _, v := range s {
			members = append(members, stringForm(v))
		}
	case []string:
		members = append(members, s...)
	case string:
		for _, part := range strings.Split(s, ",") {
			members = append(members, strings.TrimSpace(part))
		}
	default:
		members = []string{stringForm(set)}
	}
	if len(members) > types.MaxInSetValues {
		members = members[:types.MaxInSetValues]
	}
	return members
}

// stringForm renders any value as its raw string form.
func stringForm(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

// numericForm parses a value as float64; non-numeric operands are 0.
// Two non-numeric operands therefore compare as 0 vs 0, so >= holds
// and > does not. Stored documents rely on this coercion.
func numericForm(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// isEmpty reports whether a value counts as unset for empty/not_empty.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
