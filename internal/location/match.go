// Package location decides which field groups attach to a content context.
package location

import (
	"sort"
	"strconv"
	"strings"

	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

/*
 * Location rule matching.
 *
 * Given a content context C and a group's rule rows R, partition R by
 * rule_group: rules sharing a partition are AND-ed, partitions are OR-ed
 * (disjunctive normal form, same shape as the conditional evaluator).
 * An empty R matches unconditionally: a group with no rules is
 * unrestricted.
 *
 * The matcher is pure and stateless per call. Given the same (C, R) it
 * always returns the same boolean, which lets callers cache results
 * keyed on context.
 *
 * Comparison semantics:
 *   - Identifiers compare case-sensitively.
 *   - If both sides parse as numbers, comparison is numeric, so a rule
 *     value "5" matches a context attribute float64(5).
 *   - in/not_in treat the rule value as a comma-separated set.
 *   - An unknown operator makes its atomic rule non-matching (fails
 *     closed), which fails the whole AND partition.
 */

// Match reports whether the rule set attaches to the context.
func Match(ctx types.Context, rules []types.LocationRule) bool {
	if len(rules) == 0 {
		return true
	}

	for _, partition := range Partition(rules) {
		if matchPartition(ctx, partition) {
			return true
		}
	}
	return false
}

// Partition splits rule rows into their AND partitions, ordered by
// rule_group ascending and by rule order within each partition.
// Deterministic ordering keeps evaluation stable across row permutations.
func Partition(rules []types.LocationRule) [][]types.LocationRule {
	byGroup := make(map[int][]types.LocationRule)
	var keys []int
	for _, r := range rules {
		if _, seen := byGroup[r.RuleGroup]; !seen {
			keys = append(keys, r.RuleGroup)
		}
		byGroup[r.RuleGroup] = append(byGroup[r.RuleGroup], r)
	}
	sort.Ints(keys)

	out := make([][]types.LocationRule, 0, len(keys))
	for _, k := range keys {
		partition := byGroup[k]
		sort.SliceStable(partition, func(i, j int) bool {
			return partition[i].Order < partition[j].Order
		})
		out = append(out, partition)
	}
	return out
}

// matchPartition evaluates one AND partition; all rules must hold.
// Short-circuits on first non-match.
func matchPartition(ctx types.Context, partition []types.LocationRule) bool {
	for _, rule := range partition {
		if !matchRule(ctx, rule) {
			return false
		}
	}
	return true
}

// matchRule applies a single atomic rule against one context attribute.
// Membership-style attributes (taxonomy terms) may be lists: positive
// operators match when any member matches, negated operators require the
// positive form to hold for no member.
func matchRule(ctx types.Context, rule types.LocationRule) bool {
	attrs := attributeStrings(ctx.Attribute(rule.Attribute))

	switch rule.Operator {
	case "==":
		return anyAttr(attrs, func(a string) bool { return attributeEqual(a, rule.Value) })
	case "!=":
		return !anyAttr(attrs, func(a string) bool { return attributeEqual(a, rule.Value) })
	case "contains":
		return anyAttr(attrs, func(a string) bool { return strings.Contains(a, rule.Value) })
	case "not_contains":
		return !anyAttr(attrs, func(a string) bool { return strings.Contains(a, rule.Value) })
	case "in":
		return anyAttr(attrs, func(a string) bool { return inCommaSet(a, rule.Value) })
	case "not_in":
		return !anyAttr(attrs, func(a string) bool { return inCommaSet(a, rule.Value) })
	default:
		// Unknown operator fails closed.
		return false
	}
}

func anyAttr(attrs []string, match func(string) bool) bool {
	for _, a := range attrs {
		if match(a) {
			return true
		}
	}
	return false
}

// attributeEqual compares numerically when both sides are numeric,
// case-sensitively as strings otherwise.
func attributeEqual(attr, ruleValue string) bool {
	if an, aok := parseNumber(attr); aok {
		if rn, rok := parseNumber(ruleValue); rok {
			return an == rn
		}
	}
	return attr == ruleValue
}

// inCommaSet tests membership in a comma-separated rule value, applying
// attributeEqual semantics per member.
func inCommaSet(attr, ruleValue string) bool {
	for _, member := range strings.Split(ruleValue, ",") {
		if attributeEqual(attr, strings.TrimSpace(member)) {
			return true
		}
	}
	return false
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// attributeStrings renders one context attribute as its comparable
// forms. Scalars render to a single element; lists render per-member.
// An absent attribute renders to the empty string so != and not_* rules
// can still match contexts lacking the attribute.
func attributeStrings(v any) []string {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return []string{""}
		}
		out := make([]string, len(t))
		for i, m := range t {
			out[i] = attributeString(m)
		}
		return out
	case []string:
		if len(t) == 0 {
			return []string{""}
		}
		return t
	default:
		return []string{attributeString(v)}
	}
}

// attributeString renders one scalar attribute value.
func attributeString(v any) string {
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
