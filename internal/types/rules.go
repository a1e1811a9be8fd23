// internal/types/rules.go
package types

/*
 * Domain types for rule evaluation.
 *
 * Provides LocationRule and ConditionalRule structures consumed by
 * internal/location and internal/conditions. These types are storage-format
 * agnostic: row-to-rule conversion happens at the storage boundary.
 *
 * Key types:
 *   - LocationRule: one atomic group-attachment condition
 *   - ConditionalRule: per-field visibility rule (AND/OR of atoms)
 *   - ConditionAtom: single comparison against a sibling field value
 *
 * Dependencies: none (standard library only)
 */

// LocationRule is one atomic attachment condition on a field group.
// Rules sharing a RuleGroup are AND-ed; distinct RuleGroups are OR-ed.
// An empty rule set matches every context (unrestricted group).
type LocationRule struct {
	GroupName string // owning field group
	Attribute string // context attribute compared (content_type, taxonomy_term, ...)
	Operator  string // ==, !=, contains, not_contains, in, not_in
	Value     string // stored comparison value; in/not_in treat as comma-separated set
	RuleGroup int    // AND partition key
	Order     int    // evaluation order within the partition
}

// ConditionalLogic selects how a rule's atoms combine.
type ConditionalLogic string

const (
	LogicAnd ConditionalLogic = "and"
	LogicOr  ConditionalLogic = "or"
)

// ConditionAtom is a single comparison against a sibling field value,
// looked up by field name at evaluation time.
type ConditionAtom struct {
	FieldName string `json:"field"`
	Operator  string `json:"operator"`
	Value     any    `json:"value,omitempty"`
}

// ConditionalRule decides per-field visibility from sibling field values.
// A rule with zero atoms is always true (field always visible).
type ConditionalRule struct {
	Logic ConditionalLogic `json:"logic"`
	Atoms []ConditionAtom  `json:"atoms"`
}
