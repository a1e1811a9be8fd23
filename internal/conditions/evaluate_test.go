// internal/conditions/evaluate_test.go
package conditions

import (
	"testing"

	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

func lookupFrom(values map[string]any) ValueLookup {
	return func(name string) (any, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestEvaluate_Operators(t *testing.T) {
	values := map[string]any{
		"status":   "active",
		"priority": float64(7),
		"tags":     "alpha, beta",
		"title":    "Hello World",
		"blank":    "",
	}

	tests := []struct {
		name string
		atom types.ConditionAtom
		want bool
	}{
		{"eq match", types.ConditionAtom{FieldName: "status", Operator: "==", Value: "active"}, true},
		{"eq mismatch", types.ConditionAtom{FieldName: "status", Operator: "==", Value: "draft"}, false},
		{"neq", types.ConditionAtom{FieldName: "status", Operator: "!=", Value: "active"}, false},
		{"gt true", types.ConditionAtom{FieldName: "priority", Operator: ">", Value: float64(5)}, true},
		{"gt false", types.ConditionAtom{FieldName: "priority", Operator: ">", Value: float64(9)}, false},
		{"lt", types.ConditionAtom{FieldName: "priority", Operator: "<", Value: float64(9)}, true},
		{"gte boundary", types.ConditionAtom{FieldName: "priority", Operator: ">=", Value: float64(7)}, true},
		{"lte boundary", types.ConditionAtom{FieldName: "priority", Operator: "<=", Value: float64(7)}, true},
		{"numeric string operand", types.ConditionAtom{FieldName: "priority", Operator: ">", Value: "5"}, true},
		{"contains", types.ConditionAtom{FieldName: "title", Operator: "contains", Value: "World"}, true},
		{"not_contains", types.ConditionAtom{FieldName: "title", Operator: "not_contains", Value: "World"}, false},
		{"starts_with", types.ConditionAtom{FieldName: "title", Operator: "starts_with", Value: "Hello"}, true},
		{"ends_with", types.ConditionAtom{FieldName: "title", Operator: "ends_with", Value: "World"}, true},
		{"empty on blank", types.ConditionAtom{FieldName: "blank", Operator: "empty"}, true},
		{"empty on unset", types.ConditionAtom{FieldName: "missing", Operator: "empty"}, true},
		{"empty on set", types.ConditionAtom{FieldName: "status", Operator: "empty"}, false},
		{"not_empty", types.ConditionAtom{FieldName: "status", Operator: "not_empty"}, true},
		{"in list", types.ConditionAtom{FieldName: "status", Operator: "in", Value: []any{"draft", "active"}}, true},
		{"in csv", types.ConditionAtom{FieldName: "status", Operator: "in", Value: "draft, active"}, true},
		{"in miss", types.ConditionAtom{FieldName: "status", Operator: "in", Value: "draft, archived"}, false},
		{"not_in", types.ConditionAtom{FieldName: "status", Operator: "not_in", Value: "draft, archived"}, true},
		{"unknown operator fails closed", types.ConditionAtom{FieldName: "status", Operator: "matches", Value: "a.*"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &types.ConditionalRule{Logic: types.LogicAnd, Atoms: []types.ConditionAtom{tt.atom}}
			if got := Evaluate(rule, lookupFrom(values)); got != tt.want {
				t.Errorf("Evaluate(%+v) = %v, want %v", tt.atom, got, tt.want)
			}
		})
	}
}

func TestEvaluate_AndLogic(t *testing.T) {
	values := map[string]any{"status": "active", "priority": float64(7)}
	rule := &types.ConditionalRule{
		Logic: types.LogicAnd,
		Atoms: []types.ConditionAtom{
			{FieldName: "status", Operator: "==", Value: "active"},
			{FieldName: "priority", Operator: ">", Value: float64(5)},
		},
	}
	if !Evaluate(rule, lookupFrom(values)) {
		t.Error("Evaluate() = false, want true when all atoms hold")
	}

	rule.Atoms[1].Value = float64(9)
	if Evaluate(rule, lookupFrom(values)) {
		t.Error("Evaluate() = true, want false when one atom fails")
	}
}

func TestEvaluate_OrLogic(t *testing.T) {
	values := map[string]any{"status": "draft", "priority": float64(7)}
	rule := &types.ConditionalRule{
		Logic: types.LogicOr,
		Atoms: []types.ConditionAtom{
			{FieldName: "status", Operator: "==", Value: "active"},
			{FieldName: "priority", Operator: ">", Value: float64(5)},
		},
	}
	if !Evaluate(rule, lookupFrom(values)) {
		t.Error("Evaluate() = false, want true when one atom holds")
	}

	rule.Atoms[1].Value = float64(9)
	if Evaluate(rule, lookupFrom(values)) {
		t.Error("Evaluate() = true, want false when no atom holds")
	}
}

func TestEvaluate_Degradation(t *testing.T) {
	lookup := lookupFrom(nil)

	if !Evaluate(nil, lookup) {
		t.Error("nil rule should evaluate visible")
	}
	if !Evaluate(&types.ConditionalRule{Logic: types.LogicAnd}, lookup) {
		t.Error("zero-atom rule should evaluate visible")
	}
	malformed := &types.ConditionalRule{
		Logic: "xor",
		Atoms: []types.ConditionAtom{{FieldName: "a", Operator: "==", Value: "b"}},
	}
	if !Evaluate(malformed, lookup) {
		t.Error("unknown logic keyword should evaluate visible")
	}
	if !Malformed(malformed) {
		t.Error("Malformed() = false for unknown logic keyword")
	}
	if Malformed(nil) {
		t.Error("Malformed(nil) = true, nil means no rule at all")
	}
}

func TestEvaluate_NonNumericCoercesToZero(t *testing.T) {
	// Documented lossy behavior: "abc" > "xyz" compares 0 > 0.
	values := map[string]any{"a": "abc"}
	rule := &types.ConditionalRule{
		Logic: types.LogicAnd,
		Atoms: []types.ConditionAtom{{FieldName: "a", Operator: ">=", Value: "xyz"}},
	}
	if !Evaluate(rule, lookupFrom(values)) {
		t.Error("Evaluate() = false, want true (0 >= 0)")
	}
	rule.Atoms[0].Operator = ">"
	if Evaluate(rule, lookupFrom(values)) {
		t.Error("Evaluate() = true, want false (0 > 0)")
	}
}

func TestEvaluate_MissingFieldIsEmptyString(t *testing.T) {
	rule := &types.ConditionalRule{
		Logic: types.LogicAnd,
		Atoms: []types.ConditionAtom{{FieldName: "ghost", Operator: "==", Value: ""}},
	}
	if !Evaluate(rule, lookupFrom(map[string]any{})) {
		t.Error("missing field should compare as empty string")
	}
}
