// internal/schema/node.go
package schema

import (
	"strings"

	"github.com/fieldkeeper/fieldkeeper/internal/registry"
	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

/*
 * FieldNode conversion.
 *
 * One node grammar serves three consumers: the sub_fields/layouts blobs
 * inside definition-row configs, the fallback serialized schema document,
 * and export. Structural keys (name, label, type, sub_fields, layouts,
 * conditional_logic) become Field struct fields; every other key lands in
 * Config verbatim, which is what makes export -> reimport lossless for
 * documents carrying unknown extra keys.
 *
 * min_rows/max_rows stay inside Config (they are repeater configuration)
 * and are mirrored onto Field.MinRows/MaxRows for callers that need them
 * without a map lookup.
 */

// structuralKeys are lifted out of the open config map into Field fields.
var structuralKeys = map[string]bool{
	"name":              true,
	"label":             true,
	"type":              true,
	"sub_fields":        true,
	"layouts":           true,
	"conditional_logic": true,
}

// parseNode converts one field-node map into a Field. Missing keys
// default safely; the node grammar never fails.
func parseNode(m map[string]any) types.Field {
	cfg := types.Config{}
	for k, v := range m {
		if !structuralKeys[k] {
			cfg[k] = v
		}
	}

	f := types.Field{
		Name:        stringAt(m, "name"),
		Label:       stringAt(m, "label"),
		Type:        registry.Normalize(stringAt(m, "type")),
		Config:      cfg,
		Conditional: parseConditional(m["conditional_logic"]),
		MinRows:     int(cfg.Float("min_rows")),
		MaxRows:     int(cfg.Float("max_rows")),
	}

	switch f.Type {
	case types.TypeGroup, types.TypeRepeater:
		f.Children = parseNodes(listAt(m, "sub_fields"))
	case types.TypeFlexibleContent:
		f.Layouts = parseLayouts(listAt(m, "layouts"))
	}
	return f
}

// parseNodes converts a sub_fields list; non-map entries are skipped.
func parseNodes(list []any) []types.Field {
	if len(list) == 0 {
		return nil
	}
	out := make([]types.Field, 0, len(list))
	for _, entry := range list {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, parseNode(m))
		}
	}
	return out
}

// parseLayouts converts a flexible_content layouts list.
func parseLayouts(list []any) []types.Layout {
	if len(list) == 0 {
		return nil
	}
	out := make([]types.Layout, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, types.Layout{
			Name:   stringAt(m, "name"),
			Label:  stringAt(m, "label"),
			Fields: parseNodes(listAt(m, "sub_fields")),
		})
	}
	return out
}

// parseConditional converts a conditional_logic map. Anything that is not
// a well-shaped map yields nil (no rule, always visible); a map missing
// atoms yields a zero-atom rule, which the evaluator also treats as
// always visible.
func parseConditional(v any) *types.ConditionalRule {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	rule := &types.ConditionalRule{
		Logic: types.ConditionalLogic(strings.ToLower(stringAt(m, "logic"))),
	}
	for _, entry := range listAt(m, "atoms") {
		am, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		rule.Atoms = append(rule.Atoms, types.ConditionAtom{
			FieldName: stringAt(am, "field"),
			Operator:  stringAt(am, "operator"),
			Value:     am["value"],
		})
	}
	return rule
}

// encodeNode converts a Field back to its node-map form, the exact
// inverse of parseNode.
func encodeNode(f types.Field) map[string]any {
	m := make(map[string]any, len(f.Config)+4)
	for k, v := range f.Config {
		m[k] = v
	}
	m["name"] = f.Name
	m["label"] = f.Label
	m["type"] = f.Type
	if f.Conditional != nil {
		m["conditional_logic"] = encodeConditional(f.Conditional)
	}
	switch f.Type {
	case types.TypeGroup, types.TypeRepeater:
		if f.Children != nil {
			m["sub_fields"] = encodeNodes(f.Children)
		}
	case types.TypeFlexibleContent:
		if f.Layouts != nil {
			layouts := make([]any, len(f.Layouts))
			for i, l := range f.Layouts {
				lm := map[string]any{"name": l.Name, "label": l.Label}
				if l.Fields != nil {
					lm["sub_fields"] = encodeNodes(l.Fields)
				}
				layouts[i] = lm
			}
			m["layouts"] = layouts
		}
	}
	return m
}

func encodeNodes(fields []types.Field) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = encodeNode(f)
	}
	return out
}

func encodeConditional(rule *types.ConditionalRule) map[string]any {
	atoms := make([]any, len(rule.Atoms))
	for i, a := range rule.Atoms {
		am := map[string]any{"field": a.FieldName, "operator": a.Operator}
		if a.Value != nil {
			am["value"] = a.Value
		}
		atoms[i] = am
	}
	return map[string]any{"logic": string(rule.Logic), "atoms": atoms}
}

func stringAt(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func listAt(m map[string]any, key string) []any {
	if l, ok := m[key].([]any); ok {
		return l
	}
	return nil
}
