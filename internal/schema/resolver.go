// internal/schema/resolver.go
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	json "github.com/goccy/go-json"

	"github.com/fieldkeeper/fieldkeeper/internal/registry"
	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

/*
 * Schema resolution.
 *
 * Produces the authoritative field tree for a group name from two
 * possible sources, in priority order:
 *   1. Structured definition rows (authoritative when present).
 *   2. The fallback serialized schema document, used only when no
 *      structured rows exist for the group.
 *
 * Per-row type resolution checks, in order: config "type" key, the row's
 * redundant type marker, the legacy field_type column; first non-empty
 * wins, then the spelling is normalized before registry lookup. Unknown
 * types degrade to the generic contract with a WARN, never a failure.
 *
 * Composite fields pull sub_fields/layouts from config verbatim; a
 * composite with no sub-structure resolves to an empty nested field set
 * rather than an error (renders as "add nested fields").
 *
 * Nesting through chained units: a row's child unit refs are followed
 * recursively and their trees appended to the field's children. Dangling
 * refs resolve as empty nested groups; chains past MaxNestingDepth are
 * cut, both with a WARN. Resolution itself never mutates storage.
 *
 * Ordering: sort_order ascending, ties broken by insertion id ascending.
 */

// Resolver builds field trees through a Source port and a type registry.
type Resolver struct {
	src Source
	reg *registry.Registry
	log *slog.Logger
}

// NewResolver wires a resolver to its storage port and registry.
func NewResolver(src Source, reg *registry.Registry, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{src: src, reg: reg, log: log}
}

// Resolve returns the authoritative field tree for a group. Structured
// definition rows win; when none exist the stored fallback document is
// consulted. Returns types.ErrGroupNotFound when the name is unknown on
// both paths.
func (r *Resolver) Resolve(ctx context.Context, group string) ([]types.Field, error) {
	ref, ok, err := r.src.DefinitionUnit(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("resolving group %q: %w", group, err)
	}
	unitExists := false
	if ok {
		rows, found, err := r.src.DefinitionRows(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("resolving group %q: %w", group, err)
		}
		if found && len(rows) > 0 {
			return r.buildTree(ctx, group, rows, 0), nil
		}
		unitExists = found
	}

	// An empty definition unit does not shadow an imported document: a
	// group whose rows were never materialized still serves whatever the
	// document describes.
	doc, format, ok, err := r.src.SchemaDocument(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("resolving group %q: %w", group, err)
	}
	if !ok {
		if unitExists {
			// Freshly created group: registered, no fields yet.
			return []types.Field{}, nil
		}
		return nil, fmt.Errorf("group %q: %w", group, types.ErrGroupNotFound)
	}

	fields, err := Decode(doc, Format(format))
	if err != nil {
		return nil, fmt.Errorf("group %q fallback document: %w", group, err)
	}
	r.applyDefaults(group, fields)
	return fields, nil
}

// buildTree converts one unit's rows into ordered fields, following
// nested unit chains.
func (r *Resolver) buildTree(ctx context.Context, group string, rows []DefinitionRow, depth int) []types.Field {
	ordered := make([]DefinitionRow, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].SortOrder != ordered[j].SortOrder {
			return ordered[i].SortOrder < ordered[j].SortOrder
		}
		return ordered[i].ID < ordered[j].ID
	})

	fields := make([]types.Field, 0, len(ordered))
	for _, row := range ordered {
		fields = append(fields, r.fieldFromRow(ctx, group, row, depth))
	}
	return fields
}

// fieldFromRow materializes one definition row, resolving its type,
// decoding its blobs and following its nesting references.
func (r *Resolver) fieldFromRow(ctx context.Context, group string, row DefinitionRow, depth int) types.Field {
	cfg := r.decodeConfig(group, row)

	node := map[string]any(cfg.Clone())
	node["name"] = row.MachineName
	node["label"] = row.DisplayName
	node["type"] = r.resolveType(group, row, cfg)

	if cond := r.decodeConditional(group, row); cond != nil {
		node["conditional_logic"] = cond
	}

	// Row-level repeater/layout columns backfill config when the blob
	// predates those keys.
	if row.MinRows > 0 && !cfg.Has("min_rows") {
		node["min_rows"] = float64(row.MinRows)
	}
	if row.MaxRows > 0 && !cfg.Has("max_rows") {
		node["max_rows"] = float64(row.MaxRows)
	}
	if row.FlexibleLayoutsBlob != "" && !cfg.Has("layouts") {
		var layouts []any
		if err := json.Unmarshal([]byte(row.FlexibleLayoutsBlob), &layouts); err == nil {
			node["layouts"] = layouts
		} else {
			r.log.Warn("malformed flexible layouts blob, resolving with no layouts",
				"group", group, "field", row.DisplayName, "error", err)
		}
	}

	f := parseNode(node)
	f.ID = types.FieldID(row.FieldID)
	r.mergeDefaults(&f)

	if len(row.ChildUnitRefs) > 0 {
		f.Children = append(f.Children, r.resolveChildren(ctx, group, row, depth)...)
	}
	return f
}

// resolveChildren follows a row's chained child units.
func (r *Resolver) resolveChildren(ctx context.Context, group string, row DefinitionRow, depth int) []types.Field {
	if depth+1 > types.MaxNestingDepth {
		r.log.Warn("nested unit chain cut at maximum depth",
			"group", group, "field", row.DisplayName, "depth", depth)
		return nil
	}

	var children []types.Field
	for _, ref := range row.ChildUnitRefs {
		rows, ok, err := r.src.DefinitionRows(ctx, ref)
		if err != nil {
			r.log.Warn("reading nested unit failed, resolving as empty nested group",
				"group", group, "field", row.DisplayName, "unit", ref, "error", err)
			continue
		}
		if !ok {
			// Dangling reference: empty nested group, not a crash.
			r.log.Warn("nested unit reference points to a missing unit",
				"group", group, "field", row.DisplayName, "unit", ref)
			continue
		}
		children = append(children, r.buildTree(ctx, group, rows, depth+1)...)
	}
	return children
}

// resolveType applies the three-step type precedence and normalizes.
func (r *Resolver) resolveType(group string, row DefinitionRow, cfg types.Config) string {
	name := cfg.String("type")
	if name == "" {
		name = row.Type
	}
	if name == "" {
		name = row.LegacyFieldType
	}
	name = registry.Normalize(name)
	if name != "" && !r.reg.Known(name) {
		r.log.Warn("unknown field type, degrading to generic text contract",
			"group", group, "field", row.DisplayName, "type", name)
	}
	return name
}

// decodeConfig parses the row's serialized config map. Malformed blobs
// resolve as empty config with a WARN; the field survives.
func (r *Resolver) decodeConfig(group string, row DefinitionRow) types.Config {
	if row.ConfigBlob == "" {
		return types.Config{}
	}
	var cfg map[string]any
	if err := json.Unmarshal([]byte(row.ConfigBlob), &cfg); err != nil {
		r.log.Warn("malformed config blob, resolving with empty config",
			"group", group, "field", row.DisplayName, "error", err)
		return types.Config{}
	}
	return types.Config(cfg)
}

// decodeConditional parses the row's conditional rule blob into the node
// grammar's map form. Malformed blobs resolve as no rule (always
// visible) with a WARN.
func (r *Resolver) decodeConditional(group string, row DefinitionRow) map[string]any {
	if row.ConditionalBlob == "" {
		return nil
	}
	var cond map[string]any
	if err := json.Unmarshal([]byte(row.ConditionalBlob), &cond); err != nil {
		r.log.Warn("malformed conditional rule, field stays always visible",
			"group", group, "field", row.DisplayName, "error", err)
		return nil
	}
	return cond
}

// mergeDefaults fills registry defaults under the field's config and
// recurses into nested field sets.
func (r *Resolver) mergeDefaults(f *types.Field) {
	ft, _ := r.reg.Lookup(f.Type)
	for k, v := range ft.Defaults() {
		if !f.Config.Has(k) {
			f.Config[k] = v
		}
	}
	for i := range f.Children {
		r.mergeDefaults(&f.Children[i])
	}
	for li := range f.Layouts {
		for i := range f.Layouts[li].Fields {
			r.mergeDefaults(&f.Layouts[li].Fields[i])
		}
	}
}

// applyDefaults runs mergeDefaults across a fallback-document tree and
// logs unknown types, mirroring the row path's degradation.
func (r *Resolver) applyDefaults(group string, fields []types.Field) {
	for i := range fields {
		if fields[i].Type != "" && !r.reg.Known(fields[i].Type) {
			r.log.Warn("unknown field type, degrading to generic text contract",
				"group", group, "field", fields[i].Name, "type", fields[i].Type)
		}
		r.mergeDefaults(&fields[i])
	}
}
