// Package engine composes the storage, schema, registry, location and
// condition layers into the operations a host application calls.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	json "github.com/goccy/go-json"

	"github.com/fieldkeeper/fieldkeeper/internal/conditions"
	"github.com/fieldkeeper/fieldkeeper/internal/location"
	"github.com/fieldkeeper/fieldkeeper/internal/registry"
	"github.com/fieldkeeper/fieldkeeper/internal/schema"
	"github.com/fieldkeeper/fieldkeeper/internal/storage"
	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

/*
 * Write path: values are sanitized then validated through the type
 * registry before storage, and only keys named by the resolved schema
 * are accepted; a write is per-field partial, untouched fields keep
 * their stored values. Composite values (repeater rows, group objects,
 * flexible sections) serialize as one JSON document on the parent
 * field's value row; chained value units exist for unit-level callers
 * but the engine's record API reads and writes at the group's top unit.
 *
 * Read path: stored JSON decodes per resolved field; fields never
 * written simply stay absent from the result.
 */

// Engine is the top-level FieldKeeper service facade.
type Engine struct {
	store    *storage.Store
	resolver *schema.Resolver
	reg      *registry.Registry
	log      *slog.Logger
}

// New wires an engine over a store and registry.
func New(store *storage.Store, reg *registry.Registry, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:    store,
		resolver: schema.NewResolver(store, reg, log),
		reg:      reg,
		log:      log,
	}
}

// Store exposes the underlying store for administrative operations
// (group and field management) that need no engine mediation.
func (e *Engine) Store() *storage.Store { return e.store }

// ResolveSchema returns the authoritative field tree for a group.
func (e *Engine) ResolveSchema(ctx context.Context, group string) ([]types.Field, error) {
	return e.resolver.Resolve(ctx, group)
}

// GroupsForContext returns the names of every group whose location
// rules match the given context, in name order. Groups with no rules
// match every context.
func (e *Engine) GroupsForContext(ctx context.Context, loc types.Context) ([]string, error) {
	groups, err := e.store.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]string, 0, len(groups))
	for _, g := range groups {
		rules, err := e.store.LocationRules(ctx, g.Name)
		if err != nil {
			return nil, err
		}
		if location.Match(loc, rules) {
			matched = append(matched, g.Name)
		}
	}
	return matched, nil
}

// EvaluateVisibility computes per-field visibility for one level of a
// field tree from the record's current values. Malformed rules are
// logged and resolve visible, matching the evaluator's degradation.
func (e *Engine) EvaluateVisibility(group string, fields []types.Field, values map[string]any) map[string]bool {
	lookup := func(name string) (any, bool) {
		v, ok := values[name]
		return v, ok
	}
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		if conditions.Malformed(f.Conditional) {
			e.log.Warn("malformed conditional rule, field stays always visible",
				"group", group, "field", f.Name)
		}
		out[f.Name] = conditions.Evaluate(f.Conditional, lookup)
	}
	return out
}

// SetValues writes record values for a group. The write is partial:
// only the supplied keys change. Each value is sanitized and validated
// by its field's type before anything is stored; any rejection aborts
// the whole call with nothing written.
func (e *Engine) SetValues(ctx context.Context, group string, record types.RecordID, values map[string]any) error {
	fields, err := e.ResolveSchema(ctx, group)
	if err != nil {
		return err
	}
	rec, err := e.store.Group(ctx, group)
	if err != nil {
		return err
	}

	byName := fieldIndex(fields)

	// Validate everything before writing anything.
	prepared := make([]storage.ValueRow, 0, len(values))
	for name, raw := range values {
		f, ok := byName[name]
		if !ok {
			return &types.ValidationError{Group: group, Field: name, Reason: "no such field in group"}
		}
		clean, err := e.prepareValue(group, f, raw)
		if err != nil {
			return err
		}
		data, err := json.Marshal(clean)
		if err != nil {
			return fmt.Errorf("serializing %q for group %q: %w", name, group, err)
		}
		prepared = append(prepared, storage.ValueRow{
			MachineName:     f.Name,
			DisplayName:     f.Label,
			FieldType:       f.Type,
			SerializedValue: string(data),
			RecordID:        record,
		})
	}

	for _, row := range prepared {
		if err := e.store.SetValue(ctx, rec.Units.Value, row); err != nil {
			return err
		}
	}
	return nil
}

// GetValues reads a record's stored values for a group, decoded per the
// resolved schema. Fields never written are absent from the result.
func (e *Engine) GetValues(ctx context.Context, group string, record types.RecordID) (map[string]any, error) {
	fields, err := e.ResolveSchema(ctx, group)
	if err != nil {
		return nil, err
	}
	rec, err := e.store.Group(ctx, group)
	if err != nil {
		return nil, err
	}
	stored, err := e.store.ValuesForRecord(ctx, rec.Units.Value, record)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(stored))
	for name := range fieldIndex(fields) {
		row, ok := stored[name]
		if !ok {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(row.SerializedValue), &v); err != nil {
			e.log.Warn("stored value failed to decode, skipping",
				"group", group, "field", name, "record", record, "error", err)
			continue
		}
		out[name] = v
	}
	return out, nil
}

// GetValue reads one field value. ok is false when nothing is stored.
func (e *Engine) GetValue(ctx context.Context, group, field string, record types.RecordID) (any, bool, error) {
	rec, err := e.store.Group(ctx, group)
	if err != nil {
		return nil, false, err
	}
	row, ok, err := e.store.Value(ctx, rec.Units.Value, field, record)
	if err != nil || !ok {
		return nil, false, err
	}
	var v any
	if err := json.Unmarshal([]byte(row.SerializedValue), &v); err != nil {
		e.log.Warn("stored value failed to decode",
			"group", group, "field", field, "record", record, "error", err)
		return nil, false, nil
	}
	return v, true, nil
}

// prepareValue sanitizes and validates one value against its field.
// Composite fields validate their nested values one level deep against
// child fields; deeper levels were validated when their own rows were
// written through nested units, and opaque extra keys pass through.
func (e *Engine) prepareValue(group string, f types.Field, raw any) (any, error) {
	ft, _ := e.reg.Lookup(f.Type)
	clean := ft.Sanitize(raw)
	if err := ft.Validate(clean, f.Config); err != nil {
		return nil, &types.ValidationError{Group: group, Field: f.Name, Reason: err.Error()}
	}

	switch f.Type {
	case types.TypeRepeater:
		rows, ok := clean.([]any)
		if !ok {
			if clean == nil {
				return clean, nil
			}
			return nil, &types.ValidationError{Group: group, Field: f.Name, Reason: "repeater value must be a list of rows"}
		}
		if f.MinRows > 0 && len(rows) < f.MinRows {
			return nil, &types.ValidationError{Group: group, Field: f.Name,
				Reason: fmt.Sprintf("needs at least %d rows", f.MinRows)}
		}
		if f.MaxRows > 0 && len(rows) > f.MaxRows {
			return nil, &types.ValidationError{Group: group, Field: f.Name,
				Reason: fmt.Sprintf("allows at most %d rows", f.MaxRows)}
		}
		for i, row := range rows {
			rm, ok := row.(map[string]any)
			if !ok {
				return nil, &types.ValidationError{Group: group, Field: f.Name,
					Reason: fmt.Sprintf("row %d is not an object", i)}
			}
			if err := e.validateChildren(group, f, rm); err != nil {
				return nil, err
			}
			rows[i] = rm
		}
		return rows, nil

	case types.TypeGroup:
		gm, ok := clean.(map[string]any)
		if !ok {
			if clean == nil {
				return clean, nil
			}
			return nil, &types.ValidationError{Group: group, Field: f.Name, Reason: "group value must be an object"}
		}
		if err := e.validateChildren(group, f, gm); err != nil {
			return nil, err
		}
		return gm, nil
	}
	return clean, nil
}

// validateChildren sanitizes and validates the known child keys of one
// composite value object in place. Keys with no matching child field
// pass through untouched.
func (e *Engine) validateChildren(group string, parent types.Field, obj map[string]any) error {
	for _, child := range parent.Children {
		raw, ok := obj[child.Name]
		if !ok {
			continue
		}
		ft, _ := e.reg.Lookup(child.Type)
		clean := ft.Sanitize(raw)
		if err := ft.Validate(clean, child.Config); err != nil {
			return &types.ValidationError{
				Group:  group,
				Field:  parent.Name + "." + child.Name,
				Reason: err.Error(),
			}
		}
		obj[child.Name] = clean
	}
	return nil
}

// fieldIndex maps a field level by machine name.
func fieldIndex(fields []types.Field) map[string]types.Field {
	out := make(map[string]types.Field, len(fields))
	for _, f := range fields {
		out[f.Name] = f
	}
	return out
}
