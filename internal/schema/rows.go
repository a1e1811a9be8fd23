// Package schema resolves authoritative field trees for groups and
// round-trips the serialized schema document format.
package schema

import (
	"context"

	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

// DefinitionRow is the authoritative per-field record read from a
// definition unit. Column layout mirrors the storage schema; the resolver
// never touches the database directly, only this shape.
type DefinitionRow struct {
	ID                  int64           `db:"id"` // insertion id, ascending
	FieldID             string          `db:"field_id"`
	MachineName         string          `db:"machine_name"`
	DisplayName         string          `db:"display_name"`
	Type                string          `db:"field_type"`        // redundant type marker
	LegacyFieldType     string          `db:"legacy_field_type"` // oldest exporters only
	SerializedValue     string          `db:"serialized_value"`
	Depth               int             `db:"depth"`
	ChildUnitRefs       []types.UnitRef `db:"-"` // decoded from child_unit_refs JSON
	ConfigBlob          string          `db:"config_blob"`
	ValidationBlob      string          `db:"validation_blob"`
	ConditionalBlob     string          `db:"conditional_blob"`
	IsRepeater          bool            `db:"is_repeater"`
	MinRows             int             `db:"min_rows"`
	MaxRows             int             `db:"max_rows"`
	LayoutKind          string          `db:"layout_kind"`
	FlexibleLayoutsBlob string          `db:"flexible_layouts_blob"`
	SortOrder           int             `db:"sort_order"`
}

// Source is the storage port the resolver reads through. Implemented by
// internal/storage; test doubles implement it in-memory. Readers never
// mutate.
type Source interface {
	// DefinitionUnit returns the definition unit ref for a group name.
	// ok is false when the group has no structured definition unit.
	DefinitionUnit(ctx context.Context, group string) (ref types.UnitRef, ok bool, err error)

	// DefinitionRows returns the rows of one definition unit, unordered.
	// ok is false when the unit does not exist (dangling nesting ref).
	DefinitionRows(ctx context.Context, ref types.UnitRef) (rows []DefinitionRow, ok bool, err error)

	// SchemaDocument returns the fallback serialized schema blob for a
	// group, with its format name. ok is false when none is stored.
	SchemaDocument(ctx context.Context, group string) (doc []byte, format string, ok bool, err error)
}
