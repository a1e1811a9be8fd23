// Package storage implements the dynamic persistence layer: field groups,
// their definition/value storage units, location rules and fallback
// schema documents.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/fieldkeeper/fieldkeeper/internal/core/db"
	"github.com/fieldkeeper/fieldkeeper/internal/schema"
	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

/*
 * Storage unit arena.
 *
 * Every field group owns a pair of storage units: a definition unit
 * (holding one row per field definition) and a value unit (holding one
 * row per field value per record). Composite fields chain further unit
 * pairs below the group's pair; the parent row records the child
 * definition refs in its child_unit_refs column, and the child unit
 * records its parent. Chained units carry an empty group name, so a
 * group delete removes only the top-level pair and the chain below is
 * orphaned rather than walked (detected and logged at delete time).
 *
 * Writers serialize per group: cross-row invariants (display-name
 * uniqueness pre-check, child ref list updates) hold under the group
 * mutex, and the database unique indexes back the same invariants
 * against concurrent processes.
 */

// Unit kinds in the storage_units table.
const (
	unitKindDefinition = "definition"
	unitKindValue      = "value"
)

// UnitRefs is a group's unit pair.
type UnitRefs struct {
	Definition types.UnitRef
	Value      types.UnitRef
}

// GroupRecord is one registered field group.
type GroupRecord struct {
	Name  string
	Label string
	Units UnitRefs
}

// Store persists groups, definitions, values, location rules and schema
// documents through the named query layer.
type Store struct {
	q   *db.Queries
	log *slog.Logger

	mu      sync.Mutex
	groupMu map[string]*sync.Mutex
}

// New wires a store to its query layer.
func New(q *db.Queries, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{q: q, log: log, groupMu: make(map[string]*sync.Mutex)}
}

// lockGroup returns the per-group writer mutex, creating it on first use.
func (s *Store) lockGroup(group string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.groupMu[group]
	if !ok {
		m = &sync.Mutex{}
		s.groupMu[group] = m
	}
	return m
}

// Row shapes scanned from the query layer.

type groupRow struct {
	GroupName        string `db:"group_name"`
	Label            string `db:"label"`
	DefinitionUnitID string `db:"definition_unit_id"`
	ValueUnitID      string `db:"value_unit_id"`
	CreatedAt        string `db:"created_at"`
}

type unitRow struct {
	UnitID            string `db:"unit_id"`
	GroupName         string `db:"group_name"`
	Kind              string `db:"kind"`
	ParentUnitID      string `db:"parent_unit_id"`
	CounterpartUnitID string `db:"counterpart_unit_id"`
	CreatedAt         string `db:"created_at"`
}

type defRow struct {
	ID                  int64  `db:"id"`
	UnitID              string `db:"unit_id"`
	FieldID             string `db:"field_id"`
	MachineName         string `db:"machine_name"`
	DisplayName         string `db:"display_name"`
	FieldType           string `db:"field_type"`
	LegacyFieldType     string `db:"legacy_field_type"`
	SerializedValue     string `db:"serialized_value"`
	Depth               int    `db:"depth"`
	ChildUnitRefs       string `db:"child_unit_refs"`
	ConfigBlob          string `db:"config_blob"`
	ValidationBlob      string `db:"validation_blob"`
	ConditionalBlob     string `db:"conditional_blob"`
	IsRepeater          bool   `db:"is_repeater"`
	MinRows             int    `db:"min_rows"`
	MaxRows             int    `db:"max_rows"`
	LayoutKind          string `db:"layout_kind"`
	FlexibleLayoutsBlob string `db:"flexible_layouts_blob"`
	SortOrder           int    `db:"sort_order"`
}

// definitionRow converts a scanned row to the resolver's port shape,
// decoding the child unit ref list. A malformed ref list resolves as no
// children, which the resolver treats as a leaf.
func (s *Store) definitionRow(row defRow) schema.DefinitionRow {
	out := schema.DefinitionRow{
		ID:                  row.ID,
		FieldID:             row.FieldID,
		MachineName:         row.MachineName,
		DisplayName:         row.DisplayName,
		Type:                row.FieldType,
		LegacyFieldType:     row.LegacyFieldType,
		SerializedValue:     row.SerializedValue,
		Depth:               row.Depth,
		ConfigBlob:          row.ConfigBlob,
		ValidationBlob:      row.ValidationBlob,
		ConditionalBlob:     row.ConditionalBlob,
		IsRepeater:          row.IsRepeater,
		MinRows:             row.MinRows,
		MaxRows:             row.MaxRows,
		LayoutKind:          row.LayoutKind,
		FlexibleLayoutsBlob: row.FlexibleLayoutsBlob,
		SortOrder:           row.SortOrder,
	}
	out.ChildUnitRefs = decodeChildRefs(s.log, row)
	return out
}

func decodeChildRefs(log *slog.Logger, row defRow) []types.UnitRef {
	if row.ChildUnitRefs == "" || row.ChildUnitRefs == "[]" {
		return nil
	}
	var refs []string
	if err := json.Unmarshal([]byte(row.ChildUnitRefs), &refs); err != nil {
		log.Warn("malformed child unit ref list, treating field as a leaf",
			"field", row.DisplayName, "error", err)
		return nil
	}
	out := make([]types.UnitRef, 0, len(refs))
	for _, r := range refs {
		ref, err := types.ParseUnitRef(r)
		if err != nil {
			log.Warn("skipping malformed child unit ref",
				"field", row.DisplayName, "ref", r, "error", err)
			continue
		}
		out = append(out, ref)
	}
	return out
}

func encodeChildRefs(refs []types.UnitRef) (string, error) {
	ss := make([]string, len(refs))
	for i, r := range refs {
		ss[i] = string(r)
	}
	data, err := json.Marshal(ss)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// isUniqueViolation reports whether err is a unique-index violation on
// either supported backend.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// CreateGroup registers a group and creates its unit pair. Idempotent:
// re-creating an existing group returns its current record unchanged. A
// group row whose units went missing is repaired with fresh units and a
// WARN, so a half-failed earlier create does not wedge the name forever.
func (s *Store) CreateGroup(ctx context.Context, name, label string) (GroupRecord, error) {
	if name == "" {
		return GroupRecord{}, fmt.Errorf("create group: empty name")
	}

	m := s.lockGroup(name)
	m.Lock()
	defer m.Unlock()

	existing, err := s.Group(ctx, name)
	if err == nil {
		if err := s.repairUnits(ctx, &existing); err != nil {
			return GroupRecord{}, err
		}
		return existing, nil
	}
	if !errors.Is(err, types.ErrGroupNotFound) {
		return GroupRecord{}, err
	}

	rec := GroupRecord{
		Name:  name,
		Label: label,
		Units: UnitRefs{Definition: types.NewUnitRef(), Value: types.NewUnitRef()},
	}
	ts := now()
	if _, err := s.q.Exec(ctx, "insert-unit",
		string(rec.Units.Definition), name, unitKindDefinition, "", string(rec.Units.Value), ts); err != nil {
		return GroupRecord{}, fmt.Errorf("create group %q: %w", name, err)
	}
	if _, err := s.q.Exec(ctx, "insert-unit",
		string(rec.Units.Value), name, unitKindValue, "", string(rec.Units.Definition), ts); err != nil {
		return GroupRecord{}, fmt.Errorf("create group %q: %w", name, err)
	}
	if _, err := s.q.Exec(ctx, "insert-group",
		name, label, string(rec.Units.Definition), string(rec.Units.Value), ts); err != nil {
		if isUniqueViolation(err) {
			// Lost a cross-process race; the other writer's record wins.
			return s.Group(ctx, name)
		}
		return GroupRecord{}, fmt.Errorf("create group %q: %w", name, err)
	}
	return rec, nil
}

// repairUnits re-creates a registered group's units when they are
// missing from the arena.
func (s *Store) repairUnits(ctx context.Context, rec *GroupRecord) error {
	for _, pair := range []struct {
		ref         types.UnitRef
		kind        string
		counterpart types.UnitRef
	}{
		{rec.Units.Definition, unitKindDefinition, rec.Units.Value},
		{rec.Units.Value, unitKindValue, rec.Units.Definition},
	} {
		var u unitRow
		err := s.q.Get(ctx, "get-unit", &u, string(pair.ref))
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("group %q: %w", rec.Name, err)
		}
		s.log.Warn("group unit missing from arena, re-creating",
			"group", rec.Name, "unit", pair.ref, "kind", pair.kind)
		if _, err := s.q.Exec(ctx, "insert-unit",
			string(pair.ref), rec.Name, pair.kind, "", string(pair.counterpart), now()); err != nil {
			return fmt.Errorf("group %q: %w", rec.Name, err)
		}
	}
	return nil
}

// Group returns one registered group, types.ErrGroupNotFound when the
// name is unknown.
func (s *Store) Group(ctx context.Context, name string) (GroupRecord, error) {
	var row groupRow
	err := s.q.Get(ctx, "get-group", &row, name)
	if errors.Is(err, sql.ErrNoRows) {
		return GroupRecord{}, fmt.Errorf("group %q: %w", name, types.ErrGroupNotFound)
	}
	if err != nil {
		return GroupRecord{}, fmt.Errorf("group %q: %w", name, err)
	}
	return GroupRecord{
		Name:  row.GroupName,
		Label: row.Label,
		Units: UnitRefs{
			Definition: types.UnitRef(row.DefinitionUnitID),
			Value:      types.UnitRef(row.ValueUnitID),
		},
	}, nil
}

// ListGroups returns all registered groups ordered by name.
func (s *Store) ListGroups(ctx context.Context) ([]GroupRecord, error) {
	var rows []groupRow
	if err := s.q.Select(ctx, "list-groups", &rows); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	out := make([]GroupRecord, len(rows))
	for i, row := range rows {
		out[i] = GroupRecord{
			Name:  row.GroupName,
			Label: row.Label,
			Units: UnitRefs{
				Definition: types.UnitRef(row.DefinitionUnitID),
				Value:      types.UnitRef(row.ValueUnitID),
			},
		}
	}
	return out, nil
}

// DeleteGroup removes a group: its registration, location rules, schema
// document, top-level unit pair and their rows. Chained child units
// below composite fields are NOT walked; they stay in the arena as
// orphans and each one is logged. Reclaiming orphans is an offline
// maintenance concern, not a delete-path concern.
func (s *Store) DeleteGroup(ctx context.Context, name string) error {
	m := s.lockGroup(name)
	m.Lock()
	defer m.Unlock()

	rec, err := s.Group(ctx, name)
	if err != nil {
		return err
	}

	// Surface the refs this delete is about to orphan.
	var rows []defRow
	if err := s.q.Select(ctx, "select-definition-rows", &rows, string(rec.Units.Definition)); err == nil {
		for _, row := range rows {
			for _, ref := range decodeChildRefs(s.log, row) {
				s.log.Warn("group delete orphans nested storage unit",
					"group", name, "field", row.DisplayName, "unit", ref)
			}
		}
	}

	steps := []struct {
		query string
		args  []interface{}
	}{
		{"delete-definition-rows-for-unit", []interface{}{string(rec.Units.Definition)}},
		{"delete-values-for-unit", []interface{}{string(rec.Units.Value)}},
		{"delete-location-rules-for-group", []interface{}{name}},
		{"delete-schema-document", []interface{}{name}},
		{"delete-unit", []interface{}{string(rec.Units.Definition)}},
		{"delete-unit", []interface{}{string(rec.Units.Value)}},
		{"delete-group", []interface{}{name}},
	}
	for _, step := range steps {
		if _, err := s.q.Exec(ctx, step.query, step.args...); err != nil {
			return fmt.Errorf("delete group %q: %w", name, err)
		}
	}
	return nil
}
