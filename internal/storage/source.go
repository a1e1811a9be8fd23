package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldkeeper/fieldkeeper/internal/schema"
	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

// The store is the resolver's storage port.
var _ schema.Source = (*Store)(nil)

// DefinitionUnit returns the definition unit ref registered for a group.
func (s *Store) DefinitionUnit(ctx context.Context, group string) (types.UnitRef, bool, error) {
	rec, err := s.Group(ctx, group)
	if errors.Is(err, types.ErrGroupNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.Units.Definition, true, nil
}

// DefinitionRows returns one unit's definition rows. ok is false when
// the unit is absent from the arena (a dangling nesting ref).
func (s *Store) DefinitionRows(ctx context.Context, ref types.UnitRef) ([]schema.DefinitionRow, bool, error) {
	var u unitRow
	err := s.q.Get(ctx, "get-unit", &u, string(ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("unit %s: %w", ref, err)
	}

	var rows []defRow
	if err := s.q.Select(ctx, "select-definition-rows", &rows, string(ref)); err != nil {
		return nil, false, fmt.Errorf("unit %s: %w", ref, err)
	}
	out := make([]schema.DefinitionRow, len(rows))
	for i, row := range rows {
		out[i] = s.definitionRow(row)
	}
	return out, true, nil
}

// SchemaDocument returns a group's fallback serialized schema, if one is
// stored.
func (s *Store) SchemaDocument(ctx context.Context, group string) ([]byte, string, bool, error) {
	var row docRow
	err := s.q.Get(ctx, "get-schema-document", &row, group)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("schema document for group %q: %w", group, err)
	}
	return row.Document, row.Format, true, nil
}
