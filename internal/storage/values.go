package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

// ValueRow is one stored field value for one record.
type ValueRow struct {
	MachineName     string
	DisplayName     string
	FieldType       string
	SerializedValue string
	RecordID        types.RecordID
}

type valueRow struct {
	ID              int64  `db:"id"`
	UnitID          string `db:"unit_id"`
	MachineName     string `db:"machine_name"`
	DisplayName     string `db:"display_name"`
	FieldType       string `db:"field_type"`
	SerializedValue string `db:"serialized_value"`
	RecordID        int64  `db:"record_id"`
}

// SetValue upserts one field value: at most one row exists per
// (unit, machine name, record), so repeated writes overwrite in place.
// The display name and type are denormalized onto the value row so a
// value unit is readable without its definition unit.
func (s *Store) SetValue(ctx context.Context, unit types.UnitRef, v ValueRow) error {
	_, err := s.q.Exec(ctx, "upsert-value",
		string(unit), v.MachineName, v.DisplayName, v.FieldType, v.SerializedValue, int64(v.RecordID))
	if err != nil {
		return fmt.Errorf("set value %q for record %d: %w", v.MachineName, v.RecordID, err)
	}
	return nil
}

// Value reads one stored value. ok is false when no value has been
// written for the field/record pair.
func (s *Store) Value(ctx context.Context, unit types.UnitRef, machineName string, record types.RecordID) (ValueRow, bool, error) {
	var row valueRow
	err := s.q.Get(ctx, "get-value", &row, string(unit), machineName, int64(record))
	if errors.Is(err, sql.ErrNoRows) {
		return ValueRow{}, false, nil
	}
	if err != nil {
		return ValueRow{}, false, fmt.Errorf("get value %q for record %d: %w", machineName, record, err)
	}
	return ValueRow{
		MachineName:     row.MachineName,
		DisplayName:     row.DisplayName,
		FieldType:       row.FieldType,
		SerializedValue: row.SerializedValue,
		RecordID:        types.RecordID(row.RecordID),
	}, true, nil
}

// ValuesForRecord reads every stored value one record holds in a unit,
// keyed by machine name.
func (s *Store) ValuesForRecord(ctx context.Context, unit types.UnitRef, record types.RecordID) (map[string]ValueRow, error) {
	var rows []valueRow
	if err := s.q.Select(ctx, "select-values-for-record", &rows, string(unit), int64(record)); err != nil {
		return nil, fmt.Errorf("values for record %d: %w", record, err)
	}
	out := make(map[string]ValueRow, len(rows))
	for _, row := range rows {
		out[row.MachineName] = ValueRow{
			MachineName:     row.MachineName,
			DisplayName:     row.DisplayName,
			FieldType:       row.FieldType,
			SerializedValue: row.SerializedValue,
			RecordID:        types.RecordID(row.RecordID),
		}
	}
	return out, nil
}

// DeleteValuesForField removes every stored value under one machine name
// in a unit, across all records.
func (s *Store) DeleteValuesForField(ctx context.Context, unit types.UnitRef, machineName string) error {
	if _, err := s.q.Exec(ctx, "delete-values-for-field", string(unit), machineName); err != nil {
		return fmt.Errorf("delete values for field %q: %w", machineName, err)
	}
	return nil
}
