package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldkeeper/fieldkeeper/internal/idgen"
	"github.com/fieldkeeper/fieldkeeper/internal/schema"
	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

// machineNameAttempts bounds retries when a generated machine name
// collides inside one unit.
const machineNameAttempts = 3

// AddField appends a field definition to a group. The field's Label is
// the display name and must be unique within the group's definition
// unit; a clash returns a DuplicateFieldNameError and writes nothing.
// When f.Name is empty a machine name is derived from the label, with a
// random fallback on collision. Composite fields with children get a
// chained child unit pair holding the nested definitions.
//
// Returns the stored field with its assigned ID and machine name.
func (s *Store) AddField(ctx context.Context, group string, f types.Field) (types.Field, error) {
	m := s.lockGroup(group)
	m.Lock()
	defer m.Unlock()

	rec, err := s.Group(ctx, group)
	if err != nil {
		return types.Field{}, err
	}

	order, err := s.nextSortOrder(ctx, rec.Units.Definition)
	if err != nil {
		return types.Field{}, fmt.Errorf("add field to group %q: %w", group, err)
	}

	stored, err := s.insertField(ctx, group, rec.Units, f, 0, order)
	if err != nil {
		return types.Field{}, err
	}
	return stored, nil
}

// insertField writes one definition row (and, for composites with
// children, a chained unit pair below it). depth counts chained units
// from the group's top unit.
func (s *Store) insertField(ctx context.Context, group string, units UnitRefs, f types.Field, depth, order int) (types.Field, error) {
	if depth > types.MaxNestingDepth {
		return types.Field{}, fmt.Errorf("field %q in group %q: %w", f.Label, group, types.ErrNestingTooDeep)
	}
	if f.Label == "" {
		return types.Field{}, &types.ValidationError{Group: group, Field: f.Name, Reason: "display name is required"}
	}
	if len(f.Label) > types.MaxDisplayNameLength {
		return types.Field{}, &types.ValidationError{Group: group, Field: f.Label, Reason: "display name too long"}
	}
	if len(f.Name) > types.MaxMachineNameLength {
		return types.Field{}, &types.ValidationError{Group: group, Field: f.Label, Reason: "machine name too long"}
	}

	// Display-name uniqueness pre-check under the group lock. The unique
	// index backs the same invariant against concurrent processes.
	taken, err := s.displayNameTaken(ctx, units.Definition, f.Label)
	if err != nil {
		return types.Field{}, fmt.Errorf("add field %q to group %q: %w", f.Label, group, err)
	}
	if taken {
		return types.Field{}, &types.DuplicateFieldNameError{Group: group, Name: f.Label}
	}

	blobs, err := schema.EncodeRowBlobs(f)
	if err != nil {
		return types.Field{}, fmt.Errorf("add field %q to group %q: %w", f.Label, group, err)
	}

	// Children live in a chained unit pair, not in the config blob.
	var childRefs string
	stored := f
	stored.ID = types.NewFieldID()
	if f.IsComposite() && len(f.Children) > 0 && f.Type != types.TypeFlexibleContent {
		childUnits, children, err := s.insertChain(ctx, group, units, f.Children, depth+1)
		if err != nil {
			return types.Field{}, err
		}
		childRefs, err = encodeChildRefs([]types.UnitRef{childUnits.Definition})
		if err != nil {
			return types.Field{}, fmt.Errorf("add field %q to group %q: %w", f.Label, group, err)
		}
		stored.Children = children
	} else {
		childRefs = "[]"
	}

	name := f.Name
	generated := name == ""
	if generated {
		name = truncateMachineName(idgen.Slugify(f.Label))
	}
	for attempt := 0; ; attempt++ {
		if name == "" {
			name, err = idgen.MachineName()
			if err != nil {
				return types.Field{}, fmt.Errorf("add field %q to group %q: %w", f.Label, group, err)
			}
		}
		_, err = s.q.Exec(ctx, "insert-definition-row",
			string(units.Definition), string(stored.ID), name, f.Label, f.Type, "",
			"", depth, childRefs, blobs.Config, "", blobs.Conditional,
			f.Type == types.TypeRepeater, f.MinRows, f.MaxRows,
			f.Config.String("layout"), blobs.FlexibleLayouts, order)
		if err == nil {
			break
		}
		if !isUniqueViolation(err) {
			return types.Field{}, fmt.Errorf("add field %q to group %q: %w", f.Label, group, err)
		}
		// The group lock only serializes writers in this process. A
		// concurrent process can take the display name between the
		// pre-check and the insert, so re-check which index fired before
		// blaming the machine name.
		taken, cerr := s.displayNameTaken(ctx, units.Definition, f.Label)
		if cerr != nil {
			return types.Field{}, fmt.Errorf("add field %q to group %q: %w", f.Label, group, cerr)
		}
		if taken {
			return types.Field{}, &types.DuplicateFieldNameError{Group: group, Name: f.Label}
		}
		// Machine name collision. Explicit names are the caller's to fix;
		// generated names get a random retry.
		if !generated || attempt+1 >= machineNameAttempts {
			return types.Field{}, &types.ValidationError{Group: group, Field: f.Label,
				Reason: fmt.Sprintf("machine name %q already in use", name)}
		}
		name = ""
	}

	stored.Name = name
	return stored, nil
}

// displayNameTaken reports whether a definition row with the given
// display name already exists in the unit.
func (s *Store) displayNameTaken(ctx context.Context, unit types.UnitRef, label string) (bool, error) {
	var clash defRow
	err := s.q.Get(ctx, "get-definition-row-by-display-name", &clash, string(unit), label)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, err
}

// insertChain creates a chained definition/value unit pair below a
// composite field and fills the definition side with children.
func (s *Store) insertChain(ctx context.Context, group string, parent UnitRefs, children []types.Field, depth int) (UnitRefs, []types.Field, error) {
	units := UnitRefs{Definition: types.NewUnitRef(), Value: types.NewUnitRef()}
	ts := now()
	// Chained units carry no group name: they belong to the parent row,
	// and group deletes must not cascade into them.
	if _, err := s.q.Exec(ctx, "insert-unit",
		string(units.Definition), "", unitKindDefinition, string(parent.Definition), string(units.Value), ts); err != nil {
		return UnitRefs{}, nil, fmt.Errorf("chained unit for group %q: %w", group, err)
	}
	if _, err := s.q.Exec(ctx, "insert-unit",
		string(units.Value), "", unitKindValue, string(parent.Value), string(units.Definition), ts); err != nil {
		return UnitRefs{}, nil, fmt.Errorf("chained unit for group %q: %w", group, err)
	}

	stored := make([]types.Field, 0, len(children))
	for i, child := range children {
		sc, err := s.insertField(ctx, group, units, child, depth, i)
		if err != nil {
			return UnitRefs{}, nil, err
		}
		stored = append(stored, sc)
	}
	return units, stored, nil
}

// UpdateField rewrites a field definition in place, keyed by machine
// name. The machine name and field ID never change; a display-name
// change is checked for uniqueness against the rest of the unit.
func (s *Store) UpdateField(ctx context.Context, group, machineName string, f types.Field) error {
	m := s.lockGroup(group)
	m.Lock()
	defer m.Unlock()

	rec, err := s.Group(ctx, group)
	if err != nil {
		return err
	}

	var current defRow
	err = s.q.Get(ctx, "get-definition-row-by-machine-name", &current, string(rec.Units.Definition), machineName)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("field %q in group %q: %w", machineName, group, types.ErrFieldNotFound)
	}
	if err != nil {
		return fmt.Errorf("update field %q in group %q: %w", machineName, group, err)
	}

	label := f.Label
	if label == "" {
		label = current.DisplayName
	}
	if len(label) > types.MaxDisplayNameLength {
		return &types.ValidationError{Group: group, Field: label, Reason: "display name too long"}
	}
	if label != current.DisplayName {
		var clash defRow
		err := s.q.Get(ctx, "get-definition-row-by-display-name", &clash, string(rec.Units.Definition), label)
		if err == nil {
			return &types.DuplicateFieldNameError{Group: group, Name: label}
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("update field %q in group %q: %w", machineName, group, err)
		}
	}

	blobs, err := schema.EncodeRowBlobs(f)
	if err != nil {
		return fmt.Errorf("update field %q in group %q: %w", machineName, group, err)
	}

	fieldType := f.Type
	if fieldType == "" {
		fieldType = current.FieldType
	}
	order := f.Config.Float("sort_order")
	sortOrder := current.SortOrder
	if f.Config.Has("sort_order") {
		sortOrder = int(order)
	}

	_, err = s.q.Exec(ctx, "update-definition-row",
		label, fieldType, blobs.Config, current.ValidationBlob, blobs.Conditional,
		fieldType == types.TypeRepeater, f.MinRows, f.MaxRows,
		f.Config.String("layout"), blobs.FlexibleLayouts, sortOrder,
		string(rec.Units.Definition), machineName)
	if err != nil {
		if isUniqueViolation(err) {
			return &types.DuplicateFieldNameError{Group: group, Name: label}
		}
		return fmt.Errorf("update field %q in group %q: %w", machineName, group, err)
	}
	return nil
}

// DeleteField removes a field definition and its stored values. Chained
// child units below the field are orphaned and logged, matching the
// group delete policy.
func (s *Store) DeleteField(ctx context.Context, group, machineName string) error {
	m := s.lockGroup(group)
	m.Lock()
	defer m.Unlock()

	rec, err := s.Group(ctx, group)
	if err != nil {
		return err
	}

	var row defRow
	err = s.q.Get(ctx, "get-definition-row-by-machine-name", &row, string(rec.Units.Definition), machineName)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("field %q in group %q: %w", machineName, group, types.ErrFieldNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete field %q in group %q: %w", machineName, group, err)
	}

	for _, ref := range decodeChildRefs(s.log, row) {
		s.log.Warn("field delete orphans nested storage unit",
			"group", group, "field", row.DisplayName, "unit", ref)
	}

	if _, err := s.q.Exec(ctx, "delete-definition-row", string(rec.Units.Definition), machineName); err != nil {
		return fmt.Errorf("delete field %q in group %q: %w", machineName, group, err)
	}
	if _, err := s.q.Exec(ctx, "delete-values-for-field", string(rec.Units.Value), machineName); err != nil {
		return fmt.Errorf("delete field %q values in group %q: %w", machineName, group, err)
	}
	return nil
}

// AddNestedFields chains a new unit pair below an existing field and
// fills it with the given definitions. The parent is addressed by the
// definition unit holding its row plus its field ID, so nesting applies
// at any depth of an existing chain, not just under top-level fields.
// The parent row's child ref list grows by one; existing chained units
// are untouched. Returns the new child definition unit's ref.
func (s *Store) AddNestedFields(ctx context.Context, parentUnit types.UnitRef, parentFieldID types.FieldID, children []types.Field) (types.UnitRef, error) {
	var u unitRow
	err := s.q.Get(ctx, "get-unit", &u, string(parentUnit))
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("unit %q: %w", parentUnit, types.ErrMissingStorageUnit)
	}
	if err != nil {
		return "", fmt.Errorf("nest under unit %q: %w", parentUnit, err)
	}

	group, err := s.owningGroup(ctx, u)
	if err != nil {
		return "", fmt.Errorf("nest under unit %q: %w", parentUnit, err)
	}
	m := s.lockGroup(group)
	m.Lock()
	defer m.Unlock()

	var parent defRow
	err = s.q.Get(ctx, "get-definition-row-by-field-id", &parent, string(parentUnit), string(parentFieldID))
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("field %q in unit %q: %w", parentFieldID, parentUnit, types.ErrFieldNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("nest under field %q in group %q: %w", parentFieldID, group, err)
	}

	parentPair := UnitRefs{Definition: parentUnit, Value: types.UnitRef(u.CounterpartUnitID)}
	units, _, err := s.insertChain(ctx, group, parentPair, children, parent.Depth+1)
	if err != nil {
		return "", err
	}

	refs := decodeChildRefs(s.log, parent)
	refs = append(refs, units.Definition)
	encoded, err := encodeChildRefs(refs)
	if err != nil {
		return "", fmt.Errorf("nest under field %q in group %q: %w", parent.MachineName, group, err)
	}
	if _, err := s.q.Exec(ctx, "update-definition-child-refs",
		encoded, string(parentUnit), parent.MachineName); err != nil {
		return "", fmt.Errorf("nest under field %q in group %q: %w", parent.MachineName, group, err)
	}
	return units.Definition, nil
}

// owningGroup walks a unit's parent chain up to the top-level unit that
// carries the group name. Chained units store an empty group name, so
// the writer lock for any nested operation keys off the walk's result.
func (s *Store) owningGroup(ctx context.Context, u unitRow) (string, error) {
	for depth := 0; depth <= types.MaxNestingDepth; depth++ {
		if u.GroupName != "" {
			return u.GroupName, nil
		}
		if u.ParentUnitID == "" {
			return "", fmt.Errorf("unit %q has no owning group: %w", u.UnitID, types.ErrInvalidNestingReference)
		}
		var next unitRow
		err := s.q.Get(ctx, "get-unit", &next, u.ParentUnitID)
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("unit %q parent %q: %w", u.UnitID, u.ParentUnitID, types.ErrMissingStorageUnit)
		}
		if err != nil {
			return "", err
		}
		u = next
	}
	return "", types.ErrNestingTooDeep
}

// SaveFields writes a whole field list: definitions whose machine name
// already exists in the unit are updated in place, the rest are
// appended. Used by schema document import, where re-running an import
// must not duplicate fields.
func (s *Store) SaveFields(ctx context.Context, group string, fields []types.Field) error {
	for _, f := range fields {
		if f.Name == "" {
			if _, err := s.AddField(ctx, group, f); err != nil {
				return err
			}
			continue
		}

		rec, err := s.Group(ctx, group)
		if err != nil {
			return err
		}
		var current defRow
		err = s.q.Get(ctx, "get-definition-row-by-machine-name", &current, string(rec.Units.Definition), f.Name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := s.AddField(ctx, group, f); err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("save fields for group %q: %w", group, err)
		default:
			if err := s.UpdateField(ctx, group, f.Name, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// nextSortOrder returns the next top-level sort position for a unit.
func (s *Store) nextSortOrder(ctx context.Context, unit types.UnitRef) (int, error) {
	var rows []defRow
	if err := s.q.Select(ctx, "select-definition-rows", &rows, string(unit)); err != nil {
		return 0, err
	}
	max := -1
	for _, r := range rows {
		if r.SortOrder > max {
			max = r.SortOrder
		}
	}
	return max + 1, nil
}

func truncateMachineName(name string) string {
	if len(name) > types.MaxMachineNameLength {
		return name[:types.MaxMachineNameLength]
	}
	return name
}
