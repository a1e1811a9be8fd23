package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for FieldKeeper operations.
var (
	// ErrDuplicateFieldName indicates a display name already in use
	// within the target definition unit.
	ErrDuplicateFieldName = errors.New("duplicate field name")

	// ErrUnknownType indicates an unregistered field type. Resolution
	// degrades to the generic fallback contract rather than failing.
	ErrUnknownType = errors.New("unknown field type")

	// ErrMissingStorageUnit indicates a group was referenced but its
	// storage units were never created.
	ErrMissingStorageUnit = errors.New("storage unit not found")

	// ErrInvalidNestingReference indicates a child unit reference points
	// to a non-existent unit. Treated as an empty nested group.
	ErrInvalidNestingReference = errors.New("invalid nested unit reference")

	// ErrMalformedConditionalRule indicates a visibility rule missing
	// atoms or logic. Treated as always visible.
	ErrMalformedConditionalRule = errors.New("malformed conditional rule")

	// ErrMalformedLocationRule indicates a location rule with an unknown
	// operator. Treated as non-matching (fails closed).
	ErrMalformedLocationRule = errors.New("malformed location rule")

	// ErrValidationFailed indicates a per-field value was rejected by
	// its type's validator.
	ErrValidationFailed = errors.New("validation failed")

	// ErrGroupNotFound indicates no field group is registered under the
	// requested name.
	ErrGroupNotFound = errors.New("field group not found")

	// ErrFieldNotFound indicates no field exists under the requested
	// identifier within the target definition unit.
	ErrFieldNotFound = errors.New("field not found")

	// ErrNestingTooDeep indicates a nested unit chain exceeding
	// MaxNestingDepth, which only happens on a corrupted unit graph.
	ErrNestingTooDeep = errors.New("nested unit chain exceeds maximum depth")
)

// DuplicateFieldNameError reports which group and display name collided,
// in a form an operator can act on.
type DuplicateFieldNameError struct {
	Group string
	Name  string
}

func (e *DuplicateFieldNameError) Error() string {
	return fmt.Sprintf("a field named %q already exists in group %q", e.Name, e.Group)
}

// Unwrap makes the error match errors.Is(err, ErrDuplicateFieldName).
func (e *DuplicateFieldNameError) Unwrap() error { return ErrDuplicateFieldName }

// ValidationError reports which group, field and operation rejected a
// value and why.
type ValidationError struct {
	Group  string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q in group %q: %s", e.Field, e.Group, e.Reason)
}

// Unwrap makes the error match errors.Is(err, ErrValidationFailed).
func (e *ValidationError) Unwrap() error { return ErrValidationFailed }
