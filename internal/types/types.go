// Package types provides domain models shared across FieldKeeper components.
//
// Zero-dependency design: types.go, rules.go and errors.go use only the
// standard library so the schema model can be consumed without pulling in
// storage or CLI dependencies. ID utilities in ids.go import uuid but are
// isolated for selective inclusion.
package types

import (
	"strconv"
	"strings"
)

// UnitRef is an opaque reference to a storage unit (definition or value).
// String alias enables type safety while maintaining JSON string serialization.
// UUIDv7 time-ordering ensures sequential refs cluster in B-tree indexes.
type UnitRef string

// FieldID is a stable field identifier, unique within its owning group,
// assigned at creation and never reused.
type FieldID string

// RecordID identifies a record in the host content system.
type RecordID int64

// Config is a type-specific, open-ended field configuration map.
// Unknown extra keys are preserved verbatim for forward compatibility;
// typed accessors default safely on absence or type mismatch.
type Config map[string]any

// String returns the string value for key, or empty string when absent
// or not a string.
func (c Config) String(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// Bool returns the boolean value for key. Accepts bool and the string
// forms "1"/"true" which appear in imported schema documents.
func (c Config) Bool(key string) bool {
	switch v := c[key].(type) {
	case bool:
		return v
	case string:
		return v == "1" || v == "true"
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

// Float returns the numeric value for key, or 0 when absent or
// non-numeric. Numeric strings are parsed.
func (c Config) Float(key string) float64 {
	switch v := c[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Has reports whether key is present at all.
func (c Config) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Slice returns the list value for key, or nil when absent or not a list.
func (c Config) Slice(key string) []any {
	if v, ok := c[key].([]any); ok {
		return v
	}
	return nil
}

// Map returns the nested map value for key, or nil when absent.
func (c Config) Map(key string) map[string]any {
	if v, ok := c[key].(map[string]any); ok {
		return v
	}
	return nil
}

// Clone returns a shallow copy one level deep. Sufficient for applying
// type defaults without mutating the caller's map.
func (c Config) Clone() Config {
	if c == nil {
		return Config{}
	}
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Field is one node in a schema tree. Composite types (group, repeater,
// flexible_content) carry Children or Layouts; leaf types carry neither.
type Field struct {
	ID          FieldID          // stable identifier, never reused
	Name        string           // machine key, unique among siblings
	Label       string           // human display text
	Type        string           // normalized type name (registry key)
	Config      Config           // open-ended per-type configuration
	Children    []Field          // group/repeater sub fields
	Layouts     []Layout         // flexible_content layouts, ordered
	Conditional *ConditionalRule // visibility rule, nil = always visible
	MinRows     int              // repeater only, 0 = unbounded
	MaxRows     int              // repeater only, 0 = unbounded
}

// IsComposite reports whether the field owns a nested field set.
func (f *Field) IsComposite() bool {
	switch f.Type {
	case TypeGroup, TypeRepeater, TypeFlexibleContent:
		return true
	}
	return false
}

// Layout is one named variant field-set within a flexible_content field.
// Layouts never nest further flexible_content fields.
type Layout struct {
	Name   string
	Label  string
	Fields []Field
}

// FieldGroup is the schema root: a named, reusable set of field
// definitions attached to content via location rules.
type FieldGroup struct {
	Name     string // globally unique
	Label    string
	Fields   []Field // ordered top-level fields
	Location []LocationRule
}

// Context carries the attributes of a content context a group may attach
// to: content-type id/slug, taxonomy-term membership, and any other
// declared attributes. Values are compared by the location matcher.
type Context map[string]any

// Attribute returns the raw context value for name, nil when absent.
func (c Context) Attribute(name string) any {
	return c[name]
}

// Well-known composite type names after normalization.
const (
	TypeGroup           = "group"
	TypeRepeater        = "repeater"
	TypeFlexibleContent = "flexible_content"
)

// Resource limits enforced across the engine.
const (
	// MaxNestingDepth bounds recursive schema resolution. Nesting is
	// realized through chained storage units so the logical tree can be
	// deep, but resolution refuses to follow reference chains past this
	// depth to survive corrupted unit graphs.
	MaxNestingDepth = 16

	// MaxMachineNameLength bounds generated machine names so they fit
	// composite unique indexes on every supported backend.
	MaxMachineNameLength = 64

	// MaxDisplayNameLength bounds operator-supplied display names.
	MaxDisplayNameLength = 190

	// MaxInSetValues limits in/not_in rule sets to prevent quadratic
	// comparison cost on pathological rules.
	MaxInSetValues = 64
)
