// Package registry implements the field type capability registry.
//
// Each registered type supplies defaults, validation, sanitization and
// display formatting plus an opaque render contract consumed by external
// rendering layers. Lookup of an unregistered type never fails: it degrades
// to a generic passthrough implementation so a corrupt or
// forward-incompatible schema cannot block the other fields in a group.
package registry

import (
	"log/slog"
	"strings"

	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

/*
 * Registration model:
 *   - Built-ins registered at construction from a static list.
 *   - Extensions registered via Register before the registry is shared.
 *   - Re-registering a name overwrites the previous entry with a WARN log
 *     (last registration wins), never an error.
 *
 * The registry holds no persisted state; it is rebuilt at process start.
 * Map mutation relies on a single-writer assumption (process-init time),
 * so lookups take no lock.
 */

// Contract is the opaque renderable description for a type. The engine
// never interprets it; external rendering layers do.
type Contract struct {
	Widget     string            // renderer widget key (text, choice, rows, ...)
	Attributes map[string]string // widget hints, passed through verbatim
}

// FieldType is the capability set one registered type provides.
type FieldType interface {
	// Name returns the canonical (normalized) type name.
	Name() string

	// Defaults returns the baseline configuration merged under any
	// operator-supplied config at resolution time.
	Defaults() types.Config

	// Validate checks a sanitized value against the field configuration.
	// A nil error means the value is acceptable for storage.
	Validate(value any, cfg types.Config) error

	// Sanitize converts a raw inbound value to its clean stored form.
	Sanitize(raw any) any

	// Format converts a stored value to its display form.
	Format(value any) string

	// Contract returns the opaque render contract for this type.
	Contract() Contract
}

// Registry maps normalized type names to their implementations.
type Registry struct {
	byName   map[string]FieldType
	fallback FieldType
	log      *slog.Logger
}

// New builds a registry holding all built-in types plus the supplied
// extensions. Extensions may shadow built-ins (last registration wins).
func New(log *slog.Logger, extensions ...FieldType) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		byName:   make(map[string]FieldType),
		fallback: unknownType{},
		log:      log,
	}
	for _, ft := range builtins() {
		r.Register(ft)
	}
	for _, ft := range extensions {
		r.Register(ft)
	}
	return r
}

// Register adds or replaces a type under its normalized name.
// Overwriting an existing registration logs a warning, never errors.
func (r *Registry) Register(ft FieldType) {
	name := Normalize(ft.Name())
	if _, exists := r.byName[name]; exists {
		r.log.Warn("field type re-registered, previous implementation replaced",
			"type", name)
	}
	r.byName[name] = ft
}

// Lookup returns the implementation for a (possibly unnormalized) type
// name. Unknown names return the generic fallback and false; callers log
// the degradation but proceed.
func (r *Registry) Lookup(name string) (FieldType, bool) {
	if ft, ok := r.byName[Normalize(name)]; ok {
		return ft, true
	}
	return r.fallback, false
}

// Known reports whether a type name resolves to a registered type.
func (r *Registry) Known(name string) bool {
	_, ok := r.byName[Normalize(name)]
	return ok
}

// Names returns the registered type names, unordered.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}

// Normalize canonicalizes a type name: case-folded, separator variants
// collapsed to underscore, surrounding whitespace dropped. Schema rows
// written by older exporters carry spellings like "Flexible-Content".
func Normalize(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
