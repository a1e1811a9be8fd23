// internal/registry/unknown.go
package registry

import "github.com/fieldkeeper/fieldkeeper/internal/types"

// unknownType is the generic passthrough contract returned for
// unregistered type names. It treats values as opaque text so a schema
// written by a newer version, or a schema with a corrupt type column,
// never blocks the rest of its group.
type unknownType struct{}

func (unknownType) Name() string { return "unknown" }

func (unknownType) Defaults() types.Config { return types.Config{} }

// Validate accepts everything. The real type's constraints are not
// recoverable, and rejecting would destroy user input.
func (unknownType) Validate(value any, cfg types.Config) error { return nil }

// Sanitize passes values through untouched; lossy cleanup against an
// unknown contract would corrupt intent.
func (unknownType) Sanitize(raw any) any { return raw }

func (unknownType) Format(value any) string { return valueString(value) }

func (unknownType) Contract() Contract { return Contract{Widget: "text"} }
