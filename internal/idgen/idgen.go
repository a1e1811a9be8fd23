// Package idgen provides short, URL-safe machine-name generation backed by nanoid.
//
// Machine names are the storage-facing keys for fields (value rows are keyed
// by machine name + record id). Display names are the user-facing uniqueness
// boundary; machine names only need to be unique within one definition unit,
// collision probability at 10 random characters is negligible but callers
// still retry on the unit's unique index.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultPrefix is prepended to every generated machine name.
var DefaultPrefix = "field_"

// Alphabet defines the character set used for the random portion.
// Lowercase alphanumerics only: machine names end up in SQL identifiers
// and serialized documents, so no case-sensitivity surprises.
var Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// MachineName returns a new machine name using the default prefix.
func MachineName() (string, error) {
	return MachineNameWithPrefix(DefaultPrefix)
}

// MachineNameWithPrefix returns a new machine name with the given prefix.
func MachineNameWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// Slugify converts a display name to a deterministic machine-name stem:
// lowercased, runs of non-alphanumerics collapsed to single underscores.
// Used for human-readable machine names when importing schema documents
// that carry explicit field names.
func Slugify(display string) string {
	var b strings.Builder
	lastUnderscore := true // trim leading separators
	for _, r := range strings.ToLower(display) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
