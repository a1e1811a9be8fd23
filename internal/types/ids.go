package types

import (
	"time"

	"github.com/google/uuid"
)

// NewUnitRef generates a UUIDv7 storage unit reference.
// Time-ordered refs ensure sequential inserts cluster in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewUnitRef() UnitRef {
	return UnitRef(uuid.Must(uuid.NewV7()).String())
}

// NewFieldID generates a UUIDv7 field identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewFieldID() FieldID {
	return FieldID(uuid.Must(uuid.NewV7()).String())
}

// ParseUnitRef validates and converts a string to UnitRef.
// Rejects malformed UUIDs so dangling junk never enters the unit arena.
func ParseUnitRef(s string) (UnitRef, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return UnitRef(s), nil
}

// ParseFieldID validates and converts a string to FieldID.
func ParseFieldID(s string) (FieldID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return FieldID(s), nil
}

// FieldIDTime extracts the timestamp embedded in a UUIDv7 field ID.
// Creation-order tiebreaks use this without a database lookup.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func FieldIDTime(id FieldID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
