package jsonldb

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a 128-bit random record identifier.
//
// IDs are generated without looking at existing records; the collision
// probability of 122 random bits is treated as negligible.
type ID uuid.UUID

// NewID returns a new random (version 4) ID.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID parses the canonical string form of an ID.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("invalid ID %q: %w", s, err)
	}
	return ID(u), nil
}

// String returns the canonical 36-character form, or "" for the zero ID.
func (id ID) String() string {
	if id.IsZero() {
		return ""
	}
	return uuid.UUID(id).String()
}

// IsZero returns true if the ID is the zero value.
func (id ID) IsZero() bool {
	return id == ID{}
}

// MarshalText implements encoding.TextMarshaler.
// Zero IDs are marshaled as empty strings.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// Empty strings are unmarshaled as zero IDs.
func (id *ID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = ID{}
		return nil
	}
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
