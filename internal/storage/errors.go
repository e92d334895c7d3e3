package storage

import (
	"errors"

	"github.com/maruel/postdb/internal/jsonldb"
)

// Errors returned by the repositories. Test with errors.Is.
var (
	// ErrDuplicateEmail is returned when registering an email that is already taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the requestor doesn't own the record.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput is returned when a required field is missing.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCorruptStore is returned in strict mode when a collection file can't be decoded.
	ErrCorruptStore = jsonldb.ErrCorrupt
	// ErrStoreUnavailable is returned when a collection file can't be read or written.
	ErrStoreUnavailable = jsonldb.ErrUnavailable
)
