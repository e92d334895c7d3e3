package jsonldb

import "errors"

var (
	// ErrCorrupt is returned when a table file exists but can't be decoded.
	ErrCorrupt = errors.New("jsonldb: corrupt table file")
	// ErrUnavailable is returned when the backing file can't be read or written.
	ErrUnavailable = errors.New("jsonldb: storage unavailable")
)
