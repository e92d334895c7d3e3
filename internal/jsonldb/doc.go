// Package jsonldb provides a generic, concurrent-safe, JSONL-backed record store.
//
// # Overview
//
// The package centers around [Table], a generic collection stored as a JSONL
// (JSON Lines) file. Every operation reads the whole file and every mutation
// rewrites it; there is no in-memory cache, so the file is the single source
// of truth.
//
// # Concurrency: Pessimistic Locking
//
// [Table.Modify] holds the table's exclusion scope for the entire
// read-modify-write cycle. Two cycles on the same table never interleave, so
// a concurrent append can't be lost. Each table has its own scope; there is no
// global lock. Waiting for the scope honors context cancellation.
//
// Readers ([Table.LoadAll]) do not take the scope. Writes go to a temporary
// file that is renamed over the target, so a reader always observes either the
// previous or the next complete file.
//
// # File Format
//
// One JSON object per line, in insertion order. Blank lines are ignored. A
// missing or empty file is an empty collection.
package jsonldb
