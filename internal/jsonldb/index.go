// Builds in-memory lookup maps over a loaded snapshot.

package jsonldb

// IndexBy returns a map from key to row built from a snapshot returned by
// [Table.LoadAll].
//
// The map is not kept in sync with the table; rebuild it after the next load.
// When several rows share a key, the last one wins.
func IndexBy[K comparable, T any](rows []T, keyFunc func(T) K) map[K]T {
	m := make(map[K]T, len(rows))
	for _, row := range rows {
		m[keyFunc(row)] = row
	}
	return m
}
