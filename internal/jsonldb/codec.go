// Encodes and decodes collections as JSON Lines.

package jsonldb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
)

// maxLineSize bounds a single encoded row.
const maxLineSize = 16 * 1024 * 1024

// Encode serializes rows as JSONL, one compact JSON object per line.
//
// The output is deterministic for a given input: fields are emitted in struct
// declaration order.
func Encode[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, row := range rows {
		// Encoder.Encode appends the trailing newline.
		if err := enc.Encode(row); err != nil {
			return nil, fmt.Errorf("failed to marshal row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Decode parses JSONL data produced by [Encode].
//
// Nil or empty data yields an empty, non-nil slice. If any line fails to
// parse, Decode returns an empty slice and an error wrapping [ErrCorrupt]; the
// caller decides whether that is fatal.
func Decode[T any](data []byte) ([]T, error) {
	rows := []T{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(b, &row); err != nil {
			return []T{}, fmt.Errorf("%w: line %d: %w", ErrCorrupt, line, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return []T{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return rows, nil
}
