package jsonldb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"
)

// Option configures a [Table].
type Option func(*options)

type options struct {
	strict bool
	logger *slog.Logger
}

// WithStrict makes corrupt table files an error instead of an empty collection.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithLogger sets the logger used to report corrupt files. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Table handles storage for a single collection in JSONL format.
//
// Each Table owns its file exclusively. Create at most one Table per path.
type Table[T any] struct {
	path   string
	opts   options
	writer *semaphore.Weighted
}

// NewTable creates a new Table backed by path, creating the parent directory
// if needed. The file itself is created on first write.
func NewTable[T any](path string, opts ...Option) (*Table[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	t := &Table[T]{
		path:   path,
		writer: semaphore.NewWeighted(1),
	}
	for _, o := range opts {
		o(&t.opts)
	}
	if t.opts.logger == nil {
		t.opts.logger = slog.Default()
	}
	return t, nil
}

// Path returns the backing file path.
func (t *Table[T]) Path() string {
	return t.path
}

// LoadAll reads and decodes the whole collection.
//
// A missing file is an empty collection. A corrupt file is an empty
// collection in lenient mode (and is logged) or an error wrapping [ErrCorrupt]
// in strict mode.
func (t *Table[T]) LoadAll(ctx context.Context) ([]T, error) {
	rows, err := t.load()
	if errors.Is(err, ErrCorrupt) && !t.opts.strict {
		t.opts.logger.WarnContext(ctx, "Treating corrupt table as empty", "path", t.path, "err", err)
		return rows, nil
	}
	return rows, err
}

// ReplaceAll persists rows as the whole collection, replacing the file
// atomically.
func (t *Table[T]) ReplaceAll(ctx context.Context, rows []T) error {
	if err := t.writer.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for %s: %w", t.path, err)
	}
	defer t.writer.Release(1)
	return t.save(rows)
}

// Modify runs one read-modify-write cycle.
//
// The table's exclusion scope is held from the load until the save completes,
// so concurrent cycles are linearized. fn receives the current rows and
// returns the rows to persist. If fn returns an error, nothing is written and
// the error is returned as is. The scope is released on every exit path.
func (t *Table[T]) Modify(ctx context.Context, fn func(rows []T) ([]T, error)) error {
	if err := t.writer.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for %s: %w", t.path, err)
	}
	defer t.writer.Release(1)

	rows, err := t.load()
	if errors.Is(err, ErrCorrupt) && !t.opts.strict {
		// Keep the bytes around; the save below would otherwise erase them.
		if qerr := t.quarantine(ctx, err); qerr != nil {
			return qerr
		}
		err = nil
	}
	if err != nil {
		return err
	}
	rows, err = fn(rows)
	if err != nil {
		return err
	}
	return t.save(rows)
}

// Append adds a row at the end of the collection.
func (t *Table[T]) Append(ctx context.Context, row T) error {
	return t.Modify(ctx, func(rows []T) ([]T, error) {
		return append(rows, row), nil
	})
}

// UpdateWhere replaces every row matching pred with mutate(row) and returns
// the number of rows changed. Nothing is written when no row matches.
func (t *Table[T]) UpdateWhere(ctx context.Context, pred func(T) bool, mutate func(T) T) (int, error) {
	n := 0
	err := t.Modify(ctx, func(rows []T) ([]T, error) {
		for i := range rows {
			if pred(rows[i]) {
				rows[i] = mutate(rows[i])
				n++
			}
		}
		if n == 0 {
			return nil, errNoChange
		}
		return rows, nil
	})
	if errors.Is(err, errNoChange) {
		return 0, nil
	}
	return n, err
}

// RemoveWhere deletes every row matching pred and returns the number of rows
// removed. Nothing is written when no row matches.
func (t *Table[T]) RemoveWhere(ctx context.Context, pred func(T) bool) (int, error) {
	n := 0
	err := t.Modify(ctx, func(rows []T) ([]T, error) {
		kept := rows[:0]
		for _, row := range rows {
			if pred(row) {
				n++
				continue
			}
			kept = append(kept, row)
		}
		if n == 0 {
			return nil, errNoChange
		}
		return kept, nil
	})
	if errors.Is(err, errNoChange) {
		return 0, nil
	}
	return n, err
}

// errNoChange aborts a Modify cycle without writing.
var errNoChange = errors.New("no change")

func (t *Table[T]) load() ([]T, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("%w: failed to read table file %s: %w", ErrUnavailable, t.path, err)
	}
	rows, err := Decode[T](data)
	if err != nil {
		return rows, fmt.Errorf("%s: %w", t.path, err)
	}
	return rows, nil
}

func (t *Table[T]) save(rows []T) error {
	data, err := Encode(rows)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(t.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// quarantine moves a corrupt file aside so its content survives the next save.
// Must be called with the exclusion scope held.
func (t *Table[T]) quarantine(ctx context.Context, cause error) error {
	dst := t.path + ".corrupt-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := os.Rename(t.path, dst); err != nil {
		return fmt.Errorf("%w: failed to quarantine %s: %w", ErrUnavailable, t.path, err)
	}
	t.opts.logger.ErrorContext(ctx, "Quarantined corrupt table file", "path", t.path, "moved_to", dst, "err", cause)
	return nil
}
