// Package media stores uploaded files by content.
//
// Files are named after the SHA-256 of their content, so identical uploads
// share one file and a stored file never changes.
package media

import (
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// URLPrefix is the path under which media is served.
const URLPrefix = "/media/"

const tmpDirName = "tmp"

var (
	// ErrInvalidRef is returned for a malformed reference.
	ErrInvalidRef = errors.New("media: invalid reference")
	// ErrEmpty is returned when storing zero bytes.
	ErrEmpty = errors.New("media: empty content")
)

// base32Enc is lowercase base32 "Extended Hex" (0-9a-v), which sorts the same
// as the raw hash.
var base32Enc = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)

// hashLen is the length of an encoded SHA-256.
const hashLen = 52

// Ref is a content reference in the format "<base32hex sha256>-<size>".
type Ref string

// Validate checks the reference format.
func (r Ref) Validate() error {
	// 52 base32 + "-" + at least 1 digit.
	if len(r) < hashLen+2 || r[hashLen] != '-' {
		return ErrInvalidRef
	}
	for i := range hashLen {
		c := r[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'v') {
			return ErrInvalidRef
		}
	}
	for i := hashLen + 1; i < len(r); i++ {
		if r[i] < '0' || r[i] > '9' {
			return ErrInvalidRef
		}
	}
	return nil
}

// Path returns the URL path serving the content of ref.
func Path(ref Ref) string {
	return URLPrefix + string(ref)
}

// ParsePath extracts and validates the reference from a path returned by
// [Path].
func ParsePath(p string) (Ref, error) {
	s, ok := strings.CutPrefix(p, URLPrefix)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, p)
	}
	ref := Ref(s)
	if err := ref.Validate(); err != nil {
		return "", fmt.Errorf("%w: %q", err, p)
	}
	return ref, nil
}

// Store manages content-addressed files in a directory.
//
// Files are organized with 256-way fan-out: <dir>/<ref[:2]>/<ref>.
// Temporary files during write are stored in <dir>/tmp/<random>.tmp.
type Store struct {
	dir string
}

// New returns a Store rooted at dir, removing temporary files left by an
// interrupted upload.
func New(dir string) (*Store, error) {
	s := &Store{dir: dir}
	if err := os.MkdirAll(filepath.Join(dir, tmpDirName), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	if err := s.cleanupTmpDir(); err != nil {
		return nil, err
	}
	return s, nil
}

// Put streams r to the store and returns its reference.
//
// Data is written to a temp file while being hashed, then renamed to its
// content-addressed location. Storing content that already exists is a no-op.
func (s *Store) Put(r io.Reader) (Ref, error) {
	f, err := os.CreateTemp(filepath.Join(s.dir, tmpDirName), "*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := f.Name()
	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, h), r)
	if err != nil {
		return "", errors.Join(fmt.Errorf("failed to write media: %w", err), f.Close(), os.Remove(tmpPath))
	}
	if err := f.Close(); err != nil {
		return "", errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmpPath))
	}
	if size == 0 {
		return "", errors.Join(ErrEmpty, os.Remove(tmpPath))
	}

	ref := Ref(fmt.Sprintf("%s-%d", base32Enc.EncodeToString(h.Sum(nil)), size))
	if err := os.MkdirAll(filepath.Join(s.dir, string(ref[:2])), 0o750); err != nil {
		return "", errors.Join(fmt.Errorf("failed to create media subdirectory: %w", err), os.Remove(tmpPath))
	}
	target := s.pathForRef(ref)
	if _, err := os.Stat(target); err == nil {
		if err := os.Remove(tmpPath); err != nil {
			return "", fmt.Errorf("failed to remove temp file: %w", err)
		}
		return ref, nil
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return "", errors.Join(fmt.Errorf("failed to rename media to final location: %w", err), os.Remove(tmpPath))
	}
	return ref, nil
}

// Exists reports whether ref is stored.
func (s *Store) Exists(ref Ref) bool {
	if ref.Validate() != nil {
		return false
	}
	fi, err := os.Stat(s.pathForRef(ref))
	return err == nil && fi.Mode().IsRegular()
}

// Open opens the content of ref for reading. The caller must close the file.
func (s *Store) Open(ref Ref) (*os.File, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.pathForRef(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to open media: %w", err)
	}
	return f, nil
}

func (s *Store) pathForRef(ref Ref) string {
	return filepath.Join(s.dir, string(ref[:2]), string(ref))
}

// cleanupTmpDir removes all .tmp files from the temp directory.
func (s *Store) cleanupTmpDir() error {
	dir := filepath.Join(s.dir, tmpDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read tmp directory: %w", err)
	}
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".tmp") {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				errs = append(errs, fmt.Errorf("failed to remove temp file %s: %w", entry.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
