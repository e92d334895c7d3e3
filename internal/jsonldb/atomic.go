package jsonldb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path so that readers never observe a partial
// file.
//
// The data is written to a temporary file in the same directory, synced, and
// renamed over path. On failure the temporary file is removed and path is left
// untouched.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := f.Name()
	if _, err := f.Write(data); err != nil {
		return errors.Join(fmt.Errorf("failed to write %s: %w", tmpPath, err), f.Close(), os.Remove(tmpPath))
	}
	if err := f.Sync(); err != nil {
		return errors.Join(fmt.Errorf("failed to sync %s: %w", tmpPath, err), f.Close(), os.Remove(tmpPath))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close %s: %w", tmpPath, err), os.Remove(tmpPath))
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return errors.Join(fmt.Errorf("failed to chmod %s: %w", tmpPath, err), os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Join(fmt.Errorf("failed to rename %s to %s: %w", tmpPath, path, err), os.Remove(tmpPath))
	}
	return nil
}
