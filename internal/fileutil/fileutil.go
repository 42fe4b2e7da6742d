// Package fileutil holds the small filesystem primitives shared by the
// extractor, transformer, and packer.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
)

// Retry bounds for RemoveUntilGone.
const (
	removeAttempts = 8
	removeBackoff  = 10 * time.Millisecond
)

// CreateExclusive opens path for writing, failing when it already exists.
func CreateExclusive(path string, mode os.FileMode) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
}

// WriteExclusive streams r into a newly created file at path. A pre-existing
// path is an error. On a copy failure the partial file is removed.
func WriteExclusive(path string, r io.Reader, mode os.FileMode) (int64, error) {
	out, err := CreateExclusive(path, mode)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(out, r)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return written, fmt.Errorf("copy to %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return written, fmt.Errorf("close %s: %w", path, err)
	}
	return written, nil
}

// EnsureDir creates path and its parents. Another worker creating the same
// directory concurrently is not an error.
func EnsureDir(path string) error {
	err := os.MkdirAll(path, 0o755)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			return nil
		}
	}
	return err
}

// RemoveUntilGone deletes path, retrying a bounded number of times while the
// file still exists. A path that is already absent counts as success.
func RemoveUntilGone(path string) error {
	var lastErr error
	for attempt := 0; attempt < removeAttempts; attempt++ {
		err := os.Remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			if _, statErr := os.Lstat(path); errors.Is(statErr, fs.ErrNotExist) {
				return nil
			}
		} else {
			lastErr = err
		}
		time.Sleep(removeBackoff * time.Duration(attempt+1))
	}
	if lastErr == nil {
		lastErr = errors.New("file still present")
	}
	return fmt.Errorf("remove %s after %d attempts: %w", path, removeAttempts, lastErr)
}
