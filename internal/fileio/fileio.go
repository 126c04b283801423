// Package fileio wraps the filesystem operations the edit protocol needs.
// A missing file is always distinguishable from other failures via
// errors.Is(err, fs.ErrNotExist).
package fileio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Read returns the contents of the file at path.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write replaces the file at path with text, creating parent directories
// when they do not exist yet.
func Write(path, text string) error {
	err := os.WriteFile(path, []byte(text), 0o644)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directory: %w", err)
		}
		return os.WriteFile(path, []byte(text), 0o644)
	}
	return err
}

// Create makes an empty file at path, creating parent directories when
// needed. An existing file is an error satisfying
// errors.Is(err, fs.ErrExist); the existence check and the creation are one
// atomic operation, so concurrent creates of the same path cannot both
// succeed.
func Create(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directory: %w", err)
		}
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return err
	}
	return f.Close()
}

// CreateDir creates the directory at path, including missing parents.
// An existing directory is not an error.
func CreateDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// Delete removes the file or directory at path. Directories are removed
// recursively.
func Delete(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return os.RemoveAll(path)
	}
	return os.Remove(path)
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
