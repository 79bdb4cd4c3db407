// Package dirutil creates and removes directories, and tracks the ones it
// created so they can be cleaned up when a larger operation fails.
package dirutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/isseis/go-script-extras/internal/common"
)

// Error definitions for the dirutil package
var (
	// ErrNotDirectory is returned when a path that must be a directory is something else
	ErrNotDirectory = errors.New("path exists and is not a directory")
	// ErrCleanupFailed is returned when removing managed directories fails
	ErrCleanupFailed = errors.New("directory cleanup failed")
)

var defaultManager = NewManager()

// CreateDirectory creates path and any missing parents. When the last path
// element has a file extension, the path is taken to name a file and its
// parent directory is created instead. Existing directories are not an error.
func CreateDirectory(path string) error {
	_, err := defaultManager.CreateDirectory(path)
	return err
}

// RemoveDirectory removes path and everything below it. A missing path is not an error.
func RemoveDirectory(path string) error {
	return defaultManager.RemoveDirectory(path)
}

// Manager creates directories and remembers which ones did not exist before.
type Manager struct {
	mu      sync.Mutex
	created []string // outermost first
	fs      common.FileSystem
}

// NewManager creates a Manager backed by the local disk.
func NewManager() *Manager {
	return NewManagerWithFS(common.NewDefaultFileSystem())
}

// NewManagerWithFS creates a Manager with a custom FileSystem
func NewManagerWithFS(fs common.FileSystem) *Manager {
	return &Manager{fs: fs}
}

// DirectoryFor returns the directory CreateDirectory would create for path.
func DirectoryFor(path string) string {
	path = filepath.Clean(path)
	if filepath.Ext(path) != "" {
		return filepath.Dir(path)
	}
	return path
}

// CreateDirectory creates the directory for path (see the package-level
// CreateDirectory) and returns it.
func (m *Manager) CreateDirectory(path string) (string, error) {
	if path == "" {
		return "", common.ErrEmptyPath
	}
	dir := DirectoryFor(path)
	return dir, m.create(dir)
}

// CreateParent creates the directory containing the file at path and
// returns it. Unlike CreateDirectory it does not guess from the extension.
func (m *Manager) CreateParent(path string) (string, error) {
	if path == "" {
		return "", common.ErrEmptyPath
	}
	dir := filepath.Dir(filepath.Clean(path))
	return dir, m.create(dir)
}

func (m *Manager) create(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	missing, err := m.missingAncestors(dir)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	if err := m.fs.MkdirAll(dir, common.DefaultDirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	m.created = append(m.created, missing[0])
	return nil
}

// missingAncestors returns dir and its ancestors that do not exist yet,
// outermost first.
func (m *Manager) missingAncestors(dir string) ([]string, error) {
	var missing []string
	for current := dir; ; current = filepath.Dir(current) {
		exists, err := m.fs.FileExists(current)
		// ENOTDIR means a file sits further up; keep walking to report it.
		if err != nil && !errors.Is(err, syscall.ENOTDIR) {
			return nil, fmt.Errorf("failed to check %s: %w", current, err)
		}
		if exists {
			isDir, err := m.fs.IsDir(current)
			if err != nil {
				return nil, fmt.Errorf("failed to check %s: %w", current, err)
			}
			if !isDir {
				return nil, fmt.Errorf("%w: %s", ErrNotDirectory, current)
			}
			break
		}
		missing = append([]string{current}, missing...)
		if filepath.Dir(current) == current {
			break
		}
	}
	return missing, nil
}

// RemoveDirectory removes path recursively. A missing path is not an error.
func (m *Manager) RemoveDirectory(path string) error {
	if path == "" {
		return common.ErrEmptyPath
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	isDir, err := m.fs.IsDir(path)
	switch {
	case err != nil:
		exists, existsErr := m.fs.FileExists(path)
		if existsErr == nil && !exists {
			return nil
		}
		return fmt.Errorf("failed to check %s: %w", path, err)
	case !isDir:
		return fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}

	if err := m.fs.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove directory %s: %w", path, err)
	}
	return nil
}

// Created returns the outermost directories created by this Manager.
func (m *Manager) Created() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.created))
	copy(out, m.created)
	return out
}

// CleanupAll removes every directory tree this Manager created, newest first.
func (m *Manager) CleanupAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	var kept []string
	for i := len(m.created) - 1; i >= 0; i-- {
		path := m.created[i]
		if err := m.fs.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to cleanup %s: %w", path, err))
			kept = append([]string{path}, kept...)
		}
	}
	m.created = kept

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrCleanupFailed, errors.Join(errs...))
	}
	return nil
}
