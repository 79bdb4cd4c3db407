package common

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MockFileSystem implements FileSystem in memory for testing
type MockFileSystem struct {
	files map[string]*MockFileInfo

	// MkdirAllErr and RemoveAllErr, when set, are returned by the matching operation.
	MkdirAllErr  error
	RemoveAllErr error
}

// MockFileInfo implements fs.FileInfo for testing
type MockFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
	isDir   bool
}

// Name returns the base name of the file
func (m *MockFileInfo) Name() string { return m.name }

// Size returns the length in bytes
func (m *MockFileInfo) Size() int64 { return m.size }

// Mode returns the file mode bits
func (m *MockFileInfo) Mode() os.FileMode { return m.mode }

// ModTime returns the modification time
func (m *MockFileInfo) ModTime() time.Time { return m.modTime }

// IsDir reports whether m describes a directory
func (m *MockFileInfo) IsDir() bool { return m.isDir }

// Sys returns nil
func (m *MockFileInfo) Sys() any { return nil }

// NewMockFileSystem creates a new MockFileSystem containing only "/"
func NewMockFileSystem() *MockFileSystem {
	m := &MockFileSystem{files: make(map[string]*MockFileInfo)}
	m.AddDir("/", DefaultDirPerm)
	return m
}

// MkdirAll creates directories and all parent directories in the mock filesystem
func (m *MockFileSystem) MkdirAll(path string, perm os.FileMode) error {
	if m.MkdirAllErr != nil {
		return m.MkdirAllErr
	}
	path = filepath.Clean(path)

	var missing []string
	for current := path; ; current = filepath.Dir(current) {
		if info, ok := m.files[current]; ok {
			if !info.isDir {
				return &fs.PathError{Op: "mkdir", Path: current, Err: fs.ErrExist}
			}
			break
		}
		missing = append(missing, current)
		if filepath.Dir(current) == current {
			break
		}
	}

	for i := len(missing) - 1; i >= 0; i-- {
		m.AddDir(missing[i], perm)
	}
	return nil
}

// RemoveAll removes a path and everything below it from the mock filesystem
func (m *MockFileSystem) RemoveAll(path string) error {
	if m.RemoveAllErr != nil {
		return m.RemoveAllErr
	}
	path = filepath.Clean(path)

	delete(m.files, path)
	prefix := path + string(filepath.Separator)
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			delete(m.files, p)
		}
	}
	return nil
}

// Lstat returns file information for the given path
func (m *MockFileSystem) Lstat(path string) (fs.FileInfo, error) {
	info, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, &fs.PathError{Op: "lstat", Path: path, Err: fs.ErrNotExist}
	}
	return info, nil
}

// FileExists checks if a file or directory exists in the mock filesystem
func (m *MockFileSystem) FileExists(path string) (bool, error) {
	_, ok := m.files[filepath.Clean(path)]
	return ok, nil
}

// IsDir checks if the path is a directory in the mock filesystem
func (m *MockFileSystem) IsDir(path string) (bool, error) {
	info, err := m.Lstat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// AddFile adds a file, and its missing parents, to the mock filesystem
func (m *MockFileSystem) AddFile(path string, mode os.FileMode, content []byte) {
	path = filepath.Clean(path)
	_ = m.MkdirAll(filepath.Dir(path), DefaultDirPerm)
	m.files[path] = &MockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(content)),
		mode:    mode,
		modTime: time.Now(),
	}
}

// AddDir adds a directory to the mock filesystem
func (m *MockFileSystem) AddDir(path string, mode os.FileMode) {
	path = filepath.Clean(path)
	m.files[path] = &MockFileInfo{
		name:    filepath.Base(path),
		mode:    mode | os.ModeDir,
		modTime: time.Now(),
		isDir:   true,
	}
}

// Paths returns every path in the mock filesystem, sorted
func (m *MockFileSystem) Paths() []string {
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
