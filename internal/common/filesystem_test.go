package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFileSystem_MkdirAllAndRemoveAll(t *testing.T) {
	fs := NewDefaultFileSystem()
	base := t.TempDir()
	nested := filepath.Join(base, "a", "b", "c")

	require.NoError(t, fs.MkdirAll(nested, DefaultDirPerm))
	isDir, err := fs.IsDir(nested)
	require.NoError(t, err)
	assert.True(t, isDir)

	require.NoError(t, fs.RemoveAll(filepath.Join(base, "a")))
	exists, err := fs.FileExists(nested)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDefaultFileSystem_FileExists(t *testing.T) {
	fs := NewDefaultFileSystem()
	file := filepath.Join(t.TempDir(), "f.txt")

	exists, err := fs.FileExists(file)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	exists, err = fs.FileExists(file)
	require.NoError(t, err)
	assert.True(t, exists)

	isDir, err := fs.IsDir(file)
	require.NoError(t, err)
	assert.False(t, isDir)
}

func TestDefaultFileSystem_Lstat(t *testing.T) {
	fs := NewDefaultFileSystem()
	_, err := fs.Lstat(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMockFileSystem(t *testing.T) {
	fs := NewMockFileSystem()

	require.NoError(t, fs.MkdirAll("/data/out", 0o750))
	assert.Equal(t, []string{"/", "/data", "/data/out"}, fs.Paths())

	fs.AddFile("/data/out/a.csv", 0o644, []byte("abc"))
	err := fs.MkdirAll("/data/out/a.csv/sub", DefaultDirPerm)
	assert.ErrorIs(t, err, os.ErrExist)

	require.NoError(t, fs.RemoveAll("/data"))
	assert.Equal(t, []string{"/"}, fs.Paths())

	_, err = fs.IsDir("/data")
	assert.ErrorIs(t, err, os.ErrNotExist)

	injected := errors.New("injected")
	fs.MkdirAllErr = injected
	assert.ErrorIs(t, fs.MkdirAll("/x", DefaultDirPerm), injected)
}

func TestContainsPathTraversalSegment(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "a/b/c.txt", want: false},
		{path: "archive..zip", want: false},
		{path: "../etc/passwd", want: true},
		{path: "a/../../b", want: true},
		{path: `a\..\b`, want: true},
		{path: "..", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsPathTraversalSegment(tt.path))
		})
	}
}

func TestIsWithinDir(t *testing.T) {
	base := filepath.Join("tmp", "out")
	assert.True(t, IsWithinDir(base, base))
	assert.True(t, IsWithinDir(base, filepath.Join(base, "a", "b")))
	assert.True(t, IsWithinDir(base, filepath.Join(base, "..data")))
	assert.False(t, IsWithinDir(base, filepath.Join("tmp", "other")))
	assert.False(t, IsWithinDir(base, filepath.Join(base, "..", "escape")))
}
