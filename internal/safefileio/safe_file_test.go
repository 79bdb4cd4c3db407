package safefileio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultFS wraps the real file system and injects failures into temp files.
type faultFS struct {
	osFS
	writeErr  error
	syncErr   error
	closeErr  error
	renameErr error
	created   []string
}

type faultFile struct {
	File
	fs *faultFS
}

func (f *faultFile) Write(p []byte) (int, error) {
	if f.fs.writeErr != nil {
		// Emulate a short write that leaves partial data behind.
		n, _ := f.File.Write(p[:len(p)/2])
		return n, f.fs.writeErr
	}
	return f.File.Write(p)
}

func (f *faultFile) Sync() error {
	if f.fs.syncErr != nil {
		return f.fs.syncErr
	}
	return f.File.Sync()
}

func (f *faultFile) Close() error {
	err := f.File.Close()
	if f.fs.closeErr != nil {
		return f.fs.closeErr
	}
	return err
}

func (fs *faultFS) CreateTemp(dir, pattern string) (File, error) {
	f, err := fs.osFS.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	fs.created = append(fs.created, f.Name())
	return &faultFile{File: f, fs: fs}, nil
}

func (fs *faultFS) Rename(oldpath, newpath string) error {
	if fs.renameErr != nil {
		return fs.renameErr
	}
	return fs.osFS.Rename(oldpath, newpath)
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestReadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(dir, "missing.txt"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := ReadFile(dir)
		assert.ErrorIs(t, err, ErrNotRegularFile)
	})

	t.Run("empty path resolves to working directory", func(t *testing.T) {
		_, err := ReadFile("")
		assert.ErrorIs(t, err, ErrNotRegularFile)
	})
}

func TestReadFile_NamedPipeDoesNotBlock(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("named pipes are not files on windows")
	}
	fifo := filepath.Join(t.TempDir(), "pipe")
	require.NoError(t, syscall.Mkfifo(fifo, 0o600))

	done := make(chan error, 1)
	go func() {
		_, err := ReadFile(fifo)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrNotRegularFile)
	case <-time.After(5 * time.Second):
		t.Fatal("ReadFile blocked on a named pipe without a writer")
	}
}

func TestOpenAppend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	for _, line := range []string{"one\n", "two\n"} {
		f, err := OpenAppend(path, 0o600)
		require.NoError(t, err)
		_, err = f.WriteString(line)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(got))

	_, err = OpenAppend(dir, 0o600)
	assert.Error(t, err)
}

func TestOpenAppend_RefusesSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "target.log")
	link := filepath.Join(dir, "link.log")
	require.NoError(t, os.WriteFile(target, []byte("keep"), 0o600))
	require.NoError(t, os.Symlink(target, link))

	_, err := OpenAppend(link, 0o600)
	assert.ErrorIs(t, err, ErrIsSymlink)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(got))
}

func TestReadFile_FollowsSourceSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.WriteFile(target, []byte("data"), 0o600))
	require.NoError(t, os.Symlink(target, link))

	got, err := ReadFile(link)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)
}

func TestWriteFileAtomic(t *testing.T) {
	tests := []struct {
		name     string
		existing []byte
		content  []byte
	}{
		{name: "new file", content: []byte("new content")},
		{name: "overwrite existing", existing: []byte("old content that is longer"), content: []byte("new")},
		{name: "empty content", existing: []byte("old"), content: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "out.txt")
			if tt.existing != nil {
				require.NoError(t, os.WriteFile(path, tt.existing, 0o600))
			}

			require.NoError(t, WriteFileAtomic(path, tt.content, 0o644))

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.content, got)
			assert.Equal(t, []string{"out.txt"}, dirEntries(t, dir), "no temporary files may remain")
		})
	}
}

func TestWriteFileAtomic_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	dir := t.TempDir()

	fresh := filepath.Join(dir, "fresh.txt")
	require.NoError(t, WriteFileAtomic(fresh, []byte("x"), 0o640))
	info, err := os.Stat(fresh)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	existing := filepath.Join(dir, "existing.txt")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o600))
	require.NoError(t, os.Chmod(existing, 0o600))
	require.NoError(t, WriteFileAtomic(existing, []byte("new"), 0o644))
	info, err = os.Stat(existing)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "existing mode is preserved")
}

func TestWriteFileAtomic_RejectsBadDestinations(t *testing.T) {
	dir := t.TempDir()

	t.Run("directory", func(t *testing.T) {
		sub := filepath.Join(dir, "sub")
		require.NoError(t, os.Mkdir(sub, 0o755))
		err := WriteFileAtomic(sub, []byte("x"), 0o644)
		assert.ErrorIs(t, err, ErrNotRegularFile)
	})

	t.Run("missing parent", func(t *testing.T) {
		err := WriteFileAtomic(filepath.Join(dir, "nope", "out.txt"), []byte("x"), 0o644)
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
		_, statErr := os.Stat(filepath.Join(dir, "nope"))
		assert.ErrorIs(t, statErr, os.ErrNotExist, "parents are not created")
	})

	t.Run("symlink", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("symlinks require privileges on windows")
		}
		target := filepath.Join(dir, "target.txt")
		link := filepath.Join(dir, "link.txt")
		require.NoError(t, os.WriteFile(target, []byte("keep"), 0o600))
		require.NoError(t, os.Symlink(target, link))

		err := WriteFileAtomic(link, []byte("x"), 0o644)
		assert.ErrorIs(t, err, ErrIsSymlink)

		got, readErr := os.ReadFile(target)
		require.NoError(t, readErr)
		assert.Equal(t, []byte("keep"), got)
	})
}

func TestWriteFileAtomic_FailuresLeaveNoTrace(t *testing.T) {
	injected := errors.New("injected")
	tests := []struct {
		name string
		fs   *faultFS
	}{
		{name: "write fails", fs: &faultFS{writeErr: injected}},
		{name: "sync fails", fs: &faultFS{syncErr: injected}},
		{name: "close fails", fs: &faultFS{closeErr: injected}},
		{name: "rename fails", fs: &faultFS{renameErr: injected}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "out.txt")
			require.NoError(t, os.WriteFile(path, []byte("original"), 0o600))

			err := WriteFileAtomicWithFS(tt.fs, path, []byte("replacement content"), 0o644)
			require.Error(t, err)
			assert.ErrorIs(t, err, injected)

			got, readErr := os.ReadFile(path)
			require.NoError(t, readErr)
			assert.Equal(t, []byte("original"), got, "destination must be untouched")
			assert.Equal(t, []string{"out.txt"}, dirEntries(t, dir))
			require.Len(t, tt.fs.created, 1)
		})
	}
}

func TestWriteAtomic_FillError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	fillErr := errors.New("fill failed")

	err := WriteAtomic(path, 0o644, func(w io.Writer) error {
		if _, err := w.Write([]byte("partial")); err != nil {
			return err
		}
		return fillErr
	})
	assert.ErrorIs(t, err, fillErr)
	assert.Empty(t, dirEntries(t, dir))
}

func TestWriteAtomic_Streams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, WriteAtomic(path, 0o644, func(w io.Writer) error {
		for _, chunk := range []string{"a", "b", "c"} {
			if _, err := io.WriteString(w, chunk); err != nil {
				return err
			}
		}
		return nil
	}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}
