package safefileio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// FileSystem is an interface that abstracts file system operations
type FileSystem interface {
	Open(name string) (File, error)
	CreateTemp(dir, pattern string) (File, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	Lstat(name string) (os.FileInfo, error)
}

// File is an interface that abstracts file operations
type File interface {
	io.ReadWriteCloser
	Name() string
	Stat() (os.FileInfo, error)
	Sync() error
	Chmod(mode os.FileMode) error
}

// defaultFS implements FileSystem using the local disk
var defaultFS FileSystem = osFS{}

type osFS struct{}

// NewFileSystem returns a FileSystem backed by the os package.
func NewFileSystem() FileSystem {
	return osFS{}
}

func (osFS) Open(name string) (File, error) {
	// O_NONBLOCK keeps a FIFO from blocking the open; the descriptor is
	// rejected as non-regular right after. Regular files ignore the flag.
	// #nosec G304 - reading caller-supplied paths is the purpose of this package
	f, err := os.OpenFile(name, os.O_RDONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (osFS) CreateTemp(dir, pattern string) (File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (osFS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

func (osFS) Remove(name string) error { return os.Remove(name) }

func (osFS) Lstat(name string) (os.FileInfo, error) { return os.Lstat(name) }

// OpenAppend opens filePath for appending, creating it with perm. A symbolic
// link is refused with ErrIsSymlink on the open itself, and the opened file
// must be a regular file.
func OpenAppend(filePath string, perm os.FileMode) (*os.File, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilePath, err)
	}

	// #nosec G304 - absPath is cleaned above and O_NOFOLLOW refuses links
	f, err := os.OpenFile(absPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND|syscall.O_NOFOLLOW|syscall.O_NONBLOCK, perm)
	if err != nil {
		if isNoFollowError(err) {
			return nil, fmt.Errorf("%w: %s", ErrIsSymlink, absPath)
		}
		return nil, err
	}

	if _, err := validateFile(f, absPath); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// MaxFileSize is the maximum allowed file size for ReadFile (128 MB)
const MaxFileSize = 128 * 1024 * 1024

// ReadFile reads a whole regular file of at most MaxFileSize bytes.
// A missing file yields an error matching os.ErrNotExist.
func ReadFile(filePath string) ([]byte, error) {
	return ReadFileWithFS(defaultFS, filePath)
}

// ReadFileWithFS is ReadFile on the given FileSystem.
func ReadFileWithFS(fs FileSystem, filePath string) ([]byte, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilePath, err)
	}

	file, err := fs.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	// Checked on the open descriptor so the path cannot be swapped in between.
	fileInfo, err := validateFile(file, absPath)
	if err != nil {
		return nil, err
	}

	if fileInfo.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, absPath, fileInfo.Size())
	}

	content, err := io.ReadAll(io.LimitReader(file, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// The file may have grown after Stat.
	if int64(len(content)) > MaxFileSize {
		return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, absPath)
	}

	return content, nil
}

// validateFile checks if the file is a regular file and returns its FileInfo
func validateFile(file File, filePath string) (os.FileInfo, error) {
	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegularFile, filePath)
	}

	return fileInfo, nil
}

// WriteFileAtomic replaces filePath with content. The data is written to a
// temporary file in the same directory, synced, and renamed into place, so
// readers observe either the old file or the complete new one. An existing
// destination keeps its permission bits; otherwise perm is used. Parent
// directories are not created.
func WriteFileAtomic(filePath string, content []byte, perm os.FileMode) error {
	return WriteFileAtomicWithFS(defaultFS, filePath, content, perm)
}

// WriteFileAtomicWithFS is WriteFileAtomic on the given FileSystem.
func WriteFileAtomicWithFS(fs FileSystem, filePath string, content []byte, perm os.FileMode) error {
	return WriteAtomicWithFS(fs, filePath, perm, func(w io.Writer) error {
		_, err := w.Write(content)
		return err
	})
}

// WriteAtomic is WriteFileAtomic for content produced by fill, which
// receives the temporary file. If fill fails, the destination is untouched.
func WriteAtomic(filePath string, perm os.FileMode, fill func(w io.Writer) error) error {
	return WriteAtomicWithFS(defaultFS, filePath, perm, fill)
}

// WriteAtomicWithFS is WriteAtomic on the given FileSystem.
func WriteAtomicWithFS(fs FileSystem, filePath string, perm os.FileMode, fill func(w io.Writer) error) (err error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilePath, err)
	}

	mode, err := destinationMode(fs, absPath, perm)
	if err != nil {
		return err
	}

	tmp, err := fs.CreateTemp(filepath.Dir(absPath), "."+filepath.Base(absPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	closed := false
	committed := false
	defer func() {
		if committed {
			return
		}
		if !closed {
			_ = tmp.Close()
		}
		if rmErr := fs.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, fmt.Errorf("failed to remove temporary file %s: %w", tmpName, rmErr))
		}
	}()

	if err = fill(tmp); err != nil {
		return fmt.Errorf("failed to write to %s: %w", tmpName, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err = tmp.Chmod(mode); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", tmpName, err)
	}

	closed = true
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}

	if err = fs.Rename(tmpName, absPath); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmpName, absPath, err)
	}
	committed = true

	return nil
}

// destinationMode validates an existing destination and returns the mode the
// new file should carry.
func destinationMode(fs FileSystem, absPath string, perm os.FileMode) (os.FileMode, error) {
	info, err := fs.Lstat(absPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return perm, nil
	case err != nil:
		return 0, fmt.Errorf("failed to stat %s: %w", absPath, err)
	case info.Mode()&os.ModeSymlink != 0:
		return 0, fmt.Errorf("%w: %s", ErrIsSymlink, absPath)
	case !info.Mode().IsRegular():
		return 0, fmt.Errorf("%w: %s", ErrNotRegularFile, absPath)
	default:
		return info.Mode().Perm(), nil
	}
}
