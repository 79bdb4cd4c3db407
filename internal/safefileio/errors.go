// Package safefileio provides whole-file read and atomic write primitives
// that never leave a partially written destination behind.
package safefileio

import "errors"

var (
	// ErrInvalidFilePath indicates that the specified file path is invalid.
	ErrInvalidFilePath = errors.New("invalid file path")

	// ErrIsSymlink indicates that the destination is a symbolic link, which is not replaced.
	ErrIsSymlink = errors.New("path is a symbolic link")

	// ErrFileTooLarge indicates that the file is too large.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNotRegularFile indicates that the path names a directory, device, pipe or socket.
	ErrNotRegularFile = errors.New("not a regular file")
)
