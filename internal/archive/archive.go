// Package archive creates and extracts zip archives.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/isseis/go-script-extras/internal/common"
	"github.com/isseis/go-script-extras/internal/safefileio"
)

// Error definitions for the archive package
var (
	// ErrNoSources is returned when Zip is called without anything to add
	ErrNoSources = errors.New("no sources to archive")
	// ErrUnsupportedFile is returned for sources that are neither regular files nor directories
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrDuplicateEntry is returned when two sources map to the same entry name
	ErrDuplicateEntry = errors.New("duplicate archive entry")
	// ErrUnsafeEntry is returned for entries that would be written outside the destination
	ErrUnsafeEntry = errors.New("unsafe archive entry")
	// ErrSymlinkEntry is returned for symbolic link entries
	ErrSymlinkEntry = errors.New("symbolic link entries are not supported")
	// ErrEntryTooLarge is returned for entries bigger than safefileio.MaxFileSize
	ErrEntryTooLarge = errors.New("archive entry too large")
)

const defaultFileMode = 0o644

type entry struct {
	name string // slash separated, directories end with "/"
	path string
	info fs.FileInfo
}

// Zip writes a deflate-compressed archive of sources to dest. A directory
// source is added recursively with entry names relative to its parent, so
// "data/in" yields "in/...". The archive replaces dest atomically.
func Zip(sources []string, dest string) error {
	if len(sources) == 0 {
		return ErrNoSources
	}

	absDest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("%w: %v", safefileio.ErrInvalidFilePath, err)
	}

	// Entries are collected up front so the temporary archive file never ends
	// up inside its own input.
	entries, err := collect(sources, absDest)
	if err != nil {
		return err
	}

	return safefileio.WriteAtomic(absDest, defaultFileMode, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, e := range entries {
			if err := addEntry(zw, e); err != nil {
				_ = zw.Close()
				return err
			}
		}
		return zw.Close()
	})
}

func collect(sources []string, absDest string) ([]entry, error) {
	var entries []entry
	seen := make(map[string]string)

	add := func(e entry) error {
		if prev, ok := seen[e.name]; ok {
			return fmt.Errorf("%w: %s from %s and %s", ErrDuplicateEntry, e.name, prev, e.path)
		}
		seen[e.name] = e.path
		entries = append(entries, e)
		return nil
	}

	for _, src := range sources {
		absSrc, err := filepath.Abs(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", safefileio.ErrInvalidFilePath, err)
		}
		parent := filepath.Dir(absSrc)

		err = filepath.WalkDir(absSrc, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if p == absDest {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}

			rel, err := filepath.Rel(parent, p)
			if err != nil {
				return err
			}
			name := filepath.ToSlash(rel)

			switch {
			case info.IsDir():
				name += "/"
			case !info.Mode().IsRegular():
				return fmt.Errorf("%w: %s", ErrUnsupportedFile, p)
			}
			return add(entry{name: name, path: p, info: info})
		})
		if err != nil {
			return nil, fmt.Errorf("failed to collect %s: %w", src, err)
		}
	}
	return entries, nil
}

func addEntry(zw *zip.Writer, e entry) error {
	header, err := zip.FileInfoHeader(e.info)
	if err != nil {
		return fmt.Errorf("failed to create header for %s: %w", e.path, err)
	}
	header.Name = e.name

	if e.info.IsDir() {
		_, err := zw.CreateHeader(header)
		return err
	}
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", e.name, err)
	}

	f, err := os.Open(e.path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to compress %s: %w", e.path, err)
	}
	return nil
}

// Unzip extracts archivePath into destDir, creating directories as needed.
// Existing files are replaced. Entries that would land outside destDir,
// symbolic links, and entries larger than safefileio.MaxFileSize are
// rejected; files extracted before the offending entry are left in place.
func Unzip(archivePath, destDir string) error {
	return unzip(common.NewDefaultFileSystem(), archivePath, destDir)
}

func unzip(fsys common.FileSystem, archivePath, destDir string) error {
	if destDir == "" {
		return common.ErrEmptyPath
	}
	absDir, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("%w: %v", safefileio.ErrInvalidFilePath, err)
	}

	r, err := zip.OpenReader(archivePath)
	if errors.Is(err, zip.ErrInsecurePath) {
		// Only reported when GODEBUG=zipinsecurepath=0.
		_ = r.Close()
		return fmt.Errorf("%w: %w", ErrUnsafeEntry, err)
	}
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer func() { _ = r.Close() }()

	// Validate everything first so an unsafe archive writes nothing.
	targets := make([]string, len(r.File))
	for i, f := range r.File {
		target, err := entryTarget(absDir, f)
		if err != nil {
			return err
		}
		targets[i] = target
	}

	if err := fsys.MkdirAll(absDir, common.DefaultDirPerm); err != nil {
		return fmt.Errorf("failed to create %s: %w", absDir, err)
	}

	for i, f := range r.File {
		if f.FileInfo().IsDir() {
			if err := fsys.MkdirAll(targets[i], common.DefaultDirPerm); err != nil {
				return fmt.Errorf("failed to create %s: %w", targets[i], err)
			}
			continue
		}
		if err := fsys.MkdirAll(filepath.Dir(targets[i]), common.DefaultDirPerm); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(targets[i]), err)
		}
		if err := extractFile(f, targets[i]); err != nil {
			return err
		}
	}
	return nil
}

// entryTarget maps an entry to its path below absDir.
func entryTarget(absDir string, f *zip.File) (string, error) {
	name := f.Name
	switch {
	case name == "":
		return "", fmt.Errorf("%w: empty name", ErrUnsafeEntry)
	case strings.HasPrefix(name, "/"), strings.HasPrefix(name, `\`), path.IsAbs(name), filepath.IsAbs(name), filepath.VolumeName(name) != "":
		return "", fmt.Errorf("%w: absolute path %q", ErrUnsafeEntry, name)
	case common.ContainsPathTraversalSegment(name):
		return "", fmt.Errorf("%w: %q escapes the destination", ErrUnsafeEntry, name)
	}
	if f.Mode()&fs.ModeSymlink != 0 {
		return "", fmt.Errorf("%w: %q", ErrSymlinkEntry, name)
	}
	if f.UncompressedSize64 > safefileio.MaxFileSize {
		return "", fmt.Errorf("%w: %q is %d bytes", ErrEntryTooLarge, name, f.UncompressedSize64)
	}

	target := filepath.Join(absDir, filepath.FromSlash(name))
	if !common.IsWithinDir(absDir, target) {
		return "", fmt.Errorf("%w: %q escapes the destination", ErrUnsafeEntry, name)
	}
	return target, nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open entry %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = defaultFileMode
	}

	err = safefileio.WriteAtomic(target, perm, func(w io.Writer) error {
		// The header size is untrusted; enforce the cap on the actual stream.
		n, err := io.Copy(w, io.LimitReader(rc, safefileio.MaxFileSize+1))
		if err != nil {
			return err
		}
		if n > safefileio.MaxFileSize {
			return fmt.Errorf("%w: %q", ErrEntryTooLarge, f.Name)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return nil
}
