// Package config loads TOML job files describing batches of re-encoding
// jobs. A job file looks like:
//
//	concurrency = 4
//
//	[defaults]
//	source_encoding = "utf-8"
//	target_encoding = "windows-1252"
//	add_bom = false
//	create_dirs = true
//
//	[[jobs]]
//	source = "in/data.csv"
//	destination = "out/data.csv"
//
//	[[jobs]]
//	source = "in/notes.txt"
//	destination = "out/notes.txt"
//	target_encoding = "utf-16"
//	add_bom = true
//
// Unknown keys are rejected. Relative paths are resolved against the
// directory containing the job file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/isseis/go-script-extras/internal/reencode"
	"github.com/isseis/go-script-extras/internal/safefileio"
	"github.com/pelletier/go-toml/v2"
)

// Error definitions for the config package
var (
	// ErrParse is returned when the job file is not valid TOML or has unknown keys
	ErrParse = errors.New("failed to parse job file")
	// ErrNoJobs is returned when the job file defines no jobs
	ErrNoJobs = errors.New("job file defines no jobs")
	// ErrMissingField is returned when a job lacks a required value after defaults are applied
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidConcurrency is returned for a negative concurrency
	ErrInvalidConcurrency = errors.New("concurrency must not be negative")
)

// DefaultConcurrency is used when the job file does not set concurrency.
const DefaultConcurrency = 4

// Defaults holds values applied to every job that does not override them.
type Defaults struct {
	SourceEncoding string `toml:"source_encoding"`
	TargetEncoding string `toml:"target_encoding"`
	AddBOM         bool   `toml:"add_bom"`
	CreateDirs     bool   `toml:"create_dirs"`
}

// JobSpec is one [[jobs]] entry as written in the file.
type JobSpec struct {
	Source         string `toml:"source"`
	Destination    string `toml:"destination"`
	SourceEncoding string `toml:"source_encoding"`
	TargetEncoding string `toml:"target_encoding"`
	// AddBOM is a pointer so that "add_bom = false" can override a true default.
	AddBOM *bool `toml:"add_bom"`
}

// FileSpec is the on-disk layout of a job file.
type FileSpec struct {
	Concurrency int       `toml:"concurrency"`
	Defaults    Defaults  `toml:"defaults"`
	Jobs        []JobSpec `toml:"jobs"`
}

// JobFile is a validated job file with defaults applied.
type JobFile struct {
	Path        string
	Concurrency int
	CreateDirs  bool
	Requests    []reencode.Request
}

// Load reads and validates the job file at path.
func Load(path string) (*JobFile, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", safefileio.ErrInvalidFilePath, err)
	}

	content, err := safefileio.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file %s: %w", path, err)
	}

	jf, err := Parse(content, filepath.Dir(absPath))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	jf.Path = absPath
	return jf, nil
}

// Parse decodes and validates job file content. Relative paths are joined
// to baseDir.
func Parse(content []byte, baseDir string) (*JobFile, error) {
	var spec FileSpec
	dec := toml.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	if spec.Concurrency < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidConcurrency, spec.Concurrency)
	}
	if len(spec.Jobs) == 0 {
		return nil, ErrNoJobs
	}

	jf := &JobFile{
		Concurrency: spec.Concurrency,
		CreateDirs:  spec.Defaults.CreateDirs,
		Requests:    make([]reencode.Request, 0, len(spec.Jobs)),
	}
	if jf.Concurrency == 0 {
		jf.Concurrency = DefaultConcurrency
	}

	for i, job := range spec.Jobs {
		req, err := buildRequest(job, spec.Defaults, baseDir)
		if err != nil {
			return nil, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		jf.Requests = append(jf.Requests, req)
	}
	return jf, nil
}

func buildRequest(job JobSpec, defaults Defaults, baseDir string) (reencode.Request, error) {
	req := reencode.Request{
		SourcePath:      resolvePath(job.Source, baseDir),
		DestinationPath: resolvePath(job.Destination, baseDir),
		SourceEncoding:  firstNonEmpty(job.SourceEncoding, defaults.SourceEncoding),
		TargetEncoding:  firstNonEmpty(job.TargetEncoding, defaults.TargetEncoding),
		Options:         reencode.Options{AddBOM: defaults.AddBOM},
	}
	if job.AddBOM != nil {
		req.Options.AddBOM = *job.AddBOM
	}

	required := []struct {
		name  string
		value string
	}{
		{"source", req.SourcePath},
		{"destination", req.DestinationPath},
		{"source_encoding", req.SourceEncoding},
		{"target_encoding", req.TargetEncoding},
	}
	for _, field := range required {
		if field.value == "" {
			return reencode.Request{}, fmt.Errorf("%w: %s", ErrMissingField, field.name)
		}
	}
	return req, nil
}

func resolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
