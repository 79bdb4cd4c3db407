package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/isseis/go-script-extras/internal/color"
	"github.com/isseis/go-script-extras/internal/terminal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	code := run(context.Background(), args, stdout, stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_SingleFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.txt")
	dst := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(src, []byte("Québec — 5 €"), 0o644))

	code, stdout, stderr := runCLI(t, "-from", "utf-8", "-to", "windows-1252", src, dst)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Re-encoded 1 of 1 files (0 failed, 0 skipped)")

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("Qu\xe9bec \x97 5 \x80"), got)
}

func TestRun_AddBOM(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.txt")
	dst := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(src, []byte("a"), 0o644))

	code, _, stderr := runCLI(t, "-from", "utf-8", "-to", "utf-8", "-bom", src, dst)
	require.Equal(t, 0, code, stderr)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("\xef\xbb\xbfa"), got)
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no arguments", args: nil, want: "expected <source> <destination>"},
		{name: "missing encodings", args: []string{"a", "b"}, want: "both -from and -to are required"},
		{name: "config with arguments", args: []string{"-config", "jobs.toml", "a"}, want: "cannot be combined"},
		{name: "negative concurrency", args: []string{"-concurrency", "-1", "a", "b"}, want: "must not be negative"},
		{name: "unknown flag", args: []string{"-nope"}, want: "flag provided but not defined"},
		{name: "invalid log level", args: []string{"-from", "utf-8", "-to", "utf-8", "-log-level", "loud", "a", "b"}, want: "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, tt.want)
			assert.Contains(t, stderr, "Error: usage_error")
		})
	}
}

func TestRun_Help(t *testing.T) {
	code, _, stderr := runCLI(t, "-h")
	assert.Equal(t, 0, code)
	assert.Contains(t, stderr, "-list-encodings")
}

func TestRun_ListEncodings(t *testing.T) {
	code, stdout, _ := runCLI(t, "-list-encodings")
	require.Equal(t, 0, code)
	names := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.Contains(t, names, "utf-8")
	assert.Contains(t, names, "windows-1252")
	assert.Contains(t, names, "shift_jis")
}

func TestRun_ReportsKind(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.txt")

	code, stdout, stderr := runCLI(t, "-from", "utf-8", "-to", "klingon", filepath.Join(dir, "in.txt"), dst)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "[unsupported_encoding]")
	assert.Contains(t, stderr, "Error: conversion_failed")
	assert.Contains(t, stderr, "Run ID: ")

	code, stdout, _ = runCLI(t, "-from", "utf-8", "-to", "utf-8", filepath.Join(dir, "missing.txt"), dst)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "[not_found]")

	_, err := os.Stat(dst)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_MkdirCleanupOnFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(src, []byte("日本"), 0o644))

	ok := filepath.Join(dir, "made", "out.txt")
	code, _, stderr := runCLI(t, "-from", "utf-8", "-to", "shift_jis", "-mkdir", src, ok)
	require.Equal(t, 0, code, stderr)
	_, err := os.Stat(ok)
	require.NoError(t, err)

	bad := filepath.Join(dir, "never", "out.txt")
	code, stdout, _ := runCLI(t, "-from", "utf-8", "-to", "windows-1252", "-mkdir", src, bad)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "[encode_failed]")
	_, err = os.Stat(filepath.Join(dir, "never"))
	assert.ErrorIs(t, err, os.ErrNotExist, "directories created for a failed conversion are removed")
}

func TestRun_JobFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "in"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in", "a.csv"), []byte("Montréal"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in", "b.csv"), []byte("Lévis"), 0o644))

	jobFile := filepath.Join(dir, "jobs.toml")
	require.NoError(t, os.WriteFile(jobFile, []byte(`
concurrency = 2

[defaults]
source_encoding = "utf-8"
target_encoding = "windows-1252"
create_dirs = true

[[jobs]]
source = "in/a.csv"
destination = "out/a.csv"

[[jobs]]
source = "in/b.csv"
destination = "out/b.csv"
target_encoding = "utf-16le"
`), 0o644))

	logFile := filepath.Join(dir, "logs", "run.json")
	code, stdout, stderr := runCLI(t, "-config", jobFile, "-log-file", logFile)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Re-encoded 2 of 2 files")

	a, err := os.ReadFile(filepath.Join(dir, "out", "a.csv"))
	require.NoError(t, err)
	assert.Equal(t, []byte("Montr\xe9al"), a)

	b, err := os.ReadFile(filepath.Join(dir, "out", "b.csv"))
	require.NoError(t, err)
	assert.Equal(t, []byte{'L', 0, 0xe9, 0, 'v', 0, 'i', 0, 's', 0}, b)

	logs, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logs), `"run_id":`)
	assert.Contains(t, string(logs), `"msg":"Re-encoded file"`)
}

func TestRun_JobFileErrors(t *testing.T) {
	dir := t.TempDir()

	code, _, stderr := runCLI(t, "-config", filepath.Join(dir, "missing.toml"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error: config_parsing_failed")

	dup := filepath.Join(dir, "dup.toml")
	require.NoError(t, os.WriteFile(dup, []byte(`
[defaults]
source_encoding = "utf-8"
target_encoding = "utf-8"

[[jobs]]
source = "a.txt"
destination = "same.txt"

[[jobs]]
source = "b.txt"
destination = "same.txt"
`), 0o644))
	code, _, stderr = runCLI(t, "-config", dup)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "duplicate destination")
}

func TestRun_Interrupted(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	code := run(ctx, []string{"-from", "utf-8", "-to", "utf-8", src, filepath.Join(dir, "out.txt")}, stdout, stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "SKIPPED")
	assert.Contains(t, stderr.String(), "Error: user_interrupted")
}

func TestRun_InteractiveOutput(t *testing.T) {
	original := newDetector
	newDetector = func() *terminal.Detector {
		return terminal.NewDetector(terminal.WithMode(terminal.ModeInteractive))
	}
	t.Cleanup(func() { newDetector = original })

	dir := t.TempDir()
	src := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	code, stdout, stderr := runCLI(t, "-from", "utf-8", "-to", "utf-8", src, filepath.Join(dir, "out.txt"))
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, color.Green("OK"))
	assert.Contains(t, stderr, "msg=\"Starting conversion\"")
	assert.NotContains(t, stderr, `"msg":`)
}
