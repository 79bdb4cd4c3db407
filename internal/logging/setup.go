package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/isseis/go-script-extras/internal/safefileio"
)

// Error definitions for logger setup
var (
	// ErrInvalidLogLevel is returned for level names slog does not know
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrLogFileSymlink is returned when the log file path is a symbolic link
	ErrLogFileSymlink = errors.New("log file is a symbolic link")
)

const (
	logDirPerm  os.FileMode = 0o750
	logFilePerm os.FileMode = 0o600
)

// Config describes the handlers Setup builds.
type Config struct {
	// Level is a slog level name such as "debug" or "warn". Empty means info.
	Level string
	// Console receives human or machine readable output; nil means os.Stderr.
	Console io.Writer
	// Interactive selects text output on Console instead of JSON.
	Interactive bool
	// LogFile, when set, receives every record at debug level and above as JSON.
	LogFile string
	// RunID is attached to every record written to LogFile.
	RunID string
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	if strings.TrimSpace(name) == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
	}
	return level, nil
}

// Setup builds a logger from cfg. The returned close function releases the
// log file and must be called once logging is finished.
func Setup(cfg Config) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}
	consoleOpts := &slog.HandlerOptions{Level: level}

	var consoleHandler slog.Handler
	if cfg.Interactive {
		consoleHandler = slog.NewTextHandler(console, consoleOpts)
	} else {
		consoleHandler = slog.NewJSONHandler(console, consoleOpts)
	}

	closeFn := func() error { return nil }
	handlers := []slog.Handler{consoleHandler}

	if cfg.LogFile != "" {
		logF, err := openLogFile(cfg.LogFile)
		if err != nil {
			return nil, nil, err
		}
		closeFn = logF.Close

		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		fileHandler := slog.NewJSONHandler(logF, &slog.HandlerOptions{Level: slog.LevelDebug}).
			WithAttrs([]slog.Attr{
				slog.String("hostname", hostname),
				slog.Int("pid", os.Getpid()),
				slog.String("run_id", cfg.RunID),
			})
		handlers = append(handlers, fileHandler)
	}

	return slog.New(NewMultiHandler(handlers...)), closeFn, nil
}

// openLogFile opens path for appending, creating it and its directory.
// A symbolic link at path is refused.
func openLogFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, logDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	f, err := safefileio.OpenAppend(path, logFilePerm)
	if errors.Is(err, safefileio.ErrIsSymlink) {
		return nil, fmt.Errorf("%w: %s", ErrLogFileSymlink, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}
