package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ErrorType classifies why a command line run failed.
type ErrorType string

const (
	// ErrorTypeUsage represents invalid flags or arguments
	ErrorTypeUsage ErrorType = "usage_error"
	// ErrorTypeConfigParsing represents job file loading failures
	ErrorTypeConfigParsing ErrorType = "config_parsing_failed"
	// ErrorTypeLogFileOpen represents log file opening failures
	ErrorTypeLogFileOpen ErrorType = "log_file_open_failed"
	// ErrorTypeConversion represents failed re-encoding jobs
	ErrorTypeConversion ErrorType = "conversion_failed"
	// ErrorTypeUserInterrupted represents user interruption
	ErrorTypeUserInterrupted ErrorType = "user_interrupted"
)

// RunError is a failure reported to the user at the end of a run.
type RunError struct {
	Type    ErrorType
	Message string
	RunID   string
	Err     error
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v (run_id: %s)", e.Type, e.Message, e.Err, e.RunID)
	}
	return fmt.Sprintf("%s: %s (run_id: %s)", e.Type, e.Message, e.RunID)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Report writes e to w as a single block and logs it through logger.
func (e *RunError) Report(w io.Writer, logger *slog.Logger) {
	// Built up front so concurrent writers cannot interleave the lines.
	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n", e.Type)
	fmt.Fprintf(&b, "  Details: %s\n", e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, "  Cause: %v\n", e.Err)
	}
	if e.RunID != "" {
		fmt.Fprintf(&b, "  Run ID: %s\n", e.RunID)
	}
	_, _ = io.WriteString(w, b.String())

	if logger != nil {
		logger.Error("Run failed",
			slog.String("error_type", string(e.Type)),
			slog.String("error_message", e.Message),
			slog.String("run_id", e.RunID),
			slog.Any("error", e.Err))
	}
}
