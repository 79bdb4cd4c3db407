// Package color wraps text in ANSI escape sequences for terminal output.
//
//nolint:revive // package name conflicts with standard library
package color

const resetCode = "\033[0m"

// Color wraps text with an ANSI escape sequence.
type Color func(text string) string

// New creates a Color for the given ANSI code.
func New(ansiCode string) Color {
	return func(text string) string {
		return ansiCode + text + resetCode
	}
}

// Colors used for job status labels
var (
	Green  = New("\033[32m")
	Yellow = New("\033[33m")
	Red    = New("\033[31m")
)

// Painter applies colors only when enabled, so callers need not branch on
// whether output goes to a terminal.
type Painter struct {
	enabled bool
}

// NewPainter creates a Painter. A disabled Painter returns text unchanged.
func NewPainter(enabled bool) Painter {
	return Painter{enabled: enabled}
}

// Paint applies c to text when p is enabled.
func (p Painter) Paint(c Color, text string) string {
	if !p.enabled || c == nil {
		return text
	}
	return c(text)
}
