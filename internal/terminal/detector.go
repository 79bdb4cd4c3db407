// Package terminal decides whether log output is read by a person at a
// terminal or collected by a CI system or another program.
package terminal

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ciEnvVars contains common CI environment variables
var ciEnvVars = []string{
	"CI",                     // Generic CI indicator
	"CONTINUOUS_INTEGRATION", // Generic CI indicator
	"GITHUB_ACTIONS",         // GitHub Actions
	"GITLAB_CI",              // GitLab CI
	"CIRCLECI",               // Circle CI
	"JENKINS_URL",            // Jenkins
	"BUILDKITE",              // Buildkite
	"TF_BUILD",               // Azure DevOps
}

// Mode overrides detection.
type Mode int

const (
	// ModeAuto inspects the environment and the output descriptor.
	ModeAuto Mode = iota
	// ModeInteractive always reports interactive.
	ModeInteractive
	// ModeNonInteractive never reports interactive.
	ModeNonInteractive
)

// Detector reports whether a writer is attached to an interactive terminal.
type Detector struct {
	mode       Mode
	lookupEnv  func(string) (string, bool)
	isTerminal func(fd int) bool
}

// Option configures a Detector.
type Option func(*Detector)

// WithMode forces the detection result.
func WithMode(m Mode) Option {
	return func(d *Detector) { d.mode = m }
}

// WithEnv replaces os.LookupEnv.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(d *Detector) { d.lookupEnv = lookup }
}

// WithTerminalCheck replaces term.IsTerminal.
func WithTerminalCheck(isTerminal func(fd int) bool) Option {
	return func(d *Detector) { d.isTerminal = isTerminal }
}

// NewDetector creates a Detector.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		lookupEnv:  os.LookupEnv,
		isTerminal: term.IsTerminal,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// fdWriter is implemented by *os.File.
type fdWriter interface {
	Fd() uintptr
}

// IsInteractive reports whether output written to w is shown to a person.
// Writers without a file descriptor, such as buffers, are never interactive
// unless ModeInteractive is set.
func (d *Detector) IsInteractive(w any) bool {
	switch d.mode {
	case ModeInteractive:
		return true
	case ModeNonInteractive:
		return false
	}

	if d.IsCIEnvironment() {
		return false
	}
	if v, ok := d.lookupEnv("TERM"); ok && v == "dumb" {
		return false
	}

	f, ok := w.(fdWriter)
	if !ok {
		return false
	}
	return d.isTerminal(int(f.Fd()))
}

// IsCIEnvironment checks if the current environment is a CI/CD system
func (d *Detector) IsCIEnvironment() bool {
	for _, name := range ciEnvVars {
		value, ok := d.lookupEnv(name)
		if !ok || value == "" {
			continue
		}
		// CI=false is commonly set to opt out.
		if name == "CI" {
			return isTruthy(value)
		}
		return true
	}
	return false
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "false", "0", "no":
		return false
	}
	return true
}
