package timing

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrNotStarted is returned by Step when Start has not been called.
var ErrNotStarted = errors.New("duration tracker not started")

// Progress is a snapshot taken after a completed item.
type Progress struct {
	Done      int
	Total     int
	Elapsed   time.Duration
	Average   time.Duration
	Remaining time.Duration
}

// DurationTracker estimates the remaining time of a loop over a known
// number of items. It is safe for concurrent use.
type DurationTracker struct {
	mu      sync.Mutex
	total   int
	done    int
	started time.Time
	now     func() time.Time
	logger  *slog.Logger
	prefix  string
	suffix  string
}

// TrackerOption configures a DurationTracker.
type TrackerOption func(*DurationTracker)

// WithPrefix sets text logged before the estimate.
func WithPrefix(prefix string) TrackerOption {
	return func(d *DurationTracker) { d.prefix = prefix }
}

// WithSuffix sets text logged after the estimate.
func WithSuffix(suffix string) TrackerOption {
	return func(d *DurationTracker) { d.suffix = suffix }
}

// WithTrackerLogger sets the logger progress lines go to.
func WithTrackerLogger(l *slog.Logger) TrackerOption {
	return func(d *DurationTracker) { d.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(d *DurationTracker) { d.now = now }
}

// NewDurationTracker creates a tracker for total items.
func NewDurationTracker(total int, opts ...TrackerOption) *DurationTracker {
	d := &DurationTracker{
		total:  max(total, 0),
		now:    time.Now,
		prefix: "Estimated time remaining:",
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Start records the start time and resets the completed count.
func (d *DurationTracker) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = d.now()
	d.done = 0
}

// Step records one completed item, logs the estimate and returns it.
func (d *DurationTracker) Step() (Progress, error) {
	d.mu.Lock()
	if d.started.IsZero() {
		d.mu.Unlock()
		return Progress{}, ErrNotStarted
	}
	d.done++
	p := d.progressLocked()
	d.mu.Unlock()

	msg := strings.TrimSpace(fmt.Sprintf("%s %s %s", d.prefix, FormatDuration(p.Remaining), d.suffix))
	d.logger.Info(msg,
		slog.Int("done", p.Done),
		slog.Int("total", p.Total),
		slog.Duration("elapsed", p.Elapsed),
		slog.Duration("remaining", p.Remaining))

	return p, nil
}

func (d *DurationTracker) progressLocked() Progress {
	elapsed := d.now().Sub(d.started)
	p := Progress{Done: d.done, Total: d.total, Elapsed: elapsed}
	if d.done > 0 {
		p.Average = elapsed / time.Duration(d.done)
	}
	if left := d.total - d.done; left > 0 {
		p.Remaining = p.Average * time.Duration(left)
	}
	return p
}

// FormatDuration renders d as e.g. "1 h, 2 min, 3 sec", or "0 sec" for
// anything under a second.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Second {
		return "0 sec"
	}

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%d h", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%d min", m))
	}
	if s > 0 {
		parts = append(parts, fmt.Sprintf("%d sec", s))
	}
	return strings.Join(parts, ", ")
}
