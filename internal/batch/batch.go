// Package batch runs many re-encoding jobs concurrently.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/isseis/go-script-extras/internal/dirutil"
	"github.com/isseis/go-script-extras/internal/reencode"
	"github.com/isseis/go-script-extras/internal/timing"
	"golang.org/x/sync/errgroup"
)

// Error definitions for the batch package
var (
	// ErrDuplicateDestination is returned when two jobs write the same file
	ErrDuplicateDestination = errors.New("duplicate destination")
	// ErrSkipped marks jobs that never ran because the batch was cancelled
	ErrSkipped = errors.New("job skipped")
)

// DefaultConcurrency bounds the number of jobs in flight when no limit is set.
const DefaultConcurrency = 4

// Result is the outcome of one job.
type Result struct {
	Request  reencode.Request
	Err      error
	Duration time.Duration
}

// Skipped reports whether the job was never started.
func (r Result) Skipped() bool {
	return errors.Is(r.Err, ErrSkipped)
}

// Converter performs a single job. *reencode.Reencoder satisfies it.
type Converter interface {
	Reencode(req reencode.Request) error
}

// Runner executes jobs with bounded concurrency.
type Runner struct {
	converter      Converter
	concurrency    int
	stopOnError    bool
	dirs           *dirutil.Manager
	cleanupOnError bool
	logger         *slog.Logger
	trackerOpts    []timing.TrackerOption
}

// Option configures a Runner.
type Option func(*Runner)

// WithConverter replaces the default reencode.Reencoder.
func WithConverter(c Converter) Option {
	return func(r *Runner) { r.converter = c }
}

// WithConcurrency sets the maximum number of jobs running at once.
// Values below one select DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(r *Runner) { r.concurrency = n }
}

// WithStopOnError stops starting new jobs after the first failure.
func WithStopOnError(stop bool) Option {
	return func(r *Runner) { r.stopOnError = stop }
}

// WithDirectoryManager creates missing destination directories through m
// before each job runs.
func WithDirectoryManager(m *dirutil.Manager) Option {
	return func(r *Runner) { r.dirs = m }
}

// WithCleanupOnError removes the directories created through the directory
// manager, including their contents, when the batch fails.
func WithCleanupOnError(cleanup bool) Option {
	return func(r *Runner) { r.cleanupOnError = cleanup }
}

// WithLogger sets the logger for job and progress messages.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithTrackerOptions passes options through to the progress tracker.
func WithTrackerOptions(opts ...timing.TrackerOption) Option {
	return func(r *Runner) { r.trackerOpts = append(r.trackerOpts, opts...) }
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency < 1 {
		r.concurrency = DefaultConcurrency
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.converter == nil {
		r.converter = reencode.New(reencode.WithLogger(r.logger))
	}
	return r
}

// Run executes reqs and returns one Result per request, in input order.
// The returned error joins every job failure; it is nil only when all jobs
// succeeded. Jobs not started because of cancellation or StopOnError carry
// ErrSkipped.
func (r *Runner) Run(ctx context.Context, reqs []reencode.Request) ([]Result, error) {
	if err := checkDestinations(reqs); err != nil {
		return nil, err
	}

	results := make([]Result, len(reqs))
	for i, req := range reqs {
		results[i].Request = req
	}

	trackerOpts := append([]timing.TrackerOption{timing.WithTrackerLogger(r.logger)}, r.trackerOpts...)
	tracker := timing.NewDurationTracker(len(reqs), trackerOpts...)
	tracker.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = fmt.Errorf("%w: %w", ErrSkipped, err)
				return nil
			}

			started := time.Now()
			err := r.runOne(reqs[i])
			results[i].Duration = time.Since(started)
			results[i].Err = err
			_, _ = tracker.Step()

			if err != nil {
				r.logger.Error("Job failed",
					slog.Int("job", i),
					slog.String("source", reqs[i].SourcePath),
					slog.String("destination", reqs[i].DestinationPath),
					slog.String("kind", reencode.KindOf(err).String()),
					slog.Any("error", err))
				if r.stopOnError {
					return err
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for i, res := range results {
		if res.Err != nil && !res.Skipped() {
			errs = append(errs, fmt.Errorf("job %d: %w", i, res.Err))
		}
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	err := errors.Join(errs...)

	if err != nil && r.cleanupOnError && r.dirs != nil {
		if cleanupErr := r.dirs.CleanupAll(); cleanupErr != nil {
			err = errors.Join(err, cleanupErr)
		}
	}
	return results, err
}

func (r *Runner) runOne(req reencode.Request) error {
	if r.dirs != nil && req.DestinationPath != "" {
		if _, err := r.dirs.CreateParent(req.DestinationPath); err != nil {
			return &reencode.Error{
				Kind:     reencode.KindWrite,
				Path:     req.DestinationPath,
				Encoding: req.TargetEncoding,
				Err:      err,
			}
		}
	}
	return r.converter.Reencode(req)
}

// checkDestinations rejects batches in which two jobs share a destination,
// since their atomic writes would race.
func checkDestinations(reqs []reencode.Request) error {
	seen := make(map[string]int, len(reqs))
	for i, req := range reqs {
		if req.DestinationPath == "" {
			continue
		}
		key := req.DestinationPath
		if abs, err := filepath.Abs(key); err == nil {
			key = abs
		}
		if j, ok := seen[key]; ok {
			return fmt.Errorf("%w: jobs %d and %d both write %s", ErrDuplicateDestination, j, i, req.DestinationPath)
		}
		seen[key] = i
	}
	return nil
}

// Count tallies results into succeeded, failed and skipped jobs.
func Count(results []Result) (succeeded, failed, skipped int) {
	for _, res := range results {
		switch {
		case res.Err == nil:
			succeeded++
		case res.Skipped():
			skipped++
		default:
			failed++
		}
	}
	return succeeded, failed, skipped
}
