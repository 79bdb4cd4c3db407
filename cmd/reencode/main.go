// Package main provides the reencode command. It converts text files from
// one character encoding to another, either a single file given on the
// command line or a batch described by a TOML job file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/isseis/go-script-extras/internal/batch"
	"github.com/isseis/go-script-extras/internal/codec"
	"github.com/isseis/go-script-extras/internal/color"
	"github.com/isseis/go-script-extras/internal/config"
	"github.com/isseis/go-script-extras/internal/dirutil"
	"github.com/isseis/go-script-extras/internal/idgen"
	"github.com/isseis/go-script-extras/internal/logging"
	"github.com/isseis/go-script-extras/internal/reencode"
	"github.com/isseis/go-script-extras/internal/terminal"
)

var (
	errMissingEncoding = errors.New("both -from and -to are required")
	errPositionalArgs  = errors.New("expected <source> <destination>")
	errConfigWithArgs  = errors.New("-config cannot be combined with positional arguments")
	errNegativeLimit   = errors.New("-concurrency must not be negative")
)

type cliConfig struct {
	from          string
	to            string
	addBOM        bool
	mkdir         bool
	configPath    string
	concurrency   int
	failFast      bool
	logLevel      string
	logFile       string
	listEncodings bool
	args          []string
}

// newDetector is replaced in tests.
var newDetector = func() *terminal.Detector { return terminal.NewDetector() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, fs, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		printUsage(fs, stderr)
		(&logging.RunError{Type: logging.ErrorTypeUsage, Message: err.Error()}).Report(stderr, nil)
		return 1
	}

	if cfg.listEncodings {
		for _, name := range codec.Names() {
			_, _ = fmt.Fprintln(stdout, name)
		}
		return 0
	}

	runID := idgen.NewSortableID()
	detector := newDetector()
	logger, closeLog, err := logging.Setup(logging.Config{
		Level:       cfg.logLevel,
		Console:     stderr,
		Interactive: detector.IsInteractive(stderr),
		LogFile:     cfg.logFile,
		RunID:       runID,
	})
	if err != nil {
		errType := logging.ErrorTypeLogFileOpen
		if errors.Is(err, logging.ErrInvalidLogLevel) {
			errType = logging.ErrorTypeUsage
		}
		(&logging.RunError{Type: errType, Message: "failed to set up logging", RunID: runID, Err: err}).Report(stderr, nil)
		return 1
	}
	defer func() { _ = closeLog() }()

	painter := color.NewPainter(detector.IsInteractive(stdout))
	if runErr := execute(ctx, cfg, runID, logger, stdout, painter); runErr != nil {
		runErr.Report(stderr, logger)
		return 1
	}
	return 0
}

func parseArgs(args []string, stderr io.Writer) (*cliConfig, *flag.FlagSet, error) {
	cfg := &cliConfig{}

	fs := flag.NewFlagSet("reencode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(fs, stderr) }
	fs.StringVar(&cfg.from, "from", "", "Source encoding, e.g. utf-8, windows-1252, shift_jis")
	fs.StringVar(&cfg.to, "to", "", "Target encoding")
	fs.BoolVar(&cfg.addBOM, "bom", false, "Write a byte order mark if the target encoding has one")
	fs.BoolVar(&cfg.mkdir, "mkdir", false, "Create missing destination directories")
	fs.StringVar(&cfg.configPath, "config", "", "TOML job file describing several conversions")
	fs.IntVar(&cfg.concurrency, "concurrency", 0, "Maximum conversions running at once (default: job file setting or 4)")
	fs.BoolVar(&cfg.failFast, "fail-fast", false, "Stop starting new jobs after the first failure")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.logFile, "log-file", "", "Also write JSON logs to this file")
	fs.BoolVar(&cfg.listEncodings, "list-encodings", false, "Print the supported encoding names and exit")

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	cfg.args = fs.Args()

	if cfg.listEncodings {
		return cfg, fs, nil
	}
	if cfg.concurrency < 0 {
		return nil, fs, errNegativeLimit
	}
	if cfg.configPath != "" {
		if len(cfg.args) > 0 {
			return nil, fs, errConfigWithArgs
		}
		return cfg, fs, nil
	}
	if len(cfg.args) != 2 {
		return nil, fs, errPositionalArgs
	}
	if cfg.from == "" || cfg.to == "" {
		return nil, fs, errMissingEncoding
	}
	return cfg, fs, nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	if fs == nil {
		return
	}
	name := filepath.Base(os.Args[0])
	_, _ = fmt.Fprintf(w, "Usage: %s -from <enc> -to <enc> [flags] <source> <destination>\n", name)
	_, _ = fmt.Fprintf(w, "       %s -config <jobs.toml> [flags]\n", name)
	fs.PrintDefaults()
}

func execute(ctx context.Context, cfg *cliConfig, runID string, logger *slog.Logger, stdout io.Writer, painter color.Painter) *logging.RunError {
	reqs, concurrency, createDirs, err := buildRequests(cfg)
	if err != nil {
		return &logging.RunError{Type: logging.ErrorTypeConfigParsing, Message: "failed to load job file", RunID: runID, Err: err}
	}

	logger.Info("Starting conversion",
		slog.String("run_id", runID),
		slog.Int("jobs", len(reqs)),
		slog.Int("concurrency", concurrency))

	single := cfg.configPath == ""
	opts := []batch.Option{
		batch.WithLogger(logger),
		batch.WithConverter(reencode.New(reencode.WithLogger(logger))),
		batch.WithConcurrency(concurrency),
		batch.WithStopOnError(cfg.failFast),
		// A failed single conversion or an aborted batch leaves no new directories behind.
		batch.WithCleanupOnError(single || cfg.failFast),
	}
	if createDirs {
		opts = append(opts, batch.WithDirectoryManager(dirutil.NewManager()))
	}

	results, err := batch.NewRunner(opts...).Run(ctx, reqs)
	for _, res := range results {
		printResult(stdout, painter, res)
	}

	succeeded, failed, skipped := batch.Count(results)
	_, _ = fmt.Fprintf(stdout, "Re-encoded %d of %d files (%d failed, %d skipped)\n", succeeded, len(reqs), failed, skipped)

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return &logging.RunError{Type: logging.ErrorTypeUserInterrupted, Message: "interrupted", RunID: runID, Err: err}
	case errors.Is(err, batch.ErrDuplicateDestination):
		return &logging.RunError{Type: logging.ErrorTypeConfigParsing, Message: "invalid job list", RunID: runID, Err: err}
	default:
		msg := fmt.Sprintf("%d of %d conversions failed", failed, len(reqs))
		return &logging.RunError{Type: logging.ErrorTypeConversion, Message: msg, RunID: runID, Err: err}
	}
}

func buildRequests(cfg *cliConfig) ([]reencode.Request, int, bool, error) {
	if cfg.configPath == "" {
		req := reencode.Request{
			SourcePath:      cfg.args[0],
			DestinationPath: cfg.args[1],
			SourceEncoding:  cfg.from,
			TargetEncoding:  cfg.to,
			Options:         reencode.Options{AddBOM: cfg.addBOM},
		}
		return []reencode.Request{req}, 1, cfg.mkdir, nil
	}

	jf, err := config.Load(cfg.configPath)
	if err != nil {
		return nil, 0, false, err
	}
	concurrency := jf.Concurrency
	if cfg.concurrency > 0 {
		concurrency = cfg.concurrency
	}
	return jf.Requests, concurrency, jf.CreateDirs || cfg.mkdir, nil
}

func printResult(w io.Writer, p color.Painter, res batch.Result) {
	switch {
	case res.Err == nil:
		_, _ = fmt.Fprintf(w, "%s      %s -> %s\n", p.Paint(color.Green, "OK"), res.Request.SourcePath, res.Request.DestinationPath)
	case res.Skipped():
		_, _ = fmt.Fprintf(w, "%s %s\n", p.Paint(color.Yellow, "SKIPPED"), res.Request.SourcePath)
	default:
		_, _ = fmt.Fprintf(w, "%s  %s [%s]: %v\n", p.Paint(color.Red, "FAILED"), res.Request.SourcePath, reencode.KindOf(res.Err), res.Err)
	}
}
