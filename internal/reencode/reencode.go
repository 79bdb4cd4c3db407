// Package reencode converts a file from one character encoding to another.
//
// A conversion reads the whole source, decodes it strictly with the source
// codec, encodes it strictly with the target codec, optionally prepends the
// target's byte order mark, and replaces the destination atomically. Any
// failure leaves the destination as it was.
package reencode

import (
	"errors"
	"log/slog"
	"os"

	"github.com/isseis/go-script-extras/internal/codec"
	"github.com/isseis/go-script-extras/internal/safefileio"
)

// DefaultFileMode is the permission used for newly created destinations.
const DefaultFileMode os.FileMode = 0o644

// Options controls optional conversion behaviour.
type Options struct {
	// AddBOM prefixes the output with the target encoding's BOM. It has no
	// effect for encodings without one.
	AddBOM bool
}

// Request describes one conversion.
type Request struct {
	SourcePath      string
	DestinationPath string
	SourceEncoding  string
	TargetEncoding  string
	Options         Options
}

// Reencoder performs conversions. It holds no per-call state and is safe
// for concurrent use.
type Reencoder struct {
	resolver codec.Resolver
	fs       safefileio.FileSystem
	logger   *slog.Logger
	perm     os.FileMode
}

// Option configures a Reencoder.
type Option func(*Reencoder)

// WithResolver sets the codec resolver.
func WithResolver(r codec.Resolver) Option {
	return func(re *Reencoder) { re.resolver = r }
}

// WithFileSystem sets the file system used for reading and writing.
func WithFileSystem(fs safefileio.FileSystem) Option {
	return func(re *Reencoder) { re.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(re *Reencoder) { re.logger = l }
}

// WithFileMode sets the permission of newly created destinations.
func WithFileMode(perm os.FileMode) Option {
	return func(re *Reencoder) { re.perm = perm }
}

// New creates a Reencoder.
func New(opts ...Option) *Reencoder {
	r := &Reencoder{
		resolver: codec.Default,
		fs:       safefileio.NewFileSystem(),
		perm:     DefaultFileMode,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Reencode converts src from encoding `from` to encoding `to` and writes dst
// using a default Reencoder.
func Reencode(src, dst, from, to string, opts Options) error {
	return New().Reencode(Request{
		SourcePath:      src,
		DestinationPath: dst,
		SourceEncoding:  from,
		TargetEncoding:  to,
		Options:         opts,
	})
}

// Reencode runs the conversion described by req. The returned error, if
// any, is an *Error whose Kind tells which stage failed.
func (r *Reencoder) Reencode(req Request) error {
	log := r.logger.With(
		slog.String("source", req.SourcePath),
		slog.String("destination", req.DestinationPath))

	if req.SourcePath == "" {
		return &Error{Kind: KindNotFound, Err: errors.New("empty source path")}
	}
	if req.DestinationPath == "" {
		return &Error{Kind: KindWrite, Err: errors.New("empty destination path")}
	}

	// Encoding names are checked before any I/O.
	from, err := r.resolver.Lookup(req.SourceEncoding)
	if err != nil {
		return &Error{Kind: KindUnsupportedEncoding, Encoding: req.SourceEncoding, Err: err}
	}
	to, err := r.resolver.Lookup(req.TargetEncoding)
	if err != nil {
		return &Error{Kind: KindUnsupportedEncoding, Encoding: req.TargetEncoding, Err: err}
	}

	log.Debug("Reading source", slog.String("stage", "reading"))
	data, err := safefileio.ReadFileWithFS(r.fs, req.SourcePath)
	if err != nil {
		kind := KindRead
		if errors.Is(err, os.ErrNotExist) {
			kind = KindNotFound
		}
		return &Error{Kind: kind, Path: req.SourcePath, Err: err}
	}

	log.Debug("Decoding source", slog.String("stage", "decoding"), slog.String("encoding", from.Name()), slog.Int("bytes", len(data)))
	text, err := from.Decode(data)
	if err != nil {
		return &Error{Kind: KindDecode, Path: req.SourcePath, Encoding: from.Name(), Err: err}
	}

	log.Debug("Encoding text", slog.String("stage", "encoding"), slog.String("encoding", to.Name()))
	out, err := to.Encode(text)
	if err != nil {
		return &Error{Kind: KindEncode, Path: req.SourcePath, Encoding: to.Name(), Err: err}
	}

	if req.Options.AddBOM {
		if bom := to.BOM(); len(bom) > 0 {
			out = codec.PrependBOM(out, bom)
		} else {
			log.Debug("Target encoding has no BOM, ignoring AddBOM", slog.String("encoding", to.Name()))
		}
	}

	log.Debug("Writing destination", slog.String("stage", "writing"), slog.Int("bytes", len(out)))
	if err := safefileio.WriteFileAtomicWithFS(r.fs, req.DestinationPath, out, r.perm); err != nil {
		return &Error{Kind: KindWrite, Path: req.DestinationPath, Err: err}
	}

	log.Info("Re-encoded file",
		slog.String("from", from.Name()),
		slog.String("to", to.Name()),
		slog.Bool("bom", req.Options.AddBOM && len(to.BOM()) > 0),
		slog.Int("bytes_in", len(data)),
		slog.Int("bytes_out", len(out)))

	return nil
}
