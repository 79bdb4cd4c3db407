package reencode

import (
	"errors"
	"fmt"
)

// Kind classifies why a conversion could not complete.
type Kind int

const (
	// KindUnknown is reported by KindOf for errors that did not come from a conversion.
	KindUnknown Kind = iota
	// KindNotFound indicates the source file does not exist.
	KindNotFound
	// KindUnsupportedEncoding indicates an encoding name that does not resolve to a codec.
	KindUnsupportedEncoding
	// KindRead indicates the source exists but could not be read as a regular file.
	KindRead
	// KindDecode indicates bytes that are invalid for the source encoding.
	KindDecode
	// KindEncode indicates text that the target encoding cannot represent.
	KindEncode
	// KindWrite indicates the destination could not be written.
	KindWrite
)

// Sentinel errors matching each Kind with errors.Is
var (
	ErrNotFound            = errors.New("source not found")
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
	ErrRead                = errors.New("source not readable")
	ErrDecode              = errors.New("decode failed")
	ErrEncode              = errors.New("encode failed")
	ErrWrite               = errors.New("write failed")
)

var kindSentinels = map[Kind]error{
	KindNotFound:            ErrNotFound,
	KindUnsupportedEncoding: ErrUnsupportedEncoding,
	KindRead:                ErrRead,
	KindDecode:              ErrDecode,
	KindEncode:              ErrEncode,
	KindWrite:               ErrWrite,
}

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnsupportedEncoding:
		return "unsupported_encoding"
	case KindRead:
		return "read_failed"
	case KindDecode:
		return "decode_failed"
	case KindEncode:
		return "encode_failed"
	case KindWrite:
		return "write_failed"
	case KindUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned for every failed conversion. Path is the file the
// failure relates to and Encoding the encoding name involved, when any.
type Error struct {
	Kind     Kind
	Path     string
	Encoding string
	Err      error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := "reencode: " + e.Kind.String()
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		msg = "reencode: " + sentinel.Error()
	}
	if e.Path != "" {
		msg += " for " + e.Path
	}
	if e.Encoding != "" {
		msg += fmt.Sprintf(" (%s)", e.Encoding)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the sentinel for e.Kind
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of a reencode error, or KindUnknown when err is not one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
