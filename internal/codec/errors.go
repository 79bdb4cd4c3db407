package codec

import (
	"errors"
	"fmt"
)

// Error definitions for codec resolution and conversion
var (
	// ErrUnsupportedEncoding indicates that an encoding name does not resolve to a known codec.
	ErrUnsupportedEncoding = errors.New("unsupported encoding")

	// ErrInvalidSequence indicates bytes that are not valid in the declared encoding.
	ErrInvalidSequence = errors.New("invalid byte sequence")

	// ErrUnrepresentable indicates a character that has no representation in the target encoding.
	ErrUnrepresentable = errors.New("character not representable")
)

// DecodeError reports where decoding failed.
// Offset is the byte offset in the original input, or -1 when the codec
// cannot attribute the failure to a position.
type DecodeError struct {
	Encoding string
	Offset   int
	Err      error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("decode %s: %v at byte offset %d", e.Encoding, e.Err, e.Offset)
	}
	return fmt.Sprintf("decode %s: %v", e.Encoding, e.Err)
}

// Unwrap returns the underlying cause
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError reports the first character that could not be encoded.
// Offset is the byte offset of Rune within the UTF-8 text.
type EncodeError struct {
	Encoding string
	Rune     rune
	Offset   int
	Err      error
}

// Error implements the error interface
func (e *EncodeError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("encode %s: %v: %U at text offset %d", e.Encoding, e.Err, e.Rune, e.Offset)
	}
	return fmt.Sprintf("encode %s: %v", e.Encoding, e.Err)
}

// Unwrap returns the underlying cause
func (e *EncodeError) Unwrap() error {
	return e.Err
}
