package codec

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// textCodec adapts an x/text encoding to Codec with strict semantics.
// The x/text decoders substitute U+FFFD for invalid input, so any decoded
// text containing U+FFFD is verified by encoding it back.
type textCodec struct {
	name string
	enc  encoding.Encoding
	bom  []byte
	utf8 bool
}

func newTextCodec(name string, enc encoding.Encoding) *textCodec {
	return &textCodec{name: name, enc: enc}
}

func (c *textCodec) Name() string { return c.name }

func (c *textCodec) BOM() []byte {
	if c.bom == nil {
		return nil
	}
	return bytes.Clone(c.bom)
}

func (c *textCodec) Decode(src []byte) (string, error) {
	skipped := 0
	if HasBOM(src, c.bom) {
		skipped = len(c.bom)
	}
	data := src[skipped:]

	if c.utf8 {
		if off := invalidUTF8Offset(data); off >= 0 {
			return "", &DecodeError{Encoding: c.name, Offset: skipped + off, Err: ErrInvalidSequence}
		}
		return string(data), nil
	}

	out, err := c.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", &DecodeError{Encoding: c.name, Offset: -1, Err: fmt.Errorf("%w: %w", ErrInvalidSequence, err)}
	}

	if bytes.ContainsRune(out, utf8.RuneError) {
		if off := c.replacementOffset(data, out); off != noMismatch {
			if off >= 0 {
				off += skipped
			}
			return "", &DecodeError{Encoding: c.name, Offset: off, Err: ErrInvalidSequence}
		}
	}

	return string(out), nil
}

const noMismatch = -2

// replacementOffset returns noMismatch when decoded encodes back to data,
// i.e. every U+FFFD in decoded was genuinely present in the input.
// Otherwise it returns the best known byte offset of the first invalid
// sequence, or -1.
func (c *textCodec) replacementOffset(data, decoded []byte) int {
	back, err := c.enc.NewEncoder().Bytes(decoded)
	if err == nil {
		if bytes.Equal(back, data) {
			return noMismatch
		}
		return firstDiff(back, data)
	}

	// Single-byte charsets map one byte to one rune.
	if _, ok := c.enc.(*charmap.Charmap); ok {
		idx := 0
		for _, r := range string(decoded) {
			if r == utf8.RuneError {
				return idx
			}
			idx++
		}
	}
	return -1
}

func (c *textCodec) Encode(text string) ([]byte, error) {
	if off := invalidUTF8Offset([]byte(text)); off >= 0 {
		return nil, &EncodeError{Encoding: c.name, Rune: utf8.RuneError, Offset: off, Err: fmt.Errorf("%w: invalid UTF-8 input", ErrUnrepresentable)}
	}

	if c.utf8 {
		return []byte(text), nil
	}

	out, err := c.enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, c.locateUnencodable(text, err)
	}
	return out, nil
}

// locateUnencodable finds the first rune the encoder rejects.
func (c *textCodec) locateUnencodable(text string, cause error) error {
	for i, r := range text {
		if _, err := c.enc.NewEncoder().String(string(r)); err != nil {
			return &EncodeError{Encoding: c.name, Rune: r, Offset: i, Err: fmt.Errorf("%w: %w", ErrUnrepresentable, err)}
		}
	}
	return &EncodeError{Encoding: c.name, Offset: -1, Err: fmt.Errorf("%w: %w", ErrUnrepresentable, cause)}
}

// windows1252Codec follows the WHATWG windows-1252 index. charmap.Windows1252
// leaves 0x81, 0x8D, 0x8F, 0x90 and 0x9D undefined; WHATWG maps them to the
// C1 controls of the same value, so every byte decodes.
type windows1252Codec struct {
	name string
}

func isWindows1252Gap(r rune) bool {
	switch r {
	case 0x81, 0x8D, 0x8F, 0x90, 0x9D:
		return true
	}
	return false
}

func (c windows1252Codec) Name() string { return c.name }

func (windows1252Codec) BOM() []byte { return nil }

func (windows1252Codec) Decode(src []byte) (string, error) {
	var b strings.Builder
	b.Grow(len(src))
	for _, x := range src {
		r := charmap.Windows1252.DecodeByte(x)
		if isWindows1252Gap(rune(x)) {
			r = rune(x)
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

func (c windows1252Codec) Encode(text string) ([]byte, error) {
	if off := invalidUTF8Offset([]byte(text)); off >= 0 {
		return nil, &EncodeError{Encoding: c.name, Rune: utf8.RuneError, Offset: off, Err: fmt.Errorf("%w: invalid UTF-8 input", ErrUnrepresentable)}
	}

	out := make([]byte, 0, len(text))
	for i, r := range text {
		if isWindows1252Gap(r) {
			out = append(out, byte(r))
			continue
		}
		x, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			return nil, &EncodeError{Encoding: c.name, Rune: r, Offset: i, Err: ErrUnrepresentable}
		}
		out = append(out, x)
	}
	return out, nil
}

// sniffingCodec handles the endian-less UTF-16 and UTF-32 labels. Decoding
// honours a BOM of either byte order and defaults to little endian.
// Encoding always writes little endian with a BOM, since readers of these
// labels cannot otherwise tell the byte order.
type sniffingCodec struct {
	name string
	le   *textCodec
	be   *textCodec
}

func (c *sniffingCodec) Name() string { return c.name }

func (c *sniffingCodec) BOM() []byte { return c.le.BOM() }

func (c *sniffingCodec) Decode(src []byte) (string, error) {
	target := c.le
	if HasBOM(src, c.be.bom) {
		target = c.be
	}
	text, err := target.Decode(src)
	if err != nil {
		return "", relabel(err, c.name)
	}
	return text, nil
}

func (c *sniffingCodec) Encode(text string) ([]byte, error) {
	out, err := c.le.Encode(text)
	if err != nil {
		return nil, relabel(err, c.name)
	}
	return PrependBOM(out, c.le.bom), nil
}

func relabel(err error, name string) error {
	switch e := err.(type) {
	case *DecodeError:
		e.Encoding = name
	case *EncodeError:
		e.Encoding = name
	}
	return err
}

// invalidUTF8Offset returns the offset of the first invalid UTF-8 sequence, or -1.
func invalidUTF8Offset(data []byte) int {
	if utf8.Valid(data) {
		return -1
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

func firstDiff(a, b []byte) int {
	n := min(len(a), len(b))
	for i := range n {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
