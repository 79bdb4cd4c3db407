// Package codec resolves character encoding names to strict decode/encode
// capabilities backed by golang.org/x/text.
package codec

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// Codec converts between bytes in a named encoding and UTF-8 text.
type Codec interface {
	// Name returns the canonical lower-case encoding name.
	Name() string
	// BOM returns the byte order mark for the encoding, or nil when it has none.
	BOM() []byte
	// Decode converts src to text. A leading BOM of this encoding is consumed.
	Decode(src []byte) (string, error)
	// Encode converts text to bytes in this encoding.
	Encode(text string) ([]byte, error)
}

// Resolver looks up codecs by encoding name.
type Resolver interface {
	Lookup(name string) (Codec, error)
}

// Canonical names of the UTF family
const (
	UTF8    = "utf-8"
	UTF16   = "utf-16"
	UTF16LE = "utf-16le"
	UTF16BE = "utf-16be"
	UTF32   = "utf-32"
	UTF32LE = "utf-32le"
	UTF32BE = "utf-32be"
)

var (
	utf8Codec    = &textCodec{name: UTF8, enc: unicode.UTF8, bom: BOMUTF8, utf8: true}
	utf16LECodec = &textCodec{name: UTF16LE, enc: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), bom: BOMUTF16LE}
	utf16BECodec = &textCodec{name: UTF16BE, enc: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), bom: BOMUTF16BE}
	utf32LECodec = &textCodec{name: UTF32LE, enc: utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), bom: BOMUTF32LE}
	utf32BECodec = &textCodec{name: UTF32BE, enc: utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM), bom: BOMUTF32BE}
	utf16Codec   = &sniffingCodec{name: UTF16, le: utf16LECodec, be: utf16BECodec}
	utf32Codec   = &sniffingCodec{name: UTF32, le: utf32LECodec, be: utf32BECodec}
)

// unicodeAliases maps UTF labels to codecs. These are resolved before the
// WHATWG index, which folds "utf-16" into UTF-16LE and has no UTF-32.
var unicodeAliases = map[string]Codec{
	"utf-8":             utf8Codec,
	"utf8":              utf8Codec,
	"unicode-1-1-utf-8": utf8Codec,
	"unicode11utf8":     utf8Codec,
	"unicode20utf8":     utf8Codec,
	"x-unicode20utf8":   utf8Codec,
	"utf-16le":          utf16LECodec,
	"utf16le":           utf16LECodec,
	"utf-16be":          utf16BECodec,
	"utf16be":           utf16BECodec,
	"unicodefffe":       utf16BECodec,
	"utf-16":            utf16Codec,
	"utf16":             utf16Codec,
	"ucs-2":             utf16Codec,
	"unicode":           utf16Codec,
	"csunicode":         utf16Codec,
	"iso-10646-ucs-2":   utf16Codec,
	"unicodefeff":       utf16Codec,
	"utf-32le":          utf32LECodec,
	"utf32le":           utf32LECodec,
	"utf-32be":          utf32BECodec,
	"utf32be":           utf32BECodec,
	"utf-32":            utf32Codec,
	"utf32":             utf32Codec,
	"ucs-4":             utf32Codec,
	"iso-10646-ucs-4":   utf32Codec,
}

// Default is the resolver backed by golang.org/x/text.
var Default Resolver = textResolver{}

type textResolver struct{}

// Lookup resolves name using the Default resolver.
func Lookup(name string) (Codec, error) {
	return Default.Lookup(name)
}

// Lookup resolves a case-insensitive encoding name. UTF labels are handled
// first, then WHATWG labels, then IANA names. Names that resolve to the
// WHATWG replacement encoding are rejected.
func (textResolver) Lookup(name string) (Codec, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnsupportedEncoding)
	}

	if c, ok := unicodeAliases[key]; ok {
		return c, nil
	}

	if enc, err := htmlindex.Get(key); err == nil {
		if enc == encoding.Replacement {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
		}
		canonical, nameErr := htmlindex.Name(enc)
		if nameErr != nil {
			canonical = key
		}
		if enc == charmap.Windows1252 {
			return windows1252Codec{name: canonical}, nil
		}
		return newTextCodec(canonical, enc), nil
	}

	// ianaindex returns a nil encoding without error for registered names
	// that have no implementation.
	if enc, err := ianaindex.IANA.Encoding(key); err == nil && enc != nil && enc != encoding.Replacement {
		canonical, nameErr := ianaindex.IANA.Name(enc)
		if nameErr != nil {
			canonical = key
		}
		return newTextCodec(strings.ToLower(canonical), enc), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
}

// Names returns the sorted canonical names of all resolvable encodings.
// Encodings whose WHATWG label maps to the replacement encoding, such as
// HZ-GB-2312, are left out.
func Names() []string {
	seen := map[string]struct{}{}
	for _, c := range unicodeAliases {
		seen[c.Name()] = struct{}{}
	}

	families := [][]encoding.Encoding{
		charmap.All,
		japanese.All,
		korean.All,
		simplifiedchinese.All,
		traditionalchinese.All,
	}
	for _, family := range families {
		for _, enc := range family {
			n, err := htmlindex.Name(enc)
			if err != nil {
				if n, err = ianaindex.IANA.Name(enc); err != nil {
					continue
				}
				n = strings.ToLower(n)
			}
			if _, err := Lookup(n); err == nil {
				seen[n] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
