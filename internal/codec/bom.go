package codec

import "bytes"

// Canonical byte order marks
var (
	BOMUTF8    = []byte{0xEF, 0xBB, 0xBF}
	BOMUTF16LE = []byte{0xFF, 0xFE}
	BOMUTF16BE = []byte{0xFE, 0xFF}
	BOMUTF32LE = []byte{0xFF, 0xFE, 0x00, 0x00}
	BOMUTF32BE = []byte{0x00, 0x00, 0xFE, 0xFF}
)

// HasBOM reports whether data starts with bom. An empty bom never matches.
func HasBOM(data, bom []byte) bool {
	return len(bom) > 0 && bytes.HasPrefix(data, bom)
}

// PrependBOM returns data prefixed with bom, unless data already starts with it.
func PrependBOM(data, bom []byte) []byte {
	if len(bom) == 0 || HasBOM(data, bom) {
		return data
	}
	out := make([]byte, 0, len(bom)+len(data))
	out = append(out, bom...)
	return append(out, data...)
}
