// Package encoding provides the character-set helpers needed to read
// STEP physical files: Latin-1 chunk decoding and the ISO 8859 code pages
// selected by \PA\ .. \PI\ escape directives.
package encoding

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DefaultPage is the code page in effect before any \P?\ directive (ISO 8859-1).
const DefaultPage = 'A'

var pages = map[byte]*charmap.Charmap{
	'A': charmap.ISO8859_1,
	'B': charmap.ISO8859_2,
	'C': charmap.ISO8859_3,
	'D': charmap.ISO8859_4,
	'E': charmap.ISO8859_5,
	'F': charmap.ISO8859_6,
	'G': charmap.ISO8859_7,
	'H': charmap.ISO8859_8,
	'I': charmap.ISO8859_9,
}

// ValidPage reports whether p names an ISO 8859 page that STEP can select.
func ValidPage(p byte) bool {
	_, ok := pages[p]
	return ok
}

// DecodeByte returns the rune for a high-half byte in the given page.
// Unknown pages fall back to ISO 8859-1.
func DecodeByte(page byte, b byte) rune {
	cm, ok := pages[page]
	if !ok {
		cm = charmap.ISO8859_1
	}
	return cm.DecodeByte(b)
}

// Latin1ToUTF8 converts ISO 8859-1 bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func Latin1ToUTF8(data []byte) string {
	result, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// Latin1Decoder returns a streaming decoder for raw STEP bytes.
// Pure ASCII input passes through untouched.
func Latin1Decoder() *encoding.Decoder {
	return charmap.ISO8859_1.NewDecoder()
}
