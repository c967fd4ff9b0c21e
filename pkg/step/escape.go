package step

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/Faultbox/ifckit/pkg/encoding"
)

// DecodeString resolves the STEP string escape grammar:
//
//	\\              backslash
//	\S\c            c+128 in the current code page
//	\PA\ .. \PI\    select ISO 8859-1 .. 9 for following \S\
//	\X\hh           one ISO 8859-1 byte
//	\X2\hhhh..\X0\  UTF-16 code units (surrogate pairs combined)
//	\X4\hhhhhhhh..\X0\  UCS-4 code points
//
// Malformed sequences are copied verbatim and reported through ok=false.
// The doubled apostrophe is handled by the tokenizer, not here.
func DecodeString(s string) (out string, ok bool) {
	if strings.IndexByte(s, '\\') < 0 {
		return s, true
	}

	var b strings.Builder
	b.Grow(len(s))
	ok = true
	page := byte(encoding.DefaultPage)

	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}

		n := decodeEscape(s[i:], &page, &b)
		if n == 0 {
			ok = false
			b.WriteByte(c)
			i++
			continue
		}
		i += n
	}
	return b.String(), ok
}

// decodeEscape decodes one escape at the start of s, writing the result to
// b. It returns the number of bytes consumed, or 0 if the escape is
// malformed.
func decodeEscape(s string, page *byte, b *strings.Builder) int {
	if len(s) < 2 {
		return 0
	}
	switch s[1] {
	case '\\':
		b.WriteByte('\\')
		return 2

	case 'S':
		if len(s) < 4 || s[2] != '\\' {
			return 0
		}
		// The escaped character is ASCII by construction; anything else
		// means the file was not a clean STEP stream.
		if s[3] >= utf8.RuneSelf {
			return 0
		}
		r := encoding.DecodeByte(*page, s[3]+128)
		b.WriteRune(r)
		return 4

	case 'P':
		if len(s) < 4 || s[3] != '\\' || !encoding.ValidPage(s[2]) {
			return 0
		}
		*page = s[2]
		return 4

	case 'X':
		if len(s) < 3 {
			return 0
		}
		switch {
		case s[2] == '\\':
			if len(s) < 5 {
				return 0
			}
			v, err := strconv.ParseUint(s[3:5], 16, 8)
			if err != nil {
				return 0
			}
			r := encoding.DecodeByte(encoding.DefaultPage, byte(v))
			if v < 0x80 {
				r = rune(v)
			}
			b.WriteRune(r)
			return 5
		case strings.HasPrefix(s[2:], "2\\"):
			return decodeWide(s, 4, b)
		case strings.HasPrefix(s[2:], "4\\"):
			return decodeWide(s, 8, b)
		}
	}
	return 0
}

// decodeWide decodes \X2\ and \X4\ runs. width is the number of hex
// digits per code unit.
func decodeWide(s string, width int, b *strings.Builder) int {
	const start = 4
	end := strings.Index(s[start:], `\X0\`)
	if end < 0 {
		return 0
	}
	hex := s[start : start+end]
	if len(hex) == 0 || len(hex)%width != 0 {
		return 0
	}

	var runes []rune
	if width == 4 {
		units := make([]uint16, 0, len(hex)/4)
		for i := 0; i < len(hex); i += 4 {
			v, err := strconv.ParseUint(hex[i:i+4], 16, 16)
			if err != nil {
				return 0
			}
			units = append(units, uint16(v))
		}
		runes = utf16.Decode(units)
	} else {
		runes = make([]rune, 0, len(hex)/8)
		for i := 0; i < len(hex); i += 8 {
			v, err := strconv.ParseUint(hex[i:i+8], 16, 32)
			if err != nil || v > utf8.MaxRune {
				return 0
			}
			runes = append(runes, rune(v))
		}
	}
	for _, r := range runes {
		b.WriteRune(r)
	}
	return start + end + len(`\X0\`)
}
