// Package guid converts between the 22-character IFC GlobalId and the
// standard 128-bit identifier.
//
// The compressed form packs the 16 raw bytes into 6-bit groups: the first
// byte becomes 2 characters and each following run of 3 bytes becomes 4
// characters, using a base64 variant with its own alphabet.
//
// Validation is relaxed on purpose. Producer tools emit GlobalIds with
// length drift, so Expand decodes whatever it is given and only Validate
// (or Parse) rejects malformed input.
package guid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Length is the size of a compressed GlobalId.
const Length = 22

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_$"

// GUID errors.
var (
	ErrInvalidLength    = errors.New("invalid GlobalId length")
	ErrInvalidCharacter = errors.New("invalid GlobalId character")
	ErrOverflow         = errors.New("GlobalId first character out of range")
)

var decodeTable = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		t[alphabet[i]] = int8(i)
	}
	return t
}()

// Compress encodes a 128-bit id as a 22-character GlobalId.
func Compress(id uuid.UUID) string {
	var b strings.Builder
	b.Grow(Length)

	encode(&b, uint32(id[0]), 2)
	for i := 1; i < 16; i += 3 {
		n := uint32(id[i])<<16 | uint32(id[i+1])<<8 | uint32(id[i+2])
		encode(&b, n, 4)
	}
	return b.String()
}

func encode(b *strings.Builder, n uint32, digits int) {
	var buf [4]byte
	for i := digits - 1; i >= 0; i-- {
		buf[i] = alphabet[n&63]
		n >>= 6
	}
	b.Write(buf[:digits])
}

// Expand decodes a GlobalId into a 128-bit id.
//
// Canonical hyphenated, 32-hex, braced and urn forms pass through with
// case and hyphen normalization. Anything else is treated as a compressed
// id: short input decodes as if right-padded with '0', long input is
// truncated and unknown symbols decode as 0. Inputs that cannot be read
// at all return uuid.Nil.
func Expand(s string) uuid.UUID {
	s = strings.TrimSpace(s)
	if len(s) != Length && len(s) >= 32 {
		id, err := uuid.Parse(s)
		if err != nil {
			return uuid.Nil
		}
		return id
	}

	var id uuid.UUID
	id[0] = byte(decode(s, 0, 2))
	for i, pos := 1, 2; i < 16; i, pos = i+3, pos+4 {
		n := decode(s, pos, 4)
		id[i] = byte(n >> 16)
		id[i+1] = byte(n >> 8)
		id[i+2] = byte(n)
	}
	return id
}

func decode(s string, start, digits int) uint32 {
	var n uint32
	for i := start; i < start+digits; i++ {
		var v int8
		if i < len(s) {
			v = decodeTable[s[i]]
		}
		if v < 0 {
			v = 0
		}
		n = n<<6 | uint32(v)
	}
	return n
}

// Validate checks that s is a well-formed compressed GlobalId.
func Validate(s string) error {
	if len(s) != Length {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidLength, len(s), Length)
	}
	for i := 0; i < len(s); i++ {
		if decodeTable[s[i]] < 0 {
			return fmt.Errorf("%w: %q at %d", ErrInvalidCharacter, s[i], i)
		}
	}
	// The first character carries only the top 2 bits of byte 0.
	if decodeTable[s[0]] > 3 {
		return fmt.Errorf("%w: %q", ErrOverflow, s[0])
	}
	return nil
}

// Parse strictly decodes s. Compressed ids are validated before expansion;
// canonical forms go through uuid.Parse.
func Parse(s string) (uuid.UUID, error) {
	if len(s) != Length && len(s) >= 32 {
		return uuid.Parse(s)
	}
	if err := Validate(s); err != nil {
		return uuid.Nil, err
	}
	return Expand(s), nil
}

// Normalize returns the lowercase hyphenated form of any accepted GlobalId.
func Normalize(s string) string {
	return Expand(s).String()
}

// IsCompressed reports whether s has the shape of a compressed GlobalId.
func IsCompressed(s string) bool {
	return Validate(s) == nil
}

// New returns a fresh random GlobalId in compressed form.
func New() string {
	return Compress(uuid.New())
}
