package step

import "testing"

func TestDecodeString(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"plain", "Wall-01", "Wall-01", true},
		{"backslash", `a\\b`, `a\b`, true},
		{"8-bit latin1", `M\S\|ller`, "Müller", true},
		{"code page switch", `\PE\\S\0`, "А", true},
		{"hex byte", `caf\X\E9`, "café", true},
		{"utf16", `\X2\00C400D6\X0\`, "ÄÖ", true},
		{"utf16 surrogate pair", `\X2\D83DDE00\X0\`, "😀", true},
		{"utf32", `\X4\0001F600\X0\`, "😀", true},
		{"mixed", `A\X2\00DF\X0\B\S\DC`, "AßBÄC", true},
		{"unterminated wide", `x\X2\00C4`, `x\X2\00C4`, false},
		{"bad hex", `\X\ZZ`, `\X\ZZ`, false},
		{"unknown escape", `\Q\`, `\Q\`, false},
		{"odd wide length", `\X2\00C\X0\`, `\X2\00C\X0\`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeString(tt.in)
			if got != tt.want {
				t.Errorf("DecodeString(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if ok != tt.wantOK {
				t.Errorf("DecodeString(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
		})
	}
}
