package guid

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestCompressKnownValue(t *testing.T) {
	tests := []struct {
		uuid string
		want string
	}{
		{"00000000-0000-0000-0000-000000000000", "0000000000000000000000"},
		{"ffffffff-ffff-ffff-ffff-ffffffffffff", "3$$$$$$$$$$$$$$$$$$$$$"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := Compress(uuid.MustParse(tt.uuid))
			if got != tt.want {
				t.Errorf("Compress(%s) = %q, want %q", tt.uuid, got, tt.want)
			}
			if back := Expand(got); back.String() != tt.uuid {
				t.Errorf("Expand(%q) = %s, want %s", got, back, tt.uuid)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for i := 0; i < 500; i++ {
		id := uuid.New()
		c := Compress(id)
		if len(c) != Length {
			t.Fatalf("Compress length = %d, want %d", len(c), Length)
		}
		if err := Validate(c); err != nil {
			t.Fatalf("Validate(%q) = %v", c, err)
		}
		if got := Expand(c); got != id {
			t.Fatalf("Expand(Compress(%s)) = %s", id, got)
		}
	}
}

func TestExpandPassThrough(t *testing.T) {
	want := "3f2504e0-4f89-11d3-9a0c-0305e82c3301"
	inputs := []string{
		"3F2504E0-4F89-11D3-9A0C-0305E82C3301",
		"3f2504e04f8911d39a0c0305e82c3301",
		"{3f2504e0-4f89-11d3-9a0c-0305e82c3301}",
	}
	for _, in := range inputs {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExpandRelaxed(t *testing.T) {
	id := uuid.New()
	c := Compress(id)

	// Truncated and overlong inputs never panic.
	_ = Expand(c[:10])
	_ = Expand(c + "XYZ")
	_ = Expand("")
	_ = Expand("!!!!!!!!!!!!!!!!!!!!!!")

	if got := Expand(c + "extra"); got != id {
		t.Errorf("Expand with trailing drift = %s, want %s", got, id)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"valid", "0YvctVUKr0kugbFTf53O9L", nil},
		{"short", "0YvctVUKr0kugbFTf53O9", ErrInvalidLength},
		{"bad char", "0YvctVUKr0kugbFTf53O9!", ErrInvalidCharacter},
		{"overflow", "4YvctVUKr0kugbFTf53O9L", ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.in)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate(%q) = %v, want nil", tt.in, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate(%q) = %v, want %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestParse(t *testing.T) {
	if _, err := Parse("short"); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("Parse(short) error = %v, want ErrInvalidLength", err)
	}
	id := uuid.New()
	got, err := Parse(Compress(id))
	if err != nil || got != id {
		t.Errorf("Parse round trip = %s, %v", got, err)
	}
	got, err = Parse(id.String())
	if err != nil || got != id {
		t.Errorf("Parse canonical = %s, %v", got, err)
	}
}

func TestNew(t *testing.T) {
	a, b := New(), New()
	if a == b {
		t.Error("New returned duplicate ids")
	}
	if !IsCompressed(a) {
		t.Errorf("New() = %q is not a compressed GlobalId", a)
	}
}
