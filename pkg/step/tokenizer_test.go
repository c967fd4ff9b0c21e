package step

import (
	"testing"
)

func TestParseAttributes(t *testing.T) {
	vals, failures := ParseAttributes(`'1xS3BCk291UvhgP2dvNsgQ',$,'It''s',*,#20,(#1,#2),.STANDARD.,.T.,-1.5E-3,42,IFCLABEL('x'),IFCDATE('2024-03-01'),()`)
	if failures != 0 {
		t.Fatalf("failures = %d, want 0", failures)
	}
	if len(vals) != 13 {
		t.Fatalf("got %d values, want 13: %v", len(vals), vals)
	}

	checks := []struct {
		i    int
		kind Kind
		str  string
	}{
		{0, KindString, "1xS3BCk291UvhgP2dvNsgQ"},
		{1, KindNull, "$"},
		{2, KindString, "It's"},
		{3, KindDerived, "*"},
		{4, KindRef, "#20"},
		{5, KindList, "(#1,#2)"},
		{6, KindEnum, "STANDARD"},
		{7, KindBoolean, "true"},
		{8, KindNumber, "-0.0015"},
		{9, KindInteger, "42"},
		{10, KindString, "x"},
		{11, KindDate, "2024-03-01"},
		{12, KindList, "()"},
	}
	for _, c := range checks {
		if vals[c.i].Kind != c.kind {
			t.Errorf("vals[%d].Kind = %s, want %s", c.i, vals[c.i].Kind, c.kind)
		}
		if got := vals[c.i].String(); got != c.str {
			t.Errorf("vals[%d].String() = %q, want %q", c.i, got, c.str)
		}
	}

	if vals[10].TypeName != "IFCLABEL" {
		t.Errorf("TypeName = %q, want IFCLABEL", vals[10].TypeName)
	}
	if refs := vals[5].Refs(); len(refs) != 2 || refs[0] != 1 || refs[1] != 2 {
		t.Errorf("Refs() = %v, want [1 2]", refs)
	}
}

func TestParseAttributesScientific(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1.E-05", 0.00001},
		{"2.5E+2", 250},
		{"0.", 0},
		{"-3.25", -3.25},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			vals, failures := ParseAttributes(tt.in)
			if failures != 0 || len(vals) != 1 {
				t.Fatalf("ParseAttributes(%q) = %v, %d failures", tt.in, vals, failures)
			}
			if vals[0].Kind != KindNumber || vals[0].Num != tt.want {
				t.Errorf("got %v (%s), want %v", vals[0].Num, vals[0].Kind, tt.want)
			}
		})
	}
}

func TestParseAttributesDecodeFailureKeepsToken(t *testing.T) {
	vals, failures := ParseAttributes(`12abc,'ok'`)
	if failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}
	if len(vals) != 2 {
		t.Fatalf("got %d values, want 2", len(vals))
	}
	if vals[0].Kind != KindRaw || vals[0].Str != "12abc" {
		t.Errorf("vals[0] = %+v, want raw 12abc", vals[0])
	}
	if vals[1].Str != "ok" {
		t.Errorf("vals[1] = %+v, want ok", vals[1])
	}
}

func TestParseAttributesNestedTypedBoolean(t *testing.T) {
	vals, _ := ParseAttributes(`'IsExternal',$,IFCBOOLEAN(.F.),$`)
	if len(vals) != 4 {
		t.Fatalf("got %d values", len(vals))
	}
	v := vals[2]
	if v.Kind != KindBoolean || v.Bool != False || v.TypeName != "IFCBOOLEAN" {
		t.Errorf("got %+v, want IFCBOOLEAN false", v)
	}
	if v.Interface() != false {
		t.Errorf("Interface() = %v, want false", v.Interface())
	}
	u, _ := ParseAttributes(`IFCLOGICAL(.U.)`)
	if u[0].Interface() != nil {
		t.Errorf("unknown logical Interface() = %v, want nil", u[0].Interface())
	}
}
