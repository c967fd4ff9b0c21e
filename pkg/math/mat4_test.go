package math

import (
	"math"
	"testing"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestIsIdentity(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
		want bool
	}{
		{"exact", Identity(), true},
		{"within epsilon", Mat4{1 + 1e-8, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 1e-8, 0, 0, 1}, true},
		{"translated", Translate(0, 0, 0.5), false},
		{"scaled", Scale(2, 1, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.IsIdentity(1e-6); got != tt.want {
				t.Errorf("IsIdentity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromSlice(t *testing.T) {
	m := FromSlice([]float32{2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 2, 0, 1, 2, 3, 1})
	if m[0] != 2 || m[5] != 2 || m[10] != 2 {
		t.Errorf("FromSlice diagonal: got (%f, %f, %f)", m[0], m[5], m[10])
	}
	if m[12] != 1 || m[13] != 2 || m[14] != 3 {
		t.Errorf("FromSlice translation: got (%f, %f, %f)", m[12], m[13], m[14])
	}

	short := FromSlice([]float32{5})
	if short[0] != 5 || short[5] != 1 || short[15] != 1 {
		t.Errorf("FromSlice short input should keep identity tail, got %v", short)
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	id := Identity()
	result := m.Mul(id)

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTranslate(t *testing.T) {
	m := Translate(5, 10, 15)
	if m[12] != 5 || m[13] != 10 || m[14] != 15 {
		t.Errorf("Translate: got (%f, %f, %f), want (5, 10, 15)", m[12], m[13], m[14])
	}
}

func TestTransformPoint(t *testing.T) {
	m := Translate(10, 20, 30)
	result := m.TransformPoint([3]float32{1, 2, 3})

	expected := [3]float32{11, 22, 33}
	if result != expected {
		t.Errorf("TransformPoint: got %v, want %v", result, expected)
	}
}

func TestTransformPointScale(t *testing.T) {
	m := Scale(2, 2, 2)
	result := m.TransformPoint([3]float32{1, 2, 3})

	expected := [3]float32{2, 4, 6}
	if result != expected {
		t.Errorf("TransformPoint with scale: got %v, want %v", result, expected)
	}
}

func TestRotateZ90(t *testing.T) {
	m := RotateZ(float32(math.Pi / 2))
	result := m.TransformPoint([3]float32{1, 0, 0})

	if abs(result[0]) > 0.001 || abs(result[1]-1) > 0.001 || abs(result[2]) > 0.001 {
		t.Errorf("RotateZ 90: got %v, want (0, 1, 0)", result)
	}
}

func TestTransformDirectionIgnoresTranslation(t *testing.T) {
	m := Translate(100, 100, 100)
	d := m.TransformDirection([3]float32{0, 0, 1})
	if d != [3]float32{0, 0, 1} {
		t.Errorf("TransformDirection: got %v, want (0, 0, 1)", d)
	}
}

func TestNormalMatrixNonUniformScale(t *testing.T) {
	m := Scale(2, 1, 1)
	n := V3(m.NormalMatrix().TransformDirection([3]float32{1, 1, 0})).Normalize()

	// A 45 degree normal tilts toward Y when X is stretched.
	if n.Y <= n.X {
		t.Errorf("NormalMatrix: expected Y > X, got %v", n)
	}
}

func TestInverse(t *testing.T) {
	m := Translate(1, 2, 3).Mul(Scale(2, 4, 8))
	p := m.Inverse().TransformPoint(m.TransformPoint([3]float32{1, 1, 1}))
	for i := range p {
		if abs(p[i]-1) > 1e-5 {
			t.Fatalf("Inverse round trip: got %v", p)
		}
	}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
