package vector

import (
	"math"
	"testing"
)

const eps = 1e-6

func TestCosine_Identity(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5, 0}
	if got := Cosine(v, v); math.Abs(got-1) > eps {
		t.Errorf("Cosine(v, v) = %f, want 1", got)
	}
}

func TestCosine_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 2}, []float32{-1, -2}, -1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"zero a", []float32{0, 0}, []float32{1, 1}, 0},
		{"zero b", []float32{1, 1}, []float32{0, 0}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Cosine(tc.a, tc.b); math.Abs(got-tc.want) > eps {
				t.Errorf("Cosine = %f, want %f", got, tc.want)
			}
		})
	}
}

func TestCosine_SymmetricAndBounded(t *testing.T) {
	vectors := [][]float32{
		{1, 2, 3},
		{-4, 0.5, 9},
		{0.001, 0.002, -0.003},
		{1e6, -1e6, 3},
		{0, 0, 0},
	}
	for i, a := range vectors {
		for j, b := range vectors {
			ab, ba := Cosine(a, b), Cosine(b, a)
			if ab != ba {
				t.Errorf("sim(%d,%d)=%f != sim(%d,%d)=%f", i, j, ab, j, i, ba)
			}
			if ab < -1 || ab > 1 {
				t.Errorf("sim(%d,%d)=%f out of [-1, 1]", i, j, ab)
			}
		}
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	if math.Abs(Magnitude(v)-1) > eps {
		t.Errorf("expected unit length, got %f", Magnitude(v))
	}

	zero := []float32{0, 0}
	Normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}
