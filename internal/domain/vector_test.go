package domain

import (
	"math"
	"testing"
)

func TestCosineSimilarity_Identical(t *testing.T) {
	v := []float32{0.3, 0.5, 0.2}
	got := CosineSimilarity(v, v)
	if math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("expected 1.0, got %g", got)
	}
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	got := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if math.Abs(got) > 1e-9 {
		t.Fatalf("expected 0, got %g", got)
	}
}

func TestCosineSimilarity_Opposite(t *testing.T) {
	got := CosineSimilarity([]float32{1, 2}, []float32{-1, -2})
	if math.Abs(got+1.0) > 1e-9 {
		t.Fatalf("expected -1.0, got %g", got)
	}
}

func TestCosineSimilarity_MismatchedOrEmpty(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 2}, []float32{1}); got != 0 {
		t.Errorf("mismatched lengths: expected 0, got %g", got)
	}
	if got := CosineSimilarity(nil, nil); got != 0 {
		t.Errorf("empty vectors: expected 0, got %g", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Errorf("zero magnitude: expected 0, got %g", got)
	}
}
