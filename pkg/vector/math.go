package vector

import (
	"fmt"
	"math"
)

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v. The zero vector is returned
// unchanged.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n == 0 {
		copy(out, v)
		return out
	}
	for i, f := range v {
		out[i] = float32(float64(f) / n)
	}
	return out
}

// Blend returns normalize(base*decay + e*weight). Arithmetic is carried out in
// float64 and rounded once per element.
func Blend(base, e []float32, decay, weight float64) ([]float32, error) {
	if len(base) != len(e) {
		return nil, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(base), len(e))
	}

	sum := make([]float64, len(base))
	var sq float64
	for i := range base {
		sum[i] = float64(base[i])*decay + float64(e[i])*weight
		sq += sum[i] * sum[i]
	}

	out := make([]float32, len(base))
	n := math.Sqrt(sq)
	for i, f := range sum {
		if n == 0 {
			out[i] = float32(f)
			continue
		}
		out[i] = float32(f / n)
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is the
// zero vector.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (na * nb), nil
}
