package clustering

import (
	"gonum.org/v1/gonum/floats"
)

// toFloat64 widens an embedding once so gonum can operate on it.
func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Zero vectors yield 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// normalize scales v to unit length in place. Zero vectors are left as-is.
func normalize(v []float64) {
	n := floats.Norm(v, 2)
	if n > 0 {
		floats.Scale(1/n, v)
	}
}

// meanVector computes the mean of the given vectors. All vectors must share
// the same dimension.
func meanVector(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	mean := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		floats.Add(mean, v)
	}
	floats.Scale(1/float64(len(vectors)), mean)
	return mean
}
