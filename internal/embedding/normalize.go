package embedding

import "math"

// Normalize scales v to unit length in place and returns it. Indexed vectors and query
// vectors both pass through here, so cosine similarity reduces to an inner product.
// A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	norm := math.Sqrt(sum)
	for i, x := range v {
		v[i] = float32(float64(x) / norm)
	}
	return v
}

// NormalizeAll normalizes every vector in place.
func NormalizeAll(vs [][]float32) [][]float32 {
	for _, v := range vs {
		Normalize(v)
	}
	return vs
}
