package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.InDelta(t, 1, norm(v), 1e-6)
}

func TestNormalize_ZeroVector(t *testing.T) {
	v := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestNormalizeAll(t *testing.T) {
	vs := NormalizeAll([][]float32{{10, 0}, {1, 1}, {0, -2}})
	for _, v := range vs {
		assert.InDelta(t, 1, norm(v), 1e-6)
	}
}
