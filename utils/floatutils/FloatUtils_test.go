package floatutils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
)

func TestMaxSlice(t *testing.T) {
	max, indices := MaxSlice([]float64{1, 3, 2, 3})
	assert.Equal(t, 3.0, max)
	assert.Equal(t, []int{1, 3}, indices)

	max, indices = MaxSlice([]float64{5, 5})
	assert.Equal(t, 5.0, max)
	assert.Equal(t, []int{0, 1}, indices)

	_, indices = MaxSlice([]float64{-1})
	assert.Equal(t, []int{0}, indices)
}

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float64{1000, 1000, 1000})
	assert.InDeltaSlice(t, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}, probs, 1e-12)

	probs = Softmax([]float64{0, math.Log(3)})
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, probs, 1e-12)
	assert.InDelta(t, 1, floats.Sum(probs), 1e-12)
}

func TestClip(t *testing.T) {
	assert.Equal(t, 1.0, Clip(3, -1, 1))
	assert.Equal(t, -1.0, Clip(-3, -1, 1))
	assert.Equal(t, 0.5, Clip(0.5, -1, 1))
}
