// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Clip clips a floating point to within a minimum and maximum value.
func Clip(value, min, max float64) float64 {
	return math.Max(math.Min(value, max), min)
}

// MaxSlice returns the maximum value in a non-empty slice along with
// the indices of every element equal to it
func MaxSlice(values []float64) (max float64, indices []int) {
	max, indices = values[0], []int{0}

	for i := 1; i < len(values); i++ {
		if values[i] > max {
			max = values[i]
			indices = indices[:0]
			indices = append(indices, i)
		} else if values[i] == max {
			indices = append(indices, i)
		}
	}
	return
}

// LogSoftmax returns the log probabilities of a categorical
// distribution with the given logits
func LogSoftmax(logits []float64) []float64 {
	lse := floats.LogSumExp(logits)
	out := make([]float64, len(logits))
	floats.AddConst(-lse, floats.AddTo(out, out, logits))
	return out
}

// Softmax returns the probabilities of a categorical distribution with
// the given logits
func Softmax(logits []float64) []float64 {
	probs := LogSoftmax(logits)
	for i := range probs {
		probs[i] = math.Exp(probs[i])
	}
	return probs
}
