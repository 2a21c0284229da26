package expreplay

import (
	"golang.org/x/exp/rand"
)

// Selector implements functionality for choosing which indices of an
// experience replay buffer should be sampled
type Selector interface {
	// choose selects BatchSize() indices in [0, n)
	choose(n int) []int

	// BatchSize returns the number of elements that will be selected
	BatchSize() int
}

// uniformSelector is a Selector which selects data from an experience
// replay buffer uniformly randomly without replacement
type uniformSelector struct {
	samples int
	rng     *rand.Rand

	// scratch holds a permutation of buffer indices. Only its prefix is
	// shuffled on each call to choose.
	scratch []int
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly from an experience replay buffer. No index is selected more
// than once in a single batch.
func NewUniformSelector(samples int, seed uint64) Selector {
	source := rand.NewSource(seed)
	rng := rand.New(source)

	return &uniformSelector{samples: samples, rng: rng}
}

// BatchSize gets the number of samples in a batch drawn from the buffer
func (u *uniformSelector) BatchSize() int {
	return u.samples
}

// choose selects a number of indices at which to draw data from the
// buffer using a partial Fisher-Yates shuffle
func (u *uniformSelector) choose(n int) []int {
	if len(u.scratch) != n {
		u.scratch = make([]int, n)
		for i := range u.scratch {
			u.scratch[i] = i
		}
	}

	selected := make([]int, u.samples)
	for i := 0; i < u.samples; i++ {
		j := i + u.rng.Intn(n-i)
		u.scratch[i], u.scratch[j] = u.scratch[j], u.scratch[i]
		selected[i] = u.scratch[i]
	}
	return selected
}
