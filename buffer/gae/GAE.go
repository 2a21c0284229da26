// Package gae implements a generalized advantage estimate buffer for
// on-policy learners
package gae

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Buffer implements a forward view generalized advantage estimate,
// GAE(λ), buffer following https://arxiv.org/abs/1506.02438. Along with
// each transition, the buffer stores the log probability that the
// behaviour policy gave the action taken so that ratios to the updated
// policy can be computed.
type Buffer struct {
	obsSize int // Size of state observations
	maxSize int

	currentPos   int // Next position in the buffer to write to
	pathStartIdx int // Position where the current trajectory starts

	lambda float64 // λ for GAE(λ) calculation
	gamma  float64 // Discount factor ℽ; overwrites env discount factor

	obsBuffer     []float64
	actBuffer     []int
	advBuffer     []float64
	rewBuffer     []float64
	retBuffer     []float64
	valBuffer     []float64
	logProbBuffer []float64
}

// New creates and returns a new GAE(λ) buffer
func New(obsDim, size int, lambda, gamma float64) (*Buffer, error) {
	if obsDim < 1 || size < 1 {
		return nil, fmt.Errorf("new: observation size and buffer size " +
			"must be positive")
	}
	if lambda < 0 || lambda > 1 {
		return nil, fmt.Errorf("new: λ must be in [0, 1]")
	}
	if gamma < 0 || gamma > 1 {
		return nil, fmt.Errorf("new: ℽ must be in [0, 1]")
	}

	return &Buffer{
		obsSize:       obsDim,
		maxSize:       size,
		lambda:        lambda,
		gamma:         gamma,
		obsBuffer:     make([]float64, size*obsDim),
		actBuffer:     make([]int, size),
		advBuffer:     make([]float64, size),
		rewBuffer:     make([]float64, size),
		retBuffer:     make([]float64, size),
		valBuffer:     make([]float64, size),
		logProbBuffer: make([]float64, size),
	}, nil
}

// Len returns the number of transitions stored in the buffer
func (b *Buffer) Len() int {
	return b.currentPos
}

// Full returns whether the buffer is at capacity
func (b *Buffer) Full() bool {
	return b.currentPos >= b.maxSize
}

// Store stores a single timestep's state, action, reward, value
// estimate, and behaviour log probability of the action
func (b *Buffer) Store(obs []float64, act int, rew, val,
	logProb float64) error {
	if b.Full() {
		return fmt.Errorf("store: cannot add new transition, buffer at " +
			"maximum capacity")
	}
	if len(obs) != b.obsSize {
		return fmt.Errorf("store: illegal obs length \n\twant(%v)\n\thave(%v)",
			b.obsSize, len(obs))
	}

	start := b.currentPos * b.obsSize
	copy(b.obsBuffer[start:start+b.obsSize], obs)

	b.actBuffer[b.currentPos] = act
	b.rewBuffer[b.currentPos] = rew
	b.valBuffer[b.currentPos] = val
	b.logProbBuffer[b.currentPos] = logProb
	b.currentPos++
	return nil
}

// FinishPath computes advantage estimates using GAE(λ) and
// rewards-to-go for each state of the current trajectory. This should
// be called at the end of a trajectory or when one gets cut off by an
// epoch ending.
//
// The lastVal argument should be 0 if the trajectory ended because
// the agent reached a terminal state, and otherwise it should be
// v(s), the value estimate of the last state, so that the returns
// beyond the cutoff are bootstrapped.
func (b *Buffer) FinishPath(lastVal float64) {
	start := b.pathStartIdx
	stop := b.currentPos
	if start == stop {
		return
	}

	n := stop - start
	rews := make([]float64, n+1)
	vals := make([]float64, n+1)
	copy(rews, b.rewBuffer[start:stop])
	copy(vals, b.valBuffer[start:stop])
	rews[n] = lastVal
	vals[n] = lastVal

	deltas := make([]float64, n)
	for i := range deltas {
		deltas[i] = rews[i] + b.gamma*vals[i+1] - vals[i]
	}
	copy(b.advBuffer[start:stop], discountCumSum(deltas, b.gamma*b.lambda))

	rewsToGo := discountCumSum(rews, b.gamma)
	copy(b.retBuffer[start:stop], rewsToGo[:n])

	b.pathStartIdx = b.currentPos
}

// Get returns the observations, actions, advantages, rewards-to-go,
// and behaviour log probabilities stored in the buffer, then empties
// the buffer. Advantages are standardized to mean 0 and standard
// deviation 1. The returned slices are owned by the buffer and are
// overwritten by subsequent calls to Store.
func (b *Buffer) Get() ([]float64, []int, []float64, []float64, []float64,
	error) {
	if !b.Full() {
		err := fmt.Errorf("get: buffer must be full before sampling")
		return nil, nil, nil, nil, nil, err
	}
	if b.pathStartIdx != b.currentPos {
		err := fmt.Errorf("get: the current path must be finished first")
		return nil, nil, nil, nil, nil, err
	}

	b.currentPos = 0
	b.pathStartIdx = 0

	mean, std := stat.MeanStdDev(b.advBuffer, nil)
	if len(b.advBuffer) < 2 {
		std = 0
	}
	floats.AddConst(-mean, b.advBuffer)
	floats.Scale(1/(std+1e-8), b.advBuffer)

	return b.obsBuffer, b.actBuffer, b.advBuffer, b.retBuffer,
		b.logProbBuffer, nil
}

// discountCumSum computes the discounted cumulative sum of x. Given
// x = [x0 x1 ... xN] and discount ℽ, element i of the result is
// xi + ℽ x(i+1) + ℽ² x(i+2) + ... + ℽ^(N-i) xN.
func discountCumSum(x []float64, discount float64) []float64 {
	cumSums := make([]float64, len(x))
	var running float64
	for i := len(x) - 1; i >= 0; i-- {
		running = x[i] + discount*running
		cumSums[i] = running
	}
	return cumSums
}
