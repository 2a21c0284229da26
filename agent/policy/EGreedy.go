// Package policy implements action selection from action values
package policy

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/trafficrl/utils/floatutils"
)

// Schedule describes how the exploration rate of an EGreedy policy
// decays over time
type Schedule struct {
	Start float64 // Initial ε
	Min   float64 // ε is never decayed below Min
	Decay float64 // Multiplicative decay applied by each call to Decay()
}

// DefaultSchedule returns the default exploration schedule
func DefaultSchedule() Schedule {
	return Schedule{Start: 1.0, Min: 0.01, Decay: 0.995}
}

// Validate checks that the Schedule is a valid exploration schedule
func (s Schedule) Validate() error {
	if s.Min < 0 || s.Start > 1 || s.Min > s.Start {
		return fmt.Errorf("validate: must have 0 <= min ε (%v) <= initial "+
			"ε (%v) <= 1", s.Min, s.Start)
	}
	if s.Decay <= 0 || s.Decay > 1 {
		return fmt.Errorf("validate: ε decay must be in (0, 1] \n\thave(%v)",
			s.Decay)
	}
	return nil
}

// EGreedy implements an epsilon greedy policy over action values. With
// probability ε, a uniformly random action is selected. Otherwise, the
// action of maximum value is selected, with ties broken uniformly.
type EGreedy struct {
	epsilon float64
	min     float64
	decay   float64

	rng *rand.Rand
}

// NewEGreedy returns a new EGreedy policy following the Schedule s
func NewEGreedy(s Schedule, seed uint64) (*EGreedy, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("newEGreedy: %v", err)
	}
	return &EGreedy{
		epsilon: s.Start,
		min:     s.Min,
		decay:   s.Decay,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// Epsilon returns the current exploration rate
func (e *EGreedy) Epsilon() float64 {
	return e.epsilon
}

// SetEpsilon sets the current exploration rate, which is clipped to
// be no less than the minimum exploration rate
func (e *EGreedy) SetEpsilon(ε float64) {
	e.epsilon = math.Max(e.min, math.Min(1, ε))
}

// Decay decays the exploration rate once: ε <- max(min ε, ε * decay)
func (e *EGreedy) Decay() {
	e.epsilon = math.Max(e.min, e.epsilon*e.decay)
}

// SelectAction returns the index of the action selected epsilon
// greedily with respect to actionValues
func (e *EGreedy) SelectAction(actionValues []float64) int {
	if e.rng.Float64() < e.epsilon {
		return e.rng.Intn(len(actionValues))
	}
	return e.Greedy(actionValues)
}

// Greedy returns the index of a maximum valued action
func (e *EGreedy) Greedy(actionValues []float64) int {
	_, maxIndices := floatutils.MaxSlice(actionValues)
	if len(maxIndices) == 1 {
		return maxIndices[0]
	}
	return maxIndices[e.rng.Intn(len(maxIndices))]
}
