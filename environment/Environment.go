// Package environment outlines the interfaces and structs needed to
// implement concrete environments
package environment

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/trafficrl/timestep"
)

// Environment implements a simulated environment that an agent can
// interact with.
//
// Reset begins a new episode and returns its first TimeStep. Step
// takes an action in the environment and returns the resulting
// TimeStep along with whether the episode has ended.
type Environment interface {
	Reset() (timestep.TimeStep, error)
	Step(action mat.Vector) (timestep.TimeStep, bool, error)
	RewardSpec() Spec
	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec
}

// Ender determines when episodes should end
type Ender interface {
	// End returns whether the episode should end at the argument
	// TimeStep, and if so, modifies the TimeStep so that it is the
	// last in the episode
	End(*timestep.TimeStep) bool
}

// StepLimit implements the Ender interface to end episodes at specific
// timestep limits. Episodes ended by a StepLimit are cut off rather
// than terminated, so values at the final state are still bootstrapped.
type StepLimit struct {
	episodeSteps int
}

// NewStepLimit creates and returns a new step limit
func NewStepLimit(episodeSteps int) StepLimit {
	return StepLimit{episodeSteps}
}

// End determines whether or not the current episode should be ended,
// returning a boolean to indicate episode termination. If the episode
// should be ended End() will modify the timestep so that it is the
// last timestep with a timeout ending.
func (s StepLimit) End(t *timestep.TimeStep) bool {
	if s.episodeSteps > 0 && t.Number >= s.episodeSteps {
		t.SetTimeout()
		return true
	}
	return false
}
