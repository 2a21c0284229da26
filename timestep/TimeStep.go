// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a TimeStep can be, either  first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// EndType denotes how an episode ended. Only meaningful on the last
// TimeStep of an episode.
type EndType int

const (
	// Terminal denotes the episode reached a true terminal state, for
	// example by running out of traffic data to replay
	Terminal EndType = iota

	// Timeout denotes the episode was cut off by a step limit. The
	// value of the final state should still be bootstrapped.
	Timeout
)

func (e EndType) String() string {
	if e == Timeout {
		return "Timeout"
	}
	return "Terminal"
}

// TimeStep packages together a single timestep in an environment
type TimeStep struct {
	StepType
	EndType
	Reward      float64
	Discount    float64
	Observation mat.Vector
	Number      int
}

// New returns a new TimeStep. Last TimeSteps constructed with New end
// at a terminal state; use SetTimeout to mark a cut off episode.
func New(t StepType, r, d float64, o mat.Vector, n int) TimeStep {
	return TimeStep{
		StepType:    t,
		EndType:     Terminal,
		Reward:      r,
		Discount:    d,
		Observation: o,
		Number:      n,
	}
}

// First returns whether a TimeStep is the first in an environment
func (t *TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t *TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t *TimeStep) Last() bool {
	return t.StepType == Last
}

// TerminalEnd returns whether the TimeStep is the last step of an
// episode that ended in a terminal state. A TimeStep that was the last
// in its episode due to a step limit is not a terminal end.
func (t *TimeStep) TerminalEnd() bool {
	return t.Last() && t.EndType == Terminal
}

// SetTimeout marks the TimeStep as the last step of an episode that
// was cut off before reaching a terminal state
func (t *TimeStep) SetTimeout() {
	t.StepType = Last
	t.EndType = Timeout
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Discount: %.2f  |  " +
		"Step Number:  %v"

	return fmt.Sprintf(str, t.StepType, t.Reward, t.Discount, t.Number)
}
