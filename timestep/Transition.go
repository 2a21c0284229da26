package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition is a single (s, a, r, s', terminal) tuple of experience
type Transition struct {
	State     mat.Vector
	Action    int
	Reward    float64
	NextState mat.Vector

	// Terminal is true when NextState is a terminal state, in which case
	// its value should not be bootstrapped
	Terminal bool
}

// NewTransition creates a Transition from the timestep an action was
// taken in and the timestep the action lead to
func NewTransition(step TimeStep, action int, nextStep TimeStep) Transition {
	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    nextStep.Reward,
		NextState: nextStep.Observation,
		Terminal:  nextStep.TerminalEnd(),
	}
}

func (t Transition) String() string {
	return fmt.Sprintf("Transition | Action: %v  |  Reward: %.2f  |  "+
		"Terminal: %v", t.Action, t.Reward, t.Terminal)
}
