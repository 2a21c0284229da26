// Package agent defines the interfaces that agents implement and a
// registry of JSON serializable agent configurations
package agent

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/trafficrl/timestep"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses actions in each state. The Policy chooses which actions
// are taken, and the Learner uses these actions to update the Policy.
type Agent interface {
	Learner
	Policy
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Step performs a single update to the learner
	Step() error

	// Observe records that an action lead to some timestep
	Observe(action mat.Vector, nextObs timestep.TimeStep) error

	// ObserveFirst records the first timestep in an episode
	ObserveFirst(timestep.TimeStep) error

	// EndEpisode performs cleanup at the end of an episode
	EndEpisode()
}

// TdErrorer is a Learner that can return the TD error of some
// transition
type TdErrorer interface {
	Learner

	// TdError returns the TD error on a transition
	TdError(t timestep.Transition) (float64, error)
}

// Policy represents a policy that an agent can have.
//
// For a given agent, the Policy and Learner should have pointers to
// the same weights so that any changes the learner makes to the weights
// are reflected in the actions the Policy chooses.
type Policy interface {
	SelectAction(t timestep.TimeStep) (*mat.VecDense, error)
	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// Saver is an Agent that can be saved to disk to be loaded later
type Saver interface {
	Agent
	Save(path string) error
}
