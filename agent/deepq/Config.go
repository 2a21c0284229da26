package deepq

import (
	"fmt"

	"github.com/samuelfneumann/trafficrl/agent"
	"github.com/samuelfneumann/trafficrl/agent/policy"
	env "github.com/samuelfneumann/trafficrl/environment"
	"github.com/samuelfneumann/trafficrl/expreplay"
	"github.com/samuelfneumann/trafficrl/initwfn"
	"github.com/samuelfneumann/trafficrl/network"
	"github.com/samuelfneumann/trafficrl/solver"
)

func init() {
	// Register the Config so that it can be typed using
	// agent.TypedConfig to help with serialization/deserialization.
	agent.Register(agent.EGreedyDeepQMLP, Config{})
}

// Config implements a configuration for a DeepQ agent
type Config struct {
	PolicyLayers []int                 // Layer sizes in neural net
	Biases       []bool                // Whether each layer should have a bias
	Activations  []*network.Activation // Activation of each layer
	Solver       *solver.Solver        // Solver for learning weights

	// Initialization algorithm for weights
	InitWFn *initwfn.InitWFn

	Gamma   float64         // Discount factor of the update target
	Epsilon policy.Schedule // Behaviour policy exploration schedule

	// Experience replay parameters
	ExpReplay expreplay.Config

	// Target net updates
	Tau                  float64 // Polyak averaging constant
	TargetUpdateInterval int     // Number of gradient steps between updates
}

// DefaultConfig returns the default DeepQ configuration: a 64-64 ReLU
// network trained with Adam on batches of 32 transitions drawn from a
// buffer of the 5000 most recent transitions. The target network
// tracks the learned network after every update.
func DefaultConfig() Config {
	adam, err := solver.NewDefaultAdam(1e-3, 1)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: %v", err))
	}

	return Config{
		PolicyLayers: []int{64, 64},
		Biases:       []bool{true, true},
		Activations:  []*network.Activation{network.ReLU(), network.ReLU()},
		Solver:       adam,
		InitWFn:      initwfn.NewGlorotU(1.0),
		Gamma:        0.95,
		Epsilon:      policy.DefaultSchedule(),
		ExpReplay: expreplay.Config{
			BatchSize:         32,
			MinReplayCapacity: 32,
			MaxReplayCapacity: 5000,
		},
		Tau:                  1.0,
		TargetUpdateInterval: 1,
	}
}

// BatchSize returns the batch size of the agent constructed using this
// Config
func (c Config) BatchSize() int {
	return c.ExpReplay.BatchSize
}

// Type returns the type of the configuration
func (c Config) Type() agent.Type {
	return agent.EGreedyDeepQMLP
}

// Validate checks a Config to ensure it is a valid configuration of a
// DeepQ agent.
func (c Config) Validate() error {
	if len(c.PolicyLayers) != len(c.Biases) {
		return fmt.Errorf("validate: invalid number of biases\n\twant(%v)"+
			"\n\thave(%v)", len(c.PolicyLayers), len(c.Biases))
	}
	if len(c.PolicyLayers) != len(c.Activations) {
		return fmt.Errorf("validate: invalid number of activations"+
			"\n\twant(%v)\n\thave(%v)", len(c.PolicyLayers), len(c.Activations))
	}
	for i, size := range c.PolicyLayers {
		if size < 1 {
			return fmt.Errorf("validate: layer %d must have a positive size", i)
		}
	}
	for i, act := range c.Activations {
		if act == nil {
			return fmt.Errorf("validate: layer %d has no activation", i)
		}
	}
	if c.Solver == nil {
		return fmt.Errorf("validate: no solver given")
	}
	if c.InitWFn == nil {
		return fmt.Errorf("validate: no weight initializer given")
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: ℽ must be in [0, 1] \n\thave(%v)", c.Gamma)
	}
	if err := c.Epsilon.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if err := c.ExpReplay.Validate(); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	if c.TargetUpdateInterval < 1 {
		return fmt.Errorf("validate: target networks must be updated at "+
			"positive intervals \n\twant(>0) \n\thave(%v)",
			c.TargetUpdateInterval)
	}
	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("validate: τ must be in (0, 1] \n\thave(%v)", c.Tau)
	}
	return nil
}

// CreateAgent creates a new DeepQ agent based on the configuration
func (c Config) CreateAgent(e env.Environment, seed uint64) (agent.Agent,
	error) {
	return New(e, c, seed)
}
