package ppo

import (
	"fmt"

	"github.com/samuelfneumann/trafficrl/agent"
	env "github.com/samuelfneumann/trafficrl/environment"
	"github.com/samuelfneumann/trafficrl/initwfn"
	"github.com/samuelfneumann/trafficrl/network"
	"github.com/samuelfneumann/trafficrl/solver"
)

func init() {
	agent.Register(agent.CategoricalPPOMLP, Config{})
}

// Config implements a configuration of a PPO agent with a categorical
// policy
type Config struct {
	// Policy network architecture
	PolicyLayers      []int
	PolicyBiases      []bool
	PolicyActivations []*network.Activation

	// State-value network architecture
	ValueLayers      []int
	ValueBiases      []bool
	ValueActivations []*network.Activation

	InitWFn      *initwfn.InitWFn
	PolicySolver *solver.Solver
	ValueSolver  *solver.Solver

	EpochLength    int // Steps of experience collected between updates
	Epochs         int // Policy gradient steps per update
	ValueGradSteps int // Value function gradient steps per update

	Clip     float64 // Clipping parameter ε of the surrogate objective
	TargetKL float64 // Stop policy updates early past this KL, 0 to disable
	Lambda   float64 // λ of GAE(λ)
	Gamma    float64 // Discount factor, overrides the environment's
}

// DefaultConfig returns the default PPO configuration
func DefaultConfig() Config {
	policySolver, err := solver.NewDefaultAdam(3e-4, 1)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: %v", err))
	}
	valueSolver, err := solver.NewDefaultAdam(1e-3, 1)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: %v", err))
	}

	return Config{
		PolicyLayers:      []int{64, 64},
		PolicyBiases:      []bool{true, true},
		PolicyActivations: []*network.Activation{network.TanH(), network.TanH()},

		ValueLayers:      []int{64, 64},
		ValueBiases:      []bool{true, true},
		ValueActivations: []*network.Activation{network.TanH(), network.TanH()},

		InitWFn:      initwfn.NewGlorotU(1.0),
		PolicySolver: policySolver,
		ValueSolver:  valueSolver,

		EpochLength:    512,
		Epochs:         10,
		ValueGradSteps: 10,

		Clip:   0.2,
		Lambda: 0.95,
		Gamma:  0.99,
	}
}

// Type returns the type of the configuration
func (c Config) Type() agent.Type {
	return agent.CategoricalPPOMLP
}

// Validate checks a Config to ensure it is a valid configuration of a
// PPO agent
func (c Config) Validate() error {
	if err := validateLayers(c.PolicyLayers, c.PolicyBiases,
		c.PolicyActivations); err != nil {
		return fmt.Errorf("validate: policy: %v", err)
	}
	if err := validateLayers(c.ValueLayers, c.ValueBiases,
		c.ValueActivations); err != nil {
		return fmt.Errorf("validate: value function: %v", err)
	}
	if c.InitWFn == nil {
		return fmt.Errorf("validate: no weight initializer given")
	}
	if c.PolicySolver == nil || c.ValueSolver == nil {
		return fmt.Errorf("validate: both a policy and value solver are " +
			"required")
	}
	if c.EpochLength < 1 || c.Epochs < 1 || c.ValueGradSteps < 1 {
		return fmt.Errorf("validate: epoch length, epochs, and value " +
			"gradient steps must be positive")
	}
	if c.Clip <= 0 {
		return fmt.Errorf("validate: clip must be positive \n\thave(%v)",
			c.Clip)
	}
	if c.TargetKL < 0 {
		return fmt.Errorf("validate: target KL must be non-negative")
	}
	if c.Lambda < 0 || c.Lambda > 1 {
		return fmt.Errorf("validate: λ must be in [0, 1] \n\thave(%v)",
			c.Lambda)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: ℽ must be in [0, 1] \n\thave(%v)", c.Gamma)
	}
	return nil
}

func validateLayers(sizes []int, biases []bool,
	activations []*network.Activation) error {
	if len(sizes) != len(biases) {
		return fmt.Errorf("invalid number of biases\n\twant(%v)\n\thave(%v)",
			len(sizes), len(biases))
	}
	if len(sizes) != len(activations) {
		return fmt.Errorf("invalid number of activations\n\twant(%v)"+
			"\n\thave(%v)", len(sizes), len(activations))
	}
	for i := range sizes {
		if sizes[i] < 1 {
			return fmt.Errorf("layer %d must have a positive size", i)
		}
		if activations[i] == nil {
			return fmt.Errorf("layer %d has no activation", i)
		}
	}
	return nil
}

// CreateAgent creates a new PPO agent based on the configuration
func (c Config) CreateAgent(e env.Environment, seed uint64) (agent.Agent,
	error) {
	return New(e, c, seed)
}
