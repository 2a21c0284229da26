package deepq

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	env "github.com/samuelfneumann/trafficrl/environment"
	"github.com/samuelfneumann/trafficrl/network"
)

// checkpoint is the serialized form of a DeepQ agent
type checkpoint struct {
	Config        []byte // JSON encoded Config
	Seed          uint64
	Features      int
	NumActions    int
	Network       []byte // Learned network, see network.Encode
	TargetNetwork []byte
	Epsilon       float64
	GradientSteps int
}

// Save saves the agent's configuration, learned weights, target
// network weights, and exploration rate to path. The replay buffer and
// the solver's internal state are not saved.
func (d *DeepQ) Save(path string) error {
	config, err := json.Marshal(d.config)
	if err != nil {
		return fmt.Errorf("save: could not encode config: %v", err)
	}
	net, err := network.Encode(d.trainNet)
	if err != nil {
		return fmt.Errorf("save: %v", err)
	}
	targetNet, err := network.Encode(d.targetNet)
	if err != nil {
		return fmt.Errorf("save: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save: %v", err)
	}
	defer f.Close()

	err = gob.NewEncoder(f).Encode(checkpoint{
		Config:        config,
		Seed:          d.seed,
		Features:      d.features,
		NumActions:    d.numActions,
		Network:       net,
		TargetNetwork: targetNet,
		Epsilon:       d.policy.Epsilon(),
		GradientSteps: d.gradientSteps,
	})
	if err != nil {
		return fmt.Errorf("save: could not encode agent: %v", err)
	}
	return f.Close()
}

// Load loads a DeepQ agent saved with Save. If e is not nil, the agent
// must be compatible with the environment's specifications.
func Load(path string, e env.Environment) (*DeepQ, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}
	defer f.Close()

	var c checkpoint
	if err := gob.NewDecoder(f).Decode(&c); err != nil {
		return nil, fmt.Errorf("load: could not decode agent: %v", err)
	}

	var config Config
	if err := json.Unmarshal(c.Config, &config); err != nil {
		return nil, fmt.Errorf("load: could not decode config: %v", err)
	}

	if e != nil {
		numActions, err := env.NumActions(e.ActionSpec())
		if err != nil {
			return nil, fmt.Errorf("load: %v", err)
		}
		features := env.Features(e.ObservationSpec())
		if numActions != c.NumActions || features != c.Features {
			return nil, fmt.Errorf("load: agent with %d features and %d "+
				"actions is incompatible with environment with %d features "+
				"and %d actions", c.Features, c.NumActions, features,
				numActions)
		}
	}

	d, err := NewWithSize(c.Features, c.NumActions, config, c.Seed)
	if err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}
	for _, saved := range []struct {
		data []byte
		dest []network.NeuralNet
	}{
		{c.Network, []network.NeuralNet{d.trainNet, d.qNet}},
		{c.TargetNetwork, []network.NeuralNet{d.targetNet}},
	} {
		net, err := network.Decode(saved.data)
		if err != nil {
			return nil, fmt.Errorf("load: %v", err)
		}
		for _, dest := range saved.dest {
			if err := network.Set(dest, net); err != nil {
				return nil, fmt.Errorf("load: %v", err)
			}
		}
	}
	d.policy.SetEpsilon(c.Epsilon)
	d.gradientSteps = c.GradientSteps

	return d, nil
}
