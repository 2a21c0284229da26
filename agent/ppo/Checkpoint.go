package ppo

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	env "github.com/samuelfneumann/trafficrl/environment"
	"github.com/samuelfneumann/trafficrl/network"
)

// checkpoint is the serialized form of a PPO agent
type checkpoint struct {
	Config     []byte // JSON encoded Config
	Seed       uint64
	Features   int
	NumActions int
	Policy     []byte // See network.Encode
	Value      []byte
	Updates    int
}

// Save saves the agent's configuration along with the weights of its
// policy and value function to path. Partially collected experience and
// solver state are not saved.
func (p *PPO) Save(path string) error {
	config, err := json.Marshal(p.config)
	if err != nil {
		return fmt.Errorf("save: could not encode config: %v", err)
	}
	policy, err := network.Encode(p.policy)
	if err != nil {
		return fmt.Errorf("save: %v", err)
	}
	value, err := network.Encode(p.value)
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
		Config:     config,
		Seed:       p.seed,
		Features:   p.features,
		NumActions: p.numActions,
		Policy:     policy,
		Value:      value,
		Updates:    p.updates,
	})
	if err != nil {
		return fmt.Errorf("save: could not encode agent: %v", err)
	}
	return f.Close()
}

// Load loads a PPO agent saved with Save. If e is not nil, the agent
// must be compatible with the environment's specifications.
func Load(path string, e env.Environment) (*PPO, error) {
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
		if features := env.Features(e.ObservationSpec()); numActions !=
			c.NumActions || features != c.Features {
			return nil, fmt.Errorf("load: agent with %d features and %d "+
				"actions is incompatible with environment with %d features "+
				"and %d actions", c.Features, c.NumActions, features,
				numActions)
		}
	}

	p, err := NewWithSize(c.Features, c.NumActions, config, c.Seed)
	if err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}

	policy, err := network.Decode(c.Policy)
	if err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}
	value, err := network.Decode(c.Value)
	if err != nil {
		return nil, fmt.Errorf("load: %v", err)
	}
	for _, pair := range [][2]network.NeuralNet{
		{p.policy, policy},
		{p.policyTrain, policy},
		{p.value, value},
		{p.valueTrain, value},
	} {
		if err := network.Set(pair[0], pair[1]); err != nil {
			return nil, fmt.Errorf("load: %v", err)
		}
	}
	p.updates = c.Updates

	return p, nil
}
