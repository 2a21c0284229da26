// Package experiment implements functionality for running an experiment
package experiment

import (
	"context"
	"fmt"

	"github.com/samuelfneumann/trafficrl/agent"
	env "github.com/samuelfneumann/trafficrl/environment"
	"github.com/samuelfneumann/trafficrl/environment/envconfig"
	"github.com/samuelfneumann/trafficrl/experiment/checkpointer"
	"github.com/samuelfneumann/trafficrl/experiment/tracker"
)

// Interface Experiment outlines structs that can run experiments.
// Experiments send each environment TimeStep to their Trackers, which
// cache the data they need in RAM, and to their Checkpointers, which
// save the agent as it learns. The Save() method then saves all
// tracked data to disk. The Run() method runs episodes until the
// maximum timestep limit is reached or the context is cancelled, and
// RunEpisode() runs a single episode.
type Experiment interface {
	Run(ctx context.Context) error

	// RunEpisode returns whether or not the step limit has been reached
	RunEpisode(ctx context.Context) (bool, error)

	// Register adds a new tracker.Tracker to the (possibly already
	// running) experiment
	Register(t tracker.Tracker)

	// Save saves all tracked data to disk
	Save() error

	Agent() agent.Agent
	Environment() env.Environment
}

type Type string

const (
	OnlineExp Type = "OnlineExperiment"
)

// Config represents a configuration of an experiment
type Config struct {
	Type      Type
	MaxSteps  int
	EnvConf   envconfig.Config
	AgentConf agent.TypedConfig
}

// Validate checks that the Config describes a runnable experiment
func (c Config) Validate() error {
	if c.Type != OnlineExp {
		return fmt.Errorf("validate: no such experiment type %q", c.Type)
	}
	if c.MaxSteps < 1 {
		return fmt.Errorf("validate: maximum steps must be positive")
	}
	if err := c.EnvConf.Validate(); err != nil {
		return fmt.Errorf("validate: environment: %v", err)
	}
	if c.AgentConf.Config == nil {
		return fmt.Errorf("validate: no agent configuration")
	}
	if err := c.AgentConf.Config.Validate(); err != nil {
		return fmt.Errorf("validate: agent: %v", err)
	}
	return nil
}

// CreateExp creates the experiment described by the Config. The seed
// is used for both the environment and the agent.
func (c Config) CreateExp(seed uint64, t []tracker.Tracker,
	check []checkpointer.Checkpointer) (Experiment, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("createExp: %v", err)
	}

	e, err := c.EnvConf.Create(seed)
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create environment: %v",
			err)
	}
	a, err := c.AgentConf.Config.CreateAgent(e, seed)
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create agent: %v", err)
	}

	switch c.Type {
	case OnlineExp:
		return NewOnline(e, a, c.MaxSteps, t, check), nil
	}
	return nil, fmt.Errorf("createExp: no such experiment type %v", c.Type)
}
