package experiment

import (
	"context"
	"fmt"
	"io"

	"github.com/samuelfneumann/trafficrl/agent"
	env "github.com/samuelfneumann/trafficrl/environment"
	"github.com/samuelfneumann/trafficrl/experiment/checkpointer"
	"github.com/samuelfneumann/trafficrl/experiment/tracker"
	ts "github.com/samuelfneumann/trafficrl/timestep"
	"github.com/samuelfneumann/trafficrl/utils/progressbar"
)

// Online is an Experiment that runs an agent online only. No offline
// evaluation is performed.
type Online struct {
	environment   env.Environment
	agent         agent.Agent
	maxSteps      int
	currentSteps  int
	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
	bar           *progressbar.ProgressBar
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for, the t parameter determines
// what data is tracked, and the c parameter determines when the agent
// is saved.
func NewOnline(e env.Environment, a agent.Agent, steps int,
	t []tracker.Tracker, c []checkpointer.Checkpointer) *Online {
	return &Online{
		environment:   e,
		agent:         a,
		maxSteps:      steps,
		trackers:      t,
		checkpointers: c,
	}
}

// ShowProgress displays a progress bar of the experiment's steps on out
func (o *Online) ShowProgress(out io.Writer, label string) {
	o.bar = progressbar.New(out, label, 40, o.maxSteps)
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RegisterCheckpointer registers a checkpointer.Checkpointer with an
// Experiment so that the agent is saved as it learns
func (o *Online) RegisterCheckpointer(c checkpointer.Checkpointer) {
	o.checkpointers = append(o.checkpointers, c)
}

// Agent returns the agent being trained
func (o *Online) Agent() agent.Agent {
	return o.agent
}

// Environment returns the environment the agent is trained on
func (o *Online) Environment() env.Environment {
	return o.environment
}

// Steps returns the number of steps taken so far
func (o *Online) Steps() int {
	return o.currentSteps
}

// RunEpisode runs a single episode of the experiment
func (o *Online) RunEpisode(ctx context.Context) (bool, error) {
	step, err := o.environment.Reset()
	if err != nil {
		return false, fmt.Errorf("runEpisode: could not reset: %v", err)
	}
	if err := o.agent.ObserveFirst(step); err != nil {
		return false, fmt.Errorf("runEpisode: %v", err)
	}
	o.track(step)

	for !step.Last() && o.currentSteps < o.maxSteps {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		o.currentSteps++

		action, err := o.agent.SelectAction(step)
		if err != nil {
			return false, fmt.Errorf("runEpisode: %v", err)
		}
		if step, _, err = o.environment.Step(action); err != nil {
			return false, fmt.Errorf("runEpisode: %v", err)
		}
		o.track(step)

		if err := o.agent.Observe(action, step); err != nil {
			return false, fmt.Errorf("runEpisode: %v", err)
		}
		if err := o.agent.Step(); err != nil {
			return false, fmt.Errorf("runEpisode: %v", err)
		}
		if err := o.checkpoint(step); err != nil {
			return false, fmt.Errorf("runEpisode: %v", err)
		}
		if o.bar != nil {
			o.bar.Increment()
		}
	}
	o.agent.EndEpisode()

	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run(ctx context.Context) error {
	if o.bar != nil {
		defer o.bar.Close()
	}

	for {
		ended, err := o.RunEpisode(ctx)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if ended {
			return nil
		}
	}
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}
	return nil
}

// track tracks the current timestep by caching its data in each Tracker
func (o *Online) track(step ts.TimeStep) {
	for _, t := range o.trackers {
		t.Track(step)
	}
}

// checkpoint passes the current timestep to each Checkpointer
func (o *Online) checkpoint(t ts.TimeStep) error {
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(t); err != nil {
			return err
		}
	}
	return nil
}
