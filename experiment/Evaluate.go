package experiment

import (
	"fmt"

	"github.com/samuelfneumann/trafficrl/agent"
	env "github.com/samuelfneumann/trafficrl/environment"
)

// Evaluate runs the greedy policy of an agent for steps environment
// steps, resetting the environment whenever an episode ends, and
// returns the mean reward per step. The agent does not learn during
// evaluation and is returned to its previous mode afterwards.
func Evaluate(a agent.Agent, e env.Environment, steps int) (float64, error) {
	if steps < 1 {
		return 0, fmt.Errorf("evaluate: steps must be positive")
	}
	if !a.IsEval() {
		a.Eval()
		defer a.Train()
	}

	step, err := e.Reset()
	if err != nil {
		return 0, fmt.Errorf("evaluate: %v", err)
	}
	if err := a.ObserveFirst(step); err != nil {
		return 0, fmt.Errorf("evaluate: %v", err)
	}

	var total float64
	for i := 0; i < steps; i++ {
		action, err := a.SelectAction(step)
		if err != nil {
			return 0, fmt.Errorf("evaluate: %v", err)
		}

		var done bool
		if step, done, err = e.Step(action); err != nil {
			return 0, fmt.Errorf("evaluate: %v", err)
		}
		total += step.Reward
		if err := a.Observe(action, step); err != nil {
			return 0, fmt.Errorf("evaluate: %v", err)
		}

		if done {
			a.EndEpisode()
			if step, err = e.Reset(); err != nil {
				return 0, fmt.Errorf("evaluate: %v", err)
			}
			if err := a.ObserveFirst(step); err != nil {
				return 0, fmt.Errorf("evaluate: %v", err)
			}
		}
	}
	return total / float64(steps), nil
}
