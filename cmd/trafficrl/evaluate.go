package main

import (
	"fmt"
	"path/filepath"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"

	"github.com/samuelfneumann/trafficrl/agent"
	"github.com/samuelfneumann/trafficrl/agent/deepq"
	"github.com/samuelfneumann/trafficrl/agent/ppo"
	"github.com/samuelfneumann/trafficrl/environment/envconfig"
	"github.com/samuelfneumann/trafficrl/experiment"
)

// loadModel loads a saved agent of type t that acts in envConf's
// environment
func loadModel(t agent.Type, path string,
	envConf envconfig.Config) (agent.Agent, error) {
	e, err := envConf.Create(seed)
	if err != nil {
		return nil, err
	}

	var a agent.Agent
	switch t {
	case agent.EGreedyDeepQMLP:
		a, err = deepq.Load(path, e)
	case agent.CategoricalPPOMLP:
		a, err = ppo.Load(path, e)
	default:
		err = fmt.Errorf("loadModel: unknown agent type %v", t)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func EvaluateCommand() *cobra.Command {
	var configPath, model string
	var steps int

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the average reward of a saved model",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if model == "" {
				model = filepath.Join(outDir, modelNames[c.AgentConf.Type])
			}

			a, err := loadModel(c.AgentConf.Type, model, c.EnvConf)
			if err != nil {
				return err
			}
			if closer, ok := a.(interface{ Close() error }); ok {
				defer closer.Close()
			}

			e, err := c.EnvConf.Create(seed)
			if err != nil {
				return err
			}
			avg, err := experiment.Evaluate(a, e, steps)
			if err != nil {
				return err
			}

			fmt.Printf("%v avg reward: %v\n",
				aurora.Bold(labels[c.AgentConf.Type]),
				aurora.Yellow(fmt.Sprintf("%.4f", avg)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/dqn.json",
		"experiment configuration the model was trained with")
	cmd.Flags().StringVarP(&model, "model", "m", "",
		"saved model, defaults to the model name of the agent type in --out")
	cmd.Flags().IntVar(&steps, "steps", 100, "number of steps to evaluate for")
	return cmd
}
