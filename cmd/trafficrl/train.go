package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"

	"github.com/samuelfneumann/trafficrl/agent"
	"github.com/samuelfneumann/trafficrl/experiment"
	"github.com/samuelfneumann/trafficrl/experiment/checkpointer"
	"github.com/samuelfneumann/trafficrl/experiment/tracker"
	"github.com/samuelfneumann/trafficrl/experiment/trackers"
	"github.com/samuelfneumann/trafficrl/report"
)

// modelNames are the file names agents are saved under
var modelNames = map[agent.Type]string{
	agent.EGreedyDeepQMLP:   "dqn_traffic_model",
	agent.CategoricalPPOMLP: "ppo_traffic_model",
}

// labels are the names agents are reported under
var labels = map[agent.Type]string{
	agent.EGreedyDeepQMLP:   "DQN",
	agent.CategoricalPPOMLP: "PPO",
}

// loadConfig loads an experiment configuration from a JSON file
func loadConfig(path string) (experiment.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return experiment.Config{}, fmt.Errorf("loadConfig: %v", err)
	}
	var c experiment.Config
	if err := json.Unmarshal(data, &c); err != nil {
		return experiment.Config{}, fmt.Errorf("loadConfig: could not "+
			"decode %v: %v", path, err)
	}
	return c, nil
}

// result is the outcome of training a single agent
type result struct {
	label     string
	model     string
	returns   []float64
	avgReward float64
}

// train trains the agent of an experiment configuration, saves it, and
// evaluates it for evalSteps steps
func train(ctx context.Context, c experiment.Config, runID string,
	checkpointEvery, evalSteps int) (result, error) {
	label, ok := labels[c.AgentConf.Type]
	if !ok {
		return result{}, fmt.Errorf("train: unknown agent type %v",
			c.AgentConf.Type)
	}
	model := filepath.Join(outDir, modelNames[c.AgentConf.Type])
	returns := trackers.NewReturn(filepath.Join(outDir, "runs", runID,
		modelNames[c.AgentConf.Type]+"_returns.bin"))

	exp, err := c.CreateExp(seed, []tracker.Tracker{returns}, nil)
	if err != nil {
		return result{}, fmt.Errorf("train: %v", err)
	}
	saver, ok := exp.Agent().(agent.Saver)
	if !ok {
		return result{}, fmt.Errorf("train: agent %T cannot be saved",
			exp.Agent())
	}
	if closer, ok := saver.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	if online, ok := exp.(*experiment.Online); ok {
		online.ShowProgress(os.Stderr, label)
		if checkpointEvery > 0 {
			check, err := checkpointer.NewNStep(checkpointEvery, saver,
				checkpointer.Fixed(model))
			if err != nil {
				return result{}, fmt.Errorf("train: %v", err)
			}
			online.RegisterCheckpointer(check)
		}
	}

	fmt.Println(aurora.Cyan(fmt.Sprintf("Training %v...", label)))
	if err := exp.Run(ctx); err != nil {
		return result{}, fmt.Errorf("train: %v", err)
	}
	if err := exp.Save(); err != nil {
		return result{}, fmt.Errorf("train: %v", err)
	}
	if err := saver.Save(model); err != nil {
		return result{}, fmt.Errorf("train: %v", err)
	}

	evalEnv, err := c.EnvConf.Create(seed)
	if err != nil {
		return result{}, fmt.Errorf("train: %v", err)
	}
	avg, err := experiment.Evaluate(saver, evalEnv, evalSteps)
	if err != nil {
		return result{}, fmt.Errorf("train: %v", err)
	}

	return result{
		label:     label,
		model:     model,
		returns:   returns.Data(),
		avgReward: avg,
	}, nil
}

func TrainCommand() *cobra.Command {
	var configs []string
	var checkpointEvery, evalSteps int
	var chart bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train agents on replayed traffic and evaluate them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			runID := uuid.NewString()
			var results []result
			for _, path := range configs {
				c, err := loadConfig(path)
				if err != nil {
					return err
				}
				r, err := train(ctx, c, runID, checkpointEvery, evalSteps)
				if err != nil {
					return err
				}
				log.Printf("saved %v model to %v", r.label, r.model)
				results = append(results, r)
			}

			series := make([]report.Series, 0, len(results))
			for _, r := range results {
				fmt.Printf("%v avg reward: %v\n", aurora.Bold(r.label),
					aurora.Yellow(fmt.Sprintf("%.4f", r.avgReward)))
				series = append(series, report.Series{
					Name:   r.label,
					Values: r.returns,
				})
			}

			if chart {
				path := filepath.Join(outDir, "runs", runID, "returns.html")
				if err := report.Save(path, "Episodic return", series...); err != nil {
					return err
				}
				fmt.Println(aurora.Green("Learning curves written to " + path))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&configs, "config", "c",
		[]string{"configs/dqn.json", "configs/ppo.json"},
		"experiment configuration files, one agent each")
	cmd.Flags().IntVar(&checkpointEvery, "checkpoint-every", 0,
		"save the model every this many steps, 0 to save only at the end")
	cmd.Flags().IntVar(&evalSteps, "eval-steps", 100,
		"number of steps to evaluate each model for")
	cmd.Flags().BoolVar(&chart, "chart", false,
		"render learning curves to an HTML chart")
	return cmd
}
