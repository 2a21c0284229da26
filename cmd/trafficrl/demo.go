package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/samuelfneumann/trafficrl/agent/deepq"
	"github.com/samuelfneumann/trafficrl/expreplay"
	ts "github.com/samuelfneumann/trafficrl/timestep"
)

const (
	// 4 lanes and the pedestrian crossing demand
	demoFeatures = 5

	// Switch NS green, switch EW green, pedestrian green
	demoActions = 3
)

// demo runs the Q-learning agent on random states with normally
// distributed dummy rewards, replaying batches of batchSize after each
// step
func demo(episodes, batchSize int) error {
	c := deepq.DefaultConfig()
	c.ExpReplay = expreplay.Config{
		BatchSize:         batchSize,
		MinReplayCapacity: batchSize,
		MaxReplayCapacity: c.ExpReplay.MaxReplayCapacity,
	}

	d, err := deepq.NewWithSize(demoFeatures, demoActions, c, seed)
	if err != nil {
		return err
	}
	defer d.Close()

	src := rand.NewSource(seed)
	rng := rand.New(src)
	rewards := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	randomState := func() []float64 {
		state := make([]float64, demoFeatures)
		for i := range state {
			state[i] = rng.Float64()
		}
		return state
	}

	for episode := 0; episode < episodes; episode++ {
		state := randomState()
		action, err := d.Act(state)
		if err != nil {
			return err
		}

		err = d.Remember(ts.Transition{
			State:     mat.NewVecDense(demoFeatures, state),
			Action:    action,
			Reward:    rewards.Rand(),
			NextState: mat.NewVecDense(demoFeatures, randomState()),
			Terminal:  false,
		})
		if err != nil {
			return err
		}
		if err := d.Replay(); err != nil {
			return err
		}
		fmt.Printf("Episode %d, Action taken: %d\n", episode, action)
	}
	return nil
}

func DemoCommand() *cobra.Command {
	var episodes, batchSize int

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the Q-learning agent on random dummy transitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return demo(episodes, batchSize)
		},
	}
	cmd.Flags().IntVarP(&episodes, "episodes", "e", 10, "number of episodes")
	cmd.Flags().IntVarP(&batchSize, "batch", "b", 16, "replay batch size")
	return cmd
}
