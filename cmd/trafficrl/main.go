// Command trafficrl trains and evaluates reinforcement learning agents
// that control a traffic signal from replayed traffic data
package main

import (
	"log"

	"github.com/spf13/cobra"

	// Register agent configurations
	_ "github.com/samuelfneumann/trafficrl/agent/deepq"
	_ "github.com/samuelfneumann/trafficrl/agent/ppo"
)

var (
	seed   uint64
	outDir string
)

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "trafficrl",
		Short:         "Traffic signal control with reinforcement learning",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Uint64Var(&seed, "seed", 192382, "random seed")
	root.PersistentFlags().StringVarP(&outDir, "out", "o", ".",
		"directory to write models, data, and charts to")

	root.AddCommand(GenerateCommand())
	root.AddCommand(TrainCommand())
	root.AddCommand(EvaluateCommand())
	root.AddCommand(DemoCommand())
	return root
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
