// Package envconfig provides JSON serializable configurations of
// traffic environments.
package envconfig

import (
	"fmt"

	"github.com/samuelfneumann/trafficrl/dataset"
	env "github.com/samuelfneumann/trafficrl/environment"
	"github.com/samuelfneumann/trafficrl/environment/traffic"
)

// Config describes a traffic environment. The environment replays the
// table at Dataset if it is set, and otherwise replays SyntheticRows
// rows of generated traffic.
type Config struct {
	Dataset       string
	Sheet         string
	SyntheticRows int
	EpisodeCutoff int // <= 0 to never cut episodes off
	Discount      float64
}

// NewConfig returns a new environment Config
func NewConfig(path, sheet string, syntheticRows, episodeCutoff int,
	discount float64) Config {
	return Config{
		Dataset:       path,
		Sheet:         sheet,
		SyntheticRows: syntheticRows,
		EpisodeCutoff: episodeCutoff,
		Discount:      discount,
	}
}

// Validate checks that the Config describes an environment that can be
// created
func (c Config) Validate() error {
	if c.Dataset == "" && c.SyntheticRows < traffic.MinRows {
		return fmt.Errorf("validate: either a dataset or at least %d "+
			"synthetic rows must be given", traffic.MinRows)
	}
	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1]")
	}
	return nil
}

// Data returns the table of traffic the Config describes. Synthetic
// tables are generated with seed.
func (c Config) Data(seed uint64) (dataset.Dataset, error) {
	if c.Dataset != "" {
		return dataset.Load(c.Dataset, c.Sheet)
	}
	return dataset.Generate(c.SyntheticRows, dataset.DefaultGeneratorConfig(),
		seed)
}

// Create returns the environment described by the Config
func (c Config) Create(seed uint64) (env.Environment, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	data, err := c.Data(seed)
	if err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	var ender env.Ender
	if c.EpisodeCutoff > 0 {
		ender = env.NewStepLimit(c.EpisodeCutoff)
	}

	e, err := traffic.New(data, c.Discount, ender)
	if err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}
	return e, nil
}
