package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/trafficrl/agent"
	"github.com/samuelfneumann/trafficrl/dataset"
	"github.com/samuelfneumann/trafficrl/environment/envconfig"
	"github.com/samuelfneumann/trafficrl/experiment"
)

func TestConfigFiles(t *testing.T) {
	for path, want := range map[string]agent.Type{
		"../../configs/dqn.json": agent.EGreedyDeepQMLP,
		"../../configs/ppo.json": agent.CategoricalPPOMLP,
	} {
		c, err := loadConfig(path)
		require.NoError(t, err, path)
		assert.NoError(t, c.Validate(), path)
		assert.Equal(t, want, c.AgentConf.Type)
		assert.Equal(t, 5000, c.MaxSteps)
	}

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	seed = 3
	path := filepath.Join(t.TempDir(), "traffic.xlsx")
	require.NoError(t, generate(path, 25))

	data, err := dataset.Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, 25, data.Len())
}

func TestDemo(t *testing.T) {
	seed = 1
	assert.NoError(t, demo(20, 16))
}

func TestTrainAndEvaluate(t *testing.T) {
	seed = 7
	outDir = t.TempDir()

	c, err := loadConfig("../../configs/dqn.json")
	require.NoError(t, err)
	c.MaxSteps = 60
	c.EnvConf = envconfig.NewConfig("", "", 30, 0, 0.99)

	r, err := train(context.Background(), c, "run", 20, 10)
	require.NoError(t, err)
	assert.Equal(t, "DQN", r.label)
	assert.Len(t, r.returns, 2)
	assert.Equal(t, filepath.Join(outDir, "dqn_traffic_model"), r.model)

	a, err := loadModel(c.AgentConf.Type, r.model, c.EnvConf)
	require.NoError(t, err)
	e, err := c.EnvConf.Create(seed)
	require.NoError(t, err)
	avg, err := experiment.Evaluate(a, e, 10)
	require.NoError(t, err)
	assert.InDelta(t, r.avgReward, avg, 1e-9)
}
