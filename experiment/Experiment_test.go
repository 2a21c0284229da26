package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/trafficrl/agent"
	"github.com/samuelfneumann/trafficrl/agent/deepq"
	"github.com/samuelfneumann/trafficrl/dataset"
	"github.com/samuelfneumann/trafficrl/environment/envconfig"
	"github.com/samuelfneumann/trafficrl/environment/traffic"
	"github.com/samuelfneumann/trafficrl/experiment/checkpointer"
	"github.com/samuelfneumann/trafficrl/experiment/tracker"
	"github.com/samuelfneumann/trafficrl/experiment/trackers"
	ts "github.com/samuelfneumann/trafficrl/timestep"
)

// constant is an agent that always switches phase and counts its calls
type constant struct {
	eval     bool
	observed int
	steps    int
	episodes int
	greedy   int // Actions selected in evaluation mode
	saves    []string
}

func (c *constant) Step() error {
	if !c.eval {
		c.steps++
	}
	return nil
}

func (c *constant) Observe(mat.Vector, ts.TimeStep) error {
	c.observed++
	return nil
}

func (c *constant) ObserveFirst(ts.TimeStep) error { return nil }
func (c *constant) EndEpisode()                    { c.episodes++ }
func (c *constant) Eval()                          { c.eval = true }
func (c *constant) Train()                         { c.eval = false }
func (c *constant) IsEval() bool                   { return c.eval }

func (c *constant) SelectAction(ts.TimeStep) (*mat.VecDense, error) {
	if c.eval {
		c.greedy++
	}
	return mat.NewVecDense(1, []float64{float64(traffic.SwitchPhase)}), nil
}

func (c *constant) Save(path string) error {
	c.saves = append(c.saves, path)
	return nil
}

func newEnv(t *testing.T, rows int) (*traffic.Env, dataset.Dataset) {
	data, err := dataset.Generate(rows, dataset.DefaultGeneratorConfig(), 11)
	require.NoError(t, err)
	e, err := traffic.New(data, 1, nil)
	require.NoError(t, err)
	return e, data
}

func reward(r dataset.Record) float64 {
	return -(r.AvgWaitTime + r.MeanQueue())
}

func TestOnline(t *testing.T) {
	e, data := newEnv(t, 5)
	a := &constant{}
	returns := trackers.NewReturn(filepath.Join(t.TempDir(), "return.bin"))
	check, err := checkpointer.NewNStep(5, a,
		checkpointer.FilenameEnumerator(0, "model", ""))
	require.NoError(t, err)

	exp := NewOnline(e, a, 10, []tracker.Tracker{returns},
		[]checkpointer.Checkpointer{check})
	require.NoError(t, exp.Run(context.Background()))

	// Episodes last 4 steps, the third is cut off by the step limit
	assert.Equal(t, 10, exp.Steps())
	assert.Equal(t, 10, a.steps)
	assert.Equal(t, 3, a.episodes)
	assert.Equal(t, []string{"model1", "model2"}, a.saves)

	var want float64
	for _, r := range data[:4] {
		want += reward(r)
	}
	assert.InDeltaSlice(t, []float64{want, want}, returns.Data(), 1e-9)

	require.NoError(t, exp.Save())
}

func TestOnlineCancelled(t *testing.T) {
	e, _ := newEnv(t, 5)
	a := &constant{}
	exp := NewOnline(e, a, 10, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := exp.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, a.steps)
}

func TestEvaluate(t *testing.T) {
	e, data := newEnv(t, 5)
	a := &constant{}

	mean, err := Evaluate(a, e, 10)
	require.NoError(t, err)

	// Episodes last 4 steps, after which the environment is reset
	var want float64
	for i := 0; i < 10; i++ {
		want += reward(data[i%4])
	}
	assert.InDelta(t, want/10, mean, 1e-9)
	assert.Equal(t, 0, a.steps)
	assert.False(t, a.IsEval())
	assert.Equal(t, 10, a.observed)
	assert.Equal(t, 10, a.greedy)

	_, err = Evaluate(a, e, 0)
	assert.Error(t, err)
}

func TestConfigCreateExp(t *testing.T) {
	c := Config{
		Type:      OnlineExp,
		MaxSteps:  40,
		EnvConf:   envconfig.NewConfig("", "", 20, 0, 0.95),
		AgentConf: agent.NewTypedConfig(deepq.DefaultConfig()),
	}
	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NoError(t, decoded.Validate())

	exp, err := decoded.CreateExp(1, nil, nil)
	require.NoError(t, err)
	_, ok := exp.Agent().(*deepq.DeepQ)
	assert.True(t, ok)
	require.NoError(t, exp.Run(context.Background()))

	decoded.MaxSteps = 0
	assert.Error(t, decoded.Validate())
	decoded.MaxSteps = 1
	decoded.Type = "Offline"
	assert.Error(t, decoded.Validate())
}
