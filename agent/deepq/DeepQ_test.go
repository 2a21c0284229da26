package deepq

import (
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/trafficrl/agent"
	"github.com/samuelfneumann/trafficrl/dataset"
	"github.com/samuelfneumann/trafficrl/environment/traffic"
	"github.com/samuelfneumann/trafficrl/expreplay"
	"github.com/samuelfneumann/trafficrl/network"
	"github.com/samuelfneumann/trafficrl/solver"
	ts "github.com/samuelfneumann/trafficrl/timestep"
)

func smallConfig(t *testing.T, batch, capacity int) Config {
	c := DefaultConfig()
	c.PolicyLayers = []int{16}
	c.Biases = []bool{true}
	c.Activations = []*network.Activation{network.ReLU()}
	c.ExpReplay = expreplay.Config{
		BatchSize:         batch,
		MinReplayCapacity: batch,
		MaxReplayCapacity: capacity,
	}
	require.NoError(t, c.Validate())
	return c
}

func newAgent(t *testing.T, c Config) *DeepQ {
	d, err := NewWithSize(2, 3, c, 1)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func transition(action int, reward float64, terminal bool) ts.Transition {
	return ts.Transition{
		State:     mat.NewVecDense(2, []float64{1, 0.5}),
		Action:    action,
		Reward:    reward,
		NextState: mat.NewVecDense(2, []float64{0.5, 1}),
		Terminal:  terminal,
	}
}

func TestReplayNoOpBelowBatch(t *testing.T) {
	d := newAgent(t, smallConfig(t, 4, 100))

	require.NoError(t, d.Replay())
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Remember(transition(i, 1, false)))
		require.NoError(t, d.Replay())
		assert.Equal(t, 0, d.GradientSteps())
		assert.Equal(t, 1.0, d.Epsilon())
		assert.True(t, math.IsNaN(d.Loss()))
	}

	require.NoError(t, d.Remember(transition(0, 1, false)))
	require.NoError(t, d.Replay())
	assert.Equal(t, 1, d.GradientSteps())
	assert.InDelta(t, 0.995, d.Epsilon(), 1e-12)
	assert.False(t, math.IsNaN(d.Loss()))
}

func TestEpsilonMonotoneWithFloor(t *testing.T) {
	c := smallConfig(t, 2, 10)
	c.Epsilon.Decay = 0.8
	d := newAgent(t, c)

	prev := d.Epsilon()
	for i := 0; i < 60; i++ {
		require.NoError(t, d.Remember(transition(i%3, -1, i%5 == 0)))
		require.NoError(t, d.Replay())
		assert.LessOrEqual(t, d.Epsilon(), prev)
		assert.GreaterOrEqual(t, d.Epsilon(), c.Epsilon.Min)
		prev = d.Epsilon()
	}
	assert.Equal(t, c.Epsilon.Min, d.Epsilon())
}

func TestReplayCapacity(t *testing.T) {
	d := newAgent(t, smallConfig(t, 2, 10))
	for i := 0; i < 25; i++ {
		require.NoError(t, d.Remember(transition(0, 0, false)))
		assert.LessOrEqual(t, d.ReplaySize(), 10)
	}
	assert.Equal(t, 10, d.ReplaySize())
}

func TestRememberInvalidAction(t *testing.T) {
	d := newAgent(t, smallConfig(t, 2, 10))
	assert.Error(t, d.Remember(transition(3, 0, false)))
	assert.Error(t, d.Remember(transition(-1, 0, false)))
	assert.Equal(t, 0, d.ReplaySize())
}

func TestAct(t *testing.T) {
	d := newAgent(t, smallConfig(t, 2, 10))

	for i := 0; i < 50; i++ {
		a, err := d.Act([]float64{float64(i), 1})
		require.NoError(t, err)
		assert.True(t, a >= 0 && a < 3)
	}

	_, err := d.Act([]float64{1, 2, 3})
	assert.Error(t, err)

	// Greedy actions are deterministic in evaluation mode
	d.Eval()
	assert.True(t, d.IsEval())
	first, err := d.Act([]float64{1, 0.5})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		a, err := d.Act([]float64{1, 0.5})
		require.NoError(t, err)
		assert.Equal(t, first, a)
	}
}

func TestReplayLearnsTarget(t *testing.T) {
	c := smallConfig(t, 4, 4)
	adam, err := solver.NewDefaultAdam(0.01, 1)
	require.NoError(t, err)
	c.Solver = adam
	d := newAgent(t, c)

	tr := transition(1, 1, true)
	initial, err := d.TdError(tr)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, d.Remember(tr))
	}
	for i := 0; i < 300; i++ {
		require.NoError(t, d.Replay())
	}

	final, err := d.TdError(tr)
	require.NoError(t, err)
	assert.Less(t, math.Abs(final), math.Abs(initial))
	assert.Less(t, math.Abs(final), 0.1)
	assert.Less(t, d.Loss(), 0.01)
}

func TestTdErrorTerminal(t *testing.T) {
	d := newAgent(t, smallConfig(t, 2, 10))

	values, err := d.actionValues([]float64{1, 0.5})
	require.NoError(t, err)
	tdError, err := d.TdError(transition(2, 3, true))
	require.NoError(t, err)
	assert.InDelta(t, 3-values[2], tdError, 1e-9)
}

func TestSaveLoad(t *testing.T) {
	c := smallConfig(t, 2, 10)
	d := newAgent(t, c)
	for i := 0; i < 6; i++ {
		require.NoError(t, d.Remember(transition(i%3, float64(i), false)))
		require.NoError(t, d.Replay())
	}

	path := filepath.Join(t.TempDir(), "models", "dqn_traffic_model")
	require.NoError(t, d.Save(path))

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	defer loaded.Close()

	assert.Equal(t, d.Epsilon(), loaded.Epsilon())
	assert.Equal(t, d.GradientSteps(), loaded.GradientSteps())

	state := []float64{0.3, -2}
	want, err := d.actionValues(state)
	require.NoError(t, err)
	got, err := loaded.actionValues(state)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)

	wantTarget, err := network.Weights(d.targetNet)
	require.NoError(t, err)
	gotTarget, err := network.Weights(loaded.targetNet)
	require.NoError(t, err)
	assert.Equal(t, wantTarget, gotTarget)
}

func TestAgentOnTrafficEnv(t *testing.T) {
	data, err := dataset.Generate(30, dataset.DefaultGeneratorConfig(), 4)
	require.NoError(t, err)
	e, err := traffic.New(data, 1, nil)
	require.NoError(t, err)

	c := smallConfig(t, 4, 50)
	var a agent.Agent
	a, err = c.CreateAgent(e, 2)
	require.NoError(t, err)
	d := a.(*DeepQ)
	defer d.Close()

	step, err := e.Reset()
	require.NoError(t, err)
	require.NoError(t, a.ObserveFirst(step))

	for i := 0; i < 20; i++ {
		action, err := a.SelectAction(step)
		require.NoError(t, err)

		var done bool
		step, done, err = e.Step(action)
		require.NoError(t, err)
		require.NoError(t, a.Observe(action, step))
		require.NoError(t, a.Step())
		require.False(t, done)
	}
	assert.Equal(t, 20, d.ReplaySize())
	assert.Equal(t, 17, d.GradientSteps())

	// Evaluation mode neither remembers nor learns
	a.Eval()
	action, err := a.SelectAction(step)
	require.NoError(t, err)
	step, _, err = e.Step(action)
	require.NoError(t, err)
	require.NoError(t, a.Observe(action, step))
	require.NoError(t, a.Step())
	assert.Equal(t, 20, d.ReplaySize())
	assert.Equal(t, 17, d.GradientSteps())
}

func TestLoadRejectsIncompatibleEnv(t *testing.T) {
	d := newAgent(t, smallConfig(t, 2, 10))
	path := filepath.Join(t.TempDir(), "dqn")
	require.NoError(t, d.Save(path))

	e, err := traffic.New(dataset.Dataset{{}, {}}, 1, nil)
	require.NoError(t, err)
	_, err = Load(path, e)
	assert.Error(t, err)
}

func TestConfigJSON(t *testing.T) {
	typed := agent.NewTypedConfig(DefaultConfig())
	data, err := json.Marshal(typed)
	require.NoError(t, err)

	var decoded agent.TypedConfig
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, agent.EGreedyDeepQMLP, decoded.Type)

	c, ok := decoded.Config.(Config)
	require.True(t, ok)
	require.NoError(t, c.Validate())
	assert.Equal(t, []int{64, 64}, c.PolicyLayers)
	assert.Equal(t, 0.95, c.Gamma)
	assert.Equal(t, 5000, c.ExpReplay.MaxReplayCapacity)
	assert.Equal(t, "relu", c.Activations[0].String())
}

func TestConfigValidate(t *testing.T) {
	c := DefaultConfig()
	c.Biases = []bool{true}
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.TargetUpdateInterval = 0
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.Gamma = 1.5
	assert.Error(t, c.Validate())
}

func TestReplaySeededApartFromPolicy(t *testing.T) {
	c := smallConfig(t, 4, 50)
	d := newAgent(t, c)

	// The agent's buffer draws from the stream one past the agent's seed
	other, err := c.ExpReplay.Create(2, 2)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		tr := transition(i%3, float64(i), false)
		require.NoError(t, d.Remember(tr))
		require.NoError(t, other.Add(tr))
	}

	for i := 0; i < 5; i++ {
		_, _, want, _, _, err := other.Sample()
		require.NoError(t, err)
		_, _, got, _, _, err := d.replay.Sample()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
