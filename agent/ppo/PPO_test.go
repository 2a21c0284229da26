package ppo

import (
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/trafficrl/agent"
	"github.com/samuelfneumann/trafficrl/dataset"
	"github.com/samuelfneumann/trafficrl/environment/traffic"
	"github.com/samuelfneumann/trafficrl/network"
	"github.com/samuelfneumann/trafficrl/solver"
	ts "github.com/samuelfneumann/trafficrl/timestep"
	"github.com/samuelfneumann/trafficrl/utils/floatutils"
)

func smallConfig(t *testing.T, epochLength int) Config {
	c := DefaultConfig()
	c.PolicyLayers = []int{16}
	c.PolicyBiases = []bool{true}
	c.PolicyActivations = []*network.Activation{network.TanH()}
	c.ValueLayers = []int{16}
	c.ValueBiases = []bool{true}
	c.ValueActivations = []*network.Activation{network.TanH()}
	c.EpochLength = epochLength
	require.NoError(t, c.Validate())
	return c
}

func newAgent(t *testing.T, c Config) *PPO {
	p, err := NewWithSize(2, 2, c, 3)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func probabilities(t *testing.T, p *PPO, state []float64) []float64 {
	logits, err := run(p.policy, p.policyVM, state)
	require.NoError(t, err)
	return floatutils.Softmax(logits)
}

// playBandit plays single step episodes in which action 0 is rewarded
func playBandit(t *testing.T, p *PPO, episodes int) {
	obs := mat.NewVecDense(2, []float64{1, 0})
	for i := 0; i < episodes; i++ {
		first := ts.New(ts.First, 0, 1, obs, 0)
		require.NoError(t, p.ObserveFirst(first))

		action, err := p.SelectAction(first)
		require.NoError(t, err)
		reward := 0.0
		if action.AtVec(0) == 0 {
			reward = 1.0
		}

		last := ts.New(ts.Last, reward, 0, obs, 1)
		require.NoError(t, p.Observe(action, last))
		require.NoError(t, p.Step())
		p.EndEpisode()
	}
}

func TestLogProb(t *testing.T) {
	g := G.NewGraph()
	net, err := network.NewMultiHeadMLP(3, 2, 3, g, []int{4}, []bool{true},
		G.GlorotU(1.0), []*network.Activation{network.TanH()})
	require.NoError(t, err)

	actions := G.NewMatrix(g, tensor.Float64, G.WithShape(2, 3),
		G.WithName("actions"), G.WithInit(G.Zeroes()))
	shift := G.NewMatrix(g, tensor.Float64, G.WithShape(2, 1),
		G.WithName("shift"), G.WithInit(G.Zeroes()))
	require.NoError(t, G.Let(actions, tensor.New(
		tensor.WithBacking([]float64{0, 1, 0, 0, 0, 1}),
		tensor.WithShape(2, 3))))

	var out G.Value
	G.Read(LogProb(net.Prediction(), actions, shift), &out)
	vm := G.NewTapeMachine(g)
	defer vm.Close()

	require.NoError(t, net.SetInput([]float64{1, 2, 3, -1, 0, 4}))
	for _, rowShift := range [][]float64{{0, 0}, {2, -1}} {
		require.NoError(t, G.Let(shift, tensor.New(
			tensor.WithBacking(rowShift), tensor.WithShape(2, 1))))
		require.NoError(t, vm.RunAll())

		logits := append([]float64(nil), net.Output().Data().([]float64)...)
		got := append([]float64(nil), out.Data().([]float64)...)
		vm.Reset()

		assert.InDelta(t, floatutils.LogSoftmax(logits[:3])[1], got[0], 1e-9)
		assert.InDelta(t, floatutils.LogSoftmax(logits[3:])[2], got[1], 1e-9)
	}
}

func TestUnclippedActive(t *testing.T) {
	assert.True(t, unclippedActive(1.1, 1, 0.2))
	assert.False(t, unclippedActive(1.3, 1, 0.2))
	assert.True(t, unclippedActive(0.5, 1, 0.2))

	assert.True(t, unclippedActive(0.9, -1, 0.2))
	assert.False(t, unclippedActive(0.7, -1, 0.2))
	assert.True(t, unclippedActive(1.5, -1, 0.2))
}

func TestActionsInRange(t *testing.T) {
	p := newAgent(t, smallConfig(t, 8))
	counts := make([]int, 2)
	for i := 0; i < 200; i++ {
		a, logProb, err := p.Act([]float64{0.5, -0.5})
		require.NoError(t, err)
		require.True(t, a == 0 || a == 1)
		assert.LessOrEqual(t, logProb, 0.0)
		counts[a]++
	}

	// An untrained policy explores both actions
	assert.Positive(t, counts[0])
	assert.Positive(t, counts[1])

	_, _, err := p.Act([]float64{1})
	assert.Error(t, err)
}

func TestGreedyInEval(t *testing.T) {
	p := newAgent(t, smallConfig(t, 8))
	state := []float64{0.2, 0.7}
	want := 0
	if probs := probabilities(t, p, state); probs[1] > probs[0] {
		want = 1
	}

	p.Eval()
	assert.True(t, p.IsEval())
	for i := 0; i < 20; i++ {
		a, _, err := p.Act(state)
		require.NoError(t, err)
		assert.Equal(t, want, a)
	}
}

func TestUpdateAfterEpoch(t *testing.T) {
	p := newAgent(t, smallConfig(t, 8))
	assert.True(t, math.IsNaN(p.PolicyLoss()))
	assert.True(t, math.IsNaN(p.ValueLoss()))

	playBandit(t, p, 7)
	assert.Equal(t, 0, p.Updates())
	assert.Equal(t, 7, p.buffer.Len())

	playBandit(t, p, 1)
	assert.Equal(t, 1, p.Updates())
	assert.Equal(t, 0, p.buffer.Len())
	assert.False(t, math.IsNaN(p.PolicyLoss()))
	assert.False(t, math.IsNaN(p.ValueLoss()))

	// Nothing is collected or learned in evaluation mode
	p.Eval()
	playBandit(t, p, 16)
	assert.Equal(t, 1, p.Updates())
	assert.Equal(t, 0, p.buffer.Len())
}

func TestLearnsBandit(t *testing.T) {
	c := smallConfig(t, 32)
	var err error
	c.PolicySolver, err = solver.NewDefaultAdam(0.01, 1)
	require.NoError(t, err)
	c.ValueSolver, err = solver.NewDefaultAdam(0.01, 1)
	require.NoError(t, err)
	p := newAgent(t, c)

	before := probabilities(t, p, []float64{1, 0})[0]
	playBandit(t, p, 32*30)
	after := probabilities(t, p, []float64{1, 0})[0]

	assert.Equal(t, 30, p.Updates())
	assert.Greater(t, after, before)
	assert.Greater(t, after, 0.8)

	value, err := p.Value([]float64{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, value, 0.3)
}

func TestObserveInvalidAction(t *testing.T) {
	p := newAgent(t, smallConfig(t, 8))
	obs := mat.NewVecDense(2, []float64{1, 0})
	require.NoError(t, p.ObserveFirst(ts.New(ts.First, 0, 1, obs, 0)))

	next := ts.New(ts.Mid, 1, 1, obs, 1)
	assert.Error(t, p.Observe(mat.NewVecDense(1, []float64{2}), next))
	assert.Error(t, p.Observe(mat.NewVecDense(2, []float64{0, 1}), next))
	assert.Equal(t, 0, p.buffer.Len())
}

func TestSaveLoad(t *testing.T) {
	p := newAgent(t, smallConfig(t, 8))
	playBandit(t, p, 16)

	path := filepath.Join(t.TempDir(), "models", "ppo_traffic_model")
	require.NoError(t, p.Save(path))

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	defer loaded.Close()

	assert.Equal(t, p.Updates(), loaded.Updates())
	state := []float64{-0.4, 0.9}
	assert.InDeltaSlice(t, probabilities(t, p, state),
		probabilities(t, loaded, state), 1e-12)

	want, err := p.Value(state)
	require.NoError(t, err)
	got, err := loaded.Value(state)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)

	e, err := traffic.New(dataset.Dataset{{}, {}}, 1, nil)
	require.NoError(t, err)
	_, err = Load(path, e)
	assert.Error(t, err)
}

func TestAgentOnTrafficEnv(t *testing.T) {
	data, err := dataset.Generate(40, dataset.DefaultGeneratorConfig(), 9)
	require.NoError(t, err)
	e, err := traffic.New(data, 0.99, nil)
	require.NoError(t, err)

	var a agent.Agent
	a, err = smallConfig(t, 16).CreateAgent(e, 5)
	require.NoError(t, err)
	p := a.(*PPO)
	defer p.Close()

	step, err := e.Reset()
	require.NoError(t, err)
	require.NoError(t, a.ObserveFirst(step))
	for i := 0; i < 39; i++ {
		action, err := a.SelectAction(step)
		require.NoError(t, err)

		var done bool
		step, done, err = e.Step(action)
		require.NoError(t, err)
		require.NoError(t, a.Observe(action, step))
		require.NoError(t, a.Step())
		require.Equal(t, i == 38, done)
	}
	assert.Equal(t, 2, p.Updates())
	assert.Equal(t, 7, p.buffer.Len())
}

func TestConfigJSON(t *testing.T) {
	data, err := json.Marshal(agent.NewTypedConfig(DefaultConfig()))
	require.NoError(t, err)

	var decoded agent.TypedConfig
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, agent.CategoricalPPOMLP, decoded.Type)

	c, ok := decoded.Config.(Config)
	require.True(t, ok)
	require.NoError(t, c.Validate())
	assert.Equal(t, 512, c.EpochLength)
	assert.Equal(t, 0.2, c.Clip)
	assert.Equal(t, "tanh", c.ValueActivations[1].String())
}

func TestConfigValidate(t *testing.T) {
	c := DefaultConfig()
	c.ValueBiases = nil
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.Clip = 0
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.Lambda = 1.2
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.ValueSolver = nil
	assert.Error(t, c.Validate())
}
