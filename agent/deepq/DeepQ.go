// Package deepq implements deep Q-learning with an experience replay
// buffer and an epsilon greedy behaviour policy
package deepq

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/trafficrl/agent/policy"
	env "github.com/samuelfneumann/trafficrl/environment"
	"github.com/samuelfneumann/trafficrl/expreplay"
	"github.com/samuelfneumann/trafficrl/network"
	ts "github.com/samuelfneumann/trafficrl/timestep"
	"github.com/samuelfneumann/trafficrl/utils/floatutils"
)

// DeepQ implements the deep Q-learning algorithm. Transitions are
// remembered in a bounded replay buffer, and each update takes a single
// gradient step on the mean squared TD error of a sampled batch:
//
//	y = r                           if s' is terminal
//	y = r + ℽ max_a' Q_target(s', a') otherwise
//	L = mean[(y - Q(s, a))²]
//
// After each update, the exploration rate of the behaviour policy is
// decayed once.
type DeepQ struct {
	config Config
	seed   uint64

	// Network of batch size 1 used for action selection
	qNet   network.NeuralNet
	qNetVM G.VM

	// Network whose weights are learned from batches of experience
	trainNet   network.NeuralNet
	trainNetVM G.VM
	solver     G.Solver
	lossVal    G.Value

	// Network that provides the update target for a batch of inputs
	targetNet   network.NeuralNet
	targetNetVM G.VM

	// Inputs to the training graph
	selectedActions *G.Node // One-hot actions taken in each state
	targets         *G.Node // Bootstrapped update targets

	policy *policy.EGreedy
	replay expreplay.ExperienceReplayer

	gamma                float64
	tau                  float64 // Polyak averaging constant
	targetUpdateInterval int     // Gradient steps between target updates
	gradientSteps        int

	numActions int
	features   int
	batchSize  int

	// Previous timestep, needed to construct transitions
	prevStep ts.TimeStep

	eval bool
}

// New creates and returns a new DeepQ agent for an environment with
// discrete actions
func New(e env.Environment, c Config, seed uint64) (*DeepQ, error) {
	numActions, err := env.NumActions(e.ActionSpec())
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	features := env.Features(e.ObservationSpec())

	return NewWithSize(features, numActions, c, seed)
}

// NewWithSize creates and returns a new DeepQ agent that acts in states
// of features dimensions with numActions actions
func NewWithSize(features, numActions int, c Config, seed uint64) (*DeepQ,
	error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if features < 1 || numActions < 1 {
		return nil, fmt.Errorf("new: features and actions must be positive")
	}
	batchSize := c.BatchSize()

	// Action selection network
	qNet, err := network.NewMultiHeadMLP(features, 1, numActions,
		G.NewGraph(), c.PolicyLayers, c.Biases, c.InitWFn.InitWFn(),
		c.Activations)
	if err != nil {
		return nil, fmt.Errorf("new: could not create Q network: %v", err)
	}

	// Target network, which only needs a forward pass
	targetNet, err := qNet.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create target network: %v",
			err)
	}

	// Training network, which computes the gradient of the loss
	trainNet, err := qNet.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create learning network: %v",
			err)
	}
	g := trainNet.Graph()

	selectedActions := G.NewMatrix(g, tensor.Float64,
		G.WithShape(batchSize, numActions), G.WithName("selectedActions"),
		G.WithInit(G.Zeroes()))
	targets := G.NewVector(g, tensor.Float64, G.WithShape(batchSize),
		G.WithName("targets"), G.WithInit(G.Zeroes()))

	// The network outputs one value per action, so the one-hot actions
	// pick out the value of the action taken in each state
	selectedValues := G.Must(G.HadamardProd(trainNet.Prediction(),
		selectedActions))
	selectedValues = G.Must(G.Sum(selectedValues, 1))

	losses := G.Must(G.Sub(targets, selectedValues))
	losses = G.Must(G.Square(losses))
	cost := G.Must(G.Mean(losses))

	d := &DeepQ{
		config:               c,
		seed:                 seed,
		qNet:                 qNet,
		trainNet:             trainNet,
		targetNet:            targetNet,
		selectedActions:      selectedActions,
		targets:              targets,
		gamma:                c.Gamma,
		tau:                  c.Tau,
		targetUpdateInterval: c.TargetUpdateInterval,
		numActions:           numActions,
		features:             features,
		batchSize:            batchSize,
	}
	G.Read(cost, &d.lossVal)

	if _, err := G.Grad(cost, trainNet.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute gradient: %v", err)
	}

	d.policy, err = policy.NewEGreedy(c.Epsilon, seed)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	d.replay, err = c.ExpReplay.Create(features, seed+1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create experience replay "+
			"buffer: %v", err)
	}

	d.qNetVM = G.NewTapeMachine(qNet.Graph())
	d.targetNetVM = G.NewTapeMachine(targetNet.Graph())
	d.trainNetVM = G.NewTapeMachine(g, G.BindDualValues(trainNet.Learnables()...))
	d.solver = c.Solver.Create()

	return d, nil
}

// Remember stores a transition in the replay buffer
func (d *DeepQ) Remember(t ts.Transition) error {
	if t.Action < 0 || t.Action >= d.numActions {
		return fmt.Errorf("remember: invalid action %v", t.Action)
	}
	return d.replay.Add(t)
}

// Act returns the index of the action to take in state. In training
// mode actions are selected epsilon greedily, and in evaluation mode
// actions are selected greedily.
func (d *DeepQ) Act(state []float64) (int, error) {
	actionValues, err := d.actionValues(state)
	if err != nil {
		return 0, fmt.Errorf("act: %v", err)
	}
	if d.eval {
		return d.policy.Greedy(actionValues), nil
	}
	return d.policy.SelectAction(actionValues), nil
}

// actionValues predicts the value of each action in state
func (d *DeepQ) actionValues(state []float64) ([]float64, error) {
	if err := d.qNet.SetInput(state); err != nil {
		return nil, err
	}
	defer d.qNetVM.Reset()
	if err := d.qNetVM.RunAll(); err != nil {
		return nil, fmt.Errorf("could not run Q network: %v", err)
	}

	values := d.qNet.Output().Data().([]float64)
	return append([]float64(nil), values...), nil
}

// Replay takes a single gradient step on a batch sampled from the
// replay buffer. If the buffer does not yet hold enough transitions to
// sample a batch, Replay does nothing and the exploration rate is left
// unchanged.
func (d *DeepQ) Replay() error {
	S, A, R, T, NextS, err := d.replay.Sample()
	if expreplay.IsEmptyBuffer(err) || expreplay.IsInsufficientSamples(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("replay: %v", err)
	}

	// Predict the action values in the next states
	if err := d.targetNet.SetInput(NextS); err != nil {
		return fmt.Errorf("replay: could not set target net input: %v", err)
	}
	if err := d.targetNetVM.RunAll(); err != nil {
		d.targetNetVM.Reset()
		return fmt.Errorf("replay: could not run target net: %v", err)
	}
	nextValues := d.targetNet.Output().Data().([]float64)

	// Compute the update target: y = r + ℽ max[Q(s', a')] (1 - terminal)
	y := make([]float64, d.batchSize)
	for i := range y {
		row := nextValues[i*d.numActions : (i+1)*d.numActions]
		maxValue, _ := floatutils.MaxSlice(row)
		y[i] = R[i] + d.gamma*maxValue*(1-T[i])
	}
	d.targetNetVM.Reset()

	oneHot := make([]float64, d.batchSize*d.numActions)
	for i, a := range A {
		oneHot[i*d.numActions+a] = 1.0
	}

	err = G.Let(d.targets, tensor.New(tensor.WithBacking(y),
		tensor.WithShape(d.batchSize)))
	if err != nil {
		return fmt.Errorf("replay: could not set targets: %v", err)
	}
	err = G.Let(d.selectedActions, tensor.New(tensor.WithBacking(oneHot),
		tensor.WithShape(d.batchSize, d.numActions)))
	if err != nil {
		return fmt.Errorf("replay: could not set actions: %v", err)
	}
	if err := d.trainNet.SetInput(S); err != nil {
		return fmt.Errorf("replay: could not set train net input: %v", err)
	}

	// Run the learning step
	if err := d.trainNetVM.RunAll(); err != nil {
		d.trainNetVM.Reset()
		return fmt.Errorf("replay: could not run train net: %v", err)
	}
	if err := d.solver.Step(d.trainNet.Model()); err != nil {
		d.trainNetVM.Reset()
		return fmt.Errorf("replay: could not step solver: %v", err)
	}
	d.trainNetVM.Reset()
	d.gradientSteps++

	if d.gradientSteps%d.targetUpdateInterval == 0 {
		if d.tau == 1.0 {
			err = network.Set(d.targetNet, d.trainNet)
		} else {
			err = network.Polyak(d.targetNet, d.trainNet, d.tau)
		}
		if err != nil {
			return fmt.Errorf("replay: could not update target net: %v", err)
		}
	}
	if err := network.Set(d.qNet, d.trainNet); err != nil {
		return fmt.Errorf("replay: could not update Q network: %v", err)
	}

	d.policy.Decay()
	return nil
}

// ObserveFirst observes and records the first episodic timestep
func (d *DeepQ) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		fmt.Fprintf(os.Stderr, "Warning: ObserveFirst() should only be "+
			"called on the first timestep (current timestep = %d)\n", t.Number)
	}
	d.prevStep = t
	return nil
}

// Observe records the transition from the previous timestep to
// nextStep caused by action. Transitions are not remembered in
// evaluation mode.
func (d *DeepQ) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	if action.Len() != 1 {
		return fmt.Errorf("observe: value-based methods cannot have "+
			"multi-dimensional actions (action dim = %d)", action.Len())
	}

	if !d.eval {
		transition := ts.NewTransition(d.prevStep, int(action.AtVec(0)),
			nextStep)
		if err := d.Remember(transition); err != nil {
			return fmt.Errorf("observe: %v", err)
		}
	}
	d.prevStep = nextStep
	return nil
}

// Step updates the weights of the agent from experience in the replay
// buffer. No updates are performed in evaluation mode.
func (d *DeepQ) Step() error {
	if d.eval {
		return nil
	}
	return d.Replay()
}

// SelectAction returns the action to take at timestep t
func (d *DeepQ) SelectAction(t ts.TimeStep) (*mat.VecDense, error) {
	obs, err := observation(t)
	if err != nil {
		return nil, fmt.Errorf("selectAction: %v", err)
	}
	action, err := d.Act(obs)
	if err != nil {
		return nil, fmt.Errorf("selectAction: %v", err)
	}
	return mat.NewVecDense(1, []float64{float64(action)}), nil
}

// observation returns the observation of a timestep as a slice
func observation(t ts.TimeStep) ([]float64, error) {
	if t.Observation == nil {
		return nil, fmt.Errorf("timestep has no observation")
	}
	obs := make([]float64, t.Observation.Len())
	for i := range obs {
		obs[i] = t.Observation.AtVec(i)
	}
	return obs, nil
}

// TdError calculates the TD error of the current Q network on a
// transition
func (d *DeepQ) TdError(t ts.Transition) (float64, error) {
	state, err := observation(ts.TimeStep{Observation: t.State})
	if err != nil {
		return 0, fmt.Errorf("tdError: %v", err)
	}
	values, err := d.actionValues(state)
	if err != nil {
		return 0, fmt.Errorf("tdError: %v", err)
	}
	if t.Action < 0 || t.Action >= len(values) {
		return 0, fmt.Errorf("tdError: invalid action %v", t.Action)
	}

	target := t.Reward
	if !t.Terminal {
		nextState, err := observation(ts.TimeStep{Observation: t.NextState})
		if err != nil {
			return 0, fmt.Errorf("tdError: %v", err)
		}
		nextValues, err := d.actionValues(nextState)
		if err != nil {
			return 0, fmt.Errorf("tdError: %v", err)
		}
		maxValue, _ := floatutils.MaxSlice(nextValues)
		target += d.gamma * maxValue
	}

	return target - values[t.Action], nil
}

// Loss returns the loss of the most recent update, or NaN if no update
// has been performed
func (d *DeepQ) Loss() float64 {
	if d.lossVal == nil || d.gradientSteps == 0 {
		return math.NaN()
	}
	return d.lossVal.Data().(float64)
}

// Epsilon returns the current exploration rate
func (d *DeepQ) Epsilon() float64 {
	return d.policy.Epsilon()
}

// GradientSteps returns the number of updates performed
func (d *DeepQ) GradientSteps() int {
	return d.gradientSteps
}

// ReplaySize returns the number of transitions in the replay buffer
func (d *DeepQ) ReplaySize() int {
	return d.replay.Capacity()
}

// Eval sets the agent into evaluation mode
func (d *DeepQ) Eval() {
	d.eval = true
}

// Train sets the agent into training mode
func (d *DeepQ) Train() {
	d.eval = false
}

// IsEval returns whether the agent is in evaluation mode
func (d *DeepQ) IsEval() bool {
	return d.eval
}

// EndEpisode performs cleanup at the end of an episode
func (d *DeepQ) EndEpisode() {}

// Close releases the resources held by the agent's VMs
func (d *DeepQ) Close() error {
	for _, vm := range []G.VM{d.qNetVM, d.trainNetVM, d.targetNetVM} {
		if err := vm.Close(); err != nil {
			return err
		}
	}
	return nil
}
