// Package ppo implements proximal policy optimization with a
// categorical policy and generalized advantage estimation
package ppo

import (
	"fmt"
	"math"
	"os"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/trafficrl/buffer/gae"
	env "github.com/samuelfneumann/trafficrl/environment"
	"github.com/samuelfneumann/trafficrl/network"
	ts "github.com/samuelfneumann/trafficrl/timestep"
	"github.com/samuelfneumann/trafficrl/utils/floatutils"
)

// PPO implements the clipped surrogate objective variant of proximal
// policy optimization, adapted from:
//
// https://spinningup.openai.com/en/latest/algorithms/ppo.html
//
// Experience is collected for EpochLength steps, after which the policy
// takes Epochs full batch gradient steps on the clipped surrogate
//
//	L = mean[min(r A, clip(r, 1 - ε, 1 + ε) A)],	r = π(a|s) / π_old(a|s)
//
// and the state-value function takes ValueGradSteps gradient steps on
// the mean squared error to the rewards-to-go.
type PPO struct {
	config Config
	seed   uint64

	// Batch size 1 networks for acting
	policy   network.NeuralNet
	policyVM G.VM
	value    network.NeuralNet
	valueVM  G.VM

	// Forward-only policy network for computing probability ratios
	// over the whole epoch
	policyEval   network.NeuralNet
	policyEvalVM G.VM

	// Policy network trained on the clipped surrogate objective
	policyTrain   network.NeuralNet
	policyTrainVM G.VM
	policySolver  G.Solver
	actionIndices *G.Node // One-hot actions
	advantages    *G.Node
	oldLogProbs   *G.Node
	unclipped     *G.Node // 1 where the unclipped objective is active
	logitShift    *G.Node // Row maxima of the logits, shape (batch, 1)
	policyLossVal G.Value

	// State-value network trained on rewards-to-go
	valueTrain   network.NeuralNet
	valueTrainVM G.VM
	valueSolver  G.Solver
	returns      *G.Node
	valueLossVal G.Value

	buffer *gae.Buffer
	src    rand.Source

	numActions int
	features   int

	// Quantities of the previous step needed to store transitions
	prevStep    ts.TimeStep
	prevValue   float64
	prevLogProb float64

	updates int
	eval    bool
}

// New creates and returns a new PPO agent for an environment with
// discrete actions
func New(e env.Environment, c Config, seed uint64) (*PPO, error) {
	numActions, err := env.NumActions(e.ActionSpec())
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	features := env.Features(e.ObservationSpec())

	return NewWithSize(features, numActions, c, seed)
}

// NewWithSize creates and returns a new PPO agent that acts in states
// of features dimensions with numActions actions
func NewWithSize(features, numActions int, c Config, seed uint64) (*PPO,
	error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if features < 1 || numActions < 1 {
		return nil, fmt.Errorf("new: features and actions must be positive")
	}
	batch := c.EpochLength
	initWFn := c.InitWFn.InitWFn()

	p := &PPO{
		config:     c,
		seed:       seed,
		src:        rand.NewSource(seed),
		numActions: numActions,
		features:   features,
	}

	var err error
	p.policy, err = network.NewMultiHeadMLP(features, 1, numActions,
		G.NewGraph(), c.PolicyLayers, c.PolicyBiases, initWFn,
		c.PolicyActivations)
	if err != nil {
		return nil, fmt.Errorf("new: could not create policy: %v", err)
	}
	p.value, err = network.NewMultiHeadMLP(features, 1, 1, G.NewGraph(),
		c.ValueLayers, c.ValueBiases, initWFn, c.ValueActivations)
	if err != nil {
		return nil, fmt.Errorf("new: could not create value function: %v",
			err)
	}

	p.policyEval, err = p.policy.CloneWithBatch(batch)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	p.policyTrain, err = p.policy.CloneWithBatch(batch)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	p.valueTrain, err = p.value.CloneWithBatch(batch)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	if err := p.buildPolicyLoss(batch); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if err := p.buildValueLoss(batch); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	p.buffer, err = gae.New(features, batch, c.Lambda, c.Gamma)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	p.policyVM = G.NewTapeMachine(p.policy.Graph())
	p.valueVM = G.NewTapeMachine(p.value.Graph())
	p.policyEvalVM = G.NewTapeMachine(p.policyEval.Graph())
	p.policyTrainVM = G.NewTapeMachine(p.policyTrain.Graph(),
		G.BindDualValues(p.policyTrain.Learnables()...))
	p.valueTrainVM = G.NewTapeMachine(p.valueTrain.Graph(),
		G.BindDualValues(p.valueTrain.Learnables()...))
	p.policySolver = c.PolicySolver.Create()
	p.valueSolver = c.ValueSolver.Create()

	return p, nil
}

// buildPolicyLoss adds the negated clipped surrogate objective to the
// graph of the training policy.
//
// The gradient of min(r A, clip(r) A) is the gradient of r A wherever
// the unclipped term is the minimum and zero elsewhere, so the loss
// masks r A by which term is active. The mask depends only on the
// current ratios and is computed outside the graph.
func (p *PPO) buildPolicyLoss(batch int) error {
	g := p.policyTrain.Graph()
	logits := p.policyTrain.Prediction()

	p.actionIndices = G.NewMatrix(g, tensor.Float64,
		G.WithShape(batch, p.numActions), G.WithName("actionIndices"),
		G.WithInit(G.Zeroes()))
	p.advantages = G.NewVector(g, tensor.Float64, G.WithShape(batch),
		G.WithName("advantages"), G.WithInit(G.Zeroes()))
	p.oldLogProbs = G.NewVector(g, tensor.Float64, G.WithShape(batch),
		G.WithName("oldLogProbs"), G.WithInit(G.Zeroes()))
	p.unclipped = G.NewVector(g, tensor.Float64, G.WithShape(batch),
		G.WithName("unclipped"), G.WithInit(G.Zeroes()))
	p.logitShift = G.NewMatrix(g, tensor.Float64, G.WithShape(batch, 1),
		G.WithName("logitShift"), G.WithInit(G.Zeroes()))

	logProbs := LogProb(logits, p.actionIndices, p.logitShift)

	ratios := G.Must(G.Exp(G.Must(G.Sub(logProbs, p.oldLogProbs))))
	objective := G.Must(G.HadamardProd(ratios, p.advantages))
	objective = G.Must(G.HadamardProd(objective, p.unclipped))
	loss := G.Must(G.Neg(G.Must(G.Mean(objective))))
	G.Read(loss, &p.policyLossVal)

	if _, err := G.Grad(loss, p.policyTrain.Learnables()...); err != nil {
		return fmt.Errorf("could not compute policy gradient: %v", err)
	}
	return nil
}

// buildValueLoss adds the mean squared error between predicted values
// and rewards-to-go to the graph of the training value function
func (p *PPO) buildValueLoss(batch int) error {
	g := p.valueTrain.Graph()

	p.returns = G.NewMatrix(g, tensor.Float64, G.WithShape(batch, 1),
		G.WithName("returns"), G.WithInit(G.Zeroes()))
	loss := G.Must(G.Sub(p.valueTrain.Prediction(), p.returns))
	loss = G.Must(G.Mean(G.Must(G.Square(loss))))
	G.Read(loss, &p.valueLossVal)

	if _, err := G.Grad(loss, p.valueTrain.Learnables()...); err != nil {
		return fmt.Errorf("could not compute value gradient: %v", err)
	}
	return nil
}

// LogProb computes the log probability of the one-hot actions under the
// softmax of each row of logits. The shift, of shape (rows, 1), should
// hold a constant close to the maximum of each row for numerical
// stability. The result does not depend on its value.
func LogProb(logits, oneHotActions, shift *G.Node) *G.Node {
	shifted := G.Must(G.BroadcastSub(logits, shift, nil, []byte{1}))

	selected := G.Must(G.HadamardProd(oneHotActions, shifted))
	selected = G.Must(G.Sum(selected, 1))

	logSumExp := G.Must(G.Log(G.Must(G.Sum(G.Must(G.Exp(shifted)), 1))))
	return G.Must(G.Sub(selected, logSumExp))
}

// run runs a network of batch size 1 on state and returns a copy of its
// output
func run(net network.NeuralNet, vm G.VM, state []float64) ([]float64,
	error) {
	if err := net.SetInput(state); err != nil {
		return nil, err
	}
	defer vm.Reset()
	if err := vm.RunAll(); err != nil {
		return nil, err
	}

	switch out := net.Output().Data().(type) {
	case []float64:
		return append([]float64(nil), out...), nil
	case float64:
		return []float64{out}, nil
	default:
		return nil, fmt.Errorf("unexpected network output type %T", out)
	}
}

// Act returns the index of the action to take in state, along with the
// log probability of the action under the current policy. In training
// mode actions are sampled from the policy, and in evaluation mode the
// most probable action is taken.
func (p *PPO) Act(state []float64) (int, float64, error) {
	logits, err := run(p.policy, p.policyVM, state)
	if err != nil {
		return 0, 0, fmt.Errorf("act: %v", err)
	}
	logProbs := floatutils.LogSoftmax(logits)

	var action int
	if p.eval {
		action = floats.MaxIdx(logProbs)
	} else {
		probs := floatutils.Softmax(logits)
		action = int(distuv.NewCategorical(probs, p.src).Rand())
	}
	return action, logProbs[action], nil
}

// Value returns the estimated value of state
func (p *PPO) Value(state []float64) (float64, error) {
	v, err := run(p.value, p.valueVM, state)
	if err != nil {
		return 0, fmt.Errorf("value: %v", err)
	}
	return v[0], nil
}

// SelectAction returns the action to take at timestep t
func (p *PPO) SelectAction(t ts.TimeStep) (*mat.VecDense, error) {
	obs, err := observation(t)
	if err != nil {
		return nil, fmt.Errorf("selectAction: %v", err)
	}

	action, logProb, err := p.Act(obs)
	if err != nil {
		return nil, fmt.Errorf("selectAction: %v", err)
	}
	if !p.eval {
		p.prevValue, err = p.Value(obs)
		if err != nil {
			return nil, fmt.Errorf("selectAction: %v", err)
		}
		p.prevLogProb = logProb
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

// ObserveFirst observes and records the first episodic timestep
func (p *PPO) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		fmt.Fprintf(os.Stderr, "Warning: ObserveFirst() should only be "+
			"called on the first timestep (current timestep = %d)\n", t.Number)
	}
	p.prevStep = t
	return nil
}

// Observe records the transition from the previous timestep to
// nextStep caused by action. Trajectories are finished when an episode
// ends or the epoch fills up, bootstrapping from the value function
// unless the episode reached a terminal state.
func (p *PPO) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	defer func() { p.prevStep = nextStep }()
	if p.eval {
		return nil
	}
	if action.Len() != 1 {
		return fmt.Errorf("observe: actions must be 1-dimensional")
	}
	a := int(action.AtVec(0))
	if a < 0 || a >= p.numActions {
		return fmt.Errorf("observe: invalid action %v", a)
	}

	obs, err := observation(p.prevStep)
	if err != nil {
		return fmt.Errorf("observe: %v", err)
	}
	err = p.buffer.Store(obs, a, nextStep.Reward, p.prevValue, p.prevLogProb)
	if err != nil {
		return fmt.Errorf("observe: %v", err)
	}

	if nextStep.Last() || p.buffer.Full() {
		lastVal := 0.0
		if !nextStep.TerminalEnd() {
			nextObs, err := observation(nextStep)
			if err != nil {
				return fmt.Errorf("observe: %v", err)
			}
			if lastVal, err = p.Value(nextObs); err != nil {
				return fmt.Errorf("observe: %v", err)
			}
		}
		p.buffer.FinishPath(lastVal)
	}
	return nil
}

// Step updates the policy and value function once a full epoch of
// experience has been collected
func (p *PPO) Step() error {
	if p.eval || !p.buffer.Full() {
		return nil
	}

	obs, act, adv, ret, oldLogProbs, err := p.buffer.Get()
	if err != nil {
		return fmt.Errorf("step: %v", err)
	}
	if err := p.updatePolicy(obs, act, adv, oldLogProbs); err != nil {
		return fmt.Errorf("step: %v", err)
	}
	if err := p.updateValue(obs, ret); err != nil {
		return fmt.Errorf("step: %v", err)
	}
	p.updates++
	return nil
}

// updatePolicy takes gradient steps on the clipped surrogate objective
func (p *PPO) updatePolicy(obs []float64, act []int, adv,
	oldLogProbs []float64) error {
	batch := p.config.EpochLength

	oneHot := make([]float64, batch*p.numActions)
	for i, a := range act {
		oneHot[i*p.numActions+a] = 1.0
	}
	inputs := map[*G.Node][]float64{
		p.actionIndices: oneHot,
		p.advantages:    adv,
		p.oldLogProbs:   oldLogProbs,
	}
	for node, value := range inputs {
		err := G.Let(node, tensor.New(tensor.WithBacking(value),
			tensor.WithShape(node.Shape()...)))
		if err != nil {
			return fmt.Errorf("updatePolicy: could not set %v: %v",
				node.Name(), err)
		}
	}

	unclipped := make([]float64, batch)
	shift := make([]float64, batch)
	for epoch := 0; epoch < p.config.Epochs; epoch++ {
		// Ratios of the current policy to the behaviour policy
		if err := network.Set(p.policyEval, p.policyTrain); err != nil {
			return fmt.Errorf("updatePolicy: %v", err)
		}
		if err := p.policyEval.SetInput(obs); err != nil {
			return fmt.Errorf("updatePolicy: %v", err)
		}
		if err := p.policyEvalVM.RunAll(); err != nil {
			p.policyEvalVM.Reset()
			return fmt.Errorf("updatePolicy: %v", err)
		}
		logits := p.policyEval.Output().Data().([]float64)

		var kl float64
		for i := 0; i < batch; i++ {
			row := logits[i*p.numActions : (i+1)*p.numActions]
			shift[i] = floats.Max(row)
			logProb := row[act[i]] - floats.LogSumExp(row)
			kl += oldLogProbs[i] - logProb

			ratio := math.Exp(logProb - oldLogProbs[i])
			unclipped[i] = 0
			if unclippedActive(ratio, adv[i], p.config.Clip) {
				unclipped[i] = 1
			}
		}
		p.policyEvalVM.Reset()

		// Approximate KL divergence to the behaviour policy
		if p.config.TargetKL > 0 && kl/float64(batch) > 1.5*p.config.TargetKL {
			break
		}

		for node, value := range map[*G.Node][]float64{
			p.unclipped:  unclipped,
			p.logitShift: shift,
		} {
			err := G.Let(node, tensor.New(tensor.WithBacking(value),
				tensor.WithShape(node.Shape()...)))
			if err != nil {
				return fmt.Errorf("updatePolicy: %v", err)
			}
		}
		if err := p.policyTrain.SetInput(obs); err != nil {
			return fmt.Errorf("updatePolicy: %v", err)
		}
		if err := p.policyTrainVM.RunAll(); err != nil {
			p.policyTrainVM.Reset()
			return fmt.Errorf("updatePolicy: %v", err)
		}
		if err := p.policySolver.Step(p.policyTrain.Model()); err != nil {
			p.policyTrainVM.Reset()
			return fmt.Errorf("updatePolicy: %v", err)
		}
		p.policyTrainVM.Reset()
	}

	return network.Set(p.policy, p.policyTrain)
}

// unclippedActive returns whether r A is the minimum of r A and
// clip(r, 1 - ε, 1 + ε) A, in which case the objective has a gradient
func unclippedActive(ratio, advantage, clip float64) bool {
	if advantage >= 0 {
		return ratio <= 1+clip
	}
	return ratio >= 1-clip
}

// updateValue regresses the value function on the rewards-to-go
func (p *PPO) updateValue(obs, ret []float64) error {
	err := G.Let(p.returns, tensor.New(tensor.WithBacking(ret),
		tensor.WithShape(p.config.EpochLength, 1)))
	if err != nil {
		return fmt.Errorf("updateValue: %v", err)
	}
	if err := p.valueTrain.SetInput(obs); err != nil {
		return fmt.Errorf("updateValue: %v", err)
	}

	for i := 0; i < p.config.ValueGradSteps; i++ {
		if err := p.valueTrainVM.RunAll(); err != nil {
			p.valueTrainVM.Reset()
			return fmt.Errorf("updateValue: %v", err)
		}
		if err := p.valueSolver.Step(p.valueTrain.Model()); err != nil {
			p.valueTrainVM.Reset()
			return fmt.Errorf("updateValue: %v", err)
		}
		p.valueTrainVM.Reset()
	}

	return network.Set(p.value, p.valueTrain)
}

// PolicyLoss returns the surrogate loss of the last policy gradient
// step, or NaN if no step has been taken
func (p *PPO) PolicyLoss() float64 {
	if p.updates == 0 || p.policyLossVal == nil {
		return math.NaN()
	}
	return p.policyLossVal.Data().(float64)
}

// ValueLoss returns the loss of the last value function gradient step,
// or NaN if no step has been taken
func (p *PPO) ValueLoss() float64 {
	if p.updates == 0 || p.valueLossVal == nil {
		return math.NaN()
	}
	return p.valueLossVal.Data().(float64)
}

// Updates returns the number of completed policy updates
func (p *PPO) Updates() int {
	return p.updates
}

// Eval sets the agent into evaluation mode
func (p *PPO) Eval() {
	p.eval = true
}

// Train sets the agent into training mode
func (p *PPO) Train() {
	p.eval = false
}

// IsEval returns whether the agent is in evaluation mode
func (p *PPO) IsEval() bool {
	return p.eval
}

// EndEpisode performs cleanup at the end of an episode
func (p *PPO) EndEpisode() {}

// Close releases the resources held by the agent's VMs
func (p *PPO) Close() error {
	for _, vm := range []G.VM{p.policyVM, p.valueVM, p.policyEvalVM,
		p.policyTrainVM, p.valueTrainVM} {
		if err := vm.Close(); err != nil {
			return err
		}
	}
	return nil
}
