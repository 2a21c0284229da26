// Package traffic implements an environment that replays a table of
// traffic observations at a signalised intersection.
//
// The agent controls the signal phase, choosing to keep the current
// phase or to switch it. Each step reads the current row of the table,
// rewards the agent with the negative sum of the average waiting time
// and the mean lane queue, and moves to the next row. An episode ends
// when the second last row has been consumed.
package traffic

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/trafficrl/dataset"
	env "github.com/samuelfneumann/trafficrl/environment"
	ts "github.com/samuelfneumann/trafficrl/timestep"
)

// Signal phase actions
const (
	KeepPhase   int = 0
	SwitchPhase int = 1
)

// NumActions is the number of signal phase actions
const NumActions = 2

// MinRows is the fewest rows a table can have for the environment to
// take at least one step
const MinRows = 2

// Env replays a traffic Dataset as an environment
type Env struct {
	data     dataset.Dataset
	index    int
	discount float64
	ender    env.Ender
	lastStep ts.TimeStep
}

// New returns a new traffic environment over data. If ender is not nil,
// it can cut episodes off before the data runs out.
func New(data dataset.Dataset, discount float64, ender env.Ender) (*Env,
	error) {
	if data.Len() < MinRows {
		return nil, fmt.Errorf("new: dataset must have at least %d rows, "+
			"have %d", MinRows, data.Len())
	}
	if discount < 0 || discount > 1 {
		return nil, fmt.Errorf("new: discount must be in [0, 1]")
	}
	return &Env{
		data:     data,
		discount: discount,
		ender:    ender,
	}, nil
}

// Reset resets the environment to the first row of the table and
// returns the first TimeStep of a new episode
func (e *Env) Reset() (ts.TimeStep, error) {
	e.index = 0
	e.lastStep = ts.New(ts.First, 0, e.discount, e.state(), 0)
	return e.lastStep, nil
}

// Step takes one step in the environment. The reward depends only on
// the current row of the table: the signal phase action is validated
// but does not change the replayed traffic.
func (e *Env) Step(action mat.Vector) (ts.TimeStep, bool, error) {
	if e.lastStep.Last() {
		return ts.TimeStep{}, true, fmt.Errorf("step: episode has ended, " +
			"the environment must be reset")
	}
	if _, err := validateAction(action); err != nil {
		return ts.TimeStep{}, false, fmt.Errorf("step: %v", err)
	}

	row := e.data[e.index]
	reward := -(row.AvgWaitTime + row.MeanQueue())

	e.index++
	done := e.index >= e.data.Len()-1

	stepType := ts.Mid
	if done {
		stepType = ts.Last
	}
	nextStep := ts.New(stepType, reward, e.discount, e.state(),
		e.lastStep.Number+1)

	if !done && e.ender != nil {
		done = e.ender.End(&nextStep)
	}

	e.lastStep = nextStep
	return nextStep, done, nil
}

// state returns the observation of the current row
func (e *Env) state() *mat.VecDense {
	return mat.NewVecDense(dataset.StateFeatures, e.data[e.index].State())
}

// Index returns the index of the current row of the table
func (e *Env) Index() int {
	return e.index
}

// Len returns the number of rows in the table
func (e *Env) Len() int {
	return e.data.Len()
}

// validateAction returns the action index held by a 1-dimensional
// action vector
func validateAction(action mat.Vector) (int, error) {
	if action == nil || action.Len() != 1 {
		return 0, fmt.Errorf("actions must be 1-dimensional")
	}
	a := action.AtVec(0)
	if a != math.Trunc(a) || a < 0 || a >= NumActions {
		return 0, fmt.Errorf("invalid action %v, must be one of {0, 1}", a)
	}
	return int(a), nil
}

// ObservationSpec returns the observation specification of the
// environment
func (e *Env) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(dataset.StateFeatures, nil)
	low := make([]float64, dataset.StateFeatures)
	high := make([]float64, dataset.StateFeatures)
	for i := range low {
		low[i] = dataset.MinValue
		high[i] = dataset.MaxValue
	}
	return env.NewSpec(shape, env.Observation,
		mat.NewVecDense(dataset.StateFeatures, low),
		mat.NewVecDense(dataset.StateFeatures, high), env.Continuous)
}

// ActionSpec returns the action specification of the environment
func (e *Env) ActionSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	low := mat.NewVecDense(1, []float64{0})
	high := mat.NewVecDense(1, []float64{NumActions - 1})
	return env.NewSpec(shape, env.Action, low, high, env.Discrete)
}

// RewardSpec returns the reward specification of the environment
func (e *Env) RewardSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	low := mat.NewVecDense(1, []float64{-2 * dataset.MaxValue})
	high := mat.NewVecDense(1, []float64{0})
	return env.NewSpec(shape, env.Reward, low, high, env.Continuous)
}

// DiscountSpec returns the discount specification of the environment
func (e *Env) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	bound := mat.NewVecDense(1, []float64{e.discount})
	return env.NewSpec(shape, env.Discount, bound, bound, env.Continuous)
}

func (e *Env) String() string {
	return fmt.Sprintf("Traffic | Row: %d/%d", e.index, e.data.Len())
}
