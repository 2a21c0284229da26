// Package expreplay implements a bounded experience replay buffer
package expreplay

import (
	"fmt"

	"github.com/samuelfneumann/trafficrl/timestep"
)

// Config implements a specific configuration of an ExperienceReplayer
type Config struct {
	BatchSize         int
	MaxReplayCapacity int
	MinReplayCapacity int
}

// Validate checks that a Config describes a buildable buffer
func (c Config) Validate() error {
	if c.MinReplayCapacity <= 0 {
		return fmt.Errorf("validate: minimum capacity must be > 0")
	}
	if c.MaxReplayCapacity < 1 {
		return fmt.Errorf("validate: maximum capacity must be >= 1")
	}
	if c.MinReplayCapacity > c.MaxReplayCapacity {
		return fmt.Errorf("validate: minimum capacity (%v) > maximum "+
			"capacity (%v)", c.MinReplayCapacity, c.MaxReplayCapacity)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be >= 1")
	}
	if c.MaxReplayCapacity < c.BatchSize {
		return fmt.Errorf("validate: cannot have batch size (%v) > max "+
			"buffer capacity (%v)", c.BatchSize, c.MaxReplayCapacity)
	}
	return nil
}

// Create creates and returns the ExperienceReplayer with the specified
// Config.
func (c Config) Create(featureSize int, seed uint64) (ExperienceReplayer,
	error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	sampler := NewUniformSelector(c.BatchSize, seed)
	return New(sampler, c.MinReplayCapacity, c.MaxReplayCapacity,
		featureSize)
}

// ExperienceReplayer implements an experience replay buffer
type ExperienceReplayer interface {
	// Add adds a transition to the buffer
	Add(t timestep.Transition) error

	// Sample samples a batch of experience from the buffer and returns
	// the batch of states, actions, rewards, terminal flags (1.0 for
	// terminal transitions, 0.0 otherwise), and next states. States
	// are returned flattened in row-major order.
	Sample() ([]float64, []int, []float64, []float64, []float64, error)

	// Capacity returns the current number of samples in the buffer
	Capacity() int

	// MaxCapacity returns the maximum allowable samples in the buffer
	MaxCapacity() int

	// MinCapacity returns the number of samples required to be in
	// the buffer before the buffer can be sampled
	MinCapacity() int

	// BatchSize returns the number of samples returned by Sample()
	BatchSize() int
}

// cache implements a concrete ExperienceReplayer as a ring buffer. Once
// the cache is full, each new transition overwrites the oldest one.
type cache struct {
	stateCache     []float64
	actionCache    []int
	rewardCache    []float64
	terminalCache  []float64
	nextStateCache []float64

	// next is the index the next transition is written to
	next int
	size int

	sampler Selector

	minCapacity int
	maxCapacity int
	featureSize int
}

// New creates and returns a new ExperienceReplayer. The sampler
// determines how data is sampled from the buffer. The featureSize
// parameter defines the size of state observation vectors.
func New(sampler Selector, minCapacity, maxCapacity,
	featureSize int) (ExperienceReplayer, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < 1 {
		return nil, fmt.Errorf("new: maxCapacity must be >= 1")
	}
	if maxCapacity < sampler.BatchSize() {
		return nil, fmt.Errorf("new: cannot have batch size(%v) > max "+
			"buffer capacity (%v)", sampler.BatchSize(), maxCapacity)
	}
	if featureSize < 1 {
		return nil, fmt.Errorf("new: featureSize must be >= 1")
	}

	return &cache{
		stateCache:     make([]float64, maxCapacity*featureSize),
		actionCache:    make([]int, maxCapacity),
		rewardCache:    make([]float64, maxCapacity),
		terminalCache:  make([]float64, maxCapacity),
		nextStateCache: make([]float64, maxCapacity*featureSize),

		sampler: sampler,

		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		featureSize: featureSize,
	}, nil
}

// String returns the string representation of the cache
func (c *cache) String() string {
	baseStr := "Size: %v \nStates: %v \nActions: %v \nRewards: %v " +
		"\nTerminals: %v \nNext States: %v"
	return fmt.Sprintf(baseStr, c.size, c.stateCache, c.actionCache,
		c.rewardCache, c.terminalCache, c.nextStateCache)
}

// BatchSize returns the number of samples sampled using Sample()
func (c *cache) BatchSize() int {
	return c.sampler.BatchSize()
}

// Capacity returns the current number of elements in the cache that
// are available for sampling
func (c *cache) Capacity() int {
	return c.size
}

// MaxCapacity returns the maximum number of elements that are allowed
// in the cache
func (c *cache) MaxCapacity() int {
	return c.maxCapacity
}

// MinCapacity returns the minimum number of elements required in the
// cache before sampling is allowed
func (c *cache) MinCapacity() int {
	return c.minCapacity
}

// Add adds a transition to the cache, evicting the oldest transition
// if the cache is full
func (c *cache) Add(t timestep.Transition) error {
	if t.State.Len() != c.featureSize || t.NextState.Len() != c.featureSize {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)\n\thave(%v)",
			c.featureSize, t.State.Len())
	}

	index := c.next

	stateInd := index * c.featureSize
	for i := 0; i < c.featureSize; i++ {
		c.stateCache[stateInd+i] = t.State.AtVec(i)
		c.nextStateCache[stateInd+i] = t.NextState.AtVec(i)
	}

	c.actionCache[index] = t.Action
	c.rewardCache[index] = t.Reward
	if t.Terminal {
		c.terminalCache[index] = 1.0
	} else {
		c.terminalCache[index] = 0.0
	}

	c.next = (c.next + 1) % c.maxCapacity
	if c.size < c.maxCapacity {
		c.size++
	}
	return nil
}

// Sample samples and returns a batch of transitions from the replay
// buffer
func (c *cache) Sample() ([]float64, []int, []float64, []float64,
	[]float64, error) {
	if c.Capacity() == 0 {
		err := &ExpReplayError{
			Op:  "sample",
			Err: errEmptyCache,
		}
		return nil, nil, nil, nil, nil, err
	}
	if c.Capacity() < c.MinCapacity() || c.Capacity() < c.BatchSize() {
		err := &ExpReplayError{
			Op:  "sample",
			Err: errInsufficientSamples,
		}
		return nil, nil, nil, nil, nil, err
	}

	indices := c.sampler.choose(c.Capacity())

	stateBatch := make([]float64, c.BatchSize()*c.featureSize)
	nextStateBatch := make([]float64, c.BatchSize()*c.featureSize)
	actionBatch := make([]int, c.BatchSize())
	rewardBatch := make([]float64, c.BatchSize())
	terminalBatch := make([]float64, c.BatchSize())

	for i, index := range indices {
		batchStartInd := i * c.featureSize
		expStartInd := index * c.featureSize
		copy(stateBatch[batchStartInd:batchStartInd+c.featureSize],
			c.stateCache[expStartInd:expStartInd+c.featureSize],
		)
		copy(nextStateBatch[batchStartInd:batchStartInd+c.featureSize],
			c.nextStateCache[expStartInd:expStartInd+c.featureSize],
		)

		actionBatch[i] = c.actionCache[index]
		rewardBatch[i] = c.rewardCache[index]
		terminalBatch[i] = c.terminalCache[index]
	}

	return stateBatch, actionBatch, rewardBatch, terminalBatch,
		nextStateBatch, nil
}
