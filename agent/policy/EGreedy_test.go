package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecayMonotoneWithFloor(t *testing.T) {
	p, err := NewEGreedy(DefaultSchedule(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Epsilon())

	prev := p.Epsilon()
	for i := 0; i < 5000; i++ {
		p.Decay()
		assert.LessOrEqual(t, p.Epsilon(), prev)
		assert.GreaterOrEqual(t, p.Epsilon(), 0.01)
		prev = p.Epsilon()
	}
	assert.Equal(t, 0.01, p.Epsilon())
}

func TestDecayOnce(t *testing.T) {
	p, err := NewEGreedy(DefaultSchedule(), 1)
	require.NoError(t, err)
	p.Decay()
	assert.InDelta(t, 0.995, p.Epsilon(), 1e-12)
}

func TestGreedy(t *testing.T) {
	p, err := NewEGreedy(Schedule{Start: 0, Min: 0, Decay: 1}, 3)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		assert.Equal(t, 2, p.SelectAction([]float64{0.1, -4, 7}))
	}

	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		seen[p.Greedy([]float64{5, 1, 5})] = true
	}
	assert.Equal(t, map[int]bool{0: true, 2: true}, seen)
}

func TestExploration(t *testing.T) {
	p, err := NewEGreedy(Schedule{Start: 1, Min: 1, Decay: 1}, 5)
	require.NoError(t, err)

	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		a := p.SelectAction([]float64{0, 0, 10})
		require.True(t, a >= 0 && a < 3)
		counts[a]++
	}
	for _, c := range counts {
		assert.InDelta(t, 1000, c, 150)
	}
}

func TestSetEpsilonClipped(t *testing.T) {
	p, err := NewEGreedy(DefaultSchedule(), 1)
	require.NoError(t, err)
	p.SetEpsilon(-1)
	assert.Equal(t, 0.01, p.Epsilon())
	p.SetEpsilon(2)
	assert.Equal(t, 1.0, p.Epsilon())
}

func TestScheduleValidate(t *testing.T) {
	assert.NoError(t, DefaultSchedule().Validate())
	assert.Error(t, Schedule{Start: 0.1, Min: 0.5, Decay: 0.9}.Validate())
	assert.Error(t, Schedule{Start: 1, Min: 0, Decay: 0}.Validate())
	assert.Error(t, Schedule{Start: 1.5, Min: 0, Decay: 0.9}.Validate())
}
