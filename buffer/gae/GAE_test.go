package gae

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestDiscountCumSum(t *testing.T) {
	got := discountCumSum([]float64{1, 2, 3}, 0.5)
	assert.InDeltaSlice(t, []float64{1 + 0.5*2 + 0.25*3, 2 + 0.5*3, 3}, got,
		1e-12)
}

func TestFinishPathTerminal(t *testing.T) {
	b, err := New(1, 3, 1.0, 1.0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Store([]float64{float64(i)}, i%2, 1, 0, -0.5))
	}
	b.FinishPath(0)

	obs, act, adv, ret, logProb, err := b.Get()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, obs)
	assert.Equal(t, []int{0, 1, 0}, act)
	assert.Equal(t, []float64{3, 2, 1}, ret)
	assert.Equal(t, []float64{-0.5, -0.5, -0.5}, logProb)

	mean, std := stat.MeanStdDev(adv, nil)
	assert.InDelta(t, 0, mean, 1e-9)
	assert.InDelta(t, 1, std, 1e-6)

	// Advantages were 3, 2, 1 before normalization
	assert.Greater(t, adv[0], adv[1])
	assert.Greater(t, adv[1], adv[2])
}

func TestFinishPathBootstraps(t *testing.T) {
	b, err := New(1, 2, 0.9, 0.5)
	require.NoError(t, err)

	require.NoError(t, b.Store([]float64{0}, 0, 1, 0, 0))
	b.FinishPath(4)
	require.NoError(t, b.Store([]float64{0}, 0, 2, 0, 0))
	b.FinishPath(0)

	_, _, _, ret, _, err := b.Get()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1 + 0.5*4, 2}, ret, 1e-12)
}

func TestStoreAndGetErrors(t *testing.T) {
	b, err := New(2, 1, 0.95, 0.99)
	require.NoError(t, err)

	assert.Error(t, b.Store([]float64{1}, 0, 0, 0, 0))

	_, _, _, _, _, err = b.Get()
	assert.Error(t, err)

	require.NoError(t, b.Store([]float64{1, 2}, 0, 0, 0, 0))
	assert.True(t, b.Full())
	assert.Error(t, b.Store([]float64{1, 2}, 0, 0, 0, 0))

	// The path must be finished before the buffer can be read
	_, _, _, _, _, err = b.Get()
	assert.Error(t, err)

	b.FinishPath(0)
	_, _, _, _, _, err = b.Get()
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())
}

func TestNewInvalid(t *testing.T) {
	_, err := New(0, 1, 0.9, 0.9)
	assert.Error(t, err)
	_, err = New(1, 1, 1.1, 0.9)
	assert.Error(t, err)
}
