package checkpointer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ts "github.com/samuelfneumann/trafficrl/timestep"
)

type recorder struct {
	paths []string
}

func (r *recorder) Save(path string) error {
	r.paths = append(r.paths, path)
	return nil
}

func TestNStep(t *testing.T) {
	r := &recorder{}
	c, err := NewNStep(3, r, FilenameEnumerator(0, "model-", ".bin"))
	require.NoError(t, err)

	require.NoError(t, c.Checkpoint(ts.New(ts.First, 0, 1, nil, 0)))
	for i := 1; i <= 7; i++ {
		require.NoError(t, c.Checkpoint(ts.New(ts.Mid, 0, 1, nil, i)))
	}
	assert.Equal(t, []string{"model-1.bin", "model-2.bin"}, r.paths)

	_, err = NewNStep(0, r, Fixed("model"))
	assert.Error(t, err)
}

func TestFilenames(t *testing.T) {
	enum := FilenameEnumerator(4, "a", ".gob")
	assert.Equal(t, "a5.gob", enum())
	assert.Equal(t, "a6.gob", enum())

	fixed := Fixed("dqn_traffic_model")
	assert.Equal(t, "dqn_traffic_model", fixed())
	assert.Equal(t, "dqn_traffic_model", fixed())

	timed := FileTimer("b", ".bin")()
	assert.True(t, strings.HasPrefix(timed, "b-"))
	assert.True(t, strings.HasSuffix(timed, ".bin"))
}
