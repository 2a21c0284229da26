package solver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolverJSON(t *testing.T) {
	adam, err := NewDefaultAdam(0.001, 1)
	require.NoError(t, err)

	data, err := json.Marshal(adam)
	require.NoError(t, err)

	var decoded Solver
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Adam, decoded.Type)
	assert.Equal(t, adam.Config, decoded.Config)
	assert.NotNil(t, decoded.Create())
}

func TestSolverJSONUnknownType(t *testing.T) {
	var decoded Solver
	err := json.Unmarshal([]byte(`{"Type":"Nesterov","Config":{}}`), &decoded)
	assert.Error(t, err)
}

func TestCreateReturnsIndependentSolvers(t *testing.T) {
	vanilla, err := NewVanilla(0.1, 1, 0)
	require.NoError(t, err)
	assert.NotSame(t, vanilla.Create(), vanilla.Create())
}
