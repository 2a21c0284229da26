package initwfn

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestInitWFnJSON(t *testing.T) {
	for _, init := range []*InitWFn{
		NewGlorotU(1.0),
		NewGlorotN(2.0),
		NewHeU(1.0),
		NewHeN(0.5),
		NewUniform(-1, 1),
		NewGaussian(0, 0.1),
		NewZeroes(),
	} {
		data, err := json.Marshal(init)
		require.NoError(t, err)

		var decoded InitWFn
		require.NoError(t, json.Unmarshal(data, &decoded), string(data))
		assert.Equal(t, init.Type, decoded.Type)
		assert.Equal(t, init.Config, decoded.Config)
		assert.NotNil(t, decoded.InitWFn())
	}
}

func TestInitWFnJSONUnknownType(t *testing.T) {
	var decoded InitWFn
	assert.Error(t, json.Unmarshal([]byte(`{"Type":"Orthogonal"}`), &decoded))
}

func TestZeroesCreate(t *testing.T) {
	values := NewZeroes().InitWFn()(tensor.Float64, 2, 3).([]float64)
	assert.Equal(t, make([]float64, 6), values)
}
