package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, "Traffic signal control",
		Series{Name: "dqn-run", Values: []float64{-120, -80, -60}},
		Series{Name: "ppo-run", Values: []float64{-110, -90}},
	)
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "dqn-run")
	assert.Contains(t, html, "ppo-run")
	assert.Contains(t, html, "Traffic signal control")
}

func TestLineNoSeries(t *testing.T) {
	_, err := Line("empty")
	assert.Error(t, err)
	assert.Error(t, Render(&bytes.Buffer{}, "empty"))
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "returns.html")
	require.NoError(t, Save(path, "returns", Series{Name: "a",
		Values: []float64{1, 2}}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
