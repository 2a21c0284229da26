package progressbar

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	bar := New(&buf, "dqn", 10, 4)

	bar.Increment()
	assert.Equal(t, 0.25, bar.Fraction())
	assert.Contains(t, bar.String(), "dqn |██        |")
	assert.Contains(t, bar.String(), "25.00%")

	for i := 0; i < 10; i++ {
		bar.Increment()
	}
	assert.Equal(t, 1.0, bar.Fraction())

	bar.Close()
	bar.Close()
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}
