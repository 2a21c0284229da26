package checkpointer

import (
	"fmt"

	ts "github.com/samuelfneumann/trafficrl/timestep"
)

// nStep implements checkpointing every N environment steps
type nStep struct {
	interval int
	steps    int
	object   Serializable

	// filename returns the name of the file to save the next checkpoint
	// in. Use FilenameEnumerator to save each checkpoint in a separate
	// numbered file, FileTimer to save each in a separate time-stamped
	// file, or Fixed to keep only the latest checkpoint. For example:
	//
	//	n := NewNStep(10, object, FileTimer("filename", ".bin"))
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n steps
func NewNStep(n int, object Serializable,
	filename func() string) (Checkpointer, error) {
	if n < 1 {
		return nil, fmt.Errorf("newNStep: interval must be positive")
	}
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint counts steps taken in the environment and saves the
// tracked object every interval steps. First timesteps are not counted
// since no action led to them.
func (n *nStep) Checkpoint(t ts.TimeStep) error {
	if t.First() {
		return nil
	}
	n.steps++
	if n.steps%n.interval == 0 {
		if err := n.object.Save(n.filename()); err != nil {
			return fmt.Errorf("checkpoint: %v", err)
		}
	}
	return nil
}
