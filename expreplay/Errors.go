package expreplay

import (
	"errors"
	"fmt"
)

var (
	errEmptyCache          = errors.New("cache is empty")
	errInsufficientSamples = errors.New("insufficient samples in cache")
)

// ExpReplayError records an error and the operation that caused it
type ExpReplayError struct {
	Op  string
	Err error
}

func (e *ExpReplayError) Error() string {
	return fmt.Sprintf("%v: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *ExpReplayError) Unwrap() error {
	return e.Err
}

// IsEmptyBuffer returns whether an error was caused by sampling from
// an empty buffer
func IsEmptyBuffer(err error) bool {
	return errors.Is(err, errEmptyCache)
}

// IsInsufficientSamples returns whether an error was caused by sampling
// from a buffer that does not yet hold enough samples
func IsInsufficientSamples(err error) bool {
	return errors.Is(err, errInsufficientSamples)
}
