package filepool

import (
	"errors"
	"fmt"
)

var (
	// ErrTooManyChannels is reported for samples with more than 2 channels.
	ErrTooManyChannels = errors.New("only mono and stereo samples are supported")

	// ErrUnsupportedFormat is reported for files the opener can't decode.
	ErrUnsupportedFormat = errors.New("unsupported sample format")

	// ErrAlreadyStarted is returned by a second Pool.Start call.
	ErrAlreadyStarted = errors.New("pool workers are already running")
)

// LoadError describes a sample that could not be loaded.
type LoadError struct {
	Name string

	// Op is the failed step: "open", "read" or "decode".
	Op string

	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
