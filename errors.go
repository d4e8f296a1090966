package termgrid

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by Present. Backends wrap these sentinels so that
// callers can classify a frame failure with errors.Is regardless of which
// pipeline stage produced it.
var (
	// ErrResourceCreation indicates a texture or buffer allocation failed.
	// Terminal for the current frame only; a later frame may succeed once
	// the transient condition clears.
	ErrResourceCreation = errors.New("termgrid: resource creation failed")

	// ErrDeviceLost indicates the backend reported the GPU context invalid.
	// Recoverable only by a layer above through full device and resource
	// recreation; termgrid reports it and does nothing else.
	ErrDeviceLost = errors.New("termgrid: device lost")

	// ErrMapFailure indicates a GPU resource could not be mapped this frame.
	ErrMapFailure = errors.New("termgrid: resource map failed")
)

// Configuration mistakes reported by New.
var (
	errBadCellSize = errors.New("termgrid: cell size must be nonzero")
	errNoFaces     = errors.New("termgrid: config requires a face set")
	errNoDevice    = errors.New("termgrid: config requires a device")
)

// FrameError is the structured failure returned by Engine.Present. Op names
// the pipeline stage that failed. No partial frame is ever presented: the
// backend present call is reached only if every prior stage succeeded.
type FrameError struct {
	// Op is the pipeline stage, e.g. "atlas", "glyph-queue", "draw".
	Op string

	// Err is the underlying failure, wrapping one of the kind sentinels.
	Err error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("termgrid: %s: %v", e.Op, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// frameErr wraps err with the failing pipeline stage, passing nil through.
func frameErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &FrameError{Op: op, Err: err}
}
