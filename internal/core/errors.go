package core

import "errors"

var (
	// ErrInvalidEmail is returned when a caller submits an email the
	// pipeline cannot evaluate (no sender, unparseable content). This is
	// the only error that aborts an evaluation.
	ErrInvalidEmail = errors.New("invalid email input")

	// ErrNotFound is returned by stores when a record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTransition is returned when a detection status change
	// violates the lifecycle transition table
	ErrInvalidTransition = errors.New("invalid detection status transition")

	// ErrAlreadyPushed is returned when mutating a detection that has been
	// pushed to an external workflow
	ErrAlreadyPushed = errors.New("detection already pushed to workflow")
)
