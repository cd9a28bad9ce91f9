package simulate

import "errors"

var (
	// ErrInvalidConfig is returned when a simulation config cannot run.
	ErrInvalidConfig = errors.New("invalid simulation config")
	// ErrNameTooShort is returned when the name length cannot hold the
	// index suffix that keeps names unique.
	ErrNameTooShort = errors.New("name length too short for participant count")
)
