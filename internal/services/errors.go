package services

import "errors"

// Analysis service errors
var (
	// Dataset store errors
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrDatasetExpired  = errors.New("dataset expired")

	// Request errors
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnknownFormat    = errors.New("unknown report format")
	ErrIncompletePair   = errors.New("lamp_a and lamp_b must be given together")
	ErrConflictingLamps = errors.New("baseline_lamp cannot be combined with lamp_a and lamp_b")
)
