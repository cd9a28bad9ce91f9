package historyfile

import "errors"

var (
	// ErrMalformedLine is returned when a line is not "left,right".
	ErrMalformedLine = errors.New("malformed history line")
	// ErrInvalidID is returned when an id cannot be written as a field of
	// a "left,right" line and read back unchanged.
	ErrInvalidID = errors.New("participant id not storable in history file")
	// ErrInvalidIndex is returned for negative round indexes.
	ErrInvalidIndex = errors.New("invalid round index")
)
