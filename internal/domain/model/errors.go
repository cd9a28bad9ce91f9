package model

import "errors"

// Sentinel kinds for model errors.
var (
	ErrUnknownStatus = errors.New("unknown meeting status")
)
