package repository

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrNotFound      = errors.New("participant not ranked")
	ErrInvalidLimit  = errors.New("invalid leaderboard limit")
	ErrNegativeScore = errors.New("negative completed count")
)
