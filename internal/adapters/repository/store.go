// Package repository ranks participants by completed meetings.
package repository

import "context"

// Entry represents a ranking row.
type Entry struct {
	Rank          int
	ParticipantID string
	Completed     int
}

// Store provides read/write access to the ranking state.
type Store interface {
	// Set stores the completed meeting count for a participant, replacing
	// any previous value.
	Set(ctx context.Context, participantID string, completed int) error

	// Remove drops a participant from the ranking. Unknown ids are ignored.
	Remove(ctx context.Context, participantID string)

	// Rank returns the current rank for a participant.
	// Returns ErrNotFound if the participant is unknown.
	Rank(ctx context.Context, participantID string) (Entry, error)

	// TopN returns the top-N entries ordered by completed meetings desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of participants tracked.
	Count(ctx context.Context) int
}
