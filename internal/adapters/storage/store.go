// Package storage persists the pairing service state between restarts.
package storage

import (
	"context"

	"github.com/okian/coffee/internal/domain/meeting"
	"github.com/okian/coffee/internal/domain/pairing"
)

// Snapshot is everything the service needs to resume.
type Snapshot struct {
	Book    meeting.Snapshot      `json:"book"`
	History map[string][]string   `json:"history"`
	Repeats []pairing.RepeatCount `json:"repeats"`
	Rounds  int                   `json:"rounds"`
}

// Empty reports whether the snapshot carries no state.
func (s Snapshot) Empty() bool {
	return len(s.Book.Participants) == 0 && len(s.History) == 0 && len(s.Repeats) == 0 && s.Rounds == 0
}

// Store loads and saves snapshots.
type Store interface {
	// Load returns the last saved snapshot, or ErrNoSnapshot.
	Load(ctx context.Context) (Snapshot, error)
	// Save replaces the stored snapshot atomically.
	Save(ctx context.Context, s Snapshot) error
	Close() error
}
