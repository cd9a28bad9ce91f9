// Package types contains common types used across the application
package types

// Entry is a row of the participant leaderboard: participants ranked by
// completed meetings.
type Entry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participant_id"`
	Completed     int    `json:"completed"`
}

// Summary aggregates the meeting book for admins.
type Summary struct {
	Rounds       int `json:"rounds"`
	Members      int `json:"members"`
	WithMeetings int `json:"with_meetings"`
	Meetings     int `json:"meetings"`
	Done         int `json:"done"`
	Denied       int `json:"denied"`
	NotYet       int `json:"not_yet"`
}

// RoundReport summarizes a generated round for callers of the service.
type RoundReport struct {
	Round        int         `json:"round"`
	Pairs        [][2]string `json:"pairs"`
	Leftover     []string    `json:"leftover,omitempty"`
	Fresh        int         `json:"fresh"`
	Fallback     int         `json:"fallback"`
	Repeats      int         `json:"repeats"`
	Deferred     int         `json:"deferred"`
	SmallestPool int         `json:"smallest_pool"`
	BiggestPool  int         `json:"biggest_pool"`
}

// NotifyReport counts the outcome of a notification pass.
type NotifyReport struct {
	// Announced lists the pairs whose meetings were shown for the first time.
	Announced  [][2]string `json:"announced,omitempty"`
	Queued     int         `json:"queued"`
	Duplicates int         `json:"duplicates"`
	Dropped    int         `json:"dropped"`
	// Skipped counts notifications for participants that are not enabled.
	Skipped int `json:"skipped"`
}

// Add merges o into r.
func (r *NotifyReport) Add(o NotifyReport) {
	r.Announced = append(r.Announced, o.Announced...)
	r.Queued += o.Queued
	r.Duplicates += o.Duplicates
	r.Dropped += o.Dropped
	r.Skipped += o.Skipped
}
