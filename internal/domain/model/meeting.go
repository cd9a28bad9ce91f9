package model

import (
	"fmt"
	"strings"
)

// MeetingStatus is the lifecycle state of one side of a meeting.
type MeetingStatus string

// Meeting statuses in lifecycle order.
const (
	StatusCreated MeetingStatus = "created"
	StatusShowed  MeetingStatus = "showed"
	StatusAsked   MeetingStatus = "asked"
	StatusYet     MeetingStatus = "yet"
	StatusDone    MeetingStatus = "done"
	StatusNope    MeetingStatus = "nope"
	// StatusMore marks an open request for an extra meeting.
	StatusMore MeetingStatus = "more"
)

// StatusSet is a set of statuses used to filter meetings.
type StatusSet map[MeetingStatus]struct{}

// NewStatusSet builds a set from the given statuses.
func NewStatusSet(statuses ...MeetingStatus) StatusSet {
	s := make(StatusSet, len(statuses))
	for _, st := range statuses {
		s[st] = struct{}{}
	}
	return s
}

// Has reports whether st is in the set.
func (s StatusSet) Has(st MeetingStatus) bool {
	_, ok := s[st]
	return ok
}

// PendingStatuses are meetings that have not been resolved yet.
func PendingStatuses() StatusSet {
	return NewStatusSet(StatusCreated, StatusShowed, StatusAsked, StatusYet)
}

// AllStatuses are every real meeting, pending or resolved. Open "more"
// requests are not meetings and are excluded.
func AllStatuses() StatusSet {
	return NewStatusSet(StatusCreated, StatusShowed, StatusAsked, StatusYet, StatusDone, StatusNope)
}

// ParseStatus maps a status name to a MeetingStatus.
func ParseStatus(s string) (MeetingStatus, error) {
	st := MeetingStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusCreated, StatusShowed, StatusAsked, StatusYet, StatusDone, StatusNope, StatusMore:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// StatusForVerb maps the participant-facing verbs to statuses:
// pass -> done, deny -> nope, reset -> yet.
func StatusForVerb(verb string) (MeetingStatus, error) {
	switch strings.ToLower(strings.TrimSpace(verb)) {
	case "pass", "done":
		return StatusDone, nil
	case "deny", "nope":
		return StatusNope, nil
	case "reset", "yet":
		return StatusYet, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, verb)
}

// Meeting is one participant's view of a meeting with Partner.
type Meeting struct {
	Partner string        `json:"partner"`
	Status  MeetingStatus `json:"status"`
	// Round is the round that produced the meeting; 0 for manual or on-demand meetings.
	Round int `json:"round"`
}
