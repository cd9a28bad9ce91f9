package service

import "errors"

var (
	// ErrNotStarted is returned by operations that need the notification
	// pipeline before Start was called.
	ErrNotStarted = errors.New("service not started")
	// ErrUnknownParticipant is returned for ids or usernames that are not
	// registered or are disabled.
	ErrUnknownParticipant = errors.New("unknown participant")
	// ErrSelfMeeting is returned when a meeting would pair a participant
	// with itself.
	ErrSelfMeeting = errors.New("participant cannot meet itself")
	// ErrInvalidStatus is returned for status verbs other than pass, deny
	// and reset.
	ErrInvalidStatus = errors.New("invalid meeting status")
	// ErrEmptyMessage is returned by Broadcast for blank text.
	ErrEmptyMessage = errors.New("message must not be empty")
)
