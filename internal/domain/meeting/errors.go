package meeting

import "errors"

// Sentinel kinds for meeting book errors.
var (
	ErrEmptyID            = errors.New("participant id must not be empty")
	ErrInvalidID          = errors.New("participant id or username must not contain commas, line breaks or surrounding spaces")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrSelfMeeting        = errors.New("participant cannot meet itself")
	ErrStatusNotSettable  = errors.New("status cannot be set directly")
)
