package model

import "strconv"

// NotificationKind tells the notifier which message to deliver.
type NotificationKind string

// Notification kinds.
const (
	NotifyNewMeeting NotificationKind = "new_meeting"
	NotifyReminder   NotificationKind = "reminder"
	NotifyBroadcast  NotificationKind = "broadcast"
)

// Notification is a message to one participant.
type Notification struct {
	ID            string
	ParticipantID string
	ChatID        string
	LangCode      string
	Kind          NotificationKind
	PartnerID     string
	Round         int
	Text          string
}

// NotificationID builds the idempotency key for a notification. batch
// identifies the run that produced it (round number, reminder pass or
// broadcast id).
func NotificationID(kind NotificationKind, batch string, participantID string) string {
	return string(kind) + ":" + batch + ":" + participantID
}

// RoundBatch formats a round number as a notification batch.
func RoundBatch(round int) string {
	return "round-" + strconv.Itoa(round)
}
