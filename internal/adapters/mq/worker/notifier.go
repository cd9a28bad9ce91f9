package worker

import (
	"context"

	"github.com/okian/coffee/internal/domain/model"
	"github.com/okian/coffee/pkg/logger"
)

// Notifier delivers a notification to its participant.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n model.Notification) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n model.Notification) error { //nolint:gocritic // hugeParam: Notification is passed by value for channel semantics
	return f(ctx, n)
}

// LogNotifier writes every notification to the log instead of a chat.
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier returns a notifier that logs deliveries with l.
func NewLogNotifier(l logger.Logger) *LogNotifier {
	return &LogNotifier{log: l}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, msg model.Notification) error { //nolint:gocritic // hugeParam: Notification is passed by value for channel semantics
	fields := []logger.Field{
		logger.String("id", msg.ID),
		logger.String("kind", string(msg.Kind)),
		logger.String("participant", msg.ParticipantID),
		logger.String("chat", msg.ChatID),
		logger.String("lang", msg.LangCode),
	}
	if msg.PartnerID != "" {
		fields = append(fields, logger.String("partner", msg.PartnerID))
	}
	if msg.Round > 0 {
		fields = append(fields, logger.Int("round", msg.Round))
	}
	if msg.Text != "" {
		fields = append(fields, logger.String("text", msg.Text))
	}
	n.log.Info(ctx, "notification delivered", fields...)
	return nil
}
