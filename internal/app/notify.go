package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/okian/coffee/internal/domain/model"
	"github.com/okian/coffee/internal/domain/types"
	"github.com/okian/coffee/pkg/logger"
	"github.com/okian/coffee/pkg/metrics"
)

// NotifyAll announces every created meeting to both partners and
// reminds the other participants that still have pending meetings.
// Meetings from a generated round are keyed by round, so announcing the
// same round twice never sends twice.
func (s *Service) NotifyAll(ctx context.Context) (types.NotifyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStartedLocked(); err != nil {
		return types.NotifyReport{}, err
	}

	pass := uuid.NewString()
	report := types.NotifyReport{Announced: s.book.Announce()}
	announced := make(map[string]struct{})
	for _, pair := range report.Announced {
		for _, side := range [][2]string{{pair[0], pair[1]}, {pair[1], pair[0]}} {
			round := s.roundOfLocked(side[0], side[1])
			batch := model.RoundBatch(round)
			if round == 0 {
				batch = pass + "/" + side[1]
			}
			report.Add(s.enqueueLocked(ctx, model.Notification{
				ID:            model.NotificationID(model.NotifyNewMeeting, batch, side[0]),
				ParticipantID: side[0],
				Kind:          model.NotifyNewMeeting,
				PartnerID:     side[1],
				Round:         round,
			}))
			announced[side[0]] = struct{}{}
		}
	}

	for _, id := range s.book.WithPending() {
		if _, ok := announced[id]; ok {
			continue
		}
		report.Add(s.enqueueLocked(ctx, model.Notification{
			ID:            model.NotificationID(model.NotifyReminder, pass, id),
			ParticipantID: id,
			Kind:          model.NotifyReminder,
		}))
	}

	s.updateGaugesLocked()
	s.logger.Info(ctx, "notification pass queued",
		logger.String("batch", pass),
		logger.Int("announced", len(report.Announced)),
		logger.Int("queued", report.Queued),
		logger.Int("duplicates", report.Duplicates),
		logger.Int("dropped", report.Dropped),
		logger.Int("skipped", report.Skipped),
	)
	return report, s.persistLocked(ctx)
}

// Broadcast sends text to every enabled participant.
func (s *Service) Broadcast(ctx context.Context, text string) (types.NotifyReport, error) {
	if strings.TrimSpace(text) == "" {
		return types.NotifyReport{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStartedLocked(); err != nil {
		return types.NotifyReport{}, err
	}

	batch := uuid.NewString()
	var report types.NotifyReport
	for _, id := range s.book.Enabled() {
		report.Add(s.enqueueLocked(ctx, model.Notification{
			ID:            model.NotificationID(model.NotifyBroadcast, batch, id),
			ParticipantID: id,
			Kind:          model.NotifyBroadcast,
			Text:          text,
		}))
	}
	s.logger.Info(ctx, "broadcast queued",
		logger.String("batch", batch),
		logger.Int("queued", report.Queued),
		logger.Int("dropped", report.Dropped),
	)
	return report, nil
}

// RequestMore opens an on-demand meeting request. When another open
// request matches, both participants get a meeting with each other and
// are notified; the partner is returned.
func (s *Service) RequestMore(ctx context.Context, id string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStartedLocked(); err != nil {
		return "", false, err
	}
	p, err := s.resolveLocked(id)
	if err != nil {
		return "", false, err
	}
	partner, matched, err := s.book.RequestMore(p.ID)
	if err != nil {
		return "", false, fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}
	if !matched {
		metrics.RecordMoreRequest("waiting")
		s.logger.Debug(ctx, "more request waiting", logger.String("id", p.ID))
		return "", false, s.persistLocked(ctx)
	}

	metrics.RecordMoreRequest("matched")
	s.history.Record(p.ID, partner)
	batch := "more-" + uuid.NewString()
	for _, side := range [][2]string{{p.ID, partner}, {partner, p.ID}} {
		s.enqueueLocked(ctx, model.Notification{
			ID:            model.NotificationID(model.NotifyNewMeeting, batch, side[0]),
			ParticipantID: side[0],
			Kind:          model.NotifyNewMeeting,
			PartnerID:     side[1],
		})
	}
	s.updateGaugesLocked()
	s.logger.Info(ctx, "more request matched", logger.String("id", p.ID), logger.String("partner", partner))
	return partner, true, s.persistLocked(ctx)
}

// roundOfLocked returns the latest round of the shown meetings between a
// and b, or 0 for meetings added by hand.
func (s *Service) roundOfLocked(a, b string) int {
	round := 0
	for _, m := range s.book.Meetings(a, model.NewStatusSet(model.StatusShowed)) {
		if m.Partner == b {
			round = max(round, m.Round)
		}
	}
	return round
}

// enqueueLocked records the notification id and queues it. Participants
// that are unknown or unregistered get nothing. An id that was already
// recorded is skipped; a notification the queue rejects is unrecorded so
// that a later pass can retry it.
func (s *Service) enqueueLocked(ctx context.Context, n model.Notification) types.NotifyReport { //nolint:gocritic // hugeParam: Notification is passed by value for channel semantics
	p, ok := s.book.Participant(n.ParticipantID)
	if !ok || !p.Enabled {
		s.logger.Debug(ctx, "notification for disabled participant skipped",
			logger.String("id", n.ID),
			logger.String("participant", n.ParticipantID),
		)
		return types.NotifyReport{Skipped: 1}
	}
	n.ChatID = p.ChatID
	n.LangCode = p.LangCode
	if s.deduper.SeenAndRecord(ctx, n.ID) {
		metrics.RecordNotificationDuplicate()
		s.logger.Debug(ctx, "duplicate notification skipped", logger.String("id", n.ID))
		return types.NotifyReport{Duplicates: 1}
	}
	if !s.queue.Enqueue(ctx, n) {
		s.deduper.Unrecord(ctx, n.ID)
		s.logger.Warn(ctx, "notification dropped", logger.String("id", n.ID))
		return types.NotifyReport{Dropped: 1}
	}
	return types.NotifyReport{Queued: 1}
}
