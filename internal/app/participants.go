package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/coffee/internal/domain/meeting"
	"github.com/okian/coffee/internal/domain/model"
	"github.com/okian/coffee/internal/domain/types"
	"github.com/okian/coffee/pkg/logger"
	"github.com/okian/coffee/pkg/metrics"
)

// Register enables a participant, creating it on first use.
func (s *Service) Register(ctx context.Context, p model.Participant) (model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStartedLocked(); err != nil {
		return model.Participant{}, err
	}
	out, err := s.book.Register(p)
	if err != nil {
		return model.Participant{}, fmt.Errorf("register: %w", err)
	}
	if err := s.ranking.Set(ctx, out.ID, s.book.Completed(out.ID)); err != nil {
		return model.Participant{}, fmt.Errorf("register: %w", err)
	}
	s.updateGaugesLocked()
	s.logger.Info(ctx, "participant registered",
		logger.String("id", out.ID),
		logger.String("username", out.Username),
	)
	return out, s.persistLocked(ctx)
}

// Unregister disables a participant. It stays known so that its history
// keeps counting when it comes back.
func (s *Service) Unregister(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStartedLocked(); err != nil {
		return err
	}
	if !s.book.Unregister(id) {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}
	s.ranking.Remove(ctx, id)
	s.updateGaugesLocked()
	s.logger.Info(ctx, "participant unregistered", logger.String("id", id))
	return s.persistLocked(ctx)
}

// resolveLocked maps an id or username to an enabled participant.
func (s *Service) resolveLocked(ref string) (model.Participant, error) {
	p, err := s.book.Resolve(ref)
	if err != nil || !p.Enabled {
		return model.Participant{}, fmt.Errorf("%w: %s", ErrUnknownParticipant, ref)
	}
	return p, nil
}

// UpdateStatus applies a participant verb (pass, deny or reset) to the
// pending meetings between id and partner, where partner may be an id or
// a username. It returns the number of meeting views changed.
func (s *Service) UpdateStatus(ctx context.Context, id, partner, verb string) (int, error) {
	status, err := model.StatusForVerb(verb)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, verb)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStartedLocked(); err != nil {
		return 0, err
	}
	self, err := s.resolveLocked(id)
	if err != nil {
		return 0, err
	}
	other, err := s.resolveLocked(partner)
	if err != nil {
		return 0, err
	}
	if self.ID == other.ID {
		return 0, ErrSelfMeeting
	}

	changed, err := s.book.UpdateStatus(self.ID, other.ID, status)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidStatus, err)
	}
	metrics.RecordMeetingStatusUpdate(string(status), changed)
	if changed == 0 {
		return 0, nil
	}

	for _, pid := range []string{self.ID, other.ID} {
		if err := s.ranking.Set(ctx, pid, s.book.Completed(pid)); err != nil {
			s.logger.Error(ctx, "update ranking", logger.String("id", pid), logger.Error(err))
		}
	}
	s.updateGaugesLocked()
	s.logger.Info(ctx, "meeting status updated",
		logger.String("id", self.ID),
		logger.String("partner", other.ID),
		logger.String("status", string(status)),
		logger.Int("views", changed),
	)
	return changed, s.persistLocked(ctx)
}

// AddMeeting pairs two participants by hand. The meeting is recorded in
// the pairing history and announced by the next NotifyAll.
func (s *Service) AddMeeting(ctx context.Context, left, right string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStartedLocked(); err != nil {
		return err
	}
	a, err := s.resolveLocked(left)
	if err != nil {
		return err
	}
	b, err := s.resolveLocked(right)
	if err != nil {
		return err
	}
	if err := s.book.Add(a.ID, b.ID, model.StatusCreated, 0); err != nil {
		if errors.Is(err, meeting.ErrSelfMeeting) {
			return ErrSelfMeeting
		}
		return fmt.Errorf("add meeting: %w", err)
	}
	s.history.Record(a.ID, b.ID)
	s.updateGaugesLocked()
	s.logger.Info(ctx, "meeting added", logger.String("left", a.ID), logger.String("right", b.ID))
	return s.persistLocked(ctx)
}

// RemoveMeetings drops every meeting of the participant. Partners keep
// their side, and the pairing history is left untouched.
func (s *Service) RemoveMeetings(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStartedLocked(); err != nil {
		return err
	}
	p, err := s.resolveLocked(ref)
	if err != nil {
		return err
	}
	s.book.Remove(p.ID)
	if err := s.ranking.Set(ctx, p.ID, 0); err != nil {
		return fmt.Errorf("remove meetings: %w", err)
	}
	s.updateGaugesLocked()
	s.logger.Info(ctx, "meetings removed", logger.String("id", p.ID))
	return s.persistLocked(ctx)
}

// Meetings returns the participant's pending meetings, or every meeting
// when all is set.
func (s *Service) Meetings(ctx context.Context, id string, all bool) ([]model.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.resolveLocked(id)
	if err != nil {
		return nil, err
	}
	statuses := model.PendingStatuses()
	if all {
		statuses = model.AllStatuses()
	}
	out := s.book.Meetings(p.ID, statuses)
	if out == nil {
		out = []model.Meeting{}
	}
	return out, nil
}

// UserStats counts the participant's meetings per status.
func (s *Service) UserStats(ctx context.Context, id string) (map[model.MeetingStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.resolveLocked(id)
	if err != nil {
		return nil, err
	}
	return s.book.Stats(p.ID), nil
}

// Leaderboard returns the meeting aggregates shown to admins.
func (s *Service) Leaderboard(ctx context.Context) types.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := s.book.Summary()
	summary.Rounds = s.rounds
	return summary
}

// TopN returns the participants with the most completed meetings.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStartedLocked(); err != nil {
		return nil, err
	}
	entries, err := s.ranking.TopN(ctx, n)
	if err != nil {
		return nil, err
	}

	out := make([]types.Entry, len(entries))
	for i, e := range entries {
		out[i] = types.Entry{Rank: e.Rank, ParticipantID: e.ParticipantID, Completed: e.Completed}
	}
	return out, nil
}

// Rank returns the rank and completed meetings of a participant.
func (s *Service) Rank(ctx context.Context, id string) (types.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStartedLocked(); err != nil {
		return types.Entry{}, err
	}
	e, err := s.ranking.Rank(ctx, id)
	if err != nil {
		return types.Entry{}, err
	}
	return types.Entry{Rank: e.Rank, ParticipantID: e.ParticipantID, Completed: e.Completed}, nil
}
