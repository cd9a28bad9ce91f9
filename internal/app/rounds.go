package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/coffee/internal/adapters/historyfile"
	"github.com/okian/coffee/internal/domain/model"
	"github.com/okian/coffee/internal/domain/pairing"
	"github.com/okian/coffee/internal/domain/types"
	"github.com/okian/coffee/pkg/logger"
	"github.com/okian/coffee/pkg/metrics"
)

// GenerateRound pairs every enabled participant. The round is computed on
// copies of the history and the repeat counter and only committed once
// its round file is written, so a failed write leaves the state as it
// was. New meetings start as created; NotifyAll announces them.
//
// Once committed the round stands: a failed snapshot save is logged and
// the report is returned without an error. The next successful save
// carries the round.
func (s *Service) GenerateRound(ctx context.Context) (types.RoundReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStartedLocked(); err != nil {
		return types.RoundReport{}, err
	}

	start := time.Now()
	history := s.history.Clone()
	repeats := pairing.ImportRepeats(s.repeats.Export())
	round := s.generator.GenerateRound(s.book.Enabled(), history, repeats)
	index := s.rounds + 1

	if s.historyDir != "" {
		path, err := historyfile.WriteRoundFile(s.historyDir, index, round.Pairs)
		if err != nil {
			metrics.RecordErrorByComponent("historyfile", "write_failed")
			return types.RoundReport{}, fmt.Errorf("round %d: %w", index, err)
		}
		metrics.RecordHistoryFile("write")
		s.logger.Debug(ctx, "round file written", logger.String("path", path))
	}

	s.history = history
	s.repeats = repeats
	s.rounds = index
	for _, p := range round.Pairs {
		if err := s.book.Add(p.Left, p.Right, model.StatusCreated, index); err != nil {
			// Only enabled participants are paired, so this cannot happen
			// unless the book and the generator disagree.
			s.logger.Error(ctx, "add round meeting", logger.Error(err))
		}
	}

	report := types.RoundReport{
		Round:        index,
		Pairs:        make([][2]string, len(round.Pairs)),
		Leftover:     round.Leftover,
		Fresh:        round.Fresh(),
		Fallback:     len(round.Pairs) - round.Fresh(),
		Repeats:      round.Repeats(),
		Deferred:     round.Deferred,
		SmallestPool: round.SmallestPool,
		BiggestPool:  round.BiggestPool,
	}
	for i, p := range round.Pairs {
		report.Pairs[i] = [2]string{p.Left, p.Right}
	}

	metrics.RecordRound(report.Fresh, report.Fallback, report.Repeats, report.Deferred,
		float64(time.Since(start).Microseconds())/1000)
	s.updateGaugesLocked()

	s.logger.Info(ctx, "round generated",
		logger.Int("round", index),
		logger.Int("pairs", len(report.Pairs)),
		logger.Int("fresh", report.Fresh),
		logger.Int("repeats", report.Repeats),
		logger.Int("deferred", report.Deferred),
		logger.Int("smallestPool", report.SmallestPool),
		logger.Int("biggestPool", report.BiggestPool),
	)

	if err := s.persistLocked(ctx); err != nil {
		metrics.RecordErrorByComponent("store", "save_failed")
		s.logger.Error(ctx, "save after round failed",
			logger.Int("round", index),
			logger.Error(err),
		)
	}
	return report, nil
}

// TopRepeats returns the k most repeated ordered pairs; k < 1 returns all.
func (s *Service) TopRepeats(ctx context.Context, k int) []pairing.RepeatCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repeats.Top(k)
}

// Rounds returns how many rounds have been generated.
func (s *Service) Rounds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rounds
}
