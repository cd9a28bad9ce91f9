// Package simulate builds synthetic pairing histories: it runs many
// rounds over generated participants, writes one round file per round
// and reports the most repeated directions.
package simulate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/okian/coffee/internal/adapters/historyfile"
	"github.com/okian/coffee/internal/domain/pairing"
	"github.com/okian/coffee/pkg/logger"
	"github.com/okian/coffee/pkg/metrics"
)

// pcgStream is the second PCG word mixed into explicit seeds.
const pcgStream = 0x5851f42d4c957f2d

// Config holds the simulation parameters.
type Config struct {
	Users      int
	Rounds     int
	NameLength int
	Dir        string
	// Top bounds the repeats report. Zero reports every direction.
	Top int
	// Seed makes names and rounds reproducible. Zero picks a random seed.
	Seed uint64
}

// DefaultConfig returns the parameters used when no flag is given.
func DefaultConfig() Config {
	return Config{
		Users:      1000,
		Rounds:     100,
		NameLength: 100,
		Dir:        "history",
		Top:        3,
	}
}

// Validate checks that the config can run.
func (c Config) Validate() error {
	switch {
	case c.Users < 0:
		return fmt.Errorf("%w: users must be non-negative", ErrInvalidConfig)
	case c.Rounds < 0:
		return fmt.Errorf("%w: rounds must be non-negative", ErrInvalidConfig)
	case c.NameLength <= 0:
		return fmt.Errorf("%w: name length must be positive", ErrInvalidConfig)
	case c.Dir == "":
		return fmt.Errorf("%w: dir is required", ErrInvalidConfig)
	case c.Top < 0:
		return fmt.Errorf("%w: top must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// RoundStat summarizes one simulated round.
type RoundStat struct {
	Index        int
	Pairs        int
	Repeats      int
	Deferred     int
	SmallestPool int
	BiggestPool  int
	Duration     time.Duration
}

// Report is the outcome of Run.
type Report struct {
	Seed   uint64
	Rounds []RoundStat
	// RepeatTotal counts forced repeats in both directions.
	RepeatTotal int
	Top         []pairing.RepeatCount
}

// Run generates cfg.Users participants and cfg.Rounds rounds from an
// empty history. Each round is written to "<idx>.txt" in cfg.Dir before
// the next one is computed, starting at index 0.
func Run(ctx context.Context, cfg Config, log logger.Logger) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	if log == nil {
		log = logger.Get().Named("simulate")
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // simulation does not need crypto randomness
	}
	rng := rand.New(rand.NewPCG(seed, pcgStream)) //nolint:gosec // simulation does not need crypto randomness

	users, err := Names(rng, cfg.Users, cfg.NameLength)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %d users need at least %d characters", err, cfg.Users, len(suffix(cfg.Users-1)))
	}
	log.Info(ctx, "simulation started",
		logger.Int("users", cfg.Users),
		logger.Int("rounds", cfg.Rounds),
		logger.String("dir", cfg.Dir),
		logger.Any("seed", seed),
	)

	gen := pairing.New(pairing.WithRand(rng))
	history := pairing.NewHistory()
	repeats := pairing.NewRepeatCounter()
	report := Report{Seed: seed, Rounds: make([]RoundStat, 0, cfg.Rounds)}

	for idx := 0; idx < cfg.Rounds; idx++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		start := time.Now()
		round := gen.GenerateRound(users, history, repeats)
		if _, err := historyfile.WriteRoundFile(cfg.Dir, idx, round.Pairs); err != nil {
			return report, fmt.Errorf("write round %d: %w", idx, err)
		}
		metrics.RecordHistoryFile("write")
		elapsed := time.Since(start)
		metrics.RecordRound(round.Fresh(), len(round.Pairs)-round.Fresh(), round.Repeats(), round.Deferred,
			float64(elapsed.Microseconds())/1000)

		stat := RoundStat{
			Index:        idx,
			Pairs:        len(round.Pairs),
			Repeats:      round.Repeats(),
			Deferred:     round.Deferred,
			SmallestPool: round.SmallestPool,
			BiggestPool:  round.BiggestPool,
			Duration:     elapsed,
		}
		report.Rounds = append(report.Rounds, stat)
		log.Info(ctx, "round written",
			logger.Int("round", idx),
			logger.Int("deferred", stat.Deferred),
			logger.Int("smallest_pool", stat.SmallestPool),
			logger.Int("biggest_pool", stat.BiggestPool),
			logger.Int("repeats", stat.Repeats),
		)
	}

	report.RepeatTotal = repeats.Total()
	report.Top = repeats.Top(cfg.Top)
	log.Info(ctx, "simulation finished",
		logger.Int("rounds", len(report.Rounds)),
		logger.Int("repeat_total", report.RepeatTotal),
	)
	return report, nil
}

// ReplayReport describes a history directory.
type ReplayReport struct {
	Files        int
	Pairs        int
	Participants int
	// LargestHistory is the biggest number of distinct partners any
	// participant has met; Busiest is one participant that reaches it.
	LargestHistory int
	Busiest        string
}

// Replay loads every round file of dir into a fresh history.
func Replay(ctx context.Context, dir string) (ReplayReport, error) {
	rounds, err := historyfile.LoadDir(ctx, dir)
	if err != nil {
		return ReplayReport{}, err
	}
	metrics.RecordHistoryFile("load")

	history := pairing.NewHistory()
	report := ReplayReport{
		Files: len(rounds),
		Pairs: historyfile.Replay(rounds, history),
	}
	participants := history.Participants()
	report.Participants = len(participants)
	for _, id := range participants {
		if n := history.Len(id); n > report.LargestHistory {
			report.LargestHistory = n
			report.Busiest = id
		}
	}
	return report, nil
}
