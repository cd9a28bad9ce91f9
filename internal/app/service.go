// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/coffee/internal/adapters/historyfile"
	notifyqueue "github.com/okian/coffee/internal/adapters/mq/queue"
	workerpool "github.com/okian/coffee/internal/adapters/mq/worker"
	"github.com/okian/coffee/internal/adapters/repository"
	"github.com/okian/coffee/internal/adapters/storage"
	"github.com/okian/coffee/internal/domain/dedupe"
	"github.com/okian/coffee/internal/domain/meeting"
	"github.com/okian/coffee/internal/domain/pairing"
	"github.com/okian/coffee/pkg/logger"
	"github.com/okian/coffee/pkg/metrics"
)

const shutdownTimeout = 30 * time.Second

// Service owns the participant registry, the pairing history and the
// notification pipeline. All state is guarded by one mutex so that a
// round is committed to history, meeting book, round file and store
// before any other operation observes it.
type Service struct {
	mu sync.Mutex

	// Domain state
	book      *meeting.Book
	history   *pairing.History
	repeats   *pairing.RepeatCounter
	generator *pairing.Generator
	rounds    int

	// Adapters
	ranking  *repository.TreapStore
	store    storage.Store
	deduper  dedupe.Deduper
	queue    *notifyqueue.InMemoryQueue
	pool     *workerpool.Pool
	notifier workerpool.Notifier

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	notifyRate  float64
	notifyBurst int
	historyDir  string
	seed        uint64
	now         func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of notification workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the notification queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many notification ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithNotifyRate caps deliveries per second across all workers. A rate
// of zero disables the limit.
func WithNotifyRate(perSecond float64, burst int) Option {
	return func(s *Service) {
		s.notifyRate = perSecond
		s.notifyBurst = burst
	}
}

// WithHistoryDir writes one round file per generated round into dir and
// replays the directory when the store holds no state.
func WithHistoryDir(dir string) Option {
	return func(s *Service) {
		s.historyDir = dir
	}
}

// WithSeed makes pairing reproducible. Zero keeps the random source.
func WithSeed(seed uint64) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithStore sets the snapshot store. The service closes it on Stop.
func WithStore(store storage.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithNotifier sets how notifications are delivered.
func WithNotifier(n workerpool.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock overrides the clock used for registration times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
		dedupeSize:  100_000,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.book = meeting.NewBook(meeting.WithClock(s.now))
	s.history = pairing.NewHistory()
	s.repeats = pairing.NewRepeatCounter()
	if s.seed != 0 {
		s.generator = pairing.New(pairing.WithSeed(s.seed))
	} else {
		s.generator = pairing.New()
	}
	return s
}

// Start restores the state and starts the notification workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = storage.NewMemoryStore()
	}
	if s.notifier == nil {
		s.notifier = workerpool.NewLogNotifier(s.logger.Named("notifier"))
	}

	s.logger.Info(ctx, "starting coffee service...")

	if err := s.restoreLocked(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.ranking = repository.NewTreapStore(runCtx)
	for _, id := range s.book.Enabled() {
		_ = s.ranking.Set(ctx, id, s.book.Completed(id))
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = notifyqueue.NewInMemoryQueue(notifyqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.notifier,
		workerpool.WithRateLimit(s.notifyRate, s.notifyBurst),
		workerpool.WithPoolLogger(s.logger),
	)
	s.pool.Start(runCtx)

	s.updateGaugesLocked()
	s.started = true
	s.logger.Info(ctx, "coffee service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("participants", len(s.book.Enabled())),
		logger.Int("rounds", s.rounds),
	)
	return nil
}

// restoreLocked loads the last snapshot. Without one, the history is
// replayed from the round files, if any.
func (s *Service) restoreLocked(ctx context.Context) error {
	snap, err := s.store.Load(ctx)
	switch {
	case err == nil:
		s.book.Import(snap.Book)
		s.history = pairing.ImportHistory(snap.History)
		s.repeats = pairing.ImportRepeats(snap.Repeats)
		s.rounds = snap.Rounds
		s.logger.Info(ctx, "state restored from store", logger.Int("rounds", s.rounds))
		return nil
	case !errors.Is(err, storage.ErrNoSnapshot):
		return fmt.Errorf("restore state: %w", err)
	}

	if s.historyDir == "" {
		return nil
	}
	rounds, err := historyfile.LoadDir(ctx, s.historyDir)
	if err != nil {
		metrics.RecordErrorByComponent("historyfile", "load_failed")
		return fmt.Errorf("replay history: %w", err)
	}
	pairs := historyfile.Replay(rounds, s.history)
	for _, r := range rounds {
		s.rounds = max(s.rounds, r.Index)
	}
	metrics.RecordHistoryFile("load")
	s.logger.Info(ctx, "history replayed from round files",
		logger.String("dir", s.historyDir),
		logger.Int("files", len(rounds)),
		logger.Int("pairs", pairs),
	)
	return nil
}

// Stop drains pending notifications, saves the state and releases the
// store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping coffee service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "notification workers did not drain", logger.Error(err))
	}
	if s.cancel != nil {
		s.cancel()
	}
	_ = s.ranking.Close()

	if err := s.persistLocked(ctx); err != nil {
		s.logger.Error(ctx, "final save failed", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "close store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "coffee service stopped")
}

// persistLocked writes the current state to the store.
func (s *Service) persistLocked(ctx context.Context) error {
	snap := storage.Snapshot{
		Book:    s.book.Export(),
		History: s.history.Export(),
		Repeats: s.repeats.Export(),
		Rounds:  s.rounds,
	}
	if err := s.store.Save(ctx, snap); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// updateGaugesLocked refreshes the participant and meeting gauges.
func (s *Service) updateGaugesLocked() {
	enabled := s.book.Enabled()
	byStatus := make(map[string]int)
	for _, id := range enabled {
		for status, n := range s.book.Stats(id) {
			byStatus[string(status)] += n
		}
	}
	metrics.UpdateParticipants(len(enabled))
	metrics.UpdateMeetings(byStatus)
}

func (s *Service) requireStartedLocked() error {
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"rounds":      s.rounds,
	}

	if s.started {
		ctx := context.Background()
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["participants"] = len(s.book.Enabled())
		stats["rankedParticipants"] = s.ranking.Count(ctx)
		stats["repeats"] = s.repeats.Total()
		stats["dedupeEntries"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}

	return stats
}
