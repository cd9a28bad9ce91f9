package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/coffee/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: completed DESC, then participantID ASC (deterministic).
// "less" means ranks earlier, so in-order traversal yields the
// leaderboard from best to worst. Ties share a rank and the next distinct
// count takes the following rank (dense ranking).

const defaultMetricsUpdateInterval = 5 * time.Second

// treap node
type node struct {
	id    string
	score int
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) should appear before (bScore, bID).
func less(aScore int, aID string, bScore int, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, fresh *node) *node {
	if n == nil {
		return fresh
	}
	if less(fresh.score, fresh.id, n.score, n.id) {
		n.left = insert(n.left, fresh)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, fresh)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score int) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, Entry{ParticipantID: n.id, Completed: n.score})
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// TreapStore keeps participants ordered by completed meetings.
type TreapStore struct {
	mu   sync.RWMutex
	root *node
	byID map[string]int
	// distinct counts how many participants share each score; it turns a
	// score into a dense rank without walking the tree.
	distinct map[int]int
	rng      *rand.Rand

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTreapStore constructs a treap store and starts its metrics updater,
// which stops when ctx is done or Close is called.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		byID:                  make(map[string]int),
		distinct:              make(map[int]int),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // treap priorities do not need crypto randomness
	}

	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background metrics updater.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Set implements Store.Set in O(log n) expected time.
func (s *TreapStore) Set(ctx context.Context, participantID string, completed int) error {
	if completed < 0 {
		return ErrNegativeScore
	}
	start := time.Now()
	defer func() {
		metrics.RecordRankingUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byID[participantID]; ok {
		if old == completed {
			return nil
		}
		s.removeLocked(participantID, old)
	}
	s.byID[participantID] = completed
	s.distinct[completed]++
	s.root = insert(s.root, &node{id: participantID, score: completed, prio: s.rng.Uint64(), size: 1})
	return nil
}

// Remove implements Store.Remove.
func (s *TreapStore) Remove(ctx context.Context, participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byID[participantID]; ok {
		s.removeLocked(participantID, old)
		delete(s.byID, participantID)
	}
}

func (s *TreapStore) removeLocked(id string, score int) {
	s.root = deleteNode(s.root, id, score)
	s.distinct[score]--
	if s.distinct[score] == 0 {
		delete(s.distinct, score)
	}
}

// Rank returns the current rank for a participant.
func (s *TreapStore) Rank(ctx context.Context, participantID string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	score, ok := s.byID[participantID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	return Entry{Rank: s.denseRankLocked(score), ParticipantID: participantID, Completed: score}, nil
}

// denseRankLocked returns 1 + the number of distinct scores above score.
func (s *TreapStore) denseRankLocked(score int) int {
	rank := 1
	for other := range s.distinct {
		if other > score {
			rank++
		}
	}
	return rank
}

// TopN returns the top N entries ordered by completed meetings desc.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRankingQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &out)
	assignRanksWithTies(out)
	return out, nil
}

// Count returns the number of ranked participants.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// startMetricsUpdater starts a background goroutine that updates ranking metrics.
func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateRankingRecordsTotal(s.Count(ctx))
			}
		}
	}()
}

// assignRanksWithTies assigns dense ranks to entries that start at the
// top of the leaderboard.
func assignRanksWithTies(entries []Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Completed != entries[i-1].Completed {
			rank++
		}
		entries[i].Rank = rank
	}
}
