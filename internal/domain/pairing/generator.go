package pairing

import (
	"math/rand/v2"
	"sort"
)

// pcgStream is the second PCG word mixed into explicit seeds.
const pcgStream = 0x9e3779b97f4a7c15

// Round is the outcome of one GenerateRound call.
type Round struct {
	// Pairs in the order they were formed: fresh pairs first, then fallback.
	Pairs []Pair `json:"pairs"`
	// Leftover holds the single unpaired participant of an odd round.
	Leftover []string `json:"leftover,omitempty"`
	// Deferred counts participants that found no fresh partner, plus the
	// odd one out of the preference phase.
	Deferred int `json:"deferred"`
	// SmallestPool and BiggestPool bound the available-partner pools at
	// the start of the round.
	SmallestPool int `json:"smallest_pool"`
	BiggestPool  int `json:"biggest_pool"`
}

// LeftoverCount returns the number of unpaired participants (0 or 1).
func (r Round) LeftoverCount() int { return len(r.Leftover) }

// Fresh returns how many pairs came from the preference phase.
func (r Round) Fresh() int {
	n := 0
	for _, p := range r.Pairs {
		if !p.Fallback {
			n++
		}
	}
	return n
}

// Repeats returns how many pairs joined participants who had met before.
func (r Round) Repeats() int {
	n := 0
	for _, p := range r.Pairs {
		if p.Repeat {
			n++
		}
	}
	return n
}

// Generator produces rounds. The zero value is not usable; call New.
// A Generator is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
}

// New creates a generator seeded from the runtime's random source.
func New(opts ...Option) *Generator {
	g := &Generator{
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // pairing does not need crypto randomness
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateRound pairs the participants for one round, updates history
// with every pair formed and counts forced repeats in repeats (which may
// be nil). Duplicate ids in participants are collapsed. The call cannot
// fail: an empty or singleton population yields an empty round.
func (g *Generator) GenerateRound(participants []string, history *History, repeats *RepeatCounter) Round {
	users := unique(participants)
	var round Round
	if len(users) == 0 {
		return round
	}

	pools := availablePools(users, history)
	g.rng.Shuffle(len(users), func(i, j int) { users[i], users[j] = users[j], users[i] })
	// Biggest pools go first so that small pools are not starved at the end.
	sort.SliceStable(users, func(i, j int) bool { return pools[users[i]] > pools[users[j]] })
	round.BiggestPool = pools[users[0]]
	round.SmallestPool = pools[users[len(users)-1]]

	remaining := newIndexedSet(users)
	var deferred []string
	choices := make([]string, 0, len(users))

	for _, left := range users {
		if remaining.Len() <= 1 {
			break
		}
		if !remaining.Has(left) {
			continue
		}
		remaining.Remove(left)

		choices = choices[:0]
		for _, candidate := range remaining.items {
			if !history.Met(left, candidate) && !history.Met(candidate, left) {
				choices = append(choices, candidate)
			}
		}
		if len(choices) == 0 {
			deferred = append(deferred, left)
			continue
		}

		right := choices[g.rng.IntN(len(choices))]
		remaining.Remove(right)
		history.Record(left, right)
		round.Pairs = append(round.Pairs, Pair{Left: left, Right: right})
	}

	deferred = append(deferred, remaining.items...)
	round.Deferred = len(deferred)
	g.rng.Shuffle(len(deferred), func(i, j int) { deferred[i], deferred[j] = deferred[j], deferred[i] })

	for i := 0; i+1 < len(deferred); i += 2 {
		left, right := deferred[i], deferred[i+1]
		pair := Pair{Left: left, Right: right, Fallback: true}
		if history.Met(left, right) {
			pair.Repeat = true
			if repeats != nil {
				repeats.Inc(left, right)
			}
		}
		if history.Met(right, left) {
			pair.Repeat = true
			if repeats != nil {
				repeats.Inc(right, left)
			}
		}
		history.Record(left, right)
		round.Pairs = append(round.Pairs, pair)
	}
	if len(deferred)%2 == 1 {
		round.Leftover = []string{deferred[len(deferred)-1]}
	}
	return round
}

// unique copies ids, dropping duplicates while keeping first-seen order.
func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// availablePools counts, for every participant, the members of the
// population it has not met yet (itself excluded).
func availablePools(users []string, history *History) map[string]int {
	pools := make(map[string]int, len(users))
	inPopulation := make(map[string]struct{}, len(users))
	for _, u := range users {
		inPopulation[u] = struct{}{}
	}
	for _, u := range users {
		met := 0
		for p := range history.partners[u] {
			if _, ok := inPopulation[p]; ok && p != u {
				met++
			}
		}
		pools[u] = len(users) - 1 - met
	}
	return pools
}

// indexedSet is a set with O(1) removal; items order changes on removal.
type indexedSet struct {
	items []string
	pos   map[string]int
}

func newIndexedSet(ids []string) *indexedSet {
	s := &indexedSet{
		items: make([]string, len(ids)),
		pos:   make(map[string]int, len(ids)),
	}
	copy(s.items, ids)
	for i, id := range s.items {
		s.pos[id] = i
	}
	return s
}

func (s *indexedSet) Len() int { return len(s.items) }

func (s *indexedSet) Has(id string) bool {
	_, ok := s.pos[id]
	return ok
}

func (s *indexedSet) Remove(id string) {
	i, ok := s.pos[id]
	if !ok {
		return
	}
	last := len(s.items) - 1
	s.items[i] = s.items[last]
	s.pos[s.items[i]] = i
	s.items = s.items[:last]
	delete(s.pos, id)
}
