// Package pairing builds random-coffee rounds: disjoint pairs of
// participants that prefer partners they have never met.
package pairing

import "sort"

// Pair is one meeting formed in a round.
type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
	// Fallback is set when the pair was forced in the fallback phase.
	Fallback bool `json:"fallback,omitempty"`
	// Repeat is set when the two participants had already met.
	Repeat bool `json:"repeat,omitempty"`
}

// History maps every participant to the set of partners already met.
// It only grows. Not safe for concurrent use; callers serialize rounds.
type History struct {
	partners map[string]map[string]struct{}
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{partners: make(map[string]map[string]struct{})}
}

// Record stores a meeting between a and b in both directions.
// Recording the same pair again is a no-op; a == b is ignored.
func (h *History) Record(a, b string) {
	if a == b {
		return
	}
	h.add(a, b)
	h.add(b, a)
}

func (h *History) add(from, to string) {
	set, ok := h.partners[from]
	if !ok {
		set = make(map[string]struct{})
		h.partners[from] = set
	}
	set[to] = struct{}{}
}

// Met reports whether b is in a's history.
func (h *History) Met(a, b string) bool {
	_, ok := h.partners[a][b]
	return ok
}

// Len returns the number of partners a has met.
func (h *History) Len(a string) int {
	return len(h.partners[a])
}

// Partners returns a's partners sorted ascending.
func (h *History) Partners(a string) []string {
	set := h.partners[a]
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Participants returns every id that has at least one partner, sorted.
func (h *History) Participants() []string {
	out := make([]string, 0, len(h.partners))
	for id, set := range h.partners {
		if len(set) > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy.
func (h *History) Clone() *History {
	c := &History{partners: make(map[string]map[string]struct{}, len(h.partners))}
	for id, set := range h.partners {
		cp := make(map[string]struct{}, len(set))
		for p := range set {
			cp[p] = struct{}{}
		}
		c.partners[id] = cp
	}
	return c
}

// Export returns the history as plain sorted slices, suitable for encoding.
func (h *History) Export() map[string][]string {
	out := make(map[string][]string, len(h.partners))
	for id := range h.partners {
		out[id] = h.Partners(id)
	}
	return out
}

// ImportHistory rebuilds a history from Export output. Entries are
// recorded symmetrically, so a one-sided input is repaired.
func ImportHistory(in map[string][]string) *History {
	h := NewHistory()
	for id, partners := range in {
		for _, p := range partners {
			h.Record(id, p)
		}
	}
	return h
}
