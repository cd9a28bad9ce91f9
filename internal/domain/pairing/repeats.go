package pairing

import "sort"

// Direction is an ordered pair of participants.
type Direction struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RepeatCount is one row of the repeats report.
type RepeatCount struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// RepeatCounter counts forced repeats per direction. (A,B) and (B,A)
// are tracked independently. It is a report only and never feeds back
// into pairing decisions.
type RepeatCounter struct {
	counts map[Direction]int
	total  int
}

// NewRepeatCounter returns an empty counter.
func NewRepeatCounter() *RepeatCounter {
	return &RepeatCounter{counts: make(map[Direction]int)}
}

// Inc adds one repeat for from -> to.
func (c *RepeatCounter) Inc(from, to string) {
	c.counts[Direction{From: from, To: to}]++
	c.total++
}

// Count returns the repeats recorded for from -> to.
func (c *RepeatCounter) Count(from, to string) int {
	return c.counts[Direction{From: from, To: to}]
}

// Total returns the sum of all counts.
func (c *RepeatCounter) Total() int {
	return c.total
}

// Len returns the number of distinct directions with a repeat.
func (c *RepeatCounter) Len() int {
	return len(c.counts)
}

// Top returns the k most repeated directions, highest first.
// Ties are ordered by From, then To. k <= 0 returns every entry.
func (c *RepeatCounter) Top(k int) []RepeatCount {
	rows := make([]RepeatCount, 0, len(c.counts))
	for d, n := range c.counts {
		rows = append(rows, RepeatCount{From: d.From, To: d.To, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		if rows[i].From != rows[j].From {
			return rows[i].From < rows[j].From
		}
		return rows[i].To < rows[j].To
	})
	if k > 0 && k < len(rows) {
		rows = rows[:k]
	}
	return rows
}

// Export returns every row in Top order, for persistence.
func (c *RepeatCounter) Export() []RepeatCount {
	return c.Top(0)
}

// ImportRepeats rebuilds a counter from Export output.
func ImportRepeats(rows []RepeatCount) *RepeatCounter {
	c := NewRepeatCounter()
	for _, r := range rows {
		if r.Count <= 0 {
			continue
		}
		c.counts[Direction{From: r.From, To: r.To}] += r.Count
		c.total += r.Count
	}
	return c
}
