// Package meeting keeps the participant registry and the per-participant
// meeting views with their statuses.
package meeting

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/coffee/internal/domain/model"
	"github.com/okian/coffee/internal/domain/types"
)

// Book tracks participants and their meetings. Every meeting between A
// and B is stored twice: once in A's list and once in B's list.
type Book struct {
	mu           sync.RWMutex
	participants map[string]*model.Participant
	byUsername   map[string]string
	meetings     map[string][]*model.Meeting
	now          func() time.Time
}

// Option applies a configuration option to the Book.
type Option func(*Book)

// WithClock overrides the clock used for registration times.
func WithClock(now func() time.Time) Option {
	return func(b *Book) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBook returns an empty book.
func NewBook(opts ...Option) *Book {
	b := &Book{
		participants: make(map[string]*model.Participant),
		byUsername:   make(map[string]string),
		meetings:     make(map[string][]*model.Meeting),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register enables a participant, creating it if needed. A previously
// chosen language survives re-registration.
func (b *Book) Register(p model.Participant) (model.Participant, error) {
	if p.ID == "" {
		return model.Participant{}, ErrEmptyID
	}
	if !validName(p.ID) || !validName(p.Username) {
		return model.Participant{}, ErrInvalidID
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cur, ok := b.participants[p.ID]
	if !ok {
		cur = &model.Participant{ID: p.ID}
		b.participants[p.ID] = cur
	}
	if cur.Username != "" && cur.Username != p.Username {
		delete(b.byUsername, cur.Username)
	}
	lang := p.LangCode
	if lang == "" {
		lang = cur.LangCode
	}
	if lang == "" {
		lang = model.DefaultLangCode
	}
	cur.Username = p.Username
	cur.ChatID = p.ChatID
	if cur.ChatID == "" {
		cur.ChatID = p.ID
	}
	cur.LangCode = lang
	cur.Enabled = true
	if cur.RegisteredAt.IsZero() {
		cur.RegisteredAt = b.now().UTC()
	}
	if cur.Username != "" {
		b.byUsername[cur.Username] = cur.ID
	}
	return *cur, nil
}

// validName reports whether s can be written to a round file and read
// back unchanged.
func validName(s string) bool {
	return !strings.ContainsAny(s, ",\r\n") && strings.TrimSpace(s) == s
}

// Unregister disables a participant. It reports false for unknown ids.
func (b *Book) Unregister(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur, ok := b.participants[id]
	if !ok {
		return false
	}
	if cur.Username != "" {
		delete(b.byUsername, cur.Username)
	}
	cur.Disable()
	return true
}

// Participant returns a copy of the participant with id.
func (b *Book) Participant(id string) (model.Participant, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.participants[id]
	if !ok {
		return model.Participant{}, false
	}
	return *p, true
}

// Resolve finds a participant by id or, failing that, by username.
// A leading "@" is ignored.
func (b *Book) Resolve(ref string) (model.Participant, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(ref) > 0 && ref[0] == '@' {
		ref = ref[1:]
	}
	if p, ok := b.participants[ref]; ok {
		return *p, nil
	}
	if id, ok := b.byUsername[ref]; ok {
		return *b.participants[id], nil
	}
	return model.Participant{}, fmt.Errorf("%w: %s", ErrUnknownParticipant, ref)
}

// Enabled returns the ids of enabled participants, sorted.
func (b *Book) Enabled() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.participants))
	for id, p := range b.participants {
		if p.Enabled {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Add stores a meeting between left and right with the given status.
func (b *Book) Add(left, right string, status model.MeetingStatus, round int) error {
	if left == right {
		return ErrSelfMeeting
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range []string{left, right} {
		if _, ok := b.participants[id]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
		}
	}
	b.meetings[left] = append(b.meetings[left], &model.Meeting{Partner: right, Status: status, Round: round})
	b.meetings[right] = append(b.meetings[right], &model.Meeting{Partner: left, Status: status, Round: round})
	return nil
}

// UpdateStatus sets status on the pending meetings between left and
// right, in both directions, and returns how many views changed.
func (b *Book) UpdateStatus(left, right string, status model.MeetingStatus) (int, error) {
	switch status {
	case model.StatusShowed, model.StatusAsked, model.StatusYet, model.StatusDone, model.StatusNope:
	default:
		return 0, fmt.Errorf("%w: %s", ErrStatusNotSettable, status)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	pending := model.PendingStatuses()
	changed := 0
	for _, side := range [][2]string{{left, right}, {right, left}} {
		for _, m := range b.meetings[side[0]] {
			if m.Partner == side[1] && pending.Has(m.Status) {
				m.Status = status
				changed++
			}
		}
	}
	return changed, nil
}

// Meetings returns id's meetings whose status is in statuses. Disabled
// or unknown participants have none.
func (b *Book) Meetings(id string, statuses model.StatusSet) []model.Meeting {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.meetingsLocked(id, statuses)
}

func (b *Book) meetingsLocked(id string, statuses model.StatusSet) []model.Meeting {
	p, ok := b.participants[id]
	if !ok || !p.Enabled {
		return nil
	}
	var out []model.Meeting
	for _, m := range b.meetings[id] {
		if statuses.Has(m.Status) {
			out = append(out, *m)
		}
	}
	return out
}

// Remove drops every meeting view of id. Partners keep their side.
func (b *Book) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.meetings, id)
}

// Stats counts id's meetings per status.
func (b *Book) Stats(id string) map[model.MeetingStatus]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[model.MeetingStatus]int)
	for _, m := range b.meetingsLocked(id, model.AllStatuses()) {
		out[m.Status]++
	}
	return out
}

// Completed returns how many of id's meetings are done.
func (b *Book) Completed(id string) int {
	return b.Stats(id)[model.StatusDone]
}

// Announce moves every created meeting to showed and returns the pairs
// that changed, each reported once with the lower id first.
func (b *Book) Announce() [][2]string {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[[2]string]struct{})
	var out [][2]string
	for id, list := range b.meetings {
		p, ok := b.participants[id]
		if !ok || !p.Enabled {
			continue
		}
		for _, m := range list {
			if m.Status != model.StatusCreated {
				continue
			}
			m.Status = model.StatusShowed
			key := [2]string{id, m.Partner}
			if key[1] < key[0] {
				key[0], key[1] = key[1], key[0]
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, key)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// WithPending returns enabled participants that have pending meetings.
func (b *Book) WithPending() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pending := model.PendingStatuses()
	var out []string
	for id := range b.meetings {
		if len(b.meetingsLocked(id, pending)) > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// RequestMore opens an on-demand meeting request for id and tries to
// match it with another open request. It returns the partner when a
// match was made. A second request while one is open is a no-op.
func (b *Book) RequestMore(id string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.participants[id]
	if !ok || !p.Enabled {
		return "", false, fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
	}
	if b.openRequestLocked(id) != nil {
		return "", false, nil
	}
	mine := &model.Meeting{Partner: id, Status: model.StatusMore}
	b.meetings[id] = append(b.meetings[id], mine)

	candidates := make([]string, 0)
	for other := range b.meetings {
		if other == id || b.openRequestLocked(other) == nil {
			continue
		}
		if op, ok := b.participants[other]; !ok || !op.Enabled {
			continue
		}
		if b.hasPendingLocked(id, other) {
			continue
		}
		candidates = append(candidates, other)
	}
	if len(candidates) == 0 {
		return "", false, nil
	}
	sort.Strings(candidates)
	other := candidates[0]
	theirs := b.openRequestLocked(other)

	mine.Partner, mine.Status = other, model.StatusShowed
	theirs.Partner, theirs.Status = id, model.StatusShowed
	return other, true, nil
}

func (b *Book) openRequestLocked(id string) *model.Meeting {
	for _, m := range b.meetings[id] {
		if m.Status == model.StatusMore {
			return m
		}
	}
	return nil
}

func (b *Book) hasPendingLocked(a, c string) bool {
	pending := model.PendingStatuses()
	for _, m := range b.meetings[a] {
		if m.Partner == c && pending.Has(m.Status) {
			return true
		}
	}
	return false
}

// Summary aggregates meetings of enabled participants. Rounds is left
// for the caller to fill.
func (b *Book) Summary() types.Summary {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var s types.Summary
	all := model.AllStatuses()
	views := 0
	for id, p := range b.participants {
		if !p.Enabled {
			continue
		}
		s.Members++
		list := b.meetingsLocked(id, all)
		if len(list) > 0 {
			s.WithMeetings++
		}
		views += len(list)
		for _, m := range list {
			switch m.Status {
			case model.StatusDone:
				s.Done++
			case model.StatusNope:
				s.Denied++
			default:
				s.NotYet++
			}
		}
	}
	s.Meetings = views / 2
	return s
}

// Snapshot is the exportable state of a Book.
type Snapshot struct {
	Participants []model.Participant        `json:"participants"`
	Meetings     map[string][]model.Meeting `json:"meetings"`
}

// Export copies the book state.
func (b *Book) Export() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Snapshot{
		Participants: make([]model.Participant, 0, len(b.participants)),
		Meetings:     make(map[string][]model.Meeting, len(b.meetings)),
	}
	for _, p := range b.participants {
		s.Participants = append(s.Participants, *p)
	}
	sort.Slice(s.Participants, func(i, j int) bool { return s.Participants[i].ID < s.Participants[j].ID })
	for id, list := range b.meetings {
		cp := make([]model.Meeting, len(list))
		for i, m := range list {
			cp[i] = *m
		}
		s.Meetings[id] = cp
	}
	return s
}

// Import replaces the book state with s.
func (b *Book) Import(s Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.participants = make(map[string]*model.Participant, len(s.Participants))
	b.byUsername = make(map[string]string)
	b.meetings = make(map[string][]*model.Meeting, len(s.Meetings))
	for i := range s.Participants {
		p := s.Participants[i]
		b.participants[p.ID] = &p
		if p.Enabled && p.Username != "" {
			b.byUsername[p.Username] = p.ID
		}
	}
	for id, list := range s.Meetings {
		views := make([]*model.Meeting, len(list))
		for i := range list {
			m := list[i]
			views[i] = &m
		}
		b.meetings[id] = views
	}
}
