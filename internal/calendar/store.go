package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Store buckets events by day and tracks which bucket each id lives in.
type Store struct {
	placement Placement
	newID     func() string

	buckets map[DateKey][]Event
	index   map[string]DateKey
}

func NewStore(p Placement, newID func() string) *Store {
	return &Store{
		placement: p,
		newID:     newID,
		buckets:   make(map[DateKey][]Event),
		index:     make(map[string]DateKey),
	}
}

// Placement returns the engine used for defaulting and past-time checks.
func (s *Store) Placement() Placement { return s.placement }

// Add creates a yellow event. An empty clock applies the defaulting rule.
func (s *Store) Add(key DateKey, platform, clock string) (Event, error) {
	platform = strings.TrimSpace(platform)
	if platform == "" {
		return Event{}, invalid("platform", "is required")
	}
	clock, err := s.targetClock(key, clock)
	if err != nil {
		return Event{}, err
	}
	ev := Event{
		ID:       s.newID(),
		Platform: platform,
		Time:     clock,
		NoteType: NoteYellow,
		Status:   StatusScheduled,
	}
	s.insert(key, ev)
	return ev, nil
}

// Insert stores an event as-is without the past-time check. It is used for
// already-resolved events (immediate publishes) and reloads.
func (s *Store) Insert(key DateKey, ev Event) error {
	if strings.TrimSpace(ev.ID) == "" {
		return invalid("id", "is required")
	}
	if _, dup := s.index[ev.ID]; dup {
		return invalid("id", "event %s already exists", ev.ID)
	}
	if _, _, _, err := ParseDateKey(key); err != nil {
		return err
	}
	if ev.Time != "" {
		t, err := normalizeClock(ev.Time)
		if err != nil {
			return err
		}
		ev.Time = t
	}
	s.insert(key, ev)
	return nil
}

// Move relocates a yellow event. An empty clock keeps the current time (or
// applies the defaulting rule if the event has none). On error nothing moves.
func (s *Store) Move(id string, from, to DateKey, clock string) (Event, error) {
	cur, ok := s.index[id]
	if !ok || cur != from {
		return Event{}, fmt.Errorf("move %s from %s: %w", id, from, ErrNotFound)
	}
	i := s.position(from, id)
	ev := s.buckets[from][i]
	if ev.NoteType != NoteYellow {
		return Event{}, invalid("event", "%s events cannot be moved", ev.NoteType)
	}
	if strings.TrimSpace(clock) == "" {
		clock = ev.Time
	}
	clock, err := s.targetClock(to, clock)
	if err != nil {
		return Event{}, err
	}

	s.remove(from, i)
	ev.Time = clock
	s.insert(to, ev)
	return ev, nil
}

// Delete removes an event from key's bucket. Absent ids are a no-op.
func (s *Store) Delete(key DateKey, id string) bool {
	if s.index[id] != key {
		return false
	}
	i := s.position(key, id)
	if i < 0 {
		return false
	}
	s.remove(key, i)
	return true
}

// SetContent replaces the content of an event in place.
func (s *Store) SetContent(id, content string) error {
	return s.update(id, func(ev *Event) error {
		ev.Content = content
		return nil
	})
}

// Resolve transitions a yellow event to green (posted, with url) or red.
func (s *Store) Resolve(id string, note NoteType, url string) (Event, error) {
	var out Event
	err := s.update(id, func(ev *Event) error {
		if ev.NoteType != NoteYellow {
			return invalid("event", "%s is already %s", id, ev.NoteType)
		}
		switch note {
		case NoteGreen:
			ev.Status = StatusPosted
			ev.URL = url
		case NoteRed:
			ev.Status = StatusFailed
		default:
			return invalid("noteType", "cannot resolve to %q", note)
		}
		ev.NoteType = note
		out = *ev
		return nil
	})
	return out, err
}

// Find locates an event by identity across all buckets.
func (s *Store) Find(id string) (DateKey, Event, bool) {
	key, ok := s.index[id]
	if !ok {
		return "", Event{}, false
	}
	i := s.position(key, id)
	if i < 0 {
		return "", Event{}, false
	}
	return key, s.buckets[key][i], true
}

// Bucket returns a copy of the events of one day in time order.
func (s *Store) Bucket(key DateKey) []Event {
	return append([]Event(nil), s.buckets[key]...)
}

// Len reports the total number of events.
func (s *Store) Len() int { return len(s.index) }

// Pending lists yellow events ordered by day then time.
func (s *Store) Pending() []Located {
	out := make([]Located, 0)
	for key, evs := range s.buckets {
		for _, ev := range evs {
			if ev.Pending() {
				out = append(out, Located{Key: key, Event: ev})
			}
		}
	}
	days := make(map[DateKey]time.Time, len(s.buckets))
	for key := range s.buckets {
		days[key], _ = key.Day(time.UTC)
	}
	sort.Slice(out, func(i, j int) bool {
		if di, dj := days[out[i].Key], days[out[j].Key]; !di.Equal(dj) {
			return di.Before(dj)
		}
		if out[i].Event.Time != out[j].Event.Time {
			return out[i].Event.Time < out[j].Event.Time
		}
		return out[i].Event.ID < out[j].Event.ID
	})
	return out
}

// Snapshot deep-copies all buckets.
func (s *Store) Snapshot() map[DateKey][]Event {
	out := make(map[DateKey][]Event, len(s.buckets))
	for k, evs := range s.buckets {
		out[k] = append([]Event(nil), evs...)
	}
	return out
}

// Restore replaces the store contents. Events with a bad key, bad time or a
// duplicate id are skipped; the number skipped is returned.
func (s *Store) Restore(m map[DateKey][]Event) int {
	s.buckets = make(map[DateKey][]Event, len(m))
	s.index = make(map[string]DateKey)
	skipped := 0
	keys := make([]DateKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		for _, ev := range m[k] {
			if err := s.Insert(k, ev); err != nil {
				skipped++
			}
		}
	}
	return skipped
}

func (s *Store) targetClock(key DateKey, clock string) (string, error) {
	if strings.TrimSpace(clock) == "" {
		c, err := s.placement.DefaultClock(key)
		if err != nil {
			return "", err
		}
		clock = c
	}
	clock, err := normalizeClock(clock)
	if err != nil {
		return "", err
	}
	if _, err := s.placement.Check(key, clock); err != nil {
		return "", err
	}
	return clock, nil
}

func (s *Store) update(id string, fn func(*Event) error) error {
	key, ok := s.index[id]
	if !ok {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	i := s.position(key, id)
	if i < 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	ev := s.buckets[key][i]
	if err := fn(&ev); err != nil {
		return err
	}
	s.buckets[key][i] = ev
	return nil
}

func (s *Store) position(key DateKey, id string) int {
	for i, ev := range s.buckets[key] {
		if ev.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) insert(key DateKey, ev Event) {
	evs := append(s.buckets[key], ev)
	sort.SliceStable(evs, func(i, j int) bool {
		if evs[i].Time != evs[j].Time {
			return evs[i].Time < evs[j].Time
		}
		return evs[i].ID < evs[j].ID
	})
	s.buckets[key] = evs
	s.index[ev.ID] = key
}

func (s *Store) remove(key DateKey, i int) {
	evs := s.buckets[key]
	id := evs[i].ID
	evs = append(evs[:i:i], evs[i+1:]...)
	if len(evs) == 0 {
		delete(s.buckets, key)
	} else {
		s.buckets[key] = evs
	}
	delete(s.index, id)
}
