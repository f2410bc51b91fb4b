package calendar

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

var testNow = time.Date(2024, time.March, 10, 10, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	n := 0
	return NewStore(NewPlacement(func() time.Time { return testNow }, time.UTC), func() string {
		n++
		return fmt.Sprintf("ev-%d", n)
	})
}

func TestKeyForAndParse(t *testing.T) {
	t.Parallel()

	if got := KeyFor(testNow); got != "2024-2-10" {
		t.Fatalf("KeyFor = %q, want 2024-2-10", got)
	}
	if got := KeyFor(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)); got != "2025-0-1" {
		t.Fatalf("KeyFor(jan) = %q, want 2025-0-1", got)
	}

	cases := []struct {
		key DateKey
		ok  bool
	}{
		{"2024-2-10", true},
		{"2024-11-31", true},
		{"2024-1-29", true},
		{"2023-1-29", false},
		{"2024-12-1", false},
		{"2024-2", false},
		{"2024-a-1", false},
		{"2024-0-0", false},
		{"2024-02-10", false},
		{"+2024-2-10", false},
		{" 2024-2-10", false},
		{"2024-2-10 ", false},
		{"02024-2-10", false},
	}
	for _, tc := range cases {
		_, _, _, err := ParseDateKey(tc.key)
		if (err == nil) != tc.ok {
			t.Fatalf("ParseDateKey(%q) err = %v, want ok=%v", tc.key, err, tc.ok)
		}
		if err != nil && !IsValidation(err) {
			t.Fatalf("ParseDateKey(%q) err = %T, want *ValidationError", tc.key, err)
		}
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     string
		h, m   int
		wantOK bool
	}{
		{"09:00", 9, 0, true},
		{"9:05", 9, 5, true},
		{"23:59", 23, 59, true},
		{"24:00", 0, 0, false},
		{"12:60", 0, 0, false},
		{"1200", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		h, m, err := ParseClock(tc.in)
		if (err == nil) != tc.wantOK {
			t.Fatalf("ParseClock(%q) err = %v, want ok=%v", tc.in, err, tc.wantOK)
		}
		if tc.wantOK && (h != tc.h || m != tc.m) {
			t.Fatalf("ParseClock(%q) = %d:%d, want %d:%d", tc.in, h, m, tc.h, tc.m)
		}
	}
}

func TestSnapDeterminism(t *testing.T) {
	t.Parallel()

	const h = 960.0
	seen := map[Slot]bool{}
	for y := 0.0; y < h; y += 0.25 {
		s := Snap(y, h)
		if s.Minutes()%SlotMinutes != 0 || s.Minutes() < 0 || s.Minutes() > 23*60+45 {
			t.Fatalf("Snap(%v) = %+v, not on the grid", y, s)
		}
		seen[s] = true
		if again := Snap(s.Offset(h), h); again != s {
			t.Fatalf("Snap(Offset(%+v)) = %+v, not idempotent", s, again)
		}
	}
	if len(seen) != SlotsPerDay {
		t.Fatalf("distinct slots = %d, want %d", len(seen), SlotsPerDay)
	}
}

func TestSnapValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		y, h float64
		want string
	}{
		{0, 1440, "00:00"},
		{540, 1440, "09:00"},
		{547, 1440, "09:00"},
		{548, 1440, "09:15"},
		{1439, 1440, "23:45"},
		{-5, 1440, "00:00"},
		{5000, 1440, "23:45"},
	}
	for _, tc := range cases {
		if got := Snap(tc.y, tc.h).Clock(); got != tc.want {
			t.Fatalf("Snap(%v, %v) = %s, want %s", tc.y, tc.h, got, tc.want)
		}
	}
}

func TestAddDefaulting(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	today, err := s.Add("2024-2-10", "Twitter", "")
	if err != nil {
		t.Fatalf("Add(today): %v", err)
	}
	if today.Time != "11:00" || today.NoteType != NoteYellow || today.Status != StatusScheduled {
		t.Fatalf("today event = %+v, want yellow at 11:00", today)
	}

	future, err := s.Add("2024-2-12", "LinkedIn", "")
	if err != nil {
		t.Fatalf("Add(future): %v", err)
	}
	if future.Time != "09:00" {
		t.Fatalf("future time = %s, want 09:00", future.Time)
	}
}

func TestWithDefaultHour(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 10, 10, 30, 0, 0, time.UTC)
	p := NewPlacement(func() time.Time { return now }, time.UTC)
	for _, tc := range []struct {
		hour int
		want string
	}{
		{7, "07:00"},
		{0, "00:00"},
		{24, "09:00"},
		{-1, "09:00"},
	} {
		got, err := p.WithDefaultHour(tc.hour).DefaultClock("2024-2-12")
		if err != nil {
			t.Fatalf("DefaultClock(hour %d): %v", tc.hour, err)
		}
		if got != tc.want {
			t.Fatalf("DefaultClock(hour %d) = %s, want %s", tc.hour, got, tc.want)
		}
	}
	if got, _ := p.WithDefaultHour(7).DefaultClock("2024-2-10"); got != "11:00" {
		t.Fatalf("today DefaultClock = %s, want 11:00", got)
	}
}

func TestAddLateEveningHasNoSlot(t *testing.T) {
	t.Parallel()

	late := time.Date(2024, time.March, 10, 23, 10, 0, 0, time.UTC)
	s := NewStore(NewPlacement(func() time.Time { return late }, time.UTC), func() string { return "x" })
	if _, err := s.Add("2024-2-10", "Twitter", ""); !IsValidation(err) {
		t.Fatalf("Add at 23:10 err = %v, want ValidationError", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}

func TestPastTimeRejection(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if _, err := s.Add("2024-2-10", "Twitter", "10:00"); !IsValidation(err) {
		t.Fatalf("Add(past) err = %v, want ValidationError", err)
	}
	if _, err := s.Add("2024-2-9", "Twitter", ""); !IsValidation(err) {
		t.Fatalf("Add(yesterday) err = %v, want ValidationError", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d after rejected adds", s.Len())
	}
	if _, err := s.Add("2024-2-10", "Twitter", "10:31"); err != nil {
		t.Fatalf("Add(next minute): %v", err)
	}

	ev, err := s.Add("2024-2-11", "Twitter", "08:00")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	before := s.Snapshot()
	if _, err := s.Move(ev.ID, "2024-2-11", "2024-2-10", "07:00"); !IsValidation(err) {
		t.Fatalf("Move(past) err = %v, want ValidationError", err)
	}
	if !reflect.DeepEqual(before, s.Snapshot()) {
		t.Fatalf("store changed after rejected move")
	}
}

func TestMoveIntegrity(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	a, _ := s.Add("2024-2-11", "Twitter", "12:00")
	b, _ := s.Add("2024-2-11", "Bluesky", "08:00")
	_, _ = s.Add("2024-2-12", "Threads", "10:00")

	moved, err := s.Move(a.ID, "2024-2-11", "2024-2-12", "")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if moved.ID != a.ID || moved.Time != "12:00" {
		t.Fatalf("moved = %+v, want same id keeping 12:00", moved)
	}
	for _, ev := range s.Bucket("2024-2-11") {
		if ev.ID == a.ID {
			t.Fatalf("source bucket still holds %s", a.ID)
		}
	}
	count := 0
	for _, ev := range s.Bucket("2024-2-12") {
		if ev.ID == a.ID {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("target copies = %d, want 1", count)
	}
	if key, _, ok := s.Find(a.ID); !ok || key != "2024-2-12" {
		t.Fatalf("Find = %q,%v", key, ok)
	}

	if _, err := s.Move(b.ID, "2024-2-12", "2024-2-13", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Move(wrong source) err = %v, want ErrNotFound", err)
	}
}

func TestMoveWithinBucketResorts(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	a, _ := s.Add("2024-2-11", "Twitter", "08:00")
	b, _ := s.Add("2024-2-11", "Twitter", "09:00")
	if _, err := s.Move(a.ID, "2024-2-11", "2024-2-11", "10:15"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got := s.Bucket("2024-2-11")
	if len(got) != 2 || got[0].ID != b.ID || got[1].ID != a.ID || got[1].Time != "10:15" {
		t.Fatalf("bucket = %+v", got)
	}
}

func TestResolveIsForwardOnly(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ev, _ := s.Add("2024-2-11", "Twitter", "08:00")
	green, err := s.Resolve(ev.ID, NoteGreen, "https://twitter.com/post/1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if green.Status != StatusPosted || green.URL == "" {
		t.Fatalf("green = %+v", green)
	}
	if _, err := s.Resolve(ev.ID, NoteRed, ""); !IsValidation(err) {
		t.Fatalf("Resolve(green->red) err = %v, want ValidationError", err)
	}
	if _, err := s.Move(ev.ID, "2024-2-11", "2024-2-12", ""); !IsValidation(err) {
		t.Fatalf("Move(green) err = %v, want ValidationError", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ev, _ := s.Add("2024-2-11", "Twitter", "08:00")
	if !s.Delete("2024-2-11", ev.ID) {
		t.Fatalf("Delete = false, want true")
	}
	if s.Delete("2024-2-11", ev.ID) {
		t.Fatalf("second Delete = true, want false")
	}
	if _, _, ok := s.Find(ev.ID); ok {
		t.Fatalf("deleted event still found")
	}
	if len(s.Snapshot()) != 0 {
		t.Fatalf("empty bucket kept")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, _ = s.Add("2024-2-11", "Twitter", "08:00")
	_, _ = s.Add("2024-2-11", "Bluesky", "07:45")
	ev, _ := s.Add("2024-2-12", "Threads", "")
	_ = s.SetContent(ev.ID, "hello")
	_, _ = s.Resolve(ev.ID, NoteRed, "")

	snap := s.Snapshot()
	r := newTestStore(t)
	if skipped := r.Restore(snap); skipped != 0 {
		t.Fatalf("skipped = %d", skipped)
	}
	if !reflect.DeepEqual(snap, r.Snapshot()) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", r.Snapshot(), snap)
	}
	if len(r.Pending()) != 2 {
		t.Fatalf("Pending = %d, want 2", len(r.Pending()))
	}
}

func TestResolveDrop(t *testing.T) {
	t.Parallel()

	p := NewPlacement(func() time.Time { return testNow }, time.UTC)
	y := 600.0

	cases := []struct {
		name      string
		drop      Drop
		wantClock string
		wantErr   bool
	}{
		{"place month cell today", Drop{Kind: DropPlace, Platform: "Twitter", Target: "2024-2-10"}, "11:00", false},
		{"place month cell future", Drop{Kind: DropPlace, Platform: "Twitter", Target: "2024-2-20"}, "09:00", false},
		{"place snapped", Drop{Kind: DropPlace, Platform: "Twitter", Target: "2024-2-20", Y: &y, Height: 960}, "15:00", false},
		{"place explicit", Drop{Kind: DropPlace, Platform: "Twitter", Target: "2024-2-20", Time: "7:30"}, "07:30", false},
		{"move keeps time", Drop{Kind: DropMove, EventID: "e", Source: "2024-2-11", Target: "2024-2-20"}, "", false},
		{"place needs platform", Drop{Kind: DropPlace, Target: "2024-2-20"}, "", true},
		{"move needs source", Drop{Kind: DropMove, EventID: "e", Target: "2024-2-20"}, "", true},
		{"bad kind", Drop{Kind: "copy", Target: "2024-2-20"}, "", true},
		{"zero height", Drop{Kind: DropPlace, Platform: "X", Target: "2024-2-20", Y: &y}, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, clock, err := p.Resolve(tc.drop)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Resolve err = %v, wantErr %v", err, tc.wantErr)
			}
			if clock != tc.wantClock {
				t.Fatalf("clock = %q, want %q", clock, tc.wantClock)
			}
		})
	}
}

func TestPastTimeRejectsElapsedSeconds(t *testing.T) {
	t.Parallel()

	now := testNow.Add(45 * time.Second)
	s := NewStore(NewPlacement(func() time.Time { return now }, time.UTC), func() string { return "ev-1" })
	if _, err := s.Add("2024-2-10", "Twitter", "10:30"); !IsValidation(err) {
		t.Fatalf("Add(10:30 at 10:30:45) err = %v, want ValidationError", err)
	}
	if _, err := s.Add("2024-2-10", "Twitter", "10:31"); err != nil {
		t.Fatalf("Add(10:31 at 10:30:45): %v", err)
	}
}

func TestNonCanonicalKeysRejected(t *testing.T) {
	t.Parallel()

	early := time.Date(2024, time.March, 10, 7, 30, 0, 0, time.UTC)
	s := NewStore(NewPlacement(func() time.Time { return early }, time.UTC), func() string { return "ev-1" })

	ev, err := s.Add("2024-2-10", "Twitter", "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if ev.Time != "08:00" {
		t.Fatalf("default time = %q, want 08:00", ev.Time)
	}
	for _, key := range []DateKey{"2024-02-10", " 2024-2-10", "+2024-2-10"} {
		if _, err := s.Add(key, "Twitter", ""); !IsValidation(err) {
			t.Fatalf("Add(%q) err = %v, want ValidationError", key, err)
		}
		if _, _, err := s.Placement().Resolve(Drop{Kind: DropPlace, Platform: "Twitter", Target: key}); !IsValidation(err) {
			t.Fatalf("Resolve(%q) err = %v, want ValidationError", key, err)
		}
		if _, err := s.Move(ev.ID, "2024-2-10", key, "12:00"); !IsValidation(err) {
			t.Fatalf("Move(to %q) err = %v, want ValidationError", key, err)
		}
	}
	if got := len(s.Snapshot()); got != 1 {
		t.Fatalf("buckets = %d, want 1", got)
	}
}

func TestPendingOrderedByDay(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	for _, tc := range []struct {
		key   DateKey
		clock string
	}{
		{"2024-10-1", "09:00"},
		{"2024-2-11", "12:00"},
		{"2024-2-11", "08:00"},
		{"2025-0-1", "09:00"},
	} {
		if _, err := s.Add(tc.key, "Twitter", tc.clock); err != nil {
			t.Fatalf("Add(%s %s): %v", tc.key, tc.clock, err)
		}
	}
	var got []string
	for _, l := range s.Pending() {
		got = append(got, string(l.Key)+" "+l.Event.Time)
	}
	want := []string{"2024-2-11 08:00", "2024-2-11 12:00", "2024-10-1 09:00", "2025-0-1 09:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Pending = %v, want %v", got, want)
	}
}
