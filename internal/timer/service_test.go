package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"postdeck/internal/worker"
	logx "postdeck/pkg/logx"
)

// inline runs submitted tasks synchronously.
type inline struct {
	mu    sync.Mutex
	names []string
}

func (d *inline) Submit(t worker.Task) error {
	d.mu.Lock()
	d.names = append(d.names, t.Name)
	d.mu.Unlock()
	return t.Run(context.Background())
}

var t0 = time.Date(2024, time.March, 10, 10, 0, 0, 0, time.UTC)

func TestArmFiresOnceAtDeadline(t *testing.T) {
	t.Parallel()

	clk := NewFakeClock(t0)
	d := &inline{}
	s := New(Config{Timezone: "UTC"}, clk, d, logx.Nop())

	fired := 0
	if _, err := s.Arm("ev-1", t0.Add(time.Hour), func(context.Context) { fired++ }); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if at, ok := s.Armed("ev-1"); !ok || !at.Equal(t0.Add(time.Hour)) {
		t.Fatalf("Armed = %v,%v", at, ok)
	}

	clk.Advance(59 * time.Minute)
	if fired != 0 {
		t.Fatalf("fired early")
	}
	clk.Advance(time.Minute)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	clk.Advance(time.Hour)
	if fired != 1 || s.Pending() != 0 {
		t.Fatalf("fired = %d pending = %d after deadline", fired, s.Pending())
	}
	if len(d.names) != 1 || d.names[0] != "timer.fire.ev-1" {
		t.Fatalf("dispatched = %v", d.names)
	}
}

func TestRearmInvalidatesPreviousTimer(t *testing.T) {
	t.Parallel()

	clk := NewFakeClock(t0)
	s := New(Config{}, clk, &inline{}, logx.Nop())

	var got []string
	g1, _ := s.Arm("ev-1", t0.Add(time.Minute), func(context.Context) { got = append(got, "old") })
	g2, _ := s.Arm("ev-1", t0.Add(2*time.Hour), func(context.Context) { got = append(got, "new") })
	if g2 <= g1 {
		t.Fatalf("generation did not increase: %d then %d", g1, g2)
	}

	clk.Advance(time.Hour)
	if len(got) != 0 {
		t.Fatalf("stale timer ran: %v", got)
	}
	clk.Advance(time.Hour)
	if len(got) != 1 || got[0] != "new" {
		t.Fatalf("got = %v, want [new]", got)
	}
}

func TestDisarmThenRearmDoesNotReviveStaleCallback(t *testing.T) {
	t.Parallel()

	clk := NewFakeClock(t0)
	s := New(Config{}, clk, &inline{}, logx.Nop())

	var ran []string
	_, _ = s.Arm("ev-1", t0.Add(time.Minute), func(context.Context) { ran = append(ran, "first") })

	// Capture the first callback as if the runtime timer had already been
	// popped before Stop took effect.
	s.mu.Lock()
	gen := s.ver["ev-1"]
	s.mu.Unlock()
	stale := func() { s.fire("ev-1", gen, func(context.Context) { ran = append(ran, "first") }) }

	if !s.Disarm("ev-1") {
		t.Fatalf("Disarm = false")
	}
	_, _ = s.Arm("ev-1", t0.Add(time.Hour), func(context.Context) { ran = append(ran, "second") })
	stale()
	if len(ran) != 0 {
		t.Fatalf("stale callback ran: %v", ran)
	}
	clk.Advance(time.Hour)
	if len(ran) != 1 || ran[0] != "second" {
		t.Fatalf("ran = %v", ran)
	}
}

func TestPastInstantFiresImmediately(t *testing.T) {
	t.Parallel()

	clk := NewFakeClock(t0)
	s := New(Config{}, clk, &inline{}, logx.Nop())
	fired := false
	_, _ = s.Arm("late", t0.Add(-time.Hour), func(context.Context) { fired = true })
	clk.Advance(0)
	if !fired {
		t.Fatalf("overdue timer did not fire")
	}
}

func TestStopCancelsTimers(t *testing.T) {
	t.Parallel()

	clk := NewFakeClock(t0)
	s := New(Config{Sweep: "off"}, clk, &inline{}, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fired := false
	_, _ = s.Arm("ev", t0.Add(time.Minute), func(context.Context) { fired = true })
	s.Stop(context.Background())
	clk.Advance(time.Hour)
	if fired || clk.Pending() != 0 {
		t.Fatalf("timer survived Stop (fired=%v pending=%d)", fired, clk.Pending())
	}
}

func TestValidateSweep(t *testing.T) {
	t.Parallel()

	for _, spec := range []string{"", "off", "@every 1m", "*/5 * * * *"} {
		if err := ValidateSweep(spec); err != nil {
			t.Fatalf("ValidateSweep(%q): %v", spec, err)
		}
	}
	if err := ValidateSweep("every minute"); err == nil {
		t.Fatalf("ValidateSweep(bad) = nil")
	}
}

func TestStartRejectsBadSweep(t *testing.T) {
	t.Parallel()

	s := New(Config{Sweep: "nope"}, NewFakeClock(t0), &inline{}, logx.Nop())
	s.SetSweep(func(context.Context) {})
	if err := s.Start(context.Background()); err == nil {
		s.Stop(context.Background())
		t.Fatalf("Start accepted a bad sweep spec")
	}
}
