package publisher

import (
	"context"
	"testing"
	"time"

	"postdeck/internal/failure"
)

func TestPostURL(t *testing.T) {
	t.Parallel()
	if got := PostURL("LinkedIn", "abc"); got != "https://linkedin.com/post/abc" {
		t.Fatalf("PostURL = %q", got)
	}
}

func TestSimulatedIsDeterministicForSeed(t *testing.T) {
	t.Parallel()

	run := func() []bool {
		s := NewSimulated(0.5, 42, 0)
		out := make([]bool, 20)
		for i := range out {
			o, err := s.Publish(context.Background(), Request{ID: "x", Platform: "Twitter"})
			if err != nil {
				t.Fatalf("Publish: %v", err)
			}
			out[i] = o.OK
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("outcome %d differs across runs with same seed", i)
		}
	}
}

func TestSimulatedFailuresAreTransient(t *testing.T) {
	t.Parallel()

	s := NewSimulated(0, 7, 0)
	for i := 0; i < 20; i++ {
		o, _ := s.Publish(context.Background(), Request{ID: "x", Platform: "Twitter", Content: "hi"})
		if o.OK {
			t.Fatalf("success with rate 0")
		}
		if c := failure.Classify("Twitter", "hi", o.ErrorText); c.Type.IsContentIssue() {
			t.Fatalf("simulated error %q classified as %s", o.ErrorText, c.Type)
		}
	}
	s.SetSuccessRate(1)
	if o, _ := s.Publish(context.Background(), Request{ID: "y", Platform: "Bluesky"}); !o.OK || o.URL != "https://bluesky.com/post/y" {
		t.Fatalf("outcome = %+v", o)
	}
}

func TestSimulatedLatencyHonoursContext(t *testing.T) {
	t.Parallel()

	s := NewSimulated(1, 1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Publish(ctx, Request{}); err == nil {
		t.Fatalf("Publish ignored cancelled context")
	}
}

func TestThrottledWaitsPerPlatform(t *testing.T) {
	t.Parallel()

	th := NewThrottled(Succeed(), 0.001, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := th.Publish(ctx, Request{Platform: "Twitter"}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if _, err := th.Publish(ctx, Request{Platform: "Bluesky"}); err != nil {
		t.Fatalf("other platform throttled: %v", err)
	}
	if _, err := th.Publish(ctx, Request{Platform: "twitter"}); err == nil {
		t.Fatalf("second twitter publish not throttled")
	}

	th.SetRate(0, 1)
	if _, err := th.Publish(context.Background(), Request{Platform: "Twitter"}); err != nil {
		t.Fatalf("unthrottled publish: %v", err)
	}
}

func TestTemplateGenerator(t *testing.T) {
	t.Parallel()

	got, err := Template{Hashtags: []string{"#launch", "go"}}.Generate(context.Background(), "shipping the new calendar")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Shipping the new calendar. #launch #go" {
		t.Fatalf("Generate = %q", got)
	}
	if _, err := (Template{}).Generate(context.Background(), "  "); err == nil {
		t.Fatalf("empty prompt accepted")
	}
}
