// Package publisher defines the boundary to social platforms. Real platform
// clients live outside this repository; Simulated is the stand-in used for
// local runs and tests.
package publisher

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Request describes one post to publish.
type Request struct {
	ID          string
	Platform    string
	Content     string
	ScheduledAt time.Time
}

// Outcome is the platform's answer. A failed publish is an Outcome with
// OK=false and ErrorText set; the error return is reserved for the call
// itself not completing (context cancelled, throttle wait aborted).
type Outcome struct {
	OK        bool
	URL       string
	ErrorText string
}

type Publisher interface {
	Publish(ctx context.Context, req Request) (Outcome, error)
}

// Func adapts a function to Publisher.
type Func func(ctx context.Context, req Request) (Outcome, error)

func (f Func) Publish(ctx context.Context, req Request) (Outcome, error) { return f(ctx, req) }

// PostURL is the synthetic permalink for a published post.
func PostURL(platform, id string) string {
	return fmt.Sprintf("https://%s.com/post/%s", strings.ToLower(strings.TrimSpace(platform)), id)
}

// Succeed returns a publisher that always succeeds with a synthetic URL.
func Succeed() Publisher {
	return Func(func(_ context.Context, req Request) (Outcome, error) {
		return Outcome{OK: true, URL: PostURL(req.Platform, req.ID)}, nil
	})
}

// Fail returns a publisher that always fails with errText.
func Fail(errText string) Publisher {
	return Func(func(context.Context, Request) (Outcome, error) {
		return Outcome{ErrorText: errText}, nil
	})
}
