package publisher

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Throttled limits publish calls per platform.
type Throttled struct {
	next Publisher

	mu       sync.Mutex
	perSec   float64
	burst    int
	limiters map[string]*rate.Limiter
}

// NewThrottled wraps next. perSec <= 0 disables throttling.
func NewThrottled(next Publisher, perSec float64, burst int) *Throttled {
	if burst <= 0 {
		burst = 1
	}
	return &Throttled{next: next, perSec: perSec, burst: burst, limiters: map[string]*rate.Limiter{}}
}

// SetRate updates every platform limiter in place.
func (t *Throttled) SetRate(perSec float64, burst int) {
	if burst <= 0 {
		burst = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.perSec, t.burst = perSec, burst
	for _, l := range t.limiters {
		l.SetLimit(t.limit())
		l.SetBurst(burst)
	}
}

func (t *Throttled) limit() rate.Limit {
	if t.perSec <= 0 {
		return rate.Inf
	}
	return rate.Limit(t.perSec)
}

func (t *Throttled) limiter(platform string) *rate.Limiter {
	key := strings.ToLower(strings.TrimSpace(platform))
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[key]
	if !ok {
		l = rate.NewLimiter(t.limit(), t.burst)
		t.limiters[key] = l
	}
	return l
}

func (t *Throttled) Publish(ctx context.Context, req Request) (Outcome, error) {
	if err := t.limiter(req.Platform).Wait(ctx); err != nil {
		return Outcome{}, err
	}
	return t.next.Publish(ctx, req)
}
