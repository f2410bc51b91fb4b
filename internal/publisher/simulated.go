package publisher

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// simulatedErrors are the failure texts the simulator picks from. They all
// classify as transient.
var simulatedErrors = []string{
	"network timeout while contacting platform",
	"connection reset by peer",
	"authentication token expired",
	"platform returned an unexpected response",
}

// Simulated succeeds with probability SuccessRate. It is a test double, not
// a production contract.
type Simulated struct {
	mu          sync.Mutex
	rng         *rand.Rand
	successRate float64
	latency     time.Duration
}

// NewSimulated builds a simulator. A zero seed uses the current time.
func NewSimulated(successRate float64, seed int64, latency time.Duration) *Simulated {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if successRate < 0 {
		successRate = 0
	}
	if successRate > 1 {
		successRate = 1
	}
	return &Simulated{rng: rand.New(rand.NewSource(seed)), successRate: successRate, latency: latency}
}

// SetSuccessRate changes the odds at runtime (config reload).
func (s *Simulated) SetSuccessRate(r float64) {
	s.mu.Lock()
	s.successRate = min(max(r, 0), 1)
	s.mu.Unlock()
}

func (s *Simulated) Publish(ctx context.Context, req Request) (Outcome, error) {
	if s.latency > 0 {
		t := time.NewTimer(s.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-t.C:
		}
	}

	s.mu.Lock()
	roll := s.rng.Float64()
	pick := s.rng.Intn(len(simulatedErrors))
	rate := s.successRate
	s.mu.Unlock()

	if roll < rate {
		return Outcome{OK: true, URL: PostURL(req.Platform, req.ID)}, nil
	}
	return Outcome{ErrorText: simulatedErrors[pick]}, nil
}
