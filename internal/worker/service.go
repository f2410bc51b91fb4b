// Package worker runs asynchronous jobs (timer firings, publish retries) on a
// bounded pool so the lifecycle controller never blocks its callers.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	rtsup "postdeck/internal/runtime/supervisor"
	logx "postdeck/pkg/logx"
)

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	q   chan queued
	sup *rtsup.Supervisor

	// pending counts tasks accepted but not finished; idle is closed when it
	// drops to zero.
	pmu     sync.Mutex
	pending int
	idle    chan struct{}

	hmu     sync.Mutex
	history []HistoryItem

	dropped atomic.Uint64
}

type queued struct {
	task       Task
	enqueuedAt time.Time
}

func New(cfg Config, log logx.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log.With(logx.String("comp", "worker"))}
}

// Start launches the workers. It is idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return
	}
	s.q = make(chan queued, s.cfg.QueueSize)
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	queue := s.q
	for i := 0; i < s.cfg.Workers; i++ {
		s.sup.GoRestart(fmt.Sprintf("worker.%d", i), func(c context.Context) error {
			s.loop(c, queue)
			return c.Err()
		}, 250*time.Millisecond, 5*time.Second)
	}
	s.log.Info("worker pool started", logx.Int("workers", s.cfg.Workers), logx.Int("queue", s.cfg.QueueSize))
}

// Stop cancels the workers. Queued tasks that did not start are dropped.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	q := s.q
	s.sup = nil
	s.q = nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	err := sup.Stop(ctx)
	for {
		select {
		case <-q:
			s.dropped.Add(1)
			s.track(-1)
			continue
		default:
		}
		break
	}
	s.log.Info("worker pool stopped")
	return err
}

// Submit enqueues t without blocking.
func (s *Service) Submit(t Task) error {
	if t.Run == nil {
		return fmt.Errorf("task Run is nil")
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("task Name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.q == nil {
		return ErrStopped
	}
	s.track(1)
	select {
	case s.q <- queued{task: t, enqueuedAt: time.Now()}:
		return nil
	default:
		s.track(-1)
		s.dropped.Add(1)
		s.log.Warn("task dropped: queue full", logx.String("task", t.Name))
		return ErrQueueFull
	}
}

// Go submits a function that cannot fail.
func (s *Service) Go(name string, fn func(ctx context.Context)) error {
	return s.Submit(Task{Name: name, Run: func(ctx context.Context) error {
		fn(ctx)
		return nil
	}})
}

// Drain waits until every accepted task has finished, including tasks
// submitted while waiting.
func (s *Service) Drain(ctx context.Context) error {
	for {
		s.pmu.Lock()
		if s.pending == 0 {
			s.pmu.Unlock()
			return nil
		}
		if s.idle == nil {
			s.idle = make(chan struct{})
		}
		ch := s.idle
		s.pmu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{Workers: s.cfg.Workers, Dropped: s.dropped.Load()}
	if s.q != nil {
		snap.QueueLen = len(s.q)
		snap.QueueCap = cap(s.q)
	}
	s.mu.Unlock()

	s.pmu.Lock()
	snap.Pending = s.pending
	s.pmu.Unlock()

	s.hmu.Lock()
	snap.History = append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return snap
}

func (s *Service) track(delta int) {
	s.pmu.Lock()
	s.pending += delta
	if s.pending <= 0 {
		s.pending = 0
		if s.idle != nil {
			close(s.idle)
			s.idle = nil
		}
	}
	s.pmu.Unlock()
}

func (s *Service) loop(ctx context.Context, queue <-chan queued) {
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-queue:
			s.run(ctx, it)
		}
	}
}

func (s *Service) run(ctx context.Context, it queued) {
	defer s.track(-1)

	started := time.Now()
	timeout := it.task.Timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("task panicked", logx.String("task", it.task.Name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return it.task.Run(runCtx)
	}()

	item := HistoryItem{
		Name:       it.task.Name,
		Started:    started,
		QueueDelay: started.Sub(it.enqueuedAt),
		Duration:   time.Since(started),
	}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("task failed", logx.String("task", it.task.Name), logx.Err(err))
	}
	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}
	s.hmu.Unlock()
}
