// Package timer fires one-shot callbacks keyed by calendar event id.
//
// Every Arm bumps a generation for the id; a callback whose generation is no
// longer current is ignored, so re-arming (move) or disarming (delete) can
// never let a stale timer run. Fired jobs are handed to the worker pool.
package timer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"postdeck/internal/worker"
	logx "postdeck/pkg/logx"
)

const DefaultSweep = "@every 1m"

// Dispatcher runs fired jobs asynchronously.
type Dispatcher interface {
	Submit(t worker.Task) error
}

type Config struct {
	Timezone string
	// Sweep is a cron spec for the re-arm sweep. Empty uses DefaultSweep,
	// "off" disables it.
	Sweep string
	// JobTimeout bounds a single fired job. 0 means no timeout.
	JobTimeout time.Duration
}

type Service struct {
	mu       sync.Mutex
	cfg      Config
	log      logx.Logger
	clock    Clock
	dispatch Dispatcher
	loc      *time.Location
	parser   cron.Parser

	c     *cron.Cron
	sweep func(ctx context.Context)

	seq    uint64
	ver    map[string]uint64
	timers map[string]Stopper
	at     map[string]time.Time
}

func New(cfg Config, clock Clock, dispatch Dispatcher, log logx.Logger) *Service {
	if clock == nil {
		clock = RealClock{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:      cfg,
		log:      log.With(logx.String("comp", "timer")),
		clock:    clock,
		dispatch: dispatch,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		ver:      map[string]uint64{},
		timers:   map[string]Stopper{},
		at:       map[string]time.Time{},
	}
	s.loc = s.loadLocation()
	return s
}

// Location is the zone used for schedule arithmetic.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Now returns the clock's current time in the service location.
func (s *Service) Now() time.Time { return s.clock.Now().In(s.Location()) }

// Arm (re)registers the one-shot timer for id and returns its generation.
// Any previous timer for id is cancelled. Past instants fire immediately.
func (s *Service) Arm(id string, at time.Time, job func(ctx context.Context)) (uint64, error) {
	if strings.TrimSpace(id) == "" {
		return 0, errors.New("timer id required")
	}
	if job == nil {
		return 0, errors.New("timer job required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		_ = t.Stop()
	}
	s.seq++
	gen := s.seq
	s.ver[id] = gen
	s.at[id] = at

	delay := at.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.timers[id] = s.clock.AfterFunc(delay, func() { s.fire(id, gen, job) })
	s.log.Debug("timer armed", logx.String("event_id", id), logx.Time("at", at), logx.Uint64("gen", gen))
	return gen, nil
}

// Disarm cancels the pending timer for id. It reports whether one existed.
func (s *Service) Disarm(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disarmLocked(id)
}

func (s *Service) disarmLocked(id string) bool {
	t, ok := s.timers[id]
	if ok {
		_ = t.Stop()
	}
	delete(s.timers, id)
	delete(s.ver, id)
	delete(s.at, id)
	return ok
}

// Armed reports the instant a pending timer for id will fire.
func (s *Service) Armed(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.at[id]
	return at, ok
}

// Pending is the number of armed timers.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Service) fire(id string, gen uint64, job func(ctx context.Context)) {
	s.mu.Lock()
	if s.ver[id] != gen {
		s.mu.Unlock()
		s.log.Debug("stale timer ignored", logx.String("event_id", id), logx.Uint64("gen", gen))
		return
	}
	delete(s.timers, id)
	delete(s.ver, id)
	delete(s.at, id)
	d := s.dispatch
	timeout := s.cfg.JobTimeout
	s.mu.Unlock()

	if d == nil {
		go job(context.Background())
		return
	}
	err := d.Submit(worker.Task{Name: "timer.fire." + id, Timeout: timeout, Run: func(ctx context.Context) error {
		job(ctx)
		return nil
	}})
	if err != nil {
		// The event stays pending; the sweep re-arms it.
		s.log.Warn("timer dispatch failed", logx.String("event_id", id), logx.Err(err))
	}
}

// SetSweep installs the periodic re-arm callback run by Start.
func (s *Service) SetSweep(fn func(ctx context.Context)) {
	s.mu.Lock()
	s.sweep = fn
	s.mu.Unlock()
}

// Start launches the cron sweep. Timers armed with Arm run regardless.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	spec := strings.TrimSpace(s.cfg.Sweep)
	if spec == "" {
		spec = DefaultSweep
	}
	if strings.EqualFold(spec, "off") || s.sweep == nil {
		s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Bool("sweep", false))
		return nil
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return err
	}
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	sweep := s.sweep
	if _, err := c.AddFunc(spec, func() { s.runSweep(ctx, sweep) }); err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.String("sweep", spec))
	return nil
}

func (s *Service) runSweep(ctx context.Context, sweep func(ctx context.Context)) {
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	d := s.dispatch
	s.mu.Unlock()
	if d == nil {
		sweep(ctx)
		return
	}
	if err := d.Submit(worker.Task{Name: "timer.sweep", Run: func(c context.Context) error {
		sweep(c)
		return nil
	}}); err != nil {
		s.log.Warn("sweep dispatch failed", logx.Err(err))
	}
}

// Stop halts the sweep and cancels every pending timer.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c := s.c
	s.c = nil
	for id := range s.timers {
		s.disarmLocked(id)
	}
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// ValidateSweep checks a sweep spec without starting anything.
func ValidateSweep(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, "off") {
		return nil
	}
	p := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	_, err := p.Parse(spec)
	return err
}

func (s *Service) loadLocation() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
