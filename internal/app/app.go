package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"postdeck/internal/api"
	"postdeck/internal/config"
	"postdeck/internal/eventbus"
	"postdeck/internal/lifecycle"
	"postdeck/internal/notifier"
	"postdeck/internal/publisher"
	rtsup "postdeck/internal/runtime/supervisor"
	"postdeck/internal/storage"
	"postdeck/internal/timer"
	"postdeck/internal/worker"
	logx "postdeck/pkg/logx"
	"postdeck/pkg/systemd"
)

type App struct {
	cfgm *config.Manager
	sec  config.Secrets
	sup  *rtsup.Supervisor

	base logx.Logger
	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store storage.Store
	lock  *flock.Flock

	pool   *worker.Service
	timers *timer.Service
	pubs   publishers
	ctl    *lifecycle.Controller
	notif  *notifier.Service
	api    *api.Server

	watchCancel context.CancelFunc
}

// NewApp loads config and secrets, takes the instance lock and wires every
// component. Nothing runs until Start.
func NewApp(ctx context.Context, cfgPath string) (*App, error) {
	if err := config.LoadDotEnv(".env", filepath.Join(filepath.Dir(cfgPath), ".env")); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	sec := config.LoadSecrets(nil)
	if err := config.Validate(cfg, sec); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logs, base := logx.New(mapLoggingConfig(cfg))
	a := &App{
		cfgm: cfgm,
		sec:  sec,
		base: base,
		log:  base.With(logx.String("comp", "app")),
		logs: logs,
		bus:  eventbus.New(),
	}
	if err := a.wire(ctx, cfg); err != nil {
		a.release()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, cfg *config.Config) error {
	sc, err := mapStorageConfig(cfg, a.sec)
	if err != nil {
		return err
	}
	if a.lock, err = acquireLock(lockPath(sc)); err != nil {
		return err
	}
	if a.store, err = storage.Open(ctx, sc, a.base); err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if a.store == nil {
		a.log.Warn("storage disabled; state is kept in memory only")
	} else {
		a.log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	wcfg, err := mapWorkerConfig(cfg)
	if err != nil {
		return err
	}
	a.pool = worker.New(wcfg, a.base)

	tcfg, err := mapTimerConfig(cfg)
	if err != nil {
		return err
	}
	a.timers = timer.New(tcfg, timer.RealClock{}, a.pool, a.base)

	if a.pubs, err = buildPublisher(cfg); err != nil {
		return err
	}
	pt, err := config.ParseDurationField("storage.persist_timeout", cfg.Storage.PersistTimeout)
	if err != nil {
		return err
	}
	a.ctl, err = lifecycle.New(lifecycle.Options{
		Store:          a.store,
		Publisher:      a.pubs.throttle,
		Generator:      publisher.Template{Hashtags: cfg.Publisher.Hashtags},
		Timers:         a.timers,
		Runner:         a.pool,
		Bus:            a.bus,
		Log:            a.base,
		Location:       a.timers.Location(),
		DefaultHour:    cfg.Calendar.DefaultHour,
		PersistTimeout: pt,
	})
	if err != nil {
		return err
	}
	ctl := a.ctl
	a.timers.SetSweep(func(ctx context.Context) { ctl.Sweep(ctx) })

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return err
	}
	sender, err := a.newSender(ncfg)
	if err != nil {
		return err
	}
	a.notif = notifier.New(ncfg, sender, a.base, a.bus)
	a.logs.SetAlerter(a.notif)

	acfg, err := mapAPIConfig(cfg, a.sec)
	if err != nil {
		return err
	}
	a.api = api.New(acfg, a.ctl, a.base)
	return nil
}

func (a *App) newSender(ncfg notifier.Config) (notifier.Sender, error) {
	if !ncfg.Enabled {
		return notifier.NewLogSender(a.base), nil
	}
	return notifier.NewSender(ncfg, notifier.Secrets{
		SlackToken:    a.sec.SlackToken,
		TelegramToken: a.sec.TelegramToken,
	}, a.base)
}

func (a *App) Controller() *lifecycle.Controller { return a.ctl }

// Done is closed when the app supervisor stops (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start loads persisted state and runs every component. Background work
// outlives ctx cancellation until Stop so shutdown can drain it.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(context.WithoutCancel(ctx), rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	run := a.sup.Context()

	a.cfgm.SetLogger(a.base.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg, a.sec)
	})

	a.pool.Start(run)
	if err := a.ctl.Load(ctx); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if err := a.timers.Start(run); err != nil {
		return err
	}
	if a.notif.Enabled() {
		a.notif.Start(run)
	}
	a.startWatch(a.cfgm.Get().Notifier.NotifyPublished)
	a.api.Start(run)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) { a.reloadLoop(c, sub) })
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go("systemd.watchdog", systemd.Watchdog)

	if _, err := systemd.Ready(); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	}
	_, _ = systemd.Status(fmt.Sprintf("serving; %d timers armed", a.timers.Pending()))
	a.log.Info("app started", logx.Int("timers", a.timers.Pending()), logx.Bool("api", a.api.Enabled()))
	return nil
}

// startWatch (re)starts the bus-to-notifier bridge.
func (a *App) startWatch(includePublished bool) {
	if a.watchCancel != nil {
		a.watchCancel()
	}
	ctx, cancel := context.WithCancel(a.sup.Context())
	a.watchCancel = cancel
	a.sup.Go0("notifier.watch", func(context.Context) {
		a.notif.Watch(ctx, a.bus, includePublished)
	})
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(ctx, last, next)
			last = next
		}
	}
}

// applyConfig applies the sections that reload live.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	_, _ = systemd.Reloading()
	defer func() { _, _ = systemd.Ready() }()

	if rr := config.RestartRequired(sections); len(rr) > 0 {
		a.log.Warn("config changes need a restart to take effect", logx.String("sections", strings.Join(rr, ",")))
	}
	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLoggingConfig(next))
		case "publisher":
			a.pubs.apply(next.Publisher)
			if prev.Publisher.Mode != next.Publisher.Mode || !slices.Equal(prev.Publisher.Hashtags, next.Publisher.Hashtags) {
				a.log.Warn("publisher mode and hashtags need a restart to take effect")
			}
		case "notifier":
			a.applyNotifier(ctx, prev, next)
		}
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) applyNotifier(ctx context.Context, prev, next *config.Config) {
	ncfg, err := mapNotifierConfig(next)
	if err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
		return
	}
	sender, err := a.newSender(ncfg)
	if err != nil {
		a.log.Warn("notifier sender rejected; keeping previous", logx.Err(err))
		return
	}
	was := a.notif.Enabled()
	a.notif.SetSender(sender)
	a.notif.Apply(ncfg)
	switch {
	case was && !ncfg.Enabled:
		a.log.Info("notifier disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.notif.Stop(stopCtx)
		cancel()
	case !was && ncfg.Enabled:
		a.log.Info("notifier enabled via config")
		a.notif.Start(a.sup.Context())
	}
	if prev.Notifier.NotifyPublished != next.Notifier.NotifyPublished {
		a.startWatch(next.Notifier.NotifyPublished)
	}
}

// Stop shuts components down in dependency order, API intake first and
// storage last.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.release()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()

	var errs []error
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("api", 3*time.Second, func(c context.Context) error { a.api.Stop(c); return nil })
	step("timers", 2*time.Second, func(c context.Context) error { a.timers.Stop(c); return nil })
	step("drain", 5*time.Second, a.ctl.Drain)
	step("workers", 2*time.Second, a.pool.Stop)
	step("persist", 3*time.Second, a.ctl.Close)
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	a.sup.Cancel()
	step("supervisor", 2*time.Second, func(c context.Context) error {
		if err := a.sup.Wait(c); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	a.log.Info("stopped")
	a.release()
	return errors.Join(errs...)
}

// release closes storage, drops the instance lock and flushes logs.
func (a *App) release() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
		a.store = nil
	}
	if a.lock != nil {
		_ = a.lock.Unlock()
		a.lock = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
		a.logs = nil
	}
}
