package app

import (
	"strings"
	"time"

	"postdeck/internal/api"
	"postdeck/internal/config"
	"postdeck/internal/notifier"
	"postdeck/internal/publisher"
	"postdeck/internal/storage"
	"postdeck/internal/timer"
	"postdeck/internal/worker"
	logx "postdeck/pkg/logx"
)

const defaultSuccessRate = 0.85

func mapLoggingConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Alerts: logx.AlertConfig{
			Enabled:    l.Alerts.Enabled,
			MinLevel:   l.Alerts.MinLevel,
			RatePerSec: l.Alerts.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config, sec config.Secrets) (storage.Config, error) {
	sc := cfg.Storage
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:       strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:         strings.TrimSpace(sc.Path),
		DSN:          sec.DatabaseURL,
		BusyTimeout:  busy,
		CompactEvery: sc.CompactEvery,
		CacheSizeMax: sc.CacheSizeMax,
	}, nil
}

func mapTimerConfig(cfg *config.Config) (timer.Config, error) {
	jt, err := config.ParseDurationField("scheduler.job_timeout", cfg.Scheduler.JobTimeout)
	if err != nil {
		return timer.Config{}, err
	}
	return timer.Config{
		Timezone:   cfg.Scheduler.Timezone,
		Sweep:      cfg.Scheduler.Sweep,
		JobTimeout: jt,
	}, nil
}

func mapWorkerConfig(cfg *config.Config) (worker.Config, error) {
	w := cfg.Worker
	dt, err := config.ParseDurationOrDefault("worker.default_timeout", w.DefaultTimeout, 30*time.Second)
	if err != nil {
		return worker.Config{}, err
	}
	return worker.Config{
		Workers:        w.Workers,
		QueueSize:      w.QueueSize,
		DefaultTimeout: dt,
		HistorySize:    w.HistorySize,
	}, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.Notifier
	base, err := config.ParseDurationField("notifier.retry_base", n.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	maxDelay, err := config.ParseDurationField("notifier.retry_max_delay", n.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	window, err := config.ParseDurationOrDefault("notifier.dedup_window", n.DedupWindow, time.Minute)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:         n.Enabled,
		Driver:          n.Driver,
		Channel:         n.Channel,
		ChatID:          n.ChatID,
		ThreadID:        n.ThreadID,
		Workers:         n.Workers,
		QueueSize:       n.QueueSize,
		RatePerSec:      n.RatePerSec,
		RetryMax:        n.RetryMax,
		RetryBase:       base,
		RetryMaxDelay:   maxDelay,
		DedupWindow:     window,
		DedupMaxEntries: n.DedupMaxEntries,
	}, nil
}

func mapAPIConfig(cfg *config.Config, sec config.Secrets) (api.Config, error) {
	rt, err := config.ParseDurationOrDefault("api.read_timeout", cfg.API.ReadTimeout, 15*time.Second)
	if err != nil {
		return api.Config{}, err
	}
	wt, err := config.ParseDurationOrDefault("api.write_timeout", cfg.API.WriteTimeout, 30*time.Second)
	if err != nil {
		return api.Config{}, err
	}
	return api.Config{
		Addr:         strings.TrimSpace(cfg.API.Addr),
		Token:        sec.APIToken,
		ReadTimeout:  rt,
		WriteTimeout: wt,
		IdleTimeout:  time.Minute,
		Pprof:        cfg.API.Pprof,
	}, nil
}

// publishers holds the stand-in publisher chain so reloads can retune it.
type publishers struct {
	sim      *publisher.Simulated
	throttle *publisher.Throttled
}

func successRate(pc config.PublisherConfig) float64 {
	if pc.SuccessRate == nil {
		return defaultSuccessRate
	}
	return *pc.SuccessRate
}

func buildPublisher(cfg *config.Config) (publishers, error) {
	pc := cfg.Publisher
	latency, err := config.ParseDurationField("publisher.latency", pc.Latency)
	if err != nil {
		return publishers{}, err
	}
	var out publishers
	var next publisher.Publisher
	switch strings.ToLower(strings.TrimSpace(pc.Mode)) {
	case "succeed":
		next = publisher.Succeed()
	case "fail":
		text := pc.FailText
		if strings.TrimSpace(text) == "" {
			text = "Network timeout while contacting the platform"
		}
		next = publisher.Fail(text)
	default:
		out.sim = publisher.NewSimulated(successRate(pc), pc.Seed, latency)
		next = out.sim
	}
	out.throttle = publisher.NewThrottled(next, pc.RatePerSec, pc.Burst)
	return out, nil
}

// apply retunes the live chain. Mode changes need a restart.
func (p publishers) apply(pc config.PublisherConfig) {
	if p.sim != nil {
		p.sim.SetSuccessRate(successRate(pc))
	}
	p.throttle.SetRate(pc.RatePerSec, pc.Burst)
}
