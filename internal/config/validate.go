package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	storageDrivers  = []string{"", "none", "memory", "file", "sqlite", "diskv", "postgres"}
	notifierDrivers = []string{"", "log", "slack", "telegram"}
	publisherModes  = []string{"", "simulated", "succeed", "fail"}
	loggingLevels   = []string{"", "trace", "debug", "info", "warn", "warning", "error"}
	cronSpecParser  = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// Validate checks a parsed config. Secrets are checked against the drivers
// that need them.
func Validate(cfg *Config, sec Secrets) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	check(oneOf("logging.level", cfg.Logging.Level, loggingLevels))
	check(oneOf("logging.alerts.min_level", cfg.Logging.Alerts.MinLevel, loggingLevels))

	check(oneOf("storage.driver", cfg.Storage.Driver, storageDrivers))
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "file", "sqlite", "diskv":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for driver %q", cfg.Storage.Driver))
		}
	case "postgres":
		if sec.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("%s is required for storage.driver postgres", EnvDatabaseURL))
		}
	}
	_, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	check(err)
	_, err = ParseDurationField("storage.persist_timeout", cfg.Storage.PersistTimeout)
	check(err)

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		}
	}
	if spec := strings.TrimSpace(cfg.Scheduler.Sweep); spec != "" && !strings.EqualFold(spec, "off") {
		if _, err := cronSpecParser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.sweep: %w", err))
		}
	}
	_, err = ParseDurationField("scheduler.job_timeout", cfg.Scheduler.JobTimeout)
	check(err)
	_, err = ParseDurationField("worker.default_timeout", cfg.Worker.DefaultTimeout)
	check(err)

	check(oneOf("publisher.mode", cfg.Publisher.Mode, publisherModes))
	if r := cfg.Publisher.SuccessRate; r != nil && (*r < 0 || *r > 1) {
		errs = append(errs, fmt.Errorf("publisher.success_rate must be within [0,1], got %v", *r))
	}
	_, err = ParseDurationField("publisher.latency", cfg.Publisher.Latency)
	check(err)
	if cfg.Publisher.RatePerSec < 0 {
		errs = append(errs, errors.New("publisher.rate_per_sec must be >= 0"))
	}

	n := cfg.Notifier
	check(oneOf("notifier.driver", n.Driver, notifierDrivers))
	if n.Enabled {
		switch strings.ToLower(strings.TrimSpace(n.Driver)) {
		case "slack":
			if sec.SlackToken == "" {
				errs = append(errs, fmt.Errorf("%s is required for notifier.driver slack", EnvSlackToken))
			}
			if strings.TrimSpace(n.Channel) == "" {
				errs = append(errs, errors.New("notifier.channel is required for notifier.driver slack"))
			}
		case "telegram":
			if sec.TelegramToken == "" {
				errs = append(errs, fmt.Errorf("%s is required for notifier.driver telegram", EnvTelegramToken))
			}
			if n.ChatID == 0 {
				errs = append(errs, errors.New("notifier.chat_id is required for notifier.driver telegram"))
			}
		}
	}
	for path, raw := range map[string]string{
		"notifier.retry_base":      n.RetryBase,
		"notifier.retry_max_delay": n.RetryMaxDelay,
		"notifier.dedup_window":    n.DedupWindow,
		"api.read_timeout":         cfg.API.ReadTimeout,
		"api.write_timeout":        cfg.API.WriteTimeout,
	} {
		_, err := ParseDurationField(path, raw)
		check(err)
	}

	if h := cfg.Calendar.DefaultHour; h != nil && (*h < 0 || *h > 23) {
		errs = append(errs, fmt.Errorf("calendar.default_hour must be within [0,23], got %d", *h))
	}
	return errors.Join(errs...)
}

func oneOf(path, v string, allowed []string) error {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported value %q", path, v)
}
