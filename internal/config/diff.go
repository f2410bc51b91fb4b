package config

import (
	"reflect"
	"strings"

	logx "postdeck/pkg/logx"
)

// SummarizeChange lists the changed sections and safe attrs for logging.
// Secrets are not part of Config, so nothing here can leak a token.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.alerts_enabled", newCfg.Logging.Alerts.Enabled),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.String("scheduler.sweep", strings.TrimSpace(newCfg.Scheduler.Sweep)),
		)
	}
	if oldCfg.Worker != newCfg.Worker {
		changed = append(changed, "worker")
		attrs = append(attrs, logx.Int("worker.workers", newCfg.Worker.Workers))
	}
	if !reflect.DeepEqual(oldCfg.Publisher, newCfg.Publisher) {
		changed = append(changed, "publisher")
		attrs = append(attrs,
			logx.String("publisher.mode", newCfg.Publisher.Mode),
			logx.Float64("publisher.rate_per_sec", newCfg.Publisher.RatePerSec),
		)
		if r := newCfg.Publisher.SuccessRate; r != nil {
			attrs = append(attrs, logx.Float64("publisher.success_rate", *r))
		}
	}
	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", newCfg.Notifier.Enabled),
			logx.String("notifier.driver", newCfg.Notifier.Driver),
		)
	}
	if oldCfg.API != newCfg.API {
		changed = append(changed, "api")
		attrs = append(attrs, logx.String("api.addr", newCfg.API.Addr))
	}
	if !reflect.DeepEqual(oldCfg.Calendar, newCfg.Calendar) {
		changed = append(changed, "calendar")
	}
	return changed, attrs
}

// RestartRequired reports sections whose changes only apply on restart.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		switch s {
		case "storage", "scheduler", "worker", "api", "calendar":
			out = append(out, s)
		}
	}
	return out
}
