package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvSlackToken    = "POSTDECK_SLACK_TOKEN"
	EnvTelegramToken = "POSTDECK_TELEGRAM_TOKEN"
	EnvDatabaseURL   = "POSTDECK_DATABASE_URL"
	EnvAPIToken      = "POSTDECK_API_TOKEN"

	EnvLogLevel       = "POSTDECK_LOG_LEVEL"
	EnvAPIAddr        = "POSTDECK_API_ADDR"
	EnvStorageDriver  = "POSTDECK_STORAGE_DRIVER"
	EnvStoragePath    = "POSTDECK_STORAGE_PATH"
	EnvTimezone       = "POSTDECK_TIMEZONE"
	EnvNotifierDriver = "POSTDECK_NOTIFIER_DRIVER"
)

// LoadDotEnv loads .env files into the process environment. Variables that
// are already set win. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// LoadSecrets reads credentials with getenv (os.Getenv when nil).
func LoadSecrets(getenv func(string) string) Secrets {
	if getenv == nil {
		getenv = os.Getenv
	}
	return Secrets{
		SlackToken:    strings.TrimSpace(getenv(EnvSlackToken)),
		TelegramToken: strings.TrimSpace(getenv(EnvTelegramToken)),
		DatabaseURL:   strings.TrimSpace(getenv(EnvDatabaseURL)),
		APIToken:      strings.TrimSpace(getenv(EnvAPIToken)),
	}
}

// ApplyEnv overrides file values with non-empty environment variables.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if cfg == nil {
		return
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Logging.Level, EnvLogLevel)
	set(&cfg.API.Addr, EnvAPIAddr)
	set(&cfg.Storage.Driver, EnvStorageDriver)
	set(&cfg.Storage.Path, EnvStoragePath)
	set(&cfg.Scheduler.Timezone, EnvTimezone)
	set(&cfg.Notifier.Driver, EnvNotifierDriver)
}
