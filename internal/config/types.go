package config

// Config is the on-disk configuration (JSON or YAML). Secrets never live
// here; they come from the environment (see LoadSecrets).
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Worker    WorkerConfig    `json:"worker"`
	Publisher PublisherConfig `json:"publisher"`
	Notifier  NotifierConfig  `json:"notifier"`
	API       APIConfig       `json:"api"`
	Calendar  CalendarConfig  `json:"calendar"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LoggingFile   `json:"file"`
	Alerts  LoggingAlerts `json:"alerts"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAlerts forwards warn+ records to the notifier.
type LoggingAlerts struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the persistent store. Changes need a restart.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/postdeck.db" }
//
// The postgres DSN is read from POSTDECK_DATABASE_URL.
type StorageConfig struct {
	Driver         string `json:"driver"`
	Path           string `json:"path"`
	BusyTimeout    string `json:"busy_timeout,omitempty"`  // sqlite
	CompactEvery   int    `json:"compact_every,omitempty"` // file
	CacheSizeMax   uint64 `json:"cache_size_max,omitempty"`
	PersistTimeout string `json:"persist_timeout,omitempty"`
}

type SchedulerConfig struct {
	Timezone string `json:"timezone,omitempty"`
	// Sweep is a cron spec for the re-arm sweep ("off" disables it).
	Sweep      string `json:"sweep,omitempty"`
	JobTimeout string `json:"job_timeout,omitempty"`
}

type WorkerConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
}

// PublisherConfig configures the stand-in publisher.
//
// Mode values: "simulated" (default), "succeed", "fail".
type PublisherConfig struct {
	Mode        string   `json:"mode,omitempty"`
	SuccessRate *float64 `json:"success_rate,omitempty"`
	Seed        int64    `json:"seed,omitempty"`
	Latency     string   `json:"latency,omitempty"`
	FailText    string   `json:"fail_text,omitempty"`
	RatePerSec  float64  `json:"rate_per_sec,omitempty"`
	Burst       int      `json:"burst,omitempty"`
	Hashtags    []string `json:"hashtags,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Driver          string `json:"driver,omitempty"` // slack|telegram|log
	Channel         string `json:"channel,omitempty"`
	ChatID          int64  `json:"chat_id,omitempty"`
	ThreadID        int    `json:"thread_id,omitempty"`
	NotifyPublished bool   `json:"notify_published,omitempty"`
	Workers         int    `json:"workers,omitempty"`
	QueueSize       int    `json:"queue_size,omitempty"`
	RatePerSec      int    `json:"rate_per_sec,omitempty"`
	RetryMax        int    `json:"retry_max,omitempty"`
	RetryBase       string `json:"retry_base,omitempty"`
	RetryMaxDelay   string `json:"retry_max_delay,omitempty"`
	DedupWindow     string `json:"dedup_window,omitempty"`
	DedupMaxEntries int    `json:"dedup_max_entries,omitempty"`
}

type APIConfig struct {
	// Addr is the listen address; empty disables the HTTP API.
	Addr         string `json:"addr,omitempty"`
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	// Pprof mounts net/http/pprof under /debug/pprof/ behind the API token.
	Pprof bool `json:"pprof,omitempty"`
}

// CalendarConfig tunes placement. Slots are fixed at 15 minutes.
type CalendarConfig struct {
	DefaultHour *int `json:"default_hour,omitempty"`
}

// Secrets are credentials read from the environment (and .env files).
type Secrets struct {
	SlackToken    string
	TelegramToken string
	DatabaseURL   string
	APIToken      string
}
