package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDecodeJSONAndYAML(t *testing.T) {
	t.Parallel()

	jsonBody := `{
  "logging": {"level": "debug", "console": true},
  "storage": {"driver": "sqlite", "path": "./data/postdeck.db"},
  "scheduler": {"timezone": "UTC", "sweep": "@every 30s"},
  "notifier": {"enabled": true, "driver": "telegram", "chat_id": -100123},
  "calendar": {"default_hour": 8}
}`
	yamlBody := `
logging:
  level: debug
  console: true
storage:
  driver: sqlite
  path: ./data/postdeck.db
scheduler:
  timezone: UTC
  sweep: "@every 30s"
notifier:
  enabled: true
  driver: telegram
  chat_id: -100123
calendar:
  default_hour: 8
`
	for _, tc := range []struct {
		name string
		body string
	}{
		{"config.json", jsonBody},
		{"config.yaml", yamlBody},
	} {
		cfg, err := Decode(tc.name, []byte(tc.body))
		if err != nil {
			t.Fatalf("%s: Decode: %v", tc.name, err)
		}
		if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != "./data/postdeck.db" {
			t.Fatalf("%s: storage = %+v", tc.name, cfg.Storage)
		}
		if cfg.Notifier.ChatID != -100123 {
			t.Fatalf("%s: chat_id = %d, want -100123", tc.name, cfg.Notifier.ChatID)
		}
		if cfg.Calendar.DefaultHour == nil || *cfg.Calendar.DefaultHour != 8 {
			t.Fatalf("%s: default_hour = %v, want 8", tc.name, cfg.Calendar.DefaultHour)
		}
	}
}

func TestDecodeRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()

	if _, err := Decode("c.json", []byte(`{"storage": {"drvier": "file"}}`)); err == nil {
		t.Fatalf("unknown field accepted")
	}
	if _, err := Decode("c.yml", []byte("api:\n  adress: \":8080\"\n")); err == nil {
		t.Fatalf("unknown yaml field accepted")
	}
	if _, err := Decode("c.json", []byte(`{} {}`)); err == nil {
		t.Fatalf("trailing data accepted")
	}
}

func TestApplyEnvOverridesFile(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Storage.Driver = "file"
	cfg.API.Addr = ":8080"
	ApplyEnv(cfg, envMap(map[string]string{
		EnvStorageDriver: "memory",
		EnvTimezone:      " Asia/Jakarta ",
		EnvAPIAddr:       "",
	}))
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("driver = %q, want memory", cfg.Storage.Driver)
	}
	if cfg.Scheduler.Timezone != "Asia/Jakarta" {
		t.Fatalf("timezone = %q", cfg.Scheduler.Timezone)
	}
	if cfg.API.Addr != ":8080" {
		t.Fatalf("empty env must not override, addr = %q", cfg.API.Addr)
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Parallel()

	sec := LoadSecrets(envMap(map[string]string{
		EnvSlackToken:  " xoxb-1 ",
		EnvDatabaseURL: "postgres://x",
	}))
	if sec.SlackToken != "xoxb-1" || sec.DatabaseURL != "postgres://x" || sec.TelegramToken != "" {
		t.Fatalf("secrets = %+v", sec)
	}
}

func TestLoadDotEnvIgnoresMissing(t *testing.T) {
	t.Parallel()

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	rate := 1.5
	hour := 24
	cases := []struct {
		name string
		mut  func(*Config)
		sec  Secrets
		want string
	}{
		{name: "ok", mut: func(*Config) {}},
		{name: "bad driver", mut: func(c *Config) { c.Storage.Driver = "mongo" }, want: "storage.driver"},
		{name: "file needs path", mut: func(c *Config) { c.Storage.Driver = "file" }, want: "storage.path"},
		{name: "postgres needs dsn", mut: func(c *Config) { c.Storage.Driver = "postgres" }, want: EnvDatabaseURL},
		{name: "postgres with dsn", mut: func(c *Config) { c.Storage.Driver = "postgres" }, sec: Secrets{DatabaseURL: "postgres://x"}},
		{name: "bad timezone", mut: func(c *Config) { c.Scheduler.Timezone = "Mars/Base" }, want: "scheduler.timezone"},
		{name: "bad sweep", mut: func(c *Config) { c.Scheduler.Sweep = "every minute" }, want: "scheduler.sweep"},
		{name: "sweep off", mut: func(c *Config) { c.Scheduler.Sweep = "off" }},
		{name: "bad duration", mut: func(c *Config) { c.Publisher.Latency = "soon" }, want: "publisher.latency"},
		{name: "success rate", mut: func(c *Config) { c.Publisher.SuccessRate = &rate }, want: "success_rate"},
		{name: "default hour", mut: func(c *Config) { c.Calendar.DefaultHour = &hour }, want: "default_hour"},
		{name: "slack token", mut: func(c *Config) {
			c.Notifier.Enabled = true
			c.Notifier.Driver = "slack"
			c.Notifier.Channel = "#ops"
		}, want: EnvSlackToken},
		{name: "telegram chat", mut: func(c *Config) {
			c.Notifier.Enabled = true
			c.Notifier.Driver = "telegram"
		}, sec: Secrets{TelegramToken: "t"}, want: "notifier.chat_id"},
	}
	for _, tc := range cases {
		cfg := &Config{}
		cfg.Storage.Driver = "memory"
		tc.mut(cfg)
		err := Validate(cfg, tc.sec)
		if tc.want == "" {
			if err != nil {
				t.Fatalf("%s: Validate = %v, want nil", tc.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: Validate = %v, want error containing %q", tc.name, err, tc.want)
		}
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{}
	newCfg := &Config{}
	newCfg.Logging.Level = "debug"
	newCfg.Storage.Driver = "sqlite"
	newCfg.Publisher.Hashtags = []string{"launch"}

	sections, attrs := SummarizeChange(oldCfg, newCfg)
	want := []string{"logging", "storage", "publisher"}
	if !slices.Equal(sections, want) {
		t.Fatalf("sections = %v, want %v", sections, want)
	}
	if len(attrs) == 0 {
		t.Fatalf("attrs empty")
	}
	if got := RestartRequired(sections); !slices.Equal(got, []string{"storage"}) {
		t.Fatalf("RestartRequired = %v, want [storage]", got)
	}

	if sections, _ := SummarizeChange(newCfg, newCfg); len(sections) != 0 {
		t.Fatalf("identical configs changed %v", sections)
	}
}

func TestManagerReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"logging": {"level": "info"}}`)

	m := NewManager(path)
	m.SetEnv(envMap(nil))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	if _, err := m.Reload(context.Background()); !errors.Is(err, ErrUnchanged) {
		t.Fatalf("Reload unchanged = %v, want ErrUnchanged", err)
	}

	writeFile(t, path, `{"logging": {"level": "debug"}}`)
	cfg, err := m.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if cfg.Logging.Level != "debug" || m.Get().Logging.Level != "debug" {
		t.Fatalf("level = %q, want debug", m.Get().Logging.Level)
	}
	select {
	case got := <-sub:
		if got != cfg {
			t.Fatalf("subscriber got a different config")
		}
	default:
		t.Fatalf("subscriber not notified")
	}
}

func TestManagerReloadRejectedKeepsCommitted(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "storage:\n  driver: memory\n")

	m := NewManager(path)
	m.SetEnv(envMap(nil))
	m.SetValidator(func(_ context.Context, cfg *Config) error {
		return Validate(cfg, Secrets{})
	})
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	writeFile(t, path, "storage:\n  driver: mongo\n")
	if _, err := m.Reload(context.Background()); err == nil {
		t.Fatalf("Reload accepted an invalid config")
	}
	if got := m.Get().Storage.Driver; got != "memory" {
		t.Fatalf("driver = %q, want memory", got)
	}

	writeFile(t, path, "storage:\n  driver: [broken\n")
	if _, err := m.Reload(context.Background()); err == nil {
		t.Fatalf("Reload accepted malformed yaml")
	}
}

func TestManagerParseAppliesEnv(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"api": {"addr": ":8080"}}`)

	m := NewManager(path)
	m.SetEnv(envMap(map[string]string{EnvAPIAddr: "127.0.0.1:9090"}))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.API.Addr != "127.0.0.1:9090" {
		t.Fatalf("addr = %q, want env override", cfg.API.Addr)
	}
}

func TestParseDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw     string
		def     time.Duration
		want    time.Duration
		wantErr bool
	}{
		{raw: "", def: time.Minute, want: time.Minute},
		{raw: "  ", def: 0, want: 0},
		{raw: "0s", def: time.Second, want: time.Second},
		{raw: "250ms", def: time.Second, want: 250 * time.Millisecond},
		{raw: " 2m ", def: 0, want: 2 * time.Minute},
		{raw: "-1s", wantErr: true},
		{raw: "soon", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseDurationOrDefault("worker.default_timeout", tc.raw, tc.def)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseDurationOrDefault(%q) err = %v, wantErr %v", tc.raw, err, tc.wantErr)
		}
		if err != nil {
			if !strings.Contains(err.Error(), "worker.default_timeout") {
				t.Fatalf("error %q does not name the field", err)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("ParseDurationOrDefault(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestCoerceYAMLNonStringKeys(t *testing.T) {
	t.Parallel()

	out, format, err := coerceToJSONBytes("config.yml", []byte("publisher:\n  hashtags: [a, b]\n1: one\ntrue: yes\n"))
	if err != nil {
		t.Fatalf("coerceToJSONBytes: %v", err)
	}
	if format != formatYAML {
		t.Fatalf("format = %q, want yaml", format)
	}
	for _, want := range []string{`"1":"one"`, `"true":"yes"`, `"hashtags":["a","b"]`} {
		if !strings.Contains(string(out), want) {
			t.Fatalf("json %s missing %s", out, want)
		}
	}

	raw := []byte(`{"api":{}}`)
	out, format, err = coerceToJSONBytes("config.JSON", raw)
	if err != nil || format != formatJSON || string(out) != string(raw) {
		t.Fatalf("json passthrough = %s, %q, %v", out, format, err)
	}
}
