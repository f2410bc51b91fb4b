package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"postdeck/internal/config"
	"postdeck/internal/lifecycle"
	"postdeck/internal/storage"
	logx "postdeck/pkg/logx"
)

// State is a read-only view of persisted data for CLI commands.
type State struct {
	Snapshot lifecycle.Snapshot
	Location *time.Location
	Driver   string
}

// ReadState opens the configured store and reads the persisted snapshot.
// No timers are armed.
func ReadState(ctx context.Context, cfgPath string, log logx.Logger) (State, error) {
	if err := config.LoadDotEnv(".env", filepath.Join(filepath.Dir(cfgPath), ".env")); err != nil {
		return State{}, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.NewManager(cfgPath).Parse()
	if err != nil {
		return State{}, fmt.Errorf("load config: %w", err)
	}
	sc, err := mapStorageConfig(cfg, config.LoadSecrets(nil))
	if err != nil {
		return State{}, err
	}
	if sc.Driver == "file" {
		// Closing a file store compacts it, which must not race a live server.
		l, err := acquireLock(lockPath(sc))
		if err != nil {
			return State{}, fmt.Errorf("%w; query the running server's /api/snapshot instead", err)
		}
		defer func() { _ = l.Unlock() }()
	}
	st, err := storage.Open(ctx, sc, log)
	if err != nil {
		return State{}, fmt.Errorf("open storage: %w", err)
	}
	if st == nil {
		return State{}, errors.New("storage is disabled; nothing to read")
	}
	defer st.Close()

	snap, err := lifecycle.ReadSnapshot(ctx, st)
	if err != nil {
		return State{}, err
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return State{}, fmt.Errorf("scheduler.timezone: %w", err)
		}
	}
	return State{Snapshot: snap, Location: loc, Driver: sc.Driver}, nil
}
