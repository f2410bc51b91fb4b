package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"postdeck/internal/storage"
)

// ErrLocked means another instance owns the data directory.
var ErrLocked = errors.New("another postdeck instance is already running")

// lockPath returns the instance lock for on-disk drivers, or "" when the
// store has no local directory.
func lockPath(sc storage.Config) string {
	switch sc.Driver {
	case "file", "sqlite", "sqlite3":
		if sc.Path == "" {
			return ""
		}
		return sc.Path + ".lock"
	case "diskv":
		if sc.Path == "" {
			return ""
		}
		return filepath.Join(sc.Path, ".postdeck.lock")
	default:
		return ""
	}
}

// acquireLock takes the instance lock. A nil lock means none was needed.
func acquireLock(path string) (*flock.Flock, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, path)
	}
	return l, nil
}
