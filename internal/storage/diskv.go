package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/peterbourgon/diskv/v3"

	logx "postdeck/pkg/logx"
)

const diskvExt = ".json"

// diskvStore keeps one file per key under a base directory.
type diskvStore struct {
	d   *diskv.Diskv
	log logx.Logger
}

func openDiskv(cfg Config, log logx.Logger) (Store, error) {
	base := strings.TrimSpace(cfg.Path)
	if base == "" {
		return nil, errors.New("storage.path is required for diskv driver")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	cache := cfg.CacheSizeMax
	if cache == 0 {
		cache = 1024 * 1024 // 1MB
	}
	return &diskvStore{
		d: diskv.New(diskv.Options{
			BasePath:          base,
			AdvancedTransform: keyToPath,
			InverseTransform:  pathToKey,
			CacheSizeMax:      cache,
		}),
		log: log,
	}, nil
}

func keyToPath(key string) *diskv.PathKey {
	return &diskv.PathKey{Path: []string{}, FileName: key + diskvExt}
}

func pathToKey(pk *diskv.PathKey) string {
	return strings.TrimSuffix(pk.FileName, diskvExt)
}

func (s *diskvStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := s.d.Read(key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *diskvStore) Set(_ context.Context, key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return s.d.Write(key, value)
}

// Keys lists stored keys. Used by tests and the CLI.
func (s *diskvStore) Keys(ctx context.Context) []string {
	out := make([]string, 0)
	for k := range s.d.Keys(ctx.Done()) {
		out = append(out, k)
	}
	return out
}

func (s *diskvStore) Close() error { return nil }
