package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetJSON decodes key into out. A missing key leaves out untouched so callers
// pre-populate out with their default.
func GetJSON(ctx context.Context, st Store, key string, out any) (bool, error) {
	if st == nil {
		return false, nil
	}
	b, ok, err := st.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok || len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, st Store, key string, v any) error {
	if st == nil {
		return ErrDisabled
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return st.Set(ctx, key, b)
}
