package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Keys written by the lifecycle controller.
const (
	KeyCalendarEvents = "calendarEvents"
	KeyDraftPosts     = "draftPosts"
	KeyPublishedPosts = "publishedPosts"
	KeyFailedPosts    = "failedPosts"
	KeyPostContents   = "postContents"
)

// Config configures storage.
//
// Driver values: "memory", "file", "sqlite", "diskv", "postgres".
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver string
	// Path is the file (file, sqlite) or directory (diskv) to use.
	Path string
	// DSN is the postgres connection string.
	DSN string

	BusyTimeout  time.Duration // sqlite only; 0 means default
	CompactEvery int           // file only; journal writes between compactions
	CacheSizeMax uint64        // diskv only; bytes
}
