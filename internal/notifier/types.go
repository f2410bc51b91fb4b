package notifier

import (
	"context"
	"time"
)

// Config controls the async notification pipeline.
type Config struct {
	Enabled bool
	// Driver selects the Sender: "slack", "telegram" or "log".
	Driver   string
	Channel  string
	ChatID   int64
	ThreadID int

	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
}

// Priority tags a notification. Higher is louder.
type Priority int

const (
	PriorityInfo  Priority = 5
	PriorityWarn  Priority = 7
	PriorityAlert Priority = 9
)

type Notification struct {
	Priority Priority
	Text     string
	// Topic groups notifications for dedup; empty uses the text alone.
	Topic string
}

// Sender delivers one formatted message.
type Sender interface {
	Name() string
	Send(ctx context.Context, text string) error
}

type HistoryItem struct {
	At   time.Time
	Text string
}

// NotificationEvent is published on the event bus for pipeline events.
type NotificationEvent struct {
	Sender string    `json:"sender"`
	Key    string    `json:"key"`
	At     time.Time `json:"at"`
	Error  string    `json:"error,omitempty"`
}
