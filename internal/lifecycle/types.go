package lifecycle

import (
	"context"
	"time"

	"postdeck/internal/calendar"
	"postdeck/internal/failure"
)

// Origin records where an open post's content came from.
type Origin string

const (
	OriginNew    Origin = "new"
	OriginDraft  Origin = "draft"
	OriginEvent  Origin = "event"
	OriginFailed Origin = "failed"
	OriginClone  Origin = "clone"
)

// OpenPost is a post being edited.
type OpenPost struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
	Content  string `json:"content"`
	Origin   Origin `json:"origin"`
	OriginID string `json:"originId,omitempty"`
}

// Link ties an open post to the calendar event its edits are mirrored into.
type Link struct {
	EventID string           `json:"eventId"`
	DateKey calendar.DateKey `json:"dateKey"`
}

type DraftPost struct {
	ID       string    `json:"id"`
	Platform string    `json:"platform"`
	Content  string    `json:"content"`
	SavedAt  time.Time `json:"savedAt"`
}

type Engagement struct {
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Shares   int `json:"shares"`
}

type PublishedPost struct {
	ID          string           `json:"id"`
	Platform    string           `json:"platform"`
	Content     string           `json:"content"`
	Date        calendar.DateKey `json:"date"`
	Time        string           `json:"time"`
	PublishedAt time.Time        `json:"publishedAt"`
	URL         string           `json:"url"`
	Engagement  Engagement       `json:"engagement"`
}

type FailedPost struct {
	ID       string           `json:"id"`
	Platform string           `json:"platform"`
	Content  string           `json:"content"`
	Date     calendar.DateKey `json:"date"`
	Time     string           `json:"time"`
	Error    string           `json:"error"`
	Reason   failure.Type     `json:"reason"`
	EventID  string           `json:"eventId,omitempty"`
	FailedAt time.Time        `json:"failedAt"`
}

// Snapshot is a deep-copied read model of the controller state.
type Snapshot struct {
	Events    map[calendar.DateKey][]calendar.Event `json:"events"`
	Drafts    []DraftPost                           `json:"drafts"`
	Published []PublishedPost                       `json:"published"`
	Failed    []FailedPost                          `json:"failed"`
	Open      []OpenPost                            `json:"open"`
	Active    string                                `json:"active,omitempty"`
	Links     map[string]Link                       `json:"links"`
}

// RetryOptions reschedules a failed post when Date is set. An empty Time
// applies the whole-day defaulting rule.
type RetryOptions struct {
	Date calendar.DateKey `json:"date,omitempty"`
	Time string           `json:"time,omitempty"`
}

type RetryAction string

const (
	RetryRescheduled RetryAction = "rescheduled"
	RetryEditing     RetryAction = "editing"
	RetryQueued      RetryAction = "retrying"
)

type RetryResult struct {
	Action         RetryAction            `json:"action"`
	Classification failure.Classification `json:"classification"`
	Scheduled      *calendar.Located      `json:"scheduled,omitempty"`
	Post           *OpenPost              `json:"post,omitempty"`
}

// Generator seeds post content from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Timers registers one-shot callbacks keyed by event id.
type Timers interface {
	Arm(id string, at time.Time, job func(ctx context.Context)) (uint64, error)
	Disarm(id string) bool
	Armed(id string) (time.Time, bool)
}

// Runner executes work off the caller's goroutine.
type Runner interface {
	Go(name string, fn func(ctx context.Context)) error
}

// Drainer is implemented by runners that can wait for accepted work.
type Drainer interface {
	Drain(ctx context.Context) error
}
