package eventbus

// Topics published by the lifecycle controller. Data is a PostEvent.
const (
	TopicScheduled   = "post.scheduled"
	TopicPublished   = "post.published"
	TopicFailed      = "post.failed"
	TopicRetryFailed = "post.retry_failed"
	TopicStaleTimer  = "timer.stale"
)

// PostEvent is the payload of lifecycle topics.
type PostEvent struct {
	ID       string `json:"id"`
	EventID  string `json:"eventId,omitempty"`
	Platform string `json:"platform"`
	DateKey  string `json:"dateKey,omitempty"`
	Time     string `json:"time,omitempty"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
