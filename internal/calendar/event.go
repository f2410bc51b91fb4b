package calendar

// NoteType is the lifecycle marker of an event. Transitions are forward-only:
// yellow may become green or red, green and red are terminal.
type NoteType string

const (
	NoteYellow NoteType = "yellow"
	NoteGreen  NoteType = "green"
	NoteRed    NoteType = "red"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusPosted    Status = "posted"
	StatusFailed    Status = "failed"
)

// Event is a calendar note. Time is "HH:MM" or empty.
type Event struct {
	ID       string   `json:"id"`
	Platform string   `json:"platform"`
	Time     string   `json:"time,omitempty"`
	Content  string   `json:"content,omitempty"`
	NoteType NoteType `json:"noteType"`
	Status   Status   `json:"status"`
	URL      string   `json:"url,omitempty"`
}

// Pending reports whether the event still waits for its timer.
func (e Event) Pending() bool { return e.NoteType == NoteYellow }

// Located pairs an event with the bucket it currently lives in.
type Located struct {
	Key   DateKey `json:"dateKey"`
	Event Event   `json:"event"`
}
