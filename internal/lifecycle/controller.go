package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"postdeck/internal/calendar"
	"postdeck/internal/eventbus"
	"postdeck/internal/publisher"
	"postdeck/internal/storage"
	logx "postdeck/pkg/logx"
)

// Options wires the controller's collaborators. Publisher, Timers and Runner
// are required; a nil Store disables persistence.
type Options struct {
	Store     storage.Store
	Publisher publisher.Publisher
	Generator Generator
	Timers    Timers
	Runner    Runner
	Bus       eventbus.Bus
	Log       logx.Logger

	Now      func() time.Time
	Location *time.Location
	NewID    func() string
	// DefaultHour overrides the 09:00 whole-day default for future dates.
	DefaultHour *int

	PersistTimeout time.Duration
}

type Controller struct {
	mu sync.Mutex

	log       logx.Logger
	bus       eventbus.Bus
	pub       publisher.Publisher
	gen       Generator
	timers    Timers
	runner    Runner
	newID     func() string
	placement calendar.Placement
	persist   *persister

	events    *calendar.Store
	open      map[string]*OpenPost
	order     []string
	active    string
	links     map[string]Link
	drafts    []DraftPost
	published []PublishedPost
	failed    []FailedPost

	// armSeq/armGen mirror the timer generations so an in-flight publish
	// can tell whether its event was moved or deleted meanwhile.
	armSeq   uint64
	armGen   map[string]uint64
	firing   map[string]bool
	retrying map[string]bool
}

func New(opts Options) (*Controller, error) {
	if opts.Publisher == nil {
		return nil, errors.New("lifecycle: publisher is required")
	}
	if opts.Timers == nil {
		return nil, errors.New("lifecycle: timers are required")
	}
	if opts.Runner == nil {
		return nil, errors.New("lifecycle: runner is required")
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.Nop{}
	}
	if opts.Log.IsZero() {
		opts.Log = logx.Nop()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	log := opts.Log.With(logx.String("comp", "lifecycle"))
	placement := calendar.NewPlacement(opts.Now, opts.Location)
	if opts.DefaultHour != nil {
		placement = placement.WithDefaultHour(*opts.DefaultHour)
	}

	c := &Controller{
		log:       log,
		bus:       opts.Bus,
		pub:       opts.Publisher,
		gen:       opts.Generator,
		timers:    opts.Timers,
		runner:    opts.Runner,
		newID:     opts.NewID,
		placement: placement,
		events:    calendar.NewStore(placement, opts.NewID),
		open:      map[string]*OpenPost{},
		links:     map[string]Link{},
		drafts:    []DraftPost{},
		published: []PublishedPost{},
		failed:    []FailedPost{},
		armGen:    map[string]uint64{},
		firing:    map[string]bool{},
		retrying:  map[string]bool{},
	}
	if opts.Store != nil {
		c.persist = newPersister(opts.Store, opts.PersistTimeout, log)
	}
	return c, nil
}

// Placement exposes the engine used for drop resolution.
func (c *Controller) Placement() calendar.Placement { return c.placement }

// Snapshot returns a consistent deep copy of all state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Events:    c.events.Snapshot(),
		Drafts:    append([]DraftPost{}, c.drafts...),
		Published: append([]PublishedPost{}, c.published...),
		Failed:    append([]FailedPost{}, c.failed...),
		Open:      make([]OpenPost, 0, len(c.order)),
		Active:    c.active,
		Links:     make(map[string]Link, len(c.links)),
	}
	for _, id := range c.order {
		snap.Open = append(snap.Open, *c.open[id])
	}
	for k, v := range c.links {
		snap.Links[k] = v
	}
	return snap
}

// openRecord is the persisted form of an open post with its link.
type openRecord struct {
	OpenPost
	Link *Link `json:"link,omitempty"`
}

// persisted is the state as read back from the store.
type persisted struct {
	events    map[calendar.DateKey][]calendar.Event
	drafts    []DraftPost
	published []PublishedPost
	failed    []FailedPost
	open      []openRecord
}

func readPersisted(ctx context.Context, st storage.Store) (persisted, error) {
	ps := persisted{
		events:    map[calendar.DateKey][]calendar.Event{},
		drafts:    []DraftPost{},
		published: []PublishedPost{},
		failed:    []FailedPost{},
		open:      []openRecord{},
	}
	for _, kv := range []struct {
		key string
		dst any
	}{
		{storage.KeyCalendarEvents, &ps.events},
		{storage.KeyDraftPosts, &ps.drafts},
		{storage.KeyPublishedPosts, &ps.published},
		{storage.KeyFailedPosts, &ps.failed},
		{storage.KeyPostContents, &ps.open},
	} {
		if _, err := storage.GetJSON(ctx, st, kv.key, kv.dst); err != nil {
			return persisted{}, err
		}
	}
	return ps, nil
}

// ReadSnapshot reads persisted state without a controller. Nothing is armed.
func ReadSnapshot(ctx context.Context, st storage.Store) (Snapshot, error) {
	ps, err := readPersisted(ctx, st)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Events:    ps.events,
		Drafts:    nonNil(ps.drafts),
		Published: nonNil(ps.published),
		Failed:    nonNil(ps.failed),
		Open:      make([]OpenPost, 0, len(ps.open)),
		Links:     map[string]Link{},
	}
	for _, rec := range ps.open {
		snap.Open = append(snap.Open, rec.OpenPost)
		snap.Active = rec.ID
		if rec.Link != nil {
			snap.Links[rec.ID] = *rec.Link
		}
	}
	return snap, nil
}

// Load replaces in-memory state with the persisted state and arms a timer
// for every scheduled event. Overdue events fire immediately.
func (c *Controller) Load(ctx context.Context) error {
	if c.persist == nil {
		return nil
	}
	ps, err := readPersisted(ctx, c.persist.st)
	if err != nil {
		return err
	}
	events, drafts, published, failed, open := ps.events, ps.drafts, ps.published, ps.failed, ps.open

	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.armGen {
		c.timers.Disarm(id)
	}
	c.armGen = map[string]uint64{}

	if skipped := c.events.Restore(events); skipped > 0 {
		c.log.Warn("skipped invalid events on load", logx.Int("count", skipped))
	}
	c.drafts = nonNil(drafts)
	c.published = nonNil(published)
	c.failed = nonNil(failed)
	c.open = map[string]*OpenPost{}
	c.order = nil
	c.links = map[string]Link{}
	c.active = ""
	for _, rec := range open {
		if rec.ID == "" || c.open[rec.ID] != nil {
			continue
		}
		p := rec.OpenPost
		c.open[p.ID] = &p
		c.order = append(c.order, p.ID)
		c.active = p.ID
		if rec.Link != nil {
			if key, _, ok := c.events.Find(rec.Link.EventID); ok {
				c.links[p.ID] = Link{EventID: rec.Link.EventID, DateKey: key}
			}
		}
	}

	pending := c.events.Pending()
	for _, loc := range pending {
		c.armLocked(loc.Key, loc.Event)
	}
	c.log.Info("state loaded",
		logx.Int("events", c.events.Len()),
		logx.Int("pending", len(pending)),
		logx.Int("drafts", len(c.drafts)),
		logx.Int("published", len(c.published)),
		logx.Int("failed", len(c.failed)),
		logx.Int("open", len(c.order)),
	)
	return nil
}

// Sweep arms any scheduled event that has no timer and is not being
// published. It repairs dropped dispatches and clock jumps.
func (c *Controller) Sweep(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, loc := range c.events.Pending() {
		if ctx.Err() != nil {
			break
		}
		if c.firing[loc.Event.ID] {
			continue
		}
		if _, ok := c.timers.Armed(loc.Event.ID); ok {
			continue
		}
		c.armLocked(loc.Key, loc.Event)
		n++
	}
	if n > 0 {
		c.log.Info("sweep re-armed timers", logx.Int("count", n))
	}
	return n
}

// Drain waits for asynchronous publishes and pending writes.
func (c *Controller) Drain(ctx context.Context) error {
	if d, ok := c.runner.(Drainer); ok {
		if err := d.Drain(ctx); err != nil {
			return err
		}
	}
	if c.persist != nil {
		return c.persist.flush(ctx)
	}
	return nil
}

// Close flushes pending writes and stops the persistence queue.
func (c *Controller) Close(ctx context.Context) error {
	if c.persist == nil {
		return nil
	}
	if err := c.persist.flush(ctx); err != nil {
		return err
	}
	return c.persist.close(ctx)
}

func (c *Controller) now() time.Time { return c.placement.Now() }

func (c *Controller) saveLocked(keys ...string) {
	if c.persist == nil {
		return
	}
	for _, key := range keys {
		var v any
		switch key {
		case storage.KeyCalendarEvents:
			v = c.events.Snapshot()
		case storage.KeyDraftPosts:
			v = c.drafts
		case storage.KeyPublishedPosts:
			v = c.published
		case storage.KeyFailedPosts:
			v = c.failed
		case storage.KeyPostContents:
			recs := make([]openRecord, 0, len(c.order))
			for _, id := range c.order {
				rec := openRecord{OpenPost: *c.open[id]}
				if l, ok := c.links[id]; ok {
					rec.Link = &l
				}
				recs = append(recs, rec)
			}
			v = recs
		default:
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			c.log.Error("encode state failed", logx.String("key", key), logx.Err(err))
			continue
		}
		c.persist.enqueue(key, b)
	}
}

func (c *Controller) emit(topic string, pe eventbus.PostEvent) {
	c.bus.Publish(eventbus.Event{Type: topic, Time: c.now(), Data: pe})
}

func nonEmpty(s string) bool { return strings.TrimSpace(s) != "" }

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
