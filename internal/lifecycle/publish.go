package lifecycle

import (
	"strings"

	"postdeck/internal/calendar"
	"postdeck/internal/eventbus"
	"postdeck/internal/publisher"
	"postdeck/internal/storage"
	logx "postdeck/pkg/logx"
)

// PublishNow publishes an open post immediately. The post is closed, a
// Published record is appended and a green event is placed at today/now.
// A yellow event the post was linked to is cancelled first.
func (c *Controller) PublishNow(openID string) (PublishedPost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.open[openID]
	if !ok {
		return PublishedPost{}, notFound("open post", openID)
	}
	if !nonEmpty(p.Content) {
		return PublishedPost{}, calendar.Invalid("content", "is empty")
	}

	keys := []string{storage.KeyCalendarEvents, storage.KeyPublishedPosts, storage.KeyPostContents}
	if l, ok := c.links[openID]; ok {
		if key, ev, found := c.events.Find(l.EventID); found && ev.Pending() {
			c.disarmLocked(ev.ID)
			c.events.Delete(key, ev.ID)
			c.unlinkEventLocked(ev.ID)
		}
	}

	now := c.now()
	key, clock := calendar.KeyFor(now), calendar.ClockOf(now)
	url := publisher.PostURL(p.Platform, p.ID)
	ev := calendar.Event{
		ID:       c.newID(),
		Platform: p.Platform,
		Time:     clock,
		Content:  p.Content,
		NoteType: calendar.NoteGreen,
		Status:   calendar.StatusPosted,
		URL:      url,
	}
	if err := c.events.Insert(key, ev); err != nil {
		return PublishedPost{}, err
	}
	rec := PublishedPost{
		ID:          p.ID,
		Platform:    p.Platform,
		Content:     p.Content,
		Date:        key,
		Time:        clock,
		PublishedAt: now,
		URL:         url,
	}
	c.published = append(c.published, rec)
	keys = append(keys, c.resolveOriginLocked(p)...)
	c.closeLocked(openID)
	c.saveLocked(keys...)

	c.log.Info("post published", logx.Post(rec.Platform, rec.ID), logx.String("url", url))
	c.emit(eventbus.TopicPublished, eventbus.PostEvent{ID: rec.ID, EventID: ev.ID, Platform: rec.Platform, DateKey: string(key), Time: clock, URL: url})
	return rec, nil
}

// Schedule closes an open post and places a yellow event at (key, clock)
// with a publish timer. An empty clock applies the defaulting rule. A post
// linked to a scheduled event moves that event instead of adding another.
func (c *Controller) Schedule(openID string, key calendar.DateKey, clock string) (calendar.Located, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.open[openID]
	if !ok {
		return calendar.Located{}, notFound("open post", openID)
	}
	if !nonEmpty(p.Content) {
		return calendar.Located{}, calendar.Invalid("content", "is empty")
	}
	if strings.TrimSpace(clock) == "" {
		def, err := c.placement.DefaultClock(key)
		if err != nil {
			return calendar.Located{}, err
		}
		clock = def
	}

	var (
		ev  calendar.Event
		err error
	)
	l, linked := c.links[openID]
	_, cur, found := c.events.Find(l.EventID)
	if linked && found && cur.Pending() {
		ev, err = c.events.Move(l.EventID, l.DateKey, key, clock)
		if err != nil {
			return calendar.Located{}, err
		}
		c.relinkLocked(ev.ID, key)
	} else {
		ev, err = c.events.Add(key, p.Platform, clock)
		if err != nil {
			return calendar.Located{}, err
		}
	}
	if err := c.events.SetContent(ev.ID, p.Content); err != nil {
		return calendar.Located{}, err
	}
	ev.Content = p.Content
	c.armLocked(key, ev)

	keys := []string{storage.KeyCalendarEvents, storage.KeyPostContents}
	keys = append(keys, c.resolveOriginLocked(p)...)
	c.closeLocked(openID)
	c.saveLocked(keys...)

	c.log.Info("post scheduled", logx.Post(ev.Platform, ev.ID), logx.String("date", string(key)), logx.String("time", ev.Time))
	c.emit(eventbus.TopicScheduled, eventbus.PostEvent{ID: ev.ID, EventID: ev.ID, Platform: ev.Platform, DateKey: string(key), Time: ev.Time})
	return calendar.Located{Key: key, Event: ev}, nil
}
