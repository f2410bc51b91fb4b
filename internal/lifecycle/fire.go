package lifecycle

import (
	"context"
	"errors"

	"postdeck/internal/calendar"
	"postdeck/internal/eventbus"
	"postdeck/internal/failure"
	"postdeck/internal/publisher"
	"postdeck/internal/storage"
	logx "postdeck/pkg/logx"
)

const errNoContent = "post has no content"

// armLocked (re)registers the publish timer of a scheduled event.
func (c *Controller) armLocked(key calendar.DateKey, ev calendar.Event) {
	at, err := key.At(ev.Time, c.placement.Location())
	if err != nil {
		c.log.Warn("cannot arm timer", logx.String("event_id", ev.ID), logx.Err(err))
		return
	}
	c.armSeq++
	gen := c.armSeq
	c.armGen[ev.ID] = gen
	if _, err := c.timers.Arm(ev.ID, at, func(ctx context.Context) { c.fire(ctx, ev.ID, gen) }); err != nil {
		c.log.Warn("arm timer failed", logx.String("event_id", ev.ID), logx.Err(err))
	}
}

func (c *Controller) disarmLocked(id string) {
	c.timers.Disarm(id)
	delete(c.armGen, id)
}

// fire publishes a scheduled event. The event is re-resolved by id both
// before and after the publisher call; if it was moved or deleted meanwhile
// the outcome is discarded.
func (c *Controller) fire(ctx context.Context, id string, gen uint64) {
	c.mu.Lock()
	if c.armGen[id] != gen {
		c.mu.Unlock()
		c.log.Debug("stale timer ignored", logx.String("event_id", id), logx.Uint64("gen", gen))
		c.emit(eventbus.TopicStaleTimer, eventbus.PostEvent{EventID: id})
		return
	}
	key, ev, ok := c.events.Find(id)
	if !ok || !ev.Pending() {
		delete(c.armGen, id)
		c.mu.Unlock()
		c.log.Warn("timer fired for missing event", logx.String("event_id", id), logx.String("kind", "internal_consistency"))
		return
	}
	c.firing[id] = true
	c.mu.Unlock()

	var out publisher.Outcome
	if nonEmpty(ev.Content) {
		at, _ := key.At(ev.Time, c.placement.Location())
		var err error
		out, err = c.pub.Publish(ctx, publisher.Request{ID: ev.ID, Platform: ev.Platform, Content: ev.Content, ScheduledAt: at})
		if err != nil {
			c.mu.Lock()
			delete(c.firing, id)
			c.mu.Unlock()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.log.Info("publish interrupted, event stays scheduled", logx.Post(ev.Platform, id), logx.Err(err))
			} else {
				c.log.Warn("publish call failed, event stays scheduled", logx.Post(ev.Platform, id), logx.Err(err))
			}
			return
		}
	} else {
		out = publisher.Outcome{ErrorText: errNoContent}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.firing, id)
	if c.armGen[id] != gen {
		c.log.Info("event changed during publish, outcome discarded", logx.Post(ev.Platform, id))
		return
	}
	delete(c.armGen, id)
	key, cur, ok := c.events.Find(id)
	if !ok || !cur.Pending() {
		c.log.Warn("event vanished during publish", logx.String("event_id", id), logx.String("kind", "internal_consistency"))
		return
	}
	now := c.now()

	if out.OK {
		url := out.URL
		if url == "" {
			url = publisher.PostURL(ev.Platform, id)
		}
		if _, err := c.events.Resolve(id, calendar.NoteGreen, url); err != nil {
			c.log.Warn("resolve event failed", logx.String("event_id", id), logx.Err(err))
			return
		}
		c.published = append(c.published, PublishedPost{
			ID:          id,
			Platform:    ev.Platform,
			Content:     ev.Content,
			Date:        key,
			Time:        cur.Time,
			PublishedAt: now,
			URL:         url,
		})
		keys := []string{storage.KeyCalendarEvents, storage.KeyPublishedPosts}
		if c.unlinkEventLocked(id) {
			keys = append(keys, storage.KeyPostContents)
		}
		c.saveLocked(keys...)
		c.log.Info("post published", logx.Post(ev.Platform, id), logx.String("url", url))
		c.emit(eventbus.TopicPublished, eventbus.PostEvent{ID: id, EventID: id, Platform: ev.Platform, DateKey: string(key), Time: cur.Time, URL: url})
		return
	}

	errText := out.ErrorText
	if !nonEmpty(errText) {
		errText = "publish failed"
	}
	if _, err := c.events.Resolve(id, calendar.NoteRed, ""); err != nil {
		c.log.Warn("resolve event failed", logx.String("event_id", id), logx.Err(err))
		return
	}
	// The record carries the publisher's failure; Retry reclassifies against
	// the content.
	cls := failure.Classify(ev.Platform, "", errText)
	f := FailedPost{
		ID:       c.newID(),
		Platform: ev.Platform,
		Content:  ev.Content,
		Date:     key,
		Time:     cur.Time,
		Error:    errText,
		Reason:   cls.Type,
		EventID:  id,
		FailedAt: now,
	}
	c.failed = append(c.failed, f)
	c.saveLocked(storage.KeyCalendarEvents, storage.KeyFailedPosts)
	c.log.Warn("post failed", logx.Post(ev.Platform, id), logx.String("reason", string(cls.Type)), logx.String("error", errText))
	c.emit(eventbus.TopicFailed, eventbus.PostEvent{ID: f.ID, EventID: id, Platform: ev.Platform, DateKey: string(key), Time: cur.Time, Error: errText, Reason: string(cls.Type)})
}
