package lifecycle

import (
	"postdeck/internal/calendar"
	"postdeck/internal/storage"
)

// OpenEvent opens a scheduled or failed event for editing and links the
// buffer to it. An already linked buffer is reused.
func (c *Controller) OpenEvent(key calendar.DateKey, eventID string) (OpenPost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	at, ev, ok := c.events.Find(eventID)
	if !ok || at != key {
		return OpenPost{}, notFound("event", eventID)
	}
	if ev.NoteType == calendar.NoteGreen {
		return OpenPost{}, calendar.Invalid("event", "published events cannot be edited")
	}
	if openID, ok := c.linkedPostLocked(eventID); ok {
		c.active = openID
		return *c.open[openID], nil
	}

	p := OpenPost{ID: c.newID(), Platform: ev.Platform, Content: ev.Content, Origin: OriginEvent, OriginID: ev.ID}
	if ev.NoteType == calendar.NoteRed {
		for _, f := range c.failed {
			if f.EventID == ev.ID {
				p.Origin, p.OriginID = OriginFailed, f.ID
				break
			}
		}
	}
	p = c.addOpenLocked(p)
	c.links[p.ID] = Link{EventID: ev.ID, DateKey: at}
	c.saveLocked(storage.KeyPostContents)
	return p, nil
}

// OpenFailed opens a failed record for editing. If its red event still
// exists the buffer is linked to it.
func (c *Controller) OpenFailed(failedID string) (OpenPost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.openFailedLocked(failedID)
	if err != nil {
		return OpenPost{}, err
	}
	c.saveLocked(storage.KeyPostContents)
	return p, nil
}

func (c *Controller) openFailedLocked(failedID string) (OpenPost, error) {
	i := c.failedIndex(failedID)
	if i < 0 {
		return OpenPost{}, notFound("failed post", failedID)
	}
	for _, id := range c.order {
		if p := c.open[id]; p.Origin == OriginFailed && p.OriginID == failedID {
			c.active = id
			return *p, nil
		}
	}
	f := c.failed[i]
	p := c.addOpenLocked(OpenPost{ID: c.newID(), Platform: f.Platform, Content: f.Content, Origin: OriginFailed, OriginID: f.ID})
	if f.EventID != "" {
		if key, _, ok := c.events.Find(f.EventID); ok {
			c.links[p.ID] = Link{EventID: f.EventID, DateKey: key}
		}
	}
	return p, nil
}

// mirrorLocked copies content into the linked event. A link whose event is
// gone is dropped. It reports whether an event changed.
func (c *Controller) mirrorLocked(openID, content string) bool {
	l, ok := c.links[openID]
	if !ok {
		return false
	}
	if err := c.events.SetContent(l.EventID, content); err != nil {
		delete(c.links, openID)
		return false
	}
	return true
}

func (c *Controller) linkedPostLocked(eventID string) (string, bool) {
	for _, id := range c.order {
		if l, ok := c.links[id]; ok && l.EventID == eventID {
			return id, true
		}
	}
	return "", false
}

// relinkLocked points links at an event's new bucket after a move.
func (c *Controller) relinkLocked(eventID string, key calendar.DateKey) {
	for id, l := range c.links {
		if l.EventID == eventID {
			c.links[id] = Link{EventID: eventID, DateKey: key}
		}
	}
}

// unlinkEventLocked removes every link to eventID.
func (c *Controller) unlinkEventLocked(eventID string) bool {
	changed := false
	for id, l := range c.links {
		if l.EventID == eventID {
			delete(c.links, id)
			changed = true
		}
	}
	return changed
}
