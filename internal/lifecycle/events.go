package lifecycle

import (
	"strings"

	"postdeck/internal/calendar"
	"postdeck/internal/eventbus"
	"postdeck/internal/storage"
	logx "postdeck/pkg/logx"
)

// Drop applies a drag-and-drop gesture: a place creates a yellow event for
// the platform, a move relocates a yellow event. Either way the event's
// timer is (re)armed.
func (c *Controller) Drop(d calendar.Drop) (calendar.Located, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, clock, err := c.placement.Resolve(d)
	if err != nil {
		return calendar.Located{}, err
	}

	var ev calendar.Event
	switch d.Kind {
	case calendar.DropPlace:
		ev, err = c.events.Add(key, d.Platform, clock)
		if err != nil {
			return calendar.Located{}, err
		}
		c.emit(eventbus.TopicScheduled, eventbus.PostEvent{ID: ev.ID, EventID: ev.ID, Platform: ev.Platform, DateKey: string(key), Time: ev.Time})
	default:
		ev, err = c.events.Move(d.EventID, d.Source, key, clock)
		if err != nil {
			return calendar.Located{}, err
		}
		c.relinkLocked(ev.ID, key)
	}
	c.armLocked(key, ev)
	c.saveLocked(storage.KeyCalendarEvents, storage.KeyPostContents)
	c.log.Debug("drop applied", logx.String("kind", string(d.Kind)), logx.String("event_id", ev.ID), logx.String("date", string(key)), logx.String("time", ev.Time))
	return calendar.Located{Key: key, Event: ev}, nil
}

// SetEventTime moves a yellow event within its day.
func (c *Controller) SetEventTime(key calendar.DateKey, id, clock string) (calendar.Event, error) {
	if strings.TrimSpace(clock) == "" {
		return calendar.Event{}, calendar.Invalid("time", "is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ev, err := c.events.Move(id, key, key, clock)
	if err != nil {
		return calendar.Event{}, err
	}
	c.armLocked(key, ev)
	c.saveLocked(storage.KeyCalendarEvents)
	return ev, nil
}

// DeleteEvent removes an event, cancels its timer and drops links to it.
// Deleting an absent event is a no-op.
func (c *Controller) DeleteEvent(key calendar.DateKey, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.events.Delete(key, id) {
		return false
	}
	c.disarmLocked(id)
	keys := []string{storage.KeyCalendarEvents}
	if c.unlinkEventLocked(id) {
		keys = append(keys, storage.KeyPostContents)
	}
	c.saveLocked(keys...)
	c.log.Debug("event deleted", logx.String("event_id", id), logx.String("date", string(key)))
	return true
}
