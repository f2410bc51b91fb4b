package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"postdeck/internal/eventbus"
	logx "postdeck/pkg/logx"
)

// Watch forwards lifecycle failures from the bus until ctx is done.
// Published posts are forwarded only when includePublished is set.
func (s *Service) Watch(ctx context.Context, bus eventbus.Bus, includePublished bool) {
	ch, unsubscribe := bus.Subscribe(64)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			n, ok := FromEvent(ev, includePublished)
			if !ok {
				continue
			}
			if err := s.Notify(ctx, n); err != nil && !errors.Is(err, ErrDisabled) {
				s.log.Debug("notify failed", logx.String("topic", ev.Type), logx.Err(err))
			}
		}
	}
}

// FromEvent renders a lifecycle bus event as a notification.
func FromEvent(ev eventbus.Event, includePublished bool) (Notification, bool) {
	pe, ok := ev.Data.(eventbus.PostEvent)
	if !ok {
		return Notification{}, false
	}
	when := strings.TrimSpace(pe.DateKey + " " + pe.Time)
	switch ev.Type {
	case eventbus.TopicFailed:
		return Notification{
			Priority: PriorityAlert,
			Topic:    ev.Type,
			Text:     fmt.Sprintf("%s post %s failed (%s)\nscheduled: %s\nerror: %s", pe.Platform, pe.EventID, pe.Reason, when, pe.Error),
		}, true
	case eventbus.TopicRetryFailed:
		return Notification{
			Priority: PriorityWarn,
			Topic:    ev.Type,
			Text:     fmt.Sprintf("%s post %s: %s", pe.Platform, pe.ID, pe.Error),
		}, true
	case eventbus.TopicPublished:
		if !includePublished {
			return Notification{}, false
		}
		return Notification{
			Priority: PriorityInfo,
			Topic:    ev.Type,
			Text:     fmt.Sprintf("%s post published: %s", pe.Platform, pe.URL),
		}, true
	}
	return Notification{}, false
}
