package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"postdeck/internal/calendar"
	"postdeck/internal/eventbus"
	"postdeck/internal/failure"
	"postdeck/internal/publisher"
	"postdeck/internal/storage"
	logx "postdeck/pkg/logx"
)

// Retry resolves a failed post. With opts.Date set it is rescheduled as a new
// yellow event. Otherwise the failure is classified: content issues open the
// post for editing and return a *ContentIssueError alongside the result;
// transient failures are republished asynchronously.
func (c *Controller) Retry(failedID string, opts RetryOptions) (RetryResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.failedIndex(failedID)
	if i < 0 {
		return RetryResult{}, notFound("failed post", failedID)
	}
	f := c.failed[i]
	cls := failure.Classify(f.Platform, f.Content, f.Error)

	if strings.TrimSpace(string(opts.Date)) != "" {
		return c.rescheduleLocked(f, cls, opts)
	}

	if cls.Type.IsContentIssue() {
		p, err := c.openFailedLocked(failedID)
		if err != nil {
			return RetryResult{}, err
		}
		c.saveLocked(storage.KeyPostContents)
		return RetryResult{Action: RetryEditing, Classification: cls, Post: &p},
			&ContentIssueError{PostID: failedID, Classification: cls}
	}

	if c.retrying[failedID] {
		return RetryResult{Action: RetryQueued, Classification: cls}, nil
	}
	if !nonEmpty(f.Content) {
		return RetryResult{}, calendar.Invalid("content", "is empty")
	}
	c.retrying[failedID] = true
	if err := c.runner.Go("retry."+failedID, func(ctx context.Context) { c.runRetry(ctx, f) }); err != nil {
		delete(c.retrying, failedID)
		return RetryResult{}, &TransientError{PostID: failedID, Classification: cls, Err: err}
	}
	c.log.Info("retry queued", logx.Post(f.Platform, f.ID), logx.String("reason", string(cls.Type)))
	return RetryResult{Action: RetryQueued, Classification: cls}, nil
}

func (c *Controller) rescheduleLocked(f FailedPost, cls failure.Classification, opts RetryOptions) (RetryResult, error) {
	ev, err := c.events.Add(opts.Date, f.Platform, opts.Time)
	if err != nil {
		return RetryResult{}, err
	}
	if err := c.events.SetContent(ev.ID, f.Content); err != nil {
		return RetryResult{}, err
	}
	ev.Content = f.Content
	if i := c.failedIndex(f.ID); i >= 0 {
		c.failed = append(c.failed[:i:i], c.failed[i+1:]...)
	}
	c.armLocked(opts.Date, ev)
	c.saveLocked(storage.KeyCalendarEvents, storage.KeyFailedPosts)

	c.log.Info("failed post rescheduled", logx.Post(f.Platform, f.ID), logx.String("event_id", ev.ID), logx.String("date", string(opts.Date)), logx.String("time", ev.Time))
	c.emit(eventbus.TopicScheduled, eventbus.PostEvent{ID: ev.ID, EventID: ev.ID, Platform: ev.Platform, DateKey: string(opts.Date), Time: ev.Time})
	loc := calendar.Located{Key: opts.Date, Event: ev}
	return RetryResult{Action: RetryRescheduled, Classification: cls, Scheduled: &loc}, nil
}

func (c *Controller) runRetry(ctx context.Context, f FailedPost) {
	out, err := c.pub.Publish(ctx, publisher.Request{ID: f.ID, Platform: f.Platform, Content: f.Content, ScheduledAt: c.now()})

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.retrying, f.ID)
	if err != nil {
		c.log.Info("retry interrupted", logx.Post(f.Platform, f.ID), logx.Err(err))
		return
	}
	i := c.failedIndex(f.ID)
	if i < 0 {
		c.log.Info("failed post removed during retry, outcome discarded", logx.Post(f.Platform, f.ID))
		return
	}
	now := c.now()

	if out.OK {
		url := out.URL
		if url == "" {
			url = publisher.PostURL(f.Platform, f.ID)
		}
		c.failed = append(c.failed[:i:i], c.failed[i+1:]...)
		c.published = append(c.published, PublishedPost{
			ID:          f.ID,
			Platform:    f.Platform,
			Content:     f.Content,
			Date:        calendar.KeyFor(now),
			Time:        calendar.ClockOf(now),
			PublishedAt: now,
			URL:         url,
		})
		c.saveLocked(storage.KeyFailedPosts, storage.KeyPublishedPosts)
		c.log.Info("retry published", logx.Post(f.Platform, f.ID), logx.String("url", url))
		c.emit(eventbus.TopicPublished, eventbus.PostEvent{ID: f.ID, EventID: f.EventID, Platform: f.Platform, URL: url})
		return
	}

	text := strings.TrimSpace(out.ErrorText)
	if text == "" {
		text = "publish failed"
	}
	msg := RetryFailedMessage(text)
	c.failed[i].Error = msg
	c.failed[i].Reason = failure.Classify(f.Platform, f.Content, text).Type
	c.failed[i].FailedAt = now
	c.saveLocked(storage.KeyFailedPosts)
	c.log.Warn("retry failed", logx.Post(f.Platform, f.ID), logx.String("error", text))
	c.emit(eventbus.TopicRetryFailed, eventbus.PostEvent{ID: f.ID, EventID: f.EventID, Platform: f.Platform, Error: msg, Reason: string(c.failed[i].Reason)})
}

// RetryFailedMessage is the error stored on a failed post after an
// unsuccessful retry.
func RetryFailedMessage(errText string) string {
	return fmt.Sprintf("Retry failed: %s. Try again later or reschedule.", strings.TrimRight(errText, "."))
}

func (c *Controller) DeleteFailed(failedID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.failedIndex(failedID)
	if i < 0 {
		return notFound("failed post", failedID)
	}
	c.failed = append(c.failed[:i:i], c.failed[i+1:]...)
	c.saveLocked(storage.KeyFailedPosts)
	return nil
}
