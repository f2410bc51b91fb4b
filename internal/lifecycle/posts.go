package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"postdeck/internal/calendar"
	"postdeck/internal/storage"
	logx "postdeck/pkg/logx"
)

// CreatePost opens an empty post for platform and makes it active.
func (c *Controller) CreatePost(platform string) (OpenPost, error) {
	platform = strings.TrimSpace(platform)
	if platform == "" {
		return OpenPost{}, calendar.Invalid("platform", "is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.addOpenLocked(OpenPost{ID: c.newID(), Platform: platform, Origin: OriginNew})
	c.saveLocked(storage.KeyPostContents)
	return p, nil
}

// UpdateContent replaces the buffer of an open post. Linked events receive
// the same content.
func (c *Controller) UpdateContent(openID, content string) (OpenPost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.open[openID]
	if !ok {
		return OpenPost{}, notFound("open post", openID)
	}
	p.Content = content
	c.active = openID
	if c.mirrorLocked(openID, content) {
		c.saveLocked(storage.KeyCalendarEvents)
	}
	c.saveLocked(storage.KeyPostContents)
	return *p, nil
}

// SeedContent fills an open post from the generator.
func (c *Controller) SeedContent(ctx context.Context, openID, prompt string) (OpenPost, error) {
	if c.gen == nil {
		return OpenPost{}, fmt.Errorf("content generator not configured")
	}
	c.mu.Lock()
	_, ok := c.open[openID]
	c.mu.Unlock()
	if !ok {
		return OpenPost{}, notFound("open post", openID)
	}

	text, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return OpenPost{}, fmt.Errorf("generate: %w", err)
	}
	return c.UpdateContent(openID, text)
}

// ClosePost discards an open post and its link.
func (c *Controller) ClosePost(openID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.open[openID]; !ok {
		return notFound("open post", openID)
	}
	c.closeLocked(openID)
	c.saveLocked(storage.KeyPostContents)
	return nil
}

// ClonePost opens a copy of an open post. The original is unaffected.
func (c *Controller) ClonePost(openID string) (OpenPost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	src, ok := c.open[openID]
	if !ok {
		return OpenPost{}, notFound("open post", openID)
	}
	p := c.addOpenLocked(OpenPost{
		ID:       c.newID(),
		Platform: src.Platform,
		Content:  src.Content,
		Origin:   OriginClone,
		OriginID: src.ID,
	})
	c.saveLocked(storage.KeyPostContents)
	return p, nil
}

// SaveDraft upserts a draft from the open post's buffer. The post stays open.
func (c *Controller) SaveDraft(openID string) (DraftPost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.open[openID]
	if !ok {
		return DraftPost{}, notFound("open post", openID)
	}
	d := DraftPost{ID: p.ID, Platform: p.Platform, Content: p.Content, SavedAt: c.now()}
	if i := c.draftIndex(p.ID); i >= 0 {
		c.drafts[i] = d
	} else {
		c.drafts = append(c.drafts, d)
	}
	c.saveLocked(storage.KeyDraftPosts)
	c.log.Debug("draft saved", logx.Post(d.Platform, d.ID))
	return d, nil
}

// EditDraft opens a draft for editing, reusing the buffer if it is already
// open. The open post shares the draft's id.
func (c *Controller) EditDraft(draftID string) (OpenPost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.draftIndex(draftID)
	if i < 0 {
		return OpenPost{}, notFound("draft", draftID)
	}
	if p, ok := c.open[draftID]; ok {
		c.active = draftID
		return *p, nil
	}
	d := c.drafts[i]
	p := c.addOpenLocked(OpenPost{ID: d.ID, Platform: d.Platform, Content: d.Content, Origin: OriginDraft, OriginID: d.ID})
	c.saveLocked(storage.KeyPostContents)
	return p, nil
}

func (c *Controller) DeleteDraft(draftID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.draftIndex(draftID)
	if i < 0 {
		return notFound("draft", draftID)
	}
	c.drafts = append(c.drafts[:i:i], c.drafts[i+1:]...)
	c.saveLocked(storage.KeyDraftPosts)
	return nil
}

func (c *Controller) addOpenLocked(p OpenPost) OpenPost {
	cp := p
	c.open[p.ID] = &cp
	c.order = append(c.order, p.ID)
	c.active = p.ID
	return p
}

func (c *Controller) closeLocked(openID string) {
	delete(c.open, openID)
	delete(c.links, openID)
	for i, id := range c.order {
		if id == openID {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	if c.active == openID {
		c.active = ""
		if n := len(c.order); n > 0 {
			c.active = c.order[n-1]
		}
	}
}

// resolveOriginLocked removes the draft or failed record an open post was
// created from once it has been resubmitted. It returns the storage keys
// that changed.
func (c *Controller) resolveOriginLocked(p *OpenPost) []string {
	switch p.Origin {
	case OriginDraft:
		if i := c.draftIndex(p.OriginID); i >= 0 {
			c.drafts = append(c.drafts[:i:i], c.drafts[i+1:]...)
			return []string{storage.KeyDraftPosts}
		}
	case OriginFailed:
		if i := c.failedIndex(p.OriginID); i >= 0 {
			c.failed = append(c.failed[:i:i], c.failed[i+1:]...)
			return []string{storage.KeyFailedPosts}
		}
	}
	return nil
}

func (c *Controller) draftIndex(id string) int {
	for i, d := range c.drafts {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) failedIndex(id string) int {
	for i, f := range c.failed {
		if f.ID == id {
			return i
		}
	}
	return -1
}
