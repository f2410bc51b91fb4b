package publisher

import (
	"context"
	"errors"
	"strings"
)

// Template is the offline content generator used when no AI backend is
// configured. It expands the prompt into a short post.
type Template struct {
	Hashtags []string
}

func (g Template) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt is empty")
	}
	var b strings.Builder
	b.WriteString(strings.ToUpper(prompt[:1]))
	b.WriteString(prompt[1:])
	if !strings.HasSuffix(prompt, ".") && !strings.HasSuffix(prompt, "!") && !strings.HasSuffix(prompt, "?") {
		b.WriteString(".")
	}
	for _, h := range g.Hashtags {
		h = strings.TrimSpace(strings.TrimPrefix(h, "#"))
		if h == "" {
			continue
		}
		b.WriteString(" #")
		b.WriteString(h)
	}
	return b.String(), nil
}
