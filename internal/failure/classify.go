// Package failure classifies failed posts into content issues (edit before
// resubmitting) and transient failures (retry or reschedule).
package failure

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type Type string

const (
	CharacterLimit Type = "character_limit"
	Connection     Type = "connection"
	Authentication Type = "authentication"
	Policy         Type = "policy"
	Other          Type = "other"
)

// IsContentIssue reports whether the failure can only be fixed by editing.
func (t Type) IsContentIssue() bool { return t == CharacterLimit || t == Policy }

// IsTransient reports whether a retry without edits may succeed.
func (t Type) IsTransient() bool { return !t.IsContentIssue() }

type Classification struct {
	Type          Type   `json:"type"`
	Message       string `json:"message"`
	CurrentLength int    `json:"currentLength"`
	Limit         int    `json:"limit"`
}

// Classify maps a failed post to a reason. Checks run in a fixed order and
// the first match wins; length is counted in characters.
func Classify(platform, content, errorText string) Classification {
	limit := Limit(platform)
	length := utf8.RuneCountInString(content)
	errText := strings.ToLower(errorText)
	c := Classification{CurrentLength: length, Limit: limit}

	switch {
	case length > limit || containsAny(errText, "character", "limit"):
		c.Type = CharacterLimit
		if length > limit {
			c.Message = fmt.Sprintf("Content is %d characters, %d over the %d character limit for %s.", length, length-limit, limit, platformName(platform))
		} else {
			c.Message = fmt.Sprintf("%s rejected the post for its length. Shorten it and resubmit.", platformName(platform))
		}
	case containsAny(errText, "network", "timeout", "connection"):
		c.Type = Connection
		c.Message = "Could not reach the platform. Retry or reschedule the post."
	case containsAny(errText, "auth"):
		c.Type = Authentication
		c.Message = fmt.Sprintf("The %s account needs to be reconnected before retrying.", platformName(platform))
	case containsAny(errText, "policy", "violation"):
		c.Type = Policy
		c.Message = "The post was flagged by the platform's content policy. Edit it and resubmit."
	default:
		c.Type = Other
		c.Message = "Publishing failed for an unknown reason. Retry or reschedule the post."
	}
	return c
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func platformName(p string) string {
	if n, ok := displayNames[strings.ToLower(strings.TrimSpace(p))]; ok {
		return n
	}
	if strings.TrimSpace(p) == "" {
		return "the platform"
	}
	return p
}
