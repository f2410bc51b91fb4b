package failure

import (
	"sort"
	"strings"
)

// DefaultLimit applies to platforms missing from the table.
const DefaultLimit = 5000

var limits = map[string]int{
	"twitter":   280,
	"instagram": 2200,
	"linkedin":  3000,
	"facebook":  63206,
	"pinterest": 500,
	"tiktok":    2200,
	"threads":   500,
	"bluesky":   300,
	"youtube":   5000,
}

var displayNames = map[string]string{
	"twitter":   "Twitter",
	"instagram": "Instagram",
	"linkedin":  "LinkedIn",
	"facebook":  "Facebook",
	"pinterest": "Pinterest",
	"tiktok":    "TikTok",
	"threads":   "Threads",
	"bluesky":   "Bluesky",
	"youtube":   "YouTube",
}

// Limit returns the character limit for a platform (case-insensitive).
func Limit(platform string) int {
	if n, ok := limits[strings.ToLower(strings.TrimSpace(platform))]; ok {
		return n
	}
	return DefaultLimit
}

// PlatformLimit is one row of the limit table.
type PlatformLimit struct {
	Platform string `json:"platform"`
	Limit    int    `json:"limit"`
}

// Limits returns the table sorted by platform name.
func Limits() []PlatformLimit {
	out := make([]PlatformLimit, 0, len(limits))
	for k, n := range limits {
		out = append(out, PlatformLimit{Platform: displayNames[k], Limit: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out
}
