package calendar

import (
	"strings"
	"time"
)

// DefaultHour is the time of day used for whole-day drops on future dates.
const DefaultHour = 9

type DropKind string

const (
	DropPlace DropKind = "place"
	DropMove  DropKind = "move"
)

// Drop is a drag-and-drop gesture. A place carries a platform, a move carries
// the event id and its source bucket. The target time comes from Time, from a
// pixel offset (Y within a column of Height), or from the defaulting rule.
type Drop struct {
	Kind     DropKind `json:"kind"`
	Platform string   `json:"platform,omitempty"`
	EventID  string   `json:"eventId,omitempty"`
	Source   DateKey  `json:"sourceDateKey,omitempty"`
	Target   DateKey  `json:"target"`
	Time     string   `json:"time,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Height   float64  `json:"height,omitempty"`
}

// Placement resolves drop targets and enforces the no-past-datetime rule.
type Placement struct {
	now         func() time.Time
	loc         *time.Location
	defaultHour int
}

// NewPlacement builds a placement engine. now defaults to time.Now and loc
// to time.Local.
func NewPlacement(now func() time.Time, loc *time.Location) Placement {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return Placement{now: now, loc: loc, defaultHour: DefaultHour}
}

// Now returns the current instant in the placement's location.
func (p Placement) Now() time.Time { return p.now().In(p.loc) }

func (p Placement) Location() *time.Location { return p.loc }

// WithDefaultHour returns a copy using hour for whole-day drops on future
// dates. Out-of-range hours keep the current value.
func (p Placement) WithDefaultHour(hour int) Placement {
	if hour >= 0 && hour <= 23 {
		p.defaultHour = hour
	}
	return p
}

// Today returns the bucket key of the current day.
func (p Placement) Today() DateKey { return KeyFor(p.Now()) }

// DefaultClock applies the whole-day defaulting rule: the next full hour when
// key is today, otherwise the default hour (09:00 unless overridden).
func (p Placement) DefaultClock(key DateKey) (string, error) {
	if _, _, _, err := ParseDateKey(key); err != nil {
		return "", err
	}
	now := p.Now()
	if key != KeyFor(now) {
		return FormatClock(p.defaultHour, 0), nil
	}
	next := now.Hour() + 1
	if next > 23 {
		return "", invalid("time", "no remaining slots today")
	}
	return FormatClock(next, 0), nil
}

// Check rejects (key, clock) targets earlier than now.
func (p Placement) Check(key DateKey, clock string) (time.Time, error) {
	at, err := key.At(clock, p.loc)
	if err != nil {
		return time.Time{}, err
	}
	if at.Before(p.Now()) {
		return time.Time{}, invalid("time", "%s %s is in the past", key, clock)
	}
	return at, nil
}

// Resolve turns a drop into a concrete target. For a move without an explicit
// time the returned clock is empty, meaning "keep the event's time".
func (p Placement) Resolve(d Drop) (DateKey, string, error) {
	if _, _, _, err := ParseDateKey(d.Target); err != nil {
		return "", "", err
	}
	switch d.Kind {
	case DropPlace:
		if strings.TrimSpace(d.Platform) == "" {
			return "", "", invalid("platform", "is required")
		}
	case DropMove:
		if strings.TrimSpace(d.EventID) == "" {
			return "", "", invalid("eventId", "is required")
		}
		if _, _, _, err := ParseDateKey(d.Source); err != nil {
			return "", "", err
		}
	default:
		return "", "", invalid("kind", "unknown drop kind %q", d.Kind)
	}

	switch {
	case strings.TrimSpace(d.Time) != "":
		clock, err := normalizeClock(d.Time)
		return d.Target, clock, err
	case d.Y != nil:
		if d.Height <= 0 {
			return "", "", invalid("height", "must be positive")
		}
		return d.Target, Snap(*d.Y, d.Height).Clock(), nil
	case d.Kind == DropPlace:
		clock, err := p.DefaultClock(d.Target)
		return d.Target, clock, err
	default:
		return d.Target, "", nil
	}
}
