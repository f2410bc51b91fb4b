package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateKey identifies a calendar day. The month component is 0-based and
// nothing is zero padded, so 2024-03-05 is "2024-2-5".
type DateKey string

// KeyFor returns the bucket key for the calendar day of t (in t's location).
func KeyFor(t time.Time) DateKey {
	return DateKey(fmt.Sprintf("%d-%d-%d", t.Year(), int(t.Month())-1, t.Day()))
}

// ParseDateKey validates k and returns its year, 1-based month and day. Only
// the canonical form produced by KeyFor is accepted, so one day maps to one
// bucket.
func ParseDateKey(k DateKey) (year int, month time.Month, day int, err error) {
	parts := strings.Split(string(k), "-")
	if len(parts) != 3 {
		return 0, 0, 0, invalid("date", "%q is not a date key", k)
	}
	nums := [3]int{}
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 0 {
			return 0, 0, 0, invalid("date", "%q is not a date key", k)
		}
		nums[i] = n
	}
	year, m0, day := nums[0], nums[1], nums[2]
	if m0 > 11 || day < 1 {
		return 0, 0, 0, invalid("date", "%q is out of range", k)
	}
	// time.Date normalizes overflow (Feb 30 -> Mar 2); reject it.
	t := time.Date(year, time.Month(m0+1), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != m0+1 {
		return 0, 0, 0, invalid("date", "%q is not a real day", k)
	}
	if KeyFor(t) != k {
		return 0, 0, 0, invalid("date", "%q is not in canonical form (want %q)", k, KeyFor(t))
	}
	return year, time.Month(m0 + 1), day, nil
}

// Day returns midnight of k in loc.
func (k DateKey) Day(loc *time.Location) (time.Time, error) {
	y, m, d, err := ParseDateKey(k)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
}

// At combines k and an "HH:MM" clock into an instant in loc.
func (k DateKey) At(clock string, loc *time.Location) (time.Time, error) {
	day, err := k.Day(loc)
	if err != nil {
		return time.Time{}, err
	}
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location()), nil
}

// ParseClock parses a 24h "HH:MM" clock. A single-digit hour is accepted.
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return 0, 0, invalid("time", "%q is not HH:MM", s)
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, invalid("time", "%q is not HH:MM", s)
	}
	return h, m, nil
}

// FormatClock renders hour and minute as zero-padded "HH:MM".
func FormatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// ClockOf returns the "HH:MM" clock of t.
func ClockOf(t time.Time) string { return FormatClock(t.Hour(), t.Minute()) }

// normalizeClock re-renders a valid clock in canonical zero-padded form so
// lexical order matches chronological order inside a bucket.
func normalizeClock(s string) (string, error) {
	h, m, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return FormatClock(h, m), nil
}
