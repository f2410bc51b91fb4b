// Package ics renders the content calendar as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	ical "github.com/arran4/golang-ical"

	"postdeck/internal/calendar"
)

const (
	ProductID = "-//postdeck//content calendar//EN"
	// SlotLength is the DTEND offset of each exported event.
	SlotLength = calendar.SlotMinutes * time.Minute

	summaryRunes = 60
)

// Options tunes the export.
type Options struct {
	Location *time.Location
	// Stamp is written as DTSTAMP; zero uses time.Now.
	Stamp time.Time
	// Name sets X-WR-CALNAME when non-empty.
	Name string
}

// Build converts calendar buckets into a VCALENDAR. Events with an invalid
// key or time are skipped and counted.
func Build(events map[calendar.DateKey][]calendar.Event, opt Options) (*ical.Calendar, int) {
	loc := opt.Location
	if loc == nil {
		loc = time.Local
	}
	stamp := opt.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if opt.Name != "" {
		cal.SetXWRCalName(opt.Name)
	}

	keys := make([]calendar.DateKey, 0, len(events))
	for k := range events {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	skipped := 0
	for _, key := range keys {
		for _, ev := range events[key] {
			start, err := key.At(ev.Time, loc)
			if err != nil {
				skipped++
				continue
			}
			ve := cal.AddEvent(ev.ID + "@postdeck")
			ve.SetDtStampTime(stamp)
			ve.SetStartAt(start)
			ve.SetEndAt(start.Add(SlotLength))
			ve.SetSummary(Summary(ev))
			if ev.Content != "" {
				ve.SetDescription(ev.Content)
			}
			if ev.URL != "" {
				ve.SetURL(ev.URL)
			}
			ve.SetProperty(ical.ComponentPropertyStatus, status(ev))
			ve.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(ev.Platform))
		}
	}
	return cal, skipped
}

// Write serializes the calendar to w.
func Write(w io.Writer, events map[calendar.DateKey][]calendar.Event, opt Options) (int, error) {
	cal, skipped := Build(events, opt)
	_, err := io.WriteString(w, cal.Serialize())
	return skipped, err
}

// Summary is the one-line title of an exported event.
func Summary(ev calendar.Event) string {
	text := strings.Join(strings.Fields(ev.Content), " ")
	if text == "" {
		text = "(no content)"
	}
	if utf8.RuneCountInString(text) > summaryRunes {
		r := []rune(text)
		text = string(r[:summaryRunes-1]) + "…"
	}
	mark := ""
	switch ev.NoteType {
	case calendar.NoteGreen:
		mark = " ✓"
	case calendar.NoteRed:
		mark = " ✗"
	}
	return fmt.Sprintf("[%s]%s %s", ev.Platform, mark, text)
}

func status(ev calendar.Event) string {
	switch ev.NoteType {
	case calendar.NoteGreen:
		return "CONFIRMED"
	case calendar.NoteRed:
		return "CANCELLED"
	default:
		return "TENTATIVE"
	}
}
