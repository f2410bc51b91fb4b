package calendar

import "math"

const (
	// SlotMinutes is the drop grid resolution.
	SlotMinutes = 15
	// SlotsPerDay is the number of distinct snapped positions in a day column.
	SlotsPerDay   = 24 * 60 / SlotMinutes
	minutesPerDay = 24 * 60
	lastSlot      = minutesPerDay - SlotMinutes
)

// Slot is a snapped time of day.
type Slot struct {
	Hour   int
	Minute int
}

// Snap maps a pointer offset y inside a day column of the given pixel height
// to the nearest 15 minute slot. Offsets outside [0, height) are clamped, and
// the result never rounds past 23:45.
func Snap(y, height float64) Slot {
	if height <= 0 || math.IsNaN(y) || y <= 0 {
		return Slot{}
	}
	if y > height {
		y = height
	}
	total := y / height * minutesPerDay
	snapped := int(math.Round(total/SlotMinutes)) * SlotMinutes
	if snapped > lastSlot {
		snapped = lastSlot
	}
	return Slot{Hour: snapped / 60, Minute: snapped % 60}
}

// Minutes returns the slot as minutes since midnight.
func (s Slot) Minutes() int { return s.Hour*60 + s.Minute }

// Clock renders the slot as "HH:MM".
func (s Slot) Clock() string { return FormatClock(s.Hour, s.Minute) }

// Offset is the pixel offset of the slot's top edge in a column of the given
// height. Snap(s.Offset(h), h) == s.
func (s Slot) Offset(height float64) float64 {
	return float64(s.Minutes()) / minutesPerDay * height
}
