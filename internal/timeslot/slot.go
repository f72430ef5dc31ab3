package timeslot

import (
	"errors"
	"fmt"
	"time"
)

// ErrClockBroken is returned when the wall clock does not format into one of
// the 24 known slots. Callers treat it as fatal.
var ErrClockBroken = errors.New("timeslot: clock does not map to a known slot")

// Slot is one of the 24 hour-of-day buckets, in 12-hour clock form.
type Slot struct {
	hour int // 1-12
	pm   bool
}

// All lists every slot in day order, starting at 12am.
var All = func() []Slot {
	slots := make([]Slot, 0, 24)
	for h := 0; h < 24; h++ {
		slots = append(slots, FromHour(h))
	}
	return slots
}()

var byName = func() map[string]Slot {
	m := make(map[string]Slot, len(All))
	for _, s := range All {
		m[s.String()] = s
	}
	return m
}()

// FromHour maps a 24-hour clock hour (0-23) to its slot.
func FromHour(h int) Slot {
	h = ((h % 24) + 24) % 24
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return Slot{hour: h12, pm: h >= 12}
}

// Parse returns the slot named by s, e.g. "03pm". Only the 24 canonical
// names are accepted.
func Parse(s string) (Slot, error) {
	slot, ok := byName[s]
	if !ok {
		return Slot{}, fmt.Errorf("timeslot: unknown slot %q", s)
	}
	return slot, nil
}

// String returns the canonical two-digit hour plus meridiem, e.g. "03pm".
func (s Slot) String() string {
	m := "am"
	if s.pm {
		m = "pm"
	}
	return fmt.Sprintf("%02d%s", s.hour, m)
}

// Hour24 returns the 24-hour clock hour the slot covers.
func (s Slot) Hour24() int {
	h := s.hour % 12
	if s.pm {
		h += 12
	}
	return h
}

// IsZero reports whether s is the zero Slot, which names no hour.
func (s Slot) IsZero() bool { return s.hour == 0 }

// Current resolves the slot for the clock's local time.
func Current(c Clock) (Slot, error) {
	return At(c.Now())
}

// At resolves the slot for t in t's location. The hour is formatted the way
// the remote catalog names its files and then parsed back, so any mismatch
// surfaces as ErrClockBroken rather than a bad URL.
func At(t time.Time) (Slot, error) {
	name := t.Format("03pm")
	slot, err := Parse(name)
	if err != nil {
		return Slot{}, fmt.Errorf("%w: formatted %q", ErrClockBroken, name)
	}
	return slot, nil
}

// IsBoundary reports whether t falls in the one-second window at the top of
// an hour.
func IsBoundary(t time.Time) bool {
	return t.Minute() == 0 && t.Second() == 0
}

// NextBoundary returns the start of the next hour after t, in t's location.
func NextBoundary(t time.Time) time.Time {
	top := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	return top.Add(time.Hour)
}
