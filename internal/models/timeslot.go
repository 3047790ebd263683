package models

import (
	"fmt"
	"sort"
	"strings"
)

// Day-of-week indexes follow ISO ordering, Monday = 1.
const (
	Monday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayIndexMap = map[int]string{
	Monday:    "MONDAY",
	Tuesday:   "TUESDAY",
	Wednesday: "WEDNESDAY",
	Thursday:  "THURSDAY",
	Friday:    "FRIDAY",
	Saturday:  "SATURDAY",
	Sunday:    "SUNDAY",
}

var dayNameIndex = map[string]int{
	"MONDAY":    Monday,
	"TUESDAY":   Tuesday,
	"WEDNESDAY": Wednesday,
	"THURSDAY":  Thursday,
	"FRIDAY":    Friday,
	"SATURDAY":  Saturday,
	"SUNDAY":    Sunday,
}

// DayName returns the canonical upper-case name for a day index.
func DayName(day int) string {
	if name, ok := dayIndexMap[day]; ok {
		return name
	}
	return "MONDAY"
}

// DayIndex resolves a day name back to its index, 0 when unknown.
func DayIndex(name string) int {
	return dayNameIndex[strings.ToUpper(strings.TrimSpace(name))]
}

// TimeSlot is a half-open [start, end) interval on a single day. Times are
// minutes since midnight so grid arithmetic stays integral.
type TimeSlot struct {
	DayOfWeek   int `db:"day_of_week" json:"day_of_week"`
	StartMinute int `db:"start_minute" json:"start_minute"`
	EndMinute   int `db:"end_minute" json:"end_minute"`
}

// Overlaps reports whether two slots intersect on the same day.
func (t TimeSlot) Overlaps(other TimeSlot) bool {
	if t.DayOfWeek != other.DayOfWeek {
		return false
	}
	return t.StartMinute < other.EndMinute && other.StartMinute < t.EndMinute
}

// Duration returns the slot length in minutes.
func (t TimeSlot) Duration() int {
	return t.EndMinute - t.StartMinute
}

func (t TimeSlot) String() string {
	return fmt.Sprintf("%s %s-%s", DayName(t.DayOfWeek), MinutesToClock(t.StartMinute), MinutesToClock(t.EndMinute))
}

// MinutesToClock renders minutes since midnight as HH:MM.
func MinutesToClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ClockToMinutes parses HH:MM into minutes since midnight, -1 on bad input.
func ClockToMinutes(raw string) int {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d:%d", &h, &m); err != nil {
		return -1
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return -1
	}
	return h*60 + m
}

// BlackoutWindow marks a recurring weekly interval during which a faculty
// member or classroom is unavailable.
type BlackoutWindow struct {
	DayOfWeek   int `json:"day_of_week"`
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// Blocks reports whether the window intersects the given slot.
func (b BlackoutWindow) Blocks(slot TimeSlot) bool {
	return TimeSlot{DayOfWeek: b.DayOfWeek, StartMinute: b.StartMinute, EndMinute: b.EndMinute}.Overlaps(slot)
}

// TimeGrid is the master grid meetings are drawn from: a contiguous daily
// window sliced at a fixed granularity across a set of teaching days.
type TimeGrid struct {
	Days        []int
	StartMinute int
	EndMinute   int
	SlotMinutes int
}

// DefaultGrid covers 07:00-18:00 on Monday through Saturday at half-hour
// granularity.
func DefaultGrid() TimeGrid {
	return TimeGrid{
		Days:        []int{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday},
		StartMinute: 7 * 60,
		EndMinute:   18 * 60,
		SlotMinutes: 30,
	}
}

// Valid reports whether the grid is internally consistent.
func (g TimeGrid) Valid() bool {
	return len(g.Days) > 0 && g.SlotMinutes > 0 && g.StartMinute >= 0 &&
		g.EndMinute > g.StartMinute && (g.EndMinute-g.StartMinute)%g.SlotMinutes == 0
}

// StartTimes enumerates every grid-aligned start minute that can hold a
// meeting of the given duration.
func (g TimeGrid) StartTimes(durationMinutes int) []int {
	if durationMinutes <= 0 || durationMinutes > g.EndMinute-g.StartMinute {
		return nil
	}
	var starts []int
	for m := g.StartMinute; m+durationMinutes <= g.EndMinute; m += g.SlotMinutes {
		starts = append(starts, m)
	}
	return starts
}

// OrderedDays returns grid days reordered so that preferred days come first;
// unknown preferences are ignored, remaining days keep grid order.
func (g TimeGrid) OrderedDays(preference []int) []int {
	if len(preference) == 0 {
		out := make([]int, len(g.Days))
		copy(out, g.Days)
		return out
	}
	inGrid := make(map[int]bool, len(g.Days))
	for _, d := range g.Days {
		inGrid[d] = true
	}
	seen := make(map[int]bool, len(g.Days))
	out := make([]int, 0, len(g.Days))
	for _, d := range preference {
		if inGrid[d] && !seen[d] {
			out = append(out, d)
			seen[d] = true
		}
	}
	rest := make([]int, 0, len(g.Days))
	for _, d := range g.Days {
		if !seen[d] {
			rest = append(rest, d)
		}
	}
	sort.Ints(rest)
	return append(out, rest...)
}
