package models

import (
	"time"

	"github.com/lib/pq"
)

// Faculty is a teaching staff member eligible for section assignment.
// Specializations are subject tags used as a soft ranking signal unless the
// generator is told to treat them as a hard filter.
type Faculty struct {
	ID              string           `db:"id" json:"id"`
	FullName        string           `db:"full_name" json:"full_name"`
	DepartmentID    string           `db:"department_id" json:"department_id"`
	Specializations pq.StringArray   `db:"specializations" json:"specializations"`
	MaxWeeklyHours  float64          `db:"max_weekly_hours" json:"max_weekly_hours"`
	Unavailable     []BlackoutWindow `db:"-" json:"unavailable,omitempty"`
	Active          bool             `db:"active" json:"active"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// HasSpecialization reports whether the faculty member carries the tag.
func (f Faculty) HasSpecialization(tag string) bool {
	if tag == "" {
		return false
	}
	for _, s := range f.Specializations {
		if s == tag {
			return true
		}
	}
	return false
}

// AvailableAt reports whether no blackout window intersects the slot.
func (f Faculty) AvailableAt(slot TimeSlot) bool {
	for _, w := range f.Unavailable {
		if w.Blocks(slot) {
			return false
		}
	}
	return true
}
