package models

import (
	"fmt"
	"time"
)

// EntryStatus is the approval lifecycle state of a schedule entry.
type EntryStatus string

const (
	EntryStatusDraft    EntryStatus = "DRAFT"
	EntryStatusPending  EntryStatus = "PENDING"
	EntryStatusApproved EntryStatus = "APPROVED"
	EntryStatusRejected EntryStatus = "REJECTED"
)

// entryTransitions is the approval state machine: drafts enter review, and a
// pending entry is either approved or rejected. Approved entries change only
// through the change-request flow, which edits fields without leaving
// APPROVED; rejected entries return to the pool through regeneration.
var entryTransitions = map[EntryStatus][]EntryStatus{
	EntryStatusDraft:   {EntryStatusPending},
	EntryStatusPending: {EntryStatusApproved, EntryStatusRejected},
}

// CanTransition reports whether moving to target is a legal workflow step.
func (s EntryStatus) CanTransition(target EntryStatus) bool {
	for _, allowed := range entryTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ScheduleEntry is one placed weekly meeting: section, faculty, room and slot.
// Faculty and room stay nullable so a TBA entry can exist before assignment.
type ScheduleEntry struct {
	ID           string      `db:"id" json:"id"`
	SectionID    string      `db:"section_id" json:"section_id"`
	TermID       string      `db:"term_id" json:"term_id"`
	DepartmentID string      `db:"department_id" json:"department_id"`
	FacultyID    *string     `db:"faculty_id" json:"faculty_id,omitempty"`
	RoomID       *string     `db:"room_id" json:"room_id,omitempty"`
	DayOfWeek    int         `db:"day_of_week" json:"day_of_week"`
	StartMinute  int         `db:"start_minute" json:"start_minute"`
	EndMinute    int         `db:"end_minute" json:"end_minute"`
	Kind         MeetingKind `db:"kind" json:"kind"`
	Status       EntryStatus `db:"status" json:"status"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// Slot returns the entry's time slot.
func (e ScheduleEntry) Slot() TimeSlot {
	return TimeSlot{DayOfWeek: e.DayOfWeek, StartMinute: e.StartMinute, EndMinute: e.EndMinute}
}

// SharesFaculty reports whether both entries have the same assigned faculty.
func (e ScheduleEntry) SharesFaculty(other ScheduleEntry) bool {
	return e.FacultyID != nil && other.FacultyID != nil && *e.FacultyID == *other.FacultyID
}

// SharesRoom reports whether both entries occupy the same room.
func (e ScheduleEntry) SharesRoom(other ScheduleEntry) bool {
	return e.RoomID != nil && other.RoomID != nil && *e.RoomID == *other.RoomID
}

// ScheduleEntryFilter describes query params for listing entries.
type ScheduleEntryFilter struct {
	TermID       string
	DepartmentID string
	SectionID    string
	FacultyID    string
	RoomID       string
	Statuses     []EntryStatus
	DayOfWeek    int
	Page         int
	PageSize     int
}

// ConflictKind classifies a detected scheduling violation.
type ConflictKind string

const (
	ConflictFacultyDoubleBooking ConflictKind = "FACULTY_DOUBLE_BOOKING"
	ConflictRoomDoubleBooking    ConflictKind = "ROOM_DOUBLE_BOOKING"
	ConflictCapacityMismatch     ConflictKind = "CAPACITY_MISMATCH"
	ConflictRoomTypeMismatch     ConflictKind = "ROOM_TYPE_MISMATCH"
	ConflictFacultyUnavailable   ConflictKind = "FACULTY_UNAVAILABLE"
	ConflictRoomUnavailable      ConflictKind = "ROOM_UNAVAILABLE"
)

// Conflict reports a violation between an entry and either another entry or a
// resource constraint. EntryB is empty for single-entry resource violations.
type Conflict struct {
	Kind   ConflictKind `json:"kind"`
	EntryA string       `json:"entry_a"`
	EntryB string       `json:"entry_b,omitempty"`
	Reason string       `json:"reason"`
}

// TimetableConflictError carries detector findings through error returns when
// a transition must be refused. The conflicts themselves are ordinary data.
type TimetableConflictError struct {
	Message   string     `json:"message"`
	Conflicts []Conflict `json:"conflicts"`
}

func (e *TimetableConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (%d conflicts)", e.Message, len(e.Conflicts))
}

// UnplacedReason explains why the generator could not place a section.
type UnplacedReason string

const (
	UnplacedNoFaculty  UnplacedReason = "NO_FACULTY_AVAILABLE"
	UnplacedNoRoom     UnplacedReason = "NO_ROOM_AVAILABLE"
	UnplacedNoTimeSlot UnplacedReason = "NO_TIMESLOT_AVAILABLE"
)

// UnplacedSection records a section the generator had to defer, with reason.
type UnplacedSection struct {
	SectionID  string         `json:"section_id"`
	CourseCode string         `json:"course_code"`
	Reason     UnplacedReason `json:"reason"`
	Detail     string         `json:"detail,omitempty"`
}
