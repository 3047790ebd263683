package models

import "time"

// RoomType constrains which meeting kinds a classroom can host.
type RoomType string

const (
	RoomLecture RoomType = "LECTURE"
	RoomLab     RoomType = "LAB"
	RoomShared  RoomType = "SHARED"
)

// Classroom is a schedulable room. The Shared flag widens it to sections
// outside its owning department; a SHARED room type additionally hosts both
// lecture and lab meetings.
type Classroom struct {
	ID           string           `db:"id" json:"id"`
	Code         string           `db:"code" json:"code"`
	DepartmentID string           `db:"department_id" json:"department_id"`
	Capacity     int              `db:"capacity" json:"capacity"`
	Type         RoomType         `db:"room_type" json:"room_type"`
	Shared       bool             `db:"shared" json:"shared"`
	Unavailable  []BlackoutWindow `db:"-" json:"unavailable,omitempty"`
	Active       bool             `db:"active" json:"active"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// SupportsKind reports whether the room type can host the meeting kind.
// Capacity is checked separately and is never waived.
func (c Classroom) SupportsKind(kind MeetingKind) bool {
	switch c.Type {
	case RoomShared:
		return true
	case RoomLecture:
		return kind == MeetingLecture
	case RoomLab:
		return kind == MeetingLab
	}
	return false
}

// AvailableAt reports whether no blackout window intersects the slot.
func (c Classroom) AvailableAt(slot TimeSlot) bool {
	for _, w := range c.Unavailable {
		if w.Blocks(slot) {
			return false
		}
	}
	return true
}
