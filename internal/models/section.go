package models

import "time"

// MeetingKind distinguishes lecture and laboratory meetings; rooms are typed
// accordingly.
type MeetingKind string

const (
	MeetingLecture MeetingKind = "LECTURE"
	MeetingLab     MeetingKind = "LAB"
)

// Meeting is one weekly occurrence a section needs placed on the grid.
type Meeting struct {
	Kind            MeetingKind `json:"kind"`
	DurationMinutes int         `json:"duration_minutes"`
}

// Section is one offering of a course in a specific term. Catalog fields are
// snapshotted at creation time so later course edits cannot drift a committed
// timetable.
type Section struct {
	ID           string    `db:"id" json:"id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	TermID       string    `db:"term_id" json:"term_id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Code         string    `db:"code" json:"code"`
	CourseCode   string    `db:"course_code" json:"course_code"`
	CourseName   string    `db:"course_name" json:"course_name"`
	SubjectTag   string    `db:"subject_tag" json:"subject_tag"`
	LectureHours float64   `db:"lecture_hours" json:"lecture_hours"`
	LabHours     float64   `db:"lab_hours" json:"lab_hours"`
	Capacity     int       `db:"capacity" json:"capacity"`
	Pattern      []Meeting `db:"-" json:"meeting_pattern,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Meetings returns the explicit pattern when set, otherwise derives one from
// the weekly hour requirements.
func (s Section) Meetings() []Meeting {
	if len(s.Pattern) > 0 {
		return s.Pattern
	}
	return DeriveMeetingPattern(s.LectureHours, s.LabHours)
}

// WeeklyMinutes totals the section's required contact time.
func (s Section) WeeklyMinutes() int {
	total := 0
	for _, m := range s.Meetings() {
		total += m.DurationMinutes
	}
	return total
}

// DeriveMeetingPattern splits weekly hours into placeable meetings. Lecture
// loads above two hours are split into two equal meetings so they can land on
// separate days; lab hours stay contiguous because lab work does not split
// cleanly.
func DeriveMeetingPattern(lectureHours, labHours float64) []Meeting {
	var pattern []Meeting
	if lectureHours > 0 {
		minutes := int(lectureHours * 60)
		if lectureHours > 2 && minutes%2 == 0 {
			half := minutes / 2
			pattern = append(pattern,
				Meeting{Kind: MeetingLecture, DurationMinutes: half},
				Meeting{Kind: MeetingLecture, DurationMinutes: half},
			)
		} else {
			pattern = append(pattern, Meeting{Kind: MeetingLecture, DurationMinutes: minutes})
		}
	}
	if labHours > 0 {
		pattern = append(pattern, Meeting{Kind: MeetingLab, DurationMinutes: int(labHours * 60)})
	}
	return pattern
}
