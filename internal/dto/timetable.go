package dto

// TimetableQuery selects the term for a department timetable view.
type TimetableQuery struct {
	TermID string `form:"termId" json:"termId" validate:"required"`
}

// TimetableCell is one rendered entry in the weekly grid.
type TimetableCell struct {
	EntryID     string `json:"entry_id"`
	SectionCode string `json:"section_code"`
	CourseCode  string `json:"course_code"`
	FacultyName string `json:"faculty_name,omitempty"`
	RoomCode    string `json:"room_code,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
}

// TimetableDay groups cells for one day of the week.
type TimetableDay struct {
	DayOfWeek int             `json:"day_of_week"`
	DayName   string          `json:"day_name"`
	Cells     []TimetableCell `json:"cells"`
}

// TimetableView is the approved weekly grid for a department/term.
type TimetableView struct {
	DepartmentID string         `json:"department_id"`
	TermID       string         `json:"term_id"`
	Days         []TimetableDay `json:"days"`
}
