package models

import "time"

// SemesterTag identifies the term a course is offered in.
type SemesterTag string

const (
	SemesterFirst  SemesterTag = "FIRST"
	SemesterSecond SemesterTag = "SECOND"
	SemesterSummer SemesterTag = "SUMMER"
)

// Course is the catalog record a section is cut from. Once a section
// references a course for a term the snapshot on the section is authoritative;
// catalog edits create a new effective version.
type Course struct {
	ID           string      `db:"id" json:"id"`
	Code         string      `db:"code" json:"code"`
	Name         string      `db:"name" json:"name"`
	LectureHours float64     `db:"lecture_hours" json:"lecture_hours"`
	LabHours     float64     `db:"lab_hours" json:"lab_hours"`
	Units        int         `db:"units" json:"units"`
	Semester     SemesterTag `db:"semester" json:"semester"`
	SubjectTag   string      `db:"subject_tag" json:"subject_tag"`
	DepartmentID string      `db:"department_id" json:"department_id"`
	Active       bool        `db:"active" json:"active"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}
