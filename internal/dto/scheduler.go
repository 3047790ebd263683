package dto

import "github.com/acadhub/timetable-api/internal/models"

// Constraints tunes a generation run. AllowSharedRooms defaults to true when
// omitted, matching how cross-department rooms are normally pooled.
type Constraints struct {
	MaxSectionsPerFaculty      int   `json:"maxSectionsPerFaculty" validate:"omitempty,min=1"`
	DayPreference              []int `json:"dayPreference" validate:"omitempty,dive,min=1,max=7"`
	RequireSpecializationMatch bool  `json:"requireSpecializationMatch"`
	AllowSharedRooms           *bool `json:"allowSharedRooms"`
}

// SharedRoomsAllowed resolves the optional flag.
func (c Constraints) SharedRoomsAllowed() bool {
	if c.AllowSharedRooms == nil {
		return true
	}
	return *c.AllowSharedRooms
}

// GenerateScheduleRequest instructs the generator to build a proposal for the
// department/term. Seed fixes heuristic tiebreaks so runs are reproducible.
type GenerateScheduleRequest struct {
	TermID       string      `json:"termId" validate:"required"`
	DepartmentID string      `json:"departmentId" validate:"required"`
	MaxSections  int         `json:"maxSections" validate:"omitempty,min=1"`
	Algorithm    string      `json:"algorithm" validate:"omitempty,oneof=greedy"`
	Seed         int64       `json:"seed"`
	Async        bool        `json:"async"`
	Constraints  Constraints `json:"constraints"`
}

// GenerationStats summarises a generation run.
type GenerationStats struct {
	SectionsTotal  int   `json:"sectionsTotal"`
	SectionsPlaced int   `json:"sectionsPlaced"`
	EntriesPlaced  int   `json:"entriesPlaced"`
	Seed           int64 `json:"seed"`
	ElapsedMS      int64 `json:"elapsedMs"`
}

// GenerateScheduleResponse returns the built proposal for review. Unplaced
// sections are a normal outcome, not an error.
type GenerateScheduleResponse struct {
	ProposalID string                   `json:"proposalId"`
	Status     string                   `json:"status"`
	Placed     []models.ScheduleEntry   `json:"placed"`
	Unplaced   []models.UnplacedSection `json:"unplaced"`
	Stats      GenerationStats          `json:"stats"`
}

// SaveScheduleRequest persists a reviewed proposal as draft entries.
type SaveScheduleRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
}

// CandidateEntry is an entry to validate ad hoc, e.g. a cell the chair edited
// in the timetable grid. EntryID is set when the candidate replaces an
// existing entry so the detector can exclude the original.
type CandidateEntry struct {
	EntryID     string             `json:"entryId"`
	SectionID   string             `json:"sectionId" validate:"required"`
	FacultyID   *string            `json:"facultyId"`
	RoomID      *string            `json:"roomId"`
	DayOfWeek   int                `json:"dayOfWeek" validate:"required,min=1,max=7"`
	StartMinute int                `json:"startMinute" validate:"min=0,max=1439"`
	EndMinute   int                `json:"endMinute" validate:"required,gtfield=StartMinute,max=1440"`
	Kind        models.MeetingKind `json:"kind" validate:"omitempty,oneof=LECTURE LAB"`
}

// DetectConflictsRequest validates candidate entries against the committed
// entries of a department/term.
type DetectConflictsRequest struct {
	TermID       string           `json:"termId" validate:"required"`
	DepartmentID string           `json:"departmentId" validate:"required"`
	Candidates   []CandidateEntry `json:"candidates" validate:"required,min=1,dive"`
}

// DetectConflictsResponse reports detector findings in stable order.
type DetectConflictsResponse struct {
	Conflicts []models.Conflict `json:"conflicts"`
}
