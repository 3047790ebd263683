package dto

import "github.com/acadhub/timetable-api/internal/models"

// UpdateEntryStatusRequest drives an approval transition on an entry. DRAFT
// is not a target: entries only return to draft through regeneration.
type UpdateEntryStatusRequest struct {
	Status models.EntryStatus `json:"status" validate:"required,oneof=PENDING APPROVED REJECTED"`
}

// SubmitChangeRequest is a faculty-initiated change proposal against one of
// their approved entries.
type SubmitChangeRequest struct {
	EntryID       string               `json:"entryId" validate:"required"`
	Kind          models.RequestKind   `json:"kind" validate:"required,oneof=TIME_CHANGE ROOM_CHANGE"`
	Justification string               `json:"justification" validate:"required"`
	Details       models.ChangeDetails `json:"details"`
}

// ResolveRequestRequest records a dean/chair decision on a change request.
type ResolveRequestRequest struct {
	Decision models.RequestStatus `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Note     string               `json:"note"`
}

// ApprovalRequestQuery filters change-request listings.
type ApprovalRequestQuery struct {
	Status    string `form:"status" json:"status"`
	FacultyID string `form:"facultyId" json:"facultyId"`
	EntryID   string `form:"entryId" json:"entryId"`
}

// ScheduleEntryQuery filters schedule entry listings.
type ScheduleEntryQuery struct {
	TermID       string `form:"termId" json:"termId"`
	DepartmentID string `form:"departmentId" json:"departmentId"`
	SectionID    string `form:"sectionId" json:"sectionId"`
	FacultyID    string `form:"facultyId" json:"facultyId"`
	RoomID       string `form:"roomId" json:"roomId"`
	Status       string `form:"status" json:"status"`
}
