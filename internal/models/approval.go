package models

import "time"

// RequestKind is the type of change a faculty member proposes against an
// approved entry.
type RequestKind string

const (
	RequestTimeChange RequestKind = "TIME_CHANGE"
	RequestRoomChange RequestKind = "ROOM_CHANGE"
)

// RequestStatus is the review state of a change request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// ChangeDetails carries the proposed replacement values. Time changes fill
// the slot fields, room changes fill RoomID; a request may carry both only
// when its kind allows it.
type ChangeDetails struct {
	DayOfWeek   *int    `json:"day_of_week,omitempty"`
	StartMinute *int    `json:"start_minute,omitempty"`
	EndMinute   *int    `json:"end_minute,omitempty"`
	RoomID      *string `json:"room_id,omitempty"`
}

// ApprovalRequest is a faculty-submitted change proposal against an approved
// schedule entry, resolved by a dean or chair.
type ApprovalRequest struct {
	ID            string        `db:"id" json:"id"`
	EntryID       string        `db:"entry_id" json:"entry_id"`
	FacultyID     string        `db:"faculty_id" json:"faculty_id"`
	Kind          RequestKind   `db:"kind" json:"kind"`
	Details       ChangeDetails `db:"-" json:"details"`
	Justification string        `db:"justification" json:"justification"`
	Status        RequestStatus `db:"status" json:"status"`
	ReviewedBy    *string       `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Note          *string       `db:"note" json:"note,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// ApprovalRequestFilter describes query params for listing requests.
type ApprovalRequestFilter struct {
	EntryID   string
	FacultyID string
	Status    RequestStatus
	Page      int
	PageSize  int
}
