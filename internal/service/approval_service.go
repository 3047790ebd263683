package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/acadhub/timetable-api/internal/dto"
	"github.com/acadhub/timetable-api/internal/models"
	appErrors "github.com/acadhub/timetable-api/pkg/errors"
)

type approvalEntryStore interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error)
	UpdateStatus(ctx context.Context, id string, status models.EntryStatus) error
	Update(ctx context.Context, entry *models.ScheduleEntry) error
	ListByTermDepartment(ctx context.Context, termID, departmentID string, statuses []models.EntryStatus) ([]models.ScheduleEntry, error)
	List(ctx context.Context, filter models.ScheduleEntryFilter) ([]models.ScheduleEntry, int, error)
}

type approvalRequestStore interface {
	Create(ctx context.Context, request *models.ApprovalRequest) error
	FindByID(ctx context.Context, id string) (*models.ApprovalRequest, error)
	UpdateResolution(ctx context.Context, request *models.ApprovalRequest) error
	List(ctx context.Context, filter models.ApprovalRequestFilter) ([]models.ApprovalRequest, int, error)
}

type timetableInvalidator interface {
	Invalidate(ctx context.Context, termID, departmentID string)
}

// ApprovalService runs the schedule entry state machine and the faculty
// change-request flow on top of it. Conflicts surface as recoverable
// ErrConflict results carrying the detector findings; invalid transitions are
// hard ErrStateTransition errors.
type ApprovalService struct {
	entries   approvalEntryStore
	requests  approvalRequestStore
	sections  sectionReader
	faculty   facultyReader
	rooms     classroomReader
	audit     auditRecorder
	timetable timetableInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApprovalService wires workflow dependencies. Audit and timetable cache
// invalidation are optional.
func NewApprovalService(
	entries approvalEntryStore,
	requests approvalRequestStore,
	sections sectionReader,
	faculty facultyReader,
	rooms classroomReader,
	audit auditRecorder,
	timetable timetableInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *ApprovalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		entries:   entries,
		requests:  requests,
		sections:  sections,
		faculty:   faculty,
		rooms:     rooms,
		audit:     audit,
		timetable: timetable,
		validator: validate,
		logger:    logger,
	}
}

// UpdateEntryStatus dispatches a transition request to the matching
// workflow operation.
func (s *ApprovalService) UpdateEntryStatus(ctx context.Context, actor models.ActorContext, entryID string, req dto.UpdateEntryStatusRequest) (*models.ScheduleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status update payload")
	}
	switch req.Status {
	case models.EntryStatusPending:
		return s.SubmitForApproval(ctx, actor, entryID)
	case models.EntryStatusApproved:
		return s.Approve(ctx, actor, entryID)
	case models.EntryStatusRejected:
		return s.Reject(ctx, actor, entryID)
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported target status %s", req.Status))
}

// SubmitForApproval moves a draft entry into review.
func (s *ApprovalService) SubmitForApproval(ctx context.Context, actor models.ActorContext, entryID string) (*models.ScheduleEntry, error) {
	entry, err := s.loadEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.Status.CanTransition(models.EntryStatusPending) {
		return nil, appErrors.Clone(appErrors.ErrStateTransition, fmt.Sprintf("entry %s is %s, only DRAFT entries can be submitted", entryID, entry.Status))
	}
	return s.transition(ctx, actor, entry, models.EntryStatusPending)
}

// Approve commits a pending entry. The detector runs against every other
// approved entry in the same department and term first; any finding fails
// the transition and the entry stays pending, reported as a recoverable
// conflict rather than silently approved.
func (s *ApprovalService) Approve(ctx context.Context, actor models.ActorContext, entryID string) (*models.ScheduleEntry, error) {
	if !actor.CanReview() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot approve schedule entries")
	}
	entry, err := s.loadEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.Status.CanTransition(models.EntryStatusApproved) {
		return nil, appErrors.Clone(appErrors.ErrStateTransition, fmt.Sprintf("entry %s is %s, only PENDING entries can be approved", entryID, entry.Status))
	}

	if err := s.checkAgainstApproved(ctx, *entry, entry.ID); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, entry, models.EntryStatusApproved)
}

// Reject drops a pending entry out of review. Rejected entries hold no
// resources and are excluded from all conflict checks.
func (s *ApprovalService) Reject(ctx context.Context, actor models.ActorContext, entryID string) (*models.ScheduleEntry, error) {
	if !actor.CanReview() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot reject schedule entries")
	}
	entry, err := s.loadEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.Status.CanTransition(models.EntryStatusRejected) {
		return nil, appErrors.Clone(appErrors.ErrStateTransition, fmt.Sprintf("entry %s is %s, only PENDING entries can be rejected", entryID, entry.Status))
	}
	return s.transition(ctx, actor, entry, models.EntryStatusRejected)
}

// RequestChange files a faculty change proposal against an approved entry.
// The entry itself is untouched until a reviewer resolves the request.
func (s *ApprovalService) RequestChange(ctx context.Context, actor models.ActorContext, req dto.SubmitChangeRequest) (*models.ApprovalRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change request payload")
	}
	if err := validateChangeDetails(req.Kind, req.Details); err != nil {
		return nil, err
	}

	entry, err := s.loadEntry(ctx, req.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.EntryStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrStateTransition, fmt.Sprintf("entry %s is %s, change requests target APPROVED entries", req.EntryID, entry.Status))
	}
	if actor.Role == models.RoleFaculty && (entry.FacultyID == nil || *entry.FacultyID != actor.UserID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "faculty may only request changes to their own entries")
	}

	request := &models.ApprovalRequest{
		EntryID:       req.EntryID,
		FacultyID:     actor.UserID,
		Kind:          req.Kind,
		Details:       req.Details,
		Justification: req.Justification,
		Status:        models.RequestStatusPending,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create change request")
	}
	s.recordAudit(ctx, actor, models.AuditActionRequestSubmit, "approval_request", request.ID, request)
	return request, nil
}

// ResolveChange records a reviewer decision. An approved decision applies
// the change to a candidate copy and conflict-checks it against all approved
// entries excluding the original; a finding rejects the request and leaves
// the entry untouched, reported back with the conflicts attached.
func (s *ApprovalService) ResolveChange(ctx context.Context, actor models.ActorContext, requestID string, req dto.ResolveRequestRequest) (*models.ApprovalRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolution payload")
	}
	if !actor.CanReview() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot resolve change requests")
	}

	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change request")
	}
	if request.Status != models.RequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrStateTransition, fmt.Sprintf("request %s is already %s", requestID, request.Status))
	}

	if req.Decision == models.RequestStatusRejected {
		return s.finishResolution(ctx, actor, request, models.RequestStatusRejected, req.Note)
	}

	entry, err := s.loadEntry(ctx, request.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.EntryStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrStateTransition, fmt.Sprintf("entry %s is no longer APPROVED", entry.ID))
	}

	candidate := *entry
	applyChangeDetails(&candidate, request.Details)

	if err := s.checkAgainstApproved(ctx, candidate, entry.ID); err != nil {
		// Conflicting change: the request dies, the entry survives as-is.
		note := req.Note
		if note == "" {
			note = "requested change conflicts with the approved timetable"
		}
		if _, resErr := s.finishResolution(ctx, actor, request, models.RequestStatusRejected, note); resErr != nil {
			return nil, resErr
		}
		return nil, err
	}

	if err := s.entries.Update(ctx, &candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply entry change")
	}
	if s.timetable != nil {
		s.timetable.Invalidate(ctx, candidate.TermID, candidate.DepartmentID)
	}
	s.recordAudit(ctx, actor, models.AuditActionEntryTransition, "schedule_entry", candidate.ID, candidate)
	return s.finishResolution(ctx, actor, request, models.RequestStatusApproved, req.Note)
}

// GetRequest returns one change request by ID.
func (s *ApprovalService) GetRequest(ctx context.Context, requestID string) (*models.ApprovalRequest, error) {
	if requestID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request id is required")
	}
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change request")
	}
	return request, nil
}

// ListRequests returns change requests matching the filter. Faculty actors
// are always scoped to their own requests.
func (s *ApprovalService) ListRequests(ctx context.Context, actor models.ActorContext, query dto.ApprovalRequestQuery, page, pageSize int) ([]models.ApprovalRequest, models.Pagination, error) {
	filter := models.ApprovalRequestFilter{
		EntryID:   query.EntryID,
		FacultyID: query.FacultyID,
		Status:    models.RequestStatus(query.Status),
		Page:      page,
		PageSize:  pageSize,
	}
	if actor.Role == models.RoleFaculty {
		filter.FacultyID = actor.UserID
	}
	list, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list change requests")
	}
	return list, models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ListEntries returns schedule entries matching the filter, paginated in
// grid order. Entries are the department's working schedule, so no
// role-based scoping applies here.
func (s *ApprovalService) ListEntries(ctx context.Context, query dto.ScheduleEntryQuery, page, pageSize int) ([]models.ScheduleEntry, models.Pagination, error) {
	filter := models.ScheduleEntryFilter{
		TermID:       query.TermID,
		DepartmentID: query.DepartmentID,
		SectionID:    query.SectionID,
		FacultyID:    query.FacultyID,
		RoomID:       query.RoomID,
		Page:         page,
		PageSize:     pageSize,
	}
	if query.Status != "" {
		filter.Statuses = []models.EntryStatus{models.EntryStatus(query.Status)}
	}
	list, total, err := s.entries.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedule entries")
	}
	return list, models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *ApprovalService) loadEntry(ctx context.Context, entryID string) (*models.ScheduleEntry, error) {
	if entryID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entry id is required")
	}
	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule entry")
	}
	return entry, nil
}

// checkAgainstApproved runs the detector for one candidate against the
// approved set of its department/term, excluding the entry it replaces.
func (s *ApprovalService) checkAgainstApproved(ctx context.Context, candidate models.ScheduleEntry, excludeID string) error {
	approved, err := s.entries.ListByTermDepartment(ctx, candidate.TermID, candidate.DepartmentID, []models.EntryStatus{models.EntryStatusApproved})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approved entries")
	}
	others := approved[:0]
	for _, e := range approved {
		if e.ID != excludeID {
			others = append(others, e)
		}
	}

	res, err := s.loadResources(ctx, candidate.TermID, candidate.DepartmentID)
	if err != nil {
		return err
	}
	conflicts := DetectConflicts([]models.ScheduleEntry{candidate}, others, res, true)
	if len(conflicts) == 0 {
		return nil
	}
	return appErrors.Wrap(
		&models.TimetableConflictError{Message: "entry conflicts with the approved timetable", Conflicts: conflicts},
		appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "schedule conflict detected")
}

func (s *ApprovalService) loadResources(ctx context.Context, termID, departmentID string) (ResourceIndex, error) {
	sections, err := s.sections.ListByTermDepartment(ctx, termID, departmentID)
	if err != nil {
		return ResourceIndex{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	faculty, err := s.faculty.ListByDepartment(ctx, departmentID)
	if err != nil {
		return ResourceIndex{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	rooms, err := s.rooms.ListAvailable(ctx, departmentID, true)
	if err != nil {
		return ResourceIndex{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classrooms")
	}
	return NewResourceIndex(sections, faculty, rooms), nil
}

func (s *ApprovalService) transition(ctx context.Context, actor models.ActorContext, entry *models.ScheduleEntry, to models.EntryStatus) (*models.ScheduleEntry, error) {
	from := entry.Status
	if err := s.entries.UpdateStatus(ctx, entry.ID, to); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update entry status")
	}
	entry.Status = to
	entry.UpdatedAt = time.Now().UTC()
	if s.timetable != nil && (from == models.EntryStatusApproved || to == models.EntryStatusApproved) {
		s.timetable.Invalidate(ctx, entry.TermID, entry.DepartmentID)
	}
	s.recordAudit(ctx, actor, models.AuditActionEntryTransition, "schedule_entry", entry.ID, map[string]string{
		"from": string(from),
		"to":   string(to),
	})
	s.logger.Info("schedule entry transition",
		zap.String("entry_id", entry.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor_id", actor.UserID))
	return entry, nil
}

func (s *ApprovalService) finishResolution(ctx context.Context, actor models.ActorContext, request *models.ApprovalRequest, status models.RequestStatus, note string) (*models.ApprovalRequest, error) {
	now := time.Now().UTC()
	reviewer := actor.UserID
	request.Status = status
	request.ReviewedBy = &reviewer
	request.ReviewedAt = &now
	if note != "" {
		request.Note = &note
	}
	if err := s.requests.UpdateResolution(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update change request")
	}
	s.recordAudit(ctx, actor, models.AuditActionRequestResolve, "approval_request", request.ID, request)
	return request, nil
}

func (s *ApprovalService) recordAudit(ctx context.Context, actor models.ActorContext, action, resource, resourceID string, payload any) {
	if s.audit == nil {
		return
	}
	log := models.AuditLog{Action: action, Resource: resource}
	if actor.UserID != "" {
		userID := actor.UserID
		log.UserID = &userID
	}
	if resourceID != "" {
		id := resourceID
		log.ResourceID = &id
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			log.NewValues = raw
		}
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}

func validateChangeDetails(kind models.RequestKind, details models.ChangeDetails) error {
	switch kind {
	case models.RequestTimeChange:
		if details.DayOfWeek == nil || details.StartMinute == nil || details.EndMinute == nil {
			return appErrors.Clone(appErrors.ErrValidation, "time change requires dayOfWeek, startMinute and endMinute")
		}
		if *details.EndMinute <= *details.StartMinute {
			return appErrors.Clone(appErrors.ErrValidation, "endMinute must be after startMinute")
		}
		if *details.DayOfWeek < models.Monday || *details.DayOfWeek > models.Sunday {
			return appErrors.Clone(appErrors.ErrValidation, "dayOfWeek must be between 1 and 7")
		}
	case models.RequestRoomChange:
		if details.RoomID == nil || *details.RoomID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "room change requires roomId")
		}
	}
	return nil
}

func applyChangeDetails(entry *models.ScheduleEntry, details models.ChangeDetails) {
	if details.DayOfWeek != nil {
		entry.DayOfWeek = *details.DayOfWeek
	}
	if details.StartMinute != nil {
		entry.StartMinute = *details.StartMinute
	}
	if details.EndMinute != nil {
		entry.EndMinute = *details.EndMinute
	}
	if details.RoomID != nil {
		entry.RoomID = details.RoomID
	}
}
