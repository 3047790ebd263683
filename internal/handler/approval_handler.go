package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/acadhub/timetable-api/internal/dto"
	"github.com/acadhub/timetable-api/internal/models"
	"github.com/acadhub/timetable-api/internal/service"
	appErrors "github.com/acadhub/timetable-api/pkg/errors"
	"github.com/acadhub/timetable-api/pkg/response"
)

type approvalWorkflow interface {
	UpdateEntryStatus(ctx context.Context, actor models.ActorContext, entryID string, req dto.UpdateEntryStatusRequest) (*models.ScheduleEntry, error)
	RequestChange(ctx context.Context, actor models.ActorContext, req dto.SubmitChangeRequest) (*models.ApprovalRequest, error)
	ResolveChange(ctx context.Context, actor models.ActorContext, requestID string, req dto.ResolveRequestRequest) (*models.ApprovalRequest, error)
	GetRequest(ctx context.Context, requestID string) (*models.ApprovalRequest, error)
	ListRequests(ctx context.Context, actor models.ActorContext, query dto.ApprovalRequestQuery, page, pageSize int) ([]models.ApprovalRequest, models.Pagination, error)
	ListEntries(ctx context.Context, query dto.ScheduleEntryQuery, page, pageSize int) ([]models.ScheduleEntry, models.Pagination, error)
}

// ApprovalHandler exposes the entry state machine and change-request flow.
type ApprovalHandler struct {
	service approvalWorkflow
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(svc *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{service: svc}
}

// UpdateEntryStatus godoc
// @Summary Transition a schedule entry through the approval workflow
// @Description PENDING submits a draft for review; APPROVED and REJECTED resolve a pending entry. Approval re-runs conflict detection and fails with 409 when findings exist, leaving the entry pending.
// @Tags Approval
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body dto.UpdateEntryStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/entries/{id}/status [patch]
func (h *ApprovalHandler) UpdateEntryStatus(c *gin.Context) {
	var req dto.UpdateEntryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	entry, err := h.service.UpdateEntryStatus(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// SubmitRequest godoc
// @Summary File a change request against an approved entry
// @Tags Approval
// @Accept json
// @Produce json
// @Param payload body dto.SubmitChangeRequest true "Change request payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/requests [post]
func (h *ApprovalHandler) SubmitRequest(c *gin.Context) {
	var req dto.SubmitChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid change request payload"))
		return
	}
	request, err := h.service.RequestChange(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// ResolveRequest godoc
// @Summary Resolve a pending change request
// @Description An approved decision applies the change only when the candidate passes conflict detection; otherwise the request is rejected and the entry is untouched.
// @Tags Approval
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ResolveRequestRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/requests/{id} [patch]
func (h *ApprovalHandler) ResolveRequest(c *gin.Context) {
	var req dto.ResolveRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resolution payload"))
		return
	}
	request, err := h.service.ResolveChange(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// GetRequest godoc
// @Summary Fetch a change request by ID
// @Tags Approval
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/requests/{id} [get]
func (h *ApprovalHandler) GetRequest(c *gin.Context) {
	request, err := h.service.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// ListEntries godoc
// @Summary List schedule entries
// @Tags Approval
// @Produce json
// @Param termId query string false "Term ID"
// @Param departmentId query string false "Department ID"
// @Param sectionId query string false "Section ID"
// @Param facultyId query string false "Faculty ID"
// @Param roomId query string false "Room ID"
// @Param status query string false "Entry status"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/entries [get]
func (h *ApprovalHandler) ListEntries(c *gin.Context) {
	query := dto.ScheduleEntryQuery{
		TermID:       c.Query("termId"),
		DepartmentID: c.Query("departmentId"),
		SectionID:    c.Query("sectionId"),
		FacultyID:    c.Query("facultyId"),
		RoomID:       c.Query("roomId"),
		Status:       c.Query("status"),
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	entries, pagination, err := h.service.ListEntries(c.Request.Context(), query, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, &pagination)
}

// ListRequests godoc
// @Summary List change requests
// @Description Faculty callers only ever see their own requests regardless of filters.
// @Tags Approval
// @Produce json
// @Param status query string false "Request status"
// @Param facultyId query string false "Faculty ID"
// @Param entryId query string false "Entry ID"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/requests [get]
func (h *ApprovalHandler) ListRequests(c *gin.Context) {
	query := dto.ApprovalRequestQuery{
		Status:    c.Query("status"),
		FacultyID: c.Query("facultyId"),
		EntryID:   c.Query("entryId"),
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	requests, pagination, err := h.service.ListRequests(c.Request.Context(), actorFromContext(c), query, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, &pagination)
}
