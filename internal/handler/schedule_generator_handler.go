package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acadhub/timetable-api/internal/dto"
	"github.com/acadhub/timetable-api/internal/models"
	"github.com/acadhub/timetable-api/internal/service"
	appErrors "github.com/acadhub/timetable-api/pkg/errors"
	"github.com/acadhub/timetable-api/pkg/response"
)

type scheduleGenerator interface {
	Generate(ctx context.Context, actor models.ActorContext, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error)
	Save(ctx context.Context, actor models.ActorContext, req dto.SaveScheduleRequest) ([]models.ScheduleEntry, error)
	GetProposal(ctx context.Context, proposalID string) (*dto.GenerateScheduleResponse, error)
	DetectConflicts(ctx context.Context, req dto.DetectConflictsRequest) (*dto.DetectConflictsResponse, error)
}

// ScheduleGeneratorHandler exposes scheduler endpoints.
type ScheduleGeneratorHandler struct {
	service scheduleGenerator
}

// NewScheduleGeneratorHandler constructs the handler.
func NewScheduleGeneratorHandler(svc *service.ScheduleGeneratorService) *ScheduleGeneratorHandler {
	return &ScheduleGeneratorHandler{service: svc}
}

// Generate godoc
// @Summary Generate a timetable proposal for a department and term
// @Description Builds a conflict-free placement of the department's sections. Unplaced sections come back as data with reasons. With async=true the proposal is queued and polled via GET /schedule/proposals/{id}.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Generate schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/generate [post]
func (h *ScheduleGeneratorHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Status == service.ProposalStatusQueued {
		status = http.StatusAccepted
	}
	response.JSON(c, status, result, nil)
}

// GetProposal godoc
// @Summary Fetch a held proposal by ID
// @Tags Scheduler
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/proposals/{id} [get]
func (h *ScheduleGeneratorHandler) GetProposal(c *gin.Context) {
	result, err := h.service.GetProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Save godoc
// @Summary Persist a reviewed proposal as draft schedule entries
// @Description Conflicts are re-checked against entries committed since generation; any finding aborts the save.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.SaveScheduleRequest true "Save schedule payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/save [post]
func (h *ScheduleGeneratorHandler) Save(c *gin.Context) {
	var req dto.SaveScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	entries, err := h.service.Save(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"entries": entries})
}

// DetectConflicts godoc
// @Summary Validate candidate entries against the committed timetable
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.DetectConflictsRequest true "Candidates to validate"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/conflicts [post]
func (h *ScheduleGeneratorHandler) DetectConflicts(c *gin.Context) {
	var req dto.DetectConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid conflict detection payload"))
		return
	}
	result, err := h.service.DetectConflicts(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
