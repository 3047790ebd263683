package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acadhub/timetable-api/internal/dto"
	"github.com/acadhub/timetable-api/internal/service"
	appErrors "github.com/acadhub/timetable-api/pkg/errors"
	"github.com/acadhub/timetable-api/pkg/response"
)

type timetableViewer interface {
	BuildView(ctx context.Context, departmentID, termID string) (*dto.TimetableView, error)
	Export(ctx context.Context, departmentID, termID string, format service.ExportFormat) ([]byte, string, string, error)
}

// TimetableHandler serves read-side timetable views and exports.
type TimetableHandler struct {
	service timetableViewer
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// GetTimetable godoc
// @Summary Approved weekly timetable for a department
// @Tags Timetable
// @Produce json
// @Param id path string true "Department ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /departments/{id}/timetable [get]
func (h *TimetableHandler) GetTimetable(c *gin.Context) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "termId is required"))
		return
	}
	view, err := h.service.BuildView(c.Request.Context(), c.Param("id"), query.TermID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ExportTimetable godoc
// @Summary Download the approved timetable as CSV or PDF
// @Tags Timetable
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Department ID"
// @Param termId query string true "Term ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /departments/{id}/timetable/export [get]
func (h *TimetableHandler) ExportTimetable(c *gin.Context) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "termId is required"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportCSV)))

	payload, filename, contentType, err := h.service.Export(c.Request.Context(), c.Param("id"), query.TermID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, payload)
}
