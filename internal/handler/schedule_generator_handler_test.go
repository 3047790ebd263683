package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/acadhub/timetable-api/internal/dto"
	internalmiddleware "github.com/acadhub/timetable-api/internal/middleware"
	"github.com/acadhub/timetable-api/internal/models"
	"github.com/acadhub/timetable-api/internal/service"
	appErrors "github.com/acadhub/timetable-api/pkg/errors"
)

type scheduleGeneratorMock struct {
	captured     dto.GenerateScheduleRequest
	generated    *dto.GenerateScheduleResponse
	generateErr  error
	savedEntries []models.ScheduleEntry
	saveErr      error
}

func (m *scheduleGeneratorMock) Generate(ctx context.Context, actor models.ActorContext, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	m.captured = req
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	if m.generated != nil {
		return m.generated, nil
	}
	return &dto.GenerateScheduleResponse{ProposalID: "proposal-1", Status: service.ProposalStatusReady}, nil
}

func (m *scheduleGeneratorMock) Save(ctx context.Context, actor models.ActorContext, req dto.SaveScheduleRequest) ([]models.ScheduleEntry, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	return m.savedEntries, nil
}

func (m *scheduleGeneratorMock) GetProposal(ctx context.Context, proposalID string) (*dto.GenerateScheduleResponse, error) {
	if proposalID != "proposal-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return &dto.GenerateScheduleResponse{ProposalID: proposalID, Status: service.ProposalStatusReady}, nil
}

func (m *scheduleGeneratorMock) DetectConflicts(ctx context.Context, req dto.DetectConflictsRequest) (*dto.DetectConflictsResponse, error) {
	return &dto.DetectConflictsResponse{Conflicts: []models.Conflict{}}, nil
}

func validGeneratePayload() []byte {
	return []byte(`{"termId":"term-1","departmentId":"dept-1","seed":42,"constraints":{"maxSectionsPerFaculty":3}}`)
}

func TestScheduleGeneratorHandlerGenerate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &scheduleGeneratorMock{}
	handler := &ScheduleGeneratorHandler{service: mockSvc}

	req, _ := http.NewRequest(http.MethodPost, "/schedule/generate", bytes.NewReader(validGeneratePayload()))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "term-1", mockSvc.captured.TermID)
	require.Equal(t, "dept-1", mockSvc.captured.DepartmentID)
	require.Equal(t, int64(42), mockSvc.captured.Seed)
	require.Equal(t, 3, mockSvc.captured.Constraints.MaxSectionsPerFaculty)
}

func TestScheduleGeneratorHandlerGenerateQueuedReturnsAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &scheduleGeneratorMock{
		generated: &dto.GenerateScheduleResponse{ProposalID: "proposal-1", Status: service.ProposalStatusQueued},
	}
	handler := &ScheduleGeneratorHandler{service: mockSvc}

	req, _ := http.NewRequest(http.MethodPost, "/schedule/generate", bytes.NewReader([]byte(`{"termId":"term-1","departmentId":"dept-1","async":true}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Generate(c)

	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestScheduleGeneratorHandlerGenerateBadJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &ScheduleGeneratorHandler{service: &scheduleGeneratorMock{}}

	req, _ := http.NewRequest(http.MethodPost, "/schedule/generate", bytes.NewReader([]byte(`{"termId":`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleGeneratorHandlerSave(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &scheduleGeneratorMock{savedEntries: []models.ScheduleEntry{{ID: "entry-1", Status: models.EntryStatusDraft}}}
	handler := &ScheduleGeneratorHandler{service: mockSvc}

	req, _ := http.NewRequest(http.MethodPost, "/schedule/save", bytes.NewReader([]byte(`{"proposalId":"proposal-1"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Save(c)

	require.Equal(t, http.StatusCreated, w.Code)
}

func TestScheduleGeneratorHandlerSaveConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &scheduleGeneratorMock{saveErr: appErrors.Clone(appErrors.ErrConflict, "schedule conflict detected")}
	handler := &ScheduleGeneratorHandler{service: mockSvc}

	req, _ := http.NewRequest(http.MethodPost, "/schedule/save", bytes.NewReader([]byte(`{"proposalId":"proposal-1"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Save(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestScheduleGeneratorHandlerGetProposalNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &ScheduleGeneratorHandler{service: &scheduleGeneratorMock{}}
	router := gin.New()
	router.GET("/schedule/proposals/:id", handler.GetProposal)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/schedule/proposals/expired", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleGeneratorHandlerGenerateUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &ScheduleGeneratorHandler{service: &scheduleGeneratorMock{}}
	router := gin.New()
	router.POST("/schedule/generate", internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleChair), handler.Generate)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/schedule/generate", bytes.NewReader(validGeneratePayload()))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestScheduleGeneratorHandlerGenerateForbiddenForFaculty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &ScheduleGeneratorHandler{service: &scheduleGeneratorMock{}}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty})
		c.Next()
	})
	router.POST("/schedule/generate", internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleChair, models.RoleDean), handler.Generate)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/schedule/generate", bytes.NewReader(validGeneratePayload()))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestScheduleGeneratorHandlerDetectConflicts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &ScheduleGeneratorHandler{service: &scheduleGeneratorMock{}}

	payload := []byte(`{"termId":"term-1","departmentId":"dept-1","candidates":[{"sectionId":"sec-1","dayOfWeek":1,"startMinute":540,"endMinute":630}]}`)
	req, _ := http.NewRequest(http.MethodPost, "/schedule/conflicts", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.DetectConflicts(c)

	require.Equal(t, http.StatusOK, w.Code)
}
