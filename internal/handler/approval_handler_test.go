package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/acadhub/timetable-api/internal/dto"
	internalmiddleware "github.com/acadhub/timetable-api/internal/middleware"
	"github.com/acadhub/timetable-api/internal/models"
	appErrors "github.com/acadhub/timetable-api/pkg/errors"
)

type approvalWorkflowMock struct {
	capturedEntryID    string
	capturedStatus     models.EntryStatus
	capturedActor      models.ActorContext
	capturedEntryQuery dto.ScheduleEntryQuery
	statusErr          error
}

func (m *approvalWorkflowMock) UpdateEntryStatus(ctx context.Context, actor models.ActorContext, entryID string, req dto.UpdateEntryStatusRequest) (*models.ScheduleEntry, error) {
	m.capturedEntryID = entryID
	m.capturedStatus = req.Status
	m.capturedActor = actor
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return &models.ScheduleEntry{ID: entryID, Status: req.Status}, nil
}

func (m *approvalWorkflowMock) RequestChange(ctx context.Context, actor models.ActorContext, req dto.SubmitChangeRequest) (*models.ApprovalRequest, error) {
	m.capturedActor = actor
	return &models.ApprovalRequest{ID: "req-1", EntryID: req.EntryID, Status: models.RequestStatusPending}, nil
}

func (m *approvalWorkflowMock) ResolveChange(ctx context.Context, actor models.ActorContext, requestID string, req dto.ResolveRequestRequest) (*models.ApprovalRequest, error) {
	return &models.ApprovalRequest{ID: requestID, Status: req.Decision}, nil
}

func (m *approvalWorkflowMock) GetRequest(ctx context.Context, requestID string) (*models.ApprovalRequest, error) {
	if requestID != "req-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
	}
	return &models.ApprovalRequest{ID: requestID, Status: models.RequestStatusPending}, nil
}

func (m *approvalWorkflowMock) ListRequests(ctx context.Context, actor models.ActorContext, query dto.ApprovalRequestQuery, page, pageSize int) ([]models.ApprovalRequest, models.Pagination, error) {
	m.capturedActor = actor
	return []models.ApprovalRequest{{ID: "req-1"}}, models.Pagination{Page: page, PageSize: pageSize, TotalCount: 1}, nil
}

func (m *approvalWorkflowMock) ListEntries(ctx context.Context, query dto.ScheduleEntryQuery, page, pageSize int) ([]models.ScheduleEntry, models.Pagination, error) {
	m.capturedEntryQuery = query
	return []models.ScheduleEntry{{ID: "e1", Status: models.EntryStatusApproved}}, models.Pagination{Page: page, PageSize: pageSize, TotalCount: 1}, nil
}

func authorizedRouter(role models.UserRole, userID string) (*gin.Engine, *approvalWorkflowMock) {
	gin.SetMode(gin.TestMode)
	mockSvc := &approvalWorkflowMock{}
	handler := &ApprovalHandler{service: mockSvc}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: role})
		c.Next()
	})
	router.GET("/schedule/entries", handler.ListEntries)
	router.PATCH("/schedule/entries/:id/status", handler.UpdateEntryStatus)
	router.POST("/schedule/requests", handler.SubmitRequest)
	router.GET("/schedule/requests", handler.ListRequests)
	router.GET("/schedule/requests/:id", handler.GetRequest)
	router.PATCH("/schedule/requests/:id", internalmiddleware.Reviewers(), handler.ResolveRequest)
	return router, mockSvc
}

func TestApprovalHandlerUpdateEntryStatus(t *testing.T) {
	router, mockSvc := authorizedRouter(models.RoleChair, "chair-1")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPatch, "/schedule/entries/entry-1/status", bytes.NewReader([]byte(`{"status":"APPROVED"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "entry-1", mockSvc.capturedEntryID)
	require.Equal(t, models.EntryStatusApproved, mockSvc.capturedStatus)
	require.Equal(t, "chair-1", mockSvc.capturedActor.UserID)
}

func TestApprovalHandlerUpdateEntryStatusConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &approvalWorkflowMock{statusErr: appErrors.Clone(appErrors.ErrConflict, "schedule conflict detected")}
	handler := &ApprovalHandler{service: mockSvc}
	router := gin.New()
	router.PATCH("/schedule/entries/:id/status", handler.UpdateEntryStatus)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPatch, "/schedule/entries/entry-1/status", bytes.NewReader([]byte(`{"status":"APPROVED"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestApprovalHandlerSubmitRequest(t *testing.T) {
	router, mockSvc := authorizedRouter(models.RoleFaculty, "fac-1")

	payload := `{"entryId":"entry-1","kind":"TIME_CHANGE","justification":"clinic duty","details":{"day_of_week":3,"start_minute":600,"end_minute":690}}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/schedule/requests", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "fac-1", mockSvc.capturedActor.UserID)
}

func TestApprovalHandlerResolveRequestReviewerOnly(t *testing.T) {
	router, _ := authorizedRouter(models.RoleFaculty, "fac-1")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPatch, "/schedule/requests/req-1", bytes.NewReader([]byte(`{"decision":"APPROVED"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestApprovalHandlerResolveRequest(t *testing.T) {
	router, _ := authorizedRouter(models.RoleDean, "dean-1")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPatch, "/schedule/requests/req-1", bytes.NewReader([]byte(`{"decision":"REJECTED","note":"room stays"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestApprovalHandlerGetRequestNotFound(t *testing.T) {
	router, _ := authorizedRouter(models.RoleDean, "dean-1")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/schedule/requests/missing", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestApprovalHandlerListRequestsPagination(t *testing.T) {
	router, _ := authorizedRouter(models.RoleDean, "dean-1")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/schedule/requests?status=PENDING&page=2&pageSize=10", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Pagination *models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Pagination)
	require.Equal(t, 2, body.Pagination.Page)
	require.Equal(t, 10, body.Pagination.PageSize)
}

func TestApprovalHandlerListEntries(t *testing.T) {
	router, mockSvc := authorizedRouter(models.RoleChair, "chair-1")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/schedule/entries?termId=term-1&departmentId=dept-1&status=APPROVED", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "term-1", mockSvc.capturedEntryQuery.TermID)
	require.Equal(t, "dept-1", mockSvc.capturedEntryQuery.DepartmentID)
	require.Equal(t, "APPROVED", mockSvc.capturedEntryQuery.Status)

	var body struct {
		Data []models.ScheduleEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "e1", body.Data[0].ID)
}
