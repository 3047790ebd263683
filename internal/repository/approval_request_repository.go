package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/acadhub/timetable-api/internal/models"
)

const requestColumns = `id, entry_id, faculty_id, kind, details, justification, status, reviewed_by, reviewed_at, note, created_at`

type approvalRequestRow struct {
	models.ApprovalRequest
	DetailsRaw types.JSONText `db:"details"`
}

func (row approvalRequestRow) toModel() (models.ApprovalRequest, error) {
	request := row.ApprovalRequest
	if len(row.DetailsRaw) > 0 && string(row.DetailsRaw) != "null" {
		if err := json.Unmarshal(row.DetailsRaw, &request.Details); err != nil {
			return models.ApprovalRequest{}, fmt.Errorf("unmarshal request %s details: %w", request.ID, err)
		}
	}
	return request, nil
}

// ApprovalRequestRepository persists faculty change requests.
type ApprovalRequestRepository struct {
	db *sqlx.DB
}

// NewApprovalRequestRepository creates a new approval request repository.
func NewApprovalRequestRepository(db *sqlx.DB) *ApprovalRequestRepository {
	return &ApprovalRequestRepository{db: db}
}

// Create stores a new change request.
func (r *ApprovalRequestRepository) Create(ctx context.Context, request *models.ApprovalRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}

	details, err := json.Marshal(request.Details)
	if err != nil {
		return fmt.Errorf("marshal request details: %w", err)
	}

	row := approvalRequestRow{ApprovalRequest: *request, DetailsRaw: types.JSONText(details)}
	const query = `INSERT INTO approval_requests (id, entry_id, faculty_id, kind, details, justification, status, reviewed_by, reviewed_at, note, created_at)
		VALUES (:id, :entry_id, :faculty_id, :kind, :details, :justification, :status, :reviewed_by, :reviewed_at, :note, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, &row); err != nil {
		return fmt.Errorf("create approval request: %w", err)
	}
	return nil
}

// FindByID loads a change request by id.
func (r *ApprovalRequestRepository) FindByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_requests WHERE id = $1`, requestColumns)
	var row approvalRequestRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	request, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// UpdateResolution records a reviewer decision on a request.
func (r *ApprovalRequestRepository) UpdateResolution(ctx context.Context, request *models.ApprovalRequest) error {
	const query = `UPDATE approval_requests SET status = :status, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, note = :note WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, request)
	if err != nil {
		return fmt.Errorf("update approval request: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("approval request %s not found", request.ID)
	}
	return nil
}

// List returns change requests with optional filtering and pagination.
func (r *ApprovalRequestRepository) List(ctx context.Context, filter models.ApprovalRequestFilter) ([]models.ApprovalRequest, int, error) {
	base := "FROM approval_requests WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.EntryID != "" {
		conditions = append(conditions, fmt.Sprintf("entry_id = $%d", len(args)+1))
		args = append(args, filter.EntryID)
	}
	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", requestColumns, base, size, offset)
	var rows []approvalRequestRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list approval requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count approval requests: %w", err)
	}

	requests := make([]models.ApprovalRequest, 0, len(rows))
	for _, row := range rows {
		request, err := row.toModel()
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, request)
	}
	return requests, total, nil
}
