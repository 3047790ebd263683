package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acadhub/timetable-api/internal/models"
)

const entryColumns = `id, section_id, term_id, department_id, faculty_id, room_id, day_of_week, start_minute, end_minute, kind, status, created_at, updated_at`

// ScheduleEntryRepository persists schedule entries.
type ScheduleEntryRepository struct {
	db *sqlx.DB
}

// NewScheduleEntryRepository creates a new schedule entry repository.
func NewScheduleEntryRepository(db *sqlx.DB) *ScheduleEntryRepository {
	return &ScheduleEntryRepository{db: db}
}

// FindByID loads an entry by id.
func (r *ScheduleEntryRepository) FindByID(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_entries WHERE id = $1`, entryColumns)
	var entry models.ScheduleEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByTermDepartment returns the entries of one department/term, optionally
// narrowed to a status set, in stable grid order.
func (r *ScheduleEntryRepository) ListByTermDepartment(ctx context.Context, termID, departmentID string, statuses []models.EntryStatus) ([]models.ScheduleEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_entries WHERE term_id = $1 AND department_id = $2`, entryColumns)
	args := []interface{}{termID, departmentID}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY day_of_week ASC, start_minute ASC, id ASC"

	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	return entries, nil
}

// List returns entries with optional filtering and pagination.
func (r *ScheduleEntryRepository) List(ctx context.Context, filter models.ScheduleEntryFilter) ([]models.ScheduleEntry, int, error) {
	base := "FROM schedule_entries WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.DepartmentID != "" {
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)+1))
		args = append(args, filter.DepartmentID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.DayOfWeek != 0 {
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, filter.DayOfWeek)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, "status IN ("+strings.Join(placeholders, ", ")+")")
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY day_of_week ASC, start_minute ASC, id ASC LIMIT %d OFFSET %d", entryColumns, base, size, offset)
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedule entries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedule entries: %w", err)
	}

	return entries, total, nil
}

// BulkCreateWithTx inserts entries using an existing transaction.
func (r *ScheduleEntryRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, entries []models.ScheduleEntry) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	now := time.Now().UTC()
	for i := range entries {
		payload := entries[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		const query = `INSERT INTO schedule_entries (id, section_id, term_id, department_id, faculty_id, room_id, day_of_week, start_minute, end_minute, kind, status, created_at, updated_at)
			VALUES (:id, :section_id, :term_id, :department_id, :faculty_id, :room_id, :day_of_week, :start_minute, :end_minute, :kind, :status, :created_at, :updated_at)`
		if _, err := sqlx.NamedExecContext(ctx, tx, query, &payload); err != nil {
			return fmt.Errorf("bulk insert schedule entry: %w", err)
		}
		entries[i] = payload
	}
	return nil
}

// UpdateStatus moves an entry to a new workflow state.
func (r *ScheduleEntryRepository) UpdateStatus(ctx context.Context, id string, status models.EntryStatus) error {
	const query = `UPDATE schedule_entries SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update schedule entry status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("schedule entry %s not found", id)
	}
	return nil
}

// Update rewrites an entry's assignment fields.
func (r *ScheduleEntryRepository) Update(ctx context.Context, entry *models.ScheduleEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedule_entries SET faculty_id = :faculty_id, room_id = :room_id, day_of_week = :day_of_week, start_minute = :start_minute, end_minute = :end_minute, kind = :kind, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("update schedule entry: %w", err)
	}
	return nil
}

// DeleteDraftsWithTx clears a department/term's draft entries inside the
// caller's transaction so a saved proposal replaces stale drafts atomically.
func (r *ScheduleEntryRepository) DeleteDraftsWithTx(ctx context.Context, tx *sqlx.Tx, termID, departmentID string) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("nil transaction provided")
	}
	const query = `DELETE FROM schedule_entries WHERE term_id = $1 AND department_id = $2 AND status = $3`
	result, err := tx.ExecContext(ctx, query, termID, departmentID, models.EntryStatusDraft)
	if err != nil {
		return 0, fmt.Errorf("delete draft schedule entries: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}
