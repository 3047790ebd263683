package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/acadhub/timetable-api/internal/models"
)

const facultyColumns = `id, full_name, department_id, specializations, max_weekly_hours, unavailable, active, created_at, updated_at`

type facultyRow struct {
	models.Faculty
	UnavailableRaw types.JSONText `db:"unavailable"`
}

func (row facultyRow) toModel() (models.Faculty, error) {
	fac := row.Faculty
	if len(row.UnavailableRaw) > 0 && string(row.UnavailableRaw) != "null" {
		if err := json.Unmarshal(row.UnavailableRaw, &fac.Unavailable); err != nil {
			return models.Faculty{}, fmt.Errorf("unmarshal faculty %s unavailable windows: %w", fac.ID, err)
		}
	}
	return fac, nil
}

// FacultyRepository persists teaching staff records.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository creates a new faculty repository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// ListByDepartment returns every faculty member of a department, including
// inactive ones; the generator filters on the active flag itself.
func (r *FacultyRepository) ListByDepartment(ctx context.Context, departmentID string) ([]models.Faculty, error) {
	query := fmt.Sprintf(`SELECT %s FROM faculty WHERE department_id = $1 ORDER BY full_name ASC`, facultyColumns)
	var rows []facultyRow
	if err := r.db.SelectContext(ctx, &rows, query, departmentID); err != nil {
		return nil, fmt.Errorf("list faculty: %w", err)
	}
	faculty := make([]models.Faculty, 0, len(rows))
	for _, row := range rows {
		fac, err := row.toModel()
		if err != nil {
			return nil, err
		}
		faculty = append(faculty, fac)
	}
	return faculty, nil
}

// FindByID loads a faculty member by id.
func (r *FacultyRepository) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	query := fmt.Sprintf(`SELECT %s FROM faculty WHERE id = $1`, facultyColumns)
	var row facultyRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	fac, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &fac, nil
}

// Create stores a new faculty record.
func (r *FacultyRepository) Create(ctx context.Context, fac *models.Faculty) error {
	if fac.ID == "" {
		fac.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if fac.CreatedAt.IsZero() {
		fac.CreatedAt = now
	}
	fac.UpdatedAt = now

	unavailable, err := json.Marshal(fac.Unavailable)
	if err != nil {
		return fmt.Errorf("marshal faculty unavailable windows: %w", err)
	}

	row := facultyRow{Faculty: *fac, UnavailableRaw: types.JSONText(unavailable)}
	const query = `INSERT INTO faculty (id, full_name, department_id, specializations, max_weekly_hours, unavailable, active, created_at, updated_at)
		VALUES (:id, :full_name, :department_id, :specializations, :max_weekly_hours, :unavailable, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, &row); err != nil {
		return fmt.Errorf("create faculty: %w", err)
	}
	return nil
}
