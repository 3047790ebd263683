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

const sectionColumns = `id, course_id, term_id, department_id, code, course_code, course_name, subject_tag, lecture_hours, lab_hours, capacity, pattern, created_at, updated_at`

// sectionRow carries the JSON pattern column alongside the scannable fields.
type sectionRow struct {
	models.Section
	PatternRaw types.JSONText `db:"pattern"`
}

func (row sectionRow) toModel() (models.Section, error) {
	section := row.Section
	if len(row.PatternRaw) > 0 && string(row.PatternRaw) != "null" {
		if err := json.Unmarshal(row.PatternRaw, &section.Pattern); err != nil {
			return models.Section{}, fmt.Errorf("unmarshal section %s pattern: %w", section.ID, err)
		}
	}
	return section, nil
}

// SectionRepository persists course sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository creates a new section repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// ListByTermDepartment returns the sections of one department in one term.
func (r *SectionRepository) ListByTermDepartment(ctx context.Context, termID, departmentID string) ([]models.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections WHERE term_id = $1 AND department_id = $2 ORDER BY code ASC`, sectionColumns)
	var rows []sectionRow
	if err := r.db.SelectContext(ctx, &rows, query, termID, departmentID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	sections := make([]models.Section, 0, len(rows))
	for _, row := range rows {
		section, err := row.toModel()
		if err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}
	return sections, nil
}

// FindByID loads a section by id.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections WHERE id = $1`, sectionColumns)
	var row sectionRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	section, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &section, nil
}

// Create stores a new section. The meeting pattern is serialized as JSON.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if section.CreatedAt.IsZero() {
		section.CreatedAt = now
	}
	section.UpdatedAt = now

	pattern, err := json.Marshal(section.Pattern)
	if err != nil {
		return fmt.Errorf("marshal section pattern: %w", err)
	}

	row := sectionRow{Section: *section, PatternRaw: types.JSONText(pattern)}
	const query = `INSERT INTO sections (id, course_id, term_id, department_id, code, course_code, course_name, subject_tag, lecture_hours, lab_hours, capacity, pattern, created_at, updated_at)
		VALUES (:id, :course_id, :term_id, :department_id, :code, :course_code, :course_name, :subject_tag, :lecture_hours, :lab_hours, :capacity, :pattern, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, &row); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}
