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

const classroomColumns = `id, code, department_id, capacity, room_type, shared, unavailable, active, created_at, updated_at`

type classroomRow struct {
	models.Classroom
	UnavailableRaw types.JSONText `db:"unavailable"`
}

func (row classroomRow) toModel() (models.Classroom, error) {
	room := row.Classroom
	if len(row.UnavailableRaw) > 0 && string(row.UnavailableRaw) != "null" {
		if err := json.Unmarshal(row.UnavailableRaw, &room.Unavailable); err != nil {
			return models.Classroom{}, fmt.Errorf("unmarshal classroom %s unavailable windows: %w", room.ID, err)
		}
	}
	return room, nil
}

// ClassroomRepository persists classroom records.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository creates a new classroom repository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// ListAvailable returns the active rooms a department can schedule into:
// its own rooms plus, when includeShared is set, shared rooms owned
// elsewhere.
func (r *ClassroomRepository) ListAvailable(ctx context.Context, departmentID string, includeShared bool) ([]models.Classroom, error) {
	query := fmt.Sprintf(`SELECT %s FROM classrooms WHERE active = TRUE AND (department_id = $1 OR (shared = TRUE AND $2)) ORDER BY capacity ASC, code ASC`, classroomColumns)
	var rows []classroomRow
	if err := r.db.SelectContext(ctx, &rows, query, departmentID, includeShared); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	rooms := make([]models.Classroom, 0, len(rows))
	for _, row := range rows {
		room, err := row.toModel()
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// FindByID loads a classroom by id.
func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	query := fmt.Sprintf(`SELECT %s FROM classrooms WHERE id = $1`, classroomColumns)
	var row classroomRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	room, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// Create stores a new classroom record.
func (r *ClassroomRepository) Create(ctx context.Context, room *models.Classroom) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	unavailable, err := json.Marshal(room.Unavailable)
	if err != nil {
		return fmt.Errorf("marshal classroom unavailable windows: %w", err)
	}

	row := classroomRow{Classroom: *room, UnavailableRaw: types.JSONText(unavailable)}
	const query = `INSERT INTO classrooms (id, code, department_id, capacity, room_type, shared, unavailable, active, created_at, updated_at)
		VALUES (:id, :code, :department_id, :capacity, :room_type, :shared, :unavailable, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, &row); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}
