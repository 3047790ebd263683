package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acadhub/timetable-api/internal/dto"
	"github.com/acadhub/timetable-api/internal/models"
	appErrors "github.com/acadhub/timetable-api/pkg/errors"
	"github.com/acadhub/timetable-api/pkg/export"
)

// ExportFormat selects a timetable export rendering.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// TimetableService renders the approved weekly grid for a department and
// term, with a read-through cache in front of the entry store.
type TimetableService struct {
	entries       approvalEntryStore
	sections      sectionReader
	faculty       facultyReader
	rooms         classroomReader
	cache         *CacheService
	logger        *zap.Logger
	cacheTTL      time.Duration
	exportEnabled bool
}

// TimetableConfig tunes view caching and export.
type TimetableConfig struct {
	CacheTTL      time.Duration
	ExportEnabled bool
}

// NewTimetableService wires timetable dependencies. Cache is optional.
func NewTimetableService(
	entries approvalEntryStore,
	sections sectionReader,
	faculty facultyReader,
	rooms classroomReader,
	cache *CacheService,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		entries:       entries,
		sections:      sections,
		faculty:       faculty,
		rooms:         rooms,
		cache:         cache,
		logger:        logger,
		cacheTTL:      cfg.CacheTTL,
		exportEnabled: cfg.ExportEnabled,
	}
}

func timetableCacheKey(departmentID, termID string) string {
	return fmt.Sprintf("timetable:%s:%s", departmentID, termID)
}

// BuildView assembles the approved weekly grid, serving from cache when it
// can.
func (s *TimetableService) BuildView(ctx context.Context, departmentID, termID string) (*dto.TimetableView, error) {
	if departmentID == "" || termID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "departmentId and termId are required")
	}

	key := timetableCacheKey(departmentID, termID)
	var cached dto.TimetableView
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	view, err := s.buildView(ctx, departmentID, termID)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, view, s.cacheTTL)
	return view, nil
}

// Invalidate drops the cached view for one department/term. Called by the
// approval workflow whenever an entry enters or leaves APPROVED.
func (s *TimetableService) Invalidate(ctx context.Context, termID, departmentID string) {
	if err := s.cache.Invalidate(ctx, timetableCacheKey(departmentID, termID)); err != nil {
		s.logger.Warn("timetable cache invalidation failed",
			zap.String("department_id", departmentID),
			zap.String("term_id", termID),
			zap.Error(err))
	}
}

// Export renders the timetable as a downloadable file. Returns the payload,
// suggested filename and content type.
func (s *TimetableService) Export(ctx context.Context, departmentID, termID string, format ExportFormat) ([]byte, string, string, error) {
	if !s.exportEnabled {
		return nil, "", "", appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable export is disabled")
	}
	view, err := s.buildView(ctx, departmentID, termID)
	if err != nil {
		return nil, "", "", err
	}

	table := export.Table{
		Title:   fmt.Sprintf("Timetable %s / %s", departmentID, termID),
		Columns: []string{"Day", "Start", "End", "Section", "Course", "Faculty", "Room", "Kind"},
	}
	for _, day := range view.Days {
		for _, cell := range day.Cells {
			table.Rows = append(table.Rows, []string{
				day.DayName, cell.Start, cell.End,
				cell.SectionCode, cell.CourseCode, cell.FacultyName, cell.RoomCode, cell.Kind,
			})
		}
	}

	base := fmt.Sprintf("timetable-%s-%s", departmentID, termID)
	switch format {
	case ExportCSV:
		payload, err := export.CSV(table)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return payload, base + ".csv", "text/csv", nil
	case ExportPDF:
		payload, err := export.PDF(table)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return payload, base + ".pdf", "application/pdf", nil
	}
	return nil, "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
}

func (s *TimetableService) buildView(ctx context.Context, departmentID, termID string) (*dto.TimetableView, error) {
	entries, err := s.entries.ListByTermDepartment(ctx, termID, departmentID, []models.EntryStatus{models.EntryStatusApproved})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approved entries")
	}

	sections, err := s.sections.ListByTermDepartment(ctx, termID, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	faculty, err := s.faculty.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	rooms, err := s.rooms.ListAvailable(ctx, departmentID, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classrooms")
	}

	sectionByID := make(map[string]models.Section, len(sections))
	for _, sec := range sections {
		sectionByID[sec.ID] = sec
	}
	facultyName := make(map[string]string, len(faculty))
	for _, f := range faculty {
		facultyName[f.ID] = f.FullName
	}
	roomCode := make(map[string]string, len(rooms))
	for _, r := range rooms {
		roomCode[r.ID] = r.Code
	}

	byDay := make(map[int][]dto.TimetableCell)
	for _, e := range entries {
		cell := dto.TimetableCell{
			EntryID: e.ID,
			Start:   models.MinutesToClock(e.StartMinute),
			End:     models.MinutesToClock(e.EndMinute),
			Kind:    string(e.Kind),
			Status:  string(e.Status),
		}
		if sec, ok := sectionByID[e.SectionID]; ok {
			cell.SectionCode = sec.Code
			cell.CourseCode = sec.CourseCode
		}
		if e.FacultyID != nil {
			cell.FacultyName = facultyName[*e.FacultyID]
		}
		if e.RoomID != nil {
			cell.RoomCode = roomCode[*e.RoomID]
		}
		byDay[e.DayOfWeek] = append(byDay[e.DayOfWeek], cell)
	}

	days := make([]int, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Ints(days)

	view := &dto.TimetableView{DepartmentID: departmentID, TermID: termID, Days: []dto.TimetableDay{}}
	for _, d := range days {
		cells := byDay[d]
		sort.Slice(cells, func(i, j int) bool {
			if cells[i].Start != cells[j].Start {
				return cells[i].Start < cells[j].Start
			}
			return strings.Compare(cells[i].EntryID, cells[j].EntryID) < 0
		})
		view.Days = append(view.Days, dto.TimetableDay{
			DayOfWeek: d,
			DayName:   models.DayName(d),
			Cells:     cells,
		})
	}
	return view, nil
}
