package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acadhub/timetable-api/internal/dto"
	"github.com/acadhub/timetable-api/internal/models"
	appErrors "github.com/acadhub/timetable-api/pkg/errors"
	"github.com/acadhub/timetable-api/pkg/jobs"
)

var testActor = models.ActorContext{UserID: "user-1", Role: models.RoleChair, DepartmentID: "dept-1"}

func TestScheduleGeneratorServiceGenerateSplitsLectureAroundBlackout(t *testing.T) {
	service := newGeneratorServiceFixture(t, generatorFixtureConfig{
		faculty: []models.Faculty{{
			ID: "fac-1", FullName: "A. Reyes", DepartmentID: "dept-1", Active: true,
			Unavailable: []models.BlackoutWindow{{DayOfWeek: models.Monday, StartMinute: 600, EndMinute: 720}},
		}},
	})

	resp, err := service.Generate(context.Background(), testActor, dto.GenerateScheduleRequest{
		TermID:       "term-1",
		DepartmentID: "dept-1",
		Seed:         1,
	})
	require.NoError(t, err)
	assert.Equal(t, ProposalStatusReady, resp.Status)
	assert.Empty(t, resp.Unplaced)
	require.Len(t, resp.Placed, 2, "three lecture hours split into two meetings")
	assert.Equal(t, 1, resp.Stats.SectionsPlaced)
	assert.Equal(t, 2, resp.Stats.EntriesPlaced)

	blocked := models.TimeSlot{DayOfWeek: models.Monday, StartMinute: 600, EndMinute: 720}
	assert.NotEqual(t, resp.Placed[0].DayOfWeek, resp.Placed[1].DayOfWeek, "meetings spread over distinct days")
	for _, entry := range resp.Placed {
		assert.Equal(t, 90, entry.Slot().Duration())
		assert.False(t, entry.Slot().Overlaps(blocked), "placement must respect the blackout window")
		require.NotNil(t, entry.FacultyID)
		assert.Equal(t, "fac-1", *entry.FacultyID)
	}
}

func TestScheduleGeneratorServiceGenerateDeterministicForSeed(t *testing.T) {
	cfg := generatorFixtureConfig{
		faculty: []models.Faculty{
			{ID: "fac-1", DepartmentID: "dept-1", Active: true},
			{ID: "fac-2", DepartmentID: "dept-1", Active: true},
			{ID: "fac-3", DepartmentID: "dept-1", Active: true},
		},
	}
	req := dto.GenerateScheduleRequest{TermID: "term-1", DepartmentID: "dept-1", Seed: 42}

	first, err := newGeneratorServiceFixture(t, cfg).Generate(context.Background(), testActor, req)
	require.NoError(t, err)
	second, err := newGeneratorServiceFixture(t, cfg).Generate(context.Background(), testActor, req)
	require.NoError(t, err)

	assert.Equal(t, first.Placed, second.Placed, "same seed and input must reproduce the placement")
	assert.Equal(t, first.Unplaced, second.Unplaced)
	assert.Equal(t, int64(42), first.Stats.Seed)
}

func TestScheduleGeneratorServiceGenerateReportsUnplacedSections(t *testing.T) {
	service := newGeneratorServiceFixture(t, generatorFixtureConfig{
		sections: []models.Section{
			{ID: "sec-a", CourseCode: "NET301", SubjectTag: "networking", LectureHours: 2, Capacity: 30},
			{ID: "sec-b", CourseCode: "NET302", SubjectTag: "networking", LectureHours: 2, Capacity: 30},
		},
		faculty: []models.Faculty{
			{ID: "fac-1", DepartmentID: "dept-1", Active: true, Specializations: []string{"networking"}},
			{ID: "fac-2", DepartmentID: "dept-1", Active: true, Specializations: []string{"algebra"}},
		},
	})

	resp, err := service.Generate(context.Background(), testActor, dto.GenerateScheduleRequest{
		TermID:       "term-1",
		DepartmentID: "dept-1",
		Seed:         3,
		Constraints: dto.Constraints{
			RequireSpecializationMatch: true,
			MaxSectionsPerFaculty:      1,
		},
	})
	require.NoError(t, err, "unplaced sections are a result, not an error")
	assert.Equal(t, ProposalStatusReady, resp.Status)
	require.Len(t, resp.Unplaced, 1)
	assert.Equal(t, "sec-b", resp.Unplaced[0].SectionID)
	assert.Equal(t, models.UnplacedNoFaculty, resp.Unplaced[0].Reason)

	require.NotEmpty(t, resp.Placed)
	for _, entry := range resp.Placed {
		assert.Equal(t, "sec-a", entry.SectionID)
		assert.Equal(t, "fac-1", *entry.FacultyID, "only the specialist may take the section")
	}
}

func TestScheduleGeneratorServiceGenerateCountsCommittedSectionsAgainstCap(t *testing.T) {
	facultyID := "fac-1"
	roomID := "room-1"
	committed := models.ScheduleEntry{
		ID: "committed-1", SectionID: "sec-old", TermID: "term-1", DepartmentID: "dept-1",
		FacultyID: &facultyID, RoomID: &roomID,
		DayOfWeek: models.Friday, StartMinute: 540, EndMinute: 630,
		Kind: models.MeetingLecture, Status: models.EntryStatusApproved,
	}
	service := newGeneratorServiceFixture(t, generatorFixtureConfig{
		faculty: []models.Faculty{
			{ID: "fac-1", FullName: "A. Reyes", DepartmentID: "dept-1", Active: true},
			{ID: "fac-2", FullName: "B. Santos", DepartmentID: "dept-1", Active: true},
		},
		entries: &entryRepoGeneratorStub{existing: []models.ScheduleEntry{committed}},
	})

	resp, err := service.Generate(context.Background(), testActor, dto.GenerateScheduleRequest{
		TermID:       "term-1",
		DepartmentID: "dept-1",
		Seed:         1,
		Constraints:  dto.Constraints{MaxSectionsPerFaculty: 1},
	})
	require.NoError(t, err)
	require.Empty(t, resp.Unplaced)
	require.NotEmpty(t, resp.Placed)
	for _, entry := range resp.Placed {
		assert.Equal(t, "fac-2", *entry.FacultyID, "fac-1 already teaches a full section load")
	}

	// With no second faculty member, the committed section exhausts the cap.
	service = newGeneratorServiceFixture(t, generatorFixtureConfig{
		entries: &entryRepoGeneratorStub{existing: []models.ScheduleEntry{committed}},
	})
	resp, err = service.Generate(context.Background(), testActor, dto.GenerateScheduleRequest{
		TermID:       "term-1",
		DepartmentID: "dept-1",
		Seed:         1,
		Constraints:  dto.Constraints{MaxSectionsPerFaculty: 1},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Placed)
	require.Len(t, resp.Unplaced, 1)
	assert.Equal(t, models.UnplacedNoFaculty, resp.Unplaced[0].Reason)
}

func TestScheduleGeneratorServiceGeneratePlacementsPassDetector(t *testing.T) {
	sections := []models.Section{
		{
			ID: "sec-101", CourseID: "crs-101", TermID: "term-1", DepartmentID: "dept-1",
			Code: "CS101-A", CourseCode: "CS101", CourseName: "Intro to Computing",
			LectureHours: 3, Capacity: 40,
		},
		{
			ID: "sec-102", CourseID: "crs-102", TermID: "term-1", DepartmentID: "dept-1",
			Code: "CS102-A", CourseCode: "CS102", CourseName: "Discrete Structures",
			LectureHours: 2, Capacity: 40,
		},
		{
			ID: "sec-103", CourseID: "crs-103", TermID: "term-1", DepartmentID: "dept-1",
			Code: "CS103-A", CourseCode: "CS103", CourseName: "Programming I",
			LectureHours: 3, Capacity: 40,
		},
	}
	faculty := []models.Faculty{
		{ID: "fac-1", FullName: "A. Reyes", DepartmentID: "dept-1", Active: true},
		{ID: "fac-2", FullName: "B. Santos", DepartmentID: "dept-1", Active: true},
	}
	rooms := []models.Classroom{
		{ID: "room-1", Code: "RM-101", DepartmentID: "dept-1", Capacity: 60, Type: models.RoomShared, Active: true},
		{ID: "room-2", Code: "RM-102", DepartmentID: "dept-1", Capacity: 45, Type: models.RoomLecture, Active: true},
	}
	facultyID := "fac-1"
	roomID := "room-1"
	existing := []models.ScheduleEntry{{
		ID: "committed-1", SectionID: "sec-old", TermID: "term-1", DepartmentID: "dept-1",
		FacultyID: &facultyID, RoomID: &roomID,
		DayOfWeek: models.Monday, StartMinute: 420, EndMinute: 510,
		Kind: models.MeetingLecture, Status: models.EntryStatusApproved,
	}}
	service := newGeneratorServiceFixture(t, generatorFixtureConfig{
		sections: sections,
		faculty:  faculty,
		rooms:    rooms,
		entries:  &entryRepoGeneratorStub{existing: existing},
	})

	resp, err := service.Generate(context.Background(), testActor, dto.GenerateScheduleRequest{
		TermID:       "term-1",
		DepartmentID: "dept-1",
		Seed:         7,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Placed)

	// Every placement the occupancy maps admitted must also satisfy the
	// detector, against the committed entries and between themselves.
	res := NewResourceIndex(sections, faculty, rooms)
	conflicts := DetectConflicts(resp.Placed, existing, res, true)
	assert.Empty(t, conflicts)
}

func TestScheduleGeneratorServiceGeneratePreconditions(t *testing.T) {
	cases := []struct {
		name string
		cfg  generatorFixtureConfig
	}{
		{"no sections", generatorFixtureConfig{sections: []models.Section{}}},
		{"zero hour section", generatorFixtureConfig{
			sections: []models.Section{{ID: "sec-z", CourseCode: "ZRO100", Capacity: 10}},
		}},
		{"no faculty", generatorFixtureConfig{faculty: []models.Faculty{}}},
		{"no rooms", generatorFixtureConfig{rooms: []models.Classroom{}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := newGeneratorServiceFixture(t, tc.cfg)
			_, err := service.Generate(context.Background(), testActor, dto.GenerateScheduleRequest{
				TermID:       "term-1",
				DepartmentID: "dept-1",
				Seed:         1,
			})
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestScheduleGeneratorServiceGenerateValidation(t *testing.T) {
	service := newGeneratorServiceFixture(t, generatorFixtureConfig{})

	_, err := service.Generate(context.Background(), testActor, dto.GenerateScheduleRequest{TermID: "term-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleGeneratorServiceGenerateAsyncRequiresQueue(t *testing.T) {
	service := newGeneratorServiceFixture(t, generatorFixtureConfig{})

	_, err := service.Generate(context.Background(), testActor, dto.GenerateScheduleRequest{
		TermID:       "term-1",
		DepartmentID: "dept-1",
		Async:        true,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestScheduleGeneratorServiceHandleGenerationJob(t *testing.T) {
	service := newGeneratorServiceFixture(t, generatorFixtureConfig{})
	req := dto.GenerateScheduleRequest{TermID: "term-1", DepartmentID: "dept-1", Seed: 5}

	err := service.HandleGenerationJob(context.Background(), jobs.Job{ID: "proposal-1", Type: "schedule.generate", Payload: req})
	require.NoError(t, err)

	resp, err := service.GetProposal(context.Background(), "proposal-1")
	require.NoError(t, err)
	assert.Equal(t, ProposalStatusReady, resp.Status)
	assert.NotEmpty(t, resp.Placed)
}

func TestScheduleGeneratorServiceHandleGenerationJobFailure(t *testing.T) {
	service := newGeneratorServiceFixture(t, generatorFixtureConfig{faculty: []models.Faculty{}})
	req := dto.GenerateScheduleRequest{TermID: "term-1", DepartmentID: "dept-1", Seed: 5}

	err := service.HandleGenerationJob(context.Background(), jobs.Job{ID: "proposal-2", Type: "schedule.generate", Payload: req})
	require.NoError(t, err, "run failures are stored on the proposal, not returned")

	resp, err := service.GetProposal(context.Background(), "proposal-2")
	require.NoError(t, err)
	assert.Equal(t, ProposalStatusFailed, resp.Status)
}

func TestScheduleGeneratorServiceGetProposalExpiry(t *testing.T) {
	service := newGeneratorServiceFixture(t, generatorFixtureConfig{ttl: 10 * time.Millisecond})

	resp, err := service.Generate(context.Background(), testActor, dto.GenerateScheduleRequest{
		TermID:       "term-1",
		DepartmentID: "dept-1",
		Seed:         1,
	})
	require.NoError(t, err)

	_, err = service.GetProposal(context.Background(), resp.ProposalID)
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)
	_, err = service.GetProposal(context.Background(), resp.ProposalID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleGeneratorServiceSaveDraft(t *testing.T) {
	txProvider, mock := newTxProviderMock(t)
	entries := &entryRepoGeneratorStub{}
	service := newGeneratorServiceFixture(t, generatorFixtureConfig{tx: txProvider, entries: entries})

	resp, err := service.Generate(context.Background(), testActor, dto.GenerateScheduleRequest{
		TermID:       "term-1",
		DepartmentID: "dept-1",
		Seed:         1,
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	saved, err := service.Save(context.Background(), testActor, dto.SaveScheduleRequest{ProposalID: resp.ProposalID})
	require.NoError(t, err)
	require.Len(t, saved, len(resp.Placed))
	for _, entry := range saved {
		assert.Equal(t, models.EntryStatusDraft, entry.Status)
		assert.NotEmpty(t, entry.ID)
		assert.NotContains(t, entry.ID, "-m", "provisional proposal IDs are replaced on save")
	}
	assert.Len(t, entries.saved, len(resp.Placed))
	assert.NoError(t, mock.ExpectationsWereMet())

	// The proposal is consumed by a successful save.
	_, err = service.Save(context.Background(), testActor, dto.SaveScheduleRequest{ProposalID: resp.ProposalID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleGeneratorServiceSaveClearsStaleDrafts(t *testing.T) {
	facultyID := "fac-9"
	roomID := "room-1"
	txProvider, mock := newTxProviderMock(t)
	entries := &entryRepoGeneratorStub{existing: []models.ScheduleEntry{{
		ID: "stale-1", SectionID: "sec-101", TermID: "term-1", DepartmentID: "dept-1",
		FacultyID: &facultyID, RoomID: &roomID,
		DayOfWeek: models.Monday, StartMinute: 420, EndMinute: 510,
		Kind: models.MeetingLecture, Status: models.EntryStatusDraft,
	}}}
	service := newGeneratorServiceFixture(t, generatorFixtureConfig{tx: txProvider, entries: entries})

	resp, err := service.Generate(context.Background(), testActor, dto.GenerateScheduleRequest{
		TermID:       "term-1",
		DepartmentID: "dept-1",
		Seed:         1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Placed)

	mock.ExpectBegin()
	mock.ExpectCommit()

	// The stale draft occupies a slot but never blocks the save: it is
	// replaced inside the same transaction.
	saved, err := service.Save(context.Background(), testActor, dto.SaveScheduleRequest{ProposalID: resp.ProposalID})
	require.NoError(t, err)
	require.Len(t, saved, len(resp.Placed))
	assert.Equal(t, 1, entries.draftsCleared)
	for _, entry := range entries.existing {
		assert.NotEqual(t, "stale-1", entry.ID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleGeneratorServiceSaveConflictWithCommittedEntries(t *testing.T) {
	entries := &entryRepoGeneratorStub{}
	service := newGeneratorServiceFixture(t, generatorFixtureConfig{entries: entries})

	resp, err := service.Generate(context.Background(), testActor, dto.GenerateScheduleRequest{
		TermID:       "term-1",
		DepartmentID: "dept-1",
		Seed:         1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Placed)

	// Another proposal claimed the same room slot between generate and save.
	rival := resp.Placed[0]
	rival.ID = "committed-1"
	rival.FacultyID = nil
	rival.Status = models.EntryStatusApproved
	entries.existing = []models.ScheduleEntry{rival}

	_, err = service.Save(context.Background(), testActor, dto.SaveScheduleRequest{ProposalID: resp.ProposalID})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	var conflictErr *models.TimetableConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.NotEmpty(t, conflictErr.Conflicts)

	// The conflicted proposal is retained for regeneration.
	_, err = service.GetProposal(context.Background(), resp.ProposalID)
	assert.NoError(t, err)
}

func TestScheduleGeneratorServiceDetectConflicts(t *testing.T) {
	roomID := "room-1"
	facultyID := "fac-1"
	entries := &entryRepoGeneratorStub{existing: []models.ScheduleEntry{{
		ID: "committed-1", SectionID: "sec-101", TermID: "term-1", DepartmentID: "dept-1",
		FacultyID: &facultyID, RoomID: &roomID,
		DayOfWeek: models.Monday, StartMinute: 540, EndMinute: 630,
		Kind: models.MeetingLecture, Status: models.EntryStatusApproved,
	}}}
	service := newGeneratorServiceFixture(t, generatorFixtureConfig{entries: entries})

	resp, err := service.DetectConflicts(context.Background(), dto.DetectConflictsRequest{
		TermID:       "term-1",
		DepartmentID: "dept-1",
		Candidates: []dto.CandidateEntry{{
			SectionID: "sec-101", RoomID: &roomID,
			DayOfWeek: models.Monday, StartMinute: 570, EndMinute: 660,
		}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, models.ConflictRoomDoubleBooking, resp.Conflicts[0].Kind)

	// Naming the committed entry marks the candidate as its replacement, so
	// the original drops out of the comparison.
	resp, err = service.DetectConflicts(context.Background(), dto.DetectConflictsRequest{
		TermID:       "term-1",
		DepartmentID: "dept-1",
		Candidates: []dto.CandidateEntry{{
			EntryID: "committed-1", SectionID: "sec-101", RoomID: &roomID,
			DayOfWeek: models.Monday, StartMinute: 570, EndMinute: 660,
		}},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Conflicts)
}

// --- Fixtures ---

type generatorFixtureConfig struct {
	sections []models.Section
	faculty  []models.Faculty
	rooms    []models.Classroom
	entries  *entryRepoGeneratorStub
	tx       txProvider
	ttl      time.Duration
}

func newGeneratorServiceFixture(t *testing.T, cfg generatorFixtureConfig) *ScheduleGeneratorService {
	t.Helper()

	sections := cfg.sections
	if sections == nil {
		sections = []models.Section{{
			ID: "sec-101", CourseID: "crs-101", TermID: "term-1", DepartmentID: "dept-1",
			Code: "CS101-A", CourseCode: "CS101", CourseName: "Intro to Computing",
			LectureHours: 3, Capacity: 40,
		}}
	}
	faculty := cfg.faculty
	if faculty == nil {
		faculty = []models.Faculty{{ID: "fac-1", FullName: "A. Reyes", DepartmentID: "dept-1", Active: true}}
	}
	rooms := cfg.rooms
	if rooms == nil {
		rooms = []models.Classroom{{
			ID: "room-1", Code: "RM-101", DepartmentID: "dept-1",
			Capacity: 60, Type: models.RoomShared, Active: true,
		}}
	}
	entries := cfg.entries
	if entries == nil {
		entries = &entryRepoGeneratorStub{}
	}
	tx := cfg.tx
	if tx == nil {
		tx = noopTxProvider{}
	}
	ttl := cfg.ttl
	if ttl == 0 {
		ttl = time.Hour
	}

	return NewScheduleGeneratorService(
		sectionRepoGeneratorStub{items: sections},
		facultyRepoGeneratorStub{items: faculty},
		classroomRepoGeneratorStub{items: rooms},
		entries,
		tx,
		nil,
		nil,
		validator.New(),
		zap.NewNop(),
		ScheduleGeneratorConfig{ProposalTTL: ttl},
	)
}

type sectionRepoGeneratorStub struct {
	items []models.Section
}

func (s sectionRepoGeneratorStub) ListByTermDepartment(ctx context.Context, termID, departmentID string) ([]models.Section, error) {
	return s.items, nil
}

type facultyRepoGeneratorStub struct {
	items []models.Faculty
}

func (s facultyRepoGeneratorStub) ListByDepartment(ctx context.Context, departmentID string) ([]models.Faculty, error) {
	return s.items, nil
}

type classroomRepoGeneratorStub struct {
	items []models.Classroom
}

func (s classroomRepoGeneratorStub) ListAvailable(ctx context.Context, departmentID string, includeShared bool) ([]models.Classroom, error) {
	return s.items, nil
}

type entryRepoGeneratorStub struct {
	existing      []models.ScheduleEntry
	saved         []models.ScheduleEntry
	draftsCleared int
}

func (s *entryRepoGeneratorStub) ListByTermDepartment(ctx context.Context, termID, departmentID string, statuses []models.EntryStatus) ([]models.ScheduleEntry, error) {
	if len(statuses) == 0 {
		return s.existing, nil
	}
	allowed := make(map[models.EntryStatus]bool, len(statuses))
	for _, status := range statuses {
		allowed[status] = true
	}
	var out []models.ScheduleEntry
	for _, e := range s.existing {
		if allowed[e.Status] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *entryRepoGeneratorStub) DeleteDraftsWithTx(ctx context.Context, tx *sqlx.Tx, termID, departmentID string) (int64, error) {
	var kept []models.ScheduleEntry
	var removed int64
	for _, e := range s.existing {
		if e.Status == models.EntryStatusDraft {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.existing = kept
	s.draftsCleared++
	return removed, nil
}

func (s *entryRepoGeneratorStub) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, entries []models.ScheduleEntry) error {
	s.saved = append(s.saved, entries...)
	return nil
}

type noopTxProvider struct{}

func (noopTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider unavailable")
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}
