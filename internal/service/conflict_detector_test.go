package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadhub/timetable-api/internal/models"
)

func TestDetectConflictsCleanEntries(t *testing.T) {
	res := newDetectorIndex()
	candidates := []models.ScheduleEntry{
		detectorEntry("e1", "sec-1", "fac-1", "room-1", models.Monday, 540, 630),
		detectorEntry("e2", "sec-2", "fac-2", "room-2", models.Monday, 540, 630),
	}

	conflicts := DetectConflicts(candidates, nil, res, true)
	assert.Empty(t, conflicts)
}

func TestDetectConflictsFacultyDoubleBooking(t *testing.T) {
	res := newDetectorIndex()
	candidates := []models.ScheduleEntry{
		detectorEntry("e1", "sec-1", "fac-1", "room-1", models.Monday, 540, 630),
		detectorEntry("e2", "sec-2", "fac-1", "room-2", models.Monday, 600, 690),
	}

	conflicts := DetectConflicts(candidates, nil, res, true)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictFacultyDoubleBooking, conflicts[0].Kind)
	assert.Equal(t, "e1", conflicts[0].EntryA)
	assert.Equal(t, "e2", conflicts[0].EntryB)
}

func TestDetectConflictsRoomDoubleBookingAgainstExisting(t *testing.T) {
	res := newDetectorIndex()
	candidates := []models.ScheduleEntry{
		detectorEntry("new-1", "sec-1", "fac-1", "room-1", models.Tuesday, 480, 570),
	}
	existing := []models.ScheduleEntry{
		detectorEntry("old-1", "sec-2", "fac-2", "room-1", models.Tuesday, 510, 600),
	}

	conflicts := DetectConflicts(candidates, existing, res, true)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictRoomDoubleBooking, conflicts[0].Kind)
	assert.Equal(t, "new-1", conflicts[0].EntryA)
	assert.Equal(t, "old-1", conflicts[0].EntryB)
}

func TestDetectConflictsAdjacentSlotsDoNotOverlap(t *testing.T) {
	res := newDetectorIndex()
	candidates := []models.ScheduleEntry{
		detectorEntry("e1", "sec-1", "fac-1", "room-1", models.Monday, 540, 630),
		detectorEntry("e2", "sec-2", "fac-1", "room-1", models.Monday, 630, 720),
	}

	conflicts := DetectConflicts(candidates, nil, res, true)
	assert.Empty(t, conflicts, "back-to-back slots share a boundary, not time")
}

func TestDetectConflictsDifferentDaysNeverCollide(t *testing.T) {
	res := newDetectorIndex()
	candidates := []models.ScheduleEntry{
		detectorEntry("e1", "sec-1", "fac-1", "room-1", models.Monday, 540, 630),
		detectorEntry("e2", "sec-2", "fac-1", "room-1", models.Wednesday, 540, 630),
	}

	conflicts := DetectConflicts(candidates, nil, res, true)
	assert.Empty(t, conflicts)
}

func TestDetectConflictsSharedRoomExcusesTypeOnly(t *testing.T) {
	// A lab meeting in a shared lecture room: the type mismatch is excused
	// when shared rooms are allowed, the capacity shortfall never is.
	res := newDetectorIndex()
	res.Sections["sec-big"] = models.Section{ID: "sec-big", Capacity: 45}
	res.Rooms["room-small"] = models.Classroom{
		ID: "room-small", Capacity: 30, Type: models.RoomLecture, Shared: true, Active: true,
	}

	entry := detectorEntry("e1", "sec-big", "fac-1", "room-small", models.Friday, 540, 660)
	entry.Kind = models.MeetingLab

	conflicts := DetectConflicts([]models.ScheduleEntry{entry}, nil, res, true)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictCapacityMismatch, conflicts[0].Kind)

	conflicts = DetectConflicts([]models.ScheduleEntry{entry}, nil, res, false)
	require.Len(t, conflicts, 2)
	assert.Equal(t, models.ConflictCapacityMismatch, conflicts[0].Kind)
	assert.Equal(t, models.ConflictRoomTypeMismatch, conflicts[1].Kind)
}

func TestDetectConflictsFacultyBlackout(t *testing.T) {
	res := newDetectorIndex()
	res.Faculty["fac-1"] = models.Faculty{
		ID: "fac-1", Active: true,
		Unavailable: []models.BlackoutWindow{{DayOfWeek: models.Monday, StartMinute: 600, EndMinute: 720}},
	}

	candidates := []models.ScheduleEntry{
		detectorEntry("e1", "sec-1", "fac-1", "room-1", models.Monday, 630, 720),
	}
	conflicts := DetectConflicts(candidates, nil, res, true)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictFacultyUnavailable, conflicts[0].Kind)

	// Outside the window the same pairing is fine.
	clear := detectorEntry("e1", "sec-1", "fac-1", "room-1", models.Monday, 480, 570)
	assert.Empty(t, DetectConflicts([]models.ScheduleEntry{clear}, nil, res, true))
}

func TestDetectConflictsRoomBlackout(t *testing.T) {
	res := newDetectorIndex()
	res.Rooms["room-1"] = models.Classroom{
		ID: "room-1", Capacity: 60, Type: models.RoomShared, Active: true,
		Unavailable: []models.BlackoutWindow{{DayOfWeek: models.Saturday, StartMinute: 420, EndMinute: 1080}},
	}

	candidates := []models.ScheduleEntry{
		detectorEntry("e1", "sec-1", "fac-1", "room-1", models.Saturday, 540, 630),
	}
	conflicts := DetectConflicts(candidates, nil, res, true)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictRoomUnavailable, conflicts[0].Kind)
}

func TestDetectConflictsExcludesSameID(t *testing.T) {
	// A candidate carrying an existing entry's ID is that entry being edited,
	// not a second booking.
	res := newDetectorIndex()
	entry := detectorEntry("e1", "sec-1", "fac-1", "room-1", models.Monday, 540, 630)

	conflicts := DetectConflicts([]models.ScheduleEntry{entry}, []models.ScheduleEntry{entry}, res, true)
	assert.Empty(t, conflicts)
}

func TestDetectConflictsStableOrdering(t *testing.T) {
	res := newDetectorIndex()
	candidates := []models.ScheduleEntry{
		detectorEntry("a", "sec-1", "fac-1", "room-1", models.Monday, 540, 630),
		detectorEntry("b", "sec-2", "fac-1", "room-1", models.Monday, 540, 630),
		detectorEntry("c", "sec-3", "fac-2", "room-2", models.Monday, 540, 630),
	}

	first := DetectConflicts(candidates, nil, res, true)
	second := DetectConflicts(candidates, nil, res, true)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second, "detector output must not vary between runs")

	// Sorted by EntryA, then EntryB, then kind.
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].EntryA)
	assert.Equal(t, models.ConflictFacultyDoubleBooking, first[0].Kind)
	assert.Equal(t, models.ConflictRoomDoubleBooking, first[1].Kind)
}

func TestDetectConflictsUnassignedResourcesSkipChecks(t *testing.T) {
	res := newDetectorIndex()
	entry := models.ScheduleEntry{
		ID: "tba-1", SectionID: "sec-1",
		DayOfWeek: models.Monday, StartMinute: 540, EndMinute: 630,
		Kind: models.MeetingLecture,
	}
	other := detectorEntry("e2", "sec-2", "fac-1", "room-1", models.Monday, 540, 630)

	conflicts := DetectConflicts([]models.ScheduleEntry{entry, other}, nil, res, true)
	assert.Empty(t, conflicts, "entries without faculty or room cannot double book")
}

// --- Fixtures ---

func newDetectorIndex() ResourceIndex {
	return NewResourceIndex(
		[]models.Section{
			{ID: "sec-1", Capacity: 40, CourseCode: "CS101"},
			{ID: "sec-2", Capacity: 40, CourseCode: "CS102"},
			{ID: "sec-3", Capacity: 40, CourseCode: "CS103"},
		},
		[]models.Faculty{
			{ID: "fac-1", Active: true},
			{ID: "fac-2", Active: true},
		},
		[]models.Classroom{
			{ID: "room-1", Capacity: 60, Type: models.RoomShared, Active: true},
			{ID: "room-2", Capacity: 60, Type: models.RoomShared, Active: true},
		},
	)
}

func detectorEntry(id, sectionID, facultyID, roomID string, day, start, end int) models.ScheduleEntry {
	return models.ScheduleEntry{
		ID:           id,
		SectionID:    sectionID,
		TermID:       "term-1",
		DepartmentID: "dept-1",
		FacultyID:    &facultyID,
		RoomID:       &roomID,
		DayOfWeek:    day,
		StartMinute:  start,
		EndMinute:    end,
		Kind:         models.MeetingLecture,
		Status:       models.EntryStatusApproved,
	}
}
