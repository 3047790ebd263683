package service

import (
	"fmt"
	"sort"

	"github.com/acadhub/timetable-api/internal/models"
)

// ResourceIndex holds the entity snapshots the detector checks entries
// against. Callers build it from whatever scope they are validating; the
// detector itself performs no I/O.
type ResourceIndex struct {
	Sections map[string]models.Section
	Faculty  map[string]models.Faculty
	Rooms    map[string]models.Classroom
}

// NewResourceIndex indexes the given snapshots by ID.
func NewResourceIndex(sections []models.Section, faculty []models.Faculty, rooms []models.Classroom) ResourceIndex {
	idx := ResourceIndex{
		Sections: make(map[string]models.Section, len(sections)),
		Faculty:  make(map[string]models.Faculty, len(faculty)),
		Rooms:    make(map[string]models.Classroom, len(rooms)),
	}
	for _, s := range sections {
		idx.Sections[s.ID] = s
	}
	for _, f := range faculty {
		idx.Faculty[f.ID] = f
	}
	for _, r := range rooms {
		idx.Rooms[r.ID] = r
	}
	return idx
}

func roomTypeAllowed(room models.Classroom, kind models.MeetingKind, allowSharedRooms bool) bool {
	if room.SupportsKind(kind) {
		return true
	}
	return room.Shared && allowSharedRooms
}

// DetectConflicts validates candidate entries against each other and against
// the already-committed set. It is a pure function: repeated calls with the
// same input produce an identical, identically-ordered conflict list. Entry
// statuses are never touched.
func DetectConflicts(candidates, existing []models.ScheduleEntry, res ResourceIndex, allowSharedRooms bool) []models.Conflict {
	var conflicts []models.Conflict

	for i, entry := range candidates {
		conflicts = append(conflicts, resourceConflicts(entry, res, allowSharedRooms)...)

		for _, other := range existing {
			if other.ID == entry.ID {
				continue
			}
			conflicts = append(conflicts, pairConflicts(entry, other)...)
		}
		for _, other := range candidates[i+1:] {
			conflicts = append(conflicts, pairConflicts(entry, other)...)
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.EntryA != b.EntryA {
			return a.EntryA < b.EntryA
		}
		if a.EntryB != b.EntryB {
			return a.EntryB < b.EntryB
		}
		return a.Kind < b.Kind
	})
	return conflicts
}

// pairConflicts reports double bookings between two entries sharing a faculty
// member or a room. Overlap is half-open interval intersection on one day.
func pairConflicts(a, b models.ScheduleEntry) []models.Conflict {
	if !a.Slot().Overlaps(b.Slot()) {
		return nil
	}
	var out []models.Conflict
	if a.SharesFaculty(b) {
		out = append(out, models.Conflict{
			Kind:   models.ConflictFacultyDoubleBooking,
			EntryA: a.ID,
			EntryB: b.ID,
			Reason: fmt.Sprintf("faculty %s booked twice at %s", *a.FacultyID, a.Slot()),
		})
	}
	if a.SharesRoom(b) {
		out = append(out, models.Conflict{
			Kind:   models.ConflictRoomDoubleBooking,
			EntryA: a.ID,
			EntryB: b.ID,
			Reason: fmt.Sprintf("room %s booked twice at %s", *a.RoomID, a.Slot()),
		})
	}
	return out
}

// resourceConflicts validates one entry against the static constraints of its
// assigned resources: room capacity and type, and both parties' blackouts.
func resourceConflicts(entry models.ScheduleEntry, res ResourceIndex, allowSharedRooms bool) []models.Conflict {
	var out []models.Conflict
	slot := entry.Slot()

	if entry.FacultyID != nil {
		if fac, ok := res.Faculty[*entry.FacultyID]; ok && !fac.AvailableAt(slot) {
			out = append(out, models.Conflict{
				Kind:   models.ConflictFacultyUnavailable,
				EntryA: entry.ID,
				Reason: fmt.Sprintf("faculty %s is unavailable at %s", fac.ID, slot),
			})
		}
	}

	if entry.RoomID == nil {
		return out
	}
	room, ok := res.Rooms[*entry.RoomID]
	if !ok {
		return out
	}

	if !room.AvailableAt(slot) {
		out = append(out, models.Conflict{
			Kind:   models.ConflictRoomUnavailable,
			EntryA: entry.ID,
			Reason: fmt.Sprintf("room %s is unavailable at %s", room.ID, slot),
		})
	}

	if section, ok := res.Sections[entry.SectionID]; ok {
		if room.Capacity < section.Capacity {
			out = append(out, models.Conflict{
				Kind:   models.ConflictCapacityMismatch,
				EntryA: entry.ID,
				Reason: fmt.Sprintf("room %s seats %d but section %s expects %d", room.ID, room.Capacity, section.ID, section.Capacity),
			})
		}
	}

	kind := entry.Kind
	if kind == "" {
		kind = models.MeetingLecture
	}
	if !roomTypeAllowed(room, kind, allowSharedRooms) {
		out = append(out, models.Conflict{
			Kind:   models.ConflictRoomTypeMismatch,
			EntryA: entry.ID,
			Reason: fmt.Sprintf("room %s (%s) cannot host a %s meeting", room.ID, room.Type, kind),
		})
	}
	return out
}
