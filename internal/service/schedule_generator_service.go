package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/acadhub/timetable-api/internal/dto"
	"github.com/acadhub/timetable-api/internal/models"
	appErrors "github.com/acadhub/timetable-api/pkg/errors"
	"github.com/acadhub/timetable-api/pkg/jobs"
)

type sectionReader interface {
	ListByTermDepartment(ctx context.Context, termID, departmentID string) ([]models.Section, error)
}

type facultyReader interface {
	ListByDepartment(ctx context.Context, departmentID string) ([]models.Faculty, error)
}

type classroomReader interface {
	ListAvailable(ctx context.Context, departmentID string, includeShared bool) ([]models.Classroom, error)
}

type entryStore interface {
	ListByTermDepartment(ctx context.Context, termID, departmentID string, statuses []models.EntryStatus) ([]models.ScheduleEntry, error)
	DeleteDraftsWithTx(ctx context.Context, tx *sqlx.Tx, termID, departmentID string) (int64, error)
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, entries []models.ScheduleEntry) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type auditRecorder interface {
	Record(ctx context.Context, log models.AuditLog) error
}

type generationObserver interface {
	ObserveGenerationRun(elapsed time.Duration, placed, unplaced int)
}

// Proposal lifecycle states. Synchronous runs go straight to READY.
const (
	ProposalStatusQueued = "QUEUED"
	ProposalStatusReady  = "READY"
	ProposalStatusFailed = "FAILED"
)

// Statuses that occupy resources. Rejected entries hold nothing.
var activeEntryStatuses = []models.EntryStatus{
	models.EntryStatusDraft,
	models.EntryStatusPending,
	models.EntryStatusApproved,
}

// ScheduleGeneratorService builds timetable proposals for a department and
// term, holds them for review, and persists accepted ones as draft entries.
type ScheduleGeneratorService struct {
	sections  sectionReader
	faculty   facultyReader
	rooms     classroomReader
	entries   entryStore
	tx        txProvider
	audit     auditRecorder
	metrics   generationObserver
	validator *validator.Validate
	logger    *zap.Logger
	store     *proposalStore
	queue     *jobs.Queue
	grid      models.TimeGrid
}

// ScheduleGeneratorConfig governs generator behaviour.
type ScheduleGeneratorConfig struct {
	ProposalTTL time.Duration
	Grid        models.TimeGrid
}

// NewScheduleGeneratorService wires generator dependencies. Audit and metrics
// are optional; queue is attached later via AttachQueue because the queue
// handler needs the service.
func NewScheduleGeneratorService(
	sections sectionReader,
	faculty facultyReader,
	rooms classroomReader,
	entries entryStore,
	tx txProvider,
	audit auditRecorder,
	metrics generationObserver,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ScheduleGeneratorConfig,
) *ScheduleGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if !cfg.Grid.Valid() {
		cfg.Grid = models.DefaultGrid()
	}
	return &ScheduleGeneratorService{
		sections:  sections,
		faculty:   faculty,
		rooms:     rooms,
		entries:   entries,
		tx:        tx,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		store:     newProposalStore(cfg.ProposalTTL),
		grid:      cfg.Grid,
	}
}

// AttachQueue enables asynchronous generation runs.
func (s *ScheduleGeneratorService) AttachQueue(q *jobs.Queue) {
	s.queue = q
}

// HandleGenerationJob is the queue handler for async runs.
func (s *ScheduleGeneratorService) HandleGenerationJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.GenerateScheduleRequest)
	if !ok {
		return appErrors.Clone(appErrors.ErrInternal, "unexpected generation job payload")
	}
	s.runAndStore(ctx, job.ID, req)
	return nil
}

// Generate builds a timetable proposal. Unplaced sections are reported as
// data, never as an error; the run only fails on empty resource pools or
// malformed input. With Async set the proposal is queued and the caller polls
// GetProposal for the result.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, actor models.ActorContext, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}

	if req.Async {
		if s.queue == nil {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "asynchronous generation is not enabled")
		}
		proposalID := uuid.NewString()
		s.store.Save(scheduleProposal{
			ID:           proposalID,
			TermID:       req.TermID,
			DepartmentID: req.DepartmentID,
			Status:       ProposalStatusQueued,
			Constraints:  req.Constraints,
			Seed:         req.Seed,
			RequestedAt:  time.Now().UTC(),
		})
		if err := s.queue.Submit(jobs.Job{ID: proposalID, Type: "schedule.generate", Payload: req}); err != nil {
			s.store.Delete(proposalID)
			return nil, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "generation queue is full")
		}
		s.recordAudit(ctx, actor, models.AuditActionScheduleGenerate, "schedule_proposal", proposalID, req)
		return &dto.GenerateScheduleResponse{ProposalID: proposalID, Status: ProposalStatusQueued}, nil
	}

	proposalID := uuid.NewString()
	proposal, err := s.run(ctx, proposalID, req)
	if err != nil {
		return nil, err
	}
	s.store.Save(*proposal)
	s.recordAudit(ctx, actor, models.AuditActionScheduleGenerate, "schedule_proposal", proposalID, proposal.Stats)
	return proposalResponse(*proposal), nil
}

// GetProposal returns a held proposal by ID. Expired proposals read as not
// found, same as unknown IDs.
func (s *ScheduleGeneratorService) GetProposal(ctx context.Context, proposalID string) (*dto.GenerateScheduleResponse, error) {
	if proposalID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "proposal id is required")
	}
	proposal, ok := s.store.Get(proposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return proposalResponse(proposal), nil
}

// Save persists a ready proposal as draft schedule entries. The committed set
// may have moved since generation, so conflicts are re-checked inside the
// transaction boundary; any finding aborts the save.
func (s *ScheduleGeneratorService) Save(ctx context.Context, actor models.ActorContext, req dto.SaveScheduleRequest) ([]models.ScheduleEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save schedule payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if proposal.Status != ProposalStatusReady {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("proposal is %s, only READY proposals can be saved", proposal.Status))
	}
	if len(proposal.Placed) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "proposal placed no entries")
	}

	// Stale drafts from earlier runs are replaced inside the transaction
	// below, so the pre-save conflict check only considers entries that
	// survive the save.
	retained := []models.EntryStatus{models.EntryStatusPending, models.EntryStatusApproved}
	res, existing, err := s.loadScope(ctx, proposal.TermID, proposal.DepartmentID, proposal.Constraints.SharedRoomsAllowed(), retained)
	if err != nil {
		return nil, err
	}
	if conflicts := DetectConflicts(proposal.Placed, existing, res, proposal.Constraints.SharedRoomsAllowed()); len(conflicts) > 0 {
		return nil, appErrors.Wrap(
			&models.TimetableConflictError{Message: "proposal conflicts with entries committed since generation", Conflicts: conflicts},
			appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "schedule conflict detected")
	}

	now := time.Now().UTC()
	saved := make([]models.ScheduleEntry, len(proposal.Placed))
	for i, entry := range proposal.Placed {
		entry.ID = uuid.NewString()
		entry.Status = models.EntryStatusDraft
		entry.CreatedAt = now
		entry.UpdatedAt = now
		saved[i] = entry
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var cleared int64
	if cleared, err = s.entries.DeleteDraftsWithTx(ctx, tx, proposal.TermID, proposal.DepartmentID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear stale draft entries")
		return nil, err
	}
	if err = s.entries.BulkCreateWithTx(ctx, tx, saved); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist schedule entries")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedule transaction")
		return nil, err
	}

	s.store.Delete(req.ProposalID)
	s.recordAudit(ctx, actor, models.AuditActionScheduleSave, "schedule_entry", req.ProposalID, map[string]int{"entries": len(saved)})
	s.logger.Info("schedule proposal saved",
		zap.String("proposal_id", req.ProposalID),
		zap.String("term_id", proposal.TermID),
		zap.String("department_id", proposal.DepartmentID),
		zap.Int64("drafts_cleared", cleared),
		zap.Int("entries", len(saved)))
	return saved, nil
}

// DetectConflicts validates ad hoc candidate entries against the committed
// set of a department and term. Candidates replacing an existing entry name
// it via EntryID so the original is excluded from the comparison.
func (s *ScheduleGeneratorService) DetectConflicts(ctx context.Context, req dto.DetectConflictsRequest) (*dto.DetectConflictsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict detection payload")
	}

	res, existing, err := s.loadScope(ctx, req.TermID, req.DepartmentID, true, activeEntryStatuses)
	if err != nil {
		return nil, err
	}

	replaced := make(map[string]bool, len(req.Candidates))
	candidates := make([]models.ScheduleEntry, 0, len(req.Candidates))
	for i, c := range req.Candidates {
		id := c.EntryID
		if id == "" {
			id = fmt.Sprintf("candidate-%d", i+1)
		} else {
			replaced[c.EntryID] = true
		}
		kind := c.Kind
		if kind == "" {
			kind = models.MeetingLecture
		}
		candidates = append(candidates, models.ScheduleEntry{
			ID:           id,
			SectionID:    c.SectionID,
			TermID:       req.TermID,
			DepartmentID: req.DepartmentID,
			FacultyID:    c.FacultyID,
			RoomID:       c.RoomID,
			DayOfWeek:    c.DayOfWeek,
			StartMinute:  c.StartMinute,
			EndMinute:    c.EndMinute,
			Kind:         kind,
		})
	}

	kept := existing[:0]
	for _, e := range existing {
		if !replaced[e.ID] {
			kept = append(kept, e)
		}
	}

	conflicts := DetectConflicts(candidates, kept, res, true)
	if conflicts == nil {
		conflicts = []models.Conflict{}
	}
	return &dto.DetectConflictsResponse{Conflicts: conflicts}, nil
}

// run executes a generation pipeline and packages the outcome as a proposal.
func (s *ScheduleGeneratorService) run(ctx context.Context, proposalID string, req dto.GenerateScheduleRequest) (*scheduleProposal, error) {
	started := time.Now()

	sections, err := s.sections.ListByTermDepartment(ctx, req.TermID, req.DepartmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	if len(sections) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no sections defined for this term and department")
	}
	for _, sec := range sections {
		if sec.WeeklyMinutes() <= 0 {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("section %s has no weekly contact hours", sec.ID))
		}
	}

	faculty, err := s.faculty.ListByDepartment(ctx, req.DepartmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	if len(faculty) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no faculty available in this department")
	}

	rooms, err := s.rooms.ListAvailable(ctx, req.DepartmentID, req.Constraints.SharedRoomsAllowed())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classrooms")
	}
	if len(rooms) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no classrooms available for this department")
	}

	existing, err := s.entries.ListByTermDepartment(ctx, req.TermID, req.DepartmentID, activeEntryStatuses)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed entries")
	}

	result := runGreedy(greedyInput{
		TermID:       req.TermID,
		DepartmentID: req.DepartmentID,
		Sections:     sections,
		Faculty:      faculty,
		Rooms:        rooms,
		Existing:     existing,
		Grid:         s.grid,
		Constraints:  req.Constraints,
		MaxSections:  req.MaxSections,
		Seed:         req.Seed,
	})

	elapsed := time.Since(started)
	placedIDs := make(map[string]bool)
	for _, e := range result.Placed {
		placedIDs[e.SectionID] = true
	}
	placedSections := len(placedIDs)
	stats := dto.GenerationStats{
		SectionsTotal:  len(sections),
		SectionsPlaced: placedSections,
		EntriesPlaced:  len(result.Placed),
		Seed:           req.Seed,
		ElapsedMS:      elapsed.Milliseconds(),
	}
	if s.metrics != nil {
		s.metrics.ObserveGenerationRun(elapsed, placedSections, len(result.Unplaced))
	}
	s.logger.Info("schedule generation complete",
		zap.String("proposal_id", proposalID),
		zap.String("term_id", req.TermID),
		zap.String("department_id", req.DepartmentID),
		zap.Int("sections", len(sections)),
		zap.Int("placed", placedSections),
		zap.Int("unplaced", len(result.Unplaced)),
		zap.Int64("seed", req.Seed),
		zap.Duration("elapsed", elapsed))

	return &scheduleProposal{
		ID:           proposalID,
		TermID:       req.TermID,
		DepartmentID: req.DepartmentID,
		Status:       ProposalStatusReady,
		Placed:       result.Placed,
		Unplaced:     result.Unplaced,
		Stats:        stats,
		Constraints:  req.Constraints,
		Seed:         req.Seed,
		RequestedAt:  time.Now().UTC(),
	}, nil
}

func (s *ScheduleGeneratorService) runAndStore(ctx context.Context, proposalID string, req dto.GenerateScheduleRequest) {
	proposal, err := s.run(ctx, proposalID, req)
	if err != nil {
		s.logger.Warn("async schedule generation failed", zap.String("proposal_id", proposalID), zap.Error(err))
		s.store.Save(scheduleProposal{
			ID:            proposalID,
			TermID:        req.TermID,
			DepartmentID:  req.DepartmentID,
			Status:        ProposalStatusFailed,
			FailureReason: appErrors.FromError(err).Message,
			Constraints:   req.Constraints,
			Seed:          req.Seed,
			RequestedAt:   time.Now().UTC(),
		})
		return
	}
	s.store.Save(*proposal)
}

// loadScope loads the resource snapshots and committed entries the detector
// needs for one department/term.
func (s *ScheduleGeneratorService) loadScope(ctx context.Context, termID, departmentID string, includeShared bool, statuses []models.EntryStatus) (ResourceIndex, []models.ScheduleEntry, error) {
	sections, err := s.sections.ListByTermDepartment(ctx, termID, departmentID)
	if err != nil {
		return ResourceIndex{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	faculty, err := s.faculty.ListByDepartment(ctx, departmentID)
	if err != nil {
		return ResourceIndex{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	rooms, err := s.rooms.ListAvailable(ctx, departmentID, includeShared)
	if err != nil {
		return ResourceIndex{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classrooms")
	}
	existing, err := s.entries.ListByTermDepartment(ctx, termID, departmentID, statuses)
	if err != nil {
		return ResourceIndex{}, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed entries")
	}
	return NewResourceIndex(sections, faculty, rooms), existing, nil
}

func (s *ScheduleGeneratorService) recordAudit(ctx context.Context, actor models.ActorContext, action, resource, resourceID string, payload any) {
	if s.audit == nil {
		return
	}
	log := models.AuditLog{
		Action:   action,
		Resource: resource,
	}
	if actor.UserID != "" {
		userID := actor.UserID
		log.UserID = &userID
	}
	if resourceID != "" {
		id := resourceID
		log.ResourceID = &id
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			log.NewValues = raw
		}
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}

func proposalResponse(p scheduleProposal) *dto.GenerateScheduleResponse {
	resp := &dto.GenerateScheduleResponse{
		ProposalID: p.ID,
		Status:     p.Status,
		Placed:     p.Placed,
		Unplaced:   p.Unplaced,
		Stats:      p.Stats,
	}
	if resp.Placed == nil {
		resp.Placed = []models.ScheduleEntry{}
	}
	if resp.Unplaced == nil {
		resp.Unplaced = []models.UnplacedSection{}
	}
	return resp
}

// --- Proposal cache ---

type scheduleProposal struct {
	ID            string
	TermID        string
	DepartmentID  string
	Status        string
	Placed        []models.ScheduleEntry
	Unplaced      []models.UnplacedSection
	Stats         dto.GenerationStats
	Constraints   dto.Constraints
	Seed          int64
	FailureReason string
	RequestedAt   time.Time
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]scheduleProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]scheduleProposal),
	}
}

func (s *proposalStore) Save(proposal scheduleProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ID] = proposal
}

func (s *proposalStore) Get(id string) (scheduleProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return scheduleProposal{}, false
	}
	if time.Since(proposal.RequestedAt) > s.ttl {
		s.Delete(id)
		return scheduleProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// --- Greedy placement core ---

type greedyInput struct {
	TermID       string
	DepartmentID string
	Sections     []models.Section
	Faculty      []models.Faculty
	Rooms        []models.Classroom
	Existing     []models.ScheduleEntry
	Grid         models.TimeGrid
	Constraints  dto.Constraints
	MaxSections  int
	Seed         int64
}

type greedyResult struct {
	Placed   []models.ScheduleEntry
	Unplaced []models.UnplacedSection
}

// occupancy tracks busy slots per resource ID.
type occupancy map[string][]models.TimeSlot

func (o occupancy) free(id string, slot models.TimeSlot) bool {
	for _, busy := range o[id] {
		if busy.Overlaps(slot) {
			return false
		}
	}
	return true
}

func (o occupancy) reserve(id string, slot models.TimeSlot) {
	o[id] = append(o[id], slot)
}

// facultyState accumulates tentative load during a run so caps hold across
// sections placed in the same proposal.
type facultyState struct {
	minutes  int
	sections int
}

// runGreedy is the pure placement core. Hardest-first ordering, best-fit
// rooms, and a seeded shuffle for tiebreaks: the same input with the same
// seed always yields the same placement.
func runGreedy(in greedyInput) greedyResult {
	rng := rand.New(rand.NewSource(in.Seed))
	allowShared := in.Constraints.SharedRoomsAllowed()

	sections := make([]models.Section, len(in.Sections))
	copy(sections, in.Sections)
	sort.Slice(sections, func(i, j int) bool {
		wi, wj := sections[i].WeeklyMinutes(), sections[j].WeeklyMinutes()
		if wi != wj {
			return wi > wj
		}
		return sections[i].ID < sections[j].ID
	})
	if in.MaxSections > 0 && in.MaxSections < len(sections) {
		sections = sections[:in.MaxSections]
	}

	rooms := make([]models.Classroom, 0, len(in.Rooms))
	for _, r := range in.Rooms {
		if r.Active {
			rooms = append(rooms, r)
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Capacity != rooms[j].Capacity {
			return rooms[i].Capacity < rooms[j].Capacity
		}
		return rooms[i].ID < rooms[j].ID
	})

	facultyBusy := make(occupancy)
	roomBusy := make(occupancy)
	for _, e := range in.Existing {
		slot := e.Slot()
		if e.FacultyID != nil {
			facultyBusy.reserve(*e.FacultyID, slot)
		}
		if e.RoomID != nil {
			roomBusy.reserve(*e.RoomID, slot)
		}
	}
	loads := make(map[string]*facultyState, len(in.Faculty))
	for _, f := range in.Faculty {
		loads[f.ID] = &facultyState{}
	}
	// Committed entries count against both load dimensions: minutes per
	// meeting, and distinct sections against the per-faculty section cap.
	committedSections := make(map[string]map[string]struct{})
	for _, e := range in.Existing {
		if e.FacultyID == nil {
			continue
		}
		state, ok := loads[*e.FacultyID]
		if !ok {
			continue
		}
		state.minutes += e.Slot().Duration()
		if e.SectionID == "" {
			continue
		}
		seen := committedSections[*e.FacultyID]
		if seen == nil {
			seen = make(map[string]struct{})
			committedSections[*e.FacultyID] = seen
		}
		if _, dup := seen[e.SectionID]; !dup {
			seen[e.SectionID] = struct{}{}
			state.sections++
		}
	}

	days := in.Grid.OrderedDays(in.Constraints.DayPreference)

	var result greedyResult
	for _, section := range sections {
		candidates := rankFaculty(in.Faculty, section, loads, in.Constraints, rng)
		if len(candidates) == 0 {
			result.Unplaced = append(result.Unplaced, models.UnplacedSection{
				SectionID:  section.ID,
				CourseCode: section.CourseCode,
				Reason:     models.UnplacedNoFaculty,
				Detail:     "no eligible faculty within load limits",
			})
			continue
		}

		placed, tally := placeSection(section, candidates, rooms, days, in, facultyBusy, roomBusy, allowShared)
		if placed == nil {
			result.Unplaced = append(result.Unplaced, models.UnplacedSection{
				SectionID:  section.ID,
				CourseCode: section.CourseCode,
				Reason:     tally.reason(),
				Detail:     tally.detail(),
			})
			continue
		}

		for _, entry := range placed {
			slot := entry.Slot()
			facultyBusy.reserve(*entry.FacultyID, slot)
			roomBusy.reserve(*entry.RoomID, slot)
		}
		state := loads[*placed[0].FacultyID]
		state.sections++
		state.minutes += section.WeeklyMinutes()
		result.Placed = append(result.Placed, placed...)
	}
	return result
}

// rankFaculty filters and orders assignment candidates for one section.
// Specialization match ranks first, then the lightest current load; ties are
// broken by the seeded shuffle so equally-ranked candidates rotate between
// seeds rather than always favouring the same ID.
func rankFaculty(faculty []models.Faculty, section models.Section, loads map[string]*facultyState, c dto.Constraints, rng *rand.Rand) []models.Faculty {
	sectionMinutes := section.WeeklyMinutes()
	eligible := make([]models.Faculty, 0, len(faculty))
	for _, f := range faculty {
		if !f.Active {
			continue
		}
		if c.RequireSpecializationMatch && section.SubjectTag != "" && !f.HasSpecialization(section.SubjectTag) {
			continue
		}
		state := loads[f.ID]
		if c.MaxSectionsPerFaculty > 0 && state.sections >= c.MaxSectionsPerFaculty {
			continue
		}
		if f.MaxWeeklyHours > 0 && float64(state.minutes+sectionMinutes) > f.MaxWeeklyHours*60 {
			continue
		}
		eligible = append(eligible, f)
	}

	rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	sort.SliceStable(eligible, func(i, j int) bool {
		mi := eligible[i].HasSpecialization(section.SubjectTag)
		mj := eligible[j].HasSpecialization(section.SubjectTag)
		if mi != mj {
			return mi
		}
		return loads[eligible[i].ID].minutes < loads[eligible[j].ID].minutes
	})
	return eligible
}

// failureTally records why placement attempts were refused so the dominant
// cause can be reported.
type failureTally struct {
	facultyBusy int
	roomBusy    int
	noRoomFits  int
}

func (t failureTally) reason() models.UnplacedReason {
	if t.noRoomFits > 0 && t.roomBusy == 0 && t.facultyBusy == 0 {
		return models.UnplacedNoRoom
	}
	if t.facultyBusy > 0 && t.roomBusy == 0 && t.noRoomFits == 0 {
		return models.UnplacedNoFaculty
	}
	return models.UnplacedNoTimeSlot
}

func (t failureTally) detail() string {
	switch t.reason() {
	case models.UnplacedNoRoom:
		return "no room satisfies capacity and type requirements"
	case models.UnplacedNoFaculty:
		return "every eligible faculty member is booked across the grid"
	default:
		return fmt.Sprintf("exhausted grid: %d faculty clashes, %d room clashes", t.facultyBusy, t.roomBusy)
	}
}

// placeSection tries candidates in rank order; one faculty member must serve
// every meeting of the section. Returns nil and the failure tally when no
// complete placement exists.
func placeSection(
	section models.Section,
	candidates []models.Faculty,
	rooms []models.Classroom,
	days []int,
	in greedyInput,
	facultyBusy, roomBusy occupancy,
	allowShared bool,
) ([]models.ScheduleEntry, failureTally) {
	var tally failureTally
	meetings := section.Meetings()

	for _, fac := range candidates {
		entries := make([]models.ScheduleEntry, 0, len(meetings))
		tentativeFaculty := make([]models.TimeSlot, 0, len(meetings))
		tentativeRooms := make(map[string][]models.TimeSlot)
		usedDays := make(map[int]bool)
		ok := true

		for idx, meeting := range meetings {
			fit := fitRooms(rooms, section, meeting.Kind, allowShared, &tally)
			if len(fit) == 0 {
				ok = false
				break
			}

			slot, roomID, found := findSlot(fac, fit, meeting.DurationMinutes, days, usedDays, in.Grid, facultyBusy, roomBusy, tentativeFaculty, tentativeRooms, &tally)
			if !found {
				ok = false
				break
			}

			facultyID := fac.ID
			room := roomID
			entries = append(entries, models.ScheduleEntry{
				ID:           fmt.Sprintf("%s-m%d", section.ID, idx+1),
				SectionID:    section.ID,
				TermID:       in.TermID,
				DepartmentID: in.DepartmentID,
				FacultyID:    &facultyID,
				RoomID:       &room,
				DayOfWeek:    slot.DayOfWeek,
				StartMinute:  slot.StartMinute,
				EndMinute:    slot.EndMinute,
				Kind:         meeting.Kind,
			})
			tentativeFaculty = append(tentativeFaculty, slot)
			tentativeRooms[roomID] = append(tentativeRooms[roomID], slot)
			usedDays[slot.DayOfWeek] = true
		}

		if ok {
			return entries, tally
		}
	}
	return nil, tally
}

// fitRooms filters rooms down to those a meeting of this kind and section
// size can use, preserving best-fit order.
func fitRooms(rooms []models.Classroom, section models.Section, kind models.MeetingKind, allowShared bool, tally *failureTally) []models.Classroom {
	fit := make([]models.Classroom, 0, len(rooms))
	for _, r := range rooms {
		if r.Capacity < section.Capacity {
			continue
		}
		if !roomTypeAllowed(r, kind, allowShared) {
			continue
		}
		fit = append(fit, r)
	}
	if len(fit) == 0 {
		tally.noRoomFits++
	}
	return fit
}

// findSlot scans the grid for the first slot where the faculty member and
// some fitting room are both free. Days already serving this section sort to
// the back so multi-meeting sections spread across the week when they can.
func findSlot(
	fac models.Faculty,
	fit []models.Classroom,
	duration int,
	days []int,
	usedDays map[int]bool,
	grid models.TimeGrid,
	facultyBusy, roomBusy occupancy,
	tentativeFaculty []models.TimeSlot,
	tentativeRooms map[string][]models.TimeSlot,
	tally *failureTally,
) (models.TimeSlot, string, bool) {
	ordered := make([]int, 0, len(days))
	deferred := make([]int, 0, len(days))
	for _, d := range days {
		if usedDays[d] {
			deferred = append(deferred, d)
		} else {
			ordered = append(ordered, d)
		}
	}
	ordered = append(ordered, deferred...)

	starts := grid.StartTimes(duration)
	for _, day := range ordered {
		for _, start := range starts {
			slot := models.TimeSlot{DayOfWeek: day, StartMinute: start, EndMinute: start + duration}
			if !fac.AvailableAt(slot) {
				continue
			}
			if !facultyBusy.free(fac.ID, slot) || overlapsAny(tentativeFaculty, slot) {
				tally.facultyBusy++
				continue
			}
			roomFound := ""
			for _, r := range fit {
				if !r.AvailableAt(slot) {
					continue
				}
				if !roomBusy.free(r.ID, slot) || overlapsAny(tentativeRooms[r.ID], slot) {
					continue
				}
				roomFound = r.ID
				break
			}
			if roomFound == "" {
				tally.roomBusy++
				continue
			}
			return slot, roomFound, true
		}
	}
	return models.TimeSlot{}, "", false
}

func overlapsAny(slots []models.TimeSlot, slot models.TimeSlot) bool {
	for _, s := range slots {
		if s.Overlaps(slot) {
			return true
		}
	}
	return false
}
