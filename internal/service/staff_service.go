package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/staff-service/internal/domain"
	"github.com/spec-kit/staff-service/internal/events"
	"github.com/spec-kit/staff-service/internal/repository"
	apperrors "github.com/spec-kit/staff-service/pkg/util"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	// MaxLimit caps the page size a caller may request.
	MaxLimit = 100
)

// StaffDependencies encapsulates collaborators required by the staff services.
type StaffDependencies struct {
	StaffRepo  repository.StaffRepository
	Dispatcher events.Dispatcher
	Validator  *validator.Validate
	Conflicts  ConflictRecorder
	Logger     *zap.Logger
	// WriteAttempts bounds read-modify-write retries on version conflicts.
	WriteAttempts uint64
	WriteBackoff  time.Duration
}

// StaffService manages staff records.
type StaffService struct {
	staff      repository.StaffRepository
	editor     *recordEditor
	dispatcher events.Dispatcher
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewStaffService constructs the service.
func NewStaffService(deps StaffDependencies) *StaffService {
	v := deps.Validator
	if v == nil {
		v = NewValidator()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{
		staff: deps.StaffRepo,
		editor: &recordEditor{
			repo:      deps.StaffRepo,
			conflicts: deps.Conflicts,
			attempts:  deps.WriteAttempts,
			backoff:   deps.WriteBackoff,
		},
		dispatcher: deps.Dispatcher,
		validate:   v,
		logger:     logger,
	}
}

// ListQuery carries pagination and filter parameters for listing.
type ListQuery struct {
	Page       int
	Limit      int
	Search     string
	Department string
	Status     string
	Role       string
}

// StaffPage is one window of a filtered listing.
type StaffPage struct {
	Items []domain.Staff
	Total int64
	Page  int
	Limit int
	Pages int
}

// CreateStaffCommand is the whitelisted input for creating a staff record.
type CreateStaffCommand struct {
	Name         string
	Email        string
	Phone        string
	Role         domain.StaffRole
	Department   domain.Department
	Status       domain.StaffStatus
	ProfileImage string
	Assignments  []AddAssignmentCommand
}

// UpdateStaffCommand carries the top-level fields to overwrite; nil fields are kept.
type UpdateStaffCommand struct {
	Name         *string
	Email        *string
	Phone        *string
	Role         *domain.StaffRole
	Department   *domain.Department
	Status       *domain.StaffStatus
	ProfileImage *string
}

// List returns one page of staff matching the query, newest first. limit is
// capped at MaxLimit; a page past the addressable range yields no items.
func (s *StaffService) List(ctx context.Context, q ListQuery) (*StaffPage, error) {
	page, limit := q.Page, q.Limit
	if page <= 0 {
		page = defaultPage
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, MaxLimit)
	filter := repository.StaffFilter{
		Search:     q.Search,
		Department: q.Department,
		Status:     q.Status,
		Role:       q.Role,
		Limit:      limit,
	}

	total, err := s.staff.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	items := []domain.Staff{}
	if page-1 <= (math.MaxInt-limit)/limit {
		filter.Offset = (page - 1) * limit
		if items, err = s.staff.List(ctx, filter); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}
	return &StaffPage{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: pageCount(total, limit),
	}, nil
}

func pageCount(total int64, limit int) int {
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return int(pages)
}

// Get fetches a staff record by id.
func (s *StaffService) Get(ctx context.Context, id string) (*domain.Staff, error) {
	staff, err := s.staff.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, id)
	}
	return staff, nil
}

// Create validates and inserts a new staff record owned by actor.
func (s *StaffService) Create(ctx context.Context, actor *domain.User, cmd CreateStaffCommand) (*domain.Staff, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("not authorized to access this route")
	}
	now := domain.Now()
	staff := &domain.Staff{
		Name:         strings.TrimSpace(cmd.Name),
		Email:        strings.TrimSpace(cmd.Email),
		Phone:        strings.TrimSpace(cmd.Phone),
		Role:         cmd.Role,
		Department:   cmd.Department,
		Status:       cmd.Status,
		ProfileImage: strings.TrimSpace(cmd.ProfileImage),
		CreatedBy:    actor.ID,
		Assignments:  make([]domain.Assignment, 0, len(cmd.Assignments)),
	}
	for _, a := range cmd.Assignments {
		staff.Assignments = append(staff.Assignments, a.toAssignment(actor.ID, now))
	}
	staff.ApplyDefaults()
	if err := validateStaff(s.validate, staff); err != nil {
		return nil, apperrors.ToDomainError(err)
	}
	if err := s.staff.Create(ctx, staff); err != nil {
		return nil, mapStoreError(err, "")
	}

	s.publish(ctx, events.New(events.EventStaffCreated, staff.ID, actor.ID, events.StaffPayload{
		Name:       staff.Name,
		Email:      staff.Email,
		Department: string(staff.Department),
		Status:     string(staff.Status),
	}))
	return staff, nil
}

// Update merges the supplied fields into the record and re-validates the result.
func (s *StaffService) Update(ctx context.Context, actor *domain.User, id string, cmd UpdateStaffCommand) (*domain.Staff, error) {
	var changed []string
	staff, err := s.editor.mutate(ctx, id, func(staff *domain.Staff) error {
		changed = cmd.applyTo(staff)
		return validateStaff(s.validate, staff)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.EventStaffUpdated, staff.ID, actorID(actor), events.StaffUpdatedPayload{ChangedFields: changed}))
	return staff, nil
}

// Delete removes a staff record together with its assignments.
func (s *StaffService) Delete(ctx context.Context, actor *domain.User, id string) error {
	if err := s.staff.Delete(ctx, id); err != nil {
		return mapStoreError(err, id)
	}
	s.publish(ctx, events.New(events.EventStaffDeleted, id, actorID(actor), nil))
	return nil
}

// Stats returns grouped counts over the whole collection.
func (s *StaffService) Stats(ctx context.Context) (*domain.StaffStats, error) {
	stats, err := s.staff.Stats(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return stats, nil
}

func (s *StaffService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("staff_id", event.StaffID),
			zap.Error(err))
	}
}

func (cmd UpdateStaffCommand) applyTo(staff *domain.Staff) []string {
	var changed []string
	set := func(field string, dst *string, src *string, trim bool) {
		if src == nil {
			return
		}
		v := *src
		if trim {
			v = strings.TrimSpace(v)
		}
		if *dst != v {
			*dst = v
			changed = append(changed, field)
		}
	}
	set("name", &staff.Name, cmd.Name, true)
	set("email", &staff.Email, cmd.Email, true)
	set("phone", &staff.Phone, cmd.Phone, true)
	set("profileImage", &staff.ProfileImage, cmd.ProfileImage, true)
	if cmd.Role != nil && staff.Role != *cmd.Role {
		staff.Role = *cmd.Role
		changed = append(changed, "role")
	}
	if cmd.Department != nil && staff.Department != *cmd.Department {
		staff.Department = *cmd.Department
		changed = append(changed, "department")
	}
	if cmd.Status != nil && staff.Status != *cmd.Status {
		staff.Status = *cmd.Status
		changed = append(changed, "status")
	}
	return changed
}

func actorID(actor *domain.User) string {
	if actor == nil {
		return ""
	}
	return actor.ID
}

func newAssignmentID() string {
	return uuid.NewString()
}
