package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/staff-service/internal/domain"
	"github.com/spec-kit/staff-service/internal/events"
	apperrors "github.com/spec-kit/staff-service/pkg/util"
)

// AssignmentService edits the assignment sequence embedded in a staff record.
type AssignmentService struct {
	*StaffService
}

// NewAssignmentService shares the staff service's store, editor and dispatcher.
func NewAssignmentService(staff *StaffService) *AssignmentService {
	return &AssignmentService{StaffService: staff}
}

// AddAssignmentCommand is the whitelisted input for appending an assignment.
type AddAssignmentCommand struct {
	Title       string
	Description string
	Location    string
	StartDate   time.Time
	EndDate     *time.Time
	Status      domain.AssignmentStatus
}

func (cmd AddAssignmentCommand) toAssignment(assignedBy string, now time.Time) domain.Assignment {
	a := domain.Assignment{
		ID:          newAssignmentID(),
		Title:       strings.TrimSpace(cmd.Title),
		Description: cmd.Description,
		Location:    cmd.Location,
		StartDate:   domain.StoreTime(cmd.StartDate),
		EndDate:     storeDatePtr(cmd.EndDate),
		Status:      cmd.Status,
		AssignedBy:  assignedBy,
		CreatedAt:   now,
	}
	a.ApplyDefaults()
	return a
}

// PatchAssignmentCommand carries the assignment fields to overwrite; nil fields are kept.
// ClearEndDate removes the end date and wins over EndDate.
type PatchAssignmentCommand struct {
	Title        *string
	Description  *string
	Location     *string
	StartDate    *time.Time
	EndDate      *time.Time
	ClearEndDate bool
	Status       *domain.AssignmentStatus
}

// Add appends an assignment stamped with the caller as assigner and returns the parent.
func (s *AssignmentService) Add(ctx context.Context, actor *domain.User, staffID string, cmd AddAssignmentCommand) (*domain.Staff, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("not authorized to access this route")
	}
	var added domain.Assignment
	staff, err := s.editor.mutate(ctx, staffID, func(staff *domain.Staff) error {
		added = cmd.toAssignment(actor.ID, domain.Now())
		staff.Assignments = append(staff.Assignments, added)
		return validateStaff(s.validate, staff)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.EventAssignmentAdded, staff.ID, actor.ID, events.AssignmentPayload{
		AssignmentID: added.ID,
		Title:        added.Title,
		NewStatus:    string(added.Status),
	}))
	return staff, nil
}

// Remove deletes one assignment by id, keeping the order of the rest.
func (s *AssignmentService) Remove(ctx context.Context, actor *domain.User, staffID, assignmentID string) (*domain.Staff, error) {
	var removed domain.Assignment
	staff, err := s.editor.mutate(ctx, staffID, func(staff *domain.Staff) error {
		idx := staff.AssignmentIndex(assignmentID)
		if idx < 0 {
			return assignmentNotFound(staffID, assignmentID)
		}
		removed = staff.Assignments[idx]
		staff.Assignments = append(staff.Assignments[:idx:idx], staff.Assignments[idx+1:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.EventAssignmentRemoved, staff.ID, actorID(actor), events.AssignmentPayload{
		AssignmentID: removed.ID,
		Title:        removed.Title,
		OldStatus:    string(removed.Status),
	}))
	return staff, nil
}

// Patch overwrites only the supplied fields of one assignment and re-validates.
func (s *AssignmentService) Patch(ctx context.Context, actor *domain.User, staffID, assignmentID string, cmd PatchAssignmentCommand) (*domain.Staff, error) {
	var before, after domain.Assignment
	staff, err := s.editor.mutate(ctx, staffID, func(staff *domain.Staff) error {
		idx := staff.AssignmentIndex(assignmentID)
		if idx < 0 {
			return assignmentNotFound(staffID, assignmentID)
		}
		a := &staff.Assignments[idx]
		before = *a
		if cmd.Title != nil {
			a.Title = strings.TrimSpace(*cmd.Title)
		}
		if cmd.Description != nil {
			a.Description = *cmd.Description
		}
		if cmd.Location != nil {
			a.Location = *cmd.Location
		}
		if cmd.StartDate != nil {
			a.StartDate = domain.StoreTime(*cmd.StartDate)
		}
		switch {
		case cmd.ClearEndDate:
			a.EndDate = nil
		case cmd.EndDate != nil:
			a.EndDate = storeDatePtr(cmd.EndDate)
		}
		if cmd.Status != nil {
			a.Status = *cmd.Status
		}
		after = *a
		return validateStaff(s.validate, staff)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.New(events.EventAssignmentUpdated, staff.ID, actorID(actor), events.AssignmentPayload{
		AssignmentID: after.ID,
		Title:        after.Title,
		OldStatus:    string(before.Status),
		NewStatus:    string(after.Status),
	}))
	return staff, nil
}

func storeDatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := domain.StoreTime(*t)
	return &d
}

func assignmentNotFound(staffID, assignmentID string) error {
	return apperrors.NewNotFound("Assignment", map[string]any{
		"staffId":      staffID,
		"assignmentId": assignmentID,
	})
}
