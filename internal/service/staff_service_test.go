package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/staff-service/internal/domain"
	"github.com/spec-kit/staff-service/internal/events"
	apperrors "github.com/spec-kit/staff-service/pkg/util"
)

var admin = &domain.User{ID: "admin-1", Name: "Admin", Email: "admin@solbot.io", Role: domain.UserRoleAdmin}

type staffFixture struct {
	repo      *memoryStaffRepo
	recorder  *eventRecorder
	conflicts *conflictCounter
	staff     *StaffService
	assign    *AssignmentService
}

func newStaffFixture(t *testing.T) *staffFixture {
	t.Helper()
	f := &staffFixture{
		repo:      newMemoryStaffRepo(),
		recorder:  &eventRecorder{},
		conflicts: &conflictCounter{},
	}
	d := events.NewInMemoryDispatcher()
	f.recorder.attach(d)
	f.staff = NewStaffService(StaffDependencies{
		StaffRepo:    f.repo,
		Dispatcher:   d,
		Conflicts:    f.conflicts,
		WriteBackoff: time.Millisecond,
	})
	f.assign = NewAssignmentService(f.staff)
	return f
}

func (f *staffFixture) create(t *testing.T, name, email string) *domain.Staff {
	t.Helper()
	s, err := f.staff.Create(context.Background(), admin, CreateStaffCommand{
		Name:       name,
		Email:      email,
		Department: domain.DepartmentSupport,
	})
	require.NoError(t, err)
	return s
}

func requireDomainError(t *testing.T, err error, code string, status int) *apperrors.DomainError {
	t.Helper()
	require.Error(t, err)
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de), "expected DomainError, got %T", err)
	assert.Equal(t, code, de.Code)
	assert.Equal(t, status, de.HTTPStatus)
	return de
}

func strPtr(s string) *string { return &s }

func TestStaffService_Create(t *testing.T) {
	t.Run("Should apply defaults and stamp the creator", func(t *testing.T) {
		f := newStaffFixture(t)
		s := f.create(t, "  A ", "a@x.com")

		assert.NotEmpty(t, s.ID)
		assert.Equal(t, "A", s.Name)
		assert.Equal(t, domain.StaffStatusActive, s.Status)
		assert.Equal(t, domain.StaffRoleTechnician, s.Role)
		assert.Equal(t, domain.DefaultProfileImage, s.ProfileImage)
		assert.Equal(t, admin.ID, s.CreatedBy)
		assert.Empty(t, s.Assignments)
		assert.Equal(t, []events.EventType{events.EventStaffCreated}, f.recorder.types())
	})
	t.Run("Should reject missing and malformed fields", func(t *testing.T) {
		f := newStaffFixture(t)
		_, err := f.staff.Create(context.Background(), admin, CreateStaffCommand{
			Email:      "not-an-email",
			Department: "sales",
		})
		de := requireDomainError(t, err, "VALIDATION_FAILED", http.StatusBadRequest)
		assert.Contains(t, de.Details, "name")
		assert.Contains(t, de.Details, "email")
		assert.Contains(t, de.Details, "department")
		assert.Empty(t, f.recorder.types())
	})
	t.Run("Should report a duplicate email as a validation failure", func(t *testing.T) {
		f := newStaffFixture(t)
		f.create(t, "A", "a@x.com")
		_, err := f.staff.Create(context.Background(), admin, CreateStaffCommand{
			Name: "B", Email: "a@x.com", Department: domain.DepartmentSupport,
		})
		requireDomainError(t, err, "VALIDATION_FAILED", http.StatusBadRequest)
	})
	t.Run("Should embed initial assignments", func(t *testing.T) {
		f := newStaffFixture(t)
		s, err := f.staff.Create(context.Background(), admin, CreateStaffCommand{
			Name: "A", Email: "a@x.com", Department: domain.DepartmentInstallation,
			Assignments: []AddAssignmentCommand{{
				Title: "Panel install", Description: "Roof array", Location: "Site 4",
				StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			}},
		})
		require.NoError(t, err)
		require.Len(t, s.Assignments, 1)
		assert.NotEmpty(t, s.Assignments[0].ID)
		assert.Equal(t, domain.AssignmentStatusPending, s.Assignments[0].Status)
		assert.Equal(t, admin.ID, s.Assignments[0].AssignedBy)
	})
	t.Run("Should require an actor", func(t *testing.T) {
		f := newStaffFixture(t)
		_, err := f.staff.Create(context.Background(), nil, CreateStaffCommand{Name: "A"})
		requireDomainError(t, err, "UNAUTHORIZED", http.StatusUnauthorized)
	})
}

func TestStaffService_List(t *testing.T) {
	f := newStaffFixture(t)
	first := f.create(t, "First", "first@x.com")
	second := f.create(t, "Second", "second@x.com")
	third := f.create(t, "Third", "third@x.com")
	ctx := context.Background()

	t.Run("Should default to the first page of ten newest first", func(t *testing.T) {
		page, err := f.staff.List(ctx, ListQuery{})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 10, page.Limit)
		assert.Equal(t, int64(3), page.Total)
		assert.Equal(t, 1, page.Pages)
		require.Len(t, page.Items, 3)
		assert.Equal(t, third.ID, page.Items[0].ID)
		assert.Equal(t, first.ID, page.Items[2].ID)
	})
	t.Run("Should return the second newest on page two of size one", func(t *testing.T) {
		page, err := f.staff.List(ctx, ListQuery{Page: 2, Limit: 1})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, second.ID, page.Items[0].ID)
		assert.Equal(t, 3, page.Pages)
	})
	t.Run("Should return the remainder on the last page", func(t *testing.T) {
		page, err := f.staff.List(ctx, ListQuery{Page: 2, Limit: 2})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, first.ID, page.Items[0].ID)
		assert.Equal(t, 2, page.Pages)
	})
	t.Run("Should return an empty page past the end", func(t *testing.T) {
		page, err := f.staff.List(ctx, ListQuery{Page: 9, Limit: 2})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Equal(t, int64(3), page.Total)
	})
	t.Run("Should cap an oversized limit", func(t *testing.T) {
		for p := 1; p <= 3; p++ {
			page, err := f.staff.List(ctx, ListQuery{Page: p, Limit: math.MaxInt})
			require.NoError(t, err)
			assert.Equal(t, MaxLimit, page.Limit)
			assert.Equal(t, 1, page.Pages)
			if p == 1 {
				require.Len(t, page.Items, 3)
				assert.Equal(t, third.ID, page.Items[0].ID)
			} else {
				assert.Empty(t, page.Items, "page %d", p)
			}
		}
	})
	t.Run("Should return an empty page when the offset is not addressable", func(t *testing.T) {
		page, err := f.staff.List(ctx, ListQuery{Page: math.MaxInt, Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Equal(t, math.MaxInt, page.Page)
		assert.Equal(t, int64(3), page.Total)
		assert.Equal(t, 1, page.Pages)
	})
	t.Run("Should filter by search text", func(t *testing.T) {
		page, err := f.staff.List(ctx, ListQuery{Search: "SEC"})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, second.ID, page.Items[0].ID)
		assert.Equal(t, int64(1), page.Total)
	})
}

func TestStaffService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("Should merge supplied fields and keep the rest", func(t *testing.T) {
		f := newStaffFixture(t)
		s := f.create(t, "A", "a@x.com")
		status := domain.StaffStatusOnLeave
		updated, err := f.staff.Update(ctx, admin, s.ID, UpdateStaffCommand{Name: strPtr("Alice"), Status: &status})
		require.NoError(t, err)
		assert.Equal(t, "Alice", updated.Name)
		assert.Equal(t, "a@x.com", updated.Email)
		assert.Equal(t, domain.StaffStatusOnLeave, updated.Status)
		assert.Equal(t, s.Version+1, updated.Version)

		evts := f.recorder.types()
		require.Len(t, evts, 2)
		assert.Equal(t, events.EventStaffUpdated, evts[1])
		payload := f.recorder.events[1].Payload.(events.StaffUpdatedPayload)
		assert.Equal(t, []string{"name", "status"}, payload.ChangedFields)
	})
	t.Run("Should reject an invalid enum without writing", func(t *testing.T) {
		f := newStaffFixture(t)
		s := f.create(t, "A", "a@x.com")
		dept := domain.Department("sales")
		_, err := f.staff.Update(ctx, admin, s.ID, UpdateStaffCommand{Department: &dept})
		requireDomainError(t, err, "VALIDATION_FAILED", http.StatusBadRequest)

		stored, err := f.staff.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DepartmentSupport, stored.Department)
		assert.Equal(t, s.Version, stored.Version)
	})
	t.Run("Should report a taken email as a validation failure", func(t *testing.T) {
		f := newStaffFixture(t)
		f.create(t, "A", "a@x.com")
		b := f.create(t, "B", "b@x.com")
		_, err := f.staff.Update(ctx, admin, b.ID, UpdateStaffCommand{Email: strPtr("a@x.com")})
		requireDomainError(t, err, "VALIDATION_FAILED", http.StatusBadRequest)
	})
	t.Run("Should return not found for an unknown id", func(t *testing.T) {
		f := newStaffFixture(t)
		_, err := f.staff.Update(ctx, admin, "missing", UpdateStaffCommand{Name: strPtr("X")})
		de := requireDomainError(t, err, "NOT_FOUND", http.StatusNotFound)
		assert.Equal(t, "Staff member not found", de.Message)
	})
	t.Run("Should retry through transient version conflicts", func(t *testing.T) {
		f := newStaffFixture(t)
		s := f.create(t, "A", "a@x.com")
		f.repo.staleReplaces = 2
		updated, err := f.staff.Update(ctx, admin, s.ID, UpdateStaffCommand{Name: strPtr("B")})
		require.NoError(t, err)
		assert.Equal(t, "B", updated.Name)
		assert.Equal(t, int64(2), f.conflicts.n.Load())
	})
	t.Run("Should give up with a conflict after five attempts", func(t *testing.T) {
		f := newStaffFixture(t)
		s := f.create(t, "A", "a@x.com")
		f.repo.staleReplaces = 100
		_, err := f.staff.Update(ctx, admin, s.ID, UpdateStaffCommand{Name: strPtr("B")})
		requireDomainError(t, err, "CONFLICT", http.StatusConflict)
		assert.Equal(t, 5, f.repo.replaces)
		assert.Equal(t, int64(5), f.conflicts.n.Load())
	})
}

func TestStaffService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newStaffFixture(t)
	s := f.create(t, "A", "a@x.com")

	require.NoError(t, f.staff.Delete(ctx, admin, s.ID))
	_, err := f.staff.Get(ctx, s.ID)
	requireDomainError(t, err, "NOT_FOUND", http.StatusNotFound)

	err = f.staff.Delete(ctx, admin, s.ID)
	requireDomainError(t, err, "NOT_FOUND", http.StatusNotFound)
	assert.Equal(t, []events.EventType{events.EventStaffCreated, events.EventStaffDeleted}, f.recorder.types())
}

func TestStaffService_Stats(t *testing.T) {
	f := newStaffFixture(t)
	for i := 0; i < 3; i++ {
		f.create(t, fmt.Sprintf("S%d", i), fmt.Sprintf("s%d@x.com", i))
	}
	stats, err := f.staff.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalStaff)
	assert.Equal(t, int64(3), stats.ActiveStaff)
}
