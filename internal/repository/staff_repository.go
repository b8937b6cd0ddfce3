package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/staff-service/internal/domain"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when a write would violate email uniqueness.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrVersionConflict is returned when a conditional write observed a stale version.
	ErrVersionConflict = errors.New("record was modified concurrently")
)

// StaffRepository persists staff records together with their embedded assignments.
//
// Replace writes the whole record back and succeeds only when the stored version
// still equals staff.Version; on success staff.Version is incremented.
type StaffRepository interface {
	Create(ctx context.Context, staff *domain.Staff) error
	GetByID(ctx context.Context, id string) (*domain.Staff, error)
	Replace(ctx context.Context, staff *domain.Staff) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter StaffFilter) ([]domain.Staff, error)
	Count(ctx context.Context, filter StaffFilter) (int64, error)
	Stats(ctx context.Context) (*domain.StaffStats, error)
}

// StaffFilter defines query params for staff listing.
type StaffFilter struct {
	Search     string
	Department string
	Status     string
	Role       string
	Limit      int
	Offset     int
}

func (f StaffFilter) search() string {
	return strings.TrimSpace(f.Search)
}

func (f StaffFilter) window() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 {
		limit = 10
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
