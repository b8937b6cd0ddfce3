package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-retry"

	"github.com/spec-kit/staff-service/internal/domain"
	"github.com/spec-kit/staff-service/internal/repository"
	apperrors "github.com/spec-kit/staff-service/pkg/util"
)

const (
	defaultWriteAttempts = 5
	defaultWriteBackoff  = 10 * time.Millisecond
)

// ConflictRecorder counts optimistic concurrency misses.
type ConflictRecorder interface {
	RecordVersionConflict()
}

// recordEditor runs read-modify-write cycles against one staff record. Each cycle
// re-reads the record, applies the mutation in memory and writes it back
// conditionally on the version it read; a stale version restarts the cycle.
type recordEditor struct {
	repo      repository.StaffRepository
	conflicts ConflictRecorder
	attempts  uint64
	backoff   time.Duration
}

func (e *recordEditor) mutate(ctx context.Context, id string, apply func(*domain.Staff) error) (*domain.Staff, error) {
	attempts := e.attempts
	if attempts == 0 {
		attempts = defaultWriteAttempts
	}
	base := e.backoff
	if base <= 0 {
		base = defaultWriteBackoff
	}

	var result *domain.Staff
	policy := retry.WithMaxRetries(attempts-1, retry.NewExponential(base))
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		staff, err := e.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(staff); err != nil {
			return err
		}
		if err := e.repo.Replace(ctx, staff); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				if e.conflicts != nil {
					e.conflicts.RecordVersionConflict()
				}
				return retry.RetryableError(err)
			}
			return err
		}
		result = staff
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err, id)
	}
	return result, nil
}

// mapStoreError converts repository sentinels into client-facing errors.
func mapStoreError(err error, staffID string) error {
	var domainErr *apperrors.DomainError
	var validationErrs validator.ValidationErrors
	switch {
	case err == nil:
		return nil
	case errors.As(err, &domainErr):
		return err
	case errors.As(err, &validationErrs):
		return apperrors.ToDomainError(validationErrs)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("Staff member", map[string]any{"staffId": staffID})
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperrors.NewValidationError("email already exists", map[string]any{"email": "unique"})
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict("staff record was modified concurrently, retry the request",
			map[string]any{"staffId": staffID})
	default:
		return apperrors.NewInternalError(err)
	}
}
