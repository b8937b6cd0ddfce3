package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/spec-kit/staff-service/internal/domain"
	"github.com/spec-kit/staff-service/internal/events"
	"github.com/spec-kit/staff-service/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memoryStaffRepo mirrors the versioned replace semantics of the real stores.
type memoryStaffRepo struct {
	mu      sync.Mutex
	records map[string]domain.Staff
	clock   time.Time
	// staleReplaces forces that many Replace calls to report a version conflict.
	staleReplaces int
	replaces      int
}

func newMemoryStaffRepo() *memoryStaffRepo {
	return &memoryStaffRepo{
		records: map[string]domain.Staff{},
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func cloneStaff(s domain.Staff) domain.Staff {
	s.Assignments = append([]domain.Assignment{}, s.Assignments...)
	return s
}

func (r *memoryStaffRepo) Create(_ context.Context, staff *domain.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.Email == staff.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.clock = r.clock.Add(time.Second)
	staff.ID = uuid.NewString()
	staff.Version = 1
	staff.CreatedAt = r.clock
	staff.UpdatedAt = r.clock
	staff.ApplyDefaults()
	r.records[staff.ID] = cloneStaff(*staff)
	return nil
}

func (r *memoryStaffRepo) GetByID(_ context.Context, id string) (*domain.Staff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneStaff(s)
	return &out, nil
}

func (r *memoryStaffRepo) Replace(_ context.Context, staff *domain.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replaces++
	current, ok := r.records[staff.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.staleReplaces > 0 {
		r.staleReplaces--
		return repository.ErrVersionConflict
	}
	if current.Version != staff.Version {
		return repository.ErrVersionConflict
	}
	for id, existing := range r.records {
		if id != staff.ID && existing.Email == staff.Email {
			return repository.ErrDuplicateEmail
		}
	}
	staff.Version++
	staff.UpdatedAt = r.clock
	r.records[staff.ID] = cloneStaff(*staff)
	return nil
}

func (r *memoryStaffRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *memoryStaffRepo) matching(filter repository.StaffFilter) []domain.Staff {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []domain.Staff
	for _, s := range r.records {
		if filter.Department != "" && string(s.Department) != filter.Department {
			continue
		}
		if filter.Status != "" && string(s.Status) != filter.Status {
			continue
		}
		if filter.Role != "" && string(s.Role) != filter.Role {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(s.Name), search) &&
			!strings.Contains(strings.ToLower(s.Email), search) &&
			!strings.Contains(strings.ToLower(string(s.Role)), search) {
			continue
		}
		out = append(out, cloneStaff(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memoryStaffRepo) List(_ context.Context, filter repository.StaffFilter) ([]domain.Staff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.matching(filter)
	if filter.Offset >= len(all) {
		return []domain.Staff{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], nil
}

func (r *memoryStaffRepo) Count(_ context.Context, filter repository.StaffFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(filter))), nil
}

func (r *memoryStaffRepo) Stats(_ context.Context) (*domain.StaffStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.StaffStats{TotalStaff: int64(len(r.records))}
	for _, s := range r.records {
		switch s.Status {
		case domain.StaffStatusActive:
			stats.ActiveStaff++
		case domain.StaffStatusInactive:
			stats.InactiveStaff++
		case domain.StaffStatusOnLeave:
			stats.OnLeaveStaff++
		}
	}
	return stats, nil
}

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[string]domain.User{}}
}

func (r *memoryUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = uuid.NewString()
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, u := range r.users {
		if id != user.ID && u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memoryResetRepo struct {
	mu     sync.Mutex
	tokens map[string]domain.PasswordResetToken
}

func (r *memoryResetRepo) Create(_ context.Context, token *domain.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tokens == nil {
		r.tokens = map[string]domain.PasswordResetToken{}
	}
	r.tokens[token.Token] = *token
	return nil
}

func (r *memoryResetRepo) Consume(_ context.Context, token string) (*domain.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.tokens, token)
	return &t, nil
}

type memoryDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (d *memoryDenylist) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.revoked == nil {
		d.revoked = map[string]time.Time{}
	}
	d.revoked[jti] = expiresAt
	return nil
}

func (d *memoryDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.revoked[jti]
	return ok, nil
}

type conflictCounter struct {
	n atomic.Int64
}

func (c *conflictCounter) RecordVersionConflict() { c.n.Add(1) }

// eventRecorder captures every published event in order.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) attach(d events.Dispatcher) {
	for _, t := range events.AllEventTypes {
		d.Subscribe(t, func(_ context.Context, e events.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
			return nil
		})
	}
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
