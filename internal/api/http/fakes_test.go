package http

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/staff-service/internal/domain"
	"github.com/spec-kit/staff-service/internal/repository"
)

type fakeStaffRepo struct {
	mu      sync.Mutex
	records map[string]domain.Staff
	clock   time.Time
}

func newFakeStaffRepo() *fakeStaffRepo {
	return &fakeStaffRepo{records: map[string]domain.Staff{}, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (r *fakeStaffRepo) Create(_ context.Context, s *domain.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.Email == s.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.clock = r.clock.Add(time.Minute)
	s.ID = uuid.NewString()
	s.Version = 1
	s.CreatedAt, s.UpdatedAt = r.clock, r.clock
	r.records[s.ID] = copyStaff(*s)
	return nil
}

func (r *fakeStaffRepo) GetByID(_ context.Context, id string) (*domain.Staff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := copyStaff(s)
	return &out, nil
}

func (r *fakeStaffRepo) Replace(_ context.Context, s *domain.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.records[s.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != s.Version {
		return repository.ErrVersionConflict
	}
	s.Version++
	r.records[s.ID] = copyStaff(*s)
	return nil
}

func (r *fakeStaffRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *fakeStaffRepo) filtered(f repository.StaffFilter) []domain.Staff {
	var out []domain.Staff
	for _, s := range r.records {
		if f.Department != "" && string(s.Department) != f.Department {
			continue
		}
		if q := strings.ToLower(f.Search); q != "" && !strings.Contains(strings.ToLower(s.Name), q) {
			continue
		}
		out = append(out, copyStaff(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeStaffRepo) List(_ context.Context, f repository.StaffFilter) ([]domain.Staff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.filtered(f)
	if f.Offset >= len(all) {
		return []domain.Staff{}, nil
	}
	return all[f.Offset:min(f.Offset+f.Limit, len(all))], nil
}

func (r *fakeStaffRepo) Count(_ context.Context, f repository.StaffFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.filtered(f))), nil
}

func (r *fakeStaffRepo) Stats(_ context.Context) (*domain.StaffStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int64{}
	stats := &domain.StaffStats{TotalStaff: int64(len(r.records))}
	for _, s := range r.records {
		if s.Status == domain.StaffStatusActive {
			stats.ActiveStaff++
		}
		counts[string(s.Department)]++
	}
	for k, v := range counts {
		stats.DepartmentStats = append(stats.DepartmentStats, domain.GroupCount{Key: k, Count: v})
	}
	return stats, nil
}

func copyStaff(s domain.Staff) domain.Staff {
	s.Assignments = append([]domain.Assignment{}, s.Assignments...)
	return s
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func (r *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	r.users[u.ID] = *u
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	r.users[u.ID] = *u
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == strings.ToLower(strings.TrimSpace(email)) {
			out := u
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeResetRepo struct{}

func (fakeResetRepo) Create(context.Context, *domain.PasswordResetToken) error { return nil }

func (fakeResetRepo) Consume(context.Context, string) (*domain.PasswordResetToken, error) {
	return nil, repository.ErrNotFound
}

type stubDependency struct {
	name string
	err  error
}

func (d stubDependency) Name() string { return d.name }
func (d stubDependency) Ping(context.Context) error { return d.err }
