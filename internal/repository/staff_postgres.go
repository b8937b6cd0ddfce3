package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/staff-service/internal/domain"
)

const pgUniqueViolation = "23505"

// DBInterface is the subset of pgxpool.Pool used by the postgres repositories.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var staffColumns = []string{
	"id::text AS id",
	"name",
	"email",
	"phone",
	"role",
	"department",
	"status",
	"profile_image",
	"assignments",
	"created_by",
	"version",
	"created_at",
	"updated_at",
}

type staffRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Phone        string    `db:"phone"`
	Role         string    `db:"role"`
	Department   string    `db:"department"`
	Status       string    `db:"status"`
	ProfileImage string    `db:"profile_image"`
	Assignments  []byte    `db:"assignments"`
	CreatedBy    string    `db:"created_by"`
	Version      int64     `db:"version"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type assignmentRecord struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Status      string     `json:"status"`
	AssignedBy  string     `json:"assignedBy"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type postgresStaffRepository struct {
	db DBInterface
}

// NewPostgresStaffRepository returns a StaffRepository over the staff_records table.
// Assignments are embedded in a JSONB column so a record is always written as a unit.
func NewPostgresStaffRepository(db DBInterface) StaffRepository {
	return &postgresStaffRepository{db: db}
}

func (r *postgresStaffRepository) Create(ctx context.Context, staff *domain.Staff) error {
	now := domain.Now()
	staff.ApplyDefaults()
	staff.ID = uuid.NewString()
	staff.CreatedAt = now
	staff.UpdatedAt = now
	staff.Version = 1

	assignments, err := encodeAssignments(staff.Assignments)
	if err != nil {
		return err
	}
	query, args, err := psql.Insert("staff_records").
		Columns("id", "name", "email", "phone", "role", "department", "status",
			"profile_image", "assignments", "created_by", "version", "created_at", "updated_at").
		Values(staff.ID, staff.Name, staff.Email, staff.Phone, string(staff.Role), string(staff.Department),
			string(staff.Status), staff.ProfileImage, assignments, staff.CreatedBy, staff.Version,
			staff.CreatedAt, staff.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting staff: %w", err)
	}
	return nil
}

func (r *postgresStaffRepository) GetByID(ctx context.Context, id string) (*domain.Staff, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query, args, err := psql.Select(staffColumns...).
		From("staff_records").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var row staffRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning staff: %w", err)
	}
	return row.toDomain()
}

func (r *postgresStaffRepository) Replace(ctx context.Context, staff *domain.Staff) error {
	if _, err := uuid.Parse(staff.ID); err != nil {
		return ErrNotFound
	}
	assignments, err := encodeAssignments(staff.Assignments)
	if err != nil {
		return err
	}
	now := domain.Now()
	query, args, err := psql.Update("staff_records").
		Set("name", staff.Name).
		Set("email", staff.Email).
		Set("phone", staff.Phone).
		Set("role", string(staff.Role)).
		Set("department", string(staff.Department)).
		Set("status", string(staff.Status)).
		Set("profile_image", staff.ProfileImage).
		Set("assignments", assignments).
		Set("version", staff.Version+1).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": staff.ID, "version": staff.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("updating staff: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := r.exists(ctx, staff.ID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	staff.Version++
	staff.UpdatedAt = now
	return nil
}

func (r *postgresStaffRepository) exists(ctx context.Context, id string) (bool, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("staff_records").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building count query: %w", err)
	}
	var n int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("counting staff: %w", err)
	}
	return n > 0, nil
}

func (r *postgresStaffRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	query, args, err := psql.Delete("staff_records").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting staff: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresStaffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.Staff, error) {
	limit, offset := filter.window()
	qb := applyStaffFilter(psql.Select(staffColumns...).From("staff_records"), filter).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	var rows []staffRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("scanning staff: %w", err)
	}
	result := make([]domain.Staff, 0, len(rows))
	for i := range rows {
		staff, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, *staff)
	}
	return result, nil
}

func (r *postgresStaffRepository) Count(ctx context.Context, filter StaffFilter) (int64, error) {
	query, args, err := applyStaffFilter(psql.Select("COUNT(*)").From("staff_records"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}
	var n int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting staff: %w", err)
	}
	return n, nil
}

// statsQuery computes every counter in one statement so all of them observe the same snapshot.
const statsQuery = `
WITH s AS (SELECT status, department, role, assignments FROM staff_records)
SELECT 'total'::text AS dim, ''::text AS key, COUNT(*) AS count FROM s
UNION ALL
SELECT 'status', status, COUNT(*) FROM s GROUP BY status
UNION ALL
SELECT 'department', department, COUNT(*) FROM s GROUP BY department
UNION ALL
SELECT 'role', role, COUNT(*) FROM s GROUP BY role
UNION ALL
SELECT 'assignment', a->>'status', COUNT(*) FROM s, jsonb_array_elements(s.assignments) AS a GROUP BY a->>'status'`

type statRow struct {
	Dim   string `db:"dim"`
	Key   string `db:"key"`
	Count int64  `db:"count"`
}

func (r *postgresStaffRepository) Stats(ctx context.Context) (*domain.StaffStats, error) {
	var rows []statRow
	if err := pgxscan.Select(ctx, r.db, &rows, statsQuery); err != nil {
		return nil, fmt.Errorf("aggregating staff stats: %w", err)
	}
	var byDepartment, byRole, byAssignment []groupBucket
	stats := &domain.StaffStats{}
	for _, row := range rows {
		switch row.Dim {
		case "total":
			stats.TotalStaff = row.Count
		case "status":
			switch domain.StaffStatus(row.Key) {
			case domain.StaffStatusActive:
				stats.ActiveStaff = row.Count
			case domain.StaffStatusInactive:
				stats.InactiveStaff = row.Count
			case domain.StaffStatusOnLeave:
				stats.OnLeaveStaff = row.Count
			}
		case "department":
			byDepartment = append(byDepartment, groupBucket{Key: row.Key, Count: row.Count})
		case "role":
			byRole = append(byRole, groupBucket{Key: row.Key, Count: row.Count})
		case "assignment":
			byAssignment = append(byAssignment, groupBucket{Key: row.Key, Count: row.Count})
		}
	}
	stats.DepartmentStats = toGroupCounts(byDepartment)
	stats.RoleStats = toGroupCounts(byRole)
	stats.AssignmentStats = toGroupCounts(byAssignment)
	return stats, nil
}

// applyStaffFilter adds one WHERE clause per populated filter field.
func applyStaffFilter(qb squirrel.SelectBuilder, filter StaffFilter) squirrel.SelectBuilder {
	if term := filter.search(); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		qb = qb.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"email": pattern},
			squirrel.ILike{"role": pattern},
		})
	}
	if filter.Department != "" {
		qb = qb.Where(squirrel.Eq{"department": filter.Department})
	}
	if filter.Status != "" {
		qb = qb.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.Role != "" {
		qb = qb.Where(squirrel.Eq{"role": filter.Role})
	}
	return qb
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func encodeAssignments(assignments []domain.Assignment) ([]byte, error) {
	records := make([]assignmentRecord, 0, len(assignments))
	for _, a := range assignments {
		records = append(records, assignmentRecord{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Location:    a.Location,
			StartDate:   a.StartDate,
			EndDate:     a.EndDate,
			Status:      string(a.Status),
			AssignedBy:  a.AssignedBy,
			CreatedAt:   a.CreatedAt,
		})
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encoding assignments: %w", err)
	}
	return data, nil
}

func (row *staffRow) toDomain() (*domain.Staff, error) {
	var records []assignmentRecord
	if len(row.Assignments) > 0 {
		if err := json.Unmarshal(row.Assignments, &records); err != nil {
			return nil, fmt.Errorf("decoding assignments: %w", err)
		}
	}
	assignments := make([]domain.Assignment, 0, len(records))
	for _, a := range records {
		assignments = append(assignments, domain.Assignment{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Location:    a.Location,
			StartDate:   a.StartDate,
			EndDate:     a.EndDate,
			Status:      domain.AssignmentStatus(a.Status),
			AssignedBy:  a.AssignedBy,
			CreatedAt:   a.CreatedAt,
		})
	}
	return &domain.Staff{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		Phone:        row.Phone,
		Role:         domain.StaffRole(row.Role),
		Department:   domain.Department(row.Department),
		Status:       domain.StaffStatus(row.Status),
		ProfileImage: row.ProfileImage,
		Assignments:  assignments,
		CreatedBy:    row.CreatedBy,
		Version:      row.Version,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}
