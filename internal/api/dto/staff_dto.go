package dto

import (
	"time"

	"github.com/spec-kit/staff-service/internal/domain"
	"github.com/spec-kit/staff-service/internal/service"
)

// StaffCreateRequest payload.
type StaffCreateRequest struct {
	Name         string                    `json:"name"`
	Email        string                    `json:"email"`
	Phone        string                    `json:"phone"`
	Role         domain.StaffRole          `json:"role"`
	Department   domain.Department         `json:"department"`
	Status       domain.StaffStatus        `json:"status"`
	ProfileImage string                    `json:"profileImage"`
	Assignments  []AssignmentCreateRequest `json:"assignments"`
}

// Command converts the payload into the service input.
func (r StaffCreateRequest) Command() service.CreateStaffCommand {
	cmd := service.CreateStaffCommand{
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		Role:         r.Role,
		Department:   r.Department,
		Status:       r.Status,
		ProfileImage: r.ProfileImage,
	}
	for _, a := range r.Assignments {
		cmd.Assignments = append(cmd.Assignments, a.Command())
	}
	return cmd
}

// StaffUpdateRequest payload. Absent fields are left untouched.
type StaffUpdateRequest struct {
	Name         *string             `json:"name"`
	Email        *string             `json:"email"`
	Phone        *string             `json:"phone"`
	Role         *domain.StaffRole   `json:"role"`
	Department   *domain.Department  `json:"department"`
	Status       *domain.StaffStatus `json:"status"`
	ProfileImage *string             `json:"profileImage"`
}

// Command converts the payload into the service input.
func (r StaffUpdateRequest) Command() service.UpdateStaffCommand {
	return service.UpdateStaffCommand{
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		Role:         r.Role,
		Department:   r.Department,
		Status:       r.Status,
		ProfileImage: r.ProfileImage,
	}
}

// AssignmentCreateRequest payload.
type AssignmentCreateRequest struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Location    string                  `json:"location"`
	StartDate   *Date                   `json:"startDate"`
	EndDate     *Date                   `json:"endDate"`
	Status      domain.AssignmentStatus `json:"status"`
}

// Command converts the payload into the service input.
func (r AssignmentCreateRequest) Command() service.AddAssignmentCommand {
	return service.AddAssignmentCommand{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		StartDate:   r.StartDate.Value(),
		EndDate:     r.EndDate.Ptr(),
		Status:      r.Status,
	}
}

// AssignmentUpdateRequest payload. Absent fields are left untouched; an explicit
// null endDate clears it.
type AssignmentUpdateRequest struct {
	Title       *string                  `json:"title"`
	Description *string                  `json:"description"`
	Location    *string                  `json:"location"`
	StartDate   *Date                    `json:"startDate"`
	EndDate     OptionalDate             `json:"endDate"`
	Status      *domain.AssignmentStatus `json:"status"`
}

// Command converts the payload into the service input.
func (r AssignmentUpdateRequest) Command() service.PatchAssignmentCommand {
	cmd := service.PatchAssignmentCommand{
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Status:      r.Status,
	}
	if r.EndDate.Set {
		cmd.EndDate = r.EndDate.Ptr()
		cmd.ClearEndDate = cmd.EndDate == nil
	}
	if r.StartDate != nil {
		start := r.StartDate.Time
		cmd.StartDate = &start
	}
	return cmd
}

// AssignmentResponse is the wire shape of an embedded assignment.
type AssignmentResponse struct {
	ID          string                  `json:"_id"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Location    string                  `json:"location"`
	StartDate   time.Time               `json:"startDate"`
	EndDate     *time.Time              `json:"endDate,omitempty"`
	Status      domain.AssignmentStatus `json:"status"`
	AssignedBy  string                  `json:"assignedBy"`
	CreatedAt   time.Time               `json:"createdAt"`
}

// StaffResponse is the wire shape of a staff record.
type StaffResponse struct {
	ID           string               `json:"_id"`
	Name         string               `json:"name"`
	Email        string               `json:"email"`
	Phone        string               `json:"phone,omitempty"`
	Role         domain.StaffRole     `json:"role"`
	Department   domain.Department    `json:"department"`
	Status       domain.StaffStatus   `json:"status"`
	ProfileImage string               `json:"profileImage"`
	Assignments  []AssignmentResponse `json:"assignments"`
	User         string               `json:"user"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
	Version      int64                `json:"__v"`
}

// NewStaffResponse maps a domain record to its wire shape.
func NewStaffResponse(s *domain.Staff) StaffResponse {
	resp := StaffResponse{
		ID:           s.ID,
		Name:         s.Name,
		Email:        s.Email,
		Phone:        s.Phone,
		Role:         s.Role,
		Department:   s.Department,
		Status:       s.Status,
		ProfileImage: s.ProfileImage,
		Assignments:  make([]AssignmentResponse, 0, len(s.Assignments)),
		User:         s.CreatedBy,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		Version:      s.Version,
	}
	for _, a := range s.Assignments {
		resp.Assignments = append(resp.Assignments, AssignmentResponse{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Location:    a.Location,
			StartDate:   a.StartDate,
			EndDate:     a.EndDate,
			Status:      a.Status,
			AssignedBy:  a.AssignedBy,
			CreatedAt:   a.CreatedAt,
		})
	}
	return resp
}

// NewStaffListResponse maps a page of records.
func NewStaffListResponse(items []domain.Staff) []StaffResponse {
	out := make([]StaffResponse, 0, len(items))
	for i := range items {
		out = append(out, NewStaffResponse(&items[i]))
	}
	return out
}

// Pagination describes the window returned by the list endpoint.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// StaffListResponse is the list envelope.
type StaffListResponse struct {
	Success    bool            `json:"success"`
	Count      int             `json:"count"`
	Pagination Pagination      `json:"pagination"`
	Data       []StaffResponse `json:"data"`
}

// NewStaffListEnvelope builds the list envelope from a service page.
func NewStaffListEnvelope(page *service.StaffPage) StaffListResponse {
	return StaffListResponse{
		Success: true,
		Count:   len(page.Items),
		Pagination: Pagination{
			Total: page.Total,
			Page:  page.Page,
			Limit: page.Limit,
			Pages: page.Pages,
		},
		Data: NewStaffListResponse(page.Items),
	}
}

// GroupCountResponse is one grouped bucket, keyed by `_id` like an aggregation result.
type GroupCountResponse struct {
	ID    string `json:"_id"`
	Count int64  `json:"count"`
}

// StatsResponse is the wire shape of the collection statistics.
type StatsResponse struct {
	TotalStaff      int64                `json:"totalStaff"`
	ActiveStaff     int64                `json:"activeStaff"`
	InactiveStaff   int64                `json:"inactiveStaff"`
	OnLeaveStaff    int64                `json:"onLeaveStaff"`
	DepartmentStats []GroupCountResponse `json:"departmentStats"`
	RoleStats       []GroupCountResponse `json:"roleStats"`
	AssignmentStats []GroupCountResponse `json:"assignmentStats"`
}

// NewStatsResponse maps statistics to their wire shape.
func NewStatsResponse(s *domain.StaffStats) StatsResponse {
	return StatsResponse{
		TotalStaff:      s.TotalStaff,
		ActiveStaff:     s.ActiveStaff,
		InactiveStaff:   s.InactiveStaff,
		OnLeaveStaff:    s.OnLeaveStaff,
		DepartmentStats: groupCounts(s.DepartmentStats),
		RoleStats:       groupCounts(s.RoleStats),
		AssignmentStats: groupCounts(s.AssignmentStats),
	}
}

func groupCounts(in []domain.GroupCount) []GroupCountResponse {
	out := make([]GroupCountResponse, 0, len(in))
	for _, g := range in {
		out = append(out, GroupCountResponse{ID: g.Key, Count: g.Count})
	}
	return out
}
