package staffclient

import (
	"encoding/json"
	"time"
)

// Staff is a staff record as returned by the API.
type Staff struct {
	ID           string       `json:"_id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone,omitempty"`
	Role         string       `json:"role"`
	Department   string       `json:"department"`
	Status       string       `json:"status"`
	ProfileImage string       `json:"profileImage"`
	Assignments  []Assignment `json:"assignments"`
	User         string       `json:"user"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	Version      int64        `json:"__v"`
}

// Assignment is an embedded assignment.
type Assignment struct {
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

// StaffInput creates a staff record.
type StaffInput struct {
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone,omitempty"`
	Role         string            `json:"role,omitempty"`
	Department   string            `json:"department"`
	Status       string            `json:"status,omitempty"`
	ProfileImage string            `json:"profileImage,omitempty"`
	Assignments  []AssignmentInput `json:"assignments,omitempty"`
}

// StaffUpdate carries the fields to overwrite.
type StaffUpdate struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Role         *string `json:"role,omitempty"`
	Department   *string `json:"department,omitempty"`
	Status       *string `json:"status,omitempty"`
	ProfileImage *string `json:"profileImage,omitempty"`
}

// AssignmentInput appends an assignment.
type AssignmentInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Status      string     `json:"status,omitempty"`
}

// AssignmentUpdate carries the assignment fields to overwrite. ClearEndDate sends
// an explicit null end date and takes precedence over EndDate.
type AssignmentUpdate struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Location     *string    `json:"location,omitempty"`
	StartDate    *time.Time `json:"startDate,omitempty"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	Status       *string    `json:"status,omitempty"`
	ClearEndDate bool       `json:"-"`
}

// MarshalJSON implements json.Marshaler.
func (u AssignmentUpdate) MarshalJSON() ([]byte, error) {
	type plain AssignmentUpdate
	if !u.ClearEndDate {
		return json.Marshal(plain(u))
	}
	return json.Marshal(struct {
		plain
		EndDate *time.Time `json:"endDate"`
	}{plain: plain(u)})
}

// Pagination mirrors the list envelope's pagination block.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// Page is one page of the list endpoint.
type Page struct {
	Items      []Staff
	Count      int
	Pagination Pagination
}

// GroupCount is one statistics bucket.
type GroupCount struct {
	ID    string `json:"_id"`
	Count int64  `json:"count"`
}

// Stats is the statistics payload.
type Stats struct {
	TotalStaff      int64        `json:"totalStaff"`
	ActiveStaff     int64        `json:"activeStaff"`
	InactiveStaff   int64        `json:"inactiveStaff"`
	OnLeaveStaff    int64        `json:"onLeaveStaff"`
	DepartmentStats []GroupCount `json:"departmentStats"`
	RoleStats       []GroupCount `json:"roleStats"`
	AssignmentStats []GroupCount `json:"assignmentStats"`
}

// User is the account returned by login.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
