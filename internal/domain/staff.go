package domain

import (
	"regexp"
	"time"
)

// StaffRole enumerates the job roles a staff record can hold.
type StaffRole string

const (
	StaffRoleTechnician StaffRole = "technician"
	StaffRoleEngineer   StaffRole = "engineer"
	StaffRoleManager    StaffRole = "manager"
	StaffRoleAdmin      StaffRole = "admin"
)

// Department enumerates the organisational units staff belong to.
type Department string

const (
	DepartmentMaintenance  Department = "maintenance"
	DepartmentInstallation Department = "installation"
	DepartmentSupport      Department = "support"
	DepartmentManagement   Department = "management"
)

// StaffStatus represents the employment state of a staff record.
type StaffStatus string

const (
	StaffStatusActive   StaffStatus = "active"
	StaffStatusInactive StaffStatus = "inactive"
	StaffStatusOnLeave  StaffStatus = "on-leave"
)

// AssignmentStatus tracks the progress of a field assignment.
type AssignmentStatus string

const (
	AssignmentStatusPending    AssignmentStatus = "pending"
	AssignmentStatusInProgress AssignmentStatus = "in-progress"
	AssignmentStatusCompleted  AssignmentStatus = "completed"
	AssignmentStatusCancelled  AssignmentStatus = "cancelled"
)

// TimePrecision is the finest time resolution both record stores keep.
const TimePrecision = time.Millisecond

// StoreTime normalises t to UTC at TimePrecision, so a value read back from
// either store equals the one written.
func StoreTime(t time.Time) time.Time {
	return t.UTC().Truncate(TimePrecision)
}

// Now is the current time as the stores persist it.
func Now() time.Time {
	return StoreTime(time.Now())
}

// DefaultProfileImage is stored when no profile image is supplied.
const DefaultProfileImage = "default-profile.jpg"

// EmailPattern is the address format accepted for staff records.
const EmailPattern = `^\w+([\.-]?\w+)*@\w+([\.-]?\w+)*(\.\w{2,3})+$`

// EmailRegexp is the compiled EmailPattern.
var EmailRegexp = regexp.MustCompile(EmailPattern)

// StaffRoles lists every valid StaffRole.
var StaffRoles = []StaffRole{StaffRoleTechnician, StaffRoleEngineer, StaffRoleManager, StaffRoleAdmin}

// Departments lists every valid Department.
var Departments = []Department{DepartmentMaintenance, DepartmentInstallation, DepartmentSupport, DepartmentManagement}

// StaffStatuses lists every valid StaffStatus.
var StaffStatuses = []StaffStatus{StaffStatusActive, StaffStatusInactive, StaffStatusOnLeave}

// AssignmentStatuses lists every valid AssignmentStatus.
var AssignmentStatuses = []AssignmentStatus{
	AssignmentStatusPending,
	AssignmentStatusInProgress,
	AssignmentStatusCompleted,
	AssignmentStatusCancelled,
}

// Valid reports whether r is a known role.
func (r StaffRole) Valid() bool {
	for _, v := range StaffRoles {
		if v == r {
			return true
		}
	}
	return false
}

// Valid reports whether d is a known department.
func (d Department) Valid() bool {
	for _, v := range Departments {
		if v == d {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known staff status.
func (s StaffStatus) Valid() bool {
	for _, v := range StaffStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known assignment status.
func (s AssignmentStatus) Valid() bool {
	for _, v := range AssignmentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Staff is a staff record together with its embedded assignments.
type Staff struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	Role         StaffRole
	Department   Department
	Status       StaffStatus
	ProfileImage string
	Assignments  []Assignment
	CreatedBy    string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Assignment is a unit of field work owned by exactly one staff record.
type Assignment struct {
	ID          string
	Title       string
	Description string
	Location    string
	StartDate   time.Time
	EndDate     *time.Time
	Status      AssignmentStatus
	AssignedBy  string
	CreatedAt   time.Time
}

// ApplyDefaults fills the optional attributes that have schema defaults.
func (s *Staff) ApplyDefaults() {
	if s.Role == "" {
		s.Role = StaffRoleTechnician
	}
	if s.Status == "" {
		s.Status = StaffStatusActive
	}
	if s.ProfileImage == "" {
		s.ProfileImage = DefaultProfileImage
	}
	if s.Assignments == nil {
		s.Assignments = []Assignment{}
	}
	for i := range s.Assignments {
		s.Assignments[i].ApplyDefaults()
	}
}

// ApplyDefaults fills the assignment status default.
func (a *Assignment) ApplyDefaults() {
	if a.Status == "" {
		a.Status = AssignmentStatusPending
	}
}

// AssignmentIndex returns the position of the assignment with the given id, or -1.
func (s *Staff) AssignmentIndex(id string) int {
	for i := range s.Assignments {
		if s.Assignments[i].ID == id {
			return i
		}
	}
	return -1
}

// GroupCount is a single bucket of a grouped count.
type GroupCount struct {
	Key   string
	Count int64
}

// StaffStats is a point-in-time snapshot of collection statistics.
type StaffStats struct {
	TotalStaff      int64
	ActiveStaff     int64
	InactiveStaff   int64
	OnLeaveStaff    int64
	DepartmentStats []GroupCount
	RoleStats       []GroupCount
	AssignmentStats []GroupCount
}
