package service

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/staff-service/internal/domain"
)

// NewValidator returns a validator that knows the staff enums and email format
// and reports fields by their wire names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("staffemail", func(fl validator.FieldLevel) bool {
		return domain.EmailRegexp.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("staffrole", func(fl validator.FieldLevel) bool {
		return domain.StaffRole(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("department", func(fl validator.FieldLevel) bool {
		return domain.Department(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("staffstatus", func(fl validator.FieldLevel) bool {
		return domain.StaffStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("assignmentstatus", func(fl validator.FieldLevel) bool {
		return domain.AssignmentStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("userrole", func(fl validator.FieldLevel) bool {
		return domain.UserRole(fl.Field().String()).Valid()
	})
	return v
}

// staffSnapshot is the full record shape re-validated after every merge.
type staffSnapshot struct {
	Name        string               `json:"name" validate:"required"`
	Email       string               `json:"email" validate:"required,staffemail"`
	Phone       string               `json:"phone"`
	Role        string               `json:"role" validate:"required,staffrole"`
	Department  string               `json:"department" validate:"required,department"`
	Status      string               `json:"status" validate:"required,staffstatus"`
	CreatedBy   string               `json:"user" validate:"required"`
	Assignments []assignmentSnapshot `json:"assignments" validate:"dive"`
}

type assignmentSnapshot struct {
	ID          string `json:"_id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Location    string `json:"location" validate:"required"`
	StartDate   bool   `json:"startDate" validate:"eq=true"`
	Status      string `json:"status" validate:"required,assignmentstatus"`
	AssignedBy  string `json:"assignedBy" validate:"required"`
}

func validateStaff(v *validator.Validate, s *domain.Staff) error {
	snap := staffSnapshot{
		Name:        s.Name,
		Email:       s.Email,
		Phone:       s.Phone,
		Role:        string(s.Role),
		Department:  string(s.Department),
		Status:      string(s.Status),
		CreatedBy:   s.CreatedBy,
		Assignments: make([]assignmentSnapshot, 0, len(s.Assignments)),
	}
	for _, a := range s.Assignments {
		snap.Assignments = append(snap.Assignments, assignmentSnapshot{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Location:    a.Location,
			StartDate:   !a.StartDate.IsZero(),
			Status:      string(a.Status),
			AssignedBy:  a.AssignedBy,
		})
	}
	return v.Struct(snap)
}
