package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/staff-service/internal/api/dto"
	"github.com/spec-kit/staff-service/internal/auth"
	"github.com/spec-kit/staff-service/internal/domain"
	"github.com/spec-kit/staff-service/internal/service"
	apperrors "github.com/spec-kit/staff-service/pkg/util"
)

// StaffHandler exposes the staff record and assignment endpoints.
type StaffHandler struct {
	staff       *service.StaffService
	assignments *service.AssignmentService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(staff *service.StaffService, assignments *service.AssignmentService) *StaffHandler {
	return &StaffHandler{staff: staff, assignments: assignments}
}

// ListStaff handles GET /api/staff.
func (h *StaffHandler) ListStaff(c *fiber.Ctx) error {
	page, err := h.staff.List(c.UserContext(), service.ListQuery{
		Page:       parseIntQuery(c, "page", 1),
		Limit:      parseIntQuery(c, "limit", 10),
		Search:     c.Query("search"),
		Department: c.Query("department"),
		Status:     c.Query("status"),
		Role:       c.Query("role"),
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewStaffListEnvelope(page))
}

// GetStats handles GET /api/staff/stats.
func (h *StaffHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.staff.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.NewStatsResponse(stats)})
}

// GetStaff handles GET /api/staff/:id.
func (h *StaffHandler) GetStaff(c *fiber.Ctx) error {
	staff, err := h.staff.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.NewStaffResponse(staff)})
}

// CreateStaff handles POST /api/staff.
func (h *StaffHandler) CreateStaff(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.StaffCreateRequest
	if err := dto.Decode(c.Body(), &req); err != nil {
		return err
	}
	staff, err := h.staff.Create(c.UserContext(), actor, req.Command())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "data": dto.NewStaffResponse(staff)})
}

// UpdateStaff handles PUT /api/staff/:id.
func (h *StaffHandler) UpdateStaff(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.StaffUpdateRequest
	if err := dto.Decode(c.Body(), &req); err != nil {
		return err
	}
	staff, err := h.staff.Update(c.UserContext(), actor, c.Params("id"), req.Command())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.NewStaffResponse(staff)})
}

// DeleteStaff handles DELETE /api/staff/:id.
func (h *StaffHandler) DeleteStaff(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.staff.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{}})
}

// AddAssignment handles POST /api/staff/:id/assignments.
func (h *StaffHandler) AddAssignment(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AssignmentCreateRequest
	if err := dto.Decode(c.Body(), &req); err != nil {
		return err
	}
	staff, err := h.assignments.Add(c.UserContext(), actor, c.Params("id"), req.Command())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.NewStaffResponse(staff)})
}

// UpdateAssignment handles PUT /api/staff/:id/assignments/:assignmentId.
func (h *StaffHandler) UpdateAssignment(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AssignmentUpdateRequest
	if err := dto.Decode(c.Body(), &req); err != nil {
		return err
	}
	staff, err := h.assignments.Patch(c.UserContext(), actor, c.Params("id"), c.Params("assignmentId"), req.Command())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.NewStaffResponse(staff)})
}

// RemoveAssignment handles DELETE /api/staff/:id/assignments/:assignmentId.
func (h *StaffHandler) RemoveAssignment(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	staff, err := h.assignments.Remove(c.UserContext(), actor, c.Params("id"), c.Params("assignmentId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dto.NewStaffResponse(staff)})
}

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("not authorized to access this route")
	}
	return principal.User, nil
}

// parseIntQuery reads the leading decimal digits of a query value, so "2abc" is 2.
// Missing, non-numeric, non-positive or out-of-range values fall back to defaultVal.
func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	val := strings.TrimPrefix(strings.TrimSpace(c.Query(key)), "+")
	end := 0
	for end < len(val) && val[end] >= '0' && val[end] <= '9' {
		end++
	}
	if end == 0 {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val[:end])
	if err != nil || parsed <= 0 {
		return defaultVal
	}
	return parsed
}
