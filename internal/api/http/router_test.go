package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/staff-service/internal/api/http/handlers"
	"github.com/spec-kit/staff-service/internal/auth"
	"github.com/spec-kit/staff-service/internal/config"
	"github.com/spec-kit/staff-service/internal/domain"
	"github.com/spec-kit/staff-service/internal/events"
	"github.com/spec-kit/staff-service/internal/observability"
	"github.com/spec-kit/staff-service/internal/service"
)

type testServer struct {
	app         *fiber.App
	adminToken  string
	viewerToken string
	metrics     *observability.Metrics
}

func newTestServer(t *testing.T, rl *RateLimiter) *testServer {
	t.Helper()
	logger := zap.NewNop()
	users := &fakeUserRepo{users: map[string]domain.User{
		"admin-1":  {ID: "admin-1", Name: "Admin", Email: "admin@solbot.io", Role: domain.UserRoleAdmin},
		"viewer-1": {ID: "viewer-1", Name: "Viewer", Email: "viewer@solbot.io", Role: domain.UserRoleUser},
	}}
	cfg := config.Config{
		App:  config.AppConfig{Name: "staff-test"},
		Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4},
	}
	authSvc := service.NewAuthService(cfg, service.AuthDependencies{UserRepo: users, PasswordResetRepo: fakeResetRepo{}})
	staffSvc := service.NewStaffService(service.StaffDependencies{
		StaffRepo:    newFakeStaffRepo(),
		Dispatcher:   events.NewInMemoryDispatcher(),
		WriteBackoff: time.Millisecond,
	})
	metrics := observability.NewMetrics()

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, MiddlewareConfig{Timeout: 5 * time.Second, RateLimiter: rl})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("staff-test", "dev", stubDependency{name: "store"}),
		Auth:           handlers.NewAuthHandler(authSvc, true),
		Staff:          handlers.NewStaffHandler(staffSvc, service.NewAssignmentService(staffSvc)),
		AuthMiddleware: auth.NewAuthMiddleware(authSvc.TokenManager(), users, nil, logger),
		Metrics:        metrics,
	})

	sign := func(id string) string {
		u, err := users.GetByID(t.Context(), id)
		require.NoError(t, err)
		token, _, err := authSvc.TokenManager().GenerateToken(u)
		require.NoError(t, err)
		return token
	}
	return &testServer{app: app, adminToken: sign("admin-1"), viewerToken: sign("viewer-1"), metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) createStaff(t *testing.T, body string) map[string]any {
	t.Helper()
	status, out := s.do(t, http.MethodPost, "/api/staff", s.adminToken, body)
	require.Equal(t, http.StatusCreated, status, out)
	return out["data"].(map[string]any)
}

func TestStaffRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("Should create with defaults", func(t *testing.T) {
		data := s.createStaff(t, `{"name":"A","email":"a@x.com","department":"support"}`)
		assert.NotEmpty(t, data["_id"])
		assert.Equal(t, "active", data["status"])
		assert.Equal(t, "technician", data["role"])
		assert.Equal(t, "admin-1", data["user"])
		assert.Equal(t, []any{}, data["assignments"])
	})
	t.Run("Should reject a second record with the same email", func(t *testing.T) {
		status, out := s.do(t, http.MethodPost, "/api/staff", s.adminToken, `{"name":"B","email":"a@x.com","department":"support"}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, false, out["success"])
		assert.Equal(t, "VALIDATION_FAILED", out["code"])
	})
	t.Run("Should reject unknown fields", func(t *testing.T) {
		status, out := s.do(t, http.MethodPost, "/api/staff", s.adminToken, `{"name":"B","email":"b@x.com","department":"support","salary":1}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "VALIDATION_FAILED", out["code"])
	})
	t.Run("Should require a credential", func(t *testing.T) {
		status, out := s.do(t, http.MethodGet, "/api/staff", "", "")
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "UNAUTHORIZED", out["code"])
	})
	t.Run("Should forbid writes for the user role", func(t *testing.T) {
		status, out := s.do(t, http.MethodPost, "/api/staff", s.viewerToken, `{"name":"C","email":"c@x.com","department":"support"}`)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "FORBIDDEN", out["code"])
		assert.Equal(t, "user role user is not authorized to access this route", out["message"])

		status, _ = s.do(t, http.MethodGet, "/api/staff/stats", s.viewerToken, "")
		assert.Equal(t, http.StatusForbidden, status)
	})
	t.Run("Should return not found for a malformed id", func(t *testing.T) {
		status, out := s.do(t, http.MethodGet, "/api/staff/not-an-id", s.viewerToken, "")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "Staff member not found", out["message"])
	})
}

func TestStaffRoutes_Pagination(t *testing.T) {
	s := newTestServer(t, nil)
	s.createStaff(t, `{"name":"First","email":"first@x.com","department":"support"}`)
	second := s.createStaff(t, `{"name":"Second","email":"second@x.com","department":"support"}`)
	s.createStaff(t, `{"name":"Third","email":"third@x.com","department":"maintenance"}`)

	t.Run("Should page newest first", func(t *testing.T) {
		status, out := s.do(t, http.MethodGet, "/api/staff?page=2&limit=1", s.viewerToken, "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, out["success"])
		assert.Equal(t, float64(1), out["count"])
		items := out["data"].([]any)
		require.Len(t, items, 1)
		assert.Equal(t, second["_id"], items[0].(map[string]any)["_id"])
		pagination := out["pagination"].(map[string]any)
		assert.Equal(t, float64(3), pagination["total"])
		assert.Equal(t, float64(3), pagination["pages"])
	})
	t.Run("Should fall back to defaults for garbage parameters", func(t *testing.T) {
		status, out := s.do(t, http.MethodGet, "/api/staff?page=abc&limit=-4&bogus=1", s.viewerToken, "")
		require.Equal(t, http.StatusOK, status)
		pagination := out["pagination"].(map[string]any)
		assert.Equal(t, float64(1), pagination["page"])
		assert.Equal(t, float64(10), pagination["limit"])
		assert.Equal(t, float64(3), out["count"])
	})
	t.Run("Should read the leading digits of a parameter", func(t *testing.T) {
		status, out := s.do(t, http.MethodGet, "/api/staff?page=2abc&limit=1xyz", s.viewerToken, "")
		require.Equal(t, http.StatusOK, status)
		pagination := out["pagination"].(map[string]any)
		assert.Equal(t, float64(2), pagination["page"])
		assert.Equal(t, float64(1), pagination["limit"])
		items := out["data"].([]any)
		require.Len(t, items, 1)
		assert.Equal(t, second["_id"], items[0].(map[string]any)["_id"])
	})
	t.Run("Should cap the limit and tolerate huge pages", func(t *testing.T) {
		status, out := s.do(t, http.MethodGet, "/api/staff?limit=5000", s.viewerToken, "")
		require.Equal(t, http.StatusOK, status)
		pagination := out["pagination"].(map[string]any)
		assert.Equal(t, float64(100), pagination["limit"])
		assert.Equal(t, float64(1), pagination["pages"])
		assert.Equal(t, float64(3), out["count"])

		status, out = s.do(t, http.MethodGet, "/api/staff?page=9223372036854775807&limit=100", s.viewerToken, "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(0), out["count"])
		assert.Empty(t, out["data"])
	})
	t.Run("Should filter by department", func(t *testing.T) {
		_, out := s.do(t, http.MethodGet, "/api/staff?department=maintenance", s.viewerToken, "")
		assert.Equal(t, float64(1), out["count"])
	})
	t.Run("Should report statistics", func(t *testing.T) {
		status, out := s.do(t, http.MethodGet, "/api/staff/stats", s.adminToken, "")
		require.Equal(t, http.StatusOK, status)
		data := out["data"].(map[string]any)
		assert.Equal(t, float64(3), data["totalStaff"])
		assert.Len(t, data["departmentStats"], 2)
	})
}

func TestStaffRoutes_Assignments(t *testing.T) {
	s := newTestServer(t, nil)
	staff := s.createStaff(t, `{"name":"A","email":"a@x.com","department":"installation"}`)
	base := "/api/staff/" + staff["_id"].(string)

	status, out := s.do(t, http.MethodPost, base+"/assignments", s.adminToken,
		`{"title":"Install","description":"Roof","location":"Lot 9","startDate":"2024-06-01"}`)
	require.Equal(t, http.StatusOK, status, out)
	assignments := out["data"].(map[string]any)["assignments"].([]any)
	require.Len(t, assignments, 1)
	first := assignments[0].(map[string]any)
	assert.Equal(t, "pending", first["status"])
	assert.Equal(t, "admin-1", first["assignedBy"])
	assignmentID := first["_id"].(string)

	t.Run("Should reject a missing start date", func(t *testing.T) {
		status, out := s.do(t, http.MethodPost, base+"/assignments", s.adminToken,
			`{"title":"Install","description":"Roof","location":"Lot 9"}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, out["details"], "startDate")
	})
	t.Run("Should let any authenticated user patch", func(t *testing.T) {
		status, out := s.do(t, http.MethodPut, base+"/assignments/"+assignmentID, s.viewerToken, `{"status":"completed"}`)
		require.Equal(t, http.StatusOK, status, out)
		a := out["data"].(map[string]any)["assignments"].([]any)[0].(map[string]any)
		assert.Equal(t, "completed", a["status"])
		assert.Equal(t, "Install", a["title"])
	})
	t.Run("Should set and then clear the end date", func(t *testing.T) {
		status, out := s.do(t, http.MethodPut, base+"/assignments/"+assignmentID, s.viewerToken, `{"endDate":"2024-06-30"}`)
		require.Equal(t, http.StatusOK, status, out)
		a := out["data"].(map[string]any)["assignments"].([]any)[0].(map[string]any)
		assert.Equal(t, "2024-06-30T00:00:00Z", a["endDate"])

		status, out = s.do(t, http.MethodPut, base+"/assignments/"+assignmentID, s.viewerToken, `{"endDate":null}`)
		require.Equal(t, http.StatusOK, status, out)
		a = out["data"].(map[string]any)["assignments"].([]any)[0].(map[string]any)
		assert.NotContains(t, a, "endDate")
		assert.Equal(t, "completed", a["status"])
	})
	t.Run("Should return not found for an unknown assignment and keep the list", func(t *testing.T) {
		status, out := s.do(t, http.MethodDelete, base+"/assignments/bad-id", s.adminToken, "")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "Assignment not found", out["message"])

		_, out = s.do(t, http.MethodGet, base, s.viewerToken, "")
		assert.Len(t, out["data"].(map[string]any)["assignments"], 1)
	})
	t.Run("Should remove the assignment", func(t *testing.T) {
		status, out := s.do(t, http.MethodDelete, base+"/assignments/"+assignmentID, s.adminToken, "")
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, out["data"].(map[string]any)["assignments"])
	})
	t.Run("Should update and delete the record", func(t *testing.T) {
		status, out := s.do(t, http.MethodPut, base, s.adminToken, `{"status":"inactive"}`)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "inactive", out["data"].(map[string]any)["status"])

		status, out = s.do(t, http.MethodDelete, base, s.adminToken, "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, map[string]any{}, out["data"])

		status, _ = s.do(t, http.MethodGet, base, s.adminToken, "")
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestAuthRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	status, out := s.do(t, http.MethodPost, "/api/auth/register", "", `{"name":"Dana","email":"dana@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, status, out)
	token := out["token"].(string)
	assert.Equal(t, "user", out["data"].(map[string]any)["role"])

	t.Run("Should log in", func(t *testing.T) {
		status, out := s.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"dana@x.com","password":"secret1"}`)
		require.Equal(t, http.StatusOK, status)
		assert.NotEmpty(t, out["token"])
	})
	t.Run("Should return the current user", func(t *testing.T) {
		status, out := s.do(t, http.MethodGet, "/api/auth/me", token, "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "dana@x.com", out["data"].(map[string]any)["email"])
		assert.NotContains(t, out["data"], "password")
	})
	t.Run("Should accept reset requests for unknown emails", func(t *testing.T) {
		status, _ := s.do(t, http.MethodPost, "/api/auth/password/reset/request", "", `{"email":"nobody@x.com"}`)
		assert.Equal(t, http.StatusAccepted, status)
	})
}

func TestOperationalRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	status, out := s.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", out["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "staff_service_http_requests_total")

	status, out = s.do(t, http.MethodGet, "/no/such/route", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", out["code"])
}

func TestReadinessFailure(t *testing.T) {
	h := handlers.NewHealthHandler("svc", "dev", stubDependency{name: "redis", err: errors.New("dial tcp: refused")})
	app := fiber.New()
	app.Get("/ready", h.Ready)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(limiter.Rate{Period: time.Minute, Limit: 2}, nil, zap.NewNop())
	s := newTestServer(t, rl)

	for i := 0; i < 2; i++ {
		status, _ := s.do(t, http.MethodGet, "/api/staff", s.viewerToken, "")
		require.Equal(t, http.StatusOK, status)
	}
	status, out := s.do(t, http.MethodGet, "/api/staff", s.viewerToken, "")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", out["code"])

	status, _ = s.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, status)
}
