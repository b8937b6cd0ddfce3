// Package staffclient is a typed Go client for the staff service REST API.
package staffclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx response decoded from the service's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("staff api: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("staff api: %d: %s", e.StatusCode, e.Message)
}

// Option customises a Client.
type Option func(*resty.Client)

// WithToken authenticates every request with the given bearer token.
func WithToken(token string) Option {
	return func(c *resty.Client) { c.SetAuthToken(token) }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithRetries retries idempotent reads on network errors, 429 and 5xx.
func WithRetries(count int) Option {
	return func(c *resty.Client) { c.SetRetryCount(count) }
}

// Client talks to a staff service instance.
type Client struct {
	http *resty.Client
}

// New builds a client for the service rooted at baseURL (for example http://localhost:5000).
func New(baseURL string, opts ...Option) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json").
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryCondition)
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{http: rc}
}

func retryCondition(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return true
	}
	code := r.StatusCode()
	return code == http.StatusTooManyRequests || code >= 500
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

type envelope[T any] struct {
	Success    bool        `json:"success"`
	Data       T           `json:"data"`
	Count      int         `json:"count"`
	Pagination *Pagination `json:"pagination"`
	Token      string      `json:"token"`
}

type errorEnvelope struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func do[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (*envelope[T], error) {
	var out envelope[T]
	var apiErr errorEnvelope
	req := c.http.R().SetContext(ctx).SetResult(&out).SetError(&apiErr)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("staff api %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return nil, &APIError{StatusCode: resp.StatusCode(), Code: apiErr.Code, Message: msg}
	}
	return &out, nil
}

// Login exchanges credentials for a token and uses it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	env, err := do[User](ctx, c, http.MethodPost, "/api/auth/login", nil,
		map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	c.SetToken(env.Token)
	return env.Token, nil
}

// List returns one page of staff records.
func (c *Client) List(ctx context.Context, opts ListOptions) (*Page, error) {
	env, err := do[[]Staff](ctx, c, http.MethodGet, "/api/staff", opts.values(), nil)
	if err != nil {
		return nil, err
	}
	page := &Page{Items: env.Data, Count: env.Count}
	if env.Pagination != nil {
		page.Pagination = *env.Pagination
	}
	return page, nil
}

// Get fetches one staff record.
func (c *Client) Get(ctx context.Context, id string) (*Staff, error) {
	return data(do[Staff](ctx, c, http.MethodGet, "/api/staff/"+url.PathEscape(id), nil, nil))
}

// Create adds a staff record.
func (c *Client) Create(ctx context.Context, in StaffInput) (*Staff, error) {
	return data(do[Staff](ctx, c, http.MethodPost, "/api/staff", nil, in))
}

// Update overwrites the non-nil fields of a staff record.
func (c *Client) Update(ctx context.Context, id string, in StaffUpdate) (*Staff, error) {
	return data(do[Staff](ctx, c, http.MethodPut, "/api/staff/"+url.PathEscape(id), nil, in))
}

// Delete removes a staff record.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := do[struct{}](ctx, c, http.MethodDelete, "/api/staff/"+url.PathEscape(id), nil, nil)
	return err
}

// Stats returns the grouped statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	return data(do[Stats](ctx, c, http.MethodGet, "/api/staff/stats", nil, nil))
}

// AddAssignment appends an assignment and returns the updated record.
func (c *Client) AddAssignment(ctx context.Context, staffID string, in AssignmentInput) (*Staff, error) {
	return data(do[Staff](ctx, c, http.MethodPost, assignmentsPath(staffID, ""), nil, in))
}

// UpdateAssignment patches an assignment and returns the updated record.
func (c *Client) UpdateAssignment(ctx context.Context, staffID, assignmentID string, in AssignmentUpdate) (*Staff, error) {
	return data(do[Staff](ctx, c, http.MethodPut, assignmentsPath(staffID, assignmentID), nil, in))
}

// RemoveAssignment deletes an assignment and returns the updated record.
func (c *Client) RemoveAssignment(ctx context.Context, staffID, assignmentID string) (*Staff, error) {
	return data(do[Staff](ctx, c, http.MethodDelete, assignmentsPath(staffID, assignmentID), nil, nil))
}

func assignmentsPath(staffID, assignmentID string) string {
	p := "/api/staff/" + url.PathEscape(staffID) + "/assignments"
	if assignmentID != "" {
		p += "/" + url.PathEscape(assignmentID)
	}
	return p
}

func data[T any](env *envelope[T], err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// ListOptions filters and pages the list endpoint. Zero values are omitted.
type ListOptions struct {
	Page       int
	Limit      int
	Search     string
	Department string
	Status     string
	Role       string
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Page > 0 {
		v.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	for key, val := range map[string]string{
		"search":     o.Search,
		"department": o.Department,
		"status":     o.Status,
		"role":       o.Role,
	} {
		if val != "" {
			v.Set(key, val)
		}
	}
	return v
}
