package tasklinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Taskline admin API client. PlanID 0 targets the
// server's current plan.
type Client struct {
	BaseURL     string
	PlanID      int64
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. baseURL includes the admin prefix,
// e.g. http://localhost:8080/admin.
func New(baseURL string, planID int64) *Client {
	return &Client{
		BaseURL: baseURL,
		PlanID:  planID,
		Timeout: 10 * time.Second,
	}
}

// Plan represents the API plan model (partial).
type Plan struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Status    string  `json:"status"`
	StartDate *string `json:"start_date,omitempty"`
	EndDate   *string `json:"end_date,omitempty"`
}

// Task represents the API task model (partial).
type Task struct {
	ID            int64   `json:"id"`
	TaskNumber    int     `json:"task_number"`
	DayOffset     int     `json:"day_offset"`
	ScheduledDate *string `json:"scheduled_date,omitempty"`
	Title         string  `json:"title"`
	Category      string  `json:"category"`
	Priority      int     `json:"priority"`
	Status        string  `json:"status"`
	Notes         string  `json:"notes,omitempty"`
	CompletedAt   *string `json:"completed_at,omitempty"`
}

// TaskUpdate is a partial update; nil fields are left alone.
type TaskUpdate struct {
	Status        *string `json:"status,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	ScheduledDate *string `json:"scheduled_date,omitempty"`
}

type Stats struct {
	PlanID     int64          `json:"plan_id"`
	TotalTasks int            `json:"total_tasks"`
	ByStatus   map[string]int `json:"by_status"`
	ByCategory map[string]int `json:"by_category"`
}

type Overview struct {
	PlanName    string `json:"plan_name"`
	PhaseNumber int    `json:"phase_number,omitempty"`
	PhaseName   string `json:"phase_name,omitempty"`
	Total       int    `json:"total"`
	Completed   int    `json:"completed"`
	Pending     int    `json:"pending"`
	Overdue     int    `json:"overdue"`
	Text        string `json:"text"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the body has one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) ListPlans(ctx context.Context, status string) ([]Plan, error) {
	endpoint := "plans"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp struct {
		Plans []Plan `json:"plans"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Plans, err
}

func (c *Client) CreatePlan(ctx context.Context, name, planType, description string) (Plan, error) {
	body := map[string]any{"name": name, "type": planType, "description": description}
	var resp Plan
	err := c.do(ctx, http.MethodPost, "plans", body, &resp)
	return resp, err
}

// ActivatePlan schedules every task of the plan from startDate and returns
// how many were dated.
func (c *Client) ActivatePlan(ctx context.Context, startDate string) (int, error) {
	var resp struct {
		TasksScheduled int `json:"tasks_scheduled"`
	}
	err := c.do(ctx, http.MethodPost, c.planPath("activate"), map[string]any{"start_date": startDate}, &resp)
	return resp.TasksScheduled, err
}

// Tasks lists the plan's tasks, optionally for one date.
func (c *Client) Tasks(ctx context.Context, date string) ([]Task, error) {
	endpoint := c.planPath("tasks")
	if date != "" {
		endpoint += "?date=" + url.QueryEscape(date)
	}
	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Tasks, err
}

func (c *Client) GetTask(ctx context.Context, number int) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, c.planPath("tasks/"+strconv.Itoa(number)), nil, &resp)
	return resp, err
}

func (c *Client) UpdateTask(ctx context.Context, number int, u TaskUpdate) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, c.planPath("tasks/"+strconv.Itoa(number)), u, &resp)
	return resp, err
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, c.planPath("stats"), nil, &resp)
	return resp, err
}

func (c *Client) Overview(ctx context.Context) (Overview, error) {
	var resp Overview
	err := c.do(ctx, http.MethodGet, c.planPath("overview"), nil, &resp)
	return resp, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := c.planPath("events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Events []Event `json:"events"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Events, err
}

// SendNow triggers the daily digest; an empty date means today.
func (c *Client) SendNow(ctx context.Context, date string) (string, error) {
	endpoint := c.planPath("send-now")
	if date != "" {
		endpoint += "?date=" + url.QueryEscape(date)
	}
	return c.send(ctx, endpoint)
}

func (c *Client) SendReview(ctx context.Context) (string, error) {
	return c.send(ctx, c.planPath("send-review"))
}

func (c *Client) send(ctx context.Context, endpoint string) (string, error) {
	var resp struct {
		Detail string `json:"detail"`
	}
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp.Detail, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// planPath addresses the configured plan, or the current-plan aliases when
// PlanID is zero.
func (c *Client) planPath(p string) string {
	p = strings.TrimLeft(p, "/")
	if c.PlanID == 0 {
		return p
	}
	return fmt.Sprintf("plans/%d/%s", c.PlanID, p)
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
