package domain

import (
	"encoding/json"
	"fmt"
)

const DateLayout = "2006-01-02"

const (
	PlanDraft     = "draft"
	PlanActive    = "active"
	PlanCompleted = "completed"
	PlanArchived  = "archived"
)

const (
	PhaseUpcoming  = "upcoming"
	PhaseActive    = "active"
	PhaseCompleted = "completed"
)

const (
	TaskPending     = "pending"
	TaskInProgress  = "in_progress"
	TaskCompleted   = "completed"
	TaskSkipped     = "skipped"
	TaskRescheduled = "rescheduled"
)

const (
	ExecHuman         = "human"
	ExecAgentAssisted = "agent_assisted"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// TaskStatuses lists every legal task status. Any status may follow any other.
var TaskStatuses = []string{TaskPending, TaskInProgress, TaskCompleted, TaskSkipped, TaskRescheduled}

func ValidTaskStatus(s string) bool {
	for _, v := range TaskStatuses {
		if v == s {
			return true
		}
	}
	return false
}

type Plan struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status" enum:"draft,active,completed,archived"`
	StartDate   *string        `json:"start_date,omitempty" format:"date"`
	EndDate     *string        `json:"end_date,omitempty" format:"date"`
	Config      map[string]any `json:"config,omitempty"`
	CreatedAt   string         `json:"created_at" format:"date-time"`
	UpdatedAt   string         `json:"updated_at" format:"date-time"`
}

// Timezone returns the plan-level timezone override, if any.
func (p Plan) Timezone() string {
	if p.Config == nil {
		return ""
	}
	tz, _ := p.Config["timezone"].(string)
	return tz
}

type Phase struct {
	ID          int64   `json:"id"`
	PlanID      int64   `json:"plan_id"`
	PhaseNumber int     `json:"phase_number"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	StartDate   *string `json:"start_date,omitempty" format:"date"`
	EndDate     *string `json:"end_date,omitempty" format:"date"`
	Status      string  `json:"status" enum:"upcoming,active,completed"`
}

type Task struct {
	ID               int64   `json:"id"`
	PlanID           int64   `json:"plan_id"`
	PhaseID          *int64  `json:"phase_id,omitempty"`
	TaskNumber       int     `json:"task_number"`
	DayOffset        int     `json:"day_offset"`
	ScheduledDate    *string `json:"scheduled_date,omitempty" format:"date"`
	Title            string  `json:"title"`
	Description      string  `json:"description,omitempty"`
	Category         string  `json:"category"`
	ExecutionType    string  `json:"execution_type" enum:"human,agent_assisted"`
	Priority         int     `json:"priority" minimum:"1" maximum:"3"`
	EstimatedMinutes int     `json:"estimated_minutes"`
	Status           string  `json:"status" enum:"pending,in_progress,completed,skipped,rescheduled"`
	Notes            string  `json:"notes,omitempty"`
	CompletedAt      *string `json:"completed_at,omitempty" format:"date-time"`
}

// Conversation is one audit row for an inbound or outbound exchange.
type Conversation struct {
	ID             int64   `json:"id"`
	PlanID         *int64  `json:"plan_id,omitempty"`
	Direction      string  `json:"direction" enum:"inbound,outbound"`
	Channel        string  `json:"channel"`
	Address        string  `json:"address,omitempty"`
	Content        string  `json:"content"`
	DeliveryID     *string `json:"delivery_id,omitempty"`
	Interpretation *string `json:"interpretation,omitempty"`
	ActionsJSON    *string `json:"actions_json,omitempty"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

// ToolAction records one tool invocation made while answering a message.
type ToolAction struct {
	Tool    string          `json:"tool"`
	Input   json.RawMessage `json:"input"`
	Result  string          `json:"result"`
	IsError bool            `json:"is_error,omitempty"`
}

type PlanStats struct {
	PlanID     int64          `json:"plan_id"`
	TotalTasks int            `json:"total_tasks"`
	ByStatus   map[string]int `json:"by_status"`
	ByCategory map[string]int `json:"by_category"`
}

type PlanOverview struct {
	PlanID      int64  `json:"plan_id"`
	PlanName    string `json:"plan_name"`
	PhaseNumber int    `json:"phase_number,omitempty"`
	PhaseName   string `json:"phase_name,omitempty"`
	Total       int    `json:"total"`
	Completed   int    `json:"completed"`
	Skipped     int    `json:"skipped"`
	Pending     int    `json:"pending"`
	Overdue     int    `json:"overdue"`
}

func (o PlanOverview) String() string {
	phase := "No active phase"
	if o.PhaseNumber > 0 {
		phase = fmt.Sprintf("Current phase: %d - %s", o.PhaseNumber, o.PhaseName)
	}
	return fmt.Sprintf("%s Overview\n%s\nTotal: %d | Done: %d | Skipped: %d | Pending: %d\nOverdue: %d",
		o.PlanName, phase, o.Total, o.Completed, o.Skipped, o.Pending, o.Overdue)
}

type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	PlanID     *int64         `json:"plan_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   *int64         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type APIKey struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
